// Package model defines domain entities for the application.
package model

import (
	"time"
	"unicode/utf8"
)

// List-view truncation parameters.
const (
	TruncateThreshold = 75
	TruncateKeep      = 70
	Ellipsis          = "..."
)

// Note is a titled piece of text owned by a user.
type Note struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TruncatedBody returns the body shortened for list views.
// Bodies of at most 75 characters are returned as is; longer bodies keep
// their first 70 characters followed by "...". Lengths count runes.
func (n *Note) TruncatedBody() string {
	if utf8.RuneCountInString(n.Body) <= TruncateThreshold {
		return n.Body
	}
	runes := []rune(n.Body)
	return string(runes[:TruncateKeep]) + Ellipsis
}

// HasImage reports whether an uploaded image is attached.
func (n *Note) HasImage() bool {
	return n.ImageURL != ""
}
