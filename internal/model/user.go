// Package model defines domain entities for the application.
package model

import "time"

// User is an account that owns notes.
// PasswordHash always holds a bcrypt hash, never the plaintext.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize
	CreatedAt    time.Time `json:"created_at"`
}
