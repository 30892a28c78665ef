// Package service provides business logic for the application.
package service

import (
	"context"

	"github.com/notely/notely/internal/model"
	"github.com/oklog/ulid/v2"
)

// UserRepository persists user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// NoteRepository persists notes. Every read and write is scoped by owner.
type NoteRepository interface {
	CreateNote(ctx context.Context, note *model.Note) error
	ListNotesByOwner(ctx context.Context, ownerID string) ([]*model.Note, error)
	GetNote(ctx context.Context, ownerID, id string) (*model.Note, error)
	UpdateNote(ctx context.Context, note *model.Note) error
	DeleteNote(ctx context.Context, ownerID, id string) error
}

// generateID returns a new lexicographically sortable identifier.
func generateID() string {
	return ulid.Make().String()
}
