// Package memory provides an in-process implementation of the user and note
// repositories for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/notely/notely/internal/model"
	"github.com/notely/notely/internal/repository"
)

// Store keeps users and notes in maps guarded by a single mutex.
// Returned values are copies; callers never share memory with the store.
type Store struct {
	mu      sync.RWMutex
	users   map[string]model.User
	byEmail map[string]string
	notes   map[string]model.Note
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:   make(map[string]model.User),
		byEmail: make(map[string]string),
		notes:   make(map[string]model.Note),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// CreateUser stores user, rejecting duplicate emails.
func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return repository.ErrEmailExists
	}
	s.users[user.ID] = *user
	s.byEmail[user.Email] = user.ID
	return nil
}

// GetUserByID returns the user with id.
func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &user, nil
}

// GetUserByEmail returns the user with email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	user := s.users[id]
	return &user, nil
}

// CreateNote stores note.
func (s *Store) CreateNote(_ context.Context, note *model.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notes[note.ID] = *note
	return nil
}

// ListNotesByOwner returns ownerID's notes, newest first.
func (s *Store) ListNotesByOwner(_ context.Context, ownerID string) ([]*model.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := make([]*model.Note, 0)
	for _, n := range s.notes {
		if n.OwnerID != ownerID {
			continue
		}
		note := n
		notes = append(notes, &note)
	}

	sort.Slice(notes, func(i, j int) bool {
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.After(notes[j].CreatedAt)
		}
		return notes[i].ID > notes[j].ID
	})
	return notes, nil
}

// GetNote returns the note only when it belongs to ownerID.
func (s *Store) GetNote(_ context.Context, ownerID, id string) (*model.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, ok := s.notes[id]
	if !ok || note.OwnerID != ownerID {
		return nil, repository.ErrNoteNotFound
	}
	return &note, nil
}

// UpdateNote overwrites title, body and updated_at of the owned note.
func (s *Store) UpdateNote(_ context.Context, note *model.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.notes[note.ID]
	if !ok || stored.OwnerID != note.OwnerID {
		return repository.ErrNoteNotFound
	}

	stored.Title = note.Title
	stored.Body = note.Body
	stored.UpdatedAt = note.UpdatedAt
	s.notes[note.ID] = stored

	*note = stored
	return nil
}

// DeleteNote removes the owned note. Missing notes are not an error.
func (s *Store) DeleteNote(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if note, ok := s.notes[id]; ok && note.OwnerID == ownerID {
		delete(s.notes, id)
	}
	return nil
}
