// Package mocks holds testify mocks of the service collaborators.
package mocks

import (
	"context"

	"github.com/notely/notely/internal/model"
	"github.com/notely/notely/internal/storage"
	"github.com/stretchr/testify/mock"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

type MockNoteRepository struct {
	mock.Mock
}

func (m *MockNoteRepository) CreateNote(ctx context.Context, note *model.Note) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *MockNoteRepository) ListNotesByOwner(ctx context.Context, ownerID string) ([]*model.Note, error) {
	args := m.Called(ctx, ownerID)
	notes, _ := args.Get(0).([]*model.Note)
	return notes, args.Error(1)
}

func (m *MockNoteRepository) GetNote(ctx context.Context, ownerID, id string) (*model.Note, error) {
	args := m.Called(ctx, ownerID, id)
	note, _ := args.Get(0).(*model.Note)
	return note, args.Error(1)
}

func (m *MockNoteRepository) UpdateNote(ctx context.Context, note *model.Note) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *MockNoteRepository) DeleteNote(ctx context.Context, ownerID, id string) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, img storage.Image) (string, error) {
	args := m.Called(ctx, img)
	return args.String(0), args.Error(1)
}
