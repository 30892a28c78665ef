package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/notely/notely/internal/metrics"
	"github.com/notely/notely/internal/model"
	"github.com/notely/notely/internal/repository"
	"github.com/notely/notely/internal/storage"
)

// ErrNoteNotFound is returned when updating a note that does not exist for the owner.
var ErrNoteNotFound = errors.New("note not found")

// Field messages for note validation.
const (
	MsgImageDisabled    = "uploads are not enabled"
	MsgImageTooLarge    = "is too large"
	MsgImageUnsupported = "must be a PNG, JPEG, GIF or WebP image"
	MsgImageEmpty       = "is empty"
)

// NoteInput defines input for creating a note.
type NoteInput struct {
	OwnerID string
	Title   string
	Body    string
	Image   *storage.Image
}

// NoteService is the note store: validation, ownership scoping and image upload.
type NoteService struct {
	repo     NoteRepository
	uploader storage.Uploader
	maxImage int64
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewNoteService creates a new NoteService. A nil uploader disables images.
func NewNoteService(repo NoteRepository, uploader storage.Uploader, maxImage int64, recorder metrics.Recorder) *NoteService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &NoteService{
		repo:     repo,
		uploader: uploader,
		maxImage: maxImage,
		metrics:  recorder,
		now:      time.Now,
	}
}

// UploadsEnabled reports whether images can be attached.
func (s *NoteService) UploadsEnabled() bool {
	return s.uploader != nil
}

// Create validates input, uploads the optional image and stores the note.
func (s *NoteService) Create(ctx context.Context, input NoteInput) (*model.Note, error) {
	title := strings.TrimSpace(input.Title)

	ve := model.NewValidationError()
	if title == "" {
		ve.Add("title", MsgRequired)
	}
	if input.Image != nil {
		s.validateImage(ve, *input.Image)
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	var imageURL string
	if input.Image != nil {
		url, err := s.uploader.Upload(ctx, *input.Image)
		if err != nil {
			return nil, fmt.Errorf("failed to upload image: %w", err)
		}
		imageURL = url
		s.metrics.IncImageUploaded()
	}

	now := s.now().UTC()
	note := &model.Note{
		ID:        generateID(),
		OwnerID:   input.OwnerID,
		Title:     title,
		Body:      input.Body,
		ImageURL:  imageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateNote(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	s.metrics.IncNoteCreated()
	return note, nil
}

func (s *NoteService) validateImage(ve *model.ValidationError, img storage.Image) {
	if s.uploader == nil {
		ve.Add("image", MsgImageDisabled)
		return
	}
	_, err := storage.Validate(img, s.maxImage)
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		ve.Add("image", MsgImageTooLarge)
	case errors.Is(err, storage.ErrUnsupportedType):
		ve.Add("image", MsgImageUnsupported)
	case errors.Is(err, storage.ErrEmpty):
		ve.Add("image", MsgImageEmpty)
	}
}

// ListForUser returns the owner's notes, newest first.
func (s *NoteService) ListForUser(ctx context.Context, ownerID string) ([]*model.Note, error) {
	notes, err := s.repo.ListNotesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

// FindByID returns the owner's note or nil when absent or owned by someone else.
func (s *NoteService) FindByID(ctx context.Context, ownerID, id string) (*model.Note, error) {
	note, err := s.repo.GetNote(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	return note, nil
}

// Update replaces title and body of the owner's note.
// Returns ErrNoteNotFound when the note does not resolve for ownerID.
func (s *NoteService) Update(ctx context.Context, ownerID, id, title, body string) (*model.Note, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		// A foreign id is not found, never invalid.
		if _, err := s.repo.GetNote(ctx, ownerID, id); err != nil {
			if errors.Is(err, repository.ErrNoteNotFound) {
				return nil, ErrNoteNotFound
			}
			return nil, fmt.Errorf("failed to find note: %w", err)
		}
		ve := model.NewValidationError()
		ve.Add("title", MsgRequired)
		return nil, ve
	}

	note := &model.Note{
		ID:        id,
		OwnerID:   ownerID,
		Title:     title,
		Body:      body,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.repo.UpdateNote(ctx, note); err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	s.metrics.IncNoteUpdated()
	return note, nil
}

// Delete removes the owner's note. Deleting a missing note succeeds.
func (s *NoteService) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.repo.DeleteNote(ctx, ownerID, id); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	s.metrics.IncNoteDeleted()
	return nil
}
