package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/notely/notely/internal/model"
)

// ErrNoteNotFound is returned when no note matches both id and owner.
var ErrNoteNotFound = errors.New("note not found")

const noteColumns = `id, owner_id, title, body, image_url, created_at, updated_at`

// CreateNote inserts a new note into the database.
func (r *Repository) CreateNote(ctx context.Context, note *model.Note) error {
	query := `
		INSERT INTO notes (` + noteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		note.ID,
		note.OwnerID,
		note.Title,
		note.Body,
		note.ImageURL,
		note.CreatedAt,
		note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}

	return nil
}

// ListNotesByOwner returns every note owned by ownerID, newest first.
func (r *Repository) ListNotesByOwner(ctx context.Context, ownerID string) ([]*model.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := make([]*model.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}

	return notes, nil
}

// GetNote retrieves a note only when it belongs to ownerID.
func (r *Repository) GetNote(ctx context.Context, ownerID, id string) (*model.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE id = $1 AND owner_id = $2
	`

	note, err := scanNote(r.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	return note, nil
}

// UpdateNote overwrites title and body of the note matching id and owner.
func (r *Repository) UpdateNote(ctx context.Context, note *model.Note) error {
	query := `
		UPDATE notes
		SET title = $3, body = $4, updated_at = $5
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + noteColumns

	updated, err := scanNote(r.pool.QueryRow(ctx, query,
		note.ID,
		note.OwnerID,
		note.Title,
		note.Body,
		note.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoteNotFound
		}
		return fmt.Errorf("failed to update note: %w", err)
	}

	*note = *updated
	return nil
}

// DeleteNote removes the note matching id and owner. Missing notes are not an error.
func (r *Repository) DeleteNote(ctx context.Context, ownerID, id string) error {
	query := `DELETE FROM notes WHERE id = $1 AND owner_id = $2`

	if _, err := r.pool.Exec(ctx, query, id, ownerID); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	return nil
}

func scanNote(row pgx.Row) (*model.Note, error) {
	var note model.Note
	err := row.Scan(
		&note.ID,
		&note.OwnerID,
		&note.Title,
		&note.Body,
		&note.ImageURL,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &note, nil
}
