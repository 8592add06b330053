// Package notes persists the sticky-notes list in a local SQLite database.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound indicates no note exists for the given ID.
var ErrNotFound = errors.New("note not found")

// Note is a single sticky note.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// Store provides CRUD persistence for notes.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the notes database at the given path and
// ensures the schema exists. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening notes database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensuring notes schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new note with a generated ID and returns it.
func (s *Store) Create(ctx context.Context, title, body string) (*Note, error) {
	now := time.Now().UTC()
	note := &Note{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `
		INSERT INTO notes (id, title, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
	`

	if _, err := s.db.ExecContext(ctx, query, note.ID, note.Title, note.Body, note.CreatedAt, note.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert note: %w", err)
	}

	return note, nil
}

// List returns all notes, newest first.
func (s *Store) List(ctx context.Context) ([]Note, error) {
	query := `
		SELECT id, title, body, created_at, updated_at
		FROM notes
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	notes := []Note{}
	for rows.Next() {
		var note Note
		if err := rows.Scan(&note.ID, &note.Title, &note.Body, &note.CreatedAt, &note.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notes: %w", err)
	}

	return notes, nil
}

// Get retrieves a note by ID.
func (s *Store) Get(ctx context.Context, id string) (*Note, error) {
	query := `
		SELECT id, title, body, created_at, updated_at
		FROM notes
		WHERE id = ?
	`

	var note Note
	err := s.db.QueryRowContext(ctx, query, id).Scan(&note.ID, &note.Title, &note.Body, &note.CreatedAt, &note.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query note: %w", err)
	}

	return &note, nil
}

// Update modifies an existing note's title and body and returns the result.
func (s *Store) Update(ctx context.Context, id, title, body string) (*Note, error) {
	now := time.Now().UTC()

	query := `
		UPDATE notes
		SET title = ?, body = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, title, body, now, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return s.Get(ctx, id)
}

// Delete removes a note by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}
