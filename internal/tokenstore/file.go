package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists the token record as a JSON file with secure permissions.
// Writes use temp file + rename for crash safety.
type FileStore struct {
	filePath string
}

// Compile-time check to ensure FileStore implements Store
var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore for the given path, creating parent directories
// with 0700 permissions if they don't exist.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FileStore{
		filePath: filePath,
	}, nil
}

// Load returns the stored record, or (nil, nil) when the file does not exist.
// Returns an error wrapping ErrCorruptRecord when the file cannot be decoded,
// and an error if the file has insecure permissions.
func (f *FileStore) Load(ctx context.Context) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Check file permissions before reading
	info, err := os.Stat(f.filePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if info.Mode().Perm() != 0600 {
		return nil, fmt.Errorf("insecure permissions on %s: %04o (expected 0600)", f.filePath, info.Mode().Perm())
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrCorruptRecord, f.filePath, err)
	}
	return &record, nil
}

// Save atomically writes the record using temp file + rename for crash safety.
// Sets file permissions to 0600 (owner read/write only).
func (f *FileStore) Save(ctx context.Context, record *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding token record: %w", err)
	}

	// Create secure temp file in same directory for atomic rename
	dir := filepath.Dir(f.filePath)
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(data); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	// Atomic rename to final location
	if err := os.Rename(tempName, f.filePath); err != nil {
		return err
	}

	// Set secure file permissions (0600 = rw-------)
	if err := os.Chmod(f.filePath, 0600); err != nil {
		return err
	}

	return nil
}
