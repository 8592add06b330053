package tokenstore

import "context"

// Store reads and writes the singleton token record in persistent storage.
//
// The in-memory cache is authoritative while the process is alive; the store
// only has to survive restarts.
type Store interface {
	// Load returns the stored record, or (nil, nil) when no record exists.
	// Returns ErrCorruptRecord (possibly wrapped) when a record exists but
	// cannot be decoded.
	Load(ctx context.Context) (*Record, error)

	// Save persists the record with upsert semantics: it creates the record
	// if absent and overwrites it otherwise.
	Save(ctx context.Context, record *Record) error
}
