package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore persists the token record in OS-native secure credential storage.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
type KeyringStore struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringStore implements Store
var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore for the OS-native credential storage
// using the given service and user identifiers.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
	}, nil
}

// Load returns the record from the system keyring, or (nil, nil) when no
// entry exists for the service/user pair.
func (k *KeyringStore) Load(ctx context.Context) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("%w: decoding keyring entry for service %s, user %s: %v", ErrCorruptRecord, k.service, k.user, err)
	}
	return &record, nil
}

// Save persists the record to the system keyring, overwriting any existing entry.
func (k *KeyringStore) Save(ctx context.Context, record *Record) error {
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

	return keyring.Set(k.service, k.user, string(data))
}
