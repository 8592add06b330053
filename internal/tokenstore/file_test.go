package tokenstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreLoadAbsent(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	record, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil record for absent file, got %+v", record)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	issued := time.Now().UTC().Truncate(time.Second)
	want := &Record{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresIn:    3600,
		IssuedAt:     issued,
	}

	if err := store.Save(context.Background(), want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %04o, want 0600", perm)
	}

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken || got.ExpiresIn != want.ExpiresIn {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
	if !got.IssuedAt.Equal(issued) {
		t.Errorf("IssuedAt = %v, want %v", got.IssuedAt, issued)
	}
	if wantExpiry := issued.Add(time.Hour); !got.ExpiresAt().Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt(), wantExpiry)
	}
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	ctx := context.Background()
	first := &Record{AccessToken: "a1", RefreshToken: "r1", ExpiresIn: 60, IssuedAt: time.Now()}
	second := &Record{AccessToken: "a2", RefreshToken: "r2", ExpiresIn: 120, IssuedAt: time.Now()}

	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save first: %v", err)
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.AccessToken != "a2" {
		t.Errorf("AccessToken = %q, want %q", got.AccessToken, "a2")
	}
}

func TestFileStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	_, err = store.Load(context.Background())
	if !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("Load error = %v, want ErrCorruptRecord", err)
	}
}

func TestFileStoreLoadInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, err := store.Load(context.Background()); err == nil {
		t.Fatal("expected error for insecure permissions, got nil")
	}
}

func TestRecordValid(t *testing.T) {
	base := Record{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresIn:    3600,
		IssuedAt:     time.Now(),
	}

	tests := []struct {
		name   string
		mutate func(*Record)
		want   bool
	}{
		{"complete record", func(*Record) {}, true},
		{"missing access token", func(r *Record) { r.AccessToken = "" }, false},
		{"missing refresh token", func(r *Record) { r.RefreshToken = "" }, false},
		{"zero lifetime", func(r *Record) { r.ExpiresIn = 0 }, false},
		{"negative lifetime", func(r *Record) { r.ExpiresIn = -5 }, false},
		{"zero issue time", func(r *Record) { r.IssuedAt = time.Time{} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := base
			tt.mutate(&record)
			if got := record.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
