package tokenstore

import (
	"errors"
	"time"
)

// ErrCorruptRecord indicates that a stored record exists but cannot be decoded.
// Callers typically treat this the same as an absent record.
var ErrCorruptRecord = errors.New("corrupt token record")

// Record is the persisted snapshot of the upstream OAuth credential.
// The expiry instant is recomputed from IssuedAt on every load so that the
// stored value never accumulates clock skew.
type Record struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ExpiresAt returns the absolute instant the access token expires.
func (r *Record) ExpiresAt() time.Time {
	return r.IssuedAt.Add(time.Duration(r.ExpiresIn) * time.Second)
}

// Valid reports whether the record is structurally usable: both tokens
// present and a positive, dated lifetime.
func (r *Record) Valid() bool {
	return r.AccessToken != "" && r.RefreshToken != "" && r.ExpiresIn > 0 && !r.IssuedAt.IsZero()
}
