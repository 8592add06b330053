package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avrellis/tunegate/internal/tokenstore"
)

const (
	// ExpiryMargin is the safety buffer subtracted from the token's stated
	// lifetime before treating it as stale. A token returned by
	// GetValidAccessToken is valid for at least this long.
	ExpiryMargin = 60 * time.Second

	// persistTimeout bounds the fire-and-forget write of the durable mirror.
	persistTimeout = 5 * time.Second
)

// refreshCall is the shared result handle for one in-flight refresh.
// The first caller creates it under the cache mutex and performs the upstream
// call; later callers await done and read the published result.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock sets the cache's time source. Used by tests to control expiry.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// Cache is the process-wide token cache. A single instance is created at
// startup and threaded through the server's dependency graph.
//
// The in-memory state is the source of truth while the process is alive; the
// persistent store is a best-effort mirror that only has to survive restarts.
type Cache struct {
	store     tokenstore.Store
	refresher Refresher
	now       func() time.Time

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	inflight     *refreshCall
}

// NewCache creates an empty Cache. Call Initialize to load any persisted
// record before serving requests.
func NewCache(store tokenstore.Store, refresher Refresher, opts ...CacheOption) (*Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}
	if refresher == nil {
		return nil, fmt.Errorf("missing refresher")
	}

	c := &Cache{
		store:     store,
		refresher: refresher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Initialize loads the persisted token record into the cache. An absent,
// corrupt, or structurally invalid record leaves the cache empty and is not
// an error; the cache self-heals on the next successful code exchange.
// Returns an error only for unexpected store failures.
func (c *Cache) Initialize(ctx context.Context) error {
	record, err := c.store.Load(ctx)
	if errors.Is(err, tokenstore.ErrCorruptRecord) {
		slog.WarnContext(ctx, "ignoring corrupt token record", "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading token record: %w", err)
	}
	if record == nil {
		return nil
	}
	if !record.Valid() {
		slog.WarnContext(ctx, "ignoring structurally invalid token record")
		return nil
	}

	c.mu.Lock()
	c.accessToken = record.AccessToken
	c.refreshToken = record.RefreshToken
	c.expiresAt = record.ExpiresAt()
	c.mu.Unlock()

	return nil
}

// GetValidAccessToken returns an access token valid for at least ExpiryMargin
// from now. The common case (valid cached token) performs no I/O; otherwise a
// refresh is triggered, collapsed with any concurrent refresh into one
// upstream call.
func (c *Cache) GetValidAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.accessToken != "" && c.now().Add(ExpiryMargin).Before(c.expiresAt) {
		token := c.accessToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	return c.RefreshAccessToken(ctx)
}

// RefreshAccessToken refreshes the access token via the upstream server.
// Concurrent callers share a single in-flight refresh. On failure the cached
// fields are left untouched: a transient upstream outage must not invalidate
// a still-possibly-valid credential.
func (c *Cache) RefreshAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if call := c.inflight; call != nil {
		c.mu.Unlock()
		return c.await(ctx, call)
	}

	if c.refreshToken == "" {
		c.mu.Unlock()
		return "", ErrNoRefreshToken
	}

	call := &refreshCall{done: make(chan struct{})}
	c.inflight = call
	refreshToken := c.refreshToken
	c.mu.Unlock()

	// The upstream call runs unlocked so in-progress refreshes never stall
	// cache reads that would return a still-valid token.
	token, err := c.refresher.Refresh(ctx, refreshToken)

	c.mu.Lock()
	c.inflight = nil
	if err != nil {
		c.mu.Unlock()
		call.err = fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		close(call.done)
		return "", call.err
	}

	record := c.applyLocked(token)
	call.token = c.accessToken
	c.mu.Unlock()
	close(call.done)

	c.persistAsync(record)
	return call.token, nil
}

// RecordExternalUpdate seeds or replaces the cached credential after a fresh
// authorization-code exchange. Same update semantics as a successful refresh,
// including the fire-and-forget persistence write.
func (c *Cache) RecordExternalUpdate(accessToken, refreshToken string, expiresIn int64) {
	c.mu.Lock()
	record := c.applyLocked(&Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    c.now().Add(time.Duration(expiresIn) * time.Second),
	})
	c.mu.Unlock()

	c.persistAsync(record)
}

// await blocks until the shared in-flight refresh publishes its result.
func (c *Cache) await(ctx context.Context, call *refreshCall) (string, error) {
	select {
	case <-call.done:
		return call.token, call.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// applyLocked updates the cached fields from a successful token response and
// returns the record to mirror to the store. The access token and expiry are
// always updated together; the refresh token is replaced only when the
// upstream supplied one, and carried forward otherwise.
// Callers must hold c.mu.
func (c *Cache) applyLocked(token *Token) *tokenstore.Record {
	c.accessToken = token.AccessToken
	c.expiresAt = token.ExpiresAt
	if token.RefreshToken != "" {
		c.refreshToken = token.RefreshToken
	}

	now := c.now()
	return &tokenstore.Record{
		AccessToken:  c.accessToken,
		RefreshToken: c.refreshToken,
		ExpiresIn:    int64(c.expiresAt.Sub(now) / time.Second),
		IssuedAt:     now,
	}
}

// persistAsync mirrors the record to the store without blocking the request
// path. Persistence failure is logged, not propagated: the in-memory cache
// remains authoritative.
func (c *Cache) persistAsync(record *tokenstore.Record) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := c.store.Save(ctx, record); err != nil {
			slog.ErrorContext(ctx, "failed to persist token record", "error", err)
		}
	}()
}
