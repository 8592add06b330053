// Package server exposes the backend-for-frontend HTTP surface: the OAuth
// login/callback handshake, the proxied read-only streaming endpoints, and
// the sticky-notes CRUD.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avrellis/tunegate/internal/auth"
	"github.com/avrellis/tunegate/internal/notes"
	"github.com/avrellis/tunegate/internal/streaming"
)

// OAuthFlow drives the authorization-code handshake with the provider.
type OAuthFlow interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Token, error)
}

// TokenCache receives credentials from the callback handler and hands out
// valid access tokens. It is the sole credential interface the request-serving
// layer uses; handlers never see raw token records.
type TokenCache interface {
	RecordExternalUpdate(accessToken, refreshToken string, expiresIn int64)
}

// MusicAPI is the read-only upstream API surface proxied by this server.
type MusicAPI interface {
	Profile(ctx context.Context) (*streaming.Profile, error)
	Playlists(ctx context.Context, limit, offset int) (*streaming.PaginatedPlaylists, error)
}

// NotesStore is the sticky-notes persistence used by the CRUD handlers.
type NotesStore interface {
	Create(ctx context.Context, title, body string) (*notes.Note, error)
	List(ctx context.Context) ([]notes.Note, error)
	Get(ctx context.Context, id string) (*notes.Note, error)
	Update(ctx context.Context, id, title, body string) (*notes.Note, error)
	Delete(ctx context.Context, id string) error
}

// Config holds the server's collaborators and HTTP-level settings.
type Config struct {
	Flow  OAuthFlow
	Cache TokenCache
	API   MusicAPI
	Notes NotesStore

	// FrontendURL is where the callback handler redirects after a successful
	// code exchange.
	FrontendURL string

	// AllowedOrigins configures CORS for the frontend.
	AllowedOrigins []string
}

// Server is the BFF HTTP server.
type Server struct {
	router http.Handler
	server *http.Server

	flow        OAuthFlow
	cache       TokenCache
	api         MusicAPI
	notes       NotesStore
	frontendURL string
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New creates a Server with all routes and middleware registered.
func New(cfg Config) (*Server, error) {
	if cfg.Flow == nil {
		return nil, fmt.Errorf("missing OAuth flow")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("missing token cache")
	}
	if cfg.API == nil {
		return nil, fmt.Errorf("missing upstream API client")
	}
	if cfg.Notes == nil {
		return nil, fmt.Errorf("missing notes store")
	}
	if cfg.FrontendURL == "" {
		return nil, fmt.Errorf("missing frontend URL")
	}

	s := &Server{
		flow:        cfg.Flow,
		cache:       cfg.Cache,
		api:         cfg.API,
		notes:       cfg.Notes,
		frontendURL: cfg.FrontendURL,
	}

	r := chi.NewRouter()
	r.Use(Logging(slog.Default()))
	r.Use(Recovery)
	r.Use(CORS(cfg.AllowedOrigins))

	r.Get("/healthz", s.handleHealth)
	r.Get("/auth/login", s.handleLogin)
	r.Get("/auth/callback", s.handleCallback)

	r.Route("/api", func(r chi.Router) {
		r.Get("/me", s.handleProfile)
		r.Get("/playlists", s.handlePlaylists)

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", s.handleListNotes)
			r.Post("/", s.handleCreateNote)
			r.Get("/{id}", s.handleGetNote)
			r.Put("/{id}", s.handleUpdateNote)
			r.Delete("/{id}", s.handleDeleteNote)
		})
	})

	s.router = r
	return s, nil
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, map[string]string{"status": "ok"}, http.StatusOK)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	// Startup phase: Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second, // Read entire client request (DoS protection against slow clients)
		WriteTimeout: 30 * time.Second, // Write entire response to client
		IdleTimeout:  90 * time.Second, // Keep-alive wait for next request from client
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
