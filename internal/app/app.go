package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/avrellis/tunegate/internal/auth"
	"github.com/avrellis/tunegate/internal/notes"
	"github.com/avrellis/tunegate/internal/server"
	"github.com/avrellis/tunegate/internal/streaming"
)

// App orchestrates the lifecycle of the BFF server and related services.
type App struct {
	cfg    *Config
	cache  *auth.Cache
	notes  *notes.Store
	server *server.Server
}

// New creates a new App instance, wiring the token store, cache, upstream
// clients, notes store, and HTTP server. No I/O is performed; the persisted
// token record is loaded in Start.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := cfg.Auth.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	oauthClient := auth.NewClient(
		cfg.Provider.ClientID,
		cfg.Provider.ClientSecret,
		cfg.Provider.RedirectURL,
		cfg.Provider.AuthURL,
		cfg.Provider.TokenURL,
		cfg.Provider.Scopes,
	)

	cache, err := auth.NewCache(store, oauthClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cache: %w", err)
	}

	apiClient, err := streaming.NewClient(cfg.Provider.APIBaseURL, cache)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming client: %w", err)
	}

	notesStore, err := notes.Open(cfg.Notes.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open notes store: %w", err)
	}

	httpServer, err := server.New(server.Config{
		Flow:           oauthClient,
		Cache:          cache,
		API:            apiClient,
		Notes:          notesStore,
		FrontendURL:    cfg.Frontend.URL,
		AllowedOrigins: cfg.Frontend.AllowedOrigins,
	})
	if err != nil {
		_ = notesStore.Close()
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &App{
		cfg:    cfg,
		cache:  cache,
		notes:  notesStore,
		server: httpServer,
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	// A store failure leaves the cache empty rather than aborting startup;
	// the cache self-heals on the next successful login.
	if err := a.cache.Initialize(gCtx); err != nil {
		slog.ErrorContext(gCtx, "token cache initialization failed, continuing with empty cache", "error", err)
	}

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting server", "address", address)
	serverErrCh, err := a.server.Start(gCtx, address)
	if err != nil {
		_ = a.notes.Close()
		return fmt.Errorf("server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.server.Shutdown)
	shutdownFuncs = append(shutdownFuncs, func(context.Context) error {
		return a.notes.Close()
	})

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "server runtime error", "error", err)
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
