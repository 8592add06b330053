package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/avrellis/tunegate/internal/auth"
	"github.com/avrellis/tunegate/internal/streaming"
)

// handleProfile proxies the authenticated user's profile.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profile, err := s.api.Profile(ctx)
	if err != nil {
		s.writeUpstreamError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, profile, http.StatusOK)
}

// handlePlaylists proxies the user's playlists with limit/offset pagination.
func (s *Server) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	playlists, err := s.api.Playlists(ctx, limit, offset)
	if err != nil {
		s.writeUpstreamError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, playlists, http.StatusOK)
}

// writeUpstreamError maps upstream and credential failures to client
// responses: missing/rejected credentials surface as 401 so the frontend can
// force a re-login, upstream API failures as 502.
func (s *Server) writeUpstreamError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrNoRefreshToken):
		writeJSONError(ctx, w, "authorization required", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrRefreshFailed):
		slog.WarnContext(ctx, "token refresh failed", "error", err)
		writeJSONError(ctx, w, "authorization expired", http.StatusUnauthorized)
	default:
		var apiErr *streaming.APIError
		if errors.As(err, &apiErr) {
			slog.ErrorContext(ctx, "upstream API error", "status", apiErr.StatusCode)
			writeJSONError(ctx, w, "upstream request failed", http.StatusBadGateway)
			return
		}
		slog.ErrorContext(ctx, "request failed", "error", err)
		writeJSONError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// queryInt parses an integer query parameter, falling back to a default.
func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
