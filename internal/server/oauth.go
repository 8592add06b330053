package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// stateCookie carries the CSRF state token between login and callback.
const stateCookie = "oauth_state"

// handleLogin starts the authorization-code flow: it issues a random state
// token and redirects the browser to the provider's authorize URL.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, s.flow.AuthCodeURL(state), http.StatusFound)
}

// handleCallback completes the flow: it validates the state token, exchanges
// the authorization code, seeds the token cache, and sends the browser back
// to the frontend.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		writeJSONError(ctx, w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	// State is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		slog.WarnContext(ctx, "authorization denied by provider", "error", errParam)
		writeJSONError(ctx, w, "authorization failed", http.StatusBadRequest)
		return
	}

	token, err := s.flow.Exchange(ctx, code)
	if err != nil {
		slog.ErrorContext(ctx, "code exchange failed", "error", err)
		writeJSONError(ctx, w, "token exchange failed", http.StatusBadGateway)
		return
	}

	expiresIn := int64(time.Until(token.ExpiresAt) / time.Second)
	s.cache.RecordExternalUpdate(token.AccessToken, token.RefreshToken, expiresIn)

	http.Redirect(w, r, s.frontendURL, http.StatusFound)
}
