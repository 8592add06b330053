package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avrellis/tunegate/internal/auth"
	"github.com/avrellis/tunegate/internal/notes"
	"github.com/avrellis/tunegate/internal/streaming"
)

type fakeFlow struct {
	token    *auth.Token
	err      error
	lastCode string
}

func (f *fakeFlow) AuthCodeURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeFlow) Exchange(ctx context.Context, code string) (*auth.Token, error) {
	f.lastCode = code
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

type fakeCache struct {
	mu        sync.Mutex
	access    string
	refresh   string
	expiresIn int64
	calls     int
}

func (f *fakeCache) RecordExternalUpdate(accessToken, refreshToken string, expiresIn int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access, f.refresh, f.expiresIn = accessToken, refreshToken, expiresIn
	f.calls++
}

type fakeAPI struct {
	profile   *streaming.Profile
	playlists *streaming.PaginatedPlaylists
	err       error

	gotLimit, gotOffset int
}

func (f *fakeAPI) Profile(ctx context.Context) (*streaming.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

func (f *fakeAPI) Playlists(ctx context.Context, limit, offset int) (*streaming.PaginatedPlaylists, error) {
	f.gotLimit, f.gotOffset = limit, offset
	if f.err != nil {
		return nil, f.err
	}
	return f.playlists, nil
}

type testDeps struct {
	flow  *fakeFlow
	cache *fakeCache
	api   *fakeAPI
	notes *notes.Store
}

func newTestServer(t *testing.T) (*Server, *testDeps) {
	t.Helper()

	store, err := notes.Open(":memory:")
	if err != nil {
		t.Fatalf("notes.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	deps := &testDeps{
		flow:  &fakeFlow{},
		cache: &fakeCache{},
		api:   &fakeAPI{},
		notes: store,
	}

	srv, err := New(Config{
		Flow:           deps.flow,
		Cache:          deps.cache,
		API:            deps.api,
		Notes:          store,
		FrontendURL:    "http://localhost:3000",
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, deps
}

func TestLoginRedirectsWithState(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}

	var state string
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == stateCookie {
			state = cookie.Value
		}
	}
	if state == "" {
		t.Fatal("state cookie not set")
	}

	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parsing Location: %v", err)
	}
	if got := location.Query().Get("state"); got != state {
		t.Errorf("redirect state = %q, cookie state = %q", got, state)
	}
}

func TestCallback(t *testing.T) {
	expiry := time.Now().Add(time.Hour)

	tests := []struct {
		name       string
		target     string
		cookie     string
		flowErr    error
		wantStatus int
		wantSeeded bool
	}{
		{
			name:       "success seeds cache and redirects",
			target:     "/auth/callback?state=s1&code=c1",
			cookie:     "s1",
			wantStatus: http.StatusFound,
			wantSeeded: true,
		},
		{
			name:       "state mismatch rejected",
			target:     "/auth/callback?state=evil&code=c1",
			cookie:     "s1",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing state cookie rejected",
			target:     "/auth/callback?state=s1&code=c1",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "provider error rejected",
			target:     "/auth/callback?state=s1&error=access_denied",
			cookie:     "s1",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "exchange failure maps to 502",
			target:     "/auth/callback?state=s1&code=c1",
			cookie:     "s1",
			flowErr:    fmt.Errorf("upstream down"),
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, deps := newTestServer(t)
			deps.flow.token = &auth.Token{AccessToken: "A1", RefreshToken: "R1", ExpiresAt: expiry}
			deps.flow.err = tt.flowErr

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: stateCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			if !tt.wantSeeded {
				if deps.cache.calls != 0 {
					t.Errorf("cache seeded %d times, want 0", deps.cache.calls)
				}
				return
			}

			if got := rec.Header().Get("Location"); got != "http://localhost:3000" {
				t.Errorf("Location = %q, want frontend URL", got)
			}
			if deps.cache.access != "A1" || deps.cache.refresh != "R1" {
				t.Errorf("cache seeded with %q/%q, want A1/R1", deps.cache.access, deps.cache.refresh)
			}
			if deps.cache.expiresIn < 3500 || deps.cache.expiresIn > 3600 {
				t.Errorf("cache expiresIn = %d, want ~3600", deps.cache.expiresIn)
			}
			if deps.flow.lastCode != "c1" {
				t.Errorf("exchanged code = %q, want c1", deps.flow.lastCode)
			}
		})
	}
}

func TestProfileEndpoint(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.api.profile = &streaming.Profile{ID: "user-1", DisplayName: "Test User"}

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var profile streaming.Profile
	if err := json.NewDecoder(rec.Body).Decode(&profile); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if profile.ID != "user-1" {
		t.Errorf("profile.ID = %q, want user-1", profile.ID)
	}
}

func TestPlaylistsEndpointPagination(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.api.playlists = &streaming.PaginatedPlaylists{Total: 0, Items: []streaming.Playlist{}}

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/playlists?limit=5&offset=10", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if deps.api.gotLimit != 5 || deps.api.gotOffset != 10 {
		t.Errorf("pagination = %d/%d, want 5/10", deps.api.gotLimit, deps.api.gotOffset)
	}
}

func TestUpstreamErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"no refresh token maps to 401", auth.ErrNoRefreshToken, http.StatusUnauthorized},
		{"refresh failed maps to 401", fmt.Errorf("%w: boom", auth.ErrRefreshFailed), http.StatusUnauthorized},
		{"upstream API error maps to 502", &streaming.APIError{StatusCode: 500}, http.StatusBadGateway},
		{"unknown error maps to 500", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, deps := newTestServer(t)
			deps.api.err = tt.err

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestNotesCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	// Create
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notes", strings.NewReader(`{"title":"groceries","body":"milk"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", rec.Code)
	}
	var created notes.Note
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decoding created note: %v", err)
	}
	if created.ID == "" || created.Title != "groceries" {
		t.Fatalf("created = %+v", created)
	}

	// List
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notes", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var list []notes.Note
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}

	// Get
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notes/"+created.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
	var fetched notes.Note
	if err := json.NewDecoder(rec.Body).Decode(&fetched); err != nil {
		t.Fatalf("decoding fetched note: %v", err)
	}
	if fetched.ID != created.ID {
		t.Errorf("fetched.ID = %q, want %q", fetched.ID, created.ID)
	}

	// Get missing
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notes/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get missing status = %d, want 404", rec.Code)
	}

	// Update
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/notes/"+created.ID, strings.NewReader(`{"title":"groceries","body":"milk, eggs"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200", rec.Code)
	}
	var updated notes.Note
	if err := json.NewDecoder(rec.Body).Decode(&updated); err != nil {
		t.Fatalf("decoding updated note: %v", err)
	}
	if updated.Body != "milk, eggs" {
		t.Errorf("updated body = %q", updated.Body)
	}

	// Delete
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/notes/"+created.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}

	// Gone
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/notes/"+created.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestNotesValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{not json`},
		{"empty note", `{"title":"  ","body":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t)

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notes", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestUpdateMissingNote(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/notes/nope", strings.NewReader(`{"title":"x","body":"y"}`)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"allowed origin echoed", http.MethodGet, "http://localhost:3000", "http://localhost:3000", http.StatusOK},
		{"disallowed origin gets no headers", http.MethodGet, "https://evil.example.com", "", http.StatusOK},
		{"preflight short-circuits", http.MethodOptions, "http://localhost:3000", "http://localhost:3000", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t)

			req := httptest.NewRequest(tt.method, "/healthz", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}
}
