package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// requestTimeout bounds every call to the upstream token endpoint. A timeout
// is treated identically to any other refresh failure.
const requestTimeout = 10 * time.Second

// Token is the in-memory form of the upstream credential.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Refresher exchanges a refresh token for a fresh access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

// clientConfig holds configuration for NewClient.
type clientConfig struct {
	httpClient *http.Client
}

// WithHTTPClient sets a custom HTTP client for token endpoint requests.
// If not provided, a client with a bounded timeout is used.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = httpClient
	}
}

// Client talks to the provider's OAuth2 authorization server.
// Client credentials are sent as HTTP Basic auth of client_id:client_secret;
// grant parameters are form-encoded, per the provider's token endpoint.
type Client struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// Compile-time check to ensure Client implements Refresher
var _ Refresher = (*Client)(nil)

// NewClient creates a Client for the given OAuth2 application credentials
// and endpoint URLs.
func NewClient(clientID, clientSecret, redirectURL, authURL, tokenURL string, scopes []string, opts ...ClientOption) *Client {
	cfg := &clientConfig{
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Client{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
				// Basic auth of client_id:client_secret
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: cfg.httpClient,
	}
}

// AuthCodeURL returns the provider authorization URL for the login redirect.
// The state token should be cryptographically random for CSRF protection.
func (c *Client) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state)
}

// Exchange swaps an authorization code for a token via the token endpoint.
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	tok, err := c.config.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return fromOAuth2(tok), nil
}

// Refresh obtains a new access token using the refresh_token grant.
// The returned token carries the previous refresh token when the provider
// did not rotate it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	// A token with only a refresh token forces the source to hit the endpoint.
	ts := c.config.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	return fromOAuth2(tok), nil
}

// oauthContext injects the bounded-timeout HTTP client into the context per
// oauth2's documented API (oauth2.HTTPClient key).
func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func fromOAuth2(tok *oauth2.Token) *Token {
	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
}
