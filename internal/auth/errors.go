package auth

import "errors"

var (
	// ErrNoRefreshToken indicates the cache holds no refresh token, so a
	// refresh is impossible. The caller must force re-authorization.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrRefreshFailed indicates the upstream server rejected the refresh or
	// the request failed. Cached credentials are preserved so a transient
	// outage does not destroy a still-possibly-valid refresh token.
	ErrRefreshFailed = errors.New("token refresh failed")
)
