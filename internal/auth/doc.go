// Package auth manages the upstream bearer credential for the streaming provider.
//
// The central piece is Cache: a process-wide, mutex-guarded cache of the
// access/refresh token pair with single-flight refresh. Request handlers call
// Cache.GetValidAccessToken before every upstream API call; under concurrent
// expiry exactly one refresh request reaches the provider and every caller
// shares its result.
//
// Client implements the provider's OAuth2 token endpoint interactions
// (authorization-code exchange and refresh-token grant) on top of
// golang.org/x/oauth2, with client credentials sent as HTTP Basic auth and a
// bounded request timeout.
//
// The durable mirror of the credential lives in package tokenstore; the cache
// writes it fire-and-forget and never blocks a request on persistence.
package auth
