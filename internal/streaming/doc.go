// Package streaming is a read-only client for the upstream music-streaming
// Web API. Every request obtains a bearer token from the auth cache first, so
// callers never handle raw credentials. Outbound calls are rate limited to
// stay inside the provider's quota.
package streaming
