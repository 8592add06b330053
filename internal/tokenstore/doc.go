// Package tokenstore provides durable storage for the upstream OAuth token record.
//
// The stored record is a best-effort mirror of the in-memory token cache, used
// only to survive process restarts. Two backends are supported:
//   - File: Local filesystem storage with atomic writes and secure permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//
// Both backends are writable, which the OAuth flow requires: the upstream
// server may rotate the refresh token on any refresh and the rotated value
// must be persisted.
package tokenstore
