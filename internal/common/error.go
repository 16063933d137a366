// Package common defines the sentinel errors shared by the store, cache,
// broker and service layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrUserExists = errors.New("user already exists")

	// ErrStoreUnavailable reports that the relational store could not serve the
	// call in time (pool exhausted, deadline exceeded, connection refused).
	ErrStoreUnavailable = errors.New("store unavailable")

	// Cache errors. A miss is not a failure and callers fall through to the store.
	ErrCacheMiss = errors.New("cache miss")

	// Broker errors.
	ErrNotConnected = errors.New("broker not connected")

	// Service-level errors.
	ErrorInternal         = errors.New("internal error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")

	// Startup errors.
	ErrNotReady = errors.New("dependencies not ready")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
