// Package client contains the HTTP client used by authctl to talk to the
// authkeeper server.
//
// # Overview
//
// Client is the transport-agnostic contract (Register, Login, Health).
// HTTPClient implements it over JSON/HTTP and maps server responses onto
// sentinel errors:
//
//   - ErrUnavailable: the server could not be reached or answered 5xx.
//   - ErrUserExists: registration was refused because the email is taken.
//   - ErrInvalidCredentials: login was refused.
//
// Any other non-2xx answer is returned as *APIError.
//
// All operations accept context.Context and honor cancellation and timeouts.
package client
