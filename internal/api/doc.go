// Package api provides the JSON-over-HTTP client shared by the remote
// payload store and the remote signer. It handles request and response
// serialization, an optional API key, and retries with exponential backoff
// for transient failures.
//
// # Client Creation
//
// The package provides two ways to create a client:
//
//   - [NewClient]: Struct-based configuration.
//   - [New]: Functional options.
//
// Only the base URL is required. When an API key is configured it is sent in
// the X-API-Key header on every request.
//
// # Retry Behavior
//
// By default, requests are retried up to 3 times for these HTTP status codes:
//
//   - 408 Request Timeout
//   - 429 Too Many Requests
//   - 500 Internal Server Error
//   - 502 Bad Gateway
//   - 503 Service Unavailable
//   - 504 Gateway Timeout
//
// Transport failures are retried as well. A Retry-After header given in
// seconds extends the computed delay. Callers that retry writes rely on the
// server treating an identical rewrite as a no-op.
//
// # Error Handling
//
// Error statuses are returned as [*APIError], which matches these sentinels
// with errors.Is:
//
//   - [ErrUnauthorized]: 401.
//   - [ErrForbidden]: 403.
//   - [ErrNotFound]: 404.
//   - [ErrConflict]: 409.
//   - [ErrRateLimited]: 429.
//
// Transport failures surviving all attempts are returned as [*NetworkError].
package api
