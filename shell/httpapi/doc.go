// Package httpapi exposes the custody engine, the registry and the history queries as a JSON
// HTTP API built on echo.
//
// Routes live under /v1. Errors are rendered as {"message": "..."} with the status derived from
// the custody error sentinels. Store aborts (custody.ErrConcurrencyConflict) are retried with
// exponential backoff before they are reported as 409 with "retryable": true.
package httpapi
