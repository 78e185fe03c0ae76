// Package client implements the HTTP client for the job service: the
// authoritative job listing (the poll fetcher), job submission, and the
// generation stream transport.
//
// HTTP status errors and transport failures are kept distinguishable
// (StatusError / IsAuthError) because the polling scheduler treats them
// differently: timeouts are retried silently at the next tick, authorization
// failures are surfaced immediately and never retried aggressively.
package client
