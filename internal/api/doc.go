// Package api defines wire-format types and converters for the job service's
// REST endpoints. It translates payloads into internal job models so the rest
// of the client never couples to transport shapes.
//
// DTOs use snake_case JSON tags matching the service. Timestamps use RFC3339
// with milliseconds. StreamEvent covers all three line shapes of the
// generation stream (token, done, error); the stream decoder dispatches on
// which fields are populated.
package api
