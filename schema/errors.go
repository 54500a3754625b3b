package schema

import "errors"

var (
	// ErrMalformedEvent indicates a payload that is not a JSON event object.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrMissingEventID indicates an event without a positive id.
	ErrMissingEventID = errors.New("event id missing")
	// ErrInvalidCategory indicates a filter category outside the fixed set.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrMalformedResponse indicates an API response that could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrEventNotFound indicates a requested event does not exist.
	ErrEventNotFound = errors.New("event not found")
)
