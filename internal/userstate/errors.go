package userstate

import "errors"

var (
	// ErrEmptyUserID is returned when an operation is called without a user id.
	ErrEmptyUserID = errors.New("userstate: user id is required")

	// ErrInvalidRedisURL is returned when the Redis connection URL cannot be parsed.
	ErrInvalidRedisURL = errors.New("userstate: failed to parse redis connection URL")

	// ErrRedisNotReady is returned when Redis did not answer a ping within the retry budget.
	ErrRedisNotReady = errors.New("userstate: redis did not become ready within the given time period")

	// ErrCorruptEntry is returned when a persisted entry cannot be decoded.
	ErrCorruptEntry = errors.New("userstate: stored entry is corrupt")
)
