// Package userstate holds what scopegate remembers about each end user between
// requests: the access token, and the contexts and continuations waiting on an
// authorization round-trip.
//
// Two backends implement Store. MemoryStore keeps everything in process and is the
// default. RedisStore keeps the same data in Redis so that several instances can
// share it and pending work survives a restart.
//
// Pending entries are single-use: a Take removes the entry it returns, so a key can
// resume at most one piece of work.
package userstate

import (
	"context"

	"scopegate/internal/action"
	"scopegate/internal/oauth"
)

// Store is the per-user state the authorization flow depends on.
type Store interface {
	// GetToken returns the user's token, if one has been stored.
	GetToken(ctx context.Context, userID string) (*oauth.Token, bool, error)

	// SetToken replaces the user's token.
	SetToken(ctx context.Context, userID string, token *oauth.Token) error

	// PutContext registers an action context and returns its fresh key.
	PutContext(ctx context.Context, userID string, c *action.Context) (string, error)

	// TakeContext removes and returns the context stored under key.
	TakeContext(ctx context.Context, userID, key string) (*action.Context, bool, error)

	// HasContext reports whether a context is still pending under key.
	HasContext(ctx context.Context, userID, key string) (bool, error)

	// PutContinuation registers a deferred operation and returns its fresh key.
	PutContinuation(ctx context.Context, userID string, c action.Continuation) (string, error)

	// TakeContinuation removes and returns the continuation stored under key.
	TakeContinuation(ctx context.Context, userID, key string) (action.Continuation, bool, error)

	// HasContinuation reports whether a continuation is still pending under key.
	HasContinuation(ctx context.Context, userID, key string) (bool, error)

	// Close releases background resources.
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
