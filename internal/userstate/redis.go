package userstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"scopegate/internal/action"
	"scopegate/internal/oauth"
	"scopegate/pkg/logging"
)

const (
	// DefaultKeyPrefix namespaces every key written by RedisStore.
	DefaultKeyPrefix = "scopegate:"

	// DefaultRedisPendingTTL applies when no pending TTL is configured, so that
	// abandoned round-trips do not accumulate in Redis forever.
	DefaultRedisPendingTTL = 24 * time.Hour

	// tokenExpiryBuffer keeps a token key around for a while after the token expires.
	// Expiry is not enforced on read; this only bounds how long Redis holds the key.
	tokenExpiryBuffer = 24 * time.Hour
)

// RedisConfig describes how to reach Redis.
type RedisConfig struct {
	URL            string
	ConnectTimeout time.Duration
	RetryAttempts  int
	RetryInterval  time.Duration
}

// ConnectRedis parses the URL and pings the server until it answers or the
// retry budget runs out.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 2 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Join(ErrInvalidRedisURL, err)
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.RetryAttempts; attempt++ {
		client := redis.NewClient(opts)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		logging.Warn("UserState", "Redis ping failed (attempt %d/%d): %v", attempt, cfg.RetryAttempts, lastErr)

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}

	return nil, errors.Join(ErrRedisNotReady, lastErr)
}

// storedToken is the persisted form of oauth.Token. oauth.Token redacts its secret
// when marshaled, so the plain value is copied here on purpose.
type storedToken struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
	Scope       string    `json:"scope,omitempty"`
}

// RedisStore keeps user state in Redis. Pending entries are written with SET NX and
// removed with GETDEL, so each key is issued once and taken at most once even when
// several instances share the database.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	pendingTTL time.Duration
}

// NewRedisStore wraps a connected client. The store owns the client and closes it.
func NewRedisStore(client *redis.Client, prefix string, pendingTTL time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if pendingTTL <= 0 {
		pendingTTL = DefaultRedisPendingTTL
	}
	return &RedisStore{client: client, prefix: prefix, pendingTTL: pendingTTL}
}

func (s *RedisStore) tokenKey(userID string) string {
	return s.prefix + "user:" + userID + ":token"
}

func (s *RedisStore) contextKey(userID, key string) string {
	return s.prefix + "user:" + userID + ":ctx:" + key
}

func (s *RedisStore) continuationKey(userID, key string) string {
	return s.prefix + "user:" + userID + ":cont:" + key
}

// GetToken implements Store.
func (s *RedisStore) GetToken(ctx context.Context, userID string) (*oauth.Token, bool, error) {
	data, err := s.client.Get(ctx, s.tokenKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load token: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, false, errors.Join(ErrCorruptEntry, err)
	}

	return &oauth.Token{
		AccessToken: oauth.NewRedactedToken(st.AccessToken),
		TokenType:   st.TokenType,
		ExpiresAt:   st.ExpiresAt,
		Scope:       st.Scope,
	}, true, nil
}

// SetToken implements Store.
func (s *RedisStore) SetToken(ctx context.Context, userID string, token *oauth.Token) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	if token == nil {
		return s.client.Del(ctx, s.tokenKey(userID)).Err()
	}

	data, err := json.Marshal(storedToken{
		AccessToken: token.AccessToken.Value(),
		TokenType:   token.TokenType,
		ExpiresAt:   token.ExpiresAt,
		Scope:       token.Scope,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize token: %w", err)
	}

	var ttl time.Duration
	if !token.ExpiresAt.IsZero() {
		ttl = max(time.Until(token.ExpiresAt), 0) + tokenExpiryBuffer
	}

	if err := s.client.Set(ctx, s.tokenKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// PutContext implements Store.
func (s *RedisStore) PutContext(ctx context.Context, userID string, c *action.Context) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}
	return s.put(ctx, func(key string) string { return s.contextKey(userID, key) }, c)
}

// TakeContext implements Store.
func (s *RedisStore) TakeContext(ctx context.Context, userID, key string) (*action.Context, bool, error) {
	var c action.Context
	ok, err := s.take(ctx, s.contextKey(userID, key), &c)
	if err != nil || !ok {
		return nil, false, err
	}
	return &c, true, nil
}

// HasContext implements Store.
func (s *RedisStore) HasContext(ctx context.Context, userID, key string) (bool, error) {
	return s.has(ctx, s.contextKey(userID, key))
}

// PutContinuation implements Store.
func (s *RedisStore) PutContinuation(ctx context.Context, userID string, c action.Continuation) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}
	return s.put(ctx, func(key string) string { return s.continuationKey(userID, key) }, c)
}

// TakeContinuation implements Store.
func (s *RedisStore) TakeContinuation(ctx context.Context, userID, key string) (action.Continuation, bool, error) {
	var c action.Continuation
	ok, err := s.take(ctx, s.continuationKey(userID, key), &c)
	if err != nil || !ok {
		return action.Continuation{}, false, err
	}
	return c, true, nil
}

// HasContinuation implements Store.
func (s *RedisStore) HasContinuation(ctx context.Context, userID, key string) (bool, error) {
	return s.has(ctx, s.continuationKey(userID, key))
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) put(ctx context.Context, redisKey func(string) string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize pending entry: %w", err)
	}

	for {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", fmt.Errorf("failed to generate registry key: %w", err)
		}
		key := id.String()

		created, err := s.client.SetNX(ctx, redisKey(key), data, s.pendingTTL).Result()
		if err != nil {
			return "", fmt.Errorf("failed to store pending entry: %w", err)
		}
		if created {
			return key, nil
		}
	}
}

func (s *RedisStore) take(ctx context.Context, redisKey string, v any) (bool, error) {
	data, err := s.client.GetDel(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to take pending entry: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Join(ErrCorruptEntry, err)
	}
	return true, nil
}

func (s *RedisStore) has(ctx context.Context, redisKey string) (bool, error) {
	n, err := s.client.Exists(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check pending entry: %w", err)
	}
	return n > 0, nil
}
