package userstate

import (
	"context"
	"sync"
	"time"

	"scopegate/internal/action"
	"scopegate/internal/oauth"
	"scopegate/pkg/logging"
)

// cleanupInterval is how often expired pending entries are swept when a TTL is set.
const cleanupInterval = time.Minute

// UserRecord is everything held for one user. The token and each registry have their
// own lock, so a slow operation on one never blocks the others.
type UserRecord struct {
	tokenMu sync.RWMutex
	token   *oauth.Token

	Contexts      *Registry[*action.Context]
	Continuations *Registry[action.Continuation]
}

func newUserRecord(pendingTTL time.Duration, now func() time.Time) *UserRecord {
	rec := &UserRecord{
		Contexts:      NewRegistry[*action.Context](pendingTTL),
		Continuations: NewRegistry[action.Continuation](pendingTTL),
	}
	rec.Contexts.now = now
	rec.Continuations.now = now
	return rec
}

// Token returns a copy of the stored token.
func (r *UserRecord) Token() (*oauth.Token, bool) {
	r.tokenMu.RLock()
	defer r.tokenMu.RUnlock()

	if r.token == nil {
		return nil, false
	}
	cp := *r.token
	return &cp, true
}

// SetToken replaces the stored token with a copy of t.
func (r *UserRecord) SetToken(t *oauth.Token) {
	var cp *oauth.Token
	if t != nil {
		v := *t
		cp = &v
	}

	r.tokenMu.Lock()
	r.token = cp
	r.tokenMu.Unlock()
}

// MemoryStore keeps user records in process memory.
//
// Locking is two-tier. The store mutex only guards the user map, so creating a record
// happens at most once per user. Everything after that takes the record's own locks,
// which means requests for different users never wait on each other.
//
// With a zero pending TTL, entries live until taken or until the process exits.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*UserRecord

	pendingTTL  time.Duration
	now         func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewMemoryStore creates an in-memory store. When pendingTTL is positive, pending
// contexts and continuations older than it are dropped.
func NewMemoryStore(pendingTTL time.Duration) *MemoryStore {
	s := &MemoryStore{
		users:       make(map[string]*UserRecord),
		pendingTTL:  pendingTTL,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	if pendingTTL > 0 {
		go s.cleanupLoop()
	}

	return s
}

// GetOrCreate returns the user's record, creating it on first use.
func (s *MemoryStore) GetOrCreate(userID string) *UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok {
		rec = newUserRecord(s.pendingTTL, s.now)
		s.users[userID] = rec
		logging.Debug("UserState", "Created record for user=%s", logging.TruncateID(userID))
	}
	return rec
}

func (s *MemoryStore) lookup(userID string) (*UserRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	return rec, ok
}

// GetToken implements Store. It never creates a record.
func (s *MemoryStore) GetToken(_ context.Context, userID string) (*oauth.Token, bool, error) {
	rec, ok := s.lookup(userID)
	if !ok {
		return nil, false, nil
	}
	tok, ok := rec.Token()
	return tok, ok, nil
}

// SetToken implements Store.
func (s *MemoryStore) SetToken(_ context.Context, userID string, token *oauth.Token) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	s.GetOrCreate(userID).SetToken(token)
	return nil
}

// PutContext implements Store.
func (s *MemoryStore) PutContext(_ context.Context, userID string, c *action.Context) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}
	return s.GetOrCreate(userID).Contexts.Put(c)
}

// TakeContext implements Store.
func (s *MemoryStore) TakeContext(_ context.Context, userID, key string) (*action.Context, bool, error) {
	rec, ok := s.lookup(userID)
	if !ok {
		return nil, false, nil
	}
	c, ok := rec.Contexts.Take(key)
	return c, ok, nil
}

// HasContext implements Store. It never creates a record.
func (s *MemoryStore) HasContext(_ context.Context, userID, key string) (bool, error) {
	rec, ok := s.lookup(userID)
	return ok && rec.Contexts.Has(key), nil
}

// PutContinuation implements Store.
func (s *MemoryStore) PutContinuation(_ context.Context, userID string, c action.Continuation) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}
	return s.GetOrCreate(userID).Continuations.Put(c)
}

// TakeContinuation implements Store.
func (s *MemoryStore) TakeContinuation(_ context.Context, userID, key string) (action.Continuation, bool, error) {
	rec, ok := s.lookup(userID)
	if !ok {
		return action.Continuation{}, false, nil
	}
	c, ok := rec.Continuations.Take(key)
	return c, ok, nil
}

// HasContinuation implements Store. It never creates a record.
func (s *MemoryStore) HasContinuation(_ context.Context, userID, key string) (bool, error) {
	rec, ok := s.lookup(userID)
	return ok && rec.Continuations.Has(key), nil
}

// Close stops the background cleanup goroutine. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
	return nil
}

// cleanupLoop periodically removes expired pending entries.
func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup sweeps every user's registries. Records themselves are kept, since they
// may still hold a token.
func (s *MemoryStore) cleanup() int {
	s.mu.Lock()
	records := make([]*UserRecord, 0, len(s.users))
	for _, rec := range s.users {
		records = append(records, rec)
	}
	s.mu.Unlock()

	count := 0
	for _, rec := range records {
		count += rec.Contexts.sweep()
		count += rec.Continuations.sweep()
	}

	if count > 0 {
		logging.Debug("UserState", "Cleaned up %d expired pending entries", count)
	}
	return count
}
