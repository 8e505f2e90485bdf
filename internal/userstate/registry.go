package userstate

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type registryEntry[V any] struct {
	value     V
	createdAt time.Time
}

// Registry maps unguessable keys to pending values. Every value can be taken once.
type Registry[V any] struct {
	mu      sync.Mutex
	entries map[string]registryEntry[V]

	// ttl bounds how long an entry may wait. Zero keeps entries until taken.
	ttl time.Duration
	now func() time.Time
}

// NewRegistry creates an empty registry. A zero ttl disables expiry.
func NewRegistry[V any](ttl time.Duration) *Registry[V] {
	return &Registry[V]{
		entries: make(map[string]registryEntry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores v under a new random key and returns the key.
func (r *Registry[V]) Put(v V) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", fmt.Errorf("failed to generate registry key: %w", err)
		}
		key := id.String()
		if _, exists := r.entries[key]; exists {
			continue
		}
		r.entries[key] = registryEntry[V]{value: v, createdAt: r.now()}
		return key, nil
	}
}

// Take removes and returns the value stored under key. An expired entry is removed
// and reported as absent.
func (r *Registry[V]) Take(key string) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero V
	e, ok := r.entries[key]
	if !ok {
		return zero, false
	}
	delete(r.entries, key)

	if r.expired(e, r.now()) {
		return zero, false
	}
	return e.value, true
}

// Has reports whether key is pending without taking it. Expired entries count
// as absent.
func (r *Registry[V]) Has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	return ok && !r.expired(e, r.now())
}

// Len returns the number of entries, including expired ones not yet swept.
func (r *Registry[V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// sweep removes expired entries and returns how many were dropped.
func (r *Registry[V]) sweep() int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	count := 0
	for key, e := range r.entries {
		if r.expired(e, now) {
			delete(r.entries, key)
			count++
		}
	}
	return count
}

func (r *Registry[V]) expired(e registryEntry[V], now time.Time) bool {
	return r.ttl > 0 && now.Sub(e.createdAt) > r.ttl
}
