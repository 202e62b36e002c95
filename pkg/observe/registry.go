package observe

import (
	"net/netip"
	"sync"

	"github.com/coapkit/coap-go/pkg/wire"
)

// Key uniquely identifies one active observation: the remote endpoint
// together with the request token. Both fields are comparable, so Key
// is usable directly as a map key.
type Key struct {
	Endpoint netip.AddrPort

	// Token holds the raw token bytes. Stored as a string to keep the
	// key comparable; use wire.Token(k.Token) to recover the bytes.
	Token string
}

// NewKey builds the observation key for an endpoint and token.
func NewKey(endpoint netip.AddrPort, token wire.Token) Key {
	return Key{Endpoint: endpoint, Token: string(token)}
}

// String returns a compact representation for logging.
func (k Key) String() string {
	return k.Endpoint.String() + "/" + wire.Token(k.Token).String()
}

// Registry is the concurrency-safe mapping from observation key to the
// freshness record of the last accepted notification. State is held in
// memory only; it starts empty and is never persisted.
//
// All methods internalize locking. The shared and exclusive locks are
// never held nested and never held across calls outside this type.
type Registry struct {
	mu           sync.RWMutex
	observations map[Key]StatusAge
}

// NewRegistry creates an empty observation registry.
func NewRegistry() *Registry {
	return &Registry{
		observations: make(map[Key]StatusAge),
	}
}

// Register adds a new observation with a zero status age and reports
// whether it was created. If the key is already present the existing
// entry is kept untouched and false is returned.
//
// The shared-lock existence check is a fast path only; the recheck
// under the exclusive lock is the source of truth, since the lock
// cannot be upgraded atomically.
func (r *Registry) Register(key Key) bool {
	r.mu.RLock()
	_, exists := r.observations[key]
	r.mu.RUnlock()
	if exists {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.observations[key]; exists {
		return false
	}
	r.observations[key] = StatusAge{}
	return true
}

// Update unconditionally overwrites the status age for key. The caller
// must already have confirmed freshness via IsNewer.
func (r *Registry) Update(key Key, age StatusAge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observations[key] = age
}

// Unregister removes the observation for key, returning the last
// tracked status age and whether an entry existed.
func (r *Registry) Unregister(key Key) (StatusAge, bool) {
	r.mu.RLock()
	_, exists := r.observations[key]
	r.mu.RUnlock()
	if !exists {
		return StatusAge{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	age, exists := r.observations[key]
	if !exists {
		return StatusAge{}, false
	}
	delete(r.observations, key)
	return age, true
}

// Contains reports whether an observation exists for key.
func (r *Registry) Contains(key Key) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.observations[key]
	return exists
}

// Age returns the tracked status age for key, if present.
func (r *Registry) Age(key Key) (StatusAge, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	age, exists := r.observations[key]
	return age, exists
}

// Len returns the number of active observations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observations)
}

// Clear removes all observations (e.g. on engine shutdown).
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observations = make(map[Key]StatusAge)
}

// Keys returns a snapshot of all active observation keys.
func (r *Registry) Keys() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]Key, 0, len(r.observations))
	for key := range r.observations {
		keys = append(keys, key)
	}
	return keys
}
