// Package registry maps participant identities to compact user handles.
//
// Handles are dense positive integers allocated lazily on first use and
// never reused. Handle 0 is reserved for synthetic orders and is never
// handed out.
package registry

import (
	"errors"
	"sync"

	"batchauction/infra/sequence"
)

// UserID is a participant handle.
type UserID = uint64

var (
	ErrAlreadyRegistered = errors.New("registry: user already registered")
	ErrEmptyIdentity     = errors.New("registry: empty identity")
)

// Registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	seq    *sequence.Sequencer
	ids    map[string]UserID
	owners map[UserID]string
}

func New() *Registry {
	return &Registry{
		seq:    sequence.New(0),
		ids:    make(map[string]UserID),
		owners: make(map[UserID]string),
	}
}

// GetOrCreateID returns the handle bound to identity, allocating the next
// one when the identity is new. Repeated calls are always safe.
func (r *Registry) GetOrCreateID(identity string) (UserID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.ids[identity]; ok {
		return id, false
	}
	return r.bind(identity), true
}

// Register is the explicit pre-registration path. Unlike GetOrCreateID it
// fails for an identity that already has a handle.
func (r *Registry) Register(identity string) (UserID, error) {
	if identity == "" {
		return 0, ErrEmptyIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[identity]; ok {
		return 0, ErrAlreadyRegistered
	}
	return r.bind(identity), nil
}

// Lookup returns the handle of identity without allocating.
func (r *Registry) Lookup(identity string) (UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.ids[identity]
	return id, ok
}

// Identity is the reverse lookup used to pay out proceeds.
func (r *Registry) Identity(id UserID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.owners[id]
	return identity, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// Entries returns every binding, used by the snapshot writer.
func (r *Registry) Entries() map[UserID]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[UserID]string, len(r.owners))
	for id, identity := range r.owners {
		out[id] = identity
	}
	return out
}

// NextID is the handle the next new identity will get. It allocates
// nothing; callers that bind it later with Restore must keep other
// allocations out in between.
func (r *Registry) NextID() UserID {
	return r.seq.Current() + 1
}

// Restore binds identity to a known handle and moves the allocator past
// id. Used for snapshots, replay and deferred bindings.
func (r *Registry) Restore(id UserID, identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ids[identity] = id
	r.owners[id] = identity
	if id > r.seq.Current() {
		r.seq.Reset(id)
	}
}

func (r *Registry) bind(identity string) UserID {
	id := r.seq.Next()
	r.ids[identity] = id
	r.owners[id] = identity
	return id
}
