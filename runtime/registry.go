package runtime

import (
	"context"
	"sync"

	"feed-lab/contract"
	"feed-lab/domain/dm"
	"feed-lab/domain/event"

	"github.com/google/uuid"
)

type member struct {
	userID dm.UserID
	sink   contract.EventSink
}

// Registry tracks live connections grouped by user identity.
// It is the single shared mutable structure of the subsystem: many connection
// lifecycles mutate it concurrently while broadcasts enumerate it. Membership
// mutation and broadcast enumeration are kept mutually exclusive through the
// RWMutex so an event is never delivered to a connection mid-teardown.
type Registry struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]member
	groups map[dm.UserID]map[uuid.UUID]contract.EventSink
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[uuid.UUID]member),
		groups: make(map[dm.UserID]map[uuid.UUID]contract.EventSink),
	}
}

// Join adds a connection to the group named after its owner's user id.
// Calling Join twice for the same connection id is idempotent.
func (r *Registry) Join(connID uuid.UUID, userID dm.UserID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; ok {
		return
	}
	r.conns[connID] = member{userID: userID, sink: sink}

	if _, ok := r.groups[userID]; !ok {
		r.groups[userID] = make(map[uuid.UUID]contract.EventSink)
	}
	r.groups[userID][connID] = sink
}

// Leave removes a connection from whatever group it belonged to.
// Leaving an unknown or already-removed connection is a no-op, not an error:
// disconnect paths may race with explicit leaves.
func (r *Registry) Leave(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(r.conns, connID)

	if members, ok := r.groups[m.userID]; ok {
		delete(members, connID)
		// If no connection is left in the group, remove the entry entirely
		if len(members) == 0 {
			delete(r.groups, m.userID)
		}
	}
}

// Broadcast delivers the event to every live connection of each listed group.
// Groups with zero live connections are silently skipped: an offline recipient
// is normal, not an error. Sinks are snapshot under the read lock and fed
// outside of it so a slow consumer never extends the critical section.
func (r *Registry) Broadcast(ctx context.Context, groups []dm.UserID, e event.DomainEvent) {
	r.mu.RLock()
	seen := make(map[uuid.UUID]struct{})
	var sinks []contract.EventSink
	for _, userID := range groups {
		for connID, sink := range r.groups[userID] {
			// A connection receives the event at most once, even when the
			// same group id is listed twice.
			if _, dup := seen[connID]; dup {
				continue
			}
			seen[connID] = struct{}{}
			sinks = append(sinks, sink)
		}
	}
	r.mu.RUnlock()

	for _, sink := range sinks {
		// Best effort. A stale or saturated sink must not fail the send.
		_ = sink.Consume(ctx, e)
	}
}

// Count returns the number of live connections currently in a user's group.
func (r *Registry) Count(userID dm.UserID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[userID])
}

// Connections returns the total number of live connections, all groups
// combined. Used by the debug stats endpoint.
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
