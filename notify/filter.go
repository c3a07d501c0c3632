// Package notify implements the client-side notification filter: it decides
// whether an incoming delivery event becomes a visible alert, given what the
// client is currently looking at. Removal of an alert never touches
// persisted state.
package notify

import (
	"sort"
	"sync"
	"time"

	"feed-lab/domain/dm"
	"feed-lab/domain/event"
)

type entry struct {
	notification event.MessageReceived
	timer        *time.Timer
}

// Filter holds the undismissed alerts of one client. It is safe for
// concurrent use: the socket read loop feeds it while the UI reads from it.
type Filter struct {
	mu      sync.Mutex
	selfID  dm.UserID
	active  *dm.UserID // currently open conversation partner, nil when none
	ttl     time.Duration
	entries map[dm.MessageID]*entry
}

// NewFilter creates a filter for the given identity. A non-positive ttl
// disables automatic dismissal.
func NewFilter(selfID dm.UserID, ttl time.Duration) *Filter {
	return &Filter{
		selfID:  selfID,
		ttl:     ttl,
		entries: make(map[dm.MessageID]*entry),
	}
}

// SetActiveConversation records which conversation partner is on screen.
// Pass nil when no conversation is open.
func (f *Filter) SetActiveConversation(partner *dm.UserID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = partner
}

// Handle decides the fate of one delivery event and reports whether it
// became a visible notification.
//
// Suppressed when:
//   - the event is not addressed to this client, or
//   - the open conversation already shows the thread the message belongs to,
//     or
//   - an alert with the same message id already exists (duplicate delivery
//     under at-least-once semantics: several active connections, reconnect
//     redelivery).
func (f *Filter) Handle(evt event.MessageReceived) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if evt.ReceiverID != f.selfID {
		return false
	}
	if f.active != nil && (evt.SenderID == *f.active || evt.ReceiverID == *f.active) {
		return false
	}
	if _, exists := f.entries[evt.ID]; exists {
		return false
	}

	e := &entry{notification: evt}
	if f.ttl > 0 {
		id := evt.ID
		e.timer = time.AfterFunc(f.ttl, func() { f.Dismiss(id) })
	}
	f.entries[evt.ID] = e
	return true
}

// Dismiss removes an alert, whether by user action or display timeout.
// Dismissing an unknown id is a no-op.
func (f *Filter) Dismiss(id dm.MessageID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[id]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(f.entries, id)
}

// Active returns the currently visible notifications, oldest first.
func (f *Filter) Active() []event.MessageReceived {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]event.MessageReceived, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.notification)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Close stops every pending dismissal timer.
func (f *Filter) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, e := range f.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(f.entries, id)
	}
}
