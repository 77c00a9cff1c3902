package registry

import (
	"maps"
	"sort"
	"time"

	"github.com/jmylchreest/overlayd/internal/model"
)

// ExpiredHandler receives the notifications removed by one expiry sweep.
type ExpiredHandler func(expired []*model.NotificationSession)

// NotificationRegistry tracks the visible notification toasts and removes
// auto-close toasts once they pass their deadline. Every read and mutation
// sweeps expired toasts first, so all accessors agree between scheduler
// ticks.
type NotificationRegistry struct {
	base *Registry[*model.NotificationSession]

	clock     func() time.Time
	onExpired []ExpiredHandler // guarded by base.mu
}

// NewNotificationRegistry creates an empty notification registry.
func NewNotificationRegistry(opts ...Option) *NotificationRegistry {
	o := buildOptions(opts)
	return &NotificationRegistry{
		base:  New[*model.NotificationSession]("notification", opts...),
		clock: o.clock,
	}
}

// Kind returns the registry name.
func (r *NotificationRegistry) Kind() string {
	return r.base.Kind()
}

// Now returns the registry clock's current time.
func (r *NotificationRegistry) Now() time.Time {
	return r.clock()
}

// Add inserts a notification, stamping StartedAt when it is zero. Adding a
// notification that is already registered is a no-op.
func (r *NotificationRegistry) Add(n *model.NotificationSession) {
	r.withSweep(func() bool {
		if r.base.indexLocked(n) >= 0 {
			return false
		}
		if n.StartedAt.IsZero() {
			n.StartedAt = r.clock()
		}
		r.base.records = append(r.base.records, n)
		return true
	})
}

// Notify shows a notification toast.
func (r *NotificationRegistry) Notify(n *model.NotificationSession) {
	r.Add(n)
}

// Remove deletes n if present and reports whether it was.
func (r *NotificationRegistry) Remove(n *model.NotificationSession) bool {
	var removed bool
	r.withSweep(func() bool {
		removed = r.base.removeLocked(n)
		return removed
	})
	return removed
}

// Close removes a notification. Closing a toast that already expired or
// was closed is a no-op.
func (r *NotificationRegistry) Close(n *model.NotificationSession) bool {
	return r.Remove(n)
}

// Clear removes every notification that has not expired and reports how
// many were removed. Expired ones go through the expiry handlers.
func (r *NotificationRegistry) Clear() int {
	var count int
	r.withSweep(func() bool {
		count = len(r.base.records)
		r.base.records = make([]*model.NotificationSession, 0)
		return count > 0
	})
	return count
}

// Len returns the number of live notifications.
func (r *NotificationRegistry) Len() int {
	var n int
	r.withSweep(func() bool {
		n = len(r.base.records)
		return false
	})
	return n
}

// IsEmpty reports whether no live notification is registered.
func (r *NotificationRegistry) IsEmpty() bool {
	return r.Len() == 0
}

// Contains reports whether n is registered and not expired.
func (r *NotificationRegistry) Contains(n *model.NotificationSession) bool {
	var found bool
	r.withSweep(func() bool {
		found = r.base.indexLocked(n) >= 0
		return false
	})
	return found
}

// VisibilityClass returns the current visibility class string.
func (r *NotificationRegistry) VisibilityClass() string {
	var class string
	r.withSweep(func() bool {
		class, _ = r.base.params[ClassKey].(string)
		return false
	})
	return class
}

// BackgroundParameters returns a copy of the backdrop parameters.
func (r *NotificationRegistry) BackgroundParameters() map[string]any {
	var params map[string]any
	r.withSweep(func() bool {
		params = maps.Clone(r.base.params)
		return false
	})
	return params
}

// SetClassNames replaces the show and hidden class names.
func (r *NotificationRegistry) SetClassNames(show, hidden string) {
	r.base.SetClassNames(show, hidden)
}

// Subscribe registers fn to run after every committed mutation.
func (r *NotificationRegistry) Subscribe(fn Observer) Subscription {
	return r.base.Subscribe(fn)
}

// Unsubscribe removes an observer.
func (r *NotificationRegistry) Unsubscribe(sub Subscription) {
	r.base.Unsubscribe(sub)
}

// Lookup returns the first live notification with the given identifier.
func (r *NotificationRegistry) Lookup(id string) *model.NotificationSession {
	var found *model.NotificationSession
	r.withSweep(func() bool {
		for _, n := range r.base.records {
			if n.Identifier == id {
				found = n
				break
			}
		}
		return false
	})
	return found
}

// OnExpired registers a handler that runs after each sweep that removed
// at least one notification.
func (r *NotificationRegistry) OnExpired(h ExpiredHandler) {
	r.base.mu.Lock()
	defer r.base.mu.Unlock()
	r.onExpired = append(r.onExpired, h)
}

// CloseExpired removes every auto-close notification past its deadline in
// one critical section. Observers are notified once per sweep, and only when
// something was removed. The removed notifications are returned.
func (r *NotificationRegistry) CloseExpired() []*model.NotificationSession {
	return r.withSweep(func() bool { return false })
}

// Snapshot sweeps expired notifications and returns the remaining ones
// sorted by index, ties in insertion order.
func (r *NotificationRegistry) Snapshot() []*model.NotificationSession {
	var out []*model.NotificationSession
	r.withSweep(func() bool {
		out = make([]*model.NotificationSession, len(r.base.records))
		copy(out, r.base.records)
		return false
	})

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Index < out[j].Index
	})
	return out
}

// withSweep runs fn under the lock after removing expired notifications.
// fn reports whether it changed the records. Observers are notified once
// when the sweep or fn changed anything, and expiry handlers run after them.
// The swept notifications are returned.
func (r *NotificationRegistry) withSweep(fn func() bool) []*model.NotificationSession {
	r.base.mu.Lock()
	expired := r.sweepLocked(r.clock())
	changed := fn()
	if !changed && len(expired) == 0 {
		r.base.mu.Unlock()
		return nil
	}
	if changed {
		r.base.recomputeLocked()
	}
	obs := r.base.observersLocked()
	var handlers []ExpiredHandler
	if len(expired) > 0 {
		handlers = r.expiredHandlersLocked()
	}
	r.base.mu.Unlock()

	r.base.notify(obs)
	r.runExpiredHandlers(handlers, expired)
	return expired
}

// sweepLocked removes expired records, keeping the order of the rest, and
// recomputes visibility when anything was removed. Callers hold mu.
func (r *NotificationRegistry) sweepLocked(now time.Time) []*model.NotificationSession {
	var expired []*model.NotificationSession
	kept := r.base.records[:0]
	for _, n := range r.base.records {
		if n.Expired(now) {
			expired = append(expired, n)
			continue
		}
		kept = append(kept, n)
	}
	if len(expired) == 0 {
		return nil
	}
	// Clear the tail so removed records are not retained by the backing array.
	for i := len(kept); i < len(r.base.records); i++ {
		r.base.records[i] = nil
	}
	r.base.records = kept
	r.base.recomputeLocked()
	return expired
}

func (r *NotificationRegistry) expiredHandlersLocked() []ExpiredHandler {
	if len(r.onExpired) == 0 {
		return nil
	}
	handlers := make([]ExpiredHandler, len(r.onExpired))
	copy(handlers, r.onExpired)
	return handlers
}

func (r *NotificationRegistry) runExpiredHandlers(handlers []ExpiredHandler, expired []*model.NotificationSession) {
	for _, h := range handlers {
		r.base.call(observer{fn: func() { h(expired) }})
	}
}
