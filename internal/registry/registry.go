// Package registry provides thread-safe ordered collections of overlay
// sessions with derived visibility state and change notification.
package registry

import (
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/jmylchreest/overlayd/internal/model"
)

// Subscription identifies a registered observer.
type Subscription uint64

// Observer is invoked after every committed mutation. Observers receive no
// payload; they re-read state through Snapshot.
type Observer func()

type observer struct {
	id Subscription
	fn Observer
}

// Option configures a registry.
type Option func(*options)

type options struct {
	showClass   string
	hiddenClass string
	params      map[string]any
	logger      *slog.Logger
	clock       func() time.Time
}

// WithClassNames overrides the show and hidden class names.
// Blank values keep the defaults.
func WithClassNames(show, hidden string) Option {
	return func(o *options) {
		o.showClass = classNameOrDefault(show, DefaultShowClass)
		o.hiddenClass = classNameOrDefault(hidden, DefaultHiddenClass)
	}
}

// WithBackgroundParameters sets the parameters handed to the backdrop
// renderer. An existing "class" entry is kept as the background class.
// The map is copied.
func WithBackgroundParameters(params map[string]any) Option {
	return func(o *options) {
		o.params = maps.Clone(params)
	}
}

// WithLogger sets the logger used for observer failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the time source used to stamp and expire notifications.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func buildOptions(opts []Option) options {
	o := options{
		showClass:   DefaultShowClass,
		hiddenClass: DefaultHiddenClass,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.params == nil {
		o.params = make(map[string]any)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	return o
}

// Registry is an ordered collection of sessions guarded by a single mutex.
// Every mutation recomputes the visibility class inside the same critical
// section and notifies observers after the lock is released.
type Registry[T model.Record] struct {
	kind   string
	logger *slog.Logger

	mu              sync.Mutex
	records         []T // insertion order
	params          map[string]any
	backgroundClass string
	showClass       string
	hiddenClass     string

	observers []observer
	nextSub   Subscription
}

// New creates an empty registry. kind names the registry in logs.
func New[T model.Record](kind string, opts ...Option) *Registry[T] {
	o := buildOptions(opts)
	r := &Registry[T]{
		kind:            kind,
		logger:          o.logger,
		records:         make([]T, 0),
		params:          o.params,
		backgroundClass: backgroundClassOf(o.params),
		showClass:       o.showClass,
		hiddenClass:     o.hiddenClass,
	}
	r.recomputeLocked()
	return r
}

// Kind returns the registry name.
func (r *Registry[T]) Kind() string {
	return r.kind
}

// Add appends a record and notifies observers. Adding a record that is
// already registered is a no-op and does not notify.
func (r *Registry[T]) Add(record T) {
	r.mu.Lock()
	if r.indexLocked(record) >= 0 {
		r.mu.Unlock()
		return
	}
	r.records = append(r.records, record)
	r.recomputeLocked()
	obs := r.observersLocked()
	r.mu.Unlock()

	r.notify(obs)
}

// Remove deletes the record if present and reports whether it was.
// Removing an absent record is a no-op and does not notify observers.
func (r *Registry[T]) Remove(record T) bool {
	r.mu.Lock()
	if !r.removeLocked(record) {
		r.mu.Unlock()
		return false
	}
	r.recomputeLocked()
	obs := r.observersLocked()
	r.mu.Unlock()

	r.notify(obs)
	return true
}

// Clear removes every record and reports how many were removed.
func (r *Registry[T]) Clear() int {
	r.mu.Lock()
	count := len(r.records)
	if count == 0 {
		r.mu.Unlock()
		return 0
	}
	r.records = make([]T, 0)
	r.recomputeLocked()
	obs := r.observersLocked()
	r.mu.Unlock()

	r.notify(obs)
	return count
}

// Snapshot returns the records sorted by index, ties in insertion order.
// The slice is owned by the caller.
func (r *Registry[T]) Snapshot() []T {
	r.mu.Lock()
	out := make([]T, len(r.records))
	copy(out, r.records)
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order() < out[j].Order()
	})
	return out
}

// Len returns the number of records.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// IsEmpty reports whether the registry holds no records.
func (r *Registry[T]) IsEmpty() bool {
	return r.Len() == 0
}

// Contains reports whether record is currently registered.
func (r *Registry[T]) Contains(record T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexLocked(record) >= 0
}

// VisibilityClass returns the current visibility class string.
func (r *Registry[T]) VisibilityClass() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	class, _ := r.params[ClassKey].(string)
	return class
}

// BackgroundParameters returns a copy of the backdrop parameters, with
// "class" holding the current visibility class.
func (r *Registry[T]) BackgroundParameters() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.params)
}

// SetClassNames replaces the show and hidden class names and notifies
// observers. Blank values restore the defaults.
func (r *Registry[T]) SetClassNames(show, hidden string) {
	r.mu.Lock()
	r.showClass = classNameOrDefault(show, DefaultShowClass)
	r.hiddenClass = classNameOrDefault(hidden, DefaultHiddenClass)
	r.recomputeLocked()
	obs := r.observersLocked()
	r.mu.Unlock()

	r.notify(obs)
}

// Subscribe registers fn to run after every committed mutation.
func (r *Registry[T]) Subscribe(fn Observer) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSub++
	r.observers = append(r.observers, observer{id: r.nextSub, fn: fn})
	return r.nextSub
}

// Unsubscribe removes an observer. Unknown subscriptions are ignored.
func (r *Registry[T]) Unsubscribe(sub Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, o := range r.observers {
		if o.id == sub {
			r.observers = append(r.observers[:i:i], r.observers[i+1:]...)
			return
		}
	}
}

func (r *Registry[T]) indexLocked(record T) int {
	for i, existing := range r.records {
		if existing == record {
			return i
		}
	}
	return -1
}

func (r *Registry[T]) removeLocked(record T) bool {
	idx := r.indexLocked(record)
	if idx < 0 {
		return false
	}
	r.records = append(r.records[:idx], r.records[idx+1:]...)
	return true
}

// recomputeLocked refreshes the derived visibility class. Callers hold mu.
func (r *Registry[T]) recomputeLocked() {
	r.params[ClassKey] = Project(len(r.records) > 0, r.showClass, r.hiddenClass, r.backgroundClass)
}

// observersLocked copies the observer list. Callers hold mu.
func (r *Registry[T]) observersLocked() []observer {
	if len(r.observers) == 0 {
		return nil
	}
	obs := make([]observer, len(r.observers))
	copy(obs, r.observers)
	return obs
}

// notify runs observers outside the lock. A panicking observer is logged
// and does not stop the others.
func (r *Registry[T]) notify(obs []observer) {
	for _, o := range obs {
		r.call(o)
	}
}

func (r *Registry[T]) call(o observer) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("registry observer panicked",
				"registry", r.kind,
				"subscription", o.id,
				"panic", p,
			)
		}
	}()
	o.fn()
}
