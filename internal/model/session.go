// Package model defines the session records tracked by the overlay registries.
package model

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Record is the capability shared by every session kind.
// Implementations are used by pointer so that a registry can match records
// by identity.
type Record interface {
	comparable
	ID() string
	Order() int
}

// Validation errors.
var (
	ErrEmptyIdentifier = errors.New("identifier cannot be empty")
	ErrEmptyComponent  = errors.New("component cannot be empty")
)

// NewID returns a fresh ULID string for hosts that do not assign their own
// session identifiers.
func NewID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		// crypto/rand does not fail on supported platforms; fall back to
		// the monotonic default entropy anyway.
		return ulid.Make().String()
	}
	return id.String()
}

// DialogSession describes one open modal dialog.
type DialogSession struct {
	Identifier string         `json:"identifier" yaml:"identifier"`
	Component  string         `json:"component" yaml:"component"`   // Opaque handle for the renderer
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Index      int            `json:"index" yaml:"index"` // Display order, ascending
}

// NewDialogSession creates a dialog session with a generated identifier.
func NewDialogSession(component string, index int, params map[string]any) *DialogSession {
	return &DialogSession{
		Identifier: NewID(),
		Component:  component,
		Parameters: params,
		Index:      index,
	}
}

// ID returns the caller-assigned identifier.
func (d *DialogSession) ID() string { return d.Identifier }

// Order returns the display index.
func (d *DialogSession) Order() int { return d.Index }

// Validate checks that the dialog has the fields a renderer needs.
func (d *DialogSession) Validate() error {
	return validate(d.Identifier, d.Component)
}

// NotificationSession describes one notification toast.
type NotificationSession struct {
	Identifier string         `json:"identifier" yaml:"identifier"`
	Component  string         `json:"component" yaml:"component"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Index      int            `json:"index" yaml:"index"`

	StartedAt time.Time     `json:"started_at" yaml:"started_at"` // Stamped on insertion when zero
	Duration  time.Duration `json:"duration" yaml:"duration"`     // Only meaningful with AutoClose
	AutoClose bool          `json:"auto_close" yaml:"auto_close"`
}

// NewNotificationSession creates a notification session with a generated
// identifier. A positive duration makes the toast close automatically.
func NewNotificationSession(component string, index int, duration time.Duration, params map[string]any) *NotificationSession {
	return &NotificationSession{
		Identifier: NewID(),
		Component:  component,
		Parameters: params,
		Index:      index,
		Duration:   duration,
		AutoClose:  duration > 0,
	}
}

// ID returns the caller-assigned identifier.
func (n *NotificationSession) ID() string { return n.Identifier }

// Order returns the display index.
func (n *NotificationSession) Order() int { return n.Index }

// Validate checks that the notification has the fields a renderer needs.
func (n *NotificationSession) Validate() error {
	if err := validate(n.Identifier, n.Component); err != nil {
		return fmt.Errorf("notification: %w", err)
	}
	return nil
}

// ExpiresAt returns the deadline of an auto-close toast.
// The second result is false for toasts that never expire.
func (n *NotificationSession) ExpiresAt() (time.Time, bool) {
	if !n.AutoClose {
		return time.Time{}, false
	}
	return n.StartedAt.Add(n.Duration), true
}

// Expired reports whether the toast is past its deadline at now.
// A non-positive duration counts as already expired.
func (n *NotificationSession) Expired(now time.Time) bool {
	deadline, ok := n.ExpiresAt()
	if !ok {
		return false
	}
	if n.Duration <= 0 {
		return true
	}
	return now.After(deadline)
}

// Remaining returns the time left before expiry, or zero when the toast is
// expired or never expires.
func (n *NotificationSession) Remaining(now time.Time) time.Duration {
	deadline, ok := n.ExpiresAt()
	if !ok || n.Expired(now) {
		return 0
	}
	return deadline.Sub(now)
}

func validate(identifier, component string) error {
	if identifier == "" {
		return ErrEmptyIdentifier
	}
	if component == "" {
		return ErrEmptyComponent
	}
	return nil
}
