package dbus

import (
	"time"

	"github.com/godbus/dbus/v5"
)

// Urgency levels from the freedesktop notification specification.
const (
	UrgencyLow      = 0
	UrgencyNormal   = 1
	UrgencyCritical = 2
)

// CloseReason represents the reason for closing a notification.
// These values are defined by the freedesktop.org notification specification.
type CloseReason uint32

const (
	// CloseReasonExpired indicates the notification expired (timeout reached).
	CloseReasonExpired CloseReason = 1
	// CloseReasonDismissed indicates the user dismissed the notification.
	CloseReasonDismissed CloseReason = 2
	// CloseReasonClosed indicates the notification was closed via CloseNotification.
	CloseReasonClosed CloseReason = 3
	// CloseReasonUndefined is reserved by the freedesktop protocol.
	CloseReasonUndefined CloseReason = 4
)

// String returns the string representation of the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonExpired:
		return "expired"
	case CloseReasonDismissed:
		return "dismissed"
	case CloseReasonClosed:
		return "closed"
	case CloseReasonUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// Notification holds the arguments of one Notify call.
type Notification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

// Action is one key/label pair offered by the sender.
type Action struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// ParsedActions converts the alternating action array to pairs.
// A trailing key without a label is dropped.
func (n *Notification) ParsedActions() []Action {
	actions := make([]Action, 0, len(n.Actions)/2)
	for i := 0; i+1 < len(n.Actions); i += 2 {
		actions = append(actions, Action{Key: n.Actions[i], Label: n.Actions[i+1]})
	}
	return actions
}

// Timeout describes how long the sender wants the toast shown.
// ok is false when the sender asked for the server default.
// A zero duration with ok true means the toast never expires.
func (n *Notification) Timeout() (d time.Duration, ok bool) {
	if n.ExpireTimeout < 0 {
		return 0, false
	}
	return time.Duration(n.ExpireTimeout) * time.Millisecond, true
}

// Urgency returns the urgency hint, UrgencyNormal when absent or malformed.
func (n *Notification) Urgency() int {
	if b, ok := hint[byte](n.Hints, "urgency"); ok && b <= UrgencyCritical {
		return int(b)
	}
	return UrgencyNormal
}

// Category returns the category hint.
func (n *Notification) Category() string {
	s, _ := hint[string](n.Hints, "category")
	return s
}

// DesktopEntry returns the desktop-entry hint.
func (n *Notification) DesktopEntry() string {
	s, _ := hint[string](n.Hints, "desktop-entry")
	return s
}

// ImagePath returns the image-path hint.
func (n *Notification) ImagePath() string {
	s, _ := hint[string](n.Hints, "image-path")
	return s
}

// Resident reports whether the toast should survive action invocation.
func (n *Notification) Resident() bool {
	b, _ := hint[bool](n.Hints, "resident")
	return b
}

// Transient reports whether the sender marked the toast as transient.
func (n *Notification) Transient() bool {
	b, _ := hint[bool](n.Hints, "transient")
	return b
}

// hint extracts a typed hint value.
func hint[T any](hints map[string]dbus.Variant, key string) (T, bool) {
	var zero T
	v, ok := hints[key]
	if !ok {
		return zero, false
	}
	typed, ok := v.Value().(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// ServerCapabilities lists the capabilities advertised by overlayd.
var ServerCapabilities = []string{
	"actions", // Actions are passed through to the renderer
	"body",
	"icon-static",
}

// ServerInfo contains information about the notification server.
type ServerInfo struct {
	Name        string
	Vendor      string
	Version     string
	SpecVersion string
}

// DefaultServerInfo returns the default server information.
func DefaultServerInfo() ServerInfo {
	return ServerInfo{
		Name:        "overlayd",
		Vendor:      "overlayd",
		Version:     "dev",
		SpecVersion: "1.2",
	}
}
