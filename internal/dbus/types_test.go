package dbus

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

func TestCloseReason_String(t *testing.T) {
	tests := []struct {
		reason CloseReason
		want   string
	}{
		{CloseReasonExpired, "expired"},
		{CloseReasonDismissed, "dismissed"},
		{CloseReasonClosed, "closed"},
		{CloseReasonUndefined, "undefined"},
		{CloseReason(99), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.reason.String())
		})
	}
}

func TestNotification_Timeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout int32
		want    time.Duration
		wantOK  bool
	}{
		{"server default", -1, 0, false},
		{"never", 0, 0, true},
		{"milliseconds", 2500, 2500 * time.Millisecond, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Notification{ExpireTimeout: tt.timeout}
			got, ok := n.Timeout()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestNotification_Urgency(t *testing.T) {
	tests := []struct {
		name  string
		hints map[string]dbus.Variant
		want  int
	}{
		{"absent", nil, UrgencyNormal},
		{"low", map[string]dbus.Variant{"urgency": dbus.MakeVariant(byte(0))}, UrgencyLow},
		{"critical", map[string]dbus.Variant{"urgency": dbus.MakeVariant(byte(2))}, UrgencyCritical},
		{"out of range", map[string]dbus.Variant{"urgency": dbus.MakeVariant(byte(7))}, UrgencyNormal},
		{"wrong type", map[string]dbus.Variant{"urgency": dbus.MakeVariant("high")}, UrgencyNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Notification{Hints: tt.hints}
			assert.Equal(t, tt.want, n.Urgency())
		})
	}
}

func TestNotification_StringHints(t *testing.T) {
	n := &Notification{Hints: map[string]dbus.Variant{
		"category":      dbus.MakeVariant("email.arrived"),
		"desktop-entry": dbus.MakeVariant("thunderbird"),
		"image-path":    dbus.MakeVariant("/tmp/a.png"),
		"resident":      dbus.MakeVariant(true),
	}}

	assert.Equal(t, "email.arrived", n.Category())
	assert.Equal(t, "thunderbird", n.DesktopEntry())
	assert.Equal(t, "/tmp/a.png", n.ImagePath())
	assert.True(t, n.Resident())
	assert.False(t, n.Transient())
}

func TestNotification_ParsedActions(t *testing.T) {
	n := &Notification{Actions: []string{"default", "Open", "reply", "Reply", "dangling"}}

	assert.Equal(t, []Action{
		{Key: "default", Label: "Open"},
		{Key: "reply", Label: "Reply"},
	}, n.ParsedActions())
}
