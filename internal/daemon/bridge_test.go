package daemon

import (
	"fmt"
	"sync"
	"testing"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/overlayd/internal/config"
	"github.com/jmylchreest/overlayd/internal/dbus"
	"github.com/jmylchreest/overlayd/internal/registry"
)

type closedSignal struct {
	id     uint32
	reason dbus.CloseReason
}

type fakeEmitter struct {
	mu      sync.Mutex
	signals []closedSignal
	actions []string
}

func (e *fakeEmitter) EmitActionInvoked(id uint32, actionKey string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions = append(e.actions, fmt.Sprintf("%d:%s", id, actionKey))
	return nil
}

func (e *fakeEmitter) Actions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.actions...)
}

func (e *fakeEmitter) EmitNotificationClosed(id uint32, reason dbus.CloseReason) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.signals = append(e.signals, closedSignal{id: id, reason: reason})
	return nil
}

func (e *fakeEmitter) Signals() []closedSignal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]closedSignal(nil), e.signals...)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBridge(t *testing.T) (*Bridge, *registry.NotificationRegistry, *fakeEmitter, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	reg := registry.NewNotificationRegistry(registry.WithClock(clock.Now))
	emitter := &fakeEmitter{}
	b := NewBridge(reg, emitter, config.DefaultConfig().Notification, nil)
	return b, reg, emitter, clock
}

func withUrgency(u byte) map[string]godbus.Variant {
	return map[string]godbus.Variant{"urgency": godbus.MakeVariant(u)}
}

func TestBridge_HandleNotify(t *testing.T) {
	b, reg, _, _ := newTestBridge(t)

	b.HandleNotify(&dbus.Notification{
		AppName:       "mail",
		Summary:       "New message",
		Body:          "hello",
		AppIcon:       "mail-unread",
		Actions:       []string{"default", "Open"},
		Hints:         map[string]godbus.Variant{"category": godbus.MakeVariant("email.arrived")},
		ExpireTimeout: -1,
	}, 4)

	s := b.Session(4)
	require.NotNil(t, s)
	assert.Equal(t, ToastComponent, s.Component)
	assert.Equal(t, 1, s.Index)
	assert.True(t, s.AutoClose)
	assert.Equal(t, config.DefaultToastDuration, s.Duration)
	assert.Equal(t, "mail", s.Parameters[ParamAppName])
	assert.Equal(t, "New message", s.Parameters[ParamSummary])
	assert.Equal(t, "mail-unread", s.Parameters[ParamAppIcon])
	assert.Equal(t, "email.arrived", s.Parameters[ParamCategory])
	assert.Equal(t, []dbus.Action{{Key: "default", Label: "Open"}}, s.Parameters[ParamActions])
	assert.Equal(t, uint32(4), s.Parameters[ParamDBusID])

	assert.True(t, reg.Contains(s))
	assert.Equal(t, "show", reg.VisibilityClass())
}

func TestToastDuration(t *testing.T) {
	cfg := config.DefaultConfig().Notification
	capped := cfg
	capped.MaxDuration = config.Duration(2 * time.Second)

	tests := []struct {
		name string
		n    *dbus.Notification
		cfg  config.NotificationConfig
		want time.Duration
	}{
		{"server default", &dbus.Notification{ExpireTimeout: -1}, cfg, config.DefaultToastDuration},
		{"critical default never expires", &dbus.Notification{ExpireTimeout: -1, Hints: withUrgency(2)}, cfg, 0},
		{"explicit never", &dbus.Notification{ExpireTimeout: 0}, cfg, 0},
		{"explicit", &dbus.Notification{ExpireTimeout: 1500}, cfg, 1500 * time.Millisecond},
		{"capped", &dbus.Notification{ExpireTimeout: 60000}, capped, 2 * time.Second},
		{"default capped", &dbus.Notification{ExpireTimeout: -1}, capped, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toastDuration(tt.n, tt.cfg))
		})
	}
}

func TestBridge_OrdersByUrgency(t *testing.T) {
	b, reg, _, _ := newTestBridge(t)

	b.HandleNotify(&dbus.Notification{Summary: "low", Hints: withUrgency(0)}, 1)
	b.HandleNotify(&dbus.Notification{Summary: "normal"}, 2)
	b.HandleNotify(&dbus.Notification{Summary: "critical", Hints: withUrgency(2)}, 3)

	var summaries []any
	for _, s := range reg.Snapshot() {
		summaries = append(summaries, s.Parameters[ParamSummary])
	}
	assert.Equal(t, []any{"critical", "normal", "low"}, summaries)
}

func TestBridge_ReplacesID(t *testing.T) {
	b, reg, emitter, _ := newTestBridge(t)

	b.HandleNotify(&dbus.Notification{Summary: "v1"}, 9)
	first := b.Session(9)
	b.HandleNotify(&dbus.Notification{Summary: "v2", ReplacesID: 9}, 9)
	second := b.Session(9)

	assert.NotSame(t, first, second)
	assert.False(t, reg.Contains(first))
	assert.True(t, reg.Contains(second))
	assert.Equal(t, 1, reg.Len())
	assert.Empty(t, emitter.Signals(), "replacement does not close the notification")
}

func TestBridge_HandleClose(t *testing.T) {
	b, reg, _, _ := newTestBridge(t)

	b.HandleNotify(&dbus.Notification{Summary: "x"}, 1)

	assert.True(t, b.HandleClose(1))
	assert.False(t, b.HandleClose(1), "second close is a no-op")
	assert.False(t, b.HandleClose(42), "unknown id")
	assert.True(t, reg.IsEmpty())
	assert.Equal(t, "hidden", reg.VisibilityClass())
	assert.Zero(t, b.Count())
}

func TestBridge_EmitsExpired(t *testing.T) {
	b, reg, emitter, clock := newTestBridge(t)

	b.HandleNotify(&dbus.Notification{Summary: "short", ExpireTimeout: 1000}, 1)
	b.HandleNotify(&dbus.Notification{Summary: "sticky", ExpireTimeout: 0}, 2)

	clock.Advance(2 * time.Second)
	expired := reg.CloseExpired()

	require.Len(t, expired, 1)
	assert.Equal(t, []closedSignal{{id: 1, reason: dbus.CloseReasonExpired}}, emitter.Signals())
	assert.Nil(t, b.Session(1))
	assert.NotNil(t, b.Session(2))
	assert.False(t, b.HandleClose(1), "expired toast cannot be closed again")
}

func TestBridge_ExpiredAfterReplaceIsSilent(t *testing.T) {
	b, reg, emitter, clock := newTestBridge(t)

	b.HandleNotify(&dbus.Notification{Summary: "v1", ExpireTimeout: 1000}, 5)
	old := b.Session(5)

	// Leave the old toast in place while a replacement claims the id.
	b.mu.Lock()
	b.byDBusID[5] = nil
	b.mu.Unlock()
	b.HandleNotify(&dbus.Notification{Summary: "v2", ExpireTimeout: 0}, 5)
	require.True(t, reg.Contains(old))

	clock.Advance(2 * time.Second)
	reg.CloseExpired()

	assert.Empty(t, emitter.Signals())
	assert.NotNil(t, b.Session(5))
}

func TestBridge_Dismiss(t *testing.T) {
	b, reg, emitter, _ := newTestBridge(t)

	b.HandleNotify(&dbus.Notification{Summary: "x"}, 3)
	s := b.Session(3)

	assert.True(t, b.Dismiss(s))
	assert.False(t, b.Dismiss(s))
	assert.True(t, reg.IsEmpty())
	assert.Equal(t, []closedSignal{{id: 3, reason: dbus.CloseReasonDismissed}}, emitter.Signals())
}

func TestBridge_InvokeAction(t *testing.T) {
	b, reg, emitter, _ := newTestBridge(t)

	b.HandleNotify(&dbus.Notification{
		Summary: "update ready",
		Actions: []string{"default", "Open", "later", "Later"},
	}, 9)
	s := b.Session(9)

	err := b.InvokeAction(s, "missing")
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Empty(t, emitter.Actions())

	require.NoError(t, b.InvokeAction(s, "later"))
	assert.Equal(t, []string{"9:later"}, emitter.Actions())
	assert.Equal(t, []closedSignal{{id: 9, reason: dbus.CloseReasonDismissed}}, emitter.Signals())
	assert.False(t, reg.Contains(s))
	assert.Nil(t, b.Session(9))

	assert.ErrorIs(t, b.InvokeAction(s, "later"), ErrToastClosed)
	assert.Len(t, emitter.Actions(), 1)
}

func TestBridge_InvokeActionResident(t *testing.T) {
	b, reg, emitter, _ := newTestBridge(t)

	b.HandleNotify(&dbus.Notification{
		Summary: "player",
		Actions: []string{"pause", "Pause"},
		Hints:   map[string]godbus.Variant{"resident": godbus.MakeVariant(true)},
	}, 11)
	s := b.Session(11)

	require.NoError(t, b.InvokeAction(s, "pause"))
	require.NoError(t, b.InvokeAction(s, "pause"))
	assert.Equal(t, []string{"11:pause", "11:pause"}, emitter.Actions())
	assert.Empty(t, emitter.Signals())
	assert.True(t, reg.Contains(s))
}

func TestBridge_InvokeActionWithoutSender(t *testing.T) {
	b, reg, emitter, _ := newTestBridge(t)

	s := b.Post(&dbus.Notification{Summary: "local", Actions: []string{"default", "Open"}})
	require.NoError(t, b.InvokeAction(s, "default"))
	assert.Empty(t, emitter.Actions())
	assert.False(t, reg.Contains(s))
}

func TestBridge_Post(t *testing.T) {
	b, reg, emitter, clock := newTestBridge(t)

	s := b.Post(&dbus.Notification{Summary: "internal", ExpireTimeout: 1000})
	assert.True(t, reg.Contains(s))
	assert.NotContains(t, s.Parameters, ParamDBusID)
	assert.Zero(t, b.Count())

	clock.Advance(2 * time.Second)
	reg.CloseExpired()
	assert.Empty(t, emitter.Signals(), "toasts without a sender emit nothing")
}

func TestBridge_ConcurrentNotifyAndClose(t *testing.T) {
	b, reg, _, _ := newTestBridge(t)

	var wg sync.WaitGroup
	for i := uint32(1); i <= 50; i++ {
		wg.Add(1)
		go func(id uint32) {
			defer wg.Done()
			b.HandleNotify(&dbus.Notification{Summary: "n"}, id)
			b.HandleClose(id)
		}(i)
	}
	wg.Wait()

	assert.True(t, reg.IsEmpty())
	assert.Zero(t, b.Count())
}
