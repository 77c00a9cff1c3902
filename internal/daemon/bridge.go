package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/overlayd/internal/config"
	"github.com/jmylchreest/overlayd/internal/dbus"
	"github.com/jmylchreest/overlayd/internal/model"
	"github.com/jmylchreest/overlayd/internal/registry"
)

// ToastComponent is the component name given to notification toasts.
const ToastComponent = "toast"

// Parameter keys set on toast sessions.
const (
	ParamAppName  = "app_name"
	ParamAppIcon  = "app_icon"
	ParamSummary  = "summary"
	ParamBody     = "body"
	ParamActions  = "actions"
	ParamUrgency  = "urgency"
	ParamCategory = "category"
	ParamResident = "resident"
	ParamDBusID   = "dbus_id"
)

var (
	// ErrUnknownAction is returned when a toast does not offer an action key.
	ErrUnknownAction = errors.New("toast has no such action")
	// ErrToastClosed is returned when acting on a toast that is no longer shown.
	ErrToastClosed = errors.New("toast is not shown")
)

// Emitter sends NotificationClosed and ActionInvoked signals back to the
// sender.
type Emitter interface {
	EmitNotificationClosed(id uint32, reason dbus.CloseReason) error
	EmitActionInvoked(id uint32, actionKey string) error
}

// Bridge turns D-Bus notifications into toast sessions and keeps the
// mapping between D-Bus IDs and sessions.
type Bridge struct {
	mu     sync.Mutex
	logger *slog.Logger

	registry *registry.NotificationRegistry
	emitter  Emitter
	cfg      config.NotificationConfig

	// Map D-Bus ID to the toast currently shown for it
	byDBusID map[uint32]*model.NotificationSession
}

// NewBridge creates a bridge feeding reg. emitter may be nil when no bus
// connection exists.
func NewBridge(reg *registry.NotificationRegistry, emitter Emitter, cfg config.NotificationConfig, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		logger:   logger,
		registry: reg,
		emitter:  emitter,
		cfg:      cfg,
		byDBusID: make(map[uint32]*model.NotificationSession),
	}
	reg.OnExpired(b.handleExpired)
	return b
}

// SetConfig replaces the notification settings used for new toasts.
func (b *Bridge) SetConfig(cfg config.NotificationConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
}

// SetEmitter replaces the signal emitter.
func (b *Bridge) SetEmitter(emitter Emitter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitter = emitter
}

// HandleNotify shows n as a toast under the given D-Bus ID. A toast already
// shown for the same ID is replaced without a NotificationClosed signal.
func (b *Bridge) HandleNotify(n *dbus.Notification, id uint32) {
	b.mu.Lock()
	cfg := b.cfg
	old := b.byDBusID[id]
	s := newToast(n, cfg)
	s.Parameters[ParamDBusID] = id
	b.byDBusID[id] = s
	b.mu.Unlock()

	// Registry calls happen outside b.mu: expiry handlers re-enter the bridge.
	if old != nil {
		b.registry.Close(old)
	}
	b.registry.Notify(s)

	b.logger.Debug("toast shown",
		"dbus_id", id,
		"session", s.Identifier,
		"index", s.Index,
		"duration", s.Duration,
	)
}

// Post shows n as a toast that has no D-Bus sender.
func (b *Bridge) Post(n *dbus.Notification) *model.NotificationSession {
	b.mu.Lock()
	s := newToast(n, b.cfg)
	b.mu.Unlock()

	b.registry.Notify(s)
	return s
}

// HandleClose closes the toast shown for id. It reports whether a toast was
// open, in which case the caller emits NotificationClosed.
func (b *Bridge) HandleClose(id uint32) bool {
	b.mu.Lock()
	s, ok := b.byDBusID[id]
	if ok {
		delete(b.byDBusID, id)
	}
	b.mu.Unlock()

	if !ok {
		return false
	}
	return b.registry.Close(s)
}

// Dismiss closes s on behalf of the user and tells its sender.
func (b *Bridge) Dismiss(s *model.NotificationSession) bool {
	if !b.registry.Close(s) {
		return false
	}

	id, ok := dbusID(s)
	if !ok {
		return true
	}

	b.mu.Lock()
	if b.byDBusID[id] == s {
		delete(b.byDBusID, id)
	}
	emitter := b.emitter
	b.mu.Unlock()

	b.emit(emitter, id, dbus.CloseReasonDismissed)
	return true
}

// InvokeAction reports the user's choice of actionKey on s to its sender.
// Toasts that are not resident are dismissed afterwards.
func (b *Bridge) InvokeAction(s *model.NotificationSession, actionKey string) error {
	if !hasAction(s, actionKey) {
		return fmt.Errorf("%w: %q", ErrUnknownAction, actionKey)
	}
	if !b.registry.Contains(s) {
		return ErrToastClosed
	}

	if id, ok := dbusID(s); ok {
		b.mu.Lock()
		emitter := b.emitter
		b.mu.Unlock()

		if emitter != nil {
			if err := emitter.EmitActionInvoked(id, actionKey); err != nil {
				b.logger.Warn("failed to emit ActionInvoked", "id", id, "action", actionKey, "error", err)
			}
		}
	}

	b.logger.Debug("toast action invoked", "session", s.Identifier, "action", actionKey)

	if resident, _ := s.Parameters[ParamResident].(bool); !resident {
		b.Dismiss(s)
	}
	return nil
}

// Session returns the toast shown for a D-Bus ID.
func (b *Bridge) Session(id uint32) *model.NotificationSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.byDBusID[id]
}

// Count returns the number of tracked D-Bus toasts.
func (b *Bridge) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byDBusID)
}

func (b *Bridge) handleExpired(expired []*model.NotificationSession) {
	var ids []uint32

	b.mu.Lock()
	for _, s := range expired {
		id, ok := dbusID(s)
		if !ok {
			continue
		}
		current, tracked := b.byDBusID[id]
		switch {
		case tracked && current == s:
			delete(b.byDBusID, id)
		case tracked:
			// Replaced by a newer toast under the same ID.
			continue
		}
		ids = append(ids, id)
	}
	emitter := b.emitter
	b.mu.Unlock()

	for _, id := range ids {
		b.emit(emitter, id, dbus.CloseReasonExpired)
	}
}

func (b *Bridge) emit(emitter Emitter, id uint32, reason dbus.CloseReason) {
	if emitter == nil {
		return
	}
	if err := emitter.EmitNotificationClosed(id, reason); err != nil {
		b.logger.Warn("failed to emit NotificationClosed", "id", id, "reason", reason.String(), "error", err)
	}
}

// newToast builds the toast session for n.
func newToast(n *dbus.Notification, cfg config.NotificationConfig) *model.NotificationSession {
	urgency := n.Urgency()
	params := map[string]any{
		ParamAppName: n.AppName,
		ParamSummary: n.Summary,
		ParamBody:    n.Body,
		ParamUrgency: urgency,
	}
	if n.AppIcon != "" {
		params[ParamAppIcon] = n.AppIcon
	}
	if category := n.Category(); category != "" {
		params[ParamCategory] = category
	}
	if actions := n.ParsedActions(); len(actions) > 0 {
		params[ParamActions] = actions
	}
	if n.Resident() {
		params[ParamResident] = true
	}

	return model.NewNotificationSession(ToastComponent, indexForUrgency(urgency), toastDuration(n, cfg), params)
}

// toastDuration resolves how long a toast stays up. Zero means it stays
// until closed. Critical toasts ignore the server default.
func toastDuration(n *dbus.Notification, cfg config.NotificationConfig) time.Duration {
	d, ok := n.Timeout()
	if !ok {
		if n.Urgency() == dbus.UrgencyCritical {
			return 0
		}
		d = cfg.DefaultDuration.Duration()
	}
	return cfg.ClampDuration(d)
}

// indexForUrgency orders critical toasts first and low urgency last.
func indexForUrgency(urgency int) int {
	switch urgency {
	case dbus.UrgencyCritical:
		return 0
	case dbus.UrgencyLow:
		return 2
	default:
		return 1
	}
}

func hasAction(s *model.NotificationSession, actionKey string) bool {
	actions, _ := s.Parameters[ParamActions].([]dbus.Action)
	for _, a := range actions {
		if a.Key == actionKey {
			return true
		}
	}
	return false
}

func dbusID(s *model.NotificationSession) (uint32, bool) {
	id, ok := s.Parameters[ParamDBusID].(uint32)
	return id, ok
}
