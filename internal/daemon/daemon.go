package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmylchreest/overlayd/internal/config"
	"github.com/jmylchreest/overlayd/internal/dbus"
	"github.com/jmylchreest/overlayd/internal/expiry"
	"github.com/jmylchreest/overlayd/internal/metrics"
	"github.com/jmylchreest/overlayd/internal/registry"
)

// Version is reported by GetServerInformation.
var Version = "dev"

// Daemon owns the dialog and notification registries and the services that
// feed them.
type Daemon struct {
	logger     *slog.Logger
	configPath string

	dialogs       *registry.DialogRegistry
	notifications *registry.NotificationRegistry
	bridge        *Bridge
	notifier      *InternalNotifier

	mu     sync.Mutex
	cfg    *config.Config
	runCtx context.Context
	ready  bool

	// schedMu serialises scheduler restarts; Stop waits for a sweep.
	schedMu   sync.Mutex
	scheduler *expiry.Scheduler

	server  *dbus.Server
	watcher *config.Watcher
}

// New builds a daemon from cfg. configPath is watched for changes while
// the daemon runs; pass "" to disable hot reload.
func New(cfg *config.Config, configPath string, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	d := &Daemon{
		logger:     logger,
		configPath: configPath,
		cfg:        cfg,
		dialogs: registry.NewDialogRegistry(
			registryOptions(cfg.Dialog.ShowClass, cfg.Dialog.HiddenClass, cfg.Dialog.BackgroundClass, logger)...,
		),
		notifications: registry.NewNotificationRegistry(
			registryOptions(cfg.Notification.ShowClass, cfg.Notification.HiddenClass, cfg.Notification.BackgroundClass, logger)...,
		),
	}
	d.bridge = NewBridge(d.notifications, nil, cfg.Notification, logger)
	d.notifier = NewInternalNotifier(func(n *dbus.Notification) { d.bridge.Post(n) }, logger)

	metrics.Observe(d.dialogs)
	metrics.Observe(d.notifications)
	metrics.ObserveExpiry(d.notifications)

	return d, nil
}

func registryOptions(show, hidden, background string, logger *slog.Logger) []registry.Option {
	opts := []registry.Option{
		registry.WithClassNames(show, hidden),
		registry.WithLogger(logger),
	}
	if background != "" {
		opts = append(opts, registry.WithBackgroundParameters(map[string]any{registry.ClassKey: background}))
	}
	return opts
}

// Dialogs returns the dialog registry.
func (d *Daemon) Dialogs() *registry.DialogRegistry { return d.dialogs }

// Notifications returns the notification registry.
func (d *Daemon) Notifications() *registry.NotificationRegistry { return d.notifications }

// Bridge returns the D-Bus to toast bridge.
func (d *Daemon) Bridge() *Bridge { return d.bridge }

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// ApplyConfig switches the daemon to cfg. Class names take effect
// immediately; the expiry scheduler is restarted when its settings change.
// Background classes and the D-Bus and metrics sections need a restart.
func (d *Daemon) ApplyConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	d.dialogs.SetClassNames(cfg.Dialog.ShowClass, cfg.Dialog.HiddenClass)
	d.notifications.SetClassNames(cfg.Notification.ShowClass, cfg.Notification.HiddenClass)
	d.bridge.SetConfig(cfg.Notification)

	d.mu.Lock()
	old := d.cfg
	d.cfg = cfg
	ctx := d.runCtx
	d.mu.Unlock()

	if ctx != nil && timerChanged(old.Notification, cfg.Notification) {
		d.restartScheduler(ctx, cfg.Notification)
	}

	d.logger.Info("configuration applied",
		"use_timer", cfg.Notification.UseTimer,
		"poll_interval", cfg.Notification.PollInterval.Duration(),
	)
	return nil
}

func timerChanged(old, cur config.NotificationConfig) bool {
	return old.UseTimer != cur.UseTimer || old.PollInterval != cur.PollInterval
}

// restartScheduler replaces the running scheduler with one built from cfg.
func (d *Daemon) restartScheduler(ctx context.Context, cfg config.NotificationConfig) {
	d.schedMu.Lock()
	defer d.schedMu.Unlock()

	if d.scheduler != nil {
		d.scheduler.Stop()
		d.scheduler = nil
	}
	if !cfg.UseTimer {
		d.logger.Debug("expiry timer disabled")
		return
	}
	d.scheduler = expiry.New(d.notifications, cfg.PollInterval.Duration(), d.logger)
	d.scheduler.Start(ctx)
}

// Running reports whether Run has started every configured service.
func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

// SchedulerRunning reports whether the expiry scheduler is active.
func (d *Daemon) SchedulerRunning() bool {
	d.schedMu.Lock()
	defer d.schedMu.Unlock()
	return d.scheduler != nil && d.scheduler.Running()
}

// Run starts the configured services and blocks until ctx is cancelled or
// a service fails.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	if d.runCtx != nil {
		d.mu.Unlock()
		return errors.New("daemon already running")
	}
	d.runCtx = ctx
	cfg := d.cfg
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.runCtx = nil
		d.ready = false
		d.mu.Unlock()
	}()

	d.restartScheduler(ctx, cfg.Notification)
	defer d.stopScheduler()

	if cfg.DBus.Enabled {
		if err := d.startServer(cfg.DBus); err != nil {
			return err
		}
		defer d.stopServer()
	}

	if d.configPath != "" {
		if err := d.startWatcher(cfg); err != nil {
			d.logger.Warn("config hot reload disabled", "path", d.configPath, "error", err)
		} else {
			defer d.stopWatcher()
		}
	}

	errCh := make(chan error, 1)
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Address, d.logger); err != nil {
				errCh <- fmt.Errorf("metrics endpoint: %w", err)
			}
		}()
	}

	d.mu.Lock()
	d.ready = true
	d.mu.Unlock()

	d.logger.Info("overlayd running",
		"version", Version,
		"dbus", cfg.DBus.Enabled,
		"metrics", cfg.Metrics.Enabled,
	)

	select {
	case <-ctx.Done():
		d.logger.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

func (d *Daemon) stopScheduler() {
	d.schedMu.Lock()
	defer d.schedMu.Unlock()
	if d.scheduler != nil {
		d.scheduler.Stop()
		d.scheduler = nil
	}
}

func (d *Daemon) startServer(cfg config.DBusConfig) error {
	server := dbus.NewServer(cfg.BusName, d.logger)
	info := dbus.DefaultServerInfo()
	info.Version = Version
	server.SetServerInfo(info)
	server.SetNotifyHandler(d.bridge.HandleNotify)
	server.SetCloseHandler(d.bridge.HandleClose)

	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start D-Bus server: %w", err)
	}
	d.bridge.SetEmitter(server)
	d.server = server
	return nil
}

func (d *Daemon) stopServer() {
	d.bridge.SetEmitter(nil)
	if err := d.server.Stop(); err != nil {
		d.logger.Warn("error stopping D-Bus server", "error", err)
	}
	d.server = nil
}

func (d *Daemon) startWatcher(cfg *config.Config) error {
	watcher, err := config.NewWatcher(d.configPath, cfg, d.logger)
	if err != nil {
		return err
	}
	watcher.SetReloadCallback(func(newConfig *config.Config) {
		if err := d.ApplyConfig(newConfig); err != nil {
			d.logger.Warn("failed to apply reloaded config", "error", err)
			d.notifier.NotifyConfigError(err)
			return
		}
		d.notifier.NotifyConfigReloaded()
	})
	watcher.SetErrorCallback(func(err error) {
		d.notifier.NotifyConfigError(err)
	})

	if err := watcher.Start(); err != nil {
		return err
	}
	d.watcher = watcher
	return nil
}

func (d *Daemon) stopWatcher() {
	if err := d.watcher.Stop(); err != nil {
		d.logger.Warn("error stopping config watcher", "error", err)
	}
	d.watcher = nil
}
