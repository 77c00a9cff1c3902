package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/overlayd/internal/daemon"
)

var serveOpts struct {
	noDBus      bool
	metricsAddr string
	noReload    bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the overlay session daemon",
	Long: `Run the overlay session daemon.

The daemon keeps the dialog and notification registries, expires toasts on
the configured poll interval, and serves org.freedesktop.Notifications on the
session bus unless disabled. The config file is watched and class names and
expiry settings are applied without a restart.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveOpts.noDBus, "no-dbus", false,
		"Do not claim the notification bus name")
	serveCmd.Flags().StringVar(&serveOpts.metricsAddr, "metrics", "",
		"Serve Prometheus metrics on this address (overrides config)")
	serveCmd.Flags().BoolVar(&serveOpts.noReload, "no-reload", false,
		"Do not watch the config file for changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveOpts.noDBus {
		cfg.DBus.Enabled = false
	}
	if serveOpts.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = serveOpts.metricsAddr
	}

	watchPath := configPath()
	if serveOpts.noReload {
		watchPath = ""
	}

	d, err := daemon.New(cfg, watchPath, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return d.Run(ctx)
}
