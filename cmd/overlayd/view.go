package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/overlayd/internal/daemon"
	"github.com/jmylchreest/overlayd/internal/tui"
)

var viewOpts struct {
	dbus bool
}

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Run the daemon with an interactive session inspector",
	Long: `Run the daemon in-process and open a terminal inspector over its registries.

The inspector lists open dialogs and toasts in display order together with
each layer's visibility class, and can open dialogs and post toasts.

Key bindings:
  j/k, ↑/↓    Move selection
  tab         Switch between dialogs and toasts
  o           Open a dialog
  t / T       Post a toast / a sticky toast
  x           Close the selected session
  X           Close all dialogs
  enter / a   Invoke the selected toast's first action
  y           Copy the selected session as YAML
  ?           Show help
  q           Quit`,
	RunE: runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)

	viewCmd.Flags().BoolVar(&viewOpts.dbus, "dbus", false,
		"Also claim the notification bus name")
}

func runView(cmd *cobra.Command, args []string) error {
	cfg.DBus.Enabled = viewOpts.dbus

	// The inspector owns the terminal; only log when asked to.
	viewLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if globalOpts.verbose {
		viewLogger = logger
	}

	d, err := daemon.New(cfg, configPath(), viewLogger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		err := d.Run(ctx)
		cancel()
		errCh <- err
	}()

	uiErr := tui.Run(tui.RunOptions{
		Context: ctx,
		Dialogs: d.Dialogs(),
		Toasts:  d.Notifications(),
		Source:  d.Bridge(),
	})

	cancel()
	return errors.Join(uiErr, <-errCh)
}
