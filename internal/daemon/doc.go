// Package daemon provides the main orchestration for overlayd.
// It builds the dialog and notification registries from configuration and
// coordinates the expiry scheduler, the D-Bus notification server, the
// metrics endpoint, and configuration hot reload.
package daemon
