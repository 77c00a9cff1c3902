// Package dbus implements the org.freedesktop.Notifications D-Bus interface.
// Incoming Notify and CloseNotification calls are handed to callbacks that
// feed the notification registry; NotificationClosed signals are emitted
// when toasts expire or are closed on request.
package dbus
