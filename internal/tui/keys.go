package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the key bindings for the TUI.
type KeyMap struct {
	// Navigation
	Up          key.Binding
	Down        key.Binding
	SwitchPanel key.Binding

	// Actions
	OpenDialog      key.Binding
	CloseSelected   key.Binding
	CloseAll        key.Binding
	PostToast       key.Binding
	PostStickyToast key.Binding
	InvokeAction    key.Binding
	CopyYAML        key.Binding

	// Global
	Quit key.Binding
	Help key.Binding
}

// ShortHelp returns a short help message.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.OpenDialog, k.PostToast, k.CloseSelected, k.Help, k.Quit}
}

// FullHelp returns a full help message.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.SwitchPanel},
		{k.OpenDialog, k.CloseSelected, k.CloseAll},
		{k.PostToast, k.PostStickyToast, k.InvokeAction, k.CopyYAML},
		{k.Help, k.Quit},
	}
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		SwitchPanel: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch panel"),
		),
		OpenDialog: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open dialog"),
		),
		CloseSelected: key.NewBinding(
			key.WithKeys("x", "d"),
			key.WithHelp("x", "close selected"),
		),
		CloseAll: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "close all dialogs"),
		),
		PostToast: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "post toast"),
		),
		PostStickyToast: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "post sticky toast"),
		),
		InvokeAction: key.NewBinding(
			key.WithKeys("enter", "a"),
			key.WithHelp("enter", "invoke toast action"),
		),
		CopyYAML: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy as YAML"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}
