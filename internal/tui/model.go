// Package tui provides the BubbleTea-based session inspector.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/overlayd/internal/dbus"
	"github.com/jmylchreest/overlayd/internal/model"
	"github.com/jmylchreest/overlayd/internal/registry"
)

// Panel identifies the focused list.
type Panel int

const (
	PanelDialogs Panel = iota
	PanelToasts
)

// ToastSource posts, dismisses and acts on toasts on behalf of the inspector.
type ToastSource interface {
	Post(n *dbus.Notification) *model.NotificationSession
	Dismiss(s *model.NotificationSession) bool
	InvokeAction(s *model.NotificationSession, actionKey string) error
}

// Model is the main TUI model.
type Model struct {
	dialogs *registry.DialogRegistry
	toasts  *registry.NotificationRegistry
	source  ToastSource

	// State
	panel       Panel
	cursor      [2]int
	dialogItems []*model.DialogSession
	toastItems  []*model.NotificationSession
	opened      int
	posted      int
	width       int
	height      int

	help help.Model
	keys KeyMap

	// Status message
	statusMsg string
	statusErr bool

	// Registry change subscription
	changes chan struct{}
	subs    [2]registry.Subscription

	now             func() time.Time
	refreshInterval time.Duration
}

// New creates an inspector over both registries. Call Close when done.
func New(dialogs *registry.DialogRegistry, toasts *registry.NotificationRegistry, source ToastSource) Model {
	m := Model{
		dialogs:         dialogs,
		toasts:          toasts,
		source:          source,
		help:            help.New(),
		keys:            DefaultKeyMap(),
		changes:         make(chan struct{}, 1),
		now:             time.Now,
		refreshInterval: 250 * time.Millisecond,
	}

	// Coalesce bursts of changes into a single pending signal.
	changes := m.changes
	signal := func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}
	m.subs[0] = dialogs.Subscribe(signal)
	m.subs[1] = toasts.Subscribe(signal)

	m.refresh()
	return m
}

// Close unsubscribes from the registries.
func (m Model) Close() {
	m.dialogs.Unsubscribe(m.subs[0])
	m.toasts.Unsubscribe(m.subs[1])
}

type changedMsg struct{}

type tickMsg time.Time

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

type copyResultMsg struct {
	err error
}

// Init starts watching the registries.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForChange, m.tick())
}

// waitForChange blocks until a registry commits a change.
func (m Model) waitForChange() tea.Msg {
	<-m.changes
	return changedMsg{}
}

// tick keeps expiry countdowns current.
func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case changedMsg:
		m.refresh()
		return m, m.waitForChange

	case tickMsg:
		m.refresh()
		return m, m.tick()

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			return m, status("Copy failed: "+msg.err.Error(), true)
		}
		return m, status("Copied to clipboard", false)
	}

	return m, nil
}

func status(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isErr: isErr}
	}
}

// refresh reloads both lists. The toast snapshot also sweeps expired toasts.
func (m *Model) refresh() {
	m.dialogItems = m.dialogs.Snapshot()
	m.toastItems = m.toasts.Snapshot()
	m.cursor[PanelDialogs] = clamp(m.cursor[PanelDialogs], len(m.dialogItems))
	m.cursor[PanelToasts] = clamp(m.cursor[PanelToasts], len(m.toastItems))
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (m Model) panelLen() int {
	if m.panel == PanelToasts {
		return len(m.toastItems)
	}
	return len(m.dialogItems)
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.cursor[m.panel] = clamp(m.cursor[m.panel]-1, m.panelLen())
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.cursor[m.panel] = clamp(m.cursor[m.panel]+1, m.panelLen())
		return m, nil

	case key.Matches(msg, m.keys.SwitchPanel):
		if m.panel == PanelDialogs {
			m.panel = PanelToasts
		} else {
			m.panel = PanelDialogs
		}
		return m, nil

	case key.Matches(msg, m.keys.OpenDialog):
		m.opened++
		d := model.NewDialogSession("dialog", len(m.dialogItems), map[string]any{
			"title": fmt.Sprintf("Dialog %d", m.opened),
		})
		m.dialogs.Show(d)
		m.refresh()
		return m, status("Opened "+d.Identifier, false)

	case key.Matches(msg, m.keys.CloseSelected):
		return m.closeSelected()

	case key.Matches(msg, m.keys.CloseAll):
		n := m.dialogs.CloseAll()
		m.refresh()
		return m, status(fmt.Sprintf("Closed %d dialogs", n), false)

	case key.Matches(msg, m.keys.PostToast):
		return m.postToast(-1)

	case key.Matches(msg, m.keys.PostStickyToast):
		return m.postToast(0)

	case key.Matches(msg, m.keys.InvokeAction):
		return m.invokeAction()

	case key.Matches(msg, m.keys.CopyYAML):
		selected := m.selected()
		if selected == nil {
			return m, nil
		}
		text, err := marshalYAML(selected)
		if err != nil {
			return m, status("Failed to marshal YAML: "+err.Error(), true)
		}
		return m, copyToClipboard(text)
	}

	return m, nil
}

// selected returns the session under the cursor, or nil.
func (m Model) selected() any {
	i := m.cursor[m.panel]
	switch m.panel {
	case PanelToasts:
		if i < len(m.toastItems) {
			return m.toastItems[i]
		}
	default:
		if i < len(m.dialogItems) {
			return m.dialogItems[i]
		}
	}
	return nil
}

func (m Model) closeSelected() (tea.Model, tea.Cmd) {
	var closed bool
	switch s := m.selected().(type) {
	case *model.DialogSession:
		closed = m.dialogs.Close(s)
	case *model.NotificationSession:
		if m.source != nil {
			closed = m.source.Dismiss(s)
		} else {
			closed = m.toasts.Close(s)
		}
	default:
		return m, nil
	}
	m.refresh()
	if !closed {
		return m, status("Already closed", true)
	}
	return m, status("Closed", false)
}

// invokeAction triggers the first action offered by the selected toast.
func (m Model) invokeAction() (tea.Model, tea.Cmd) {
	s, ok := m.selected().(*model.NotificationSession)
	if !ok || m.source == nil {
		return m, nil
	}
	actions, _ := s.Parameters["actions"].([]dbus.Action)
	if len(actions) == 0 {
		return m, status("No actions on this toast", true)
	}

	err := m.source.InvokeAction(s, actions[0].Key)
	m.refresh()
	if err != nil {
		return m, status("Action failed: "+err.Error(), true)
	}
	return m, status("Invoked "+actions[0].Label, false)
}

func (m Model) postToast(expireTimeout int32) (tea.Model, tea.Cmd) {
	if m.source == nil {
		return m, status("No toast source", true)
	}
	m.posted++
	s := m.source.Post(&dbus.Notification{
		AppName:       "overlayd",
		Summary:       fmt.Sprintf("Toast %d", m.posted),
		Body:          "Posted from the inspector",
		ExpireTimeout: expireTimeout,
	})
	m.refresh()
	return m, status("Posted "+s.Identifier, false)
}

// copyToClipboard returns a command that copies text to the clipboard.
func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		return copyResultMsg{err: copyText(text)}
	}
}

var (
	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle       = lipgloss.NewStyle().Bold(true)
	activeHeaderStyle = headerStyle.Foreground(lipgloss.Color("10"))
	classStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	dimStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	selectedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// View renders the TUI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("overlayd sessions"))
	b.WriteString("\n\n")

	b.WriteString(m.panelHeader(PanelDialogs, "Dialogs", m.dialogs.VisibilityClass()))
	if len(m.dialogItems) == 0 {
		b.WriteString(dimStyle.Render("  (none)") + "\n")
	}
	for i, d := range m.dialogItems {
		line := fmt.Sprintf("#%d %s %s", d.Index, d.Component, paramString(d.Parameters, "title"))
		b.WriteString(m.renderLine(PanelDialogs, i, line, dimStyle.Render(d.Identifier)))
	}
	b.WriteString("\n")

	now := m.now()
	b.WriteString(m.panelHeader(PanelToasts, "Toasts", m.toasts.VisibilityClass()))
	if len(m.toastItems) == 0 {
		b.WriteString(dimStyle.Render("  (none)") + "\n")
	}
	for i, s := range m.toastItems {
		line := fmt.Sprintf("#%d %s", s.Index, paramString(s.Parameters, "summary"))
		if app := paramString(s.Parameters, "app_name"); app != "" {
			line += " [" + app + "]"
		}
		b.WriteString(m.renderLine(PanelToasts, i, line, dimStyle.Render(expiresIn(s, now))))
	}

	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
		if m.statusErr {
			statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
		}
		b.WriteString("\n" + statusStyle.Render(m.statusMsg) + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m Model) panelHeader(p Panel, name, class string) string {
	style := headerStyle
	if m.panel == p {
		style = activeHeaderStyle
	}
	return style.Render(name) + "  " + classStyle.Render("class=\""+class+"\"") + "\n"
}

func (m Model) renderLine(p Panel, i int, line, detail string) string {
	if m.panel == p && m.cursor[p] == i {
		return selectedStyle.Render("› "+line) + "  " + detail + "\n"
	}
	return "  " + line + "  " + detail + "\n"
}

// expiresIn describes when an auto-close toast goes away.
func expiresIn(s *model.NotificationSession, now time.Time) string {
	deadline, ok := s.ExpiresAt()
	if !ok {
		return "sticky"
	}
	if !deadline.After(now) {
		return "expiring"
	}
	return humanize.RelTime(deadline, now, "overdue", "left")
}

func paramString(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

// RunOptions configures the TUI.
type RunOptions struct {
	Context context.Context
	Dialogs *registry.DialogRegistry
	Toasts  *registry.NotificationRegistry
	Source  ToastSource
}

// Run starts the TUI and blocks until the user quits or the context ends.
func Run(opts RunOptions) error {
	m := New(opts.Dialogs, opts.Toasts, opts.Source)
	defer m.Close()

	progOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if opts.Context != nil {
		progOpts = append(progOpts, tea.WithContext(opts.Context))
	}

	_, err := tea.NewProgram(m, progOpts...).Run()
	if err != nil && opts.Context != nil && opts.Context.Err() != nil {
		return nil
	}
	return err
}
