package registry

import "github.com/jmylchreest/overlayd/internal/model"

// DialogRegistry tracks the stack of open modal dialogs.
type DialogRegistry struct {
	*Registry[*model.DialogSession]
}

// NewDialogRegistry creates an empty dialog registry.
func NewDialogRegistry(opts ...Option) *DialogRegistry {
	return &DialogRegistry{Registry: New[*model.DialogSession]("dialog", opts...)}
}

// Show opens a dialog.
func (r *DialogRegistry) Show(d *model.DialogSession) {
	r.Add(d)
}

// Close closes a dialog. Closing a dialog that is not open is a no-op.
func (r *DialogRegistry) Close(d *model.DialogSession) bool {
	return r.Remove(d)
}

// Top returns the dialog rendered last (highest index), or nil when no
// dialog is open.
func (r *DialogRegistry) Top() *model.DialogSession {
	snap := r.Snapshot()
	if len(snap) == 0 {
		return nil
	}
	return snap[len(snap)-1]
}

// CloseTop closes the topmost dialog and returns it, or nil when none is open.
func (r *DialogRegistry) CloseTop() *model.DialogSession {
	for {
		top := r.Top()
		if top == nil {
			return nil
		}
		// Another caller may have closed it between Top and Close.
		if r.Close(top) {
			return top
		}
	}
}

// CloseAll closes every dialog and returns how many were open.
func (r *DialogRegistry) CloseAll() int {
	return r.Clear()
}
