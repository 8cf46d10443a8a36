package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/opcua-console/internal/notify"
)

const (
	toastDuration = 4 * time.Second
	maxToasts     = 3
)

type toastExpiredMsg struct {
	id int
}

type toast struct {
	id int
	n  notify.Notification
}

// Toasts is the notification stack shown in the top right of the screen.
// It implements notify.Dispatcher; each dispatched toast expires after
// toastDuration once the commands returned by Cmd have run.
type Toasts struct {
	items   []toast
	nextID  int
	pending []int
}

// Dispatch queues n for display.
func (t *Toasts) Dispatch(n notify.Notification) {
	t.nextID++
	t.items = append(t.items, toast{id: t.nextID, n: n})
	if len(t.items) > maxToasts {
		t.items = t.items[len(t.items)-maxToasts:]
	}
	t.pending = append(t.pending, t.nextID)
}

// Cmd returns the expiry timers for toasts dispatched since the last call.
func (t *Toasts) Cmd() tea.Cmd {
	if len(t.pending) == 0 {
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(t.pending))
	for _, id := range t.pending {
		id := id
		cmds = append(cmds, tea.Tick(toastDuration, func(time.Time) tea.Msg {
			return toastExpiredMsg{id: id}
		}))
	}
	t.pending = nil
	return tea.Batch(cmds...)
}

// Expire removes the toast with the given id.
func (t *Toasts) Expire(id int) {
	for i, it := range t.items {
		if it.id == id {
			t.items = append(t.items[:i], t.items[i+1:]...)
			return
		}
	}
}

// Len returns the number of visible toasts.
func (t *Toasts) Len() int {
	return len(t.items)
}

// Latest returns the most recent toast.
func (t *Toasts) Latest() (notify.Notification, bool) {
	if len(t.items) == 0 {
		return notify.Notification{}, false
	}
	return t.items[len(t.items)-1].n, true
}

// View renders the stack, newest last.
func (t *Toasts) View(width int) string {
	if len(t.items) == 0 {
		return ""
	}
	w := width / 2
	if w < 30 {
		w = 30
	}

	boxes := make([]string, 0, len(t.items))
	for _, it := range t.items {
		var b strings.Builder
		b.WriteString(lipgloss.NewStyle().Bold(true).Render(it.n.Title))
		if it.n.Description != "" {
			b.WriteString("\n")
			b.WriteString(it.n.Description)
		}
		boxes = append(boxes, toastStyle(it.n.Variant).Width(w).Render(b.String()))
	}
	return lipgloss.JoinVertical(lipgloss.Right, boxes...)
}
