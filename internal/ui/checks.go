package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// CheckState is where one broker's connection check stands.
type CheckState int

const (
	CheckPending CheckState = iota
	CheckRunning
	CheckConnected
	CheckFailed
	CheckSkipped
)

func (s CheckState) done() bool {
	return s == CheckConnected || s == CheckFailed || s == CheckSkipped
}

// CheckRow is one broker in a multi-broker connection check.
type CheckRow struct {
	Name     string
	Endpoint string
	State    CheckState
	Latency  time.Duration // Round trip of the check, set once it finished
	Message  string        // Backend message for failed checks
}

// CheckBoard tracks a connection check over several saved brokers: a bar
// for the share of brokers checked and one row per broker.
type CheckBoard struct {
	Label string // e.g. "Checking 3 brokers"
	Rows  []CheckRow
	Width int
	bar   progress.Model
}

// NewCheckBoard creates a board with every row pending.
func NewCheckBoard(label string, rows []CheckRow) *CheckBoard {
	c := &CheckBoard{
		Label: label,
		Rows:  rows,
	}
	return c.SetWidth(GetTerminalWidth())
}

// SetWidth sizes the bar for the terminal, leaving room for the counters.
func (c *CheckBoard) SetWidth(width int) *CheckBoard {
	c.Width = width
	barWidth := width - 20
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	c.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
	)
	return c
}

// Update records the state of row i. Out of range rows are ignored.
func (c *CheckBoard) Update(i int, state CheckState, latency time.Duration, message string) {
	if i < 0 || i >= len(c.Rows) {
		return
	}
	r := &c.Rows[i]
	r.State = state
	r.Latency = latency
	r.Message = message
}

// Checked is the number of brokers whose check finished, failed ones included.
func (c *CheckBoard) Checked() int {
	n := 0
	for _, r := range c.Rows {
		if r.State.done() {
			n++
		}
	}
	return n
}

// Connected is the number of brokers that answered.
func (c *CheckBoard) Connected() int {
	n := 0
	for _, r := range c.Rows {
		if r.State == CheckConnected {
			n++
		}
	}
	return n
}

// Unreachable lists the names of brokers whose check failed.
func (c *CheckBoard) Unreachable() []string {
	var names []string
	for _, r := range c.Rows {
		if r.State == CheckFailed {
			names = append(names, r.Name)
		}
	}
	return names
}

// Percent is the share of brokers checked, 0.0 to 1.0.
func (c *CheckBoard) Percent() float64 {
	if len(c.Rows) == 0 {
		return 0
	}
	return float64(c.Checked()) / float64(len(c.Rows))
}

// Summary returns the result box details: how many brokers connected, the
// slowest connected broker and the unreachable ones.
func (c *CheckBoard) Summary() []Detail {
	details := []Detail{D("Connected", fmt.Sprintf("%d of %d", c.Connected(), len(c.Rows)))}

	slowest := -1
	for i, r := range c.Rows {
		if r.State != CheckConnected {
			continue
		}
		if slowest < 0 || r.Latency > c.Rows[slowest].Latency {
			slowest = i
		}
	}
	if slowest >= 0 && c.Connected() > 1 {
		r := c.Rows[slowest]
		details = append(details, D("Slowest", fmt.Sprintf("%s (%s)", r.Name, formatLatency(r.Latency))))
	}

	if down := c.Unreachable(); len(down) > 0 {
		details = append(details, D("Unreachable", strings.Join(down, ", ")))
	}
	return details
}

// Render returns the label, bar and every row.
func (c *CheckBoard) Render() string {
	var b strings.Builder
	if c.Label != "" {
		b.WriteString(ProgressLabelStyle.Render(c.Label))
		b.WriteString("\n\n")
	}
	b.WriteString(c.RenderBar())
	b.WriteString("\n\n")

	lines := make([]string, len(c.Rows))
	for i := range c.Rows {
		lines[i] = c.RenderRow(i)
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

// String implements fmt.Stringer
func (c *CheckBoard) String() string {
	return c.Render()
}

// RenderBar renders "<bar>  50%  [1/2]".
func (c *CheckBoard) RenderBar() string {
	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %3.0f%%  [%d/%d]",
			c.bar.ViewAs(c.Percent()), c.Percent()*100, c.Checked(), len(c.Rows)))
}

// RenderRow renders one broker: position, name, endpoint, marker and either
// the latency or the failure message.
func (c *CheckBoard) RenderRow(i int) string {
	if i < 0 || i >= len(c.Rows) {
		return ""
	}
	r := c.Rows[i]

	var marker string
	var style lipgloss.Style
	switch r.State {
	case CheckConnected:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case CheckRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case CheckFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	case CheckSkipped:
		marker, style = StepMarkerSkipped, StepPendingStyle
	default:
		marker, style = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  [%d/%d] ", i+1, len(c.Rows))
	b.WriteString(style.Render(r.Name))

	label := r.Name
	if r.Endpoint != "" {
		b.WriteString(" ")
		b.WriteString(TreeIDStyle.Render(r.Endpoint))
		label += " " + r.Endpoint
	}

	// Markers line up unless the broker label is very long
	padding := 45 - lipgloss.Width(label)
	if padding < 1 {
		padding = 1
	}
	b.WriteString(strings.Repeat(" ", padding))
	b.WriteString(style.Render(marker))

	switch {
	case r.State == CheckConnected:
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render(formatLatency(r.Latency)))
	case r.Message != "":
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + r.Message + ")"))
	}
	return b.String()
}

func formatLatency(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

// CheckCallback reports a state change for the broker at row i.
type CheckCallback func(i int, state CheckState, latency time.Duration, message string)
