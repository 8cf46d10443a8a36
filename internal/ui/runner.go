package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// RunnerConfig holds configuration for a multi-broker check
type RunnerConfig struct {
	Title   string     // Command title (e.g., "Broker Check")
	Command string     // Full command (e.g., "opcua-console check --all")
	Params  []Detail   // Parameters to display in header
	Brokers []CheckRow // One row per broker, in check order
	Output  io.Writer  // Output writer (default: os.Stdout)
}

// Runner orchestrates the header → check rows → result flow for commands
// that check several brokers, such as check --all.
type Runner struct {
	config    RunnerConfig
	header    *Header
	board     *CheckBoard
	output    io.Writer
	startTime time.Time
	width     int
}

// NewRunner creates a new runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	width := GetTerminalWidth()

	header := NewHeader(config.Title, config.Command, config.Params...)
	header.SetWidth(width)

	var board *CheckBoard
	if len(config.Brokers) > 0 {
		board = NewCheckBoard("", config.Brokers).SetWidth(width)
	}

	return &Runner{
		config: config,
		header: header,
		board:  board,
		output: config.Output,
		width:  width,
	}
}

// Operation is the work a Runner drives. It reports each broker through
// onCheck and returns extra details for the result box.
type Operation func(ctx context.Context, onCheck CheckCallback) ([]Detail, error)

// Run prints the header, executes operation and prints the result box.
func (r *Runner) Run(ctx context.Context, operation Operation) error {
	r.startTime = time.Now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	details, err := operation(ctx, r.checkCallback())
	duration := time.Since(r.startTime)

	_, _ = fmt.Fprintln(r.output)
	if r.board != nil {
		_, _ = fmt.Fprintln(r.output, r.board.RenderBar())
		_, _ = fmt.Fprintln(r.output)
		details = append(r.board.Summary(), details...)
	}
	if err != nil {
		result := NewErrorResult(r.config.Title+" failed", err)
		result.Details = details
		result.SetWidth(r.width)
		_, _ = fmt.Fprintln(r.output, result.Render())
		return err
	}

	details = append(details, D("Duration", duration.Round(time.Millisecond).String()))
	result := NewSuccessResult(r.config.Title+" complete", details...)
	result.SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())
	return nil
}

// Board returns the runner's check board, or nil when the runner has no
// brokers.
func (r *Runner) Board() *CheckBoard {
	return r.board
}

func (r *Runner) checkCallback() CheckCallback {
	return func(i int, state CheckState, latency time.Duration, message string) {
		if r.board == nil || i < 0 || i >= len(r.board.Rows) {
			return
		}
		r.board.Update(i, state, latency, message)

		switch {
		case state.done():
			_, _ = fmt.Fprintln(r.output, r.board.RenderRow(i))
		case state == CheckRunning:
			// Overwritten when the check finishes
			_, _ = fmt.Fprint(r.output, r.board.RenderRow(i)+"\r")
		}
	}
}

// PrintPleaseWait prints a styled "please wait" message for long-running operations.
// The duration hint helps set user expectations, e.g., "5 seconds".
func PrintPleaseWait(w io.Writer, message string, durationHint string) {
	style := lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Bold(true).
		PaddingLeft(2)

	hintStyle := lipgloss.NewStyle().
		Foreground(MutedColor).
		Italic(true)

	line := style.Render("⏳ " + message)
	if durationHint != "" {
		line += " " + hintStyle.Render("("+durationHint+")")
	}
	line += style.Render("...")

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, line)
	_, _ = fmt.Fprintln(w)
}
