package ui

import (
	"bytes"
	"encoding/json"
	"strings"
)

// OutputBox is a box for raw content such as a node value.
type OutputBox struct {
	Title    string   // e.g., "Value"
	Lines    []string // Content lines
	Width    int      // Terminal width
	MaxLines int      // Maximum lines to display (0 = unlimited)
}

// NewOutputBox creates a new output box
func NewOutputBox(title, content string) *OutputBox {
	return &OutputBox{
		Title: title,
		Lines: strings.Split(strings.TrimRight(content, "\n"), "\n"),
		Width: GetTerminalWidth(),
	}
}

// NewJSONBox creates an output box with raw JSON re-indented. Content that
// is not valid JSON is shown as is.
func NewJSONBox(title string, raw []byte) *OutputBox {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return NewOutputBox(title, string(raw))
	}
	return NewOutputBox(title, buf.String())
}

// SetWidth sets the terminal width for responsive rendering
func (o *OutputBox) SetWidth(width int) *OutputBox {
	o.Width = width
	return o
}

// SetMaxLines limits the number of lines displayed
func (o *OutputBox) SetMaxLines(max int) *OutputBox {
	o.MaxLines = max
	return o
}

// Render returns the styled output box as a string
func (o *OutputBox) Render() string {
	width := o.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	lines := o.Lines
	if o.MaxLines > 0 && len(lines) > o.MaxLines {
		lines = append(lines[:o.MaxLines:o.MaxLines], "... (output truncated)")
	}

	content := OutputTitleStyle.Render(o.Title) + "\n" + OutputContentStyle.Render(strings.Join(lines, "\n"))
	return OutputBoxStyle(width).Render(content)
}

// String implements fmt.Stringer
func (o *OutputBox) String() string {
	return o.Render()
}
