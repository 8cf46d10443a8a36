package wizard

import (
	"fmt"

	"github.com/muurk/opcua-console/internal/notify"
	"github.com/muurk/opcua-console/internal/relay"
)

// Step is one page of the configuration wizard.
type Step int

const (
	StepServer Step = iota
	StepSecurity
	StepObjects
	StepAdvanced
	StepReview
)

var stepInfo = []struct {
	name, title, description string
}{
	{"server", "Server Configuration", "Configure your OPC UA server endpoint and basic settings"},
	{"security", "Security Configuration", "Set up the security mode and authentication settings"},
	{"objects", "Object Selection", "Choose the nodes to monitor and how data is acquired"},
	{"advanced", "Advanced Settings", "Configure diagnostics and performance settings"},
	{"review", "Connection Review", "Review your configuration before saving"},
}

// Steps returns every step in wizard order.
func Steps() []Step {
	return []Step{StepServer, StepSecurity, StepObjects, StepAdvanced, StepReview}
}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepInfo) {
		return fmt.Sprintf("Step(%d)", int(s))
	}
	return stepInfo[s].name
}

// Title returns the heading shown for the step.
func (s Step) Title() string {
	if s < 0 || int(s) >= len(stepInfo) {
		return s.String()
	}
	return stepInfo[s].title
}

// Description returns the line shown under the step's title.
func (s Step) Description() string {
	if s < 0 || int(s) >= len(stepInfo) {
		return ""
	}
	return stepInfo[s].description
}

// Gate notification shown when the connection has not been tested.
const (
	GateTitle       = "Connection Required"
	GateDescription = "Please test the connection to the OPC UA server before proceeding."
)

// Transition is the outcome of Next or Back.
type Transition struct {
	From, To  Step
	Submitted bool                 // Next at the last step
	Notice    *notify.Notification // at most one per transition
	Errors    FieldErrors          // why the step could not be left
}

// Moved reports whether the step index changed.
func (t Transition) Moved() bool {
	return t.From != t.To
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithConnectionGate requires a successful connection test for the current
// endpoint before Next leaves the first step.
func WithConnectionGate() Option {
	return func(w *Wizard) {
		w.gated = true
	}
}

// WithData seeds the form instead of DefaultData.
func WithData(d Data) Option {
	return func(w *Wizard) {
		w.data = d
	}
}

// Wizard is the configuration wizard's state: a step index over a fixed
// list of steps plus the form data. The index only moves through Next and
// Back and always stays within the step list.
//
// A Wizard is not safe for concurrent use; front ends drive it from their
// event loop.
type Wizard struct {
	index int
	data  Data
	gated bool

	// last connection test, tied to the endpoint it was run against
	status         relay.Status
	statusEndpoint string
}

// New returns a wizard at the first step with default form data.
func New(opts ...Option) *Wizard {
	w := &Wizard{
		data:   DefaultData(),
		status: relay.StatusDisconnected,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	return Step(w.index)
}

// Index returns the current step index.
func (w *Wizard) Index() int {
	return w.index
}

// IsFirst reports whether the wizard is at the first step.
func (w *Wizard) IsFirst() bool {
	return w.index == 0
}

// IsLast reports whether the wizard is at the review step.
func (w *Wizard) IsLast() bool {
	return w.index == len(stepInfo)-1
}

// Gated reports whether the connection gate is enabled.
func (w *Wizard) Gated() bool {
	return w.gated
}

// Data returns a copy of the form data.
func (w *Wizard) Data() Data {
	d := w.data
	d.Nodes = append([]string(nil), w.data.Nodes...)
	return d
}

// Update applies fn to the form data. Changing the endpoint discards the
// recorded connection status.
func (w *Wizard) Update(fn func(*Data)) {
	before := w.data.Endpoint
	fn(&w.data)
	if w.data.Endpoint != before {
		w.status = relay.StatusDisconnected
		w.statusEndpoint = ""
	}
}

// SetEndpoint is shorthand for updating the endpoint field.
func (w *Wizard) SetEndpoint(s string) {
	w.Update(func(d *Data) { d.Endpoint = s })
}

// SetConnectionStatus records the outcome of a connection test. Results for
// an endpoint other than the one currently in the form are stale and are
// ignored; the return value reports whether conn was recorded.
func (w *Wizard) SetConnectionStatus(conn relay.Connection) bool {
	if conn.Endpoint != w.data.Endpoint {
		return false
	}
	w.status = conn.Status
	w.statusEndpoint = conn.Endpoint
	return true
}

// ConnectionStatus returns the recorded status for the current endpoint.
func (w *Wizard) ConnectionStatus() relay.Status {
	if w.statusEndpoint != w.data.Endpoint {
		return relay.StatusDisconnected
	}
	return w.status
}

// Next advances one step. The current step's fields must validate, and with
// the connection gate the first step also needs a successful connection
// test. At the last step Next submits instead: it produces the single
// "Configuration Saved" notification and leaves the index where it is.
// Persisting the configuration is up to the caller.
func (w *Wizard) Next() Transition {
	from := w.Step()
	t := Transition{From: from, To: from}

	if w.gated && from == StepServer && w.ConnectionStatus() != relay.StatusConnected {
		t.Notice = &notify.Notification{
			Title:       GateTitle,
			Description: GateDescription,
			Variant:     notify.VariantDestructive,
		}
		return t
	}

	if errs := w.data.Validate(from); len(errs) > 0 {
		t.Errors = errs
		t.Notice = &notify.Notification{
			Title:       "Invalid " + from.Title(),
			Description: errs[0].Message,
			Variant:     notify.VariantDestructive,
		}
		return t
	}

	if w.IsLast() {
		n := notify.Success("Configuration Saved", fmt.Sprintf("%s has been configured successfully.", w.data.Name))
		t.Submitted = true
		t.Notice = &n
		return t
	}

	w.index++
	t.To = w.Step()
	return t
}

// Back returns to the previous step. It is a no-op at the first step.
func (w *Wizard) Back() Transition {
	from := w.Step()
	if w.index > 0 {
		w.index--
	}
	return Transition{From: from, To: w.Step()}
}

// Reset returns to the first step with the given data (DefaultData when
// none is given) and forgets the connection status.
func (w *Wizard) Reset(data ...Data) {
	w.index = 0
	w.data = DefaultData()
	if len(data) > 0 {
		w.data = data[0]
	}
	w.status = relay.StatusDisconnected
	w.statusEndpoint = ""
}
