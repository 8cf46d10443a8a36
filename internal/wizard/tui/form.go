package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/opcua-console/internal/config"
	"github.com/muurk/opcua-console/internal/wizard"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindPassword
	kindNumber
	kindOption
	kindToggle
)

// field binds one form control to a wizard.Data member. key matches the
// Field of the wizard.FieldError reported for it.
type field struct {
	key         string
	label       string
	kind        fieldKind
	placeholder string
	options     []string
	labels      map[string]string
	get         func(wizard.Data) string
	set         func(*wizard.Data, string)
	visible     func(wizard.Data) bool
}

func (f field) editable() bool {
	return f.kind == kindText || f.kind == kindPassword || f.kind == kindNumber
}

func (f field) shown(d wizard.Data) bool {
	return f.visible == nil || f.visible(d)
}

// display returns the value as shown when the field is not being typed in.
func (f field) display(d wizard.Data) string {
	v := f.get(d)
	switch f.kind {
	case kindOption:
		if l, ok := f.labels[v]; ok {
			return l
		}
		return v
	case kindToggle:
		if v == "true" {
			return "[x] Enabled"
		}
		return "[ ] Disabled"
	}
	return v
}

// cycle moves an option or toggle field by delta.
func (f field) cycle(d *wizard.Data, delta int) {
	switch f.kind {
	case kindToggle:
		f.set(d, strconv.FormatBool(f.get(*d) != "true"))
	case kindOption:
		if len(f.options) == 0 {
			return
		}
		cur := 0
		v := f.get(*d)
		for i, o := range f.options {
			if o == v {
				cur = i
				break
			}
		}
		next := (cur + delta + len(f.options)) % len(f.options)
		f.set(d, f.options[next])
	}
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func isUsernameAuth(d wizard.Data) bool {
	return d.AuthType == config.AuthUsername
}

func isPolling(d wizard.Data) bool {
	return d.Subscription.Mode != config.AcquisitionSubscription
}

func isSubscription(d wizard.Data) bool {
	return d.Subscription.Mode == config.AcquisitionSubscription
}

func numberField(key, label string, get func(wizard.Data) int, set func(*wizard.Data, int)) field {
	return field{
		key:   key,
		label: label,
		kind:  kindNumber,
		get:   func(d wizard.Data) string { return strconv.Itoa(get(d)) },
		set:   func(d *wizard.Data, v string) { set(d, atoi(v)) },
	}
}

// stepFields returns the controls for step in display order. The review
// step has none.
func stepFields(step wizard.Step) []field {
	switch step {
	case wizard.StepServer:
		return []field{
			{
				key: "name", label: "Server Name", kind: kindText,
				placeholder: "Production OPC UA Broker",
				get:         func(d wizard.Data) string { return d.Name },
				set:         func(d *wizard.Data, v string) { d.Name = v },
			},
			{
				key: "endpoint", label: "Endpoint URL", kind: kindText,
				placeholder: "opc.tcp://localhost:4840",
				get:         func(d wizard.Data) string { return d.Endpoint },
				set:         func(d *wizard.Data, v string) { d.Endpoint = strings.TrimSpace(v) },
			},
			numberField("refreshRate", "Refresh Rate (ms)",
				func(d wizard.Data) int { return d.RefreshRate },
				func(d *wizard.Data, n int) { d.RefreshRate = n }),
		}

	case wizard.StepSecurity:
		return []field{
			{
				key: "securityMode", label: "Security Mode", kind: kindOption,
				options: config.SecurityModes, labels: config.SecurityModeLabels,
				get: func(d wizard.Data) string { return d.SecurityMode },
				set: func(d *wizard.Data, v string) {
					d.SecurityMode = v
					if v == config.SecurityModeNone {
						d.SecurityPolicy = "None"
					}
				},
			},
			{
				key: "securityPolicy", label: "Security Policy", kind: kindOption,
				options: config.SecurityPolicies,
				get:     func(d wizard.Data) string { return d.SecurityPolicy },
				set:     func(d *wizard.Data, v string) { d.SecurityPolicy = v },
			},
			{
				key: "authenticationType", label: "Authentication", kind: kindOption,
				options: config.AuthTypes, labels: config.AuthTypeLabels,
				get: func(d wizard.Data) string { return d.AuthType },
				set: func(d *wizard.Data, v string) { d.AuthType = v },
			},
			{
				key: "username", label: "Username", kind: kindText,
				get:     func(d wizard.Data) string { return d.Username },
				set:     func(d *wizard.Data, v string) { d.Username = v },
				visible: isUsernameAuth,
			},
			{
				key: "password", label: "Password", kind: kindPassword,
				get:     func(d wizard.Data) string { return d.Password },
				set:     func(d *wizard.Data, v string) { d.Password = v },
				visible: isUsernameAuth,
			},
			{
				key: "enableAnonymous", label: "Anonymous Access", kind: kindToggle,
				get: func(d wizard.Data) string { return strconv.FormatBool(d.EnableAnonymous) },
				set: func(d *wizard.Data, v string) { d.EnableAnonymous = v == "true" },
			},
		}

	case wizard.StepObjects:
		poll := numberField("pollingInterval", "Polling Interval (ms)",
			func(d wizard.Data) int { return d.Subscription.PollingInterval },
			func(d *wizard.Data, n int) { d.Subscription.PollingInterval = n })
		poll.visible = isPolling
		buf := numberField("bufferSize", "Buffer Size",
			func(d wizard.Data) int { return d.Subscription.BufferSize },
			func(d *wizard.Data, n int) { d.Subscription.BufferSize = n })
		buf.visible = isPolling
		pub := numberField("publishingInterval", "Publishing Interval (ms)",
			func(d wizard.Data) int { return d.Subscription.PublishingInterval },
			func(d *wizard.Data, n int) { d.Subscription.PublishingInterval = n })
		pub.visible = isSubscription
		life := numberField("lifetimeCount", "Lifetime Count",
			func(d wizard.Data) int { return d.Subscription.LifetimeCount },
			func(d *wizard.Data, n int) { d.Subscription.LifetimeCount = n })
		life.visible = isSubscription
		keep := numberField("maxKeepAliveCount", "Max Keep-Alive Count",
			func(d wizard.Data) int { return d.Subscription.MaxKeepAliveCount },
			func(d *wizard.Data, n int) { d.Subscription.MaxKeepAliveCount = n })
		keep.visible = isSubscription

		return []field{
			{
				key: "nodes", label: "Node IDs", kind: kindText,
				placeholder: "ns=2;s=Line1.Temperature, i=2258",
				get:         func(d wizard.Data) string { return strings.Join(d.Nodes, ", ") },
				set:         func(d *wizard.Data, v string) { d.Nodes = splitNodes(v) },
			},
			{
				key: "mode", label: "Data Acquisition", kind: kindOption,
				options: []string{config.AcquisitionPolling, config.AcquisitionSubscription},
				labels: map[string]string{
					config.AcquisitionPolling:      "Polling",
					config.AcquisitionSubscription: "Subscription",
				},
				get: func(d wizard.Data) string { return d.Subscription.Mode },
				set: func(d *wizard.Data, v string) { d.Subscription.Mode = v },
			},
			poll, buf, pub, life, keep,
		}

	case wizard.StepAdvanced:
		return []field{
			{
				key: "enableDiagnostics", label: "Diagnostics", kind: kindToggle,
				get: func(d wizard.Data) string { return strconv.FormatBool(d.EnableDiagnostics) },
				set: func(d *wizard.Data, v string) { d.EnableDiagnostics = v == "true" },
			},
			{
				key: "priority", label: "Performance Mode", kind: kindOption,
				options: config.Priorities,
				labels: map[string]string{
					config.PriorityLow:    "Low",
					config.PriorityNormal: "Normal",
					config.PriorityHigh:   "High",
				},
				get: func(d wizard.Data) string { return d.Priority },
				set: func(d *wizard.Data, v string) { d.Priority = v },
			},
		}
	}
	return nil
}

// splitNodes turns a comma or whitespace separated list into node ids.
func splitNodes(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == ' ' || r == '\t'
	})
	if len(parts) == 0 {
		return nil
	}
	return parts
}

// formModel is the set of controls for the current step.
type formModel struct {
	fields []field
	inputs map[string]textinput.Model
	focus  int
}

func newFormModel(step wizard.Step, d wizard.Data) formModel {
	f := formModel{
		fields: stepFields(step),
		inputs: make(map[string]textinput.Model),
	}
	for _, fd := range f.fields {
		if !fd.editable() {
			continue
		}
		ti := textinput.New()
		ti.Placeholder = fd.placeholder
		ti.CharLimit = 256
		ti.Width = 48
		ti.Prompt = ""
		if fd.kind == kindPassword {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		if fd.kind == kindNumber {
			ti.CharLimit = 6
		}
		ti.SetValue(fd.get(d))
		f.inputs[fd.key] = ti
	}
	f.syncFocus(d)
	return f
}

// visible returns the fields shown for d.
func (f formModel) visible(d wizard.Data) []field {
	out := make([]field, 0, len(f.fields))
	for _, fd := range f.fields {
		if fd.shown(d) {
			out = append(out, fd)
		}
	}
	return out
}

// current returns the focused field.
func (f formModel) current(d wizard.Data) (field, bool) {
	vis := f.visible(d)
	if len(vis) == 0 {
		return field{}, false
	}
	return vis[min(f.focus, len(vis)-1)], true
}

// move shifts focus by delta, wrapping around, and focuses the matching
// text input.
func (f *formModel) move(d wizard.Data, delta int) tea.Cmd {
	vis := f.visible(d)
	if len(vis) == 0 {
		return nil
	}
	f.focus = (f.focus + delta + len(vis)) % len(vis)
	return f.syncFocus(d)
}

// focusKey moves focus to the field with key, if it is visible.
func (f *formModel) focusKey(d wizard.Data, key string) tea.Cmd {
	for i, fd := range f.visible(d) {
		if fd.key == key {
			f.focus = i
			return f.syncFocus(d)
		}
	}
	return nil
}

func (f *formModel) syncFocus(d wizard.Data) tea.Cmd {
	vis := f.visible(d)
	if f.focus >= len(vis) {
		f.focus = max(len(vis)-1, 0)
	}
	var cmd tea.Cmd
	for i, fd := range vis {
		ti, ok := f.inputs[fd.key]
		if !ok {
			continue
		}
		if i == f.focus {
			cmd = ti.Focus()
		} else {
			ti.Blur()
		}
		f.inputs[fd.key] = ti
	}
	// hidden inputs never keep focus
	for _, fd := range f.fields {
		if !fd.shown(d) {
			if ti, ok := f.inputs[fd.key]; ok {
				ti.Blur()
				f.inputs[fd.key] = ti
			}
		}
	}
	return cmd
}

// update feeds a key to the focused field and writes the result into the
// wizard's data.
func (f *formModel) update(w *wizard.Wizard, msg tea.KeyMsg) tea.Cmd {
	fd, ok := f.current(w.Data())
	if !ok {
		return nil
	}

	switch fd.kind {
	case kindOption, kindToggle:
		switch msg.String() {
		case "left", "h":
			w.Update(func(d *wizard.Data) { fd.cycle(d, -1) })
		case "right", "l", " ":
			w.Update(func(d *wizard.Data) { fd.cycle(d, 1) })
		}
		return f.syncFocus(w.Data())
	}

	ti := f.inputs[fd.key]
	var cmd tea.Cmd
	ti, cmd = ti.Update(msg)
	f.inputs[fd.key] = ti
	value := ti.Value()
	w.Update(func(d *wizard.Data) { fd.set(d, value) })
	return cmd
}
