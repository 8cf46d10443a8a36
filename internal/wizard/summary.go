package wizard

import (
	"fmt"
	"strings"

	"github.com/muurk/opcua-console/internal/config"
)

// Item is one labelled value in the review.
type Item struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Section groups review items under a heading.
type Section struct {
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Summary returns the review of the form, grouped the way the review step
// shows it.
func (d Data) Summary() []Section {
	auth := labelOr(config.AuthTypeLabels, d.AuthType)
	if d.AuthType == config.AuthUsername && d.Username != "" {
		auth = fmt.Sprintf("%s (%s)", auth, d.Username)
	}

	nodes := "(none)"
	if len(d.Nodes) > 0 {
		nodes = fmt.Sprintf("%d selected", len(d.Nodes))
	}

	var acquisition string
	if d.Subscription.Mode == config.AcquisitionSubscription {
		acquisition = fmt.Sprintf("Subscription (publish %d ms, lifetime %d, keep-alive %d)",
			d.Subscription.PublishingInterval, d.Subscription.LifetimeCount, d.Subscription.MaxKeepAliveCount)
	} else {
		acquisition = fmt.Sprintf("Polling (%d ms, buffer %d)", d.Subscription.PollingInterval, d.Subscription.BufferSize)
	}

	return []Section{
		{
			Title: "Server Configuration",
			Items: []Item{
				{"Server Name", d.Name},
				{"Endpoint", d.Endpoint},
				{"Refresh Rate", fmt.Sprintf("%d ms", d.RefreshRate)},
			},
		},
		{
			Title: "Security Configuration",
			Items: []Item{
				{"Security Mode", labelOr(config.SecurityModeLabels, d.SecurityMode)},
				{"Security Policy", d.SecurityPolicy},
				{"Authentication", auth},
				{"Anonymous Access", enabled(d.EnableAnonymous)},
			},
		},
		{
			Title: "Object Selection",
			Items: []Item{
				{"Nodes", nodes},
				{"Data Acquisition", acquisition},
			},
		},
		{
			Title: "Advanced Settings",
			Items: []Item{
				{"Diagnostics", enabled(d.EnableDiagnostics)},
				{"Performance Mode", capitalize(d.Priority)},
			},
		},
	}
}

// Summary returns the review of the current form data.
func (w *Wizard) Summary() []Section {
	return w.data.Summary()
}

// FormatSummary renders sections as plain text.
func FormatSummary(sections []Section) string {
	var b strings.Builder

	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("=== %s ===\n", s.Title))

		width := 0
		for _, it := range s.Items {
			if len(it.Label) > width {
				width = len(it.Label)
			}
		}
		for _, it := range s.Items {
			b.WriteString(fmt.Sprintf("%-*s %s\n", width+1, it.Label+":", it.Value))
		}
	}

	return b.String()
}

func enabled(v bool) string {
	if v {
		return "Enabled"
	}
	return "Disabled"
}

func labelOr(labels map[string]string, key string) string {
	if l, ok := labels[key]; ok {
		return l
	}
	return capitalize(key)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
