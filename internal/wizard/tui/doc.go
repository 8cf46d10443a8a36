// Package tui implements the terminal front end of the configuration wizard.
//
// The screens are Bubble Tea models that drive a wizard.Wizard: the state
// machine owns the step index, the form data and the connection gate, and
// this package only turns key presses into calls on it and renders the
// result.
//
// # Screens
//
//   - Discovery: scans mDNS for OPC UA servers (bubbles/list, spinner and
//     progress) or takes an endpoint URL typed by hand. Skipped when no
//     scanner is configured or a saved broker is being edited.
//   - Wizard: one form per step. Text fields use bubbles/textinput; option
//     and toggle fields cycle with the arrow keys. ctrl+t tests the
//     connection in a tea.Cmd; results for an endpoint that has since been
//     edited are dropped.
//   - Saved: shown after the review step stored the broker in the registry
//     and its password in the keyring.
//
// Notifications from the wizard (gate, validation, submit) are shown as
// toasts; Toasts implements notify.Dispatcher.
//
// # Usage
//
//	broker, err := tui.Run(tui.Config{
//	    Relay:    client,
//	    Registry: registry,
//	    Secrets:  store,
//	    Scan:     tui.DefaultScan(5 * time.Second),
//	})
//
// All screens render through RenderApplicationContainer for a shared
// header and footer.
package tui
