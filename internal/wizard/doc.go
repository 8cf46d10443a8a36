// Package wizard holds the state of the broker configuration wizard.
//
// The wizard walks the operator through a fixed list of steps (server,
// security, objects, advanced, review) while accumulating a form. Only Next
// and Back move between steps; Next at the review step submits, which here
// means nothing more than producing the "Configuration Saved" notification.
// Saving the broker is left to the front end (see package wizard/tui and the
// console server).
//
// Front ends create a Wizard with New, feed form edits through Update and
// connection test results through SetConnectionStatus, and show the
// notification carried by each Transition:
//
//	w := wizard.New(wizard.WithConnectionGate())
//	w.SetEndpoint("opc.tcp://plc-01:4840")
//	w.SetConnectionStatus(client.ValidateConnection(ctx, "opc.tcp://plc-01:4840").Value)
//	t := w.Next()
//	notify.Send(toasts, t.Notice)
package wizard
