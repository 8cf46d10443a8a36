// Package ui provides terminal output components for the opcua-console CLI.
//
// Components are rendered with Lipgloss and follow a "print once" pattern;
// the interactive wizard lives in package wizard/tui.
//
//   - Header: command banner showing the operation and its parameters
//   - CheckBoard and Runner: per-broker rows with latency for check --all
//   - Result: success, warning and failure boxes; failures carry
//     troubleshooting tips taken from relay.TroubleshootingHint
//   - OutputBox: raw content such as a node's JSON value
//   - RenderTree: the browsed address space
//
// Example:
//
//	p := ui.NewPrinter(cmd.OutOrStdout())
//	p.PrintHeader("Connection Check", "opcua-console check", ui.D("Endpoint", endpoint))
//	res := client.ValidateConnection(ctx, endpoint)
//	if !res.OK() {
//	    p.PrintError("Connection failed", res.Err)
//	    return res.Err
//	}
//	p.PrintSuccess("Connected", ui.D("Status", string(res.Value.Status)))
//
// # Logging Integration
//
// Zap logging is silent unless OPCUA_CONSOLE_LOG_LEVEL is set, so these
// components are the only output a CLI user sees by default.
package ui
