// Package logging provides structured logging for the OPC UA broker console.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used across the CLI, the terminal wizard and the web
// console server.
//
// # Log Levels
//
//   - Debug: relay round trips, WebSocket payloads, poll ticks
//   - Info: HTTP requests, connection events, saved configurations
//   - Warn: failed relay calls, dropped WebSocket clients
//   - Error: normalized operation failures, startup failures
//
// # Silent by Default
//
// CLI commands call InitializeFromEnv, which leaves the logger as a no-op
// unless OPCUA_CONSOLE_LOG_LEVEL is set. The server calls Initialize with
// its --log-level flag.
//
//	if err := logging.Initialize("debug"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// # Specialized Logging
//
//	logging.LogRelayCall("browse", endpoint, 200, elapsed, nil)
//	logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path)
//	logging.LogConnection(remoteAddr, "websocket_upgraded")
//
// All functions are safe for concurrent use.
package logging
