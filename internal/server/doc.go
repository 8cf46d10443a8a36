// Package server implements the OPC UA web console.
//
// The console relays browser requests to the OPC UA backend service and
// shows the status of every saved broker. Routes:
//
//	GET    /                          dashboard (embedded HTML)
//	GET    /api/health                name and version
//	POST   /api/connections/validate  {endpoint}
//	POST   /api/browse                {endpoint, nodeId}
//	POST   /api/read                  {endpoint, nodeId}
//	POST   /api/write                 {endpoint, nodeId, value, dataType}
//	GET    /api/configs               saved configurations
//	POST   /api/configs               wizard form plus password
//	GET    /api/configs/{id}          one configuration (id, id prefix or name)
//	DELETE /api/configs/{id}
//	GET    /api/status                latest monitor snapshot
//	GET    /ws/status                 snapshot push over WebSocket
//
// Every API response has the same shape:
//
//	{"ok": false, "value": [], "error": {"type": "HTTP Error", "message": "Browse error: Not Found", "hint": "..."}, "notice": {...}}
//
// Relay failures are reported with status 200 and ok=false, mirroring the
// tagged results of package relay. Malformed requests get 400, invalid
// configurations 422 with per-field errors.
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{Port: 8090}, server.Deps{
//	    Relay:    relay.New(relay.DefaultConfig()),
//	    Registry: registry,
//	    Secrets:  store,
//	    Monitor:  mon,
//	})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx) // blocks until SIGINT/SIGTERM
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the monitor is stopped, WebSocket clients are
// disconnected and in-flight requests get up to 10 seconds to finish.
package server
