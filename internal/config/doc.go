// Package config manages the console's saved broker connections and its
// deployment settings.
//
// # Saved brokers
//
// Broker connections created by the wizard are kept in a YAML registry in
// the platform configuration directory:
//   - Linux/macOS: $XDG_CONFIG_HOME/opcua-console/config.yaml or $HOME/.config/opcua-console/config.yaml
//   - Windows: %LOCALAPPDATA%\opcua-console\config.yaml
//
// Each broker is keyed by a UUID. Writes are atomic (temp file + rename).
//
// IMPORTANT: OPC UA passwords are NEVER written to the registry. They are
// stored in the OS keyring through package secrets, keyed by broker id.
//
// # Settings
//
// Where the backend lives and how the console server runs are deployment
// concerns and come from the environment (optionally seeded from a .env
// file) rather than from the registry:
//
//	OPCUA_BACKEND_URL         backend API root (default http://localhost:3000/api)
//	OPCUA_CONNECTION_TIMEOUT  request timeout in milliseconds (default 10000)
//	OPCUA_POLL_INTERVAL       dashboard status poll interval (default 30s)
//	OPCUA_CONSOLE_ADDR        console server listen address (default :8090)
//	OPCUA_CONSOLE_SESSION_KEY cookie signing key for flash messages
//	OPCUA_HISTORY_DB          SQLite status history path
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    return err
//	}
//	registry.PutBroker(&config.Broker{Name: "Line 1", Endpoint: "opc.tcp://plc-01:4840"})
//	if err := registry.Save(); err != nil {
//	    return err
//	}
package config
