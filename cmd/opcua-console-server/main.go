// Opcua-console-server is the web console for OPC UA broker connections.
//
// It serves the browser UI and a JSON API that relays connection checks,
// browsing and value reads/writes to the OPC UA backend, manages saved
// broker configurations and polls every saved broker on a schedule,
// pushing status changes to browsers over WebSocket.
//
// Usage:
//
//	opcua-console-server server [flags]
//
// See 'opcua-console-server server --help' for available options.
package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/opcua-console/internal/config"
	"github.com/muurk/opcua-console/internal/logging"
	"github.com/muurk/opcua-console/internal/monitor"
	"github.com/muurk/opcua-console/internal/relay"
	"github.com/muurk/opcua-console/internal/secrets"
	"github.com/muurk/opcua-console/internal/server"
	"github.com/muurk/opcua-console/internal/telemetry"
	"github.com/muurk/opcua-console/internal/version"
)

const serviceName = "opcua-console-server"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "opcua-console-server",
	Short: "OPC UA Broker Web Console",
	Long: `A web console for OPC UA broker connections.

Serves the browser UI and JSON API, relays requests to the OPC UA backend and
monitors every saved broker connection.

Note: For the terminal wizard and one-off commands, use 'opcua-console'.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
}

// Server command and flags
var (
	certPath    string
	keyPath     string
	host        string
	port        int
	logLevel    string
	envFile     string
	interval    time.Duration
	historyPath string
	retention   time.Duration
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the web console",
	Long: `Start the web console.

Settings are read from the environment (and --env-file):

  ` + config.EnvBackendURL + `         OPC UA backend API URL
  ` + config.EnvConnectionTimeout + `   Backend request timeout (ms)
  ` + config.EnvPollInterval + `        Broker status poll interval
  ` + config.EnvListenAddr + `       Listen address
  ` + config.EnvSessionKey + `  Cookie signing key
  ` + config.EnvHistoryDB + `           Status history database

Flags override the environment. HTTPS is served when both --cert and --key
are given.`,
	Example: `  # Start on the default address (:8090)
  opcua-console-server server

  # Custom port with debug logging
  opcua-console-server server --port 9000 --log-level debug

  # HTTPS with your own certificate
  opcua-console-server server --cert /path/to/fullchain.pem --key /path/to/privkey.pem

  # Poll brokers every 10 seconds
  opcua-console-server server --interval 10s`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().StringVar(&certPath, "cert", "", "Path to TLS certificate file (optional)")
	serverCmd.Flags().StringVar(&keyPath, "key", "", "Path to TLS private key file (optional)")
	serverCmd.Flags().StringVar(&host, "host", "", "Listen host (default from $"+config.EnvListenAddr+", empty = all interfaces)")
	serverCmd.Flags().IntVar(&port, "port", 0, "Listen port (default from $"+config.EnvListenAddr+" or 8090)")
	serverCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serverCmd.Flags().StringVar(&envFile, "env-file", ".env", "Settings file loaded into the environment")
	serverCmd.Flags().DurationVar(&interval, "interval", 0, "Broker status poll interval (default from $"+config.EnvPollInterval+" or 30s)")
	serverCmd.Flags().StringVar(&historyPath, "history", "", "Status history database (default from $"+config.EnvHistoryDB+")")
	serverCmd.Flags().DurationVar(&retention, "retention", 7*24*time.Hour, "How long status history is kept")
}

// listenAddr splits a host:port listen address; flags win when set.
func listenAddr(addr, flagHost string, flagPort int) (string, int, error) {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("invalid listen port %q", p)
	}
	if flagHost != "" {
		h = flagHost
	}
	if flagPort > 0 {
		n = flagPort
	}
	return h, n, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	if (certPath != "" && keyPath == "") || (certPath == "" && keyPath != "") {
		return fmt.Errorf("both --cert and --key must be provided together, or neither")
	}
	if certPath != "" {
		if _, err := os.Stat(certPath); os.IsNotExist(err) {
			return fmt.Errorf("certificate file not found: %s", certPath)
		}
		if _, err := os.Stat(keyPath); os.IsNotExist(err) {
			return fmt.Errorf("private key file not found: %s", keyPath)
		}
	}

	if err := logging.Initialize(logLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logging.Sync()

	settings, err := config.LoadSettings(envFile)
	if err != nil {
		return err
	}
	if interval > 0 {
		settings.PollInterval = interval
	}
	if historyPath != "" {
		settings.HistoryDB = historyPath
	}
	h, p, err := listenAddr(settings.ListenAddr, host, port)
	if err != nil {
		return err
	}
	logging.Info("Starting web console",
		zap.String("version", version.Full()),
		zap.String("settings", settings.String()),
	)

	ctx := cmd.Context()
	shutdownTelemetry, err := telemetry.InitializeFromEnv(ctx, serviceName)
	if err != nil {
		logging.Warn("Tracing disabled", zap.Error(err))
	} else {
		defer func() {
			if err := shutdownTelemetry(ctx); err != nil {
				logging.Warn("Failed to flush traces", zap.Error(err))
			}
		}()
	}

	client := relay.New(relay.Config{
		BaseURL: settings.BackendURL,
		Timeout: settings.ConnectionTimeout,
	}, relay.WithTracer(telemetry.Tracer(serviceName)))

	registry, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load configurations: %w", err)
	}

	store, err := secrets.GetStore()
	if err != nil {
		logging.Warn("Keyring unavailable, passwords are kept in memory only", zap.Error(err))
		store = secrets.NewMemory()
		secrets.SetStore(store)
	}

	if err := os.MkdirAll(filepath.Dir(settings.HistoryDB), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	history, err := monitor.OpenHistory(settings.HistoryDB)
	if err != nil {
		return err
	}
	defer func() {
		if err := history.Close(); err != nil {
			logging.Warn("Failed to close history database", zap.Error(err))
		}
	}()

	mon := monitor.New(client, registry,
		monitor.WithHistory(history),
		monitor.WithInterval(settings.PollInterval),
		monitor.WithRetention(retention),
	)

	srv, err := server.New(&server.Config{
		Host:       h,
		Port:       p,
		CertPath:   certPath,
		KeyPath:    keyPath,
		SessionKey: settings.SessionKey,
	}, server.Deps{
		Relay:    client,
		Registry: registry,
		Secrets:  store,
		Monitor:  mon,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", serviceName, version.Full())
	},
}
