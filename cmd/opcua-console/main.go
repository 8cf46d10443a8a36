// Opcua-console is the operator CLI for OPC UA broker connections.
//
// It relays connection checks, browsing and value reads/writes through the
// OPC UA backend, discovers servers over mDNS and manages saved broker
// configurations. Running without arguments launches the interactive
// configuration wizard.
//
// Usage:
//
//	opcua-console [command] [flags]
//
// See 'opcua-console --help' for available commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/opcua-console/internal/config"
	"github.com/muurk/opcua-console/internal/logging"
	"github.com/muurk/opcua-console/internal/relay"
	"github.com/muurk/opcua-console/internal/telemetry"
	"github.com/muurk/opcua-console/internal/version"
)

// reportedError is an error that a command already rendered as a result
// box; main only sets the exit code for it.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error { return e.error }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err}
}

func main() {
	err := rootCmd.Execute()
	shutdown()
	if err != nil {
		var r reportedError
		if !errors.As(err, &r) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// Global flags
var (
	backendURL   string
	timeoutMS    int
	outputFormat string
	envFile      string
)

// Initialized by setup before any command runs
var (
	settings          *config.Settings
	client            *relay.Client
	shutdownTelemetry telemetry.Shutdown
)

var rootCmd = &cobra.Command{
	Use:   "opcua-console",
	Short: "OPC UA Broker Console",
	Long: `An operator console for OPC UA broker connections.

Checks connections, browses address spaces and reads or writes node values
through the OPC UA backend, discovers servers on the local network and
manages saved broker configurations.

If no command is specified, the interactive configuration wizard will launch
automatically.`,
	Version:           version.Version,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWizard(cmd, args)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "OPC UA backend API URL (default $"+config.EnvBackendURL+" or "+config.DefaultBackendURL+")")
	rootCmd.PersistentFlags().IntVar(&timeoutMS, "timeout", 0, "Backend request timeout in milliseconds (default $"+config.EnvConnectionTimeout+" or 10000)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Settings file loaded into the environment")

	rootCmd.AddCommand(versionCmd)
}

// setup loads settings, then builds the relay client every command uses.
// Flags override the environment, which overrides .env.
func setup(cmd *cobra.Command, args []string) error {
	// Silent unless OPCUA_CONSOLE_LOG_LEVEL is set
	if err := logging.InitializeFromEnv(); err != nil {
		return err
	}

	s, err := config.LoadSettings(envFile)
	if err != nil {
		return err
	}
	if backendURL != "" {
		s.BackendURL = backendURL
	}
	if timeoutMS > 0 {
		s.ConnectionTimeout = time.Duration(timeoutMS) * time.Millisecond
	}
	switch outputFormat {
	case "detailed", "json", "tree":
	default:
		return fmt.Errorf("unknown output format %q (use detailed or json)", outputFormat)
	}
	settings = s
	logging.Debug("Settings loaded", zap.String("settings", s.String()))

	shutdownTelemetry, err = telemetry.InitializeFromEnv(cmd.Context(), version.Name)
	if err != nil {
		logging.Warn("Tracing disabled", zap.Error(err))
	}

	client = relay.New(relay.Config{
		BaseURL: s.BackendURL,
		Timeout: s.ConnectionTimeout,
	}, relay.WithTracer(telemetry.Tracer(version.Name)))
	return nil
}

// shutdown flushes traces and logs.
func shutdown() {
	if shutdownTelemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logging.Warn("Failed to flush traces", zap.Error(err))
		}
	}
	logging.Sync()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("opcua-console %s\n", version.Full())
	},
}
