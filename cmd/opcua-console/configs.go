package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/opcua-console/internal/config"
	"github.com/muurk/opcua-console/internal/logging"
	"github.com/muurk/opcua-console/internal/secrets"
	"github.com/muurk/opcua-console/internal/ui"
	"github.com/muurk/opcua-console/internal/wizard"
	"github.com/muurk/opcua-console/internal/wizard/tui"
)

var (
	editRef    string
	deleteYes  bool
	noDiscover bool
)

func init() {
	rootCmd.AddCommand(wizardCmd)
	rootCmd.AddCommand(configsCmd)
	configsCmd.AddCommand(configsListCmd)
	configsCmd.AddCommand(configsShowCmd)
	configsCmd.AddCommand(configsDeleteCmd)

	wizardCmd.Flags().StringVar(&editRef, "edit", "", "Edit a saved configuration (name or id)")
	wizardCmd.Flags().BoolVar(&noDiscover, "no-discover", false, "Skip the network scan and start at the form")
	configsDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Delete without asking for confirmation")
}

// openSecrets returns the OS keyring, or an in-memory store when no
// keyring is available. Passwords are then lost when the process exits.
func openSecrets(p *ui.Printer) secrets.Store {
	store, err := secrets.GetStore()
	if err == nil {
		return store
	}
	logging.Warn("Keyring unavailable, using memory store", zap.Error(err))
	p.PrintWarning("System keyring unavailable",
		ui.D("Error", err.Error()),
		ui.D("Effect", "Passwords will not be kept after exit"),
	)
	mem := secrets.NewMemory()
	secrets.SetStore(mem)
	return mem
}

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Create or edit a broker configuration interactively",
	Long: `Launch the interactive configuration wizard.

The wizard scans the network for OPC UA servers, then walks through server
settings, security, monitored objects and advanced options. A connection
test must succeed before the configuration can be saved.`,
	Example: `  # New configuration
  opcua-console wizard

  # Edit a saved configuration
  opcua-console wizard --edit "Line 1 PLC"`,
	Args: cobra.NoArgs,
	RunE: runWizard,
}

func runWizard(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	p := ui.NewPrinter(cmd.OutOrStdout())

	reg, err := config.LoadRegistry()
	if err != nil {
		p.PrintError("Failed to load saved configurations", err)
		return reported(err)
	}

	cfg := tui.Config{
		Relay:             client,
		Registry:          reg,
		Secrets:           openSecrets(p),
		Save:              (*config.Registry).Save,
		ConnectionTimeout: settings.ConnectionTimeout,
	}

	if editRef != "" {
		b := reg.FindBroker(editRef)
		if b == nil {
			err := fmt.Errorf("no saved configuration matches %q", editRef)
			p.PrintError("Configuration not found", err)
			return reported(err)
		}
		cfg.Edit = b
	} else if prefs := reg.Preferences; prefs != nil && prefs.AutoDiscover && !noDiscover {
		timeout := time.Duration(prefs.DiscoverTimeout) * time.Second
		cfg.Scan = tui.DefaultScan(timeout)
		cfg.ScanTimeout = timeout
	}

	saved, err := tui.Run(cfg)
	if err != nil {
		p.PrintError("Wizard failed", err)
		return reported(err)
	}
	if saved == nil {
		p.Println("No changes saved.")
		return nil
	}

	path, _ := config.GetConfigPath()
	p.PrintSuccess("Configuration saved",
		ui.D("Name", saved.Name),
		ui.D("ID", saved.ID),
		ui.D("Endpoint", saved.Endpoint),
		ui.D("File", path),
	)
	return nil
}

var configsCmd = &cobra.Command{
	Use:     "configs",
	Aliases: []string{"config"},
	Short:   "Manage saved broker configurations",
}

var configsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved configurations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		p := ui.NewPrinter(cmd.OutOrStdout())

		reg, err := config.LoadRegistry()
		if err != nil {
			p.PrintError("Failed to load saved configurations", err)
			return reported(err)
		}
		brokers := reg.ListBrokers()

		if outputFormat == "json" {
			if brokers == nil {
				brokers = []*config.Broker{}
			}
			return printJSON(brokers)
		}

		if len(brokers) == 0 {
			p.PrintWarning("No saved configurations",
				ui.D("Hint", "Run 'opcua-console wizard' to add one"))
			return nil
		}

		for _, b := range brokers {
			p.Println(fmt.Sprintf("%s  %-24s %s", shortID(b.ID), b.Name, b.Endpoint))
		}
		p.Newline()
		p.Println(fmt.Sprintf("%d configuration(s)", len(brokers)))
		return nil
	},
}

var configsShowCmd = &cobra.Command{
	Use:   "show <name|id>",
	Short: "Show a saved configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		p := ui.NewPrinter(cmd.OutOrStdout())

		reg, err := config.LoadRegistry()
		if err != nil {
			p.PrintError("Failed to load saved configurations", err)
			return reported(err)
		}
		b := reg.FindBroker(args[0])
		if b == nil {
			err := fmt.Errorf("no saved configuration matches %q", args[0])
			p.PrintError("Configuration not found", err)
			return reported(err)
		}

		if outputFormat == "json" {
			return printJSON(b)
		}

		p.PrintOutput(ui.NewOutputBox(b.Name, wizard.FormatSummary(wizard.FromBroker(b).Summary())))
		p.Println(fmt.Sprintf("ID:      %s", b.ID))
		p.Println(fmt.Sprintf("Created: %s", b.CreatedAt.Local().Format(time.RFC1123)))
		p.Println(fmt.Sprintf("Updated: %s", b.UpdatedAt.Local().Format(time.RFC1123)))
		return nil
	},
}

var configsDeleteCmd = &cobra.Command{
	Use:   "delete <name|id>",
	Short: "Delete a saved configuration and its stored password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		p := ui.NewPrinter(cmd.OutOrStdout())

		reg, err := config.LoadRegistry()
		if err != nil {
			p.PrintError("Failed to load saved configurations", err)
			return reported(err)
		}
		b := reg.FindBroker(args[0])
		if b == nil {
			err := fmt.Errorf("no saved configuration matches %q", args[0])
			p.PrintError("Configuration not found", err)
			return reported(err)
		}

		if !deleteYes {
			warnings := []string{
				fmt.Sprintf("Configuration %q (%s) will be removed", b.Name, b.Endpoint),
			}
			if b.HasStoredSecret {
				warnings = append(warnings, "The stored password will be deleted from the keyring")
			}
			if !ui.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete configuration", warnings, "yes") {
				p.Println("Cancelled.")
				return nil
			}
		}

		removed, err := wizard.Remove(reg, openSecrets(p), b.ID)
		if err != nil {
			// The broker is gone from the registry; only the keyring entry survived.
			p.PrintWarning("Stored password not removed", ui.D("Error", err.Error()))
		}
		if !removed {
			return nil
		}
		if err := reg.Save(); err != nil {
			p.PrintError("Failed to save configuration file", err)
			return reported(err)
		}

		p.PrintSuccess("Configuration deleted",
			ui.D("Name", b.Name),
			ui.D("Remaining", strconv.Itoa(len(reg.ListBrokers()))),
		)
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
