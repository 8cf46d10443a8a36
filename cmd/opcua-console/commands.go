package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/opcua-console/internal/addrspace"
	"github.com/muurk/opcua-console/internal/config"
	"github.com/muurk/opcua-console/internal/discovery"
	"github.com/muurk/opcua-console/internal/endpoint"
	"github.com/muurk/opcua-console/internal/relay"
	"github.com/muurk/opcua-console/internal/ui"
)

// Command flags
var (
	checkAll     bool
	browseDepth  int
	browseSearch string
	writeType    string
	writeRaw     bool
	scanTimeout  int
)

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(scanCmd)
}

// resolveEndpoint accepts an endpoint URL or the name/id of a saved
// configuration.
func resolveEndpoint(ref string) (string, error) {
	if endpoint.IsValid(ref) {
		return ref, nil
	}
	if !strings.Contains(ref, "://") {
		if reg, err := config.LoadRegistry(); err == nil {
			if b := reg.FindBroker(ref); b != nil {
				return b.Endpoint, nil
			}
		}
	}
	if err := endpoint.Validate(ref); err != nil {
		return "", err
	}
	return ref, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// checkCmd tests whether the backend can reach an OPC UA server
var checkCmd = &cobra.Command{
	Use:   "check [endpoint|name]",
	Short: "Test the connection to an OPC UA server",
	Long: `Ask the backend to connect to an OPC UA server and report the result.

The argument is either an opc.tcp:// endpoint URL or the name or id of a
saved configuration. With --all every saved configuration is checked.`,
	Example: `  # Check an endpoint
  opcua-console check opc.tcp://plc-01.local:4840

  # Check a saved configuration by name
  opcua-console check "Line 1 PLC"

  # Check every saved configuration
  opcua-console check --all`,
	Args: func(cmd *cobra.Command, args []string) error {
		if checkAll {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkAll, "all", false, "Check every saved configuration")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	if checkAll {
		return runCheckAll(cmd)
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	ep, err := resolveEndpoint(args[0])
	if err != nil {
		p.PrintError("Invalid endpoint", err)
		return reported(err)
	}

	if outputFormat != "json" {
		p.PrintHeader("Connection Check", "opcua-console check "+args[0],
			ui.D("Endpoint", ep),
			ui.D("Backend", client.BaseURL()),
		)
	}

	start := time.Now()
	res := client.ValidateConnection(cmd.Context(), ep)
	elapsed := time.Since(start).Round(time.Millisecond)

	if outputFormat == "json" {
		if err := printJSON(res.Value); err != nil {
			return err
		}
		return reported(res.Err)
	}

	if !res.OK() {
		p.PrintError("Connection failed", res.Err)
		return reported(res.Err)
	}

	details := []ui.Detail{ui.D("Endpoint", ep), ui.D("Status", string(res.Value.Status))}
	if res.Value.Message != "" {
		details = append(details, ui.D("Message", res.Value.Message))
	}
	details = append(details, ui.D("Duration", elapsed.String()))
	p.PrintSuccess("Connected", details...)
	return nil
}

func runCheckAll(cmd *cobra.Command) error {
	p := ui.NewPrinter(cmd.OutOrStdout())

	reg, err := config.LoadRegistry()
	if err != nil {
		p.PrintError("Failed to load saved configurations", err)
		return reported(err)
	}
	brokers := reg.ListBrokers()
	if len(brokers) == 0 {
		p.PrintWarning("No saved configurations",
			ui.D("Hint", "Run 'opcua-console wizard' to add one"))
		return nil
	}

	rows := make([]ui.CheckRow, len(brokers))
	for i, b := range brokers {
		rows[i] = ui.CheckRow{Name: b.Name, Endpoint: b.Endpoint}
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Broker Check",
		Command: "opcua-console check --all",
		Params:  []ui.Detail{ui.D("Brokers", strconv.Itoa(len(brokers))), ui.D("Backend", client.BaseURL())},
		Brokers: rows,
		Output:  cmd.OutOrStdout(),
	})

	err = runner.Run(cmd.Context(), func(ctx context.Context, onCheck ui.CheckCallback) ([]ui.Detail, error) {
		for i, b := range brokers {
			onCheck(i, ui.CheckRunning, 0, "")
			start := time.Now()
			res := client.ValidateConnection(ctx, b.Endpoint)
			if res.OK() {
				onCheck(i, ui.CheckConnected, time.Since(start), "")
			} else {
				onCheck(i, ui.CheckFailed, time.Since(start), res.Message())
			}
		}

		if down := runner.Board().Unreachable(); len(down) > 0 {
			return nil, fmt.Errorf("%d of %d brokers unreachable", len(down), len(brokers))
		}
		return nil, nil
	})
	return reported(err)
}

// browseCmd lists the address space of a server
var browseCmd = &cobra.Command{
	Use:   "browse <endpoint|name> [nodeId]",
	Short: "Browse the address space of an OPC UA server",
	Long: `Browse the children of a node. Without a node id the root folder (i=84)
is browsed after checking the connection.

Folders and objects are expanded down to --depth levels. A node reachable
through several parents is browsed once and shown under each of them.`,
	Example: `  # Browse from the root folder
  opcua-console browse opc.tcp://plc-01.local:4840

  # Browse the Objects folder two levels deep
  opcua-console browse opc.tcp://plc-01.local:4840 i=85 --depth 2

  # Find temperature variables
  opcua-console browse "Line 1 PLC" i=85 --depth 3 --search temp

  # JSON output for scripting
  opcua-console browse opc.tcp://plc-01.local:4840 --format json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().IntVar(&browseDepth, "depth", 1, "Levels to expand (1 = direct children only)")
	browseCmd.Flags().StringVar(&browseSearch, "search", "", "Only show nodes whose name, type or data type matches")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	p := ui.NewPrinter(cmd.OutOrStdout())

	ep, err := resolveEndpoint(args[0])
	if err != nil {
		p.PrintError("Invalid endpoint", err)
		return reported(err)
	}
	nodeID := ""
	if len(args) > 1 {
		nodeID = args[1]
	}

	if outputFormat != "json" {
		start := nodeID
		if start == "" {
			start = addrspace.RootNodeID + " (root)"
		}
		p.PrintHeader("Browse", "opcua-console browse "+strings.Join(args, " "),
			ui.D("Endpoint", ep),
			ui.D("Node", start),
			ui.D("Depth", strconv.Itoa(browseDepth)),
		)
	}

	nodes, err := browseTree(cmd.Context(), client, ep, nodeID, browseDepth)
	if err != nil {
		if outputFormat == "json" {
			return err
		}
		p.PrintError("Browse failed", err)
		return reported(err)
	}

	if browseSearch != "" {
		nodes = addrspace.NewTree(nodes).Search(browseSearch)
	}

	if outputFormat == "json" {
		return printJSON(nodes)
	}

	p.PrintTree(nodes)
	p.Newline()
	p.Println(fmt.Sprintf("%d node(s)", len(addrspace.Flatten(nodes))))
	return nil
}

// browser is the part of the relay client browseTree needs.
type browser interface {
	Browse(ctx context.Context, endpointURL, nodeID string) relay.Result[[]addrspace.Node]
}

// browseTree browses nodeID and then expands folders and objects until
// depth levels have been fetched. Each node is browsed once per level and
// its children are attached under every parent it appears below. Failures
// below the first level leave the node unexpanded.
func browseTree(ctx context.Context, b browser, ep, nodeID string, depth int) ([]addrspace.Node, error) {
	res := b.Browse(ctx, ep, nodeID)
	if !res.OK() {
		return nil, res.Err
	}

	tree := addrspace.NewTree(res.Value)
	frontier := res.Value
	for level := 1; level < depth && len(frontier) > 0; level++ {
		var next []addrspace.Node
		seen := make(map[string]bool)
		for _, n := range frontier {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			if !n.NodeType.Is(addrspace.Folder) && !n.NodeType.Is(addrspace.Object) {
				continue
			}
			children := b.Browse(ctx, ep, n.ID)
			if !children.OK() || len(children.Value) == 0 {
				continue
			}
			tree.ReplaceAll(n.ID, children.Value)
			next = append(next, children.Value...)
		}
		frontier = next
	}
	return tree.Roots, nil
}

// readCmd reads a node value
var readCmd = &cobra.Command{
	Use:   "read <endpoint|name> <nodeId>",
	Short: "Read the current value of a node",
	Example: `  opcua-console read opc.tcp://plc-01.local:4840 "ns=2;s=Line1.Temperature"

  # Current server time
  opcua-console read opc.tcp://plc-01.local:4840 i=2258 --format json`,
	Args: cobra.ExactArgs(2),
	RunE: runRead,
}

func runRead(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	p := ui.NewPrinter(cmd.OutOrStdout())

	ep, err := resolveEndpoint(args[0])
	if err != nil {
		p.PrintError("Invalid endpoint", err)
		return reported(err)
	}

	res := client.ReadValue(cmd.Context(), ep, args[1])
	if outputFormat == "json" {
		if !res.OK() {
			return res.Err
		}
		return printJSON(res.Value)
	}

	if !res.OK() {
		p.PrintError("Read failed", res.Err)
		return reported(res.Err)
	}

	v := res.Value
	details := []ui.Detail{ui.D("Node", v.NodeID)}
	if v.DataType != "" {
		details = append(details, ui.D("Data Type", v.DataType))
	}
	if ts, ok := v.Timestamp(); ok {
		details = append(details, ui.D("Source Time", ts.Local().Format(time.RFC3339)))
	} else if len(v.SourceTimestamp) > 0 {
		details = append(details, ui.D("Source Time", string(v.SourceTimestamp)))
	}
	p.PrintSuccess("Value read", details...)
	p.PrintOutput(ui.NewJSONBox("Value", v.Value))
	return nil
}

// writeCmd writes a node value
var writeCmd = &cobra.Command{
	Use:   "write <endpoint|name> <nodeId> <value>",
	Short: "Write a value to a node",
	Long: `Write a value to a node through the backend.

The value is parsed as JSON when possible (numbers, booleans, arrays,
quoted strings); anything else is sent as a string. Use --raw to always
send the argument as a string.`,
	Example: `  # Write a setpoint
  opcua-console write opc.tcp://plc-01.local:4840 "ns=2;s=Line1.Setpoint" 72.5 --type Double

  # Write a string
  opcua-console write "Line 1 PLC" "ns=2;s=Line1.Recipe" "Batch 7" --raw`,
	Args: cobra.ExactArgs(3),
	RunE: runWrite,
}

func init() {
	writeCmd.Flags().StringVar(&writeType, "type", "", "OPC UA data type of the value (e.g. Double, Int32, Boolean, String)")
	writeCmd.Flags().BoolVar(&writeRaw, "raw", false, "Send the value as a string without JSON parsing")
}

// parseValue interprets a command line value.
func parseValue(s string, raw bool) any {
	if raw {
		return s
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func runWrite(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	p := ui.NewPrinter(cmd.OutOrStdout())

	ep, err := resolveEndpoint(args[0])
	if err != nil {
		p.PrintError("Invalid endpoint", err)
		return reported(err)
	}

	req := relay.WriteRequest{
		Endpoint: ep,
		NodeID:   args[1],
		Value:    parseValue(args[2], writeRaw),
		DataType: writeType,
	}
	res := client.WriteValue(cmd.Context(), req)
	if !res.OK() {
		p.PrintError("Write failed", res.Err)
		return reported(res.Err)
	}

	details := []ui.Detail{ui.D("Node", args[1]), ui.D("Value", args[2])}
	if writeType != "" {
		details = append(details, ui.D("Data Type", writeType))
	}
	p.PrintSuccess("Value Written", details...)
	return nil
}

// scanCmd discovers OPC UA servers on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for OPC UA servers on the network",
	Long: `Scan for OPC UA servers using mDNS/DNS-SD discovery.

Servers announce themselves as ` + discovery.ServiceType + ` services (OPC UA
multicast subnet discovery). Not every server does; use the endpoint URL
directly if yours is not found.`,
	Example: `  # Scan for 5 seconds (default)
  opcua-console scan

  # Longer scan for busy networks
  opcua-console scan --scan-timeout 15`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "scan-timeout", 5, "Scan timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	p := ui.NewPrinter(cmd.OutOrStdout())
	timeout := time.Duration(scanTimeout) * time.Second

	if outputFormat != "json" {
		ui.PrintPleaseWait(p.Writer(), "Scanning for OPC UA servers", fmt.Sprintf("%d seconds", scanTimeout))
	}

	servers, err := discovery.QuickScan(cmd.Context(), timeout)
	if err != nil {
		if outputFormat == "json" {
			return err
		}
		p.PrintError("Scan failed", err)
		return reported(err)
	}

	if outputFormat == "json" {
		if servers == nil {
			servers = []*discovery.Server{}
		}
		return printJSON(servers)
	}

	if len(servers) == 0 {
		p.PrintWarning("No OPC UA servers found",
			ui.D("Hint", "Check that you are on the server's network segment"),
			ui.D("Hint", "Multicast (UDP 5353) must not be blocked"),
			ui.D("Hint", "Try a longer --scan-timeout"),
		)
		return nil
	}

	p.Println(fmt.Sprintf("Found %d server(s):", len(servers)))
	p.Newline()
	for i, s := range servers {
		p.Println(fmt.Sprintf("%d. %s", i+1, s.Name))
		p.Println(fmt.Sprintf("   Endpoint: %s", s.Endpoint))
		p.Println(fmt.Sprintf("   Host:     %s (%s)", s.Hostname, s.IP))
		if len(s.Capabilities) > 0 {
			p.Println(fmt.Sprintf("   Caps:     %s", strings.Join(s.Capabilities, ", ")))
		}
		p.Newline()
	}
	p.Println("Use 'opcua-console check <endpoint>' to test a connection")
	p.Println("Use 'opcua-console wizard' to save a configuration")

	return nil
}
