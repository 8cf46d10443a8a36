package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/opcua-console/internal/discovery"
	"github.com/muurk/opcua-console/internal/endpoint"
)

// ScanFunc finds OPC UA servers on the network.
type ScanFunc func(ctx context.Context) ([]*discovery.Server, error)

// Messages for async operations
type scanStartMsg struct{}
type scanCompleteMsg struct {
	servers []*discovery.Server
	err     error
}

// discoveryKeyMap defines key bindings for the discovery screen
type discoveryKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Skip   key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Skip, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Skip, k.Quit},
	}
}

// manualModeKeyMap defines key bindings for manual endpoint entry
type manualModeKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

func (m manualModeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{m.Confirm, m.Cancel}
}

func (m manualModeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{m.Confirm, m.Cancel}}
}

// scanningKeyMap defines key bindings while a scan runs
type scanningKeyMap struct {
	Manual key.Binding
	Skip   key.Binding
	Quit   key.Binding
}

func (s scanningKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{s.Manual, s.Skip, s.Quit}
}

func (s scanningKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{s.Manual, s.Skip, s.Quit}}
}

// serverItem wraps a discovered server for use with bubbles/list
type serverItem struct {
	server *discovery.Server
	manual bool
}

func (s serverItem) FilterValue() string {
	return s.server.Name + " " + s.server.Hostname + " " + s.server.Endpoint
}

func (s serverItem) Title() string {
	if s.manual {
		return "Manual: " + s.server.Endpoint
	}
	return s.server.Name
}

func (s serverItem) Description() string {
	return s.server.Endpoint
}

// serverDelegate renders discovered servers as cards
type serverDelegate struct {
	width int
}

func (d serverDelegate) Height() int { return 6 }

func (d serverDelegate) Spacing() int { return 1 }

func (d serverDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d serverDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(serverItem)
	if !ok {
		return
	}
	s := it.server
	selected := index == m.Index()

	var content strings.Builder
	if selected {
		content.WriteString(SelectedMenuItemStyle.Render("→ " + it.Title()))
	} else {
		content.WriteString("  " + it.Title())
	}
	content.WriteString("\n")

	content.WriteString(fmt.Sprintf("  Endpoint: %s\n", s.Endpoint))
	if !it.manual {
		content.WriteString(fmt.Sprintf("  Host:     %s (%s)\n", s.Hostname, s.IP))
	}
	caps := "none advertised"
	if len(s.Capabilities) > 0 {
		caps = strings.Join(s.Capabilities, ", ")
	}
	content.WriteString(fmt.Sprintf("  Caps:     %s", caps))

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 2).
		MarginLeft(2)

	cardWidth := d.width - 6
	if cardWidth < MinTerminalWidth-6 {
		cardWidth = MinTerminalWidth - 6
	}
	if cardWidth > MaxContentWidth-6 {
		cardWidth = MaxContentWidth - 6
	}
	cardStyle = cardStyle.Width(cardWidth)

	if selected {
		cardStyle = cardStyle.BorderForeground(HighlightColor)
	}

	fmt.Fprint(w, cardStyle.Render(content.String()))
}

// DiscoveryModel is the screen that scans for OPC UA servers and lets the
// operator pick an endpoint, type one in, or skip ahead to the form.
type DiscoveryModel struct {
	Scanning   bool
	ServerList list.Model
	Err        error

	// Chosen is set once the operator picks an endpoint; Skipped when they
	// continue without one.
	Chosen  *discovery.Server
	Skipped bool

	ManualMode    bool
	EndpointInput textinput.Model
	ManualErr     string

	Width         int
	Height        int
	Spinner       spinner.Model
	ProgressBar   progress.Model
	ScanStartTime time.Time
	Help          help.Model
	Keys          discoveryKeyMap
	ManualKeys    manualModeKeyMap
	ScanningKeys  scanningKeyMap

	scan    ScanFunc
	timeout time.Duration
}

// NewDiscoveryModel creates the discovery screen. timeout is only used to
// draw scan progress; scan is expected to honour its own deadline.
func NewDiscoveryModel(scan ScanFunc, timeout time.Duration) DiscoveryModel {
	if timeout <= 0 {
		timeout = discovery.DefaultScanTimeout
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	input := textinput.New()
	input.Placeholder = "opc.tcp://192.168.1.10:4840"
	input.CharLimit = 256
	input.Width = 48

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = 40

	serverList := list.New([]list.Item{}, serverDelegate{width: MinTerminalWidth}, 0, 0)
	serverList.Title = "Discovered OPC UA Servers"
	serverList.SetShowStatusBar(false)
	serverList.SetFilteringEnabled(true)
	serverList.SetShowHelp(false)
	serverList.Styles.Title = TitleStyle

	return DiscoveryModel{
		ServerList:    serverList,
		EndpointInput: input,
		Spinner:       s,
		ProgressBar:   progressBar,
		Help:          help.New(),
		Keys: discoveryKeyMap{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
			Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
			Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "use endpoint")),
			Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
			Manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "enter URL")),
			Skip:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip")),
			Quit:   key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
		},
		ManualKeys: manualModeKeyMap{
			Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
			Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		},
		ScanningKeys: scanningKeyMap{
			Manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "enter URL")),
			Skip:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip")),
			Quit:   key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		},
		scan:    scan,
		timeout: timeout,
	}
}

// Init starts scanning immediately.
func (m DiscoveryModel) Init() tea.Cmd {
	return m.startScan()
}

func (m DiscoveryModel) startScan() tea.Cmd {
	scan := m.scan
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		func() tea.Msg {
			if scan == nil {
				return scanCompleteMsg{}
			}
			servers, err := scan(context.Background())
			return scanCompleteMsg{servers: servers, err: err}
		},
		m.Spinner.Tick,
	)
}

// Done reports whether the operator has left the screen with a choice.
func (m DiscoveryModel) Done() bool {
	return m.Chosen != nil || m.Skipped
}

// Update handles messages and updates the model
func (m DiscoveryModel) Update(msg tea.Msg) (DiscoveryModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		return m.updateNormalMode(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.ServerList.SetDelegate(serverDelegate{width: msg.Width - 4})
		m.ServerList.SetWidth(msg.Width - 4)
		m.ServerList.SetHeight(msg.Height - 8)

	case scanStartMsg:
		m.Scanning = true
		m.ScanStartTime = time.Now()

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		items := make([]list.Item, 0, len(msg.servers)+1)
		// keep a manually entered endpoint across rescans
		for _, it := range m.ServerList.Items() {
			if si, ok := it.(serverItem); ok && si.manual {
				items = append(items, si)
			}
		}
		for _, s := range msg.servers {
			items = append(items, serverItem{server: s})
		}
		cmd = m.ServerList.SetItems(items)
		return m, cmd

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	if !m.ManualMode && !m.Scanning {
		m.ServerList, cmd = m.ServerList.Update(msg)
	}
	return m, cmd
}

// updateNormalMode handles keyboard input in the server list
func (m DiscoveryModel) updateNormalMode(msg tea.KeyMsg) (DiscoveryModel, tea.Cmd) {
	filtering := m.ServerList.FilterState() == list.Filtering

	if !filtering {
		switch msg.String() {
		case "enter":
			if m.Scanning {
				return m, nil
			}
			if it, ok := m.ServerList.SelectedItem().(serverItem); ok {
				m.Chosen = it.server
			}
			return m, nil

		case "r":
			if m.Scanning {
				return m, nil
			}
			m.Err = nil
			return m, m.startScan()

		case "m":
			m.ManualMode = true
			m.ManualErr = ""
			m.EndpointInput.SetValue("")
			return m, m.EndpointInput.Focus()

		case "s":
			m.Skipped = true
			return m, nil
		}
	}

	if m.Scanning {
		return m, nil
	}
	var cmd tea.Cmd
	m.ServerList, cmd = m.ServerList.Update(msg)
	return m, cmd
}

// updateManualMode handles keyboard input while typing an endpoint
func (m DiscoveryModel) updateManualMode(msg tea.KeyMsg) (DiscoveryModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.String() {
	case "esc":
		m.ManualMode = false
		m.ManualErr = ""
		m.EndpointInput.SetValue("")
		m.EndpointInput.Blur()
		return m, nil

	case "enter":
		value := strings.TrimSpace(m.EndpointInput.Value())
		if err := endpoint.Validate(value); err != nil {
			m.ManualErr = err.Error()
			return m, nil
		}
		server := &discovery.Server{
			Name:         value,
			Endpoint:     value,
			DiscoveredAt: time.Now(),
		}
		items := append([]list.Item{serverItem{server: server, manual: true}}, m.ServerList.Items()...)
		cmd = m.ServerList.SetItems(items)
		m.ServerList.Select(0)
		m.ManualMode = false
		m.ManualErr = ""
		m.EndpointInput.SetValue("")
		m.EndpointInput.Blur()
		return m, cmd
	}

	m.EndpointInput, cmd = m.EndpointInput.Update(msg)
	return m, cmd
}

// View renders the discovery screen
func (m DiscoveryModel) View() string {
	width := m.Width
	if width == 0 {
		width = MinTerminalWidth
	}

	var content, helpText string
	switch {
	case m.ManualMode:
		content = m.renderManualEntry()
		helpText = m.Help.View(m.ManualKeys)
	case m.Scanning:
		content = m.renderScanning(width)
		helpText = m.Help.View(m.ScanningKeys)
	default:
		content = m.renderResults()
		helpText = m.Help.View(m.Keys)
	}

	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

// renderScanning renders a centered progress display while the scan runs
func (m DiscoveryModel) renderScanning(width int) string {
	elapsed := time.Since(m.ScanStartTime)
	fraction := float64(elapsed) / float64(m.timeout)
	if fraction > 1 {
		fraction = 1
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(fmt.Sprintf("%s SEARCHING FOR OPC UA SERVERS", m.Spinner.View())),
		SubtitleStyle.Render("Browsing mDNS for "+discovery.ServiceType+" services..."),
		"",
		m.ProgressBar.ViewAs(fraction),
		"",
		SubtitleStyle.Render(fmt.Sprintf("Elapsed: %ds", int(elapsed.Seconds()))),
		"",
	)

	return lipgloss.Place(width-4, 0, lipgloss.Center, lipgloss.Top, content)
}

// renderResults renders the server list or the empty state
func (m DiscoveryModel) renderResults() string {
	var b strings.Builder
	b.WriteString("\n")

	switch {
	case m.Err != nil:
		b.WriteString(RenderError(fmt.Sprintf("Scan failed: %v", m.Err)))
		b.WriteString("\n\n")
		b.WriteString(troubleshootingText)

	case len(m.ServerList.Items()) == 0:
		warning := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
		b.WriteString("  ")
		b.WriteString(warning.Render("⚠ No OPC UA servers found on your network"))
		b.WriteString("\n\n")
		b.WriteString(troubleshootingText)

	default:
		b.WriteString(m.ServerList.View())
	}

	return b.String()
}

const troubleshootingText = `  Troubleshooting:
    • Not every server announces itself over mDNS (use 'm' to type the URL)
    • Check that you are on the same network segment as the server
    • Firewalls must allow multicast on UDP port 5353
    • Press 'r' to rescan or 's' to continue with the default endpoint
`

// renderManualEntry renders the manual endpoint dialog
func (m DiscoveryModel) renderManualEntry() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(RenderSubtitle("Enter the OPC UA endpoint URL"))
	b.WriteString("\n\n")
	b.WriteString("  Endpoint: ")
	b.WriteString(m.EndpointInput.View())
	b.WriteString("\n")
	if m.ManualErr != "" {
		b.WriteString("\n  ")
		b.WriteString(FieldErrorStyle.Render(m.ManualErr))
		b.WriteString("\n")
	}

	return b.String()
}

// DefaultScan scans with the package scanner and the given timeout.
func DefaultScan(timeout time.Duration) ScanFunc {
	return func(ctx context.Context) ([]*discovery.Server, error) {
		return discovery.QuickScan(ctx, timeout)
	}
}
