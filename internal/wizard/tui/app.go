package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/muurk/opcua-console/internal/config"
	"github.com/muurk/opcua-console/internal/logging"
	"github.com/muurk/opcua-console/internal/notify"
	"github.com/muurk/opcua-console/internal/relay"
	"github.com/muurk/opcua-console/internal/secrets"
	"github.com/muurk/opcua-console/internal/wizard"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenDiscovery Screen = "discovery"
	ScreenWizard    Screen = "wizard"
	ScreenSaved     Screen = "saved"
)

const (
	defaultConnectionTimeout = 15 * time.Second
	labelWidth               = 26
)

// Validator tests connections to OPC UA servers.
type Validator interface {
	ValidateConnection(ctx context.Context, endpointURL string) relay.Result[relay.Connection]
}

// Config wires the TUI to the rest of the console.
type Config struct {
	// Relay runs the "test connection" action.
	Relay Validator

	// Registry receives the saved broker; Secrets its password.
	Registry *config.Registry
	Secrets  secrets.Store

	// Save persists the registry after a submit. Defaults to Registry.Save.
	Save func(*config.Registry) error

	// Scan enables the discovery screen. Nil starts directly at the form.
	Scan        ScanFunc
	ScanTimeout time.Duration

	// Edit loads a saved broker into the form instead of the defaults.
	Edit *config.Broker

	// ConnectionTimeout bounds a single connection test.
	ConnectionTimeout time.Duration
}

type connectionTestedMsg struct {
	conn relay.Connection
}

// wizardKeyMap defines key bindings for the form screens
type wizardKeyMap struct {
	Next      key.Binding
	Back      key.Binding
	NextField key.Binding
	PrevField key.Binding
	Cycle     key.Binding
	Test      key.Binding
	Quit      key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k wizardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Back, k.NextField, k.Cycle, k.Test, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k wizardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Back},
		{k.NextField, k.PrevField, k.Cycle},
		{k.Test, k.Quit},
	}
}

// savedKeyMap defines key bindings for the saved screen
type savedKeyMap struct {
	New  key.Binding
	Quit key.Binding
}

func (k savedKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.New, k.Quit}
}

func (k savedKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.New, k.Quit}}
}

// AppModel is the top-level model. It owns the wizard state machine and
// routes input to the discovery screen or the step form.
type AppModel struct {
	CurrentScreen Screen

	Discovery DiscoveryModel
	Wizard    *wizard.Wizard
	Toasts    Toasts

	// Saved is the broker stored by the last successful submit.
	Saved *config.Broker

	Width  int
	Height int

	Help       help.Model
	WizardKeys wizardKeyMap
	SavedKeys  savedKeyMap

	cfg    Config
	form   formModel
	errors wizard.FieldErrors

	// connection test bookkeeping, tied to the endpoint it ran against
	testing     string
	testedFor   string
	testMessage string
}

// NewAppModel creates the wizard application. It starts on the discovery
// screen when cfg.Scan is set and no broker is being edited.
func NewAppModel(cfg Config) AppModel {
	if cfg.Registry == nil {
		cfg.Registry = config.NewRegistry()
	}
	if cfg.Secrets == nil {
		cfg.Secrets = secrets.NewMemory()
	}
	if cfg.Save == nil {
		cfg.Save = (*config.Registry).Save
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = defaultConnectionTimeout
	}

	opts := []wizard.Option{wizard.WithConnectionGate()}
	if cfg.Edit != nil {
		d := wizard.FromBroker(cfg.Edit)
		if cfg.Edit.HasStoredSecret {
			if c, err := cfg.Secrets.Load(cfg.Edit.ID); err == nil {
				d.Password = c.Password
			} else {
				logging.Warn("Stored credentials unavailable", zap.String("broker", cfg.Edit.ID), zap.Error(err))
			}
		}
		opts = append(opts, wizard.WithData(d))
	}

	m := AppModel{
		CurrentScreen: ScreenWizard,
		Wizard:        wizard.New(opts...),
		Help:          help.New(),
		WizardKeys: wizardKeyMap{
			Next:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "next")),
			Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
			NextField: key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab/↓", "next field")),
			PrevField: key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab/↑", "prev field")),
			Cycle:     key.NewBinding(key.WithKeys("left", "right"), key.WithHelp("←/→", "change option")),
			Test:      key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "test connection")),
			Quit:      key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		},
		SavedKeys: savedKeyMap{
			New:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "configure another")),
			Quit: key.NewBinding(key.WithKeys("q", "enter", "esc"), key.WithHelp("q", "quit")),
		},
		cfg: cfg,
	}
	m.form = newFormModel(m.Wizard.Step(), m.Wizard.Data())

	if cfg.Scan != nil && cfg.Edit == nil {
		m.CurrentScreen = ScreenDiscovery
		m.Discovery = NewDiscoveryModel(cfg.Scan, cfg.ScanTimeout)
	}
	return m
}

// Init initializes the application
func (m AppModel) Init() tea.Cmd {
	if m.CurrentScreen == ScreenDiscovery {
		return m.Discovery.Init()
	}
	return m.form.syncFocus(m.Wizard.Data())
}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Discovery, _ = m.Discovery.Update(msg)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case toastExpiredMsg:
		m.Toasts.Expire(msg.id)
		return m, nil

	case connectionTestedMsg:
		return m.connectionTested(msg.conn)
	}

	switch m.CurrentScreen {
	case ScreenDiscovery:
		return m.updateDiscovery(msg)
	case ScreenWizard:
		return m.updateWizard(msg)
	case ScreenSaved:
		return m.updateSaved(msg)
	}
	return m, nil
}

func (m AppModel) updateDiscovery(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && !m.Discovery.Scanning && !m.Discovery.ManualMode &&
		m.Discovery.ServerList.FilterState() != list.Filtering {
		if keyMsg.String() == "q" || keyMsg.String() == "esc" {
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.Discovery, cmd = m.Discovery.Update(msg)

	if !m.Discovery.Done() {
		return m, cmd
	}

	if s := m.Discovery.Chosen; s != nil {
		defaults := wizard.DefaultData()
		m.Wizard.Update(func(d *wizard.Data) {
			d.Endpoint = s.Endpoint
			if d.Name == defaults.Name && s.Name != "" && s.Name != s.Endpoint {
				d.Name = s.Name
			}
		})
	}
	m.CurrentScreen = ScreenWizard
	m.form = newFormModel(m.Wizard.Step(), m.Wizard.Data())
	return m, m.form.syncFocus(m.Wizard.Data())
}

func (m AppModel) updateWizard(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.WizardKeys.Next):
		return m.next()
	case key.Matches(keyMsg, m.WizardKeys.Back):
		return m.back()
	case key.Matches(keyMsg, m.WizardKeys.Test):
		return m.testConnection()
	case key.Matches(keyMsg, m.WizardKeys.NextField):
		return m, m.form.move(m.Wizard.Data(), 1)
	case key.Matches(keyMsg, m.WizardKeys.PrevField):
		return m, m.form.move(m.Wizard.Data(), -1)
	}

	if fd, ok := m.form.current(m.Wizard.Data()); ok {
		m.errors = withoutField(m.errors, fd.key)
	}
	return m, m.form.update(m.Wizard, keyMsg)
}

func (m AppModel) updateSaved(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.SavedKeys.New):
		m.Wizard.Reset()
		m.Saved = nil
		m.errors = nil
		m.testedFor, m.testMessage = "", ""
		m.CurrentScreen = ScreenWizard
		m.form = newFormModel(m.Wizard.Step(), m.Wizard.Data())
		return m, m.form.syncFocus(m.Wizard.Data())
	case key.Matches(keyMsg, m.SavedKeys.Quit):
		return m, tea.Quit
	}
	return m, nil
}

// next advances the wizard, or saves the broker at the review step.
func (m AppModel) next() (tea.Model, tea.Cmd) {
	t := m.Wizard.Next()
	m.errors = t.Errors

	if t.Submitted {
		return m.submit(t.Notice)
	}

	notify.Send(&m.Toasts, t.Notice)

	var cmd tea.Cmd
	switch {
	case t.Moved():
		m.form = newFormModel(t.To, m.Wizard.Data())
		cmd = m.form.syncFocus(m.Wizard.Data())
	case len(t.Errors) > 0:
		cmd = m.form.focusKey(m.Wizard.Data(), t.Errors[0].Field)
	}
	return m, tea.Batch(cmd, m.Toasts.Cmd())
}

func (m AppModel) back() (tea.Model, tea.Cmd) {
	if m.Wizard.IsFirst() {
		if m.cfg.Scan == nil || m.cfg.Edit != nil {
			return m, nil
		}
		m.CurrentScreen = ScreenDiscovery
		m.Discovery = NewDiscoveryModel(m.cfg.Scan, m.cfg.ScanTimeout)
		m.Discovery, _ = m.Discovery.Update(tea.WindowSizeMsg{Width: m.Width, Height: m.Height})
		return m, m.Discovery.Init()
	}

	t := m.Wizard.Back()
	m.errors = nil
	m.form = newFormModel(t.To, m.Wizard.Data())
	return m, m.form.syncFocus(m.Wizard.Data())
}

// submit stores the broker and its credentials, then writes the registry.
// The submit notice is only shown once both have succeeded.
func (m AppModel) submit(notice *notify.Notification) (tea.Model, tea.Cmd) {
	b, err := wizard.Commit(m.cfg.Registry, m.cfg.Secrets, m.Wizard.Data())
	if err == nil {
		err = m.cfg.Save(m.cfg.Registry)
	}
	if err != nil {
		var fe wizard.FieldErrors
		if errors.As(err, &fe) {
			m.errors = fe
		}
		logging.Error("Failed to save configuration", zap.Error(err))
		m.Toasts.Dispatch(notify.Notification{
			Title:       "Error saving configuration",
			Description: err.Error(),
			Variant:     notify.VariantDestructive,
		})
		return m, m.Toasts.Cmd()
	}

	logging.Info("Configuration saved", zap.String("broker", b.ID), zap.String("name", b.Name))
	m.Saved = b
	m.CurrentScreen = ScreenSaved
	notify.Send(&m.Toasts, notice)
	return m, m.Toasts.Cmd()
}

// testConnection runs ValidateConnection for the current endpoint in the
// background.
func (m AppModel) testConnection() (tea.Model, tea.Cmd) {
	if m.cfg.Relay == nil {
		m.Toasts.Dispatch(notify.Notification{
			Title:       "Error " + relay.OpConnect,
			Description: "No backend is configured",
			Variant:     notify.VariantDestructive,
		})
		return m, m.Toasts.Cmd()
	}

	ep := m.Wizard.Data().Endpoint
	m.testing = ep
	v := m.cfg.Relay
	timeout := m.cfg.ConnectionTimeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return connectionTestedMsg{conn: v.ValidateConnection(ctx, ep).Value}
	}
}

// connectionTested records a finished test. Results for an endpoint that
// has since been edited are dropped.
func (m AppModel) connectionTested(conn relay.Connection) (tea.Model, tea.Cmd) {
	if m.testing == conn.Endpoint {
		m.testing = ""
	}
	if !m.Wizard.SetConnectionStatus(conn) {
		return m, nil
	}
	m.testedFor = conn.Endpoint
	m.testMessage = conn.Message
	return m, nil
}

// connectionStatus is the badge state for the endpoint in the form.
func (m AppModel) connectionStatus() relay.Status {
	if ep := m.Wizard.Data().Endpoint; m.testing != "" && m.testing == ep {
		return relay.StatusValidating
	}
	return m.Wizard.ConnectionStatus()
}

// View renders the current screen
func (m AppModel) View() string {
	var content, helpText string
	switch m.CurrentScreen {
	case ScreenDiscovery:
		return m.Discovery.View()
	case ScreenSaved:
		content = m.buildSavedContent()
		helpText = m.Help.View(m.SavedKeys)
	default:
		content = m.buildWizardContent()
		helpText = m.Help.View(m.WizardKeys)
	}

	if toasts := m.Toasts.View(m.Width); toasts != "" {
		width := m.Width
		if width < MinTerminalWidth {
			width = MinTerminalWidth
		}
		content = lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.PlaceHorizontal(width-6, lipgloss.Right, toasts),
			content,
		)
	}
	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

// buildStepIndicator renders "✓ server ─ ● security ─ ○ objects ..."
func (m AppModel) buildStepIndicator() string {
	parts := make([]string, 0, len(wizard.Steps()))
	for _, s := range wizard.Steps() {
		switch {
		case s < m.Wizard.Step():
			parts = append(parts, StepDoneStyle.Render("✓ "+s.String()))
		case s == m.Wizard.Step():
			parts = append(parts, StepActiveStyle.Render("● "+s.String()))
		default:
			parts = append(parts, StepPendingStyle.Render("○ "+s.String()))
		}
	}
	return strings.Join(parts, StepPendingStyle.Render(" ─ "))
}

func (m AppModel) buildWizardContent() string {
	var b strings.Builder
	step := m.Wizard.Step()
	data := m.Wizard.Data()

	b.WriteString(m.buildStepIndicator())
	b.WriteString("\n\n")
	b.WriteString(RenderTitle(fmt.Sprintf("Step %d of %d: %s", m.Wizard.Index()+1, len(wizard.Steps()), step.Title())))
	b.WriteString("\n")
	b.WriteString(RenderSubtitle(step.Description()))
	b.WriteString("\n\n")

	if step == wizard.StepReview {
		b.WriteString(InfoBoxStyle.Render(strings.TrimRight(wizard.FormatSummary(m.Wizard.Summary()), "\n")))
		b.WriteString("\n\n")
		b.WriteString(fmt.Sprintf("  Connection: %s\n\n", RenderConnectionStatus(m.connectionStatus())))
		b.WriteString(RenderMenuItem("Press enter to save this configuration", true))
		b.WriteString("\n")
		return b.String()
	}

	vis := m.form.visible(data)
	for i, fd := range vis {
		focused := i == m.form.focus
		b.WriteString(m.renderField(fd, data, focused))
		b.WriteString("\n")
	}

	if step == wizard.StepServer {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("  Connection: %s", RenderConnectionStatus(m.connectionStatus())))
		if m.testedFor == data.Endpoint && m.testMessage != "" {
			b.WriteString("  ")
			b.WriteString(SubtitleStyle.Render(m.testMessage))
		}
		b.WriteString("\n")
		if m.Wizard.ConnectionStatus() != relay.StatusConnected {
			b.WriteString(SubtitleStyle.Render("  Press ctrl+t to test the connection before continuing."))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m AppModel) renderField(fd field, data wizard.Data, focused bool) string {
	var b strings.Builder

	label := fmt.Sprintf("%-*s", labelWidth, fd.label)
	if focused {
		b.WriteString(SelectedMenuItemStyle.Render("→ "))
		b.WriteString(FocusedLabelStyle.Render(label))
	} else {
		b.WriteString("    ")
		b.WriteString(LabelStyle.Render(label))
	}

	switch {
	case fd.editable():
		ti := m.form.inputs[fd.key]
		b.WriteString(ti.View())
	case focused:
		b.WriteString("◂ " + fd.display(data) + " ▸")
	default:
		b.WriteString(fd.display(data))
	}

	if msg := m.errors.For(fd.key); msg != "" {
		b.WriteString("\n")
		b.WriteString(strings.Repeat(" ", labelWidth+4))
		b.WriteString(FieldErrorStyle.Render("✗ " + msg))
	}
	return b.String()
}

func (m AppModel) buildSavedContent() string {
	var b strings.Builder

	name := ""
	if m.Saved != nil {
		name = m.Saved.Name
	}
	b.WriteString("\n")
	b.WriteString(RenderSuccess(fmt.Sprintf("%s has been configured successfully.", name)))
	b.WriteString("\n\n")
	b.WriteString(InfoBoxStyle.Render(strings.TrimRight(wizard.FormatSummary(m.Wizard.Summary()), "\n")))
	b.WriteString("\n\n")
	if m.Saved != nil {
		b.WriteString(SubtitleStyle.Render("  Saved as " + m.Saved.ID))
		b.WriteString("\n\n")
	}

	b.WriteString("What would you like to do next?\n\n")
	b.WriteString(MenuItemStyle.Render("  n - Configure another server"))
	b.WriteString("\n")
	b.WriteString(MenuItemStyle.Render("  q - Exit"))
	b.WriteString("\n")

	return b.String()
}

func withoutField(errs wizard.FieldErrors, field string) wizard.FieldErrors {
	if len(errs) == 0 {
		return errs
	}
	out := errs[:0:0]
	for _, e := range errs {
		if e.Field != field {
			out = append(out, e)
		}
	}
	return out
}

// Run starts the wizard in the alternate screen and returns the broker it
// saved, or nil if the operator quit first.
func Run(cfg Config) (*config.Broker, error) {
	p := tea.NewProgram(NewAppModel(cfg), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}
	if m, ok := final.(AppModel); ok {
		return m.Saved, nil
	}
	return nil, nil
}
