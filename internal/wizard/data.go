package wizard

import (
	"fmt"
	"strings"

	"github.com/muurk/opcua-console/internal/addrspace"
	"github.com/muurk/opcua-console/internal/config"
	"github.com/muurk/opcua-console/internal/endpoint"
)

// Refresh rate bounds in milliseconds
const (
	MinRefreshRate = 100
	MaxRefreshRate = 10000
)

// Data is the form the wizard accumulates.
type Data struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`

	SecurityMode   string `json:"securityMode"`
	SecurityPolicy string `json:"securityPolicy"`
	AuthType       string `json:"authenticationType"`
	Username       string `json:"username,omitempty"`
	Password       string `json:"-"`

	RefreshRate       int  `json:"refreshRate"` // milliseconds
	EnableAnonymous   bool `json:"enableAnonymous"`
	EnableDiagnostics bool `json:"enableDiagnostics"`

	Priority     string       `json:"priority"`
	Nodes        []string     `json:"nodes,omitempty"`
	Subscription Subscription `json:"subscription"`

	// BrokerID is set when editing a saved broker
	BrokerID string `json:"brokerId,omitempty"`
}

// DefaultData returns the form as a fresh wizard shows it.
func DefaultData() Data {
	return Data{
		Name:              "Production OPC UA Broker",
		Endpoint:          "opc.tcp://localhost:4840",
		SecurityMode:      config.SecurityModeSign,
		SecurityPolicy:    "Basic256Sha256",
		AuthType:          config.AuthAnonymous,
		RefreshRate:       1000,
		EnableAnonymous:   true,
		EnableDiagnostics: true,
		Priority:          config.PriorityNormal,
		Subscription:      DefaultSubscription(),
	}
}

// FieldError is a validation failure for one form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// FieldErrors collects the failures of one validation pass.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, e := range fe {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// For returns the message for field, or "".
func (fe FieldErrors) For(field string) string {
	for _, e := range fe {
		if e.Field == field {
			return e.Message
		}
	}
	return ""
}

// Err returns fe as an error, or nil when empty.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func (fe *FieldErrors) add(field, format string, args ...any) {
	*fe = append(*fe, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks the fields that belong to step.
func (d Data) Validate(step Step) FieldErrors {
	var errs FieldErrors

	switch step {
	case StepServer:
		if strings.TrimSpace(d.Name) == "" {
			errs.add("name", "Server name is required")
		}
		if err := endpoint.Validate(d.Endpoint); err != nil {
			errs.add("endpoint", "%s", err.Error())
		}
		if d.RefreshRate < MinRefreshRate || d.RefreshRate > MaxRefreshRate {
			errs.add("refreshRate", "Refresh rate must be between %d and %d ms", MinRefreshRate, MaxRefreshRate)
		}

	case StepSecurity:
		if !config.IsValidOption(config.SecurityModes, d.SecurityMode) {
			errs.add("securityMode", "Unknown security mode %q", d.SecurityMode)
		}
		if !config.IsValidOption(config.SecurityPolicies, d.SecurityPolicy) {
			errs.add("securityPolicy", "Unknown security policy %q", d.SecurityPolicy)
		}
		if d.SecurityMode == config.SecurityModeNone && d.SecurityPolicy != "None" && d.SecurityPolicy != "" {
			errs.add("securityPolicy", "Security policy must be None when security mode is None")
		}
		switch d.AuthType {
		case config.AuthUsername:
			if strings.TrimSpace(d.Username) == "" {
				errs.add("username", "Username is required")
			}
			if d.Password == "" {
				errs.add("password", "Password is required")
			}
		case config.AuthAnonymous, config.AuthCertificate:
		default:
			errs.add("authenticationType", "Unknown authentication type %q", d.AuthType)
		}

	case StepObjects:
		for _, id := range d.Nodes {
			if !addrspace.IsValidNodeID(id) {
				errs.add("nodes", "Invalid node id %q", id)
			}
		}
		errs = append(errs, d.Subscription.Validate()...)

	case StepAdvanced:
		if !config.IsValidOption(config.Priorities, d.Priority) {
			errs.add("priority", "Unknown performance priority %q", d.Priority)
		}

	case StepReview:
		for _, s := range Steps()[:StepReview] {
			errs = append(errs, d.Validate(s)...)
		}
	}

	return errs
}

// ToBroker converts the form into a saved configuration. The password is
// not part of the result; callers store it separately.
func (d Data) ToBroker() *config.Broker {
	b := &config.Broker{
		ID:             d.BrokerID,
		Name:           strings.TrimSpace(d.Name),
		Endpoint:       strings.TrimSpace(d.Endpoint),
		SecurityMode:   d.SecurityMode,
		SecurityPolicy: d.SecurityPolicy,
		AuthType:       d.AuthType,
		AllowAnonymous: d.EnableAnonymous,
		RefreshRate:    d.RefreshRate,
		Acquisition:    d.Subscription.ToAcquisition(),
		Diagnostics:    d.EnableDiagnostics,
		Priority:       d.Priority,
	}
	if d.AuthType == config.AuthUsername {
		b.Username = strings.TrimSpace(d.Username)
	}
	if len(d.Nodes) > 0 {
		b.Nodes = append([]string(nil), d.Nodes...)
	}
	return b
}

// FromBroker loads a saved configuration into the form for editing.
// Fields the broker leaves empty keep their defaults.
func FromBroker(b *config.Broker) Data {
	d := DefaultData()
	if b == nil {
		return d
	}

	d.BrokerID = b.ID
	d.Name = b.Name
	d.Endpoint = b.Endpoint
	if b.SecurityMode != "" {
		d.SecurityMode = b.SecurityMode
	}
	if b.SecurityPolicy != "" {
		d.SecurityPolicy = b.SecurityPolicy
	}
	if b.AuthType != "" {
		d.AuthType = b.AuthType
	}
	d.Username = b.Username
	d.EnableAnonymous = b.AllowAnonymous
	if b.RefreshRate > 0 {
		d.RefreshRate = b.RefreshRate
	}
	d.EnableDiagnostics = b.Diagnostics
	if b.Priority != "" {
		d.Priority = b.Priority
	}
	d.Nodes = append([]string(nil), b.Nodes...)
	d.Subscription = SubscriptionFromAcquisition(b.Acquisition)
	return d
}
