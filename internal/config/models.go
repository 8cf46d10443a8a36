package config

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Security modes understood by the backend
const (
	SecurityModeNone           = "none"
	SecurityModeSign           = "sign"
	SecurityModeSignAndEncrypt = "signandencrypt"
)

// Authentication types
const (
	AuthAnonymous   = "anonymous"
	AuthUsername    = "username"
	AuthCertificate = "certificate"
)

// Performance priorities
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Data acquisition modes
const (
	AcquisitionPolling      = "polling"
	AcquisitionSubscription = "subscription"
)

// SecurityModes lists the selectable security modes in display order.
var SecurityModes = []string{SecurityModeNone, SecurityModeSign, SecurityModeSignAndEncrypt}

// SecurityPolicies lists the OPC UA security policy URIs (short form).
var SecurityPolicies = []string{
	"None",
	"Basic128Rsa15",
	"Basic256",
	"Basic256Sha256",
	"Aes128_Sha256_RsaOaep",
	"Aes256_Sha256_RsaPss",
}

// AuthTypes lists the selectable authentication types.
var AuthTypes = []string{AuthAnonymous, AuthUsername, AuthCertificate}

// Priorities lists the performance priorities.
var Priorities = []string{PriorityLow, PriorityNormal, PriorityHigh}

// SecurityModeLabels maps security modes to human-readable names.
var SecurityModeLabels = map[string]string{
	SecurityModeNone:           "None",
	SecurityModeSign:           "Sign",
	SecurityModeSignAndEncrypt: "Sign and Encrypt",
}

// AuthTypeLabels maps authentication types to human-readable names.
var AuthTypeLabels = map[string]string{
	AuthAnonymous:   "Anonymous",
	AuthUsername:    "Username/Password",
	AuthCertificate: "Certificate",
}

// Registry represents the entire user configuration file.
// It stores saved broker connections and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Brokers     map[string]*Broker `yaml:"brokers,omitempty"` // Keyed by broker id
	Preferences *Preferences       `yaml:"preferences,omitempty"`

	mu sync.RWMutex
}

// Broker is one saved OPC UA broker connection.
type Broker struct {
	ID              string       `yaml:"id" json:"id"`
	Name            string       `yaml:"name" json:"name"`
	Endpoint        string       `yaml:"endpoint" json:"endpoint"`
	SecurityMode    string       `yaml:"security_mode" json:"securityMode"`
	SecurityPolicy  string       `yaml:"security_policy" json:"securityPolicy"`
	AuthType        string       `yaml:"auth_type" json:"authType"`
	Username        string       `yaml:"username,omitempty" json:"username,omitempty"` // Password lives in the keyring
	AllowAnonymous  bool         `yaml:"allow_anonymous" json:"allowAnonymous"`
	RefreshRate     int          `yaml:"refresh_rate_ms" json:"refreshRate"`
	Nodes           []string     `yaml:"nodes,omitempty" json:"nodes,omitempty"` // Selected node ids
	Acquisition     *Acquisition `yaml:"acquisition,omitempty" json:"acquisition,omitempty"`
	Diagnostics     bool         `yaml:"diagnostics" json:"diagnostics"`
	Priority        string       `yaml:"priority" json:"priority"`
	CreatedAt       time.Time    `yaml:"created_at" json:"createdAt"`
	UpdatedAt       time.Time    `yaml:"updated_at" json:"updatedAt"`
	HasStoredSecret bool         `yaml:"has_secret,omitempty" json:"hasSecret,omitempty"`
}

// Acquisition is how data is collected from the server.
type Acquisition struct {
	Mode string `yaml:"mode" json:"mode"` // "polling" or "subscription"

	// Polling
	PollingInterval int `yaml:"polling_interval_ms,omitempty" json:"pollingInterval,omitempty"`
	BufferSize      int `yaml:"buffer_size,omitempty" json:"bufferSize,omitempty"`

	// Subscription
	PublishingInterval int `yaml:"publishing_interval_ms,omitempty" json:"publishingInterval,omitempty"`
	LifetimeCount      int `yaml:"lifetime_count,omitempty" json:"lifetimeCount,omitempty"`
	MaxKeepAliveCount  int `yaml:"max_keep_alive_count,omitempty" json:"maxKeepAliveCount,omitempty"`
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	AutoDiscover    bool   `yaml:"auto_discover"`    // Scan for servers when the wizard starts
	DiscoverTimeout int    `yaml:"discover_timeout"` // mDNS discovery timeout in seconds
	DefaultPolicy   string `yaml:"default_security_policy"`
	DefaultPriority string `yaml:"default_priority"`
}

func defaultPreferences() *Preferences {
	return &Preferences{
		AutoDiscover:    true,
		DiscoverTimeout: 5,
		DefaultPolicy:   "Basic256Sha256",
		DefaultPriority: PriorityNormal,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Brokers:     make(map[string]*Broker),
		Preferences: defaultPreferences(),
	}
}

// GetBroker retrieves a broker by id.
// Returns nil if the broker doesn't exist in the registry.
func (r *Registry) GetBroker(id string) *Broker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Brokers[id]
}

// FindBroker looks a broker up by id, unique id prefix or case-insensitive name.
func (r *Registry) FindBroker(ref string) *Broker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if b, ok := r.Brokers[ref]; ok {
		return b
	}

	var match *Broker
	for id, b := range r.Brokers {
		if strings.EqualFold(b.Name, ref) {
			return b
		}
		if len(ref) >= 4 && strings.HasPrefix(id, ref) {
			if match != nil {
				return nil // ambiguous prefix
			}
			match = b
		}
	}
	return match
}

// PutBroker adds or replaces a broker. A broker without an id gets a new
// UUID. Timestamps are maintained here.
func (r *Registry) PutBroker(b *Broker) *Broker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Brokers == nil {
		r.Brokers = make(map[string]*Broker)
	}

	now := time.Now()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if existing, ok := r.Brokers[b.ID]; ok && !existing.CreatedAt.IsZero() {
		b.CreatedAt = existing.CreatedAt
	} else if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	r.Brokers[b.ID] = b
	return b
}

// DeleteBroker removes a broker. Returns false if it did not exist.
func (r *Registry) DeleteBroker(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.Brokers[id]; !ok {
		return false
	}
	delete(r.Brokers, id)
	return true
}

// ListBrokers returns all brokers sorted by name, then id.
func (r *Registry) ListBrokers() []*Broker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Broker, 0, len(r.Brokers))
	for _, b := range r.Brokers {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// IsValidOption reports whether value is one of options.
func IsValidOption(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}
