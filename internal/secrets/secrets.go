// Package secrets keeps OPC UA credentials in the OS keyring.
//
// The broker registry never holds passwords. When the wizard saves a broker
// that authenticates with username/password, the credentials are stored
// here under the broker's id and looked up again when the console connects.
package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/keyring"
)

// ServiceName identifies our keyring namespace.
const ServiceName = "opcua-console"

const keyPrefix = "broker/"

// ErrNotFound is returned when no credentials are stored for a broker.
var ErrNotFound = errors.New("no stored credentials")

// Credentials are the user identity presented to an OPC UA server.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Store saves and loads credentials by broker id.
type Store interface {
	Save(brokerID string, c Credentials) error
	Load(brokerID string) (Credentials, error)
	Delete(brokerID string) error
}

var (
	globalStore Store
	mu          sync.Mutex
)

// Keyring is a Store backed by a 99designs/keyring ring.
type Keyring struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// Open opens the OS keyring (macOS Keychain, Secret Service, KWallet,
// Windows Credential Manager or pass, whichever is available).
func Open() (*Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              ServiceName,
		KeychainTrustApplication: true,
		LibSecretCollectionName:  ServiceName,
		KWalletAppID:             ServiceName,
		KWalletFolder:            ServiceName,
		WinCredPrefix:            ServiceName,
		PassPrefix:               ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return NewKeyring(ring), nil
}

// NewKeyring wraps an already opened ring.
func NewKeyring(ring keyring.Keyring) *Keyring {
	return &Keyring{ring: ring}
}

// NewMemory returns a Store that keeps credentials in process memory only.
func NewMemory() *Keyring {
	return NewKeyring(keyring.NewArrayKeyring(nil))
}

// GetStore returns the process-wide store, opening the OS keyring on first
// use. A failed open is retried on the next call.
func GetStore() (Store, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalStore != nil {
		return globalStore, nil
	}

	k, err := Open()
	if err != nil {
		return nil, err
	}
	globalStore = k
	return globalStore, nil
}

// SetStore replaces the process-wide store.
func SetStore(s Store) {
	mu.Lock()
	defer mu.Unlock()
	globalStore = s
}

// Save stores credentials for a broker, replacing any previous entry.
// This method is thread-safe.
func (k *Keyring) Save(brokerID string, c Credentials) error {
	if brokerID == "" {
		return errors.New("broker id is required")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	return k.ring.Set(keyring.Item{
		Key:         keyPrefix + brokerID,
		Data:        data,
		Label:       "OPC UA credentials",
		Description: "Credentials for OPC UA broker " + brokerID,
	})
}

// Load retrieves the credentials for a broker.
// This method is thread-safe.
func (k *Keyring) Load(brokerID string) (Credentials, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	it, err := k.ring.Get(keyPrefix + brokerID)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return Credentials{}, ErrNotFound
	}
	if err != nil {
		return Credentials{}, err
	}

	var c Credentials
	if err := json.Unmarshal(it.Data, &c); err != nil {
		return Credentials{}, fmt.Errorf("stored credentials for %s are corrupt: %w", brokerID, err)
	}
	return c, nil
}

// Delete removes a broker's credentials. Deleting absent credentials is not
// an error.
// This method is thread-safe.
func (k *Keyring) Delete(brokerID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	err := k.ring.Remove(keyPrefix + brokerID)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return err
}
