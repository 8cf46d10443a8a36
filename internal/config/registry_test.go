package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG_CONFIG_HOME is not consulted on windows")
	}
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	want := filepath.Join(xdg, "opcua-console")
	if configDir != want {
		t.Errorf("GetConfigDir() = %v, want %v", configDir, want)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
	if !strings.Contains(configPath, "opcua-console") {
		t.Errorf("GetConfigPath() = %v, should contain 'opcua-console'", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Brokers == nil {
		t.Error("NewRegistry().Brokers should not be nil")
	}
	if reg.Preferences == nil {
		t.Fatal("NewRegistry().Preferences should not be nil")
	}
	if reg.Preferences.DefaultPolicy != "Basic256Sha256" {
		t.Errorf("DefaultPolicy = %v, want Basic256Sha256", reg.Preferences.DefaultPolicy)
	}
	if reg.Preferences.DefaultPriority != PriorityNormal {
		t.Errorf("DefaultPriority = %v, want normal", reg.Preferences.DefaultPriority)
	}
}

func TestRegistryPutBroker(t *testing.T) {
	reg := NewRegistry()

	b := reg.PutBroker(&Broker{Name: "Line 1", Endpoint: "opc.tcp://plc-01:4840"})
	if _, err := uuid.Parse(b.ID); err != nil {
		t.Errorf("PutBroker() id = %q, want a UUID: %v", b.ID, err)
	}
	if b.CreatedAt.IsZero() || b.UpdatedAt.IsZero() {
		t.Error("PutBroker() should set timestamps")
	}
	if reg.GetBroker(b.ID) != b {
		t.Error("GetBroker() should return the stored broker")
	}

	created := b.CreatedAt
	time.Sleep(time.Millisecond)
	updated := reg.PutBroker(&Broker{ID: b.ID, Name: "Line 1 (renamed)"})
	if !updated.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want preserved %v", updated.CreatedAt, created)
	}
	if !updated.UpdatedAt.After(created) {
		t.Error("UpdatedAt should advance on replace")
	}
	if len(reg.Brokers) != 1 {
		t.Errorf("len(Brokers) = %d, want 1", len(reg.Brokers))
	}
}

func TestRegistryFindBroker(t *testing.T) {
	reg := NewRegistry()
	a := reg.PutBroker(&Broker{ID: "aaaa1111-0000-0000-0000-000000000000", Name: "Production"})
	reg.PutBroker(&Broker{ID: "aaaa2222-0000-0000-0000-000000000000", Name: "Staging"})
	c := reg.PutBroker(&Broker{ID: "bbbb1111-0000-0000-0000-000000000000", Name: "Backup"})

	tests := []struct {
		ref  string
		want *Broker
	}{
		{"aaaa1111-0000-0000-0000-000000000000", a},
		{"production", a},
		{"bbbb", c},
		{"aaaa", nil}, // ambiguous
		{"aaa", nil},  // too short for a prefix
		{"missing", nil},
	}

	for _, tt := range tests {
		if got := reg.FindBroker(tt.ref); got != tt.want {
			t.Errorf("FindBroker(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}

func TestRegistryDeleteAndList(t *testing.T) {
	reg := NewRegistry()
	reg.PutBroker(&Broker{Name: "Zulu"})
	b := reg.PutBroker(&Broker{Name: "Alpha"})
	reg.PutBroker(&Broker{Name: "Mike"})

	list := reg.ListBrokers()
	if len(list) != 3 || list[0].Name != "Alpha" || list[2].Name != "Zulu" {
		t.Errorf("ListBrokers() order = %v, want Alpha, Mike, Zulu", names(list))
	}

	if !reg.DeleteBroker(b.ID) {
		t.Error("DeleteBroker() = false, want true")
	}
	if reg.DeleteBroker(b.ID) {
		t.Error("DeleteBroker() of a missing broker should return false")
	}
	if len(reg.ListBrokers()) != 2 {
		t.Errorf("len(ListBrokers()) = %d, want 2", len(reg.ListBrokers()))
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg := NewRegistry()
	b := reg.PutBroker(&Broker{
		Name:           "Production",
		Endpoint:       "opc.tcp://prod-server:4840",
		SecurityMode:   SecurityModeSign,
		SecurityPolicy: "Basic256Sha256",
		AuthType:       AuthUsername,
		Username:       "operator",
		RefreshRate:    1000,
		Nodes:          []string{"ns=2;s=Line1.Speed", "i=2258"},
		Acquisition: &Acquisition{
			Mode:               AcquisitionSubscription,
			PublishingInterval: 500,
			LifetimeCount:      10,
			MaxKeepAliveCount:  3,
		},
		Diagnostics: true,
		Priority:    PriorityHigh,
	})

	if err := reg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "# OPC UA Console Configuration File") {
		t.Error("saved file should start with the header comment")
	}
	if strings.Contains(string(data), "password") {
		t.Error("saved file must not contain a password field")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be renamed away")
	}

	loaded, err := LoadRegistryFrom(path)
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}

	got := loaded.GetBroker(b.ID)
	if got == nil {
		t.Fatal("broker should exist in loaded registry")
	}
	if got.ID != b.ID {
		t.Errorf("loaded ID = %v, want %v", got.ID, b.ID)
	}
	if got.Endpoint != b.Endpoint || got.Username != "operator" || got.Priority != PriorityHigh {
		t.Errorf("loaded broker = %+v, want %+v", got, b)
	}
	if len(got.Nodes) != 2 || got.Nodes[0] != "ns=2;s=Line1.Speed" {
		t.Errorf("loaded Nodes = %v", got.Nodes)
	}
	if got.Acquisition == nil || got.Acquisition.PublishingInterval != 500 {
		t.Errorf("loaded Acquisition = %+v", got.Acquisition)
	}
}

func TestLoadRegistryFrom_Missing(t *testing.T) {
	reg, err := LoadRegistryFrom(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}
	if reg.Version != 1 || len(reg.Brokers) != 0 {
		t.Errorf("LoadRegistryFrom() = %+v, want empty default registry", reg)
	}
}

func TestLoadRegistryFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "version: [", "failed to parse"},
		{"wrong version", "version: 2\n", "unsupported config version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadRegistryFrom(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadRegistryFrom() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRegistryFrom_FillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `version: 1
brokers:
  3f0c1c1e-7b8e-4d4e-9f55-6f7e3c1f2a10:
    name: Handwritten
    endpoint: opc.tcp://localhost:4840
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadRegistryFrom(path)
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}
	if reg.Preferences == nil {
		t.Error("Preferences should be filled with defaults")
	}
	b := reg.GetBroker("3f0c1c1e-7b8e-4d4e-9f55-6f7e3c1f2a10")
	if b == nil || b.ID != "3f0c1c1e-7b8e-4d4e-9f55-6f7e3c1f2a10" {
		t.Errorf("broker id should be taken from its map key, got %+v", b)
	}
}

func TestIsValidOption(t *testing.T) {
	if !IsValidOption(SecurityModes, SecurityModeSignAndEncrypt) {
		t.Error("signandencrypt should be a valid security mode")
	}
	if IsValidOption(SecurityPolicies, "Basic512") {
		t.Error("Basic512 should not be a valid policy")
	}
	for _, mode := range SecurityModes {
		if _, ok := SecurityModeLabels[mode]; !ok {
			t.Errorf("SecurityModeLabels missing %s", mode)
		}
	}
	for _, a := range AuthTypes {
		if _, ok := AuthTypeLabels[a]; !ok {
			t.Errorf("AuthTypeLabels missing %s", a)
		}
	}
}

func names(bs []*Broker) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Name
	}
	return out
}

func BenchmarkFindBroker(b *testing.B) {
	reg := NewRegistry()
	for i := 0; i < 100; i++ {
		reg.PutBroker(&Broker{Name: uuid.NewString()})
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.FindBroker("missing")
	}
}
