package endpoint

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     error
	}{
		{"localhost with port", "opc.tcp://localhost:4840", nil},
		{"without port", "opc.tcp://plc-01.factory.local", nil},
		{"with path", "opc.tcp://10.0.0.5:48010/UA/Server", nil},
		{"ipv6 literal", "opc.tcp://[::1]:4840", nil},
		{"lowest port", "opc.tcp://host:1", nil},
		{"highest port", "opc.tcp://host:65535", nil},
		{"trailing colon", "opc.tcp://host:", nil},
		{"empty", "", ErrRequired},
		{"http scheme", "http://localhost:4840", ErrScheme},
		{"no scheme", "localhost:4840", ErrScheme},
		{"uppercase scheme", "OPC.TCP://localhost:4840", ErrScheme},
		{"leading space", " opc.tcp://localhost:4840", ErrScheme},
		{"empty host with port", "opc.tcp://:4840", ErrHostname},
		{"scheme only", "opc.tcp://", ErrHostname},
		{"empty ipv6 brackets", "opc.tcp://[]:4840", ErrHostname},
		{"port too large", "opc.tcp://localhost:99999", ErrPort},
		{"port zero", "opc.tcp://localhost:0", ErrPort},
		{"port non numeric", "opc.tcp://localhost:abc", ErrPort},
		{"port signed", "opc.tcp://localhost:+80", ErrPort},
		{"port negative", "opc.tcp://localhost:-1", ErrPort},
		{"malformed userinfo", "opc.tcp://loc@:host:4840", ErrFormat},
		{"unclosed bracket", "opc.tcp://[::1:4840", ErrFormat},
		{"space in host", "opc.tcp://my host:4840", ErrFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.endpoint)
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate(%q) = %v, want nil", tt.endpoint, err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate(%q) = %v, want %v", tt.endpoint, err, tt.want)
			}
		})
	}
}

func TestValidateMessages(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"", "Endpoint URL is required"},
		{"http://localhost:4840", "Endpoint must start with opc.tcp://"},
		{"opc.tcp://:4840", "Invalid hostname in endpoint URL"},
		{"opc.tcp://localhost:99999", "Invalid port number. Port must be between 1-65535"},
		{"opc.tcp://loc@:host:4840", "Invalid endpoint format"},
	}

	for _, tt := range tests {
		err := Validate(tt.endpoint)
		if err == nil {
			t.Fatalf("Validate(%q) = nil, want error", tt.endpoint)
		}
		if err.Error() != tt.want {
			t.Errorf("Validate(%q) message = %q, want %q", tt.endpoint, err.Error(), tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	ep, err := Parse("opc.tcp://operator@plc-01:48010/UA/Server")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if ep.Host != "plc-01" {
		t.Errorf("Host = %s, want plc-01", ep.Host)
	}
	if ep.Port != 48010 {
		t.Errorf("Port = %d, want 48010", ep.Port)
	}
	if ep.Path != "/UA/Server" {
		t.Errorf("Path = %s, want /UA/Server", ep.Path)
	}
	if ep.Address() != "plc-01:48010" {
		t.Errorf("Address() = %s, want plc-01:48010", ep.Address())
	}
}

func TestParseDefaultPort(t *testing.T) {
	ep, err := Parse("opc.tcp://localhost")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ep.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", ep.Port, DefaultPort)
	}
}

func TestParseIPv6(t *testing.T) {
	ep, err := Parse("opc.tcp://[fe80::1]:4841")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ep.Host != "fe80::1" {
		t.Errorf("Host = %s, want fe80::1", ep.Host)
	}
	if ep.Address() != "[fe80::1]:4841" {
		t.Errorf("Address() = %s, want [fe80::1]:4841", ep.Address())
	}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"localhost", 4840, "opc.tcp://localhost:4840"},
		{"fe80::1", 4840, "opc.tcp://[fe80::1]:4840"},
		{"plc-01", 0, "opc.tcp://plc-01"},
	}

	for _, tt := range tests {
		got := Build(tt.host, tt.port)
		if got != tt.want {
			t.Errorf("Build(%s, %d) = %s, want %s", tt.host, tt.port, got, tt.want)
		}
		if !IsValid(got) {
			t.Errorf("Build(%s, %d) produced invalid endpoint %s", tt.host, tt.port, got)
		}
	}
}

func TestValidationErrorUnwrap(t *testing.T) {
	err := Validate("opc.tcp://loc@:host:4840")

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error should be *ValidationError, got %T", err)
	}
	if vErr.Endpoint != "opc.tcp://loc@:host:4840" {
		t.Errorf("Endpoint = %s, want the rejected input", vErr.Endpoint)
	}
	if errors.Unwrap(err) == nil {
		t.Error("format errors should carry the underlying parse error")
	}
}
