package discovery

import (
	"fmt"
	"strings"
	"time"

	"github.com/muurk/opcua-console/internal/endpoint"
)

// Server represents an OPC UA server found on the network
type Server struct {
	// Name is the mDNS instance name (e.g., "Line 1 PLC")
	Name string

	// Hostname is the mDNS hostname without the trailing dot (e.g., "plc-01.local")
	Hostname string

	// IP is the advertised address, IPv4 preferred
	IP string

	// Port is the OPC UA TCP port (typically 4840)
	Port int

	// Path is the endpoint path from the "path" TXT record (may be empty)
	Path string

	// Endpoint is the ready-to-use opc.tcp:// URL
	Endpoint string

	// Capabilities lists the server capability identifiers from the "caps"
	// TXT record (e.g., "LDS", "DA", "HD")
	Capabilities []string

	// Metadata contains all TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the server was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the server
func (s *Server) String() string {
	return fmt.Sprintf("OPC UA Server %q (%s) at %s", s.Name, s.Hostname, s.Endpoint)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (s *Server) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}

// HasCapability reports whether the server advertises capability (case-insensitive).
func (s *Server) HasCapability(capability string) bool {
	for _, c := range s.Capabilities {
		if strings.EqualFold(c, capability) {
			return true
		}
	}
	return false
}

// IsDiscoveryServer reports whether the server is a Local Discovery Server.
func (s *Server) IsDiscoveryServer() bool {
	return s.HasCapability("LDS")
}

// buildEndpoint joins host, port and path into an endpoint URL and checks it.
func buildEndpoint(host string, port int, path string) (string, error) {
	ep := endpoint.Build(host, port)
	if path != "" && path != "/" {
		ep += "/" + strings.TrimPrefix(path, "/")
	}
	if err := endpoint.Validate(ep); err != nil {
		return "", err
	}
	return ep, nil
}
