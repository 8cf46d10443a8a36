package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/opcua-console/internal/endpoint"
	"github.com/muurk/opcua-console/internal/logging"
)

const (
	// ServiceType is the DNS-SD service type registered for OPC UA TCP
	// endpoints (OPC UA Part 12, multicast subnet discovery)
	ServiceType = "_opcua-tcp._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for server discovery
	DefaultScanTimeout = 5 * time.Second
)

// browser abstracts the zeroconf resolver so scans can be tested without
// multicast networking.
type browser interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// Scanner handles mDNS discovery of OPC UA servers
type Scanner struct {
	// Timeout is the maximum time to wait for server discovery
	Timeout time.Duration

	newBrowser func() (browser, error)
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		newBrowser: func() (browser, error) {
			return zeroconf.NewResolver(nil)
		},
	}
}

// Scan discovers OPC UA servers on the local network until the timeout
// elapses or ctx is cancelled. Servers are deduplicated by endpoint and
// sorted by name.
func (s *Scanner) Scan(ctx context.Context) ([]*Server, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := s.newBrowser()
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu      sync.Mutex
		servers = make(map[string]*Server)
		done    = make(chan struct{})
	)

	go func() {
		defer close(done)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				server := parseServiceEntry(entry)
				if server == nil {
					continue
				}
				logging.Debug("Discovered OPC UA server",
					zap.String("name", server.Name),
					zap.String("endpoint", server.Endpoint))
				mu.Lock()
				servers[server.Endpoint] = server
				mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	<-done

	mu.Lock()
	defer mu.Unlock()

	result := make([]*Server, 0, len(servers))
	for _, srv := range servers {
		result = append(result, srv)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].Endpoint < result[j].Endpoint
	})
	return result, nil
}

// parseServiceEntry converts a zeroconf service entry to a Server.
// Returns nil if no valid endpoint can be built from the entry.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Server {
	if entry == nil {
		return nil
	}

	hostname := strings.TrimSuffix(entry.HostName, ".")

	// Get IP address (prefer IPv4)
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}

	host := ip
	if host == "" {
		host = hostname
	}
	if host == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = endpoint.DefaultPort
	}

	// TXT records are in "key=value" format
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	path := metadata["path"]
	ep, err := buildEndpoint(host, port, path)
	if err != nil {
		logging.Debug("Skipping mDNS entry with invalid endpoint",
			zap.String("host", host), zap.Int("port", port), zap.Error(err))
		return nil
	}

	var caps []string
	if c := metadata["caps"]; c != "" {
		for _, part := range strings.Split(c, ",") {
			if part = strings.TrimSpace(part); part != "" {
				caps = append(caps, part)
			}
		}
	}

	name := entry.Instance
	if name == "" {
		name = hostname
	}

	return &Server{
		Name:         name,
		Hostname:     hostname,
		IP:           ip,
		Port:         port,
		Path:         path,
		Endpoint:     ep,
		Capabilities: caps,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// QuickScan performs a scan with the given timeout
func QuickScan(ctx context.Context, timeout time.Duration) ([]*Server, error) {
	scanner := NewScanner()
	if timeout > 0 {
		scanner.Timeout = timeout
	}
	return scanner.Scan(ctx)
}
