// Package endpoint validates OPC UA connection strings of the form
// opc.tcp://host[:port][/path].
//
// Validation never touches the network; it only checks the shape of the
// string an operator typed, so it runs on every edit of the endpoint field.
package endpoint

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

const (
	// Scheme is the only accepted endpoint prefix.
	Scheme = "opc.tcp://"

	// DefaultPort is the IANA registered port for OPC UA TCP.
	DefaultPort = 4840
)

// Reason identifies why an endpoint was rejected.
type Reason int

const (
	ReasonRequired Reason = iota + 1
	ReasonScheme
	ReasonHostname
	ReasonPort
	ReasonFormat
)

// Message returns the operator-facing text for the reason.
func (r Reason) Message() string {
	switch r {
	case ReasonRequired:
		return "Endpoint URL is required"
	case ReasonScheme:
		return "Endpoint must start with " + Scheme
	case ReasonHostname:
		return "Invalid hostname in endpoint URL"
	case ReasonPort:
		return "Invalid port number. Port must be between 1-65535"
	case ReasonFormat:
		return "Invalid endpoint format"
	default:
		return fmt.Sprintf("Reason(%d)", r)
	}
}

// ValidationError reports an endpoint that failed validation.
type ValidationError struct {
	Reason   Reason
	Endpoint string
	Err      error // parser error, only set for ReasonFormat
}

func (e *ValidationError) Error() string {
	return e.Reason.Message()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is matches any ValidationError with the same Reason, so callers can write
// errors.Is(err, endpoint.ErrPort).
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Reason == e.Reason
}

// Sentinels for errors.Is.
var (
	ErrRequired = &ValidationError{Reason: ReasonRequired}
	ErrScheme   = &ValidationError{Reason: ReasonScheme}
	ErrHostname = &ValidationError{Reason: ReasonHostname}
	ErrPort     = &ValidationError{Reason: ReasonPort}
	ErrFormat   = &ValidationError{Reason: ReasonFormat}
)

// Endpoint is a validated connection string split into its parts.
type Endpoint struct {
	Raw  string
	Host string
	Port int    // DefaultPort when the string carries none
	Path string // everything after the authority, may be empty
}

// String returns the endpoint as the operator entered it.
func (e Endpoint) String() string {
	return e.Raw
}

// Address returns host:port suitable for net.Dial style APIs.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Validate checks an endpoint string. It returns nil or a *ValidationError.
func Validate(s string) error {
	_, err := Parse(s)
	return err
}

// IsValid reports whether s passes Validate.
func IsValid(s string) bool {
	return Validate(s) == nil
}

// Parse validates s and returns its parts.
//
// Checks run in a fixed order: presence, scheme, hostname, port, then a
// final URL parse that catches anything else malformed.
func Parse(s string) (Endpoint, error) {
	if s == "" {
		return Endpoint{}, invalid(ReasonRequired, s, nil)
	}
	if !strings.HasPrefix(s, Scheme) {
		return Endpoint{}, invalid(ReasonScheme, s, nil)
	}

	rest := s[len(Scheme):]
	authority, path := rest, ""
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		authority, path = rest[:i], rest[i:]
	}
	// userinfo is tolerated but never used
	if i := strings.LastIndex(authority, "@"); i >= 0 {
		authority = authority[i+1:]
	}

	host, portText, err := splitAuthority(authority)
	if err != nil {
		return Endpoint{}, invalid(ReasonFormat, s, err)
	}

	if host == "" {
		return Endpoint{}, invalid(ReasonHostname, s, nil)
	}

	port := DefaultPort
	if portText != "" {
		n, err := strconv.Atoi(portText)
		if err != nil || !allDigits(portText) || n < 1 || n > 65535 {
			return Endpoint{}, invalid(ReasonPort, s, nil)
		}
		port = n
	}

	if strings.ContainsAny(host, " \t\r\n%") {
		return Endpoint{}, invalid(ReasonFormat, s, fmt.Errorf("invalid character in host %q", host))
	}
	if _, err := url.Parse(s); err != nil {
		return Endpoint{}, invalid(ReasonFormat, s, err)
	}

	return Endpoint{Raw: s, Host: host, Port: port, Path: path}, nil
}

// Build returns an endpoint string for host and port, bracketing IPv6
// literals. A zero port yields no port suffix.
func Build(host string, port int) string {
	if port == 0 {
		if strings.Contains(host, ":") {
			return Scheme + "[" + host + "]"
		}
		return Scheme + host
	}
	return Scheme + net.JoinHostPort(host, strconv.Itoa(port))
}

// splitAuthority separates host and port. The port text is returned
// unchecked; an empty port after a trailing colon counts as absent.
func splitAuthority(authority string) (host, port string, err error) {
	if strings.HasPrefix(authority, "[") {
		end := strings.Index(authority, "]")
		if end < 0 {
			return "", "", fmt.Errorf("missing ']' in host %q", authority)
		}
		host = authority[1:end]
		tail := authority[end+1:]
		switch {
		case tail == "":
		case strings.HasPrefix(tail, ":"):
			port = tail[1:]
		default:
			return "", "", fmt.Errorf("unexpected %q after host", tail)
		}
		if host != "" && net.ParseIP(host) == nil {
			return "", "", fmt.Errorf("invalid IPv6 literal %q", host)
		}
		return host, port, nil
	}

	switch strings.Count(authority, ":") {
	case 0:
		return authority, "", nil
	case 1:
		i := strings.Index(authority, ":")
		return authority[:i], authority[i+1:], nil
	default:
		return "", "", fmt.Errorf("too many colons in %q", authority)
	}
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

func invalid(reason Reason, s string, err error) error {
	return &ValidationError{Reason: reason, Endpoint: s, Err: err}
}
