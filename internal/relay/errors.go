package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of a relay failure
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error reaching the backend
	ErrTypeNetwork ErrorType = iota
	// ErrTypeHTTP indicates the backend answered with a non-2xx status
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed backend response
	ErrTypeParse
	// ErrTypeValidation indicates input rejected before any request was sent
	ErrTypeValidation
	// ErrTypeTimeout indicates the request timed out
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening at the backend URL
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates the backend hostname could not be resolved
	ErrTypeDNS
	// ErrTypeNotConnected indicates the OPC UA server itself was unreachable
	// according to the backend
	ErrTypeNotConnected
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeNotConnected:
		return "Not Connected"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is a failure of one relay operation.
//
// Message is what the operator sees; it is either the backend's own message
// or one of the fixed fallbacks. Type, StatusCode and Err keep the detail
// for logs and troubleshooting hints.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int    // HTTP status code (if applicable)
	Err        error  // Underlying error (if any)
	BackendURL string // Backend that was contacted (for context)
	Retryable  bool
}

// Error implements the error interface. It returns only the message so the
// normalizer can show it verbatim.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Transport reports whether the failure happened before the backend answered.
func (e *Error) Transport() bool {
	switch e.Type {
	case ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS:
		return true
	}
	return false
}

// Detail returns the message with its category and cause, for logs.
func (e *Error) Detail() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ClassifyNetworkError analyzes a transport error and returns a typed error
func ClassifyNetworkError(err error, backendURL string) *Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return &Error{
			Type:       ErrTypeTimeout,
			Message:    "Request timed out",
			Err:        err,
			BackendURL: backendURL,
			Retryable:  true,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{
			Type:       ErrTypeDNS,
			Message:    fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:        err,
			BackendURL: backendURL,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return &Error{
			Type:       ErrTypeConnectionRefused,
			Message:    "Backend refused connection",
			Err:        err,
			BackendURL: backendURL,
			Retryable:  true,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != err {
		return ClassifyNetworkError(urlErr.Err, backendURL)
	}

	return &Error{
		Type:       ErrTypeNetwork,
		Message:    "Network error occurred",
		Err:        err,
		BackendURL: backendURL,
		Retryable:  true,
	}
}

// NewHTTPError creates an error for a non-2xx backend response.
func NewHTTPError(statusCode int, message string) *Error {
	return &Error{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  statusCode >= 500,
	}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *Error {
	return &Error{
		Type:    ErrTypeParse,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates an error for input rejected locally
func NewValidationError(message string, err error) *Error {
	return &Error{
		Type:    ErrTypeValidation,
		Message: message,
		Err:     err,
	}
}

// NewNotConnectedError reports that the backend could not reach the OPC UA server.
func NewNotConnectedError(message string) *Error {
	return &Error{
		Type:      ErrTypeNotConnected,
		Message:   message,
		Retryable: true,
	}
}

func typeOf(err error) (ErrorType, *Error, bool) {
	var rErr *Error
	if errors.As(err, &rErr) {
		return rErr.Type, rErr, true
	}
	return ErrTypeUnknown, nil, false
}

// IsNetworkError checks if an error is a transport failure (including timeout, refused, DNS)
func IsNetworkError(err error) bool {
	_, rErr, ok := typeOf(err)
	return ok && rErr.Transport()
}

// IsHTTPError checks if an error is a non-2xx backend response
func IsHTTPError(err error) bool {
	t, _, ok := typeOf(err)
	return ok && t == ErrTypeHTTP
}

// IsValidationError checks if an error was raised before contacting the backend
func IsValidationError(err error) bool {
	t, _, ok := typeOf(err)
	return ok && t == ErrTypeValidation
}

// IsNotConnected checks if the backend reported the OPC UA server as unreachable
func IsNotConnected(err error) bool {
	t, _, ok := typeOf(err)
	return ok && t == ErrTypeNotConnected
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	_, rErr, ok := typeOf(err)
	return ok && rErr.Retryable
}

// TroubleshootingHint returns operator advice for an error
func TroubleshootingHint(err error) string {
	t, rErr, ok := typeOf(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch t {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The backend did not respond in time.",
			"Troubleshooting:",
			"  • Check that the OPC UA backend service is running",
			"  • Increase OPCUA_CONNECTION_TIMEOUT for slow servers",
			"  • Verify the OPC UA server is not overloaded",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The backend refused the connection.",
			"Troubleshooting:",
			"  • Start the OPC UA backend service",
			"  • Check OPCUA_BACKEND_URL (currently " + backendOrDefault(rErr.BackendURL) + ")",
			"  • Verify the port is not blocked by a firewall",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the backend hostname.",
			"Troubleshooting:",
			"  • Use an IP address in OPCUA_BACKEND_URL",
			"  • Check your network DNS settings",
		}, "\n")

	case ErrTypeNetwork:
		return strings.Join([]string{
			"Network communication with the backend failed.",
			"Troubleshooting:",
			"  • Check your network connection",
			"  • Verify OPCUA_BACKEND_URL points at the backend API",
		}, "\n")

	case ErrTypeHTTP:
		if rErr.StatusCode >= 500 {
			return strings.Join([]string{
				fmt.Sprintf("The backend returned an error (HTTP %d).", rErr.StatusCode),
				"Troubleshooting:",
				"  • Check the backend logs for the failing request",
				"  • Verify the node id exists on the OPC UA server",
				"  • Confirm the session's security settings allow this operation",
			}, "\n")
		}
		return fmt.Sprintf("The backend rejected the request (HTTP %d). Check the request parameters.", rErr.StatusCode)

	case ErrTypeNotConnected:
		return strings.Join([]string{
			"The backend could not connect to the OPC UA server.",
			"Troubleshooting:",
			"  • Verify the endpoint host and port",
			"  • Check the server's security mode and policy match the configuration",
			"  • Make sure the server accepts anonymous sessions or provide credentials",
		}, "\n")

	case ErrTypeParse:
		return strings.Join([]string{
			"Failed to parse the backend's response.",
			"The backend may be an incompatible version.",
		}, "\n")

	case ErrTypeValidation:
		return "The input is invalid. Check the error message for details."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// ShortMessage returns a concise status line for an error
func ShortMessage(err error) string {
	t, rErr, ok := typeOf(err)
	if !ok {
		return err.Error()
	}

	switch t {
	case ErrTypeTimeout:
		return "Backend not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Backend refused connection - is it running?"
	case ErrTypeDNS:
		return "Cannot resolve backend hostname"
	case ErrTypeNetwork:
		return "Network error - check connection"
	case ErrTypeHTTP:
		return fmt.Sprintf("Backend error (HTTP %d)", rErr.StatusCode)
	case ErrTypeParse:
		return "Failed to parse backend response"
	default:
		return rErr.Message
	}
}

func backendOrDefault(u string) string {
	if u == "" {
		return DefaultBaseURL
	}
	return u
}

// statusText mirrors the reason phrase a browser would expose.
func statusText(code int) string {
	if t := http.StatusText(code); t != "" {
		return t
	}
	return fmt.Sprintf("HTTP %d", code)
}
