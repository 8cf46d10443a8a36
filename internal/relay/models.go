package relay

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/muurk/opcua-console/internal/addrspace"
	"github.com/muurk/opcua-console/internal/notify"
)

// Status is the connection state shown next to an endpoint.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
	StatusValidating   Status = "validating"
	StatusDisconnected Status = "disconnected"
)

// Connection is the outcome of a connection test.
type Connection struct {
	Endpoint string `json:"endpoint"`
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
}

// Connected reports whether the backend reached the server.
func (c Connection) Connected() bool {
	return c.Status == StatusConnected
}

// Value is a node value as returned by the backend.
type Value struct {
	NodeID          string          `json:"nodeId"`
	Value           json.RawMessage `json:"value"`
	DataType        string          `json:"dataType,omitempty"`
	SourceTimestamp json.RawMessage `json:"sourceTimestamp,omitempty"`
}

// Timestamp layouts seen from backends, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// Timestamp parses the source timestamp as relayed by the backend: an RFC
// 3339 string, a zone-less date time (taken as UTC) or epoch milliseconds.
// It reports false when the timestamp is absent or unrecognised.
func (v Value) Timestamp() (time.Time, bool) {
	raw := bytes.TrimSpace(v.SourceTimestamp)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false
	}

	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Decode unmarshals the raw value into v.
func (v Value) Decode(dst any) error {
	return json.Unmarshal(v.Value, dst)
}

// String returns the raw JSON text of the value.
func (v Value) String() string {
	return string(v.Value)
}

// WriteRequest describes a value to write to a node.
type WriteRequest struct {
	Endpoint string `json:"endpoint"`
	NodeID   string `json:"nodeId"`
	Value    any    `json:"value"`
	DataType string `json:"dataType,omitempty"`
}

// Result is the tagged outcome of a relay operation. On failure Err is a
// *notify.Failure wrapping the typed *Error, Value holds the operation's
// empty value and Notice is the notification to show, if any. Showing it
// is left to the caller.
type Result[T any] struct {
	Value  T                    `json:"value"`
	Err    error                `json:"-"`
	Notice *notify.Notification `json:"notice,omitempty"`
}

// OK reports whether the operation succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Message returns the normalized failure message, or "" on success.
func (r Result[T]) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Unpack returns the conventional (value, error) pair.
func (r Result[T]) Unpack() (T, error) {
	return r.Value, r.Err
}

// wire formats

type endpointRequest struct {
	Endpoint string `json:"endpoint"`
	NodeID   string `json:"nodeId,omitempty"`
}

type validateResponse struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message,omitempty"`
}

type browseResponse struct {
	Nodes []addrspace.Node `json:"nodes"`
}

type readResponse struct {
	Value           json.RawMessage `json:"value"`
	DataType        string          `json:"dataType,omitempty"`
	SourceTimestamp json.RawMessage `json:"sourceTimestamp,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
}
