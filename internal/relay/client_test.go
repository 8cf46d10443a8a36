package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muurk/opcua-console/internal/addrspace"
	"github.com/muurk/opcua-console/internal/endpoint"
	"github.com/muurk/opcua-console/internal/notify"
)

// fakeBackend records requests and answers like the OPC UA backend service.
type fakeBackend struct {
	mu       sync.Mutex
	requests map[string][]map[string]any
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{requests: make(map[string][]map[string]any)}
	server := httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(server.Close)
	return fb, server
}

func (fb *fakeBackend) calls(path string) []map[string]any {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.requests[path]
}

func (fb *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	path := strings.TrimPrefix(r.URL.Path, "/api")
	fb.mu.Lock()
	fb.requests[path] = append(fb.requests[path], body)
	fb.mu.Unlock()

	endpointURL, _ := body["endpoint"].(string)
	nodeID, _ := body["nodeId"].(string)

	switch path {
	case PathValidateConnection:
		switch endpointURL {
		case "opc.tcp://test-success:4840":
			writeJSON(w, http.StatusOK, map[string]any{"connected": true, "message": "Connection successful"})
		case "opc.tcp://test-failure:4840":
			writeJSON(w, http.StatusOK, map[string]any{"connected": false, "message": "Failed to connect to server"})
		case "opc.tcp://test-silent:4840":
			writeJSON(w, http.StatusOK, map[string]any{"connected": false})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Internal server error"})
		}

	case PathBrowse:
		if nodeID == "i=9999" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"nodes": []addrspace.Node{
			{ID: "i=85", Name: "Objects", NodeType: addrspace.Folder},
			{ID: "i=86", Name: "Types", NodeType: addrspace.Folder},
		}})

	case PathReadValue:
		if nodeID == "i=9999" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"value":           42.5,
			"dataType":        "Double",
			"sourceTimestamp": "2024-03-01T12:00:00Z",
		})

	case PathWriteValue:
		if nodeID == "i=9999" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(server *httptest.Server) *Client {
	return New(Config{BaseURL: server.URL + "/api/", Timeout: 2 * time.Second})
}

func TestNew(t *testing.T) {
	c := New(Config{})

	if c.BaseURL() != DefaultBaseURL {
		t.Errorf("BaseURL() = %s, want %s", c.BaseURL(), DefaultBaseURL)
	}
	if c.httpClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, DefaultTimeout)
	}

	custom := &http.Client{Timeout: time.Second}
	c = New(Config{BaseURL: "http://backend:3000/api/"}, WithHTTPClient(custom))
	if c.BaseURL() != "http://backend:3000/api" {
		t.Errorf("BaseURL() = %s, want trailing slash trimmed", c.BaseURL())
	}
	if c.httpClient != custom {
		t.Error("WithHTTPClient() was not applied")
	}
}

func TestValidateConnection_Success(t *testing.T) {
	fb, server := newFakeBackend(t)
	client := newTestClient(server)

	res := client.ValidateConnection(context.Background(), "opc.tcp://test-success:4840")

	if !res.OK() {
		t.Fatalf("ValidateConnection() error = %v", res.Err)
	}
	if res.Value.Status != StatusConnected {
		t.Errorf("Status = %s, want connected", res.Value.Status)
	}
	if res.Value.Message != "Connection successful" {
		t.Errorf("Message = %q, want %q", res.Value.Message, "Connection successful")
	}
	if got := fb.calls(PathValidateConnection)[0]["endpoint"]; got != "opc.tcp://test-success:4840" {
		t.Errorf("request endpoint = %v, want opc.tcp://test-success:4840", got)
	}
}

func TestValidateConnection_NotConnected(t *testing.T) {
	_, server := newFakeBackend(t)
	client := newTestClient(server)

	tests := []struct {
		endpoint string
		want     string
	}{
		{"opc.tcp://test-failure:4840", "Failed to connect to server"},
		{"opc.tcp://test-silent:4840", "Failed to connect to the server"},
	}

	for _, tt := range tests {
		res := client.ValidateConnection(context.Background(), tt.endpoint)
		if res.Value.Status != StatusError {
			t.Errorf("%s: Status = %s, want error", tt.endpoint, res.Value.Status)
		}
		if res.Value.Message != tt.want {
			t.Errorf("%s: Message = %q, want %q", tt.endpoint, res.Value.Message, tt.want)
		}
		if !IsNotConnected(res.Err) {
			t.Errorf("%s: error should be not-connected, got %v", tt.endpoint, res.Err)
		}
		if res.Notice != nil {
			t.Errorf("%s: connection tests should not produce a notification", tt.endpoint)
		}
	}
}

func TestValidateConnection_BackendError(t *testing.T) {
	_, server := newFakeBackend(t)
	client := newTestClient(server)

	res := client.ValidateConnection(context.Background(), "opc.tcp://test-error:4840")

	if res.Value.Status != StatusError {
		t.Errorf("Status = %s, want error", res.Value.Status)
	}
	if res.Value.Message != "Internal server error" {
		t.Errorf("Message = %q, want backend message", res.Value.Message)
	}
	if !IsHTTPError(res.Err) {
		t.Errorf("error should be HTTP error, got %v", res.Err)
	}
}

func TestValidateConnection_InvalidEndpointSkipsBackend(t *testing.T) {
	fb, server := newFakeBackend(t)
	client := newTestClient(server)

	res := client.ValidateConnection(context.Background(), "http://localhost:4840")

	if res.Value.Status != StatusError {
		t.Errorf("Status = %s, want error", res.Value.Status)
	}
	if res.Value.Message != "Endpoint must start with opc.tcp://" {
		t.Errorf("Message = %q, want scheme reason", res.Value.Message)
	}
	if !errors.Is(res.Err, endpoint.ErrScheme) {
		t.Errorf("error should wrap endpoint.ErrScheme, got %v", res.Err)
	}
	if n := len(fb.calls(PathValidateConnection)); n != 0 {
		t.Errorf("backend received %d requests, want 0", n)
	}
}

func TestValidateConnection_BackendUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := New(Config{BaseURL: url, Timeout: time.Second})
	res := client.ValidateConnection(context.Background(), "opc.tcp://localhost:4840")

	if res.Value.Status != StatusError {
		t.Errorf("Status = %s, want error", res.Value.Status)
	}
	if res.Value.Message != notify.NetworkMessage {
		t.Errorf("Message = %q, want %q", res.Value.Message, notify.NetworkMessage)
	}
	if !IsNetworkError(res.Err) {
		t.Errorf("error should be network error, got %v", res.Err)
	}
}

func TestBrowse_RootValidatesFirst(t *testing.T) {
	fb, server := newFakeBackend(t)
	client := newTestClient(server)

	res := client.Browse(context.Background(), "opc.tcp://test-success:4840", "")

	if !res.OK() {
		t.Fatalf("Browse() error = %v", res.Err)
	}
	if len(res.Value) != 2 || res.Value[0].Name != "Objects" {
		t.Errorf("Browse() nodes = %+v, want Objects and Types", res.Value)
	}
	if n := len(fb.calls(PathValidateConnection)); n != 1 {
		t.Errorf("validate-connection calls = %d, want 1", n)
	}
	if got := fb.calls(PathBrowse)[0]["nodeId"]; got != addrspace.RootNodeID {
		t.Errorf("browse nodeId = %v, want %s", got, addrspace.RootNodeID)
	}
}

func TestBrowse_RootAbortsWhenNotConnected(t *testing.T) {
	fb, server := newFakeBackend(t)
	client := newTestClient(server)

	res := client.Browse(context.Background(), "opc.tcp://test-failure:4840", "")

	if res.OK() {
		t.Fatal("Browse() should fail when the connection check fails")
	}
	if res.Value == nil || len(res.Value) != 0 {
		t.Errorf("Browse() value = %#v, want empty non-nil slice", res.Value)
	}
	if res.Message() != "Failed to connect to server" {
		t.Errorf("Message() = %q, want the connection message", res.Message())
	}
	if n := len(fb.calls(PathBrowse)); n != 0 {
		t.Errorf("browse calls = %d, want 0", n)
	}
	if res.Notice == nil || res.Notice.Title != "Error "+OpBrowse {
		t.Errorf("Notice = %+v, want browse error notification", res.Notice)
	}
}

func TestBrowse_InvalidEndpointNeverCallsBrowse(t *testing.T) {
	fb, server := newFakeBackend(t)
	client := newTestClient(server)

	res := client.Browse(context.Background(), "opc.tcp://:4840", "")

	if len(res.Value) != 0 {
		t.Errorf("Browse() returned %d nodes, want 0", len(res.Value))
	}
	if res.Message() != "Invalid hostname in endpoint URL" {
		t.Errorf("Message() = %q, want hostname reason", res.Message())
	}
	if n := len(fb.calls(PathBrowse)) + len(fb.calls(PathValidateConnection)); n != 0 {
		t.Errorf("backend received %d requests, want 0", n)
	}
}

func TestBrowse_ExplicitNodeSkipsValidation(t *testing.T) {
	fb, server := newFakeBackend(t)
	client := newTestClient(server)

	res := client.Browse(context.Background(), "opc.tcp://test-failure:4840", "ns=0;i=85")

	if !res.OK() {
		t.Fatalf("Browse() error = %v", res.Err)
	}
	if n := len(fb.calls(PathValidateConnection)); n != 0 {
		t.Errorf("validate-connection calls = %d, want 0", n)
	}
	if got := fb.calls(PathBrowse)[0]["nodeId"]; got != "ns=0;i=85" {
		t.Errorf("browse nodeId = %v, want ns=0;i=85", got)
	}
}

func TestBrowse_HTTPErrorDegradesToEmpty(t *testing.T) {
	_, server := newFakeBackend(t)
	client := newTestClient(server)

	res := client.Browse(context.Background(), "opc.tcp://test-success:4840", "i=9999")

	if res.Value == nil || len(res.Value) != 0 {
		t.Errorf("Browse() value = %#v, want empty non-nil slice", res.Value)
	}
	if res.Message() != "Browse error: Not Found" {
		t.Errorf("Message() = %q, want %q", res.Message(), "Browse error: Not Found")
	}
}

func TestReadValue_Success(t *testing.T) {
	_, server := newFakeBackend(t)
	client := newTestClient(server)

	res := client.ReadValue(context.Background(), "opc.tcp://test-success:4840", "ns=2;s=PLC1.Temperature")

	if !res.OK() {
		t.Fatalf("ReadValue() error = %v", res.Err)
	}

	var v float64
	if err := res.Value.Decode(&v); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if v != 42.5 {
		t.Errorf("value = %v, want 42.5", v)
	}
	if res.Value.DataType != "Double" {
		t.Errorf("DataType = %s, want Double", res.Value.DataType)
	}
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if ts, ok := res.Value.Timestamp(); !ok || !ts.Equal(want) {
		t.Errorf("Timestamp() = %v, %v, want %v", ts, ok, want)
	}
}

func TestReadValue_OddTimestampKeepsValue(t *testing.T) {
	tests := []struct {
		name   string
		ts     any
		want   time.Time
		wantOK bool
	}{
		{"empty string", "", time.Time{}, false},
		{"zone-less", "2024-05-01 10:00:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), true},
		{"epoch millis", 1714557600000, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), true},
		{"fractional RFC 3339", "2024-05-01T10:00:00.000Z", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), true},
		{"garbage", "yesterday", time.Time{}, false},
		{"null", nil, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{
					"value":           7,
					"dataType":        "Int32",
					"sourceTimestamp": tt.ts,
				})
			}))
			defer server.Close()

			res := newTestClient(server).ReadValue(context.Background(), "opc.tcp://test-success:4840", "ns=2;s=Count")
			if !res.OK() {
				t.Fatalf("ReadValue() error = %v", res.Err)
			}
			if res.Value.String() != "7" {
				t.Errorf("value = %s, want 7", res.Value.String())
			}
			ts, ok := res.Value.Timestamp()
			if ok != tt.wantOK || !ts.Equal(tt.want) {
				t.Errorf("Timestamp() = %v, %v, want %v, %v", ts, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestReadAndWrite_ServerErrorBothReportFailure(t *testing.T) {
	_, server := newFakeBackend(t)
	client := newTestClient(server)
	ctx := context.Background()

	read := client.ReadValue(ctx, "opc.tcp://test-success:4840", "i=9999")
	if read.OK() {
		t.Error("ReadValue() should fail on HTTP 500")
	}
	if read.Value != nil {
		t.Errorf("ReadValue() value = %+v, want nil", read.Value)
	}
	if read.Message() != "Read error: Internal Server Error" {
		t.Errorf("read Message() = %q", read.Message())
	}

	write := client.WriteValue(ctx, WriteRequest{Endpoint: "opc.tcp://test-success:4840", NodeID: "i=9999", Value: 1})
	if write.OK() {
		t.Error("WriteValue() should report failure on HTTP 500")
	}
	if write.Message() != "Write error: Internal Server Error" {
		t.Errorf("write Message() = %q", write.Message())
	}
	if write.Notice == nil || write.Notice.Title != "Error "+OpWrite {
		t.Errorf("write Notice = %+v, want write error notification", write.Notice)
	}
	if !IsRetryable(write.Err) {
		t.Error("HTTP 500 should be retryable")
	}
}

func TestWriteValue_SendsAllFields(t *testing.T) {
	fb, server := newFakeBackend(t)
	client := newTestClient(server)

	res := client.WriteValue(context.Background(), WriteRequest{
		Endpoint: "opc.tcp://test-success:4840",
		NodeID:   "ns=2;s=PLC1.Setpoint",
		Value:    21.5,
		DataType: "Double",
	})
	if !res.OK() {
		t.Fatalf("WriteValue() error = %v", res.Err)
	}

	body := fb.calls(PathWriteValue)[0]
	if body["nodeId"] != "ns=2;s=PLC1.Setpoint" || body["value"] != 21.5 || body["dataType"] != "Double" {
		t.Errorf("write request body = %v", body)
	}
}

func TestNodeIDRelayedUnchanged(t *testing.T) {
	fb, server := newFakeBackend(t)
	client := newTestClient(server)
	ctx := context.Background()

	ids := []string{"nsu=urn:plc;s=Line1.Temp", "ns=0;i=85", "vendor:Line1/Temp"}
	for _, id := range ids {
		if res := client.Browse(ctx, "opc.tcp://test-success:4840", id); !res.OK() {
			t.Errorf("Browse(%q) error = %v", id, res.Err)
		}
		if res := client.ReadValue(ctx, "opc.tcp://test-success:4840", id); !res.OK() {
			t.Errorf("ReadValue(%q) error = %v", id, res.Err)
		}
		if res := client.WriteValue(ctx, WriteRequest{Endpoint: "opc.tcp://test-success:4840", NodeID: id, Value: 1}); !res.OK() {
			t.Errorf("WriteValue(%q) error = %v", id, res.Err)
		}
	}

	for _, path := range []string{PathBrowse, PathReadValue, PathWriteValue} {
		calls := fb.calls(path)
		if len(calls) != len(ids) {
			t.Fatalf("%s calls = %d, want %d", path, len(calls), len(ids))
		}
		for i, id := range ids {
			if got := calls[i]["nodeId"]; got != id {
				t.Errorf("%s nodeId = %v, want %q", path, got, id)
			}
		}
	}
}

func TestMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"nodes": [`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	res := client.Browse(context.Background(), "opc.tcp://localhost:4840", "i=85")

	var rErr *Error
	if !errors.As(res.Err, &rErr) || rErr.Type != ErrTypeParse {
		t.Errorf("error = %v, want parse error", res.Err)
	}
}

func TestContextCancelled(t *testing.T) {
	_, server := newFakeBackend(t)
	client := newTestClient(server)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := client.ReadValue(ctx, "opc.tcp://test-success:4840", "i=2258")
	if !IsNetworkError(res.Err) {
		t.Errorf("error = %v, want network error", res.Err)
	}
}

func TestUnpack(t *testing.T) {
	r := Result[int]{Value: 7}
	v, err := r.Unpack()
	if v != 7 || err != nil {
		t.Errorf("Unpack() = %d, %v; want 7, nil", v, err)
	}
	if r.Message() != "" {
		t.Errorf("Message() = %q, want empty", r.Message())
	}
}
