package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/muurk/opcua-console/internal/addrspace"
	"github.com/muurk/opcua-console/internal/endpoint"
	"github.com/muurk/opcua-console/internal/logging"
	"github.com/muurk/opcua-console/internal/notify"
	"github.com/muurk/opcua-console/internal/version"
)

const (
	// DefaultBaseURL is where the OPC UA backend API listens by default
	DefaultBaseURL = "http://localhost:3000/api"

	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// maxResponseSize caps how much of a backend response is read
	maxResponseSize = 8 << 20

	tracerName = "github.com/muurk/opcua-console/internal/relay"
)

// Backend API paths
const (
	PathValidateConnection = "/validate-connection"
	PathBrowse             = "/browse"
	PathReadValue          = "/read-value"
	PathWriteValue         = "/write-value"
)

// Operation labels used for logging and notifications
const (
	OpConnect = "connecting to OPC UA server"
	OpBrowse  = "browsing OPC UA server"
	OpRead    = "reading OPC UA node value"
	OpWrite   = "writing OPC UA node value"
)

const defaultConnectFailure = "Failed to connect to the server"

// Config holds the relay client settings
type Config struct {
	// BaseURL is the backend API root (e.g., "http://localhost:3000/api")
	BaseURL string

	// Timeout bounds each request (0 = DefaultTimeout)
	Timeout time.Duration
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{BaseURL: DefaultBaseURL, Timeout: DefaultTimeout}
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTracer sets the tracer used for relay spans
func WithTracer(tr trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tr
	}
}

// Client relays OPC UA operations to the backend over HTTP.
//
// Every call is a single POST with a JSON body. There is no retry and no
// caching; a failed call is reported once through its Result.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

// New creates a relay client for the given configuration
func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend API root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ValidateConnection tests whether the backend can reach the OPC UA server
// at endpointURL. The endpoint is validated locally first; a malformed
// endpoint never reaches the backend. Failures are reported without a
// notification, since the status itself is what callers display.
func (c *Client) ValidateConnection(ctx context.Context, endpointURL string) Result[Connection] {
	h := notify.For(OpConnect).Quiet()
	conn := Connection{Endpoint: endpointURL, Status: StatusError}

	if err := endpoint.Validate(endpointURL); err != nil {
		f := h.Handle(NewValidationError(err.Error(), err))
		conn.Message = f.Message
		return Result[Connection]{Value: conn, Err: f}
	}

	var resp validateResponse
	err := c.post(ctx, "validate-connection", PathValidateConnection,
		endpointRequest{Endpoint: endpointURL}, &resp, "Connection error")
	if err != nil {
		f := h.Handle(err)
		conn.Message = f.Message
		return Result[Connection]{Value: conn, Err: f}
	}

	if !resp.Connected {
		msg := resp.Message
		if msg == "" {
			msg = defaultConnectFailure
		}
		f := h.Handle(NewNotConnectedError(msg))
		conn.Message = f.Message
		return Result[Connection]{Value: conn, Err: f}
	}

	conn.Status = StatusConnected
	conn.Message = resp.Message
	return Result[Connection]{Value: conn}
}

// Browse lists the children of nodeID. An empty nodeID browses from the
// root folder and first checks the connection, aborting with the
// connection's message if the server is unreachable. On any failure the
// Result's Value is an empty, non-nil slice.
func (c *Client) Browse(ctx context.Context, endpointURL, nodeID string) Result[[]addrspace.Node] {
	h := notify.For(OpBrowse)
	empty := []addrspace.Node{}

	if nodeID == "" {
		check := c.ValidateConnection(ctx, endpointURL)
		if !check.Value.Connected() {
			msg := check.Value.Message
			if msg == "" {
				msg = defaultConnectFailure
			}
			f := h.Handle(connectionFailure(check.Err, msg))
			return Result[[]addrspace.Node]{Value: empty, Err: f, Notice: f.Notice}
		}
		nodeID = addrspace.RootNodeID
	}
	checkNodeID(OpBrowse, nodeID)

	var resp browseResponse
	if err := c.post(ctx, "browse", PathBrowse,
		endpointRequest{Endpoint: endpointURL, NodeID: nodeID}, &resp, "Browse error"); err != nil {
		f := h.Handle(err)
		return Result[[]addrspace.Node]{Value: empty, Err: f, Notice: f.Notice}
	}

	if resp.Nodes == nil {
		resp.Nodes = empty
	}
	return Result[[]addrspace.Node]{Value: resp.Nodes}
}

// ReadValue reads the current value of nodeID.
func (c *Client) ReadValue(ctx context.Context, endpointURL, nodeID string) Result[*Value] {
	h := notify.For(OpRead)
	checkNodeID(OpRead, nodeID)

	var resp readResponse
	if err := c.post(ctx, "read-value", PathReadValue,
		endpointRequest{Endpoint: endpointURL, NodeID: nodeID}, &resp, "Read error"); err != nil {
		f := h.Handle(err)
		return Result[*Value]{Err: f, Notice: f.Notice}
	}

	return Result[*Value]{Value: &Value{
		NodeID:          nodeID,
		Value:           resp.Value,
		DataType:        resp.DataType,
		SourceTimestamp: resp.SourceTimestamp,
	}}
}

// WriteValue writes a value to a node. A 2xx response means success; the
// response body is ignored.
func (c *Client) WriteValue(ctx context.Context, req WriteRequest) Result[struct{}] {
	h := notify.For(OpWrite)
	checkNodeID(OpWrite, req.NodeID)

	if err := c.post(ctx, "write-value", PathWriteValue, req, nil, "Write error"); err != nil {
		f := h.Handle(err)
		return Result[struct{}]{Err: f, Notice: f.Notice}
	}
	return Result[struct{}]{}
}

// checkNodeID logs node ids the local parser does not recognise. They are
// still relayed; the backend decides whether the server knows them.
func checkNodeID(op, nodeID string) {
	if _, err := addrspace.ParseNodeID(nodeID); err != nil {
		logging.Warn("Relaying unrecognised node id",
			zap.String("operation", op),
			zap.String("node_id", nodeID),
			zap.Error(err),
		)
	}
}

// post sends body as JSON to path and decodes a 2xx response into out
// (skipped when out is nil). Non-2xx responses become an *Error carrying the
// backend's message, or "<fallback>: <status text>".
func (c *Client) post(ctx context.Context, op, path string, body any, out any, fallback string) (err error) {
	ep := endpointOf(body)
	ctx, span := c.tracer.Start(ctx, "relay."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("opcua.endpoint", ep),
			attribute.String("http.url", c.baseURL+path),
		),
	)
	start := time.Now()
	statusCode := 0
	defer func() {
		logging.LogRelayCall(op, ep, statusCode, time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return NewParseError("failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return ClassifyNetworkError(err, c.baseURL)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ClassifyNetworkError(err, c.baseURL)
	}
	defer func() { _ = resp.Body.Close() }()

	statusCode = resp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", statusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return ClassifyNetworkError(err, c.baseURL)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		msg := ""
		if json.Unmarshal(data, &e) == nil {
			msg = e.Message
		}
		if msg == "" {
			msg = fmt.Sprintf("%s: %s", fallback, statusText(resp.StatusCode))
		}
		return NewHTTPError(resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return NewParseError("invalid response from backend", err)
	}
	return nil
}

// connectionFailure keeps the typed cause of a failed pre-browse check.
func connectionFailure(checkErr error, msg string) error {
	var rErr *Error
	if errors.As(checkErr, &rErr) {
		return &Error{
			Type:       rErr.Type,
			Message:    msg,
			StatusCode: rErr.StatusCode,
			Err:        rErr.Err,
			BackendURL: rErr.BackendURL,
			Retryable:  rErr.Retryable,
		}
	}
	return NewNotConnectedError(msg)
}

func endpointOf(body any) string {
	switch b := body.(type) {
	case endpointRequest:
		return b.Endpoint
	case WriteRequest:
		return b.Endpoint
	}
	return ""
}
