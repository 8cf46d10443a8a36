package notify

import (
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/muurk/opcua-console/internal/logging"
)

type fakeTransport struct{}

func (fakeTransport) Error() string   { return "dial tcp 127.0.0.1:3000: connect: connection refused" }
func (fakeTransport) Transport() bool { return true }

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain error", errors.New("Test error"), "Test error"},
		{"failed to fetch", errors.New("TypeError: Failed to fetch"), NetworkMessage},
		{"network error", errors.New("NetworkError when attempting to fetch resource."), NetworkMessage},
		{"lowercase pattern", errors.New("request: failed to fetch backend"), NetworkMessage},
		{"transport error", fakeTransport{}, NetworkMessage},
		{"wrapped transport error", fmt.Errorf("browse: %w", fakeTransport{}), NetworkMessage},
		{"empty message", errors.New(""), UnknownMessage},
		{"nil", nil, UnknownMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.err); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleIgnoresOperationForNetworkErrors(t *testing.T) {
	for _, op := range []string{"browsing server", "reading node value", "test operation"} {
		f := For(op).Handle(errors.New("Failed to fetch"))
		if f.Message != NetworkMessage {
			t.Errorf("Handle() for %q = %q, want %q", op, f.Message, NetworkMessage)
		}
	}
}

func TestHandleNotification(t *testing.T) {
	f := For("test operation").Handle(errors.New("Test error"))

	if f.Notice == nil {
		t.Fatal("Handle() should attach a notification")
	}
	if f.Notice.Title != "Error test operation" {
		t.Errorf("Title = %q, want %q", f.Notice.Title, "Error test operation")
	}
	if f.Notice.Description != "Test error" {
		t.Errorf("Description = %q, want %q", f.Notice.Description, "Test error")
	}
	if f.Notice.Variant != VariantDestructive {
		t.Errorf("Variant = %q, want destructive", f.Notice.Variant)
	}
}

func TestHandleQuiet(t *testing.T) {
	f := For("test operation").Quiet().Handle(errors.New("Test error"))

	if f.Notice != nil {
		t.Errorf("Quiet().Handle() Notice = %+v, want nil", f.Notice)
	}
	if f.Message != "Test error" {
		t.Errorf("Message = %q, want %q", f.Message, "Test error")
	}
}

func TestHandleNil(t *testing.T) {
	if f := For("x").Handle(nil); f != nil {
		t.Errorf("Handle(nil) = %+v, want nil", f)
	}
}

func TestHandleLogsOperation(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	logging.SetLogger(zap.New(core))
	defer logging.SetLogger(nil)

	raw := errors.New("Test error")
	For("test operation").Handle(raw)

	entries := logs.FilterMessage("Error test operation:").All()
	if len(entries) != 1 {
		t.Fatalf("got %d matching log entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["error"]; got != "Test error" {
		t.Errorf("logged error = %v, want Test error", got)
	}
}

func TestFailureUnwrap(t *testing.T) {
	raw := fakeTransport{}
	f := For("x").Handle(raw)

	if !errors.Is(f, raw) {
		t.Error("Failure should unwrap to the raw error")
	}
	if f.Error() != NetworkMessage {
		t.Errorf("Error() = %q, want %q", f.Error(), NetworkMessage)
	}
}

func TestSend(t *testing.T) {
	var got []Notification
	d := DispatcherFunc(func(n Notification) { got = append(got, n) })

	Send(d, nil)
	Send(nil, &Notification{Title: "ignored"})
	n := Success("Configuration Saved", "done")
	Send(d, &n)

	if len(got) != 1 || got[0].Title != "Configuration Saved" {
		t.Errorf("dispatched = %+v, want one Configuration Saved", got)
	}
	if got[0].Variant != VariantSuccess {
		t.Errorf("Variant = %q, want success", got[0].Variant)
	}
}
