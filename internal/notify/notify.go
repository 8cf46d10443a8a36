// Package notify turns operation failures into operator-facing messages.
//
// Data-access code never shows anything itself. It hands errors to a
// Normalizer, which logs them and produces a Failure carrying the message
// and an optional Notification; the presentation layer (terminal wizard,
// web console, CLI) decides how to display it through a Dispatcher.
package notify

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/opcua-console/internal/logging"
)

const (
	// NetworkMessage replaces transport-level errors.
	NetworkMessage = "Network error: Unable to reach the backend server"

	// UnknownMessage is used when an error carries no text at all.
	UnknownMessage = "Unknown error occurred"
)

// networkPatterns mark an error text as a transport failure regardless of
// where it came from.
var networkPatterns = []string{"networkerror", "network error", "failed to fetch"}

// transportError is implemented by errors that know they were raised
// before any response arrived.
type transportError interface {
	Transport() bool
}

// Variant selects how a notification is styled.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantSuccess     Variant = "success"
	VariantDestructive Variant = "destructive"
)

// Notification is a transient message for the operator (a toast, a flash,
// a result box).
type Notification struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Variant     Variant `json:"variant"`
}

// Dispatcher shows notifications. Each front end provides its own.
type Dispatcher interface {
	Dispatch(Notification)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(Notification)

// Dispatch calls f(n).
func (f DispatcherFunc) Dispatch(n Notification) {
	f(n)
}

// Failure is a normalized operation failure.
type Failure struct {
	Operation string
	Message   string
	Err       error
	Notice    *Notification // nil when notifications are suppressed
}

// Error returns the normalized message.
func (f *Failure) Error() string {
	return f.Message
}

// Unwrap returns the raw error.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Normalizer handles errors for one named operation.
type Normalizer struct {
	Operation string
	Notify    bool
}

// For returns a Normalizer for operation that emits notifications.
func For(operation string) Normalizer {
	return Normalizer{Operation: operation, Notify: true}
}

// Quiet returns a copy that never emits notifications.
func (n Normalizer) Quiet() Normalizer {
	n.Notify = false
	return n
}

// Handle logs err and returns the normalized Failure. A nil err yields nil.
func (n Normalizer) Handle(err error) *Failure {
	if err == nil {
		return nil
	}

	logging.Error("Error "+n.Operation+":", zap.Error(err))

	f := &Failure{
		Operation: n.Operation,
		Message:   Message(err),
		Err:       err,
	}
	if n.Notify {
		f.Notice = &Notification{
			Title:       "Error " + n.Operation,
			Description: f.Message,
			Variant:     VariantDestructive,
		}
	}
	return f
}

// Message maps an error to the text shown to the operator.
func Message(err error) string {
	if err == nil {
		return UnknownMessage
	}

	var te transportError
	if errors.As(err, &te) && te.Transport() {
		return NetworkMessage
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, p := range networkPatterns {
		if strings.Contains(lower, p) {
			return NetworkMessage
		}
	}

	if strings.TrimSpace(msg) == "" {
		return UnknownMessage
	}
	return msg
}

// Success builds the confirmation shown after an operation completes.
func Success(title, description string) Notification {
	return Notification{Title: title, Description: description, Variant: VariantSuccess}
}

// Send dispatches n if both the dispatcher and the notification are set.
func Send(d Dispatcher, n *Notification) {
	if d == nil || n == nil {
		return
	}
	d.Dispatch(*n)
}
