package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/muurk/opcua-console/internal/config"
	"github.com/muurk/opcua-console/internal/logging"
	"github.com/muurk/opcua-console/internal/notify"
	"github.com/muurk/opcua-console/internal/relay"
	"github.com/muurk/opcua-console/internal/version"
	"github.com/muurk/opcua-console/internal/wizard"
)

const maxBodyBytes = 1 << 20

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(recoverMiddleware, loggingMiddleware)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.Handle("/ws/status", s.hub).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/connections/validate", s.handleValidate).Methods(http.MethodPost)
	api.HandleFunc("/browse", s.handleBrowse).Methods(http.MethodPost)
	api.HandleFunc("/read", s.handleRead).Methods(http.MethodPost)
	api.HandleFunc("/write", s.handleWrite).Methods(http.MethodPost)
	api.HandleFunc("/configs", s.handleListConfigs).Methods(http.MethodGet)
	api.HandleFunc("/configs", s.handleSaveConfig).Methods(http.MethodPost)
	api.HandleFunc("/configs/{id}", s.handleGetConfig).Methods(http.MethodGet)
	api.HandleFunc("/configs/{id}", s.handleDeleteConfig).Methods(http.MethodDelete)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	return r
}

// APIError is the error part of an API response.
type APIError struct {
	Type      string             `json:"type"`
	Message   string             `json:"message"`
	Hint      string             `json:"hint,omitempty"`
	Retryable bool               `json:"retryable,omitempty"`
	Fields    wizard.FieldErrors `json:"fields,omitempty"`
}

// Response is the tagged result every API endpoint returns.
type Response struct {
	OK     bool                 `json:"ok"`
	Value  any                  `json:"value"`
	Error  *APIError            `json:"error,omitempty"`
	Notice *notify.Notification `json:"notice,omitempty"`
}

func responseOf[T any](res relay.Result[T]) Response {
	resp := Response{OK: res.OK(), Value: res.Value, Notice: res.Notice}
	if res.Err != nil {
		resp.Error = apiErrorOf(res.Err)
	}
	return resp
}

func apiErrorOf(err error) *APIError {
	e := &APIError{Type: "unknown", Message: notify.Message(err)}
	var rErr *relay.Error
	if errors.As(err, &rErr) {
		e.Type = rErr.Type.String()
		e.Hint = relay.TroubleshootingHint(err)
		e.Retryable = rErr.Retryable
	}
	return e
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, Response{Error: &APIError{Type: errType, Message: message}})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		msg := "Invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "Request body is required"
		}
		writeError(w, http.StatusBadRequest, "bad_request", msg)
		return false
	}
	return true
}

type nodeRequest struct {
	Endpoint string `json:"endpoint"`
	NodeID   string `json:"nodeId"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{OK: true, Value: map[string]string{
		"name":    version.Name,
		"version": version.Version,
	}})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req nodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, responseOf(s.relay.ValidateConnection(r.Context(), req.Endpoint)))
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	var req nodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, responseOf(s.relay.Browse(r.Context(), req.Endpoint, req.NodeID)))
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	var req nodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, responseOf(s.relay.ReadValue(r.Context(), req.Endpoint, req.NodeID)))
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	var req relay.WriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res := s.relay.WriteValue(r.Context(), req)
	resp := responseOf(res)
	resp.Value = nil
	if res.OK() {
		n := notify.Success("Value Written", fmt.Sprintf("%s was updated.", req.NodeID))
		resp.Notice = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{OK: true, Value: s.registry.ListBrokers()})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	b := s.registry.FindBroker(mux.Vars(r)["id"])
	if b == nil {
		writeError(w, http.StatusNotFound, "not_found", "Configuration not found")
		return
	}
	writeJSON(w, http.StatusOK, Response{OK: true, Value: b})
}

// saveConfigRequest is the wizard form plus the password, which the form
// itself never serializes.
type saveConfigRequest struct {
	wizard.Data
	Password string `json:"password,omitempty"`
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	req := saveConfigRequest{Data: wizard.DefaultData()}
	if !decodeJSON(w, r, &req) {
		return
	}
	data := req.Data
	data.Password = req.Password

	b, err := wizard.Commit(s.registry, s.secrets, data)
	var fieldErrs wizard.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		writeJSON(w, http.StatusUnprocessableEntity, Response{Error: &APIError{
			Type:    "validation",
			Message: "Invalid configuration",
			Fields:  fieldErrs,
		}})
		return
	case err != nil:
		logging.Error("Failed to store configuration", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage", err.Error())
		return
	}

	if err := s.saveRegistry(); err != nil {
		logging.Error("Failed to save registry", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage", "Failed to save configuration file")
		return
	}

	n := notify.Success("Configuration Saved", fmt.Sprintf("%s has been configured successfully.", b.Name))
	s.flash(w, r, n.Description)

	logging.Info("Configuration saved", zap.String("broker", b.ID), zap.String("name", b.Name))
	writeJSON(w, http.StatusCreated, Response{OK: true, Value: b, Notice: &n})
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	b := s.registry.FindBroker(mux.Vars(r)["id"])
	if b == nil {
		writeError(w, http.StatusNotFound, "not_found", "Configuration not found")
		return
	}

	if _, err := wizard.Remove(s.registry, s.secrets, b.ID); err != nil {
		logging.Warn("Failed to remove credentials", zap.String("broker", b.ID), zap.Error(err))
	}
	if err := s.saveRegistry(); err != nil {
		logging.Error("Failed to save registry", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage", "Failed to save configuration file")
		return
	}
	s.monitor.Forget(b.ID)

	n := notify.Success("Configuration Deleted", fmt.Sprintf("%s was removed.", b.Name))
	s.flash(w, r, n.Description)
	writeJSON(w, http.StatusOK, Response{OK: true, Value: b, Notice: &n})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{OK: true, Value: s.monitor.Latest()})
}

type indexPage struct {
	Version string
	Flashes []string
	Brokers []*config.Broker
}

var indexTemplate = template.Must(template.ParseFS(webFS, "web/index.html"))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := indexPage{
		Version: version.Version,
		Brokers: s.registry.ListBrokers(),
		Flashes: s.takeFlashes(w, r),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, page); err != nil {
		logging.Error("Failed to render index", zap.Error(err))
	}
}

func (s *Server) flash(w http.ResponseWriter, r *http.Request, msg string) {
	session, err := s.sessions.Get(r, sessionName)
	if err != nil {
		logging.Debug("Failed to get session", zap.Error(err))
	}
	session.AddFlash(msg)
	if err := session.Save(r, w); err != nil {
		logging.Warn("Failed to save session", zap.Error(err))
	}
}

func (s *Server) takeFlashes(w http.ResponseWriter, r *http.Request) []string {
	session, err := s.sessions.Get(r, sessionName)
	if err != nil {
		logging.Debug("Failed to get session", zap.Error(err))
	}
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := session.Save(r, w); err != nil {
		logging.Warn("Failed to save session", zap.Error(err))
	}

	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			out = append(out, msg)
		}
	}
	return out
}
