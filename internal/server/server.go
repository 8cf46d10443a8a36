package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/muurk/opcua-console/internal/addrspace"
	"github.com/muurk/opcua-console/internal/config"
	"github.com/muurk/opcua-console/internal/logging"
	"github.com/muurk/opcua-console/internal/monitor"
	"github.com/muurk/opcua-console/internal/relay"
	"github.com/muurk/opcua-console/internal/secrets"
)

const (
	sessionName     = "opcua-console"
	shutdownTimeout = 10 * time.Second
)

// Config holds the server configuration
type Config struct {
	Host         string
	Port         int
	CertPath     string // Serve HTTPS when both CertPath and KeyPath are set
	KeyPath      string
	SessionKey   string // Cookie signing key; a random key is used when empty
	RegistryPath string // Where saved configurations are written; empty = default config path
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// Relay is the subset of *relay.Client the console forwards to.
type Relay interface {
	ValidateConnection(ctx context.Context, endpointURL string) relay.Result[relay.Connection]
	Browse(ctx context.Context, endpointURL, nodeID string) relay.Result[[]addrspace.Node]
	ReadValue(ctx context.Context, endpointURL, nodeID string) relay.Result[*relay.Value]
	WriteValue(ctx context.Context, req relay.WriteRequest) relay.Result[struct{}]
}

// Deps are the services the console is built on.
type Deps struct {
	Relay    Relay
	Registry *config.Registry
	Secrets  secrets.Store
	Monitor  *monitor.Monitor // optional; an unstarted monitor is created when nil
}

// Server is the web console.
type Server struct {
	config     *Config
	relay      Relay
	registry   *config.Registry
	secrets    secrets.Store
	monitor    *monitor.Monitor
	sessions   *sessions.CookieStore
	hub        *Hub
	router     *mux.Router
	tlsConfig  *tls.Config
	httpServer *http.Server
}

// New creates a new Server instance
func New(cfg *Config, deps Deps) (*Server, error) {
	if deps.Relay == nil {
		return nil, errors.New("relay is required")
	}
	if deps.Registry == nil {
		deps.Registry = config.NewRegistry()
	}
	if deps.Secrets == nil {
		deps.Secrets = secrets.NewMemory()
	}
	if deps.Monitor == nil {
		deps.Monitor = monitor.New(deps.Relay, deps.Registry)
	}

	key := []byte(cfg.SessionKey)
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
		logging.Debug("Using a random session key; flashes will not survive a restart")
	}
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		config:   cfg,
		relay:    deps.Relay,
		registry: deps.Registry,
		secrets:  deps.Secrets,
		monitor:  deps.Monitor,
		sessions: store,
		hub:      NewHub(deps.Monitor),
	}

	if cfg.CertPath != "" || cfg.KeyPath != "" {
		tlsConfig, err := NewTLSConfig(cfg.CertPath, cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		s.tlsConfig = tlsConfig
		store.Options.Secure = true
	}

	s.router = s.routes()
	return s, nil
}

// Handler returns the console's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the status WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start starts the monitor and the HTTP server and blocks until a shutdown
// signal, ctx cancellation or a server error.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Addr()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if s.tlsConfig != nil {
		logging.Info("TLS Configuration", zap.Any("tls_info", GetTLSInfo(s.tlsConfig)))
		ln = tls.NewListener(ln, s.tlsConfig)
	}

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.hub.Run(ctx)
	if err := s.monitor.Start(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	scheme := "http"
	if s.tlsConfig != nil {
		scheme = "https"
	}
	logging.Info("OPC UA console listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("scheme", scheme),
		zap.Duration("poll_interval", s.monitor.Interval()),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(ln)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
	case <-ctx.Done():
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.monitor.Stop(ctx)
	s.hub.Close()

	var err error
	if s.httpServer != nil {
		if err = s.httpServer.Shutdown(ctx); err != nil {
			logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
			_ = s.httpServer.Close()
		}
	}

	logging.Sync()
	return err
}

// saveRegistry writes the registry to the configured path.
func (s *Server) saveRegistry() error {
	if s.config.RegistryPath != "" {
		return s.registry.SaveTo(s.config.RegistryPath)
	}
	return s.registry.Save()
}
