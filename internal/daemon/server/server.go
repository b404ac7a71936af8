// Package server provides the HTTP front end of the orion daemon.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/orion/config"
	"github.com/grovetools/orion/errors"
	"github.com/grovetools/orion/internal/daemon/engine"
	"github.com/grovetools/orion/internal/daemon/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// RunningConfig is exposed via the /api/config endpoint so clients can verify
// what configuration the daemon runs with.
type RunningConfig struct {
	Config    *config.Config `json:"config"`
	Version   string         `json:"version"`
	StartedAt time.Time      `json:"started_at"`
}

// Server manages the daemon's HTTP server over TCP or a Unix socket.
type Server struct {
	logger        *logrus.Entry
	server        *http.Server
	engine        *engine.Engine
	runningConfig *RunningConfig
	staticDir     string
	uploadLimit   int64
}

// New creates a new Server instance.
func New(logger *logrus.Entry) *Server {
	return &Server{
		logger:      logger,
		uploadLimit: 1 << 20,
	}
}

// SetEngine sets the session engine the handlers drive.
func (s *Server) SetEngine(eng *engine.Engine) {
	s.engine = eng
}

// SetRunningConfig sets the running configuration for the server.
func (s *Server) SetRunningConfig(cfg *RunningConfig) {
	s.runningConfig = cfg
	if cfg != nil && cfg.Config != nil {
		s.staticDir = cfg.Config.Server.StaticDir
		if cfg.Config.Server.MaxUploadBytes > 0 {
			s.uploadLimit = cfg.Config.Server.MaxUploadBytes
		}
	}
}

// Handler returns the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Session endpoints
	mux.HandleFunc("/start", s.withEngine(http.MethodGet, s.handleStart))
	mux.HandleFunc("/code", s.withEngine(http.MethodPost, s.handleCode))
	mux.HandleFunc("/file", s.withEngine(http.MethodPost, s.handleFile))
	mux.HandleFunc("/step", s.withEngine(http.MethodGet, s.handleStep))
	mux.HandleFunc("/next", s.withEngine(http.MethodGet, s.handleNext))
	mux.HandleFunc("/state", s.withEngine(http.MethodGet, s.handleState))
	mux.HandleFunc("/command", s.withEngine(http.MethodGet, s.handleCommand))
	mux.HandleFunc("/variable", s.withEngine(http.MethodGet, s.handleVariable))
	mux.HandleFunc("/output", s.withEngine(http.MethodGet, s.handleOutput))
	mux.HandleFunc("/memory", s.withEngine(http.MethodGet, s.handleMemory))
	mux.HandleFunc("/close", s.withEngine(http.MethodPost, s.handleClose))

	// Daemon API endpoints
	mux.HandleFunc("/api/sessions", s.withEngine(http.MethodGet, s.handleGetSessions))
	mux.HandleFunc("/api/stream", s.withEngine(http.MethodGet, s.handleStream))
	mux.HandleFunc("/api/output/stream", s.withEngine(http.MethodGet, s.handleOutputStream))
	mux.HandleFunc("/api/config", s.handleGetConfig)

	if s.staticDir != "" {
		mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.staticDir))))
	}

	return h2c.NewHandler(mux, &http2.Server{})
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	// Cleanup stale socket
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	// Set restrictive permissions on socket
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	return s.Serve(listener)
}

// ListenAndServeTCP starts the daemon on a TCP address.
func (s *Server) ListenAndServeTCP(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.logger.WithField("addr", listener.Addr().String()).Info("Daemon listening")
	return s.Serve(listener)
}

// Serve accepts connections on listener until Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.server.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// withEngine rejects requests arriving before the engine is set or with the
// wrong method.
func (s *Server) withEngine(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.engine == nil {
			http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
			return
		}
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

// handleGetSessions returns all live sessions as JSON.
func (s *Server) handleGetSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Sessions())
}

// handleStream provides Server-Sent Events (SSE) for real-time session updates.
// Clients can subscribe to this endpoint to receive every step and session change.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Ensure the connection supports flushing
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Subscribe to store updates
	ch := s.engine.Store().Subscribe()
	defer s.engine.Store().Unsubscribe(ch)

	// Send initial ping to confirm connection
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	s.logger.Debug("SSE client connected")

	// Send current sessions immediately so client has data right away
	initial := store.Update{Type: UpdateInitial, Source: "registry", Payload: s.engine.Sessions()}
	if data, err := json.Marshal(initial); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				s.logger.WithError(err).Error("Failed to marshal update")
				continue
			}
			// SSE format: "data: {json}\n\n"
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// UpdateInitial is the type of the first event on /api/stream, carrying the
// current session list.
const UpdateInitial store.UpdateType = "initial"

// handleGetConfig returns the running configuration as JSON.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.runningConfig == nil {
		http.Error(w, "config not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.runningConfig)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error *errors.OrionError `json:"error"`
}

// StatusFor maps an error code onto an HTTP status.
func StatusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeCompileFailed:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeSubprocessUnavailable:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	orionErr := asOrionError(err)

	entry := s.logger.WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"status": status,
		"code":   orionErr.Code,
		"agent":  r.UserAgent(),
	})
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("Request failed")
	} else {
		entry.Debug(orionErr.Message)
	}
	writeJSON(w, status, ErrorResponse{Error: orionErr})
}

func asOrionError(err error) *errors.OrionError {
	for e := err; e != nil; {
		if oe, ok := e.(*errors.OrionError); ok {
			return oe
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return errors.Wrap(err, errors.ErrCodeInternal, err.Error())
}
