package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/gpio"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// gracefulShutdownTimeout bounds in-flight requests during shutdown.
const gracefulShutdownTimeout = 5 * time.Second

// SessionView is the part of *session.Session the server reads.
type SessionView interface {
	ID() string
	State() session.State
	Identity() session.Identity
	BufferSizes() session.BufferSizes
	ControlTopic() string
	Handlers() []string
	Stats() session.Stats
	Reconfigure() error
}

// HealthChecker is implemented by infrastructure clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// PinReader reads back journalled pin state. *gpio.Journal implements it.
type PinReader interface {
	Pin(ctx context.Context, pin int) (gpio.PinState, error)
}

// OTAQueue reports journalled update requests. *ota.Journal implements it.
type OTAQueue interface {
	Pending(ctx context.Context) (int, error)
}

// Deps holds the dependencies of the diagnostics server.
type Deps struct {
	Config  config.DiagnosticsConfig
	Logger  *logging.Logger
	Session SessionView
	Version string

	// Checks are reported by /health under their map key.
	Checks map[string]HealthChecker

	// Pins and OTA are optional; their routes answer 404 when nil.
	Pins PinReader
	OTA  OTAQueue
}

// Server is the diagnostics HTTP server.
type Server struct {
	cfg     config.DiagnosticsConfig
	logger  *logging.Logger
	session SessionView
	version string
	checks  map[string]HealthChecker
	pins    PinReader
	ota     OTAQueue
}

// New creates a diagnostics server. It does not listen until Run.
//
// Returns:
//   - *Server: Configured server
//   - error: If the logger or session is missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("session is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		session: deps.Session,
		version: deps.Version,
		checks:  deps.Checks,
		pins:    deps.Pins,
		ota:     deps.OTA,
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("diagnostics listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("diagnostics server listening", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("diagnostics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("diagnostics shutdown: %w", err)
	}
	s.logger.Info("diagnostics server stopped")
	return nil
}
