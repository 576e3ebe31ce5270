package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/castbridge/internal/accessory"
	"github.com/nerrad567/castbridge/internal/audit"
	"github.com/nerrad567/castbridge/internal/hostbus"
	"github.com/nerrad567/castbridge/internal/infrastructure/config"
	"github.com/nerrad567/castbridge/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ErrMissingDependency is returned by New when a required dependency is nil.
var ErrMissingDependency = errors.New("api: missing required dependency")

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	WS     config.WebSocketConfig
	Logger *logging.Logger

	// Accessory is required.
	Accessory hostbus.Accessory

	// Audit serves /audit and records API commands. Optional.
	Audit audit.Repository

	Version string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	acc       hostbus.Accessory
	auditRepo audit.Repository
	version   string

	server   *http.Server
	listener net.Listener
	hub      *Hub
	cancel   context.CancelFunc

	stateMu   sync.Mutex
	lastState *hostbus.StateMessage
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: ErrMissingDependency if the logger or accessory is nil
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("%w: logger", ErrMissingDependency)
	}
	if deps.Accessory == nil {
		return nil, fmt.Errorf("%w: accessory", ErrMissingDependency)
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		acc:       deps.Accessory,
		auditRepo: deps.Audit,
		version:   deps.Version,
	}
	s.hub = NewHub(deps.WS, deps.Logger, s.currentState)
	return s, nil
}

// Start binds the listener, starts the WebSocket hub and serves requests in
// the background. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation of background goroutines
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.acc.OnUpdate(func(accessory.State) {
		s.broadcastState(false)
	})

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}

// currentState is the document sent to state subscribers.
func (s *Server) currentState() any {
	return hostbus.NewStateMessage(s.acc.Snapshot())
}

// broadcastState sends the snapshot to ChannelState subscribers. The
// reconciler reports every poll, so unchanged states are skipped unless
// force is set.
func (s *Server) broadcastState(force bool) {
	msg := hostbus.NewStateMessage(s.acc.Snapshot())

	s.stateMu.Lock()
	if !force && s.lastState != nil && s.lastState.Equal(msg) {
		s.stateMu.Unlock()
		return
	}
	s.lastState = &msg
	s.stateMu.Unlock()

	s.hub.Broadcast(ChannelState, msg)
}
