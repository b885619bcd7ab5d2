package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-fan/internal/command"
	"github.com/nerrad567/gray-logic-fan/internal/controller"
	"github.com/nerrad567/gray-logic-fan/internal/device"
	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/logging"
)

// gracefulShutdownTimeout bounds Close.
const gracefulShutdownTimeout = 10 * time.Second

// FanSource is the controller view the API needs.
// Satisfied by *controller.Controller.
type FanSource interface {
	Device() *fan.Device
	Connected() bool
	Stats() controller.Stats
}

// ConnectionStatus reports broker connectivity. Satisfied by *mqtt.Client.
type ConnectionStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	FanID      string
	Fan        FanSource
	Dispatcher *command.Dispatcher
	Registry   *device.Registry // optional: enables /fan/history
	MQTT       ConnectionStatus // optional
	Metrics    http.Handler     // optional: served at /metrics
	Version    string
}

// Server serves the REST API, the WebSocket event stream and, when a
// handler is supplied, Prometheus metrics for one fan.
type Server struct {
	cfg        config.APIConfig
	logger     *logging.Logger
	fanID      string
	fan        FanSource
	dispatcher *command.Dispatcher
	registry   *device.Registry
	mqtt       ConnectionStatus
	metrics    http.Handler
	version    string
	startTime  time.Time

	server *http.Server
	addr   string
	hub    *Hub
	cancel context.CancelFunc
}

// New validates deps and builds an unstarted server. Logger, Fan and
// Dispatcher are required.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Fan == nil {
		return nil, fmt.Errorf("fan source is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("command dispatcher is required")
	}

	s := &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		fanID:      deps.FanID,
		fan:        deps.Fan,
		dispatcher: deps.Dispatcher,
		registry:   deps.Registry,
		mqtt:       deps.MQTT,
		metrics:    deps.Metrics,
		version:    deps.Version,
		startTime:  time.Now(),
		hub:        NewHub(deps.WS, deps.Logger),
	}
	s.hub.fanID = deps.FanID
	return s, nil
}

// Hub returns the WebSocket hub, for registering it as a controller listener.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves in the background. Binding happens
// before Start returns, so a port conflict is reported to the caller.
//
// Parameters:
//   - ctx: Parent context of the WebSocket hub
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}

	hubCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.hub.Run(hubCtx)

	read := time.Duration(s.cfg.Timeouts.Read) * time.Second
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}
	s.addr = ln.Addr().String()

	s.logger.Info("API server listening", "address", s.addr)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	return s.addr
}

// Close stops the hub and drains in-flight requests for up to
// gracefulShutdownTimeout.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck fails until Start has bound the listener.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
