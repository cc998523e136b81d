package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/pulseboard/go/internal/pulse"
)

// Service is the pulse gateway: WebSocket transport, periodic tasks and HTTP routes
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	pulseHandler      *PulseHandler
	statsHandler      *StatsHandler
	app               *pulse.App
	publisher         EventPublisher
	clock             clockwork.Clock
	config            Config
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	AllowedOrigins   []string
	// UserCountInterval is how often the connected count is broadcast
	UserCountInterval time.Duration
	// LimiterSweepInterval is how often idle rate limiter buckets are dropped
	LimiterSweepInterval time.Duration
	// IdleSweepInterval enables eager window evaluation when positive
	IdleSweepInterval time.Duration
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig:     DefaultConnectionConfig(),
		AllowedOrigins:       []string{"http://localhost:5173"},
		UserCountInterval:    5 * time.Second,
		LimiterSweepInterval: 3 * time.Second,
	}
}

// NewService creates a new gateway service
func NewService(config Config, app *pulse.App, publisher EventPublisher, clock clockwork.Clock) *Service {
	if publisher == nil {
		publisher = NoOpPublisher{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	connectionManager := NewConnectionManager(config.ConnectionConfig, nil)
	pulseHandler := NewPulseHandler(app, connectionManager, publisher, clock)
	connectionManager.SetHandler(pulseHandler)

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		pulseHandler:      pulseHandler,
		statsHandler:      NewStatsHandler(app, connectionManager, clock),
		app:               app,
		publisher:         publisher,
		clock:             clock,
		config:            config,
	}
}

// Start runs the connection manager and periodic tasks until ctx is done
func (s *Service) Start(ctx context.Context) error {
	log.Info().
		Dur("user_count_interval", s.config.UserCountInterval).
		Dur("limiter_sweep_interval", s.config.LimiterSweepInterval).
		Dur("idle_sweep_interval", s.config.IdleSweepInterval).
		Msg("starting pulse gateway service")

	go s.connectionManager.Start(ctx)

	go s.every(ctx, s.config.UserCountInterval, s.pulseHandler.BroadcastUserCount)
	go s.every(ctx, s.config.LimiterSweepInterval, func() {
		if n := s.app.SweepLimiter(); n > 0 {
			log.Debug().Int("removed", n).Msg("swept idle rate limiter buckets")
		}
	})
	if s.config.IdleSweepInterval > 0 {
		go s.every(ctx, s.config.IdleSweepInterval, s.pulseHandler.Tick)
	}

	<-ctx.Done()

	log.Info().Msg("pulse gateway service shutting down")
	return s.Stop()
}

// every calls fn on each tick of the clock until ctx is done
func (s *Service) every(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			fn()
		}
	}
}

// Stop releases the publisher
func (s *Service) Stop() error {
	if err := s.publisher.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close event publisher")
		return err
	}
	log.Info().Msg("pulse gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and stats routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.statsHandler.RegisterRoutes(mux)
	log.Info().Msg("pulse gateway routes registered")
}

// Handler returns the full HTTP handler with CORS and h2c applied
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

// ConnectionCount returns the number of open WebSocket connections
func (s *Service) ConnectionCount() int {
	return s.connectionManager.ConnectionCount()
}
