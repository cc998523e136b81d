package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pulseboard/go/internal/pulse"
	"github.com/mcdev12/pulseboard/go/internal/pulse/config"
	"github.com/mcdev12/pulseboard/go/internal/pulse/gateway"
	"github.com/mcdev12/pulseboard/go/internal/pulse/ratelimit"
	"github.com/mcdev12/pulseboard/go/internal/pulse/session"
	"github.com/mcdev12/pulseboard/go/internal/pulse/streak"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Err(err).Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	clock := clockwork.NewRealClock()

	engineCfg := streak.DefaultConfig()
	engineCfg.WindowDuration = cfg.WindowDuration()
	engineCfg.RequiredContributors = cfg.Sync.RequiredUsers

	limiter := ratelimit.New(cfg.RateLimit.Points, cfg.RateLimitDuration(), clock)
	app := pulse.NewApp(
		session.NewRegistry(cfg.ColorCooldown(), clock),
		limiter,
		streak.NewEngine(engineCfg, clock),
		clock,
	)

	var publisher gateway.EventPublisher = gateway.NoOpPublisher{}
	if cfg.NATS.URL != "" {
		natsCfg := gateway.DefaultNATSPublisherConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		p, err := gateway.NewNATSPublisher(natsCfg)
		if err != nil {
			log.Fatal().Err(err).Str("nats_url", cfg.NATS.URL).Msg("failed to connect to NATS")
		}
		publisher = p
	}

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.AllowedOrigins = []string{cfg.Server.ClientURL}
	gatewayConfig.UserCountInterval = cfg.UserCountInterval()
	gatewayConfig.LimiterSweepInterval = limiter.Duration()
	gatewayConfig.IdleSweepInterval = cfg.IdleSweepInterval()

	gatewayService := gateway.NewService(gatewayConfig, app, publisher, clock)

	log.Info().
		Str("addr", cfg.Addr()).
		Dur("window", cfg.WindowDuration()).
		Int("required_users", cfg.Sync.RequiredUsers).
		Int("rate_points", cfg.RateLimit.Points).
		Dur("rate_duration", cfg.RateLimitDuration()).
		Bool("nats", cfg.NATS.URL != "").
		Msg("starting pulseboard gateway")

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     gatewayService.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	<-done

	log.Info().Msg("pulseboard gateway shutdown complete")
}
