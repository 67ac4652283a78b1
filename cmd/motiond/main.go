// Package main provides the motion engine daemon entry point.
package main

import (
	"context"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	motionhttp "github.com/spottypottysense/motionengine/internal/api/http"
	"github.com/spottypottysense/motionengine/internal/app/dispatcher"
	"github.com/spottypottysense/motionengine/internal/app/refresher"
	"github.com/spottypottysense/motionengine/internal/app/registry"
	"github.com/spottypottysense/motionengine/internal/app/sweeper"
	"github.com/spottypottysense/motionengine/internal/infra/clock"
	"github.com/spottypottysense/motionengine/internal/infra/config"
	"github.com/spottypottysense/motionengine/internal/infra/logger"
	"github.com/spottypottysense/motionengine/internal/infra/secretstore"
	"github.com/spottypottysense/motionengine/internal/infra/store/memstore"
	"github.com/spottypottysense/motionengine/internal/infra/streaming"
)

var (
	app        = kingpin.New("motiond", "motion-triggered streaming playback engine")
	configPath = app.Flag("config", "Path to config file").Default("config/motiond.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
)

func main() {
	_ = godotenv.Load()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("failed to load config: %v", err)
	}
	if cfg.Log.Level != "" && !*verbose {
		if err := logger.Init(logger.Config{Output: "stdout", Level: cfg.Log.Level}); err != nil {
			zlog.Fatal().Msgf("failed to reinitialize logger: %v", err)
		}
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("motiond error: %v", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until shutdown. Persistence is
// in-memory here: a production deployment supplies its own store and
// secretstore implementations behind the same ports.
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.Real{}
	sensors := memstore.NewSensors()
	users := memstore.NewUsers()
	sessions := memstore.NewSessions()
	events := memstore.NewMotionEvents()

	secretBacking := secretstore.NewInMemory()
	secrets, err := secretstore.NewCached(secretBacking, secretstore.DefaultSize, secretstore.DefaultTTL)
	if err != nil {
		return fmt.Errorf("failed to build secret cache: %w", err)
	}

	streamingClient := streaming.New(streaming.Config{
		MaxRetries:         cfg.Streaming.MaxRetries,
		RateLimitPerSecond: float64(cfg.Streaming.RateLimitPerSecond),
		RateLimitBurst:     cfg.Streaming.RateLimitBurst,
	})

	reg := registry.New(sessions, clk, cfg.Session.TTLDays)
	d := dispatcher.New(sensors, users, reg, secrets, streamingClient, events, clk, cfg.Session.TTLDays, zlog.Logger)

	sw := sweeper.New(sensors, users, reg, secrets, streamingClient, clk, time.Duration(cfg.Sweep.IntervalSeconds)*time.Second, zlog.Logger)
	rf := refresher.New(users, secrets, streamingClient, cfg.Streaming.ClientID, cfg.Streaming.ClientSecret,
		time.Duration(cfg.Refresh.IntervalMinutes)*time.Minute, time.Duration(cfg.Refresh.BufferMinutes)*time.Minute, zlog.Logger)

	go sw.Run(ctx)
	go rf.Run(ctx)

	router := motionhttp.NewRouter(d, zlog.Logger)
	server := &nethttp.Server{Addr: cfg.Server.Addr, Handler: router}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("received shutdown signal")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("failed to shutdown server: %v", err)
	}
	zlog.Info().Msg("motiond stopped")
	return nil
}
