package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nitplane/nitplane/internal/airlines"
	"github.com/nitplane/nitplane/internal/api"
	"github.com/nitplane/nitplane/internal/auth"
	"github.com/nitplane/nitplane/internal/config"
	"github.com/nitplane/nitplane/internal/feed"
	"github.com/nitplane/nitplane/internal/geo"
	"github.com/nitplane/nitplane/internal/storage/sqlite"
	"github.com/nitplane/nitplane/internal/websocket"
	"github.com/nitplane/nitplane/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting nitplane server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Sessions
	dbDir := filepath.Dir(cfg.Storage.SQLitePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Error("Failed to create database directory", logger.Error(err), logger.String("path", dbDir))
		os.Exit(1)
	}

	sessionStorage, err := sqlite.NewSessionStorage(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer sessionStorage.Close()

	verifier, err := auth.NewBcryptVerifier(cfg.Auth.Username, cfg.Auth.PasswordHash)
	if err != nil {
		log.Error("Invalid auth configuration", logger.Error(err))
		os.Exit(1)
	}
	authService := auth.NewService(verifier, sessionStorage, time.Duration(cfg.Auth.SessionTTLHours)*time.Hour, log)
	go authService.RunJanitor(ctx, 10*time.Minute)

	// Flight feed
	entries := make([]airlines.Airline, 0, len(cfg.Airlines))
	for _, a := range cfg.Airlines {
		entries = append(entries, airlines.Airline{Code: a.Code, Name: a.Name, Domain: a.Domain})
	}
	directory := airlines.NewDirectory(entries, cfg.AirlineLogos.URLTemplate)
	log.Info("Loaded airline directory", logger.Int("airlines", len(entries)))

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	simulator := feed.NewSimulator(feed.SimulatorConfig{
		Count:            cfg.Simulation.Count,
		SpreadDegrees:    cfg.Simulation.SpreadDegrees,
		MinSpeed:         cfg.Simulation.MinSpeed,
		MaxSpeed:         cfg.Simulation.MaxSpeed,
		CallsignPrefixes: cfg.Simulation.CallsignPrefixes,
		Origins:          cfg.Simulation.Origins,
		Destinations:     cfg.Simulation.Destinations,
		AirlineName:      cfg.Simulation.AirlineName,
	}, rand.New(rand.NewSource(seed)))

	client := feed.NewClient(
		cfg.Feed.SourceURL,
		time.Duration(cfg.Feed.RequestTimeoutSecs)*time.Second,
		cfg.Feed.RequestsPerMinute,
		log,
	)

	pipeline := feed.NewPipeline(client, simulator, directory, feed.PipelineConfig{
		ProximityFilter: cfg.Feed.ProximityEnabled(),
		RadiusKm:        cfg.Feed.RadiusKm,
		MaxFlights:      cfg.Feed.MaxFlights,
		RetainThreshold: cfg.Simulation.RetainThreshold,
	}, log)

	feedService := feed.NewService(
		pipeline,
		time.Duration(cfg.Feed.FetchIntervalSecs)*time.Second,
		geo.Coordinate{Latitude: cfg.Station.Latitude, Longitude: cfg.Station.Longitude},
		log,
	)

	// WebSocket hub; the feed handler is the only consumer of the update channel
	wsServer := websocket.NewServer(log, cfg.Server.CORSAllowedOrigins)
	go wsServer.Run(ctx)

	wsHandler := feed.NewWebSocketHandler(feedService, log)
	wsServer.SetMessageHandler(wsHandler)
	go wsHandler.Run(ctx, wsServer)

	if err := feedService.Start(ctx); err != nil {
		log.Error("Failed to start feed service", logger.Error(err))
		os.Exit(1)
	}

	router := api.NewRouter(feedService, authService, directory, cfg, log, wsServer)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Shutting down server...", logger.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("HTTP server error", logger.Error(err))
	}

	log.Info("Stopping feed service...")
	feedService.Stop()

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}
