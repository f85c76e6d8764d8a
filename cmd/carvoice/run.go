package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nadzzz/carvoice/internal/config"
	"github.com/nadzzz/carvoice/internal/dispatch"
	"github.com/nadzzz/carvoice/internal/health"
	"github.com/nadzzz/carvoice/internal/message"
	"github.com/nadzzz/carvoice/internal/room"
	"github.com/nadzzz/carvoice/internal/tools/websearch"
	"github.com/nadzzz/carvoice/internal/transport"
	grpctransport "github.com/nadzzz/carvoice/internal/transport/grpc"
	httptransport "github.com/nadzzz/carvoice/internal/transport/http"
	natstransport "github.com/nadzzz/carvoice/internal/transport/nats"
)

func run(configFile string) {
	// Load configuration.
	cfg, err := config.Load(configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("carvoice starting", "version", version, "agent", cfg.Agent.Name)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	issuer, err := room.NewIssuer(cfg.RoomCredentials())
	if err != nil {
		slog.Error("room credentials unavailable", "error", err)
		os.Exit(1)
	}

	if cfg.Search.APIKey == "" {
		slog.Warn("search api key not set, web search will answer that it is not configured")
	}
	if cfg.TTS.CartesiaAPIKey == "" && cfg.TTS.ElevenLabsAPIKey == "" {
		slog.Warn("no direct synthesis credentials, all voices route through the inference gateway")
	}

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	nc, err := natstransport.Connect(cfg.Transports.NATS.URL, natstransport.ConnectOptions{
		Name:          cfg.Agent.Name,
		MaxReconnect:  cfg.Transports.NATS.MaxReconnect,
		ReconnectWait: cfg.Transports.NATS.ReconnectWait,
	})
	if err != nil {
		slog.Error("failed to reach media worker bus", "error", err)
		os.Exit(1)
	}
	defer nc.Drain()

	bridge := natstransport.New(nc, natstransport.Options{
		SubjectPrefix: cfg.Transports.NATS.SubjectPrefix,
		JobSubject:    cfg.Transports.NATS.JobSubject,
		StartTimeout:  cfg.Transports.NATS.StartTimeout,
	})

	dispatcher := dispatch.New(dispatch.Options{
		Factory:   dispatch.NewFactory(cfg.VoiceCredentials()),
		Issuer:    issuer,
		Connector: bridge,
		AgentName: cfg.Agent.Name,
		Search: websearch.Options{
			APIKey:  cfg.Search.APIKey,
			BaseURL: cfg.Search.BaseURL,
			Model:   cfg.Search.Model,
			Timeout: cfg.Search.Timeout,
		},
		TranscriptURL:     cfg.Transcript.BackendURL,
		TranscriptTimeout: cfg.Transcript.Timeout,
	})

	handler := func(ctx context.Context, job message.Job) (*message.StartResult, error) {
		s, err := dispatcher.Start(ctx, job)
		if err != nil {
			return nil, err
		}
		return s.Result(), nil
	}

	// Initialize enabled intake transports.
	var transports []transport.Transport
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP.Port))
	}
	if cfg.Transports.NATS.JobSubject != "" {
		transports = append(transports, bridge)
	}
	if len(transports) == 0 {
		slog.Warn("no job intake enabled, the daemon will not start any sessions")
	}

	// Start health check servers.
	healthServer := health.New(cfg.Server.HealthPort, dispatcher.Active)
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	var grpcHealth *grpctransport.Transport
	if cfg.Transports.GRPC.Enabled {
		grpcHealth = grpctransport.New(cfg.Transports.GRPC.Port)
		go func() {
			if err := grpcHealth.Listen(ctx); err != nil {
				slog.Error("grpc transport failed", "error", err)
			}
		}()
	}

	// Start all transports.
	var wg sync.WaitGroup
	for _, t := range transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, handler); err != nil {
				slog.Error("transport failed", "name", t.Name(), "error", err)
			}
		}(t)
	}

	// Mark as ready once all transports are started.
	healthServer.SetReady(true)
	if grpcHealth != nil {
		grpcHealth.SetServing(true)
	}
	slog.Info("carvoice ready",
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort)

	// Block until shutdown signal.
	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)

	// Close all transports gracefully.
	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	wg.Wait()
	slog.Info("carvoice stopped", "active_sessions", dispatcher.Active())
}
