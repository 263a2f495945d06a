package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/ideal-pong/internal/ai"
	"github.com/mauv0809/ideal-pong/internal/bracket"
	"github.com/mauv0809/ideal-pong/internal/config"
	"github.com/mauv0809/ideal-pong/internal/database"
	"github.com/mauv0809/ideal-pong/internal/game"
	server "github.com/mauv0809/ideal-pong/internal/http"
	"github.com/mauv0809/ideal-pong/internal/matchmaking"
	"github.com/mauv0809/ideal-pong/internal/metrics"
	"github.com/mauv0809/ideal-pong/internal/notifier/slack"
	"github.com/mauv0809/ideal-pong/internal/players"
	"github.com/mauv0809/ideal-pong/internal/pubsub"
	"github.com/mauv0809/ideal-pong/internal/scheduler"
	"github.com/mauv0809/ideal-pong/internal/session"
	"github.com/mauv0809/ideal-pong/internal/tournament"
	"github.com/mauv0809/ideal-pong/internal/ws"
)

const (
	maxConnsPerIP   = 4
	msgRatePerIP    = 120
	leaderboardHour = 17
)

func main() {
	// Start profiling timer
	startTime := time.Now()
	log.SetFormatter(log.JSONFormatter)
	cfg := config.Load()
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	db, dbTeardown, err := database.InitDB(cfg.DBName, cfg.Turso.PrimaryURL, cfg.Turso.AuthToken)
	dbInitDuration := time.Since(startTime)
	log.Info("Database initialization time recorded", "duration_ms", dbInitDuration.Milliseconds())
	if err != nil {
		log.Fatalf("Failed to initialize database: %s", err)
	}
	defer func() {
		log.Info("Closing database connection")
		dbTeardown()
	}()

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	dryRun := !cfg.Slack.Enabled()
	if dryRun {
		log.Warn("Slack is not configured, notifications will only be logged")
	}

	metricsSvc := metrics.NewService()
	metricsHandler := metrics.NewMetricsHandler()
	lifetime := metrics.New(db)
	playerStore := players.New(db)
	notifier := slack.NewNotifier(cfg.Slack.Token, cfg.Slack.ChannelID, metricsSvc)
	pubsubClient, err := pubsub.New(cfg.ProjectID)
	if err != nil {
		log.Fatalf("Failed to initialize pubsub: %s", err)
	}
	defer pubsubClient.Close()

	limiter := ws.NewIPRateLimiter(nil, maxConnsPerIP, msgRatePerIP, time.Second)
	go limiter.Run(rootCtx)
	hub := ws.NewHub(limiter, cfg.AllowedOrigins, nil)

	engine := bracket.NewEngine(bracket.NewStore(db), bracket.NewRegistry(), hub, metricsSvc)
	sessions := session.NewManager(hub, metricsSvc, nil)

	baseConfig := game.DefaultConfig()
	baseConfig.ScoreGoal = cfg.ScoreGoal
	difficulty := ai.ParseDifficulty(cfg.AIDifficulty)

	tournaments := tournament.New(engine, sessions, playerStore, notifier, pubsubClient, lifetime, tournament.Options{
		BaseConfig:   baseConfig,
		AIDifficulty: difficulty,
		DryRun:       dryRun,
	})
	queue := matchmaking.New(sessions, playerStore, hub, pubsubClient, lifetime, matchmaking.Options{
		Config: baseConfig,
	})
	hub.Bind(sessions, queue)

	// Pick up brackets left mid-flight by the previous process.
	if _, err := tournaments.CheckStalled(rootCtx); err != nil {
		log.Error("Startup bracket check failed", "error", err)
	}

	sched, err := scheduler.New(tournaments, engine, playerStore, notifier, scheduler.Options{
		HealthCheckInterval: cfg.HealthCheckInterval,
		Retention:           cfg.TournamentRetention,
		LeaderboardHour:     leaderboardHour,
		DryRun:              dryRun,
	})
	if err != nil {
		log.Fatalf("Failed to initialize scheduler: %s", err)
	}
	sched.Start()

	s := server.NewServer(
		engine,
		tournaments,
		sessions,
		queue,
		playerStore,
		hub,
		notifier,
		lifetime,
		metricsHandler,
		cfg,
		pubsubClient,
	)

	// --- Record startup time ---
	startupDuration := time.Since(startTime)
	metricsSvc.SetStartupTime(startupDuration.Seconds())
	log.Info("Startup time recorded", "duration_ms", startupDuration.Milliseconds())

	// --- Graceful shutdown setup ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		log.Info("Server started", "port", cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Server shutdown failed", "error", err)
		} else {
			log.Info("Server gracefully stopped")
		}
		if err := sched.Shutdown(); err != nil {
			log.Error("Scheduler shutdown failed", "error", err)
		}
		if err := sessions.Shutdown(ctx); err != nil {
			log.Error("Sessions did not stop in time", "error", err)
		}
	}

	log.Info("Server process shutting down")
}
