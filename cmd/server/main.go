package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fractalvote/deliberation/internal/application/assigner"
	"github.com/fractalvote/deliberation/internal/application/cellprocessor"
	"github.com/fractalvote/deliberation/internal/application/engine"
	"github.com/fractalvote/deliberation/internal/application/phase"
	"github.com/fractalvote/deliberation/internal/application/scheduler"
	"github.com/fractalvote/deliberation/internal/application/tiercontroller"
	"github.com/fractalvote/deliberation/internal/domain"
	"github.com/fractalvote/deliberation/internal/infrastructure/api/rest"
	"github.com/fractalvote/deliberation/internal/infrastructure/config"
	"github.com/fractalvote/deliberation/internal/infrastructure/logging"
	"github.com/fractalvote/deliberation/internal/infrastructure/notify"
	"github.com/fractalvote/deliberation/internal/infrastructure/storage"
	"github.com/fractalvote/deliberation/internal/infrastructure/websocket"
)

func main() {
	var (
		port       = flag.String("port", "", "HTTP port (overrides config)")
		workerID   = flag.Uint("worker-id", 1, "worker identity tag held by the cell assigner; cell assignment does not depend on it")
		jwtSecret  = flag.String("jwt-secret", "", "HMAC secret for WebSocket JWT auth; empty allows unauthenticated connections")
		prettyLogs = flag.Bool("pretty-logs", false, "human-readable console logs instead of JSON")
	)
	flag.Parse()

	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}

	logging.Init(cfg.LogLevel, *prettyLogs)
	log.Info().Str("port", cfg.Port).Msg("starting deliberation engine")

	var store domain.Store
	if cfg.DatabaseDSN != "" {
		bunStore, err := storage.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open postgres store")
		}
		store = bunStore
		log.Info().Msg("using BunStore (PostgreSQL)")
	} else {
		store = storage.NewMemoryStore()
		log.Info().Msg("using MemoryStore (no DATABASE_DSN set)")
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("store not reachable")
	}

	a := assigner.New(store, uint16(*workerID))
	processor := cellprocessor.New(store)
	tiers := tiercontroller.New(store, a)
	phaseMachine := phase.New(store, a)

	hub := websocket.NewHub()
	go hub.Run()

	multiNotifier := notify.NewMultiNotifier(
		notify.NewLoggerNotifier(nil),
		websocket.NewSocketNotifier(hub),
	)

	eng := engine.New(store, a, cfg.UpPollinationThresholdRatio, multiNotifier)
	sched := scheduler.New(store, processor, tiers, phaseMachine, multiNotifier, cfg.SchedulerInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	var auth websocket.Authenticator
	if *jwtSecret != "" {
		auth = websocket.NewJWTAuth(*jwtSecret)
	} else {
		auth = websocket.NewNoAuth()
	}
	wsHandler := websocket.NewHandler(hub, auth)

	mux := http.NewServeMux()
	mux.Handle("/", rest.NewServer(eng, log.Logger))
	mux.Handle("/ws", wsHandler)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}
	log.Info().Msg("server exited gracefully")
}
