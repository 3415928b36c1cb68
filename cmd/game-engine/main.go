package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appcfg "github.com/EoCiMrEo/TikTacToeArena/internal/config"
	"github.com/EoCiMrEo/TikTacToeArena/internal/engine"
	"github.com/EoCiMrEo/TikTacToeArena/internal/httpapi"
	"github.com/EoCiMrEo/TikTacToeArena/internal/notify"
	"github.com/EoCiMrEo/TikTacToeArena/internal/obslog"
	"github.com/EoCiMrEo/TikTacToeArena/internal/presence"
	"github.com/EoCiMrEo/TikTacToeArena/internal/records"
	"github.com/EoCiMrEo/TikTacToeArena/internal/store"
	"github.com/EoCiMrEo/TikTacToeArena/internal/supervisor"
	"github.com/EoCiMrEo/TikTacToeArena/internal/tiers"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(obslog.Options{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		ToConsole: cfg.Log.ToConsole,
		ToFile:    cfg.Log.ToFile,
		File:      cfg.Log.File,
		Caller:    cfg.Log.Caller,
	}); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Session store
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	st, err := store.Open(initCtx, cfg.Redis.URL, store.Options{TTL: cfg.Game.TTL, OpTimeout: cfg.Redis.OpTimeout})
	if err != nil {
		cancel()
		logger.Fatal("store_init_error", zap.Error(err))
	}

	// Presence and notifications share the event bus connection.
	busOpts, err := store.ParseRedisURL(cfg.Redis.EventBusURL)
	if err != nil {
		cancel()
		logger.Fatal("event_bus_config_error", zap.Error(err))
	}
	bus := redis.NewClient(busOpts)

	repo, err := records.Open(initCtx, cfg.Database.URL)
	cancel()
	if err != nil {
		logger.Fatal("records_init_error", zap.Error(err))
	}

	catalog, err := tiers.New(cfg.Game.TiersDir, cfg.Game.DefaultSpeed)
	if err != nil {
		logger.Fatal("tiers_init_error", zap.Error(err))
	}

	eng := engine.New(st, catalog)
	eng.AttachRepository(repo)
	eng.AttachSink(notify.NewRedisPublisher(bus, cfg.Redis.NotifyChannel))

	if cfg.Supervisor.Enabled {
		sup := supervisor.New(st, eng, presence.NewRedisSet(bus, cfg.Redis.PresenceSet), supervisor.Config{
			Interval:   cfg.Supervisor.Interval,
			StallAfter: cfg.Supervisor.StallAfter,
		})
		go sup.Run(ctx)
	}

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           httpapi.NewRouter(eng),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http_listen", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_serve_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown_start")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_error", zap.Error(err))
	}
	_ = repo.Close()
	_ = bus.Close()
	_ = st.Close()
	logger.Info("shutdown_done")
}
