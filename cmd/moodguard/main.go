package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moodguard/internal/ai"
	"moodguard/internal/analytics"
	"moodguard/internal/apperr"
	"moodguard/internal/bot"
	"moodguard/internal/chatlog"
	"moodguard/internal/config"
	"moodguard/internal/cooldown"
	"moodguard/internal/cover"
	"moodguard/internal/economy"
	"moodguard/internal/modules/audit"
	"moodguard/internal/modules/roblox"
	"moodguard/internal/playbook"
	"moodguard/internal/storage"
	"moodguard/internal/telemetry"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := config.BuildLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("moodguard stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(cfg config.Config, logger *zap.Logger) error {
	telemetry.Init()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	logger.Info("storage ready", zap.String("dialect", string(store.Dialect())))

	var ledger cooldown.Ledger = cooldown.NewMemory()
	if cfg.Redis.Addr != "" {
		client, err := cooldown.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		shared := cooldown.NewRedis(client)
		defer shared.Close()
		ledger = shared
		logger.Info("cooldowns shared through redis", zap.String("addr", cfg.Redis.Addr))
	}

	auditLogger := audit.NewLogger(store, logger)
	playbookEngine := playbook.New(playbook.Config{LockdownMinutes: cfg.Security.LockdownMinutes}, auditLogger)
	economyEngine := economy.NewEngine(store, ledger, cfg.Economy, cfg.Cooldowns, logger)

	memory := chatlog.New(store, cfg.Memory, cfg.MoodAdminID, logger)
	if err := memory.Load(context.Background()); err != nil {
		if !apperr.Is(err, apperr.StateCorruption) {
			return fmt.Errorf("chat memory: %w", err)
		}
		logger.Warn("chat memory unreadable, starting fresh", zap.Error(err))
	}

	botSvc, err := bot.New(cfg, logger, bot.Deps{
		Store:     store,
		Ledger:    ledger,
		Audit:     auditLogger,
		Playbook:  playbookEngine,
		Analytics: analytics.New(store),
		Economy:   economyEngine,
		ChatLog:   memory,
		Generator: ai.NewClient(cfg.AI),
		Extractor: cover.YTDLP{Path: cfg.Cover.YTDLPPath},
		Converter: cover.NewHTTPConverter(cfg.Cover),
		Roblox:    roblox.NewClient(cfg.Roblox),
	})
	if err != nil {
		return fmt.Errorf("bot init: %w", err)
	}

	if err := botSvc.Start(); err != nil {
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		botSvc.Close(shutdown)
		return fmt.Errorf("bot start: %w", err)
	}
	logger.Info("bot started")

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.Handle("/metrics", telemetry.Handler())
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
	return nil
}
