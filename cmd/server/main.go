package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"contest-portal/internal/contest"
	"contest-portal/internal/notify"
	"contest-portal/internal/platform/config"
	"contest-portal/internal/platform/logger"
	"contest-portal/internal/platform/metrics"
	"contest-portal/internal/upload"
	"contest-portal/internal/web"

	"github.com/go-chi/chi/v5"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	repo, err := contest.OpenSQL(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Error("database unavailable", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	objects, err := contest.NewDiskObjectStore(cfg.UploadDir, strings.TrimSuffix(cfg.PublicBaseURL, "/")+"/videos")
	if err != nil {
		log.Error("upload directory unavailable", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}

	met := metrics.New()
	opts := []contest.Option{
		contest.WithMetrics(met),
		contest.WithMaxTeamSize(cfg.MaxTeamSize),
	}

	var relays notify.Multi
	if cfg.WebhookURL != "" {
		relays = append(relays, notify.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookTimeout, log))
	}
	if cfg.RedisAddr != "" {
		client, err := notify.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			log.Error("redis unavailable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer client.Close()
		relays = append(relays, notify.NewRedisNotifier(client, cfg.RedisChannel))
	}
	if len(relays) > 0 {
		opts = append(opts, contest.WithNotifier(relays))
	}

	svc := contest.NewService(repo, objects, log, opts...)

	var rulesSrc []byte
	if cfg.RulesFile != "" {
		rulesSrc, err = os.ReadFile(cfg.RulesFile)
		if err != nil {
			log.Error("rules file unreadable", "path", cfg.RulesFile, "error", err)
			os.Exit(1)
		}
	}
	rules, err := web.RenderRules(rulesSrc)
	if err != nil {
		log.Error("rules render failed", "error", err)
		os.Exit(1)
	}
	render, err := web.NewRenderer()
	if err != nil {
		log.Error("templates failed to parse", "error", err)
		os.Exit(1)
	}

	h := web.NewHandler(svc, upload.NewTracker(upload.DefaultAttemptTTL), render, log, met, web.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		PollInterval:   cfg.PollInterval,
		Rules:          rules,
		VideoDir:       objects.Dir(),
	})

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			if n, err := svc.CountSubmissions(r.Context()); err == nil {
				met.SetSubmissions(n)
			}
		}).ServeHTTP(w, r)
	})
	h.Register(r)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: readHeaderTimeout}
	srv.RegisterOnShutdown(h.CloseStreams)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"db_driver", cfg.DBDriver,
		"upload_dir", cfg.UploadDir,
		"max_team_size", cfg.MaxTeamSize,
		"max_upload_bytes", cfg.MaxUploadBytes,
		"relays", len(relays),
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	svc.Wait()

	log.Info("server stopped")
}
