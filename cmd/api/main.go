package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"callprep-platform/internal/calls"
	"callprep-platform/internal/config"
	"callprep-platform/internal/httpapi"
	"callprep-platform/internal/jobs"
	"callprep-platform/internal/reporting"
	"callprep-platform/internal/review"
	"callprep-platform/pkg/logger"
	"callprep-platform/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local development convenience; absent .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	queueClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr()})
	defer queueClient.Close()

	repo := calls.NewPostgresRepo(db)
	runner := jobs.NewRunner(queueClient, jobs.Options{
		HardTimeout:    cfg.Worker.HardTimeout,
		SoftTimeout:    cfg.Worker.SoftTimeout,
		MaxRetry:       cfg.Worker.MaxRetry,
		MaxActiveCalls: cfg.Worker.MaxActiveCalls,
	}, log)

	h := httpapi.Handlers{
		Repo:      repo,
		Review:    review.NewService(repo, review.NewPostgresRepo(db), log),
		Reports:   reporting.NewService(reporting.NewPostgresRepo(db)),
		Jobs:      runner,
		UploadDir: cfg.UploadDir(),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, h)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Upload and chunk download bodies can be large.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
