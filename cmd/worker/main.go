package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"callprep-platform/internal/audio"
	"callprep-platform/internal/calls"
	"callprep-platform/internal/config"
	"callprep-platform/internal/jobs"
	"callprep-platform/internal/pipeline"
	"callprep-platform/internal/transcribe"
	"callprep-platform/pkg/logger"
	"callprep-platform/pkg/utils"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	repo := calls.NewPostgresRepo(db)
	norm := audio.NewNormalizer(cfg.Audio.SampleRate)
	seg := audio.NewSegmenter(log)
	stt := transcribe.NewWhisperClient(cfg.Transcriber.URL, cfg.Transcriber.RequestTimeout)

	pipe := pipeline.New(repo, norm, seg, stt, pipeline.Config{
		ProcessedDir:    cfg.ProcessedDir(),
		ChunksDir:       cfg.ChunksDir(),
		DefaultLanguage: cfg.Transcriber.DefaultLanguage,
		Split: audio.SplitParams{
			MaxChunk:      time.Duration(cfg.Audio.MaxChunkSeconds) * time.Second,
			SearchWindow:  time.Duration(cfg.Audio.SearchWindowSeconds) * time.Second,
			MinSilence:    time.Duration(cfg.Audio.MinSilenceMs) * time.Millisecond,
			ThresholdDBFS: cfg.Audio.SilenceThresholdDB,
			MinChunk:      time.Duration(cfg.Audio.MinChunkSeconds) * time.Second,
		},
	}, log)

	opts := jobs.Options{
		HardTimeout:    cfg.Worker.HardTimeout,
		SoftTimeout:    cfg.Worker.SoftTimeout,
		MaxRetry:       cfg.Worker.MaxRetry,
		MaxActiveCalls: cfg.Worker.MaxActiveCalls,
	}
	handler := jobs.NewHandler(pipe, rdb, opts, log)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr()},
		asynq.Config{
			Concurrency:     cfg.Worker.Concurrency,
			Queues:          map[string]int{jobs.QueueCalls: 1},
			ShutdownTimeout: 30 * time.Second,
		},
	)

	mux := asynq.NewServeMux()
	handler.Register(mux)

	if err := srv.Start(mux); err != nil {
		log.Error("worker start failed", "err", err)
		os.Exit(1)
	}
	log.Info("worker running", "concurrency", cfg.Worker.Concurrency, "env", cfg.App.Env)

	<-rootCtx.Done()
	log.Info("shutdown initiated")
	srv.Shutdown()
}
