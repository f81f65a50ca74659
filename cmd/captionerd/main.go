package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"memedex/internal/config"
	"memedex/internal/logging"
	"memedex/internal/workerd"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, closeLogs, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		LogFile: filepath.Join(cfg.Paths.LogDir, "captionerd.log"),
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer closeLogs() //nolint:errcheck

	queue, err := workerd.OpenQueue(filepath.Join(cfg.Paths.DataDir, "jobs.db"))
	if err != nil {
		logger.Error("open job queue", logging.Error(err))
		return
	}
	defer queue.Close()

	captioner, err := workerd.NewExecCaptioner(cfg.Worker.CaptionCommand)
	if err != nil {
		logger.Error("configure captioner", logging.Error(err))
		return
	}

	notifier := workerd.NewNotifier(cfg.Worker.CallbackURL, cfg.WorkerRequestTimeout(), logger)
	worker := workerd.NewWorker(cfg, queue, notifier, captioner, logger)
	server := workerd.NewServer(cfg, queue, worker, logger)

	if err := worker.Start(ctx); err != nil {
		logger.Error("start worker", logging.Error(err))
		return
	}
	if err := server.Start(); err != nil {
		worker.Stop()
		logger.Error("start job API", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("captionerd shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	worker.Stop()
}
