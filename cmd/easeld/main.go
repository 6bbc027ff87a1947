package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"easel/internal/config"
	"easel/internal/daemon"
	"easel/internal/imagestore"
	"easel/internal/logging"
	"easel/internal/pipeline"
	"easel/internal/queue"
	"easel/internal/references"
	"easel/internal/services/gemini"
	"easel/internal/tags"
	"easel/internal/worker"
)

func main() {
	configFlag := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := *configFlag
	if configPath == "" {
		configPath = os.Getenv("EASEL_CONFIG")
	}
	cfg, resolvedPath, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfigValues(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	logger.Info("easeld starting", logging.String("config", resolvedPath))

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	images, err := imagestore.New(cfg.Paths.ImagesDir)
	if err != nil {
		logger.Error("open image store", logging.Error(err))
		os.Exit(1)
	}
	refs := references.NewStore(store.DB(), images)

	generator, err := gemini.New(ctx, cfg.Gemini, logger)
	if err != nil {
		logger.Error("create generator", logging.Error(err))
		os.Exit(1)
	}

	pipe := pipeline.New(store, generator, refs, images, tags.NewDeriver(store.DB()), cfg, logger)
	w := worker.New(store, pipe, cfg, logger)

	d, err := daemon.New(cfg, store, refs, w, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Stop()

	<-ctx.Done()
	logger.Info("easeld shutting down")
}
