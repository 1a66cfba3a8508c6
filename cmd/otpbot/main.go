package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/m3rciful/otpbot/internal/app"
	"github.com/m3rciful/otpbot/internal/config"
	"github.com/m3rciful/otpbot/internal/logger"
)

const defaultConfigPath = "config.yaml"

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		KeysOrder:   cfg.Logging.KeysOrder,
		DebugSample: cfg.Logging.DebugSample,
		Dir:         cfg.Logging.Dir,
		File:        cfg.Logging.BotFile,
		Profile:     cfg.Logging.Profile,
	}); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	application, err := app.New(cfg)
	if err != nil {
		logger.L.Error("bootstrap failed", "err", err.Error())
		_ = logger.Shutdown()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.L.Error("bot stopped", "err", err.Error())
		_ = logger.Shutdown()
		os.Exit(1)
	}
}
