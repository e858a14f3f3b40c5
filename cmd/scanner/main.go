package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"trading-signals/config"
	"trading-signals/internal/app"
	"trading-signals/internal/logger"
)

func main() {
	cfg, err := config.Load()
	log := logger.Init("scanner", levelOf(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	svc, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("stopping")
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func levelOf(cfg *config.Config) string {
	if cfg == nil {
		return os.Getenv("LOG_LEVEL")
	}
	return cfg.LogLevel
}
