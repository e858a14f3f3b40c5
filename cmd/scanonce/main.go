// cmd/scanonce runs a single scan cycle against live Binance market data and
// prints what fired. Signals go to the log instead of Telegram and nothing is
// persisted.
//
// Usage:
//
//	go run ./cmd/scanonce --top=20 --interval=15m
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading-signals/config"
	"trading-signals/internal/app"
	"trading-signals/internal/logger"
	"trading-signals/internal/model"
)

func main() {
	top := flag.Int("top", 20, "Number of symbols to scan, most liquid first")
	interval := flag.String("interval", "", "Kline interval (default: SCAN_INTERVAL)")
	confirm := flag.String("confirm", "", "Optional higher timeframe that must agree, e.g. 1h")
	window := flag.Int("window", 0, "Bars per symbol (default: WINDOW_SIZE)")
	level := flag.String("log", "warn", "Log level")
	flag.Parse()

	log := logger.Init("scanonce", *level)

	// Only the log notifier and the memory store are used, so no credentials
	// are required.
	os.Setenv("NOTIFIER", config.NotifierLog)
	os.Setenv("STORE", config.StoreMemory)
	os.Setenv("BINANCE_STREAM_URL", "")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	cfg.TopN = *top
	if *interval != "" {
		cfg.ScanInterval = *interval
	}
	if *confirm != "" {
		cfg.ConfirmInterval = *confirm
	}
	if *window > 0 {
		cfg.WindowSize = *window
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid flags")
	}

	svc, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init failed")
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep, err := svc.Engine().RunCycle(ctx)
	if err != nil {
		log.Error().Err(err).Msg("cycle finished with errors")
	}

	fmt.Printf("scanned %d symbols on %s in %s (%d failed)\n",
		rep.Symbols, cfg.ScanInterval, rep.Duration.Round(time.Millisecond), rep.Failed)
	if len(rep.Signals) == 0 {
		fmt.Println("no signals")
		return
	}
	fmt.Printf("%d signal(s):\n", len(rep.Signals))
	for _, sig := range rep.Signals {
		fmt.Printf("  %-12s %-18s %-5s entry=%s sl=%s tp=%s\n",
			sig.Symbol, sig.Strategy, sig.Side,
			model.FormatPrice(sig.Entry), model.FormatPrice(sig.StopLoss), model.FormatPrice(sig.TakeProfit))
	}
}
