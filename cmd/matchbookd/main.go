package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/quantafi/matchbook/params"
	"github.com/quantafi/matchbook/pkg/api"
	"github.com/quantafi/matchbook/pkg/engine"
	"github.com/quantafi/matchbook/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Log.File != "" {
		logger, err = util.NewLoggerWithFile(cfg.Log.File, cfg.Log.Debug)
	} else {
		logger, err = util.NewLogger(cfg.Log.Debug)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Infow("matchbook_starting",
		"markets", cfg.Engine.Markets,
		"lazy_books", cfg.Engine.LazyBooks,
		"api_addr", cfg.API.Addr)

	eng := engine.New(engine.Config{
		Symbols:          cfg.Engine.Markets,
		LazyBooks:        cfg.Engine.LazyBooks,
		SubscriberBuffer: cfg.Engine.SubscriberBuffer,
		TradeHistory:     cfg.Engine.TradeHistory,
	}, util.RealClock{}, sugar)
	defer eng.Close()

	server := api.NewServer(eng, cfg.API.AllowedOrigins, cfg.API.SnapshotDepth, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := server.Start(cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")
}
