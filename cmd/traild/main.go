package main

import (
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"trailchain/config"
	"trailchain/core/state"
	"trailchain/native/trail"
	"trailchain/observability/logging"
	"trailchain/rpc"
	"trailchain/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("TRAIL_ENV"))
	logger := logging.Setup("traild", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.Environment != "" && env == "" {
		logger = logging.Setup("traild", cfg.Environment)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err), slog.String("dataDir", cfg.DataDir))
		os.Exit(1)
	}
	defer db.Close()

	manager, err := state.NewManager(db)
	if err != nil {
		logger.Error("failed to open state", slog.Any("error", err))
		os.Exit(1)
	}

	minimumFee, err := cfg.MinimumFeeAmount()
	if err != nil {
		logger.Error("invalid minimum fee", slog.Any("error", err))
		os.Exit(1)
	}
	if err := manager.EnsureParams(&trail.Params{
		Owner:      cfg.Owner,
		Treasury:   cfg.Treasury,
		FeePercent: cfg.FeePercent,
		MinimumFee: minimumFee,
	}); err != nil {
		logger.Error("failed to seed ledger params", slog.Any("error", err))
		os.Exit(1)
	}
	manager.CollapseJournal()

	engine := trail.NewEngine()
	engine.SetState(manager)
	bytePrice, err := cfg.BytePriceAmount()
	if err != nil {
		logger.Error("invalid storage byte price", slog.Any("error", err))
		os.Exit(1)
	}
	if bytePrice != nil {
		engine.SetBytePrice(bytePrice)
	}

	server := rpc.NewServer(engine, manager, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.ListenAddress)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
