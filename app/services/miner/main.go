package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/powpool/foundation/blockchain/worker"
	"github.com/ardanlabs/powpool/foundation/logger"
	"github.com/ardanlabs/powpool/foundation/web"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("MINER")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Miner struct {
			NodeID          string        `conf:"default:1"`
			CoordinatorHost string        `conf:"default:localhost:5000"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			PollInterval    uint64        `conf:"default:10000"`
			DebugHost       string        `conf:"default:0.0.0.0:7180"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "proof of work mining pool worker",
		},
	}

	const prefix = "MINER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build, "node", cfg.Miner.NodeID)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Start Debug Service

	go func() {
		mux := web.DebugStandardLibraryMux()

		log.Infow("startup", "status", "debug router started", "host", cfg.Miner.DebugHost)
		if err := http.ListenAndServe(cfg.Miner.DebugHost, mux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Miner.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Worker Support

	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...), "node", cfg.Miner.NodeID)
	}

	// Cancel the worker on an interrupt or terminate signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = worker.Run(ctx, worker.Config{
		NodeID:          cfg.Miner.NodeID,
		CoordinatorAddr: cfg.Miner.CoordinatorHost,
		WriteTimeout:    cfg.Miner.WriteTimeout,
		PollInterval:    cfg.Miner.PollInterval,
		EvHandler:       ev,
	})
	if err != nil {
		return err
	}

	log.Infow("shutdown", "status", "shutdown started")
	return nil
}
