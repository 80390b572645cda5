package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/ardanlabs/powpool/foundation/blockchain/coordinator"
	"github.com/ardanlabs/powpool/foundation/blockchain/worker"
	"github.com/ardanlabs/powpool/foundation/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	launchDifficulty uint
	launchWorkers    int
	launchBlocks     uint64
	launchHost       string
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Run a coordinator and a set of workers in process until enough blocks are mined",
	RunE:  launchRun,
}

func init() {
	rootCmd.AddCommand(launchCmd)
	launchCmd.Flags().UintVarP(&launchDifficulty, "difficulty", "d", 20, "Number of leading zero bits required.")
	launchCmd.Flags().IntVarP(&launchWorkers, "workers", "w", 4, "Number of workers to start.")
	launchCmd.Flags().Uint64VarP(&launchBlocks, "blocks", "b", 5, "Number of blocks to mine, zero runs until interrupted.")
	launchCmd.Flags().StringVar(&launchHost, "host", "127.0.0.1:0", "Address the coordinator listens on.")
}

func launchRun(cmd *cobra.Command, args []string) error {
	log, err := logger.New("POWCTL")
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return launch(ctx, log, launchDifficulty, launchWorkers, launchBlocks, launchHost)
}

// launch starts the coordinator and the workers and waits until the chain
// reaches the requested height or the context is cancelled.
func launch(ctx context.Context, log *zap.SugaredLogger, difficulty uint, workers int, blocks uint64, host string) error {
	if workers <= 0 {
		return errors.New("at least one worker is required")
	}

	coord, err := coordinator.New(coordinator.Config{
		Difficulty: difficulty,
		EvHandler: func(v string, args ...any) {
			log.Infow(fmt.Sprintf(v, args...), "node", "coordinator")
		},
	})
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", host)
	if err != nil {
		return fmt.Errorf("listening for workers: %w", err)
	}
	addr := listener.Addr().String()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go coord.Serve(ctx, listener)
	defer coord.Shutdown()

	log.Infow("launch", "status", "coordinator started", "host", addr, "difficulty", difficulty, "workers", workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 1; i <= workers; i++ {
		nodeID := strconv.Itoa(i)

		go func() {
			defer wg.Done()

			cfg := worker.Config{
				NodeID:          nodeID,
				CoordinatorAddr: addr,
				EvHandler: func(v string, args ...any) {
					log.Infow(fmt.Sprintf(v, args...), "node", nodeID)
				},
			}

			if err := worker.Run(ctx, cfg); err != nil {
				log.Errorw("launch", "node", nodeID, "ERROR", err)
			}
		}()
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

wait:
	for blocks == 0 || coord.Status().Height < blocks {
		select {
		case <-ctx.Done():
			break wait
		case <-ticker.C:
		}
	}

	cancel()
	wg.Wait()

	for _, ab := range coord.RecentBlocks() {
		log.Infow("launch", "block", ab.Block.Number, "hash", ab.Block.BlockHash, "winner", ab.WinningNode, "attempts", ab.Attempts, "elapsed", ab.Elapsed)
	}

	st := coord.Status()
	log.Infow("launch", "status", "complete", "height", st.Height, "head", st.PreviousHash)

	return nil
}
