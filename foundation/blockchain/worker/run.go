package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ardanlabs/powpool/foundation/blockchain/protocol"
)

// Run connects to the coordinator, registers and mines the tasks it is
// handed until the connection drops or the context is cancelled. A failure
// to connect is returned immediately, there is no retry.
func Run(ctx context.Context, cfg Config) error {
	conn, err := protocol.Dial(ctx, cfg.CoordinatorAddr, writeTimeout(cfg))
	if err != nil {
		return fmt.Errorf("connecting to coordinator: %w", err)
	}
	defer conn.Close()

	w := New(cfg, conn)
	defer w.Shutdown()

	if err := conn.Send(protocol.Register{NodeID: cfg.NodeID}); err != nil {
		return fmt.Errorf("registering node %s: %w", cfg.NodeID, err)
	}
	w.evHandler("worker: Run: node[%s]: registered with %s", cfg.NodeID, cfg.CoordinatorAddr)

	// Close the connection when the context is cancelled so Receive returns.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		msg, err := conn.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("coordinator connection lost: %w", err)
		}

		w.HandleMessage(msg)
	}
}

// HandleMessage applies a message from the coordinator to the worker.
func (w *Worker) HandleMessage(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.NewTask:
		w.evHandler("worker: HandleMessage: NEW_TASK: blk[%d]: prev[%s]: txs[%d]", m.Task.Number, m.Task.PreviousHash, len(m.Task.Transactions))
		w.SignalStartMining(m.Task)

	case protocol.BlockAccepted:
		if m.WinningNode == w.nodeID {
			w.evHandler("worker: HandleMessage: BLOCK_ACCEPTED: blk[%d]: my block was accepted", m.Block.Number)
			return
		}
		w.evHandler("worker: HandleMessage: BLOCK_ACCEPTED: blk[%d]: node[%s] won, cancelling", m.Block.Number, m.WinningNode)
		w.SignalCancelMining()

	case protocol.CancelMining:
		w.evHandler("worker: HandleMessage: CANCEL_MINING")
		w.SignalCancelMining()

	default:
		w.evHandler("worker: HandleMessage: ignoring %s message", msg.Type())
	}
}

// writeTimeout returns the write deadline for the coordinator connection.
// Reports are sent while the search is locked, so a write is never allowed
// to block forever.
func writeTimeout(cfg Config) time.Duration {
	if cfg.WriteTimeout <= 0 {
		return protocol.DefaultWriteTimeout
	}
	return cfg.WriteTimeout
}
