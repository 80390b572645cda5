package worker

import (
	"context"

	"github.com/ardanlabs/powpool/foundation/blockchain/pow"
	"github.com/ardanlabs/powpool/foundation/blockchain/protocol"
)

// miningOperations handles mining.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case wk := <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation(wk)
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation searches for a block satisfying the task and reports
// it to the coordinator unless the task was superseded in the meantime.
func (w *Worker) runMiningOperation(wk work) {

	// Register this search as the current one, unless the task was already
	// superseded while it waited to be picked up.
	w.mu.Lock()
	if wk.gen != w.gen {
		w.mu.Unlock()
		w.evHandler("worker: runMiningOperation: MINING: blk[%d]: superseded before start", wk.task.Number)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	w.cancel = cancel
	w.done = done
	w.state = StateMining
	w.mu.Unlock()

	w.evHandler("worker: runMiningOperation: MINING: blk[%d]: started", wk.task.Number)
	defer w.evHandler("worker: runMiningOperation: MINING: blk[%d]: completed", wk.task.Number)

	// Release anyone waiting on this search once it is over.
	defer func() {
		w.mu.Lock()
		if w.done == done {
			w.cancel = nil
			w.done = nil
			w.state = StateIdle
		}
		w.mu.Unlock()

		cancel()
		close(done)
	}()

	switch r := pow.Search(ctx, wk.task, w.searchOpts...).(type) {
	case pow.Cancelled:
		w.evHandler("worker: runMiningOperation: MINING: blk[%d]: CANCEL: attempts[%d]: elapsed[%v]", wk.task.Number, r.Attempts, r.Elapsed)

	case pow.Found:
		w.submit(wk, r)
	}
}

// submit reports the block to the coordinator. The result of a task that
// has been superseded is discarded.
func (w *Worker) submit(wk work, found pow.Found) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if wk.gen != w.gen {
		w.evHandler("worker: submit: blk[%d]: discarding result for superseded task", wk.task.Number)
		return
	}

	w.state = StateSubmitting

	msg := protocol.BlockMined{
		Block:    found.Block,
		Attempts: found.Attempts,
		Elapsed:  found.Elapsed,
	}

	if err := w.conn.Send(msg); err != nil {
		w.evHandler("worker: submit: blk[%d]: ERROR: %s", wk.task.Number, err)
		return
	}

	w.submitted++
	w.evHandler("worker: submit: blk[%d]: hash[%s]: nonce[%d]: attempts[%d]: rate[%.0f H/s]: submitted", found.Block.Number, found.Block.BlockHash, found.Block.Nonce, found.Attempts, pow.HashRate(found.Attempts, found.Elapsed))
}
