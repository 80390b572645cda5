// Package worker implements a mining node of the pool. A worker registers
// with the coordinator, mines the task it is handed and reports the block it
// finds, abandoning its search as soon as the task is superseded.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ardanlabs/powpool/foundation/blockchain/block"
	"github.com/ardanlabs/powpool/foundation/blockchain/pow"
	"github.com/ardanlabs/powpool/foundation/blockchain/protocol"
)

// State represents where the worker is in its mining cycle.
type State int

// Set of states a worker moves through.
const (
	StateIdle State = iota
	StateMining
	StateSubmitting
	StateCancelled
)

// String implements the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMining:
		return "mining"
	case StateSubmitting:
		return "submitting"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the worker.
type EventHandler func(v string, args ...any)

// Sender represents the behavior required to report to the coordinator.
type Sender interface {
	Send(msg protocol.Message) error
}

// Config represents the configuration required to run a worker.
type Config struct {
	NodeID          string
	CoordinatorAddr string
	WriteTimeout    time.Duration
	PollInterval    uint64
	EvHandler       EventHandler
}

// work is a task handed to the mining goroutine. The generation identifies
// the task so a result can be discarded once the task is superseded.
type work struct {
	task block.Task
	gen  uint64
}

// Worker manages the mining workflow for a single node.
type Worker struct {
	nodeID      string
	conn        Sender
	evHandler   EventHandler
	searchOpts  []pow.Option
	wg          sync.WaitGroup
	shut        chan struct{}
	shutOnce    sync.Once
	startMining chan work

	// mu guards the current search. Every supersession bumps gen under mu and
	// a result is only sent while holding mu with an unchanged gen.
	mu        sync.Mutex
	gen       uint64
	state     State
	cancel    context.CancelFunc
	done      chan struct{}
	submitted uint64
}

// New constructs a worker that reports to the coordinator through the
// specified sender and starts its mining goroutine.
func New(cfg Config, conn Sender) *Worker {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	w := Worker{
		nodeID:      cfg.NodeID,
		conn:        conn,
		evHandler:   ev,
		shut:        make(chan struct{}),
		startMining: make(chan work, 1),
	}

	w.searchOpts = []pow.Option{
		pow.WithEvents(pow.EventHandler(ev)),
	}
	if cfg.PollInterval > 0 {
		w.searchOpts = append(w.searchOpts, pow.WithPollInterval(cfg.PollInterval))
	}

	// Load the set of operations we need to run.
	operations := []func(){
		w.miningOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return &w
}

// Shutdown cancels any search in progress and terminates the mining
// goroutine. It is safe to call more than once.
func (w *Worker) Shutdown() {
	w.shutOnce.Do(func() {
		w.evHandler("worker: shutdown: started")
		defer w.evHandler("worker: shutdown: completed")

		w.evHandler("worker: shutdown: signal cancel mining")
		w.SignalCancelMining()

		w.evHandler("worker: shutdown: terminate goroutines")
		close(w.shut)
		w.wg.Wait()
	})
}

// SignalStartMining abandons any search in progress and starts mining the
// specified task. A task still waiting to be picked up is replaced.
func (w *Worker) SignalStartMining(task block.Task) {
	w.SignalCancelMining()

	w.mu.Lock()
	w.gen++
	wk := work{task: task, gen: w.gen}
	w.mu.Unlock()

	// Replace any pending task with this one.
	select {
	case <-w.startMining:
	default:
	}

	select {
	case w.startMining <- wk:
	default:
	}

	w.evHandler("worker: SignalStartMining: MINING: blk[%d]: difficulty[%d]: signaled", task.Number, task.Difficulty)
}

// SignalCancelMining stops the search in progress and waits for it to
// return. Any pending task is discarded. Cancelling an idle worker does
// nothing.
func (w *Worker) SignalCancelMining() {
	w.mu.Lock()
	w.gen++
	cancel, done := w.cancel, w.done
	if cancel != nil {
		w.state = StateCancelled
	}
	w.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	w.evHandler("worker: SignalCancelMining: MINING: CANCEL: complete")
}

// State returns the current state of the worker.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.state
}

// Submitted returns the number of blocks this worker has reported.
func (w *Worker) Submitted() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.submitted
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
