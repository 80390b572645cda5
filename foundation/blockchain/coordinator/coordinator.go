// Package coordinator is the single arbiter of the mining pool. It owns the
// chain head, hands out mining tasks to registered workers and accepts the
// first valid block submitted for each height.
package coordinator

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ardanlabs/powpool/foundation/blockchain/block"
	"github.com/ardanlabs/powpool/foundation/blockchain/peer"
	"github.com/ardanlabs/powpool/foundation/blockchain/protocol"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultRecentBlocks is the number of accepted blocks kept for inspection.
const DefaultRecentBlocks = 128

// Set of reasons a submitted block is rejected.
var (
	ErrNotRegistered = errors.New("worker is not registered")
	ErrStaleHeight   = errors.New("block is not for the current height")
	ErrChainMismatch = errors.New("block does not extend the chain head")
	ErrTaskMismatch  = errors.New("block does not commit to the current task")
)

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the coordinator.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to start the coordinator.
type Config struct {
	Difficulty   uint
	TxPerBlock   int
	RecentBlocks int
	WriteTimeout time.Duration
	Transactions func(n int) []string
	EvHandler    EventHandler
}

// AcceptedBlock is a block the coordinator added to the chain along with the
// worker that mined it.
type AcceptedBlock struct {
	Block       block.Block `json:"block"`
	WinningNode string      `json:"winning_node"`
	Attempts    uint64      `json:"attempts"`
	Elapsed     float64     `json:"elapsed"`
	Accepted    time.Time   `json:"accepted"`
}

// Coordinator manages the chain head and the set of workers mining on it.
type Coordinator struct {
	evHandler    EventHandler
	difficulty   uint
	txPerBlock   int
	writeTimeout time.Duration
	genTxs       func(n int) []string

	// mu serializes validating a submission, advancing the chain head and
	// broadcasting the result. Registration takes it too so a new worker
	// always sees the task that is current when it joins.
	mu       sync.Mutex
	height   uint64
	prevHash block.Hash
	task     block.Task
	accepted uint64

	workers *peer.PeerSet
	recent  *lru.Cache[uint64, AcceptedBlock]

	// Connection management for Serve and Shutdown.
	connMu   sync.Mutex
	listener net.Listener
	conns    map[*protocol.Conn]struct{}
	shut     bool
	wg       sync.WaitGroup
}

// New constructs a coordinator with the chain head at height zero and the
// first task ready to be handed out.
func New(cfg Config) (*Coordinator, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.TxPerBlock <= 0 {
		cfg.TxPerBlock = DefaultTxPerBlock
	}

	if cfg.RecentBlocks <= 0 {
		cfg.RecentBlocks = DefaultRecentBlocks
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = protocol.DefaultWriteTimeout
	}

	if cfg.Transactions == nil {
		cfg.Transactions = GenerateTransactions
	}

	recent, err := lru.New[uint64, AcceptedBlock](cfg.RecentBlocks)
	if err != nil {
		return nil, fmt.Errorf("constructing recent blocks cache: %w", err)
	}

	c := Coordinator{
		evHandler:    ev,
		difficulty:   cfg.Difficulty,
		txPerBlock:   cfg.TxPerBlock,
		writeTimeout: cfg.WriteTimeout,
		genTxs:       cfg.Transactions,
		workers:      peer.NewPeerSet(),
		recent:       recent,
		conns:        make(map[*protocol.Conn]struct{}),
	}

	c.task = c.newTask()

	ev("coordinator: New: task ready: blk[%d]: difficulty[%d]: txs[%d]", c.task.Number, c.task.Difficulty, len(c.task.Transactions))

	return &c, nil
}

// newTask builds the task for the current chain head. The caller must hold
// mu or be constructing the coordinator.
func (c *Coordinator) newTask() block.Task {
	return block.Task{
		Transactions: c.genTxs(c.txPerBlock),
		PreviousHash: c.prevHash,
		Number:       c.height,
		Difficulty:   c.difficulty,
	}
}
