package coordinator

import (
	"sort"

	"github.com/ardanlabs/powpool/foundation/blockchain/block"
	"github.com/ardanlabs/powpool/foundation/blockchain/peer"
)

// Status represents a snapshot of the coordinator's chain head.
type Status struct {
	Height       uint64     `json:"block_number"`
	PreviousHash block.Hash `json:"previous_hash"`
	Difficulty   uint       `json:"difficulty"`
	Workers      int        `json:"workers"`
	Accepted     uint64     `json:"accepted"`
}

// Status returns the current chain head.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Status{
		Height:       c.height,
		PreviousHash: c.prevHash,
		Difficulty:   c.difficulty,
		Workers:      c.workers.Len(),
		Accepted:     c.accepted,
	}
}

// Task returns the task currently being mined.
func (c *Coordinator) Task() block.Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.task
}

// RecentBlocks returns the most recently accepted blocks, newest first.
func (c *Coordinator) RecentBlocks() []AcceptedBlock {
	blocks := c.recent.Values()

	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Block.Number > blocks[j].Block.Number
	})

	return blocks
}

// QueryBlock returns the accepted block at the specified height if it is
// still in the recent window.
func (c *Coordinator) QueryBlock(number uint64) (AcceptedBlock, bool) {
	return c.recent.Peek(number)
}

// Workers returns the registered workers ordered by node id.
func (c *Coordinator) Workers() []peer.PeerStatus {
	return c.workers.Status()
}
