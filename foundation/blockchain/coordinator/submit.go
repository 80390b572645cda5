package coordinator

import (
	"fmt"
	"time"

	"github.com/ardanlabs/powpool/foundation/blockchain/peer"
	"github.com/ardanlabs/powpool/foundation/blockchain/protocol"
)

// Register adds the worker to the broadcast set and sends it the current
// task. A worker registering with a node id that is already in use replaces
// the previous registration and the old connection is closed.
func (c *Coordinator) Register(p peer.Peer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, replaced := c.workers.Add(p); replaced && old.Conn != p.Conn {
		c.evHandler("coordinator: Register: node[%s]: replacing previous registration from %s", p.NodeID, old.Addr)
		old.Conn.Close()
	}

	c.evHandler("coordinator: Register: node[%s]: registered from %s: workers[%d]", p.NodeID, p.Addr, c.workers.Len())

	if err := p.Conn.Send(protocol.NewTask{Task: c.task}); err != nil {
		c.dropWorker(p, err)
		return fmt.Errorf("sending task to node %s: %w", p.NodeID, err)
	}

	return nil
}

// Unregister removes the worker from the broadcast set if it is still
// registered with the same connection.
func (c *Coordinator) Unregister(p peer.Peer) {
	if c.workers.Remove(p) {
		c.evHandler("coordinator: Unregister: node[%s]: removed: workers[%d]", p.NodeID, c.workers.Len())
	}
}

// SubmitBlock processes a block mined by the specified worker. The first
// valid block for the current height advances the chain head, and every
// registered worker is told about the winner and handed the next task.
// Anything else is rejected and nothing is sent.
func (c *Coordinator) SubmitBlock(nodeID string, mined protocol.BlockMined) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	blk := mined.Block

	if _, exists := c.workers.Lookup(nodeID); !exists {
		return fmt.Errorf("node %s: %w", nodeID, ErrNotRegistered)
	}

	if blk.Number != c.height {
		c.evHandler("coordinator: SubmitBlock: node[%s]: REJECTED: blk[%d]: current height[%d]", nodeID, blk.Number, c.height)
		return fmt.Errorf("block %d, height %d: %w", blk.Number, c.height, ErrStaleHeight)
	}

	if blk.PreviousHash != c.prevHash {
		c.evHandler("coordinator: SubmitBlock: node[%s]: REJECTED: blk[%d]: prev[%s]: head[%s]", nodeID, blk.Number, blk.PreviousHash, c.prevHash)
		return ErrChainMismatch
	}

	if blk.MerkleRoot != c.task.MerkleRoot() {
		c.evHandler("coordinator: SubmitBlock: node[%s]: REJECTED: blk[%d]: merkle root[%s]", nodeID, blk.Number, blk.MerkleRoot)
		return ErrTaskMismatch
	}

	if err := blk.Validate(c.difficulty); err != nil {
		c.evHandler("coordinator: SubmitBlock: node[%s]: REJECTED: blk[%d]: %s", nodeID, blk.Number, err)
		return fmt.Errorf("validating block %d: %w", blk.Number, err)
	}

	// The block wins this height. Advance the chain head.
	c.height++
	c.prevHash = blk.BlockHash
	c.accepted++

	c.recent.Add(blk.Number, AcceptedBlock{
		Block:       blk,
		WinningNode: nodeID,
		Attempts:    mined.Attempts,
		Elapsed:     mined.Elapsed.Seconds(),
		Accepted:    time.Now().UTC(),
	})

	c.task = c.newTask()

	c.evHandler("coordinator: SubmitBlock: node[%s]: ACCEPTED: blk[%d]: hash[%s]: nonce[%d]: attempts[%d]", nodeID, blk.Number, blk.BlockHash, blk.Nonce, mined.Attempts)

	c.broadcast(protocol.BlockAccepted{Block: blk, WinningNode: nodeID})
	c.broadcast(protocol.NewTask{Task: c.task})

	return nil
}

// broadcast sends the message to every registered worker. A worker that
// can't be reached is dropped and the broadcast continues with the rest.
// The caller must hold mu.
func (c *Coordinator) broadcast(msg protocol.Message) {
	for _, p := range c.workers.Copy() {
		if err := p.Conn.Send(msg); err != nil {
			c.dropWorker(p, err)
		}
	}
}

// dropWorker removes a worker that failed a write and closes its connection.
func (c *Coordinator) dropWorker(p peer.Peer, err error) {
	c.evHandler("coordinator: dropWorker: node[%s]: WARNING: %s", p.NodeID, err)

	c.Unregister(p)
	p.Conn.Close()
}
