// Package peer maintains the set of workers registered with the coordinator
// so tasks and accepted blocks can be broadcast to them.
package peer

import (
	"sort"
	"sync"
	"time"

	"github.com/ardanlabs/powpool/foundation/blockchain/protocol"
)

// Sender represents the behavior required to deliver messages to a worker.
type Sender interface {
	Send(msg protocol.Message) error
	Close() error
}

// Peer represents a registered worker and the connection used to reach it.
type Peer struct {
	NodeID     string
	Addr       string
	Registered time.Time
	Conn       Sender
}

// New constructs a peer for the worker using the specified connection.
func New(nodeID string, addr string, conn Sender) Peer {
	return Peer{
		NodeID:     nodeID,
		Addr:       addr,
		Registered: time.Now().UTC(),
		Conn:       conn,
	}
}

// Match validates if the specified node id matches this peer.
func (p Peer) Match(nodeID string) bool {
	return p.NodeID == nodeID
}

// =============================================================================

// PeerStatus represents the information about a registered worker that is
// safe to share outside the coordinator.
type PeerStatus struct {
	NodeID     string    `json:"node_id"`
	Addr       string    `json:"addr"`
	Registered time.Time `json:"registered"`
}

// =============================================================================

// PeerSet represents the set of registered workers keyed by node id.
type PeerSet struct {
	mu  sync.RWMutex
	set map[string]Peer
}

// NewPeerSet constructs a new set to manage registered workers.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		set: make(map[string]Peer),
	}
}

// Add adds the peer to the set. If a peer with the same node id is already
// registered it is replaced and returned so the caller can close it.
func (ps *PeerSet) Add(peer Peer) (Peer, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	old, exists := ps.set[peer.NodeID]
	ps.set[peer.NodeID] = peer

	return old, exists
}

// Remove removes the peer from the set. The peer is only removed if it is
// still registered with the same connection, so a stale connection can't
// remove the worker's newer registration.
func (ps *PeerSet) Remove(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	current, exists := ps.set[peer.NodeID]
	if !exists || current.Conn != peer.Conn {
		return false
	}

	delete(ps.set, peer.NodeID)
	return true
}

// Lookup returns the peer registered under the node id.
func (ps *PeerSet) Lookup(nodeID string) (Peer, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	peer, exists := ps.set[nodeID]
	return peer, exists
}

// Len returns the number of registered peers.
func (ps *PeerSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.set)
}

// Copy returns the registered peers ordered by node id.
func (ps *PeerSet) Copy() []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	peers := make([]Peer, 0, len(ps.set))
	for _, peer := range ps.set {
		peers = append(peers, peer)
	}

	sort.Slice(peers, func(i, j int) bool {
		return peers[i].NodeID < peers[j].NodeID
	})

	return peers
}

// Status returns the shareable information for every registered peer.
func (ps *PeerSet) Status() []PeerStatus {
	peers := ps.Copy()

	status := make([]PeerStatus, len(peers))
	for i, peer := range peers {
		status[i] = PeerStatus{
			NodeID:     peer.NodeID,
			Addr:       peer.Addr,
			Registered: peer.Registered,
		}
	}

	return status
}
