package peer_test

import (
	"testing"

	"github.com/ardanlabs/powpool/foundation/blockchain/peer"
	"github.com/ardanlabs/powpool/foundation/blockchain/protocol"
)

type fakeConn struct {
	id string
}

func (*fakeConn) Send(msg protocol.Message) error { return nil }
func (*fakeConn) Close() error                    { return nil }

func Test_CRUD(t *testing.T) {
	type table struct {
		name  string
		peers []string
	}

	tt := []table{
		{
			name:  "basic",
			peers: []string{"3", "1", "2"},
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			ps := peer.NewPeerSet()

			for _, id := range tst.peers {
				if _, replaced := ps.Add(peer.New(id, "127.0.0.1:0", &fakeConn{id: id})); replaced {
					t.Fatalf("Test %s:\tShould not replace a new node %s.", tst.name, id)
				}
			}

			peers := ps.Copy()
			if len(peers) != len(tst.peers) {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers))
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			for i, exp := range []string{"1", "2", "3"} {
				if peers[i].NodeID != exp {
					t.Fatalf("Test %s:\tShould get the peers ordered by node id, got %s at %d.", tst.name, peers[i].NodeID, i)
				}
			}

			newer := peer.New("2", "127.0.0.1:1", &fakeConn{id: "2b"})
			old, replaced := ps.Add(newer)
			if !replaced || old.Addr != "127.0.0.1:0" {
				t.Fatalf("Test %s:\tShould replace a re-registered node.", tst.name)
			}

			if ps.Remove(old) {
				t.Fatalf("Test %s:\tShould not remove a newer registration with a stale peer.", tst.name)
			}

			if !ps.Remove(newer) {
				t.Fatalf("Test %s:\tShould remove the current registration.", tst.name)
			}

			if ps.Len() != len(tst.peers)-1 {
				t.Fatalf("Test %s:\tShould have %d peers, got %d.", tst.name, len(tst.peers)-1, ps.Len())
			}

			if _, exists := ps.Lookup("2"); exists {
				t.Fatalf("Test %s:\tShould not find a removed peer.", tst.name)
			}

			if len(ps.Status()) != ps.Len() {
				t.Fatalf("Test %s:\tShould report status for every peer.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}
