package worker_test

import (
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/powpool/foundation/blockchain/block"
	"github.com/ardanlabs/powpool/foundation/blockchain/protocol"
	"github.com/ardanlabs/powpool/foundation/blockchain/worker"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// unsolvable is a difficulty no hash can satisfy, the search only ends when
// it is cancelled.
const unsolvable = block.HashBits + 1

// recorder captures the messages a worker sends to the coordinator.
type recorder struct {
	mu   sync.Mutex
	msgs []protocol.BlockMined
	sent chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		sent: make(chan struct{}, 1000),
	}
}

func (r *recorder) Send(msg protocol.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := msg.(protocol.BlockMined); ok {
		r.msgs = append(r.msgs, m)
		r.sent <- struct{}{}
	}
	return nil
}

func (r *recorder) Messages() []protocol.BlockMined {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]protocol.BlockMined(nil), r.msgs...)
}

func task(number uint64, difficulty uint) block.Task {
	return block.Task{
		Transactions: []string{"a", "b"},
		PreviousHash: block.Hash{byte(number)},
		Number:       number,
		Difficulty:   difficulty,
	}
}

func waitState(w *worker.Worker, exp worker.State) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if w.State() == exp {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func waitBlock(rec *recorder, number uint64) bool {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		for _, msg := range rec.Messages() {
			if msg.Block.Number == number {
				return true
			}
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

// =============================================================================

func Test_MineAndSubmit(t *testing.T) {
	t.Log("Given the need to mine a task and report the block.")
	{
		rec := newRecorder()
		w := worker.New(worker.Config{NodeID: "1"}, rec)
		defer w.Shutdown()

		w.HandleMessage(protocol.NewTask{Task: task(3, 8)})

		select {
		case <-rec.sent:
		case <-time.After(10 * time.Second):
			t.Fatalf("\t%s\tShould submit a block for the task.", failed)
		}
		t.Logf("\t%s\tShould submit a block for the task.", success)

		msgs := rec.Messages()
		blk := msgs[0].Block
		if blk.Number != 3 || blk.PreviousHash != (block.Hash{3}) {
			t.Fatalf("\t%s\tShould submit a block extending the task, got blk[%d] prev[%s].", failed, blk.Number, blk.PreviousHash)
		}
		if err := blk.Validate(8); err != nil {
			t.Fatalf("\t%s\tShould submit a valid block: %s", failed, err)
		}
		if msgs[0].Attempts != blk.Nonce+1 {
			t.Fatalf("\t%s\tShould report the attempts made, got %d for nonce %d.", failed, msgs[0].Attempts, blk.Nonce)
		}
		t.Logf("\t%s\tShould submit a valid block extending the task.", success)

		if !waitState(w, worker.StateIdle) {
			t.Fatalf("\t%s\tShould return to idle after submitting, got %s.", failed, w.State())
		}
		if w.Submitted() != 1 {
			t.Fatalf("\t%s\tShould count the submission, got %d.", failed, w.Submitted())
		}
		t.Logf("\t%s\tShould return to idle after submitting.", success)
	}
}

func Test_Cancel(t *testing.T) {
	t.Log("Given the need to abandon a search.")
	{
		type table struct {
			name string
			msg  protocol.Message
		}

		tt := []table{
			{name: "cancel-mining", msg: protocol.CancelMining{}},
			{name: "other-node-won", msg: protocol.BlockAccepted{Block: block.Block{Header: block.Header{Number: 1}}, WinningNode: "2"}},
		}

		for testID, tst := range tt {
			f := func(t *testing.T) {
				rec := newRecorder()
				w := worker.New(worker.Config{NodeID: "1", PollInterval: 100}, rec)
				defer w.Shutdown()

				w.HandleMessage(protocol.NewTask{Task: task(1, unsolvable)})
				if !waitState(w, worker.StateMining) {
					t.Fatalf("\t%s\tTest %d:\tShould start mining, got %s.", failed, testID, w.State())
				}
				t.Logf("\t%s\tTest %d:\tShould start mining.", success, testID)

				w.HandleMessage(tst.msg)
				if s := w.State(); s != worker.StateIdle {
					t.Fatalf("\t%s\tTest %d:\tShould be idle once the cancel returns, got %s.", failed, testID, s)
				}
				t.Logf("\t%s\tTest %d:\tShould be idle once the cancel returns.", success, testID)

				w.HandleMessage(protocol.CancelMining{})
				t.Logf("\t%s\tTest %d:\tShould tolerate cancelling an idle worker.", success, testID)

				if n := len(rec.Messages()); n != 0 {
					t.Fatalf("\t%s\tTest %d:\tShould not submit anything, got %d.", failed, testID, n)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_OwnBlockAccepted(t *testing.T) {
	rec := newRecorder()
	w := worker.New(worker.Config{NodeID: "1", PollInterval: 100}, rec)
	defer w.Shutdown()

	w.HandleMessage(protocol.NewTask{Task: task(1, unsolvable)})
	if !waitState(w, worker.StateMining) {
		t.Fatalf("\t%s\tShould start mining, got %s.", failed, w.State())
	}

	w.HandleMessage(protocol.BlockAccepted{WinningNode: "1"})
	if s := w.State(); s != worker.StateMining {
		t.Fatalf("\t%s\tShould keep mining when its own block is accepted, got %s.", failed, s)
	}
	t.Logf("\t%s\tShould keep mining when its own block is accepted.", success)
}

func Test_SupersededResultNeverSent(t *testing.T) {
	t.Log("Given the need to never report a block for a superseded task.")
	{
		rec := newRecorder()
		w := worker.New(worker.Config{NodeID: "1", PollInterval: 1}, rec)
		defer w.Shutdown()

		const rounds = 50

		for i := uint64(1); i <= rounds; i++ {
			old := task(2*i, 0)
			next := task(2*i+1, 0)

			w.HandleMessage(protocol.NewTask{Task: old})
			w.HandleMessage(protocol.NewTask{Task: next})

			// Anything sent from here on must belong to the newest task.
			mark := len(rec.Messages())

			if !waitBlock(rec, next.Number) {
				t.Fatalf("\t%s\tRound %d:\tShould report blk[%d].", failed, i, next.Number)
			}

			for _, msg := range rec.Messages()[mark:] {
				if msg.Block.Number != next.Number {
					t.Fatalf("\t%s\tRound %d:\tShould not report blk[%d] after it was superseded.", failed, i, msg.Block.Number)
				}
			}
		}
		t.Logf("\t%s\tShould only report blocks for the current task.", success)
	}
}
