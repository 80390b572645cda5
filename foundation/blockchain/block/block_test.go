package block_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ardanlabs/powpool/foundation/blockchain/block"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func hashFrom(t *testing.T, s string) block.Hash {
	var h block.Hash
	if err := h.UnmarshalText([]byte(s)); err != nil {
		t.Fatalf("\t%s\tShould be able to decode hash %q: %s", failed, s, err)
	}
	return h
}

// =============================================================================

func Test_HeaderHash(t *testing.T) {
	task := block.Task{
		Transactions: []string{"a", "b"},
		PreviousHash: block.ZeroHash,
		Number:       1,
		Difficulty:   8,
	}

	header := task.Header(1_700_000_000)
	header.Nonce = 42

	expRoot := hashFrom(t, "0xe5a01fee14e0ed5c48714f22180f25ad8365b53f9779f79dc4a3d7e93963f94a")
	if header.MerkleRoot != expRoot {
		t.Logf("\t%s\tgot: %s", failed, header.MerkleRoot)
		t.Logf("\t%s\texp: %s", failed, expRoot)
		t.Fatalf("\t%s\tShould commit the task transactions to the header.", failed)
	}
	t.Logf("\t%s\tShould commit the task transactions to the header.", success)

	expHash := hashFrom(t, "0x75568292485de9d9cb5d8674433a889a25332772028319216bf5a1caf9f476e5")
	if got := header.Hash(); got != expHash {
		t.Logf("\t%s\tgot: %s", failed, got)
		t.Logf("\t%s\texp: %s", failed, expHash)
		t.Fatalf("\t%s\tShould hash the header in the canonical layout.", failed)
	}
	t.Logf("\t%s\tShould hash the header in the canonical layout.", success)
}

func Test_IsHashSolved(t *testing.T) {
	type table struct {
		name       string
		hash       block.Hash
		difficulty uint
		solved     bool
	}

	var allZero block.Hash
	var partial block.Hash
	partial[0] = 0x00
	partial[1] = 0x15 // 0001_0101: three leading zero bits.
	partial[2] = 0xFF

	tt := []table{
		{name: "zero-difficulty", hash: block.Hash{0xFF}, difficulty: 0, solved: true},
		{name: "one-bit-set", hash: block.Hash{0x80}, difficulty: 1, solved: false},
		{name: "one-bit-clear", hash: block.Hash{0x7F}, difficulty: 1, solved: true},
		{name: "eleven-bits", hash: partial, difficulty: 11, solved: true},
		{name: "twelve-bits", hash: partial, difficulty: 12, solved: false},
		{name: "full-byte", hash: partial, difficulty: 8, solved: true},
		{name: "all-zero-full-width", hash: allZero, difficulty: block.HashBits, solved: true},
		{name: "beyond-width", hash: allZero, difficulty: block.HashBits + 1, solved: false},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			if got := block.IsHashSolved(tst.difficulty, tst.hash); got != tst.solved {
				t.Fatalf("\t%s\tTest %s:\tShould get %t for difficulty %d, got %t.", failed, tst.name, tst.solved, tst.difficulty, got)
			}
			t.Logf("\t%s\tTest %s:\tShould get %t for difficulty %d.", success, tst.name, tst.solved, tst.difficulty)
		}

		t.Run(tst.name, f)
	}
}

func Test_LeadingZeroBits(t *testing.T) {
	var h block.Hash
	if got := block.LeadingZeroBits(h); got != block.HashBits {
		t.Fatalf("\t%s\tShould count every bit of a zero hash, got %d.", failed, got)
	}

	h[2] = 0x15
	if got := block.LeadingZeroBits(h); got != 19 {
		t.Fatalf("\t%s\tShould count 19 leading zero bits, got %d.", failed, got)
	}
	t.Logf("\t%s\tShould count leading zero bits.", success)
}

func Test_Validate(t *testing.T) {
	task := block.Task{Transactions: []string{"a", "b"}, Number: 1, Difficulty: 8}

	header := task.Header(1_700_000_000)
	header.Nonce = 303

	b := block.New(header)
	if err := b.Validate(8); err != nil {
		t.Fatalf("\t%s\tShould accept a solved block: %s", failed, err)
	}
	t.Logf("\t%s\tShould accept a solved block.", success)

	if err := b.Validate(12); !errors.Is(err, block.ErrHashNotSolved) {
		t.Fatalf("\t%s\tShould reject a block below the difficulty: %v", failed, err)
	}
	t.Logf("\t%s\tShould reject a block below the difficulty.", success)

	tampered := b
	tampered.Nonce++
	if err := tampered.Validate(0); !errors.Is(err, block.ErrHashMismatch) {
		t.Fatalf("\t%s\tShould reject a block whose hash does not recompute: %v", failed, err)
	}
	t.Logf("\t%s\tShould reject a block whose hash does not recompute.", success)
}

func Test_BlockJSON(t *testing.T) {
	task := block.Task{Transactions: []string{"x"}, PreviousHash: block.Hash{1, 2, 3}, Number: 9}
	b := block.New(task.Header(42))

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to marshal a block: %s", failed, err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("\t%s\tShould be able to unmarshal into a map: %s", failed, err)
	}

	for _, key := range []string{"merkle_root", "previous_hash", "timestamp", "block_number", "nonce", "block_hash"} {
		if _, exists := fields[key]; !exists {
			t.Fatalf("\t%s\tShould carry the %q field flat in the record.", failed, key)
		}
	}
	t.Logf("\t%s\tShould carry every header field flat in the record.", success)

	var got block.Block
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("\t%s\tShould be able to unmarshal a block: %s", failed, err)
	}
	if got != b {
		t.Fatalf("\t%s\tShould get back the same block.", failed)
	}
	t.Logf("\t%s\tShould get back the same block.", success)

	var h block.Hash
	if err := h.UnmarshalText([]byte("0x0102")); err == nil {
		t.Fatalf("\t%s\tShould reject a short hash.", failed)
	}
	t.Logf("\t%s\tShould reject a short hash.", success)
}
