package public

import (
	"github.com/ardanlabs/powpool/foundation/blockchain/block"
	"github.com/ardanlabs/powpool/foundation/blockchain/coordinator"
)

type task struct {
	Number       uint64     `json:"block_number"`
	PreviousHash block.Hash `json:"previous_hash"`
	MerkleRoot   block.Hash `json:"merkle_root"`
	Difficulty   uint       `json:"difficulty"`
	Transactions []string   `json:"transactions"`
}

type status struct {
	coordinator.Status
	Task task `json:"task"`
}

func toTask(t block.Task) task {
	return task{
		Number:       t.Number,
		PreviousHash: t.PreviousHash,
		MerkleRoot:   t.MerkleRoot(),
		Difficulty:   t.Difficulty,
		Transactions: t.Transactions,
	}
}
