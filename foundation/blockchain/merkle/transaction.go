package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
)

// Transaction is an opaque transaction string. No structure is validated,
// it is committed to the tree as the sha256 of its UTF-8 bytes.
type Transaction string

// Hash implements the Hashable interface.
func (tx Transaction) Hash() ([]byte, error) {
	h := sha256.Sum256([]byte(tx))
	return h[:], nil
}

// Equals implements the Hashable interface.
func (tx Transaction) Equals(other Transaction) bool {
	return tx == other
}

// =============================================================================

// BuildRoot reduces the ordered list of transactions to the sha256 merkle
// root. An empty list produces the hash of the empty byte string.
func BuildRoot(txs []string) [32]byte {
	values := make([]Transaction, len(txs))
	for i, tx := range txs {
		values[i] = Transaction(tx)
	}

	// Transaction hashing can't fail so neither can building the tree.
	tree, _ := NewTree(values)

	var root [32]byte
	copy(root[:], tree.MerkleRoot)

	return root
}

// VerifyProof recomputes a sha256 merkle root from a leaf hash and the proof
// produced by Tree.Proof and compares it to the expected root.
func VerifyProof(root []byte, leafHash []byte, proof [][]byte, order []int64) error {
	if len(proof) != len(order) {
		return errors.New("proof and order length mismatch")
	}

	current := leafHash
	for i, p := range proof {
		var data []byte
		switch order[i] {
		case 0:
			data = append(append(data, p...), current...)
		case 1:
			data = append(append(data, current...), p...)
		default:
			return errors.New("invalid proof order value")
		}

		h := sha256.Sum256(data)
		current = h[:]
	}

	if !bytes.Equal(current, root) {
		return errors.New("proof does not lead to the merkle root")
	}

	return nil
}
