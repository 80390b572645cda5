// Package block defines the block header, the mined block and the mining task
// the coordinator hands out, along with the hashing and difficulty rules that
// decide if a block has been solved.
package block

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/ardanlabs/powpool/foundation/blockchain/merkle"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Set of errors returned when validating a block.
var (
	ErrHashMismatch  = errors.New("block hash does not match the header")
	ErrHashNotSolved = errors.New("block hash does not satisfy the difficulty")
)

// HashSize is the number of bytes in every hash used by the chain.
const HashSize = sha256.Size

// HashBits is the number of bits in a hash. A difficulty above this value
// can never be satisfied.
const HashBits = HashSize * 8

// headerSize is the number of bytes hashed to produce a block hash.
const headerSize = HashSize + HashSize + 8 + 8 + 8

// =============================================================================

// Hash represents a sha256 digest. It marshals to and from 0x prefixed hex.
type Hash [HashSize]byte

// ZeroHash is the previous hash of the first block in the chain.
var ZeroHash Hash

// String implements the Stringer interface.
func (h Hash) String() string {
	return hexutil.Encode(h[:])
}

// MarshalText implements the encoding.TextMarshaler interface.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(h[:])), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (h *Hash) UnmarshalText(text []byte) error {
	b, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("decoding hash: %w", err)
	}

	if len(b) != HashSize {
		return fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}

	copy(h[:], b)
	return nil
}

// IsZero reports if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// =============================================================================

// Header represents the fields of a block that are hashed.
type Header struct {
	MerkleRoot   Hash   `json:"merkle_root"`
	PreviousHash Hash   `json:"previous_hash"`
	TimeStamp    uint64 `json:"timestamp"`
	Number       uint64 `json:"block_number"`
	Nonce        uint64 `json:"nonce"`
}

// Hash returns the sha256 of the header in its canonical byte layout.
func (h Header) Hash() Hash {
	var buf [headerSize]byte
	h.put(buf[:])
	return sha256.Sum256(buf[:])
}

// put writes the canonical layout of the header into buf, which must be
// headerSize bytes:
//
//	merkle_root(32) ‖ previous_hash(32) ‖ timestamp(8 BE) ‖ number(8 BE) ‖ nonce(8 BE)
func (h Header) put(buf []byte) {
	copy(buf[0:32], h.MerkleRoot[:])
	copy(buf[32:64], h.PreviousHash[:])
	binary.BigEndian.PutUint64(buf[64:72], h.TimeStamp)
	binary.BigEndian.PutUint64(buf[72:80], h.Number)
	binary.BigEndian.PutUint64(buf[80:88], h.Nonce)
}

// =============================================================================

// Block represents a header along with the hash that was computed for it.
type Block struct {
	Header
	BlockHash Hash `json:"block_hash"`
}

// New constructs a block from the header, computing the block hash.
func New(header Header) Block {
	return Block{
		Header:    header,
		BlockHash: header.Hash(),
	}
}

// Validate checks that the stored hash is the hash of the header and that
// it satisfies the specified difficulty.
func (b Block) Validate(difficulty uint) error {
	if hash := b.Header.Hash(); hash != b.BlockHash {
		return fmt.Errorf("%w: got %s, exp %s", ErrHashMismatch, b.BlockHash, hash)
	}

	if !IsHashSolved(difficulty, b.BlockHash) {
		return fmt.Errorf("%w: hash %s, difficulty %d", ErrHashNotSolved, b.BlockHash, difficulty)
	}

	return nil
}

// =============================================================================

// IsHashSolved checks the hash has at least difficulty leading zero bits,
// reading each byte most significant bit first.
func IsHashSolved(difficulty uint, hash Hash) bool {
	if difficulty > HashBits {
		return false
	}

	full := difficulty / 8
	for i := uint(0); i < full; i++ {
		if hash[i] != 0 {
			return false
		}
	}

	rem := difficulty % 8
	if rem == 0 {
		return true
	}

	mask := byte(0xFF) << (8 - rem)
	return hash[full]&mask == 0
}

// LeadingZeroBits counts the leading zero bits of the hash.
func LeadingZeroBits(hash Hash) int {
	var count int
	for _, b := range hash {
		if b == 0 {
			count += 8
			continue
		}
		return count + bits.LeadingZeros8(b)
	}

	return count
}

// =============================================================================

// Task is the unit of work the coordinator hands to the workers. A task is
// never mutated once issued, it is replaced by the next one.
type Task struct {
	Transactions []string
	PreviousHash Hash
	Number       uint64
	Difficulty   uint
}

// MerkleRoot computes the merkle root of the task's transactions.
func (t Task) MerkleRoot() Hash {
	return merkle.BuildRoot(t.Transactions)
}

// Header constructs the header to be mined for this task with a zero nonce.
func (t Task) Header(timestamp uint64) Header {
	return Header{
		MerkleRoot:   t.MerkleRoot(),
		PreviousHash: t.PreviousHash,
		TimeStamp:    timestamp,
		Number:       t.Number,
	}
}
