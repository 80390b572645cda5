package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/ardanlabs/powpool/foundation/blockchain/block"
	"github.com/ardanlabs/powpool/foundation/validate"
)

// MessageType identifies the kind of message carried in a frame.
type MessageType string

// Set of message types supported by the protocol.
const (
	TypeRegister      MessageType = "REGISTER"
	TypeNewTask       MessageType = "NEW_TASK"
	TypeBlockMined    MessageType = "BLOCK_MINED"
	TypeBlockAccepted MessageType = "BLOCK_ACCEPTED"
	TypeCancelMining  MessageType = "CANCEL_MINING"
)

// ErrUnknownType is returned when a record carries a type that is not part
// of the protocol.
var ErrUnknownType = errors.New("unknown message type")

// DecodeError is returned when a frame was read but its record could not be
// turned into a message.
type DecodeError struct {
	Type MessageType
	Err  error
}

// Error implements the error interface.
func (de *DecodeError) Error() string {
	if de.Type == "" {
		return fmt.Sprintf("decoding message: %s", de.Err)
	}
	return fmt.Sprintf("decoding %s message: %s", de.Type, de.Err)
}

// Unwrap provides support for errors.Is and errors.As.
func (de *DecodeError) Unwrap() error {
	return de.Err
}

// IsDecodeError checks if an error of type DecodeError exists.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// =============================================================================

// Message is implemented by every kind of message in the protocol.
type Message interface {
	Type() MessageType
}

// Register is sent by a worker when it joins the coordinator.
type Register struct {
	NodeID string
}

// NewTask is sent by the coordinator to hand out the current unit of work.
type NewTask struct {
	Task block.Task
}

// BlockMined is sent by a worker that solved the task it was given.
type BlockMined struct {
	Block    block.Block
	Attempts uint64
	Elapsed  time.Duration
}

// BlockAccepted is broadcast by the coordinator when a block is added to
// the chain.
type BlockAccepted struct {
	Block       block.Block
	WinningNode string
}

// CancelMining asks a worker to stop its current search.
type CancelMining struct{}

// Type implements the Message interface.
func (Register) Type() MessageType { return TypeRegister }

// Type implements the Message interface.
func (NewTask) Type() MessageType { return TypeNewTask }

// Type implements the Message interface.
func (BlockMined) Type() MessageType { return TypeBlockMined }

// Type implements the Message interface.
func (BlockAccepted) Type() MessageType { return TypeBlockAccepted }

// Type implements the Message interface.
func (CancelMining) Type() MessageType { return TypeCancelMining }

// =============================================================================

// WriteMessage encodes the message and writes it as a single frame.
func WriteMessage(w io.Writer, msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	return WriteFrame(w, data)
}

// ReadMessage reads the next frame and decodes it into a message.
func ReadMessage(r io.Reader) (Message, error) {
	data, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}

	return Decode(data)
}

// Encode serializes the message into the JSON record carried by a frame.
func Encode(msg Message) ([]byte, error) {
	var v any

	switch m := msg.(type) {
	case Register:
		v = registerRecord{
			Type:   TypeRegister,
			NodeID: m.NodeID,
		}

	case NewTask:
		txs := m.Task.Transactions
		if txs == nil {
			txs = []string{}
		}
		v = newTaskRecord{
			Type:         TypeNewTask,
			Transactions: txs,
			PreviousHash: ptr(m.Task.PreviousHash),
			BlockNumber:  ptr(m.Task.Number),
			Difficulty:   ptr(m.Task.Difficulty),
		}

	case BlockMined:
		v = blockMinedRecord{
			Type:     TypeBlockMined,
			Block:    toBlockRecord(m.Block),
			Attempts: ptr(m.Attempts),
			Elapsed:  ptr(m.Elapsed.Seconds()),
		}

	case BlockAccepted:
		v = blockAcceptedRecord{
			Type:        TypeBlockAccepted,
			Block:       toBlockRecord(m.Block),
			WinningNode: m.WinningNode,
		}

	case CancelMining:
		v = envelope{
			Type: TypeCancelMining,
		}

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, msg)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s message: %w", msg.Type(), err)
	}

	return data, nil
}

// Decode parses a JSON record into a message. Unknown types and missing
// required fields are reported as a DecodeError.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Err: err}
	}

	switch env.Type {
	case TypeRegister:
		var rec registerRecord
		if err := decodeRecord(data, &rec); err != nil {
			return nil, &DecodeError{Type: env.Type, Err: err}
		}
		return Register{NodeID: rec.NodeID}, nil

	case TypeNewTask:
		var rec newTaskRecord
		if err := decodeRecord(data, &rec); err != nil {
			return nil, &DecodeError{Type: env.Type, Err: err}
		}
		task := block.Task{
			Transactions: rec.Transactions,
			PreviousHash: *rec.PreviousHash,
			Number:       *rec.BlockNumber,
			Difficulty:   *rec.Difficulty,
		}
		return NewTask{Task: task}, nil

	case TypeBlockMined:
		var rec blockMinedRecord
		if err := decodeRecord(data, &rec); err != nil {
			return nil, &DecodeError{Type: env.Type, Err: err}
		}
		msg := BlockMined{
			Block:    rec.Block.toBlock(),
			Attempts: *rec.Attempts,
			Elapsed:  fromSeconds(*rec.Elapsed),
		}
		return msg, nil

	case TypeBlockAccepted:
		var rec blockAcceptedRecord
		if err := decodeRecord(data, &rec); err != nil {
			return nil, &DecodeError{Type: env.Type, Err: err}
		}
		msg := BlockAccepted{
			Block:       rec.Block.toBlock(),
			WinningNode: rec.WinningNode,
		}
		return msg, nil

	case TypeCancelMining:
		return CancelMining{}, nil

	case "":
		return nil, &DecodeError{Err: errors.New("record has no type field")}
	}

	return nil, &DecodeError{Type: env.Type, Err: ErrUnknownType}
}

// =============================================================================

// These records define the JSON layout on the wire. Pointer fields allow a
// missing field to be told apart from a zero value during validation.

type envelope struct {
	Type MessageType `json:"type"`
}

type registerRecord struct {
	Type   MessageType `json:"type"`
	NodeID string      `json:"node_id" validate:"required"`
}

type newTaskRecord struct {
	Type         MessageType `json:"type"`
	Transactions []string    `json:"transactions" validate:"required"`
	PreviousHash *block.Hash `json:"previous_hash" validate:"required"`
	BlockNumber  *uint64     `json:"block_number" validate:"required"`
	Difficulty   *uint       `json:"difficulty" validate:"required"`
}

type blockRecord struct {
	MerkleRoot   *block.Hash `json:"merkle_root" validate:"required"`
	PreviousHash *block.Hash `json:"previous_hash" validate:"required"`
	TimeStamp    *uint64     `json:"timestamp" validate:"required"`
	BlockNumber  *uint64     `json:"block_number" validate:"required"`
	Nonce        *uint64     `json:"nonce" validate:"required"`
	BlockHash    *block.Hash `json:"block_hash" validate:"required"`
}

type blockMinedRecord struct {
	Type     MessageType  `json:"type"`
	Block    *blockRecord `json:"block" validate:"required"`
	Attempts *uint64      `json:"attempts" validate:"required"`
	Elapsed  *float64     `json:"elapsed" validate:"required"`
}

type blockAcceptedRecord struct {
	Type        MessageType  `json:"type"`
	Block       *blockRecord `json:"block" validate:"required"`
	WinningNode string       `json:"winning_node" validate:"required"`
}

func toBlockRecord(b block.Block) *blockRecord {
	return &blockRecord{
		MerkleRoot:   ptr(b.MerkleRoot),
		PreviousHash: ptr(b.PreviousHash),
		TimeStamp:    ptr(b.TimeStamp),
		BlockNumber:  ptr(b.Number),
		Nonce:        ptr(b.Nonce),
		BlockHash:    ptr(b.BlockHash),
	}
}

func (br *blockRecord) toBlock() block.Block {
	return block.Block{
		Header: block.Header{
			MerkleRoot:   *br.MerkleRoot,
			PreviousHash: *br.PreviousHash,
			TimeStamp:    *br.TimeStamp,
			Number:       *br.BlockNumber,
			Nonce:        *br.Nonce,
		},
		BlockHash: *br.BlockHash,
	}
}

// decodeRecord unmarshals the record and checks the required fields.
func decodeRecord(data []byte, rec any) error {
	if err := json.Unmarshal(data, rec); err != nil {
		return err
	}

	return validate.Check(rec)
}

// fromSeconds converts elapsed seconds from the wire back to a duration.
func fromSeconds(secs float64) time.Duration {
	return time.Duration(math.Round(secs * float64(time.Second)))
}

func ptr[T any](v T) *T {
	return &v
}
