package protocol_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/ardanlabs/powpool/foundation/blockchain/block"
	"github.com/ardanlabs/powpool/foundation/blockchain/protocol"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func sampleBlock() block.Block {
	task := block.Task{
		Transactions: []string{"TX_1: A -> B [5 units]", "TX_2: B -> C [7 units]"},
		PreviousHash: block.Hash{0xAA, 0xBB},
		Number:       7,
	}

	header := task.Header(1_700_000_123)
	header.Nonce = 987_654
	return block.New(header)
}

// =============================================================================

func Test_RoundTrip(t *testing.T) {
	type table struct {
		name string
		msg  protocol.Message
	}

	tt := []table{
		{
			name: "register",
			msg:  protocol.Register{NodeID: "3"},
		},
		{
			name: "new-task",
			msg: protocol.NewTask{Task: block.Task{
				Transactions: []string{"a", "b", "c"},
				PreviousHash: block.Hash{1, 2, 3},
				Number:       12,
				Difficulty:   20,
			}},
		},
		{
			name: "new-task-genesis",
			msg: protocol.NewTask{Task: block.Task{
				Transactions: []string{},
				PreviousHash: block.ZeroHash,
				Number:       0,
				Difficulty:   0,
			}},
		},
		{
			name: "block-mined",
			msg: protocol.BlockMined{
				Block:    sampleBlock(),
				Attempts: 1_234_567,
				Elapsed:  1500 * time.Millisecond,
			},
		},
		{
			name: "block-accepted",
			msg: protocol.BlockAccepted{
				Block:       sampleBlock(),
				WinningNode: "worker-2",
			},
		},
		{
			name: "cancel-mining",
			msg:  protocol.CancelMining{},
		},
	}

	t.Log("Given the need to carry every message type in a frame.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				var buf bytes.Buffer
				if err := protocol.WriteMessage(&buf, tst.msg); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to write the message: %s", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be able to write the message.", success, testID)

				got, err := protocol.ReadMessage(&buf)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to read the message: %s", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be able to read the message.", success, testID)

				if !reflect.DeepEqual(got, tst.msg) {
					t.Logf("\t%s\tTest %d:\tgot: %#v", failed, testID, got)
					t.Logf("\t%s\tTest %d:\texp: %#v", failed, testID, tst.msg)
					t.Fatalf("\t%s\tTest %d:\tShould get back the same fields.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get back the same fields.", success, testID)

				if got.Type() != tst.msg.Type() {
					t.Fatalf("\t%s\tTest %d:\tShould keep the message type.", failed, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_FrameLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := protocol.WriteMessage(&buf, protocol.Register{NodeID: "1"}); err != nil {
		t.Fatalf("\t%s\tShould be able to write the message: %s", failed, err)
	}

	data := buf.Bytes()
	length := binary.BigEndian.Uint32(data[:4])
	if int(length) != len(data)-4 {
		t.Fatalf("\t%s\tShould prefix the frame with its big endian length: got %d for %d bytes.", failed, length, len(data)-4)
	}
	t.Logf("\t%s\tShould prefix the frame with its big endian length.", success)

	exp := `{"type":"REGISTER","node_id":"1"}`
	if string(data[4:]) != exp {
		t.Fatalf("\t%s\tShould carry a JSON record with a type field: got %s", failed, data[4:])
	}
	t.Logf("\t%s\tShould carry a JSON record with a type field.", success)
}

func Test_DecodeErrors(t *testing.T) {
	type table struct {
		name   string
		record string
	}

	tt := []table{
		{name: "not-json", record: `not json`},
		{name: "no-type", record: `{"node_id":"1"}`},
		{name: "unknown-type", record: `{"type":"HELLO"}`},
		{name: "register-missing-node", record: `{"type":"REGISTER"}`},
		{name: "task-missing-number", record: `{"type":"NEW_TASK","transactions":[],"previous_hash":"0x0000000000000000000000000000000000000000000000000000000000000000","difficulty":8}`},
		{name: "task-missing-transactions", record: `{"type":"NEW_TASK","previous_hash":"0x0000000000000000000000000000000000000000000000000000000000000000","block_number":1,"difficulty":8}`},
		{name: "task-short-hash", record: `{"type":"NEW_TASK","transactions":[],"previous_hash":"0x00","block_number":1,"difficulty":8}`},
		{name: "mined-missing-block", record: `{"type":"BLOCK_MINED","attempts":1,"elapsed":0.5}`},
		{name: "mined-missing-nonce", record: `{"type":"BLOCK_MINED","attempts":1,"elapsed":0.5,"block":{"merkle_root":"0x0000000000000000000000000000000000000000000000000000000000000000","previous_hash":"0x0000000000000000000000000000000000000000000000000000000000000000","timestamp":1,"block_number":1,"block_hash":"0x0000000000000000000000000000000000000000000000000000000000000000"}}`},
		{name: "accepted-missing-winner", record: `{"type":"BLOCK_ACCEPTED","block":{"merkle_root":"0x0000000000000000000000000000000000000000000000000000000000000000","previous_hash":"0x0000000000000000000000000000000000000000000000000000000000000000","timestamp":1,"block_number":1,"nonce":1,"block_hash":"0x0000000000000000000000000000000000000000000000000000000000000000"}}`},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			_, err := protocol.Decode([]byte(tst.record))
			if err == nil {
				t.Fatalf("\t%s\tShould fail to decode %s.", failed, tst.record)
			}

			if !protocol.IsDecodeError(err) {
				t.Fatalf("\t%s\tShould report a DecodeError, got %T: %s", failed, err, err)
			}
			t.Logf("\t%s\tShould report a DecodeError: %s", success, err)
		}

		t.Run(tst.name, f)
	}

	_, err := protocol.Decode([]byte(`{"type":"HELLO"}`))
	if !errors.Is(err, protocol.ErrUnknownType) {
		t.Fatalf("\t%s\tShould identify an unknown type with ErrUnknownType: %v", failed, err)
	}
	t.Logf("\t%s\tShould identify an unknown type with ErrUnknownType.", success)
}

func Test_FrameErrors(t *testing.T) {
	t.Log("Given the need to detect broken frames.")
	{
		t.Log("\tTest 0:\tWhen the stream ends inside the length prefix.")
		{
			_, err := protocol.ReadFrame(bytes.NewReader([]byte{0, 0}))
			if !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Fatalf("\t%s\tTest 0:\tShould get io.ErrUnexpectedEOF, got %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get io.ErrUnexpectedEOF.", success)
		}

		t.Log("\tTest 1:\tWhen the stream ends inside the payload.")
		{
			data := []byte{0, 0, 0, 10, '{', '"'}
			_, err := protocol.ReadFrame(bytes.NewReader(data))
			if !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Fatalf("\t%s\tTest 1:\tShould get io.ErrUnexpectedEOF, got %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get io.ErrUnexpectedEOF.", success)
		}

		t.Log("\tTest 2:\tWhen the stream ends right after the prefix.")
		{
			_, err := protocol.ReadFrame(bytes.NewReader([]byte{0, 0, 0, 10}))
			if !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Fatalf("\t%s\tTest 2:\tShould get io.ErrUnexpectedEOF, got %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould get io.ErrUnexpectedEOF.", success)
		}

		t.Log("\tTest 3:\tWhen the stream is closed between frames.")
		{
			_, err := protocol.ReadFrame(bytes.NewReader(nil))
			if !errors.Is(err, io.EOF) {
				t.Fatalf("\t%s\tTest 3:\tShould get io.EOF, got %v", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould get io.EOF.", success)
		}

		t.Log("\tTest 4:\tWhen the length exceeds the maximum frame size.")
		{
			var prefix [4]byte
			binary.BigEndian.PutUint32(prefix[:], protocol.MaxFrameSize+1)
			_, err := protocol.ReadFrame(bytes.NewReader(prefix[:]))
			if !errors.Is(err, protocol.ErrFrameTooLarge) {
				t.Fatalf("\t%s\tTest 4:\tShould get ErrFrameTooLarge, got %v", failed, err)
			}
			t.Logf("\t%s\tTest 4:\tShould get ErrFrameTooLarge.", success)

			err = protocol.WriteFrame(io.Discard, make([]byte, protocol.MaxFrameSize+1))
			if !errors.Is(err, protocol.ErrFrameTooLarge) {
				t.Fatalf("\t%s\tTest 4:\tShould refuse to write a frame that is too large, got %v", failed, err)
			}
			t.Logf("\t%s\tTest 4:\tShould refuse to write a frame that is too large.", success)
		}

		t.Log("\tTest 5:\tWhen the length is zero.")
		{
			_, err := protocol.ReadFrame(bytes.NewReader([]byte{0, 0, 0, 0}))
			if !errors.Is(err, protocol.ErrEmptyFrame) {
				t.Fatalf("\t%s\tTest 5:\tShould get ErrEmptyFrame, got %v", failed, err)
			}
			t.Logf("\t%s\tTest 5:\tShould get ErrEmptyFrame.", success)
		}
	}
}

func Test_Conn(t *testing.T) {
	client, server := net.Pipe()

	cc := protocol.NewConn(client, time.Second)
	sc := protocol.NewConn(server, time.Second)
	defer cc.Close()
	defer sc.Close()

	msgs := []protocol.Message{
		protocol.Register{NodeID: "7"},
		protocol.BlockMined{Block: sampleBlock(), Attempts: 3, Elapsed: time.Second},
	}

	go func() {
		for _, msg := range msgs {
			if err := cc.Send(msg); err != nil {
				return
			}
		}
	}()

	for i, exp := range msgs {
		got, err := sc.Receive()
		if err != nil {
			t.Fatalf("\t%s\tShould receive message %d: %s", failed, i, err)
		}
		if !reflect.DeepEqual(got, exp) {
			t.Fatalf("\t%s\tShould receive message %d unchanged: got %#v", failed, i, got)
		}
	}
	t.Logf("\t%s\tShould carry messages across a connection in order.", success)

	cc.Close()
	if _, err := sc.Receive(); err == nil {
		t.Fatalf("\t%s\tShould fail to receive once the peer is gone.", failed)
	}
	t.Logf("\t%s\tShould fail to receive once the peer is gone.", success)
}
