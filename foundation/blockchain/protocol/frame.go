// Package protocol implements the messages exchanged between the coordinator
// and the workers and the framing used to carry them over a persistent
// connection. Every frame is a 4 byte big endian length followed by exactly
// that many bytes of a JSON record carrying a type field.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize is the largest payload a frame may carry.
const MaxFrameSize = 1 << 20

// lengthSize is the size of the frame length prefix.
const lengthSize = 4

// Set of framing errors.
var (
	ErrFrameTooLarge = errors.New("frame too large")
	ErrEmptyFrame    = errors.New("frame is empty")
)

// WriteFrame writes the payload as a single length prefixed frame. The prefix
// and payload are handed to the writer in one call so concurrent writers
// serialized by the caller never interleave partial frames.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyFrame
	}

	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(payload), MaxFrameSize)
	}

	buf := make([]byte, lengthSize+len(payload))
	binary.BigEndian.PutUint32(buf[:lengthSize], uint32(len(payload)))
	copy(buf[lengthSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return err
	}

	return nil
}

// ReadFrame reads the next frame and returns its payload. A connection that
// closes in the middle of a frame returns io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [lengthSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	switch {
	case length == 0:
		return nil, ErrEmptyFrame
	case length > MaxFrameSize:
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, MaxFrameSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return payload, nil
}
