// Package protocol implements the TCP wire format: 4-byte big-endian length
// frames around msgpack envelopes of the form {t: type, d: payload}.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Message type codes. Codes 1-13 are the core protocol, 20+ the inventory
// and catalog extensions.
const (
	TypeAuth            = 1
	TypeAuthResponse    = 2
	TypePlayerJoin      = 3
	TypePlayerLeave     = 4
	TypePlayerMove      = 5
	TypeChunkRequest    = 6
	TypeChunkData       = 7
	TypeEntityUpdate    = 8
	TypeEntityAdd       = 9
	TypeEntityRemove    = 10
	TypePlayerAction    = 11
	TypeWorldTick       = 12 // reserved, never sent
	TypeSync            = 13
	TypeInventoryUpdate = 20
	TypeInventoryAction = 21
	TypeCatalog         = 22
)

// PLAYER_ACTION subtypes.
const (
	ActionBuild     = 1
	ActionDestroy   = 2
	ActionConfigure = 3
)

// INVENTORY_ACTION subtypes.
const (
	InvActionPickup       = 1
	InvActionDrop         = 2
	InvActionTransferTo   = 3
	InvActionTransferFrom = 4
	InvActionSwap         = 5
	InvActionCraft        = 6
	InvActionSplit        = 7
	InvActionSort         = 8
)

// MaxFrameSize bounds a single frame. The largest legitimate payload is a
// CHUNK_DATA with a full entity set, far under a megabyte.
const MaxFrameSize = 1 << 20

// ErrFrameTooLarge is returned for frames whose declared length exceeds
// MaxFrameSize; the connection cannot be resynchronized past it.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// errMalformed marks a frame whose payload did not decode. The reader skips
// such frames, matching the tolerant parsing on the client side.
var errMalformed = errors.New("malformed frame payload")

type envelope struct {
	T int                `msgpack:"t"`
	D msgpack.RawMessage `msgpack:"d"`
}

// Message is one decoded frame.
type Message struct {
	Type int
	Data msgpack.RawMessage
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v interface{}) error {
	if err := msgpack.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("failed to decode message type %d: %w", m.Type, err)
	}
	return nil
}

// Encode builds a complete frame: length prefix plus envelope.
func Encode(msgType int, payload interface{}) ([]byte, error) {
	data, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload of type %d: %w", msgType, err)
	}
	packed, err := msgpack.Marshal(envelope{T: msgType, D: data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope of type %d: %w", msgType, err)
	}

	frame := make([]byte, 4+len(packed))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(packed)))
	copy(frame[4:], packed)
	return frame, nil
}

// Write encodes one message and writes the full frame.
func Write(w io.Writer, msgType int, payload interface{}) error {
	frame, err := Encode(msgType, payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Reader decodes frames off a stream. Corrupt payloads are skipped frame by
// frame; only framing-level damage kills the connection.
type Reader struct {
	r io.Reader
}

// NewReader wraps a stream.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next blocks for the next well-formed message. io.EOF signals a clean
// close.
func (r *Reader) Next() (*Message, error) {
	for {
		msg, err := r.readFrame()
		if err == errMalformed {
			continue
		}
		if err != nil {
			return nil, err
		}
		return msg, nil
	}
}

func (r *Reader) readFrame() (*Message, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r.r, prefix[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}

	var env envelope
	if err := msgpack.Unmarshal(payload, &env); err != nil {
		return nil, errMalformed
	}
	return &Message{Type: env.T, Data: env.D}, nil
}
