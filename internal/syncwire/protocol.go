// Package syncwire carries mergeable-store change sets over WebSocket.
// The server is just another peer: every connection speaks the same two
// frames, and convergence comes entirely from the store's merge rule.
package syncwire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/store"
)

// FrameType enumerates wire frames.
type FrameType string

const (
	// FrameLoad asks the receiving peer for its full change set. A fresh
	// connection fully resynchronizes with load-then-save, no message
	// history required.
	FrameLoad FrameType = "load"
	// FrameChanges carries a change set (incremental or full state).
	FrameChanges FrameType = "changes"
)

// ErrMalformedFrame indicates an inbound message that does not decode to a
// known frame. The single frame is dropped; local state stays unchanged.
var ErrMalformedFrame = errors.New("syncwire: malformed frame")

// Frame is one WebSocket message, CBOR-encoded in binary frames.
type Frame struct {
	Type    FrameType       `json:"t"`
	Changes store.ChangeSet `json:"c,omitempty"`
}

// EncodeFrame serializes a frame for the wire.
func EncodeFrame(frame Frame) ([]byte, error) {
	return cbor.Marshal(frame)
}

// DecodeFrame parses an inbound message, rejecting unknown frame types.
func DecodeFrame(message []byte) (Frame, error) {
	var frame Frame
	if err := cbor.Unmarshal(message, &frame); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	switch frame.Type {
	case FrameLoad, FrameChanges:
		return frame, nil
	default:
		return Frame{}, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, frame.Type)
	}
}
