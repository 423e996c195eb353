// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/patchline-project/patchline/lib/codec"
)

// Frame type constants. Client-to-daemon types occupy 0x01-0x0f,
// daemon-to-client types 0x10-0x1f.
const (
	// FrameHello opens a session. First client message after connect.
	FrameHello byte = 0x01

	// FrameCreateObject asks the daemon to instantiate an object
	// through a named factory.
	FrameCreateObject byte = 0x02

	// FrameDestroyGlobal destroys a global object by id.
	FrameDestroyGlobal byte = 0x03

	// FrameBye announces an orderly disconnect.
	FrameBye byte = 0x04

	// FrameSync asks the daemon to echo a Done frame once every
	// message sent before the Sync has been processed.
	FrameSync byte = 0x05

	// FrameCoreInfo is the daemon's session greeting; its arrival
	// marks the connection ready.
	FrameCoreInfo byte = 0x10

	// FrameGlobalAdded advertises a new or re-advertised global.
	FrameGlobalAdded byte = 0x11

	// FrameGlobalRemoved withdraws a global.
	FrameGlobalRemoved byte = 0x12

	// FrameBound tells the creating client which global id its
	// proxy received.
	FrameBound byte = 0x13

	// FrameLinkInfo is a link proxy state update.
	FrameLinkInfo byte = 0x14

	// FrameCoreError reports a failed client request.
	FrameCoreError byte = 0x15

	// FrameDone answers a Sync: all messages sent before the Sync
	// have been processed and their effects advertised.
	FrameDone byte = 0x16
)

// frameHeaderLength is the fixed size of a frame header: 1 byte type
// + 4 bytes payload length.
const frameHeaderLength = 5

// maxPayloadLength bounds a single CBOR payload. Control-plane
// metadata is small; 1 MiB leaves ample headroom for property-heavy
// registries.
const maxPayloadLength = 1 << 20

// Frame is one protocol message: a type byte and its CBOR payload.
type Frame struct {
	Type    byte
	Payload []byte
}

// WriteFrame encodes payload as CBOR and writes a framed message to w.
// The frame format is: [1 byte type] [4 bytes payload length,
// big-endian uint32] [CBOR payload].
func WriteFrame(w io.Writer, frameType byte, payload any) error {
	encoded, err := codec.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode frame payload: %w", err)
	}
	var header [frameHeaderLength]byte
	header[0] = frameType
	binary.BigEndian.PutUint32(header[1:5], uint32(len(encoded)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(encoded) > 0 {
		if _, err := w.Write(encoded); err != nil {
			return fmt.Errorf("write frame payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one framed message from r. Returns an error if the
// stream is malformed or the payload exceeds maxPayloadLength. The
// payload is returned undecoded; callers dispatch on Frame.Type and
// decode with DecodePayload.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, fmt.Errorf("read frame header: %w", err)
	}
	frameType := header[0]
	payloadLength := binary.BigEndian.Uint32(header[1:5])
	if payloadLength > maxPayloadLength {
		return Frame{}, fmt.Errorf("payload length %d exceeds maximum %d", payloadLength, maxPayloadLength)
	}
	payload := make([]byte, payloadLength)
	if payloadLength > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, fmt.Errorf("read frame payload: %w", err)
		}
	}
	return Frame{Type: frameType, Payload: payload}, nil
}

// DecodePayload decodes a frame payload into v.
func DecodePayload(frame Frame, v any) error {
	if err := codec.Unmarshal(frame.Payload, v); err != nil {
		return fmt.Errorf("decode frame type 0x%02x payload: %w", frame.Type, err)
	}
	return nil
}
