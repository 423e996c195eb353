// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"
)

func TestFrameRoundtrip(t *testing.T) {
	var buffer bytes.Buffer

	original := CreateObject{
		ProxyID:     3,
		FactoryName: "link-factory",
		Properties: map[string]string{
			KeyLinkOutputNode: "2",
			KeyLinkOutputPort: "5",
			KeyLinkInputNode:  "3",
			KeyLinkInputPort:  "9",
			KeyObjectLinger:   "1",
		},
	}
	if err := WriteFrame(&buffer, FrameCreateObject, original); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	frame, err := ReadFrame(&buffer)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if frame.Type != FrameCreateObject {
		t.Fatalf("frame type = 0x%02x, want 0x%02x", frame.Type, FrameCreateObject)
	}

	var decoded CreateObject
	if err := DecodePayload(frame, &decoded); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if decoded.ProxyID != original.ProxyID || decoded.FactoryName != original.FactoryName {
		t.Errorf("decoded %+v, want %+v", decoded, original)
	}
	if decoded.Properties[KeyLinkInputPort] != "9" {
		t.Errorf("input port property = %q, want 9", decoded.Properties[KeyLinkInputPort])
	}
}

func TestFrameEmptyPayload(t *testing.T) {
	var buffer bytes.Buffer
	if err := WriteFrame(&buffer, FrameBye, Bye{}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	frame, err := ReadFrame(&buffer)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	var decoded Bye
	if err := DecodePayload(frame, &decoded); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
}

func TestReadFrameRejectsOversizePayload(t *testing.T) {
	var header [frameHeaderLength]byte
	header[0] = FrameGlobalAdded
	binary.BigEndian.PutUint32(header[1:5], maxPayloadLength+1)

	_, err := ReadFrame(bytes.NewReader(header[:]))
	if err == nil {
		t.Fatal("ReadFrame accepted oversize payload length")
	}
	if !strings.Contains(err.Error(), "exceeds maximum") {
		t.Errorf("error %q does not mention the size limit", err)
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	var buffer bytes.Buffer
	if err := WriteFrame(&buffer, FrameGlobalRemoved, GlobalRemoved{ID: 12}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	truncated := buffer.Bytes()[:buffer.Len()-1]

	_, err := ReadFrame(bytes.NewReader(truncated))
	if err == nil {
		t.Fatal("ReadFrame accepted truncated payload")
	}
}

func TestReadFrameTruncatedHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{FrameCoreInfo, 0x00}))
	if err == nil {
		t.Fatal("ReadFrame accepted truncated header")
	}
}

func TestReadFrameEmptyStream(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	if err == nil {
		t.Fatal("ReadFrame on empty stream succeeded")
	}
	// EOF on a frame boundary must stay recognizable so session loops
	// can distinguish orderly close from mid-frame corruption.
	if !strings.Contains(err.Error(), io.EOF.Error()) {
		t.Errorf("error %q does not wrap io.EOF", err)
	}
}

func TestGlobalRoundtripPreservesUnknownKind(t *testing.T) {
	var buffer bytes.Buffer
	original := GlobalAdded{Global: Global{
		ID:          41,
		Kind:        KindFromTypeName("Routing:Object:Profiler"),
		Version:     3,
		Permissions: PermRead,
		Properties:  map[string]string{"profiler.name": "cycle-counter"},
	}}
	if err := WriteFrame(&buffer, FrameGlobalAdded, original); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	frame, err := ReadFrame(&buffer)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	var decoded GlobalAdded
	if err := DecodePayload(frame, &decoded); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if decoded.Global.Kind != ObjectKind("Profiler") {
		t.Errorf("kind = %q, want Profiler carried verbatim", decoded.Global.Kind)
	}
	if decoded.Global.Kind.Known() {
		t.Error("unknown kind reported as known")
	}
	if decoded.Global.Kind.TypeName() != "Routing:Object:Profiler" {
		t.Errorf("type name = %q", decoded.Global.Kind.TypeName())
	}
}
