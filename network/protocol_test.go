package network

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	body := []byte(`{"commandID":"c1"}`)
	packet, err := Encode(MsgTypeJoinGame, body)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if len(packet) != headerSize+len(body) {
		t.Fatalf("Unexpected packet length %d", len(packet))
	}

	decoded, err := Decode(packet)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if decoded.MsgID != MsgTypeJoinGame || int(decoded.Length) != len(body) || !bytes.Equal(decoded.Data, body) {
		t.Errorf("Decoded packet mismatch: %+v", decoded)
	}
}

func TestDecode_Short(t *testing.T) {
	if _, err := Decode([]byte{0, 1}); !errors.Is(err, io.ErrShortBuffer) {
		t.Errorf("Expected ErrShortBuffer for a truncated header, got %v", err)
	}
	// Header claims 10 bytes, only 2 follow.
	if _, err := Decode([]byte{0, 1, 0, 10, 'a', 'b'}); !errors.Is(err, io.ErrShortBuffer) {
		t.Errorf("Expected ErrShortBuffer for a truncated body, got %v", err)
	}
}

func TestEncode_TooLarge(t *testing.T) {
	if _, err := Encode(MsgTypeAreaUpdate, make([]byte, 0x10000)); !errors.Is(err, ErrPacketTooLarge) {
		t.Errorf("Expected ErrPacketTooLarge, got %v", err)
	}
}
