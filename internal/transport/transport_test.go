package transport

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"

	"poisync/internal/wire"
)

func TestDatagramRoundTrip(t *testing.T) {
	from := wire.Endpoint{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	frame := wire.EncodeMessage(wire.TypeHeartbeat, 3, []byte{1, 2, 3})

	dgram := encodeDatagram(from, frame)
	if len(dgram) != endpointPrefixLen+len(frame) {
		t.Fatalf("datagram length: got %d, want %d", len(dgram), endpointPrefixLen+len(frame))
	}

	gotFrom, gotFrame, ok := decodeDatagram(dgram)
	if !ok {
		t.Fatal("decode failed")
	}
	if gotFrom != from {
		t.Errorf("sender: got %s, want %s", gotFrom, from)
	}
	if !bytes.Equal(gotFrame, frame) {
		t.Errorf("frame: got %v, want %v", gotFrame, frame)
	}
}

func TestDecodeDatagram_Rejects(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"prefix only", make([]byte, endpointPrefixLen)},
		{"short prefix", make([]byte, endpointPrefixLen-1)},
	}
	for _, tc := range cases {
		if _, _, ok := decodeDatagram(tc.data); ok {
			t.Errorf("%s: datagram accepted, want rejection", tc.name)
		}
	}
}

func TestNewUDP_InvalidGroup(t *testing.T) {
	if _, err := NewUDP("", "not-an-ip", 17580, wire.Endpoint{}, zerolog.Nop()); err == nil {
		t.Error("invalid group accepted")
	}
}

func TestNewUDP_UnknownInterface(t *testing.T) {
	if _, err := NewUDP("definitely-not-a-nic0", "239.80.79.73", 17580, wire.Endpoint{}, zerolog.Nop()); err == nil {
		t.Error("unknown interface accepted")
	}
}
