package wire

import (
	"bytes"
	"testing"
)

func TestEncodeMessage_Envelope(t *testing.T) {
	data := EncodeMessage(TypeSetBrightness, 7, []byte{200})

	want := []byte{Magic0, Magic1, TypeSetBrightness, 7, 200}
	if !bytes.Equal(data, want) {
		t.Errorf("encoded message: got %v, want %v", data, want)
	}
}

func TestEncodeMessage_TruncatesOverlongPayload(t *testing.T) {
	payload := make([]byte, MaxPayload+50)
	data := EncodeMessage(TypeHeartbeat, 0, payload)

	if len(data) != HeaderSize+MaxPayload {
		t.Errorf("encoded length: got %d, want %d", len(data), HeaderSize+MaxPayload)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	msgType, seq, payload, ok := DecodeEnvelope([]byte{Magic0, Magic1, TypeSetMode, 42, 2, 5})
	if !ok {
		t.Fatal("valid envelope rejected")
	}
	if msgType != TypeSetMode {
		t.Errorf("type: got 0x%02x, want 0x%02x", msgType, TypeSetMode)
	}
	if seq != 42 {
		t.Errorf("seq: got %d, want 42", seq)
	}
	if !bytes.Equal(payload, []byte{2, 5}) {
		t.Errorf("payload: got %v, want [2 5]", payload)
	}
}

func TestDecodeEnvelope_Rejects(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte{Magic0, Magic1, TypeHeartbeat}},
		{"bad magic0", []byte{0x00, Magic1, TypeHeartbeat, 0}},
		{"bad magic1", []byte{Magic0, 0x00, TypeHeartbeat, 0}},
	}
	for _, tc := range cases {
		if _, _, _, ok := DecodeEnvelope(tc.data); ok {
			t.Errorf("%s: envelope accepted, want rejection", tc.name)
		}
	}
}

func TestDecodeEnvelope_EmptyPayload(t *testing.T) {
	_, _, payload, ok := DecodeEnvelope([]byte{Magic0, Magic1, TypeUnpair, 0})
	if !ok {
		t.Fatal("minimal envelope rejected")
	}
	if len(payload) != 0 {
		t.Errorf("payload length: got %d, want 0", len(payload))
	}
}

func TestPairPayload_RoundTrip(t *testing.T) {
	ep, err := ParseEndpoint("bb:bb:bb:bb:bb:bb")
	if err != nil {
		t.Fatalf("parse endpoint: %v", err)
	}

	original := PairPayload{Endpoint: ep, Name: "PoiB", Accepted: true}
	data := original.Encode()

	if len(data) != PairPayloadSize {
		t.Fatalf("encoded size: got %d, want %d", len(data), PairPayloadSize)
	}

	decoded, ok := DecodePair(data)
	if !ok {
		t.Fatal("decode failed")
	}
	if decoded.Endpoint != ep {
		t.Errorf("endpoint: got %s, want %s", decoded.Endpoint, ep)
	}
	if decoded.Name != "PoiB" {
		t.Errorf("name: got %q, want PoiB", decoded.Name)
	}
	if !decoded.Accepted {
		t.Error("accepted flag lost")
	}
}

func TestPairPayload_NameTruncation(t *testing.T) {
	long := "this-name-is-much-longer-than-twenty-four-bytes"
	data := PairPayload{Name: long}.Encode()

	decoded, ok := DecodePair(data)
	if !ok {
		t.Fatal("decode failed")
	}
	if len(decoded.Name) >= NameLen {
		t.Errorf("name not truncated: %d bytes", len(decoded.Name))
	}
	if decoded.Name != long[:len(decoded.Name)] {
		t.Errorf("name prefix mangled: %q", decoded.Name)
	}
}

func TestDecodePair_Undersized(t *testing.T) {
	if _, ok := DecodePair(make([]byte, PairPayloadSize-1)); ok {
		t.Error("undersized pair payload accepted")
	}
}

func TestHeartbeatPayload_Layout(t *testing.T) {
	hb := HeartbeatPayload{
		Mode:       3,
		Index:      9,
		Brightness: 200,
		FrameDelay: 20,
		UptimeMs:   0x01020304,
		SyncMode:   SyncIndependent,
		Name:       "PoiA",
	}
	data := hb.Encode()

	if len(data) != HeartbeatPayloadSize {
		t.Fatalf("encoded size: got %d, want %d", len(data), HeartbeatPayloadSize)
	}
	// uptimeMs is little-endian at offset 4
	if data[4] != 0x04 || data[5] != 0x03 || data[6] != 0x02 || data[7] != 0x01 {
		t.Errorf("uptime bytes: got % x, want 04 03 02 01", data[4:8])
	}
	if data[8] != uint8(SyncIndependent) {
		t.Errorf("sync mode byte: got %d, want %d", data[8], SyncIndependent)
	}

	decoded, ok := DecodeHeartbeat(data)
	if !ok {
		t.Fatal("decode failed")
	}
	if decoded != hb {
		t.Errorf("round trip: got %+v, want %+v", decoded, hb)
	}
}

func TestSyncTimePayload_LittleEndian(t *testing.T) {
	data := SyncTimePayload{SenderClockMs: 50000}.Encode()

	decoded, ok := DecodeSyncTime(data)
	if !ok {
		t.Fatal("decode failed")
	}
	if decoded.SenderClockMs != 50000 {
		t.Errorf("clock: got %d, want 50000", decoded.SenderClockMs)
	}
	// 50000 = 0xC350
	if data[0] != 0x50 || data[1] != 0xC3 || data[2] != 0 || data[3] != 0 {
		t.Errorf("bytes: got % x, want 50 c3 00 00", data)
	}
}

func TestPatternPayload_RoundTrip(t *testing.T) {
	p := PatternPayload{Index: 1, Type: 2, R1: 3, G1: 4, B1: 5, R2: 6, G2: 7, B2: 8, Speed: 9}
	decoded, ok := DecodePattern(p.Encode())
	if !ok {
		t.Fatal("decode failed")
	}
	if decoded != p {
		t.Errorf("round trip: got %+v, want %+v", decoded, p)
	}
}

func TestPeerCommandPayload_RoundTrip(t *testing.T) {
	p := PeerCommandPayload{CmdType: TypeSetBrightness, Data: []byte{1, 2, 3}}
	data := p.Encode()

	if len(data) != PeerCommandPayloadSize {
		t.Fatalf("encoded size: got %d, want %d", len(data), PeerCommandPayloadSize)
	}

	decoded, ok := DecodePeerCommand(data)
	if !ok {
		t.Fatal("decode failed")
	}
	if decoded.CmdType != p.CmdType {
		t.Errorf("cmd type: got %d, want %d", decoded.CmdType, p.CmdType)
	}
	if !bytes.Equal(decoded.Data, p.Data) {
		t.Errorf("data: got %v, want %v", decoded.Data, p.Data)
	}
}

func TestEndpoint_ParseAndString(t *testing.T) {
	ep, err := ParseEndpoint("aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if ep.String() != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("string: got %s, want aa:bb:cc:dd:ee:ff", ep.String())
	}

	if _, err := ParseEndpoint("aa:bb:cc"); err == nil {
		t.Error("short endpoint accepted")
	}
	if _, err := ParseEndpoint("zz:bb:cc:dd:ee:ff"); err == nil {
		t.Error("non-hex endpoint accepted")
	}
}

func TestParseSyncMode(t *testing.T) {
	if m, err := ParseSyncMode("mirror"); err != nil || m != SyncMirror {
		t.Errorf("mirror: got %v, %v", m, err)
	}
	if m, err := ParseSyncMode("independent"); err != nil || m != SyncIndependent {
		t.Errorf("independent: got %v, %v", m, err)
	}
	if _, err := ParseSyncMode("both"); err == nil {
		t.Error("bogus mode accepted")
	}
}
