// Package wire defines the poisync wire format: the message envelope and
// the per-type payload encodings.
//
// Envelope layout: [magic0][magic1][type][seq][payload...]. All multi-byte
// integers are little-endian. Payloads are encoded at fixed byte offsets so
// the on-air format is independent of Go struct layout.
package wire

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Protocol constants.
const (
	Magic0 = 0x4E // 'N'
	Magic1 = 0x50 // 'P'

	HeaderSize  = 4
	MaxPayload  = 244
	MaxDatagram = 250

	NameLen = 24
)

// Message types.
const (
	TypePairRequest   = 0x01
	TypePairResponse  = 0x02
	TypeUnpair        = 0x03
	TypeSetMode       = 0x10
	TypeSetPattern    = 0x11
	TypeSetBrightness = 0x12
	TypeSetFrameRate  = 0x13
	TypeHeartbeat     = 0x20
	TypeSyncTime      = 0x30
	TypePeerCommand   = 0x40
)

// SyncMode selects the coordination semantics between paired devices.
type SyncMode uint8

const (
	SyncMirror      SyncMode = 0
	SyncIndependent SyncMode = 1
)

func (m SyncMode) String() string {
	if m == SyncIndependent {
		return "independent"
	}
	return "mirror"
}

// ParseSyncMode parses "mirror" or "independent".
func ParseSyncMode(s string) (SyncMode, error) {
	switch strings.ToLower(s) {
	case "mirror":
		return SyncMirror, nil
	case "independent":
		return SyncIndependent, nil
	}
	return SyncMirror, fmt.Errorf("unknown sync mode %q", s)
}

// Endpoint is a transport-level device address (a 6-byte hardware address).
type Endpoint [6]byte

// Broadcast is the all-ones endpoint addressing every device in range.
var Broadcast = Endpoint{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

func (e Endpoint) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", e[0], e[1], e[2], e[3], e[4], e[5])
}

// IsZero reports whether the endpoint is all zeroes.
func (e Endpoint) IsZero() bool {
	return e == Endpoint{}
}

// ParseEndpoint parses a colon-separated hex address like "aa:bb:cc:dd:ee:ff".
func ParseEndpoint(s string) (Endpoint, error) {
	var ep Endpoint
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return ep, fmt.Errorf("invalid endpoint %q", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return ep, fmt.Errorf("invalid endpoint %q: %w", s, err)
		}
		ep[i] = byte(v)
	}
	return ep, nil
}

// EncodeMessage builds a complete on-air message from a type, sequence
// number and payload. The caller must keep the payload within MaxPayload;
// anything longer is truncated.
func EncodeMessage(msgType, seq byte, payload []byte) []byte {
	if len(payload) > MaxPayload {
		payload = payload[:MaxPayload]
	}
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = Magic0
	buf[1] = Magic1
	buf[2] = msgType
	buf[3] = seq
	copy(buf[HeaderSize:], payload)
	return buf
}

// DecodeEnvelope validates the envelope and returns the message type,
// sequence number and payload. ok is false for short buffers and magic
// mismatches; such datagrams are dropped without further interpretation.
func DecodeEnvelope(data []byte) (msgType, seq byte, payload []byte, ok bool) {
	if len(data) < HeaderSize {
		return 0, 0, nil, false
	}
	if data[0] != Magic0 || data[1] != Magic1 {
		return 0, 0, nil, false
	}
	return data[2], data[3], data[HeaderSize:], true
}

// putName writes a NUL-padded fixed-width name field.
func putName(dst []byte, name string) {
	for i := range dst {
		dst[i] = 0
	}
	n := copy(dst, name)
	if n == len(dst) {
		dst[len(dst)-1] = 0
	}
}

// getName reads a NUL-padded fixed-width name field.
func getName(src []byte) string {
	for i, b := range src {
		if b == 0 {
			return string(src[:i])
		}
	}
	return string(src)
}

// PairPayload is carried by PairRequest and PairResponse messages.
// Layout: endpoint(6) name(24) accepted(1).
type PairPayload struct {
	Endpoint Endpoint
	Name     string
	Accepted bool
}

// PairPayloadSize is the encoded size of a PairPayload.
const PairPayloadSize = 6 + NameLen + 1

func (p PairPayload) Encode() []byte {
	buf := make([]byte, PairPayloadSize)
	copy(buf[0:6], p.Endpoint[:])
	putName(buf[6:6+NameLen], p.Name)
	if p.Accepted {
		buf[30] = 1
	}
	return buf
}

func DecodePair(data []byte) (PairPayload, bool) {
	if len(data) < PairPayloadSize {
		return PairPayload{}, false
	}
	var p PairPayload
	copy(p.Endpoint[:], data[0:6])
	p.Name = getName(data[6 : 6+NameLen])
	p.Accepted = data[30] == 1
	return p, true
}

// ModePayload selects a display mode and an index within that mode.
// Layout: mode(1) index(1).
type ModePayload struct {
	Mode  uint8
	Index uint8
}

const ModePayloadSize = 2

func (p ModePayload) Encode() []byte {
	return []byte{p.Mode, p.Index}
}

func DecodeMode(data []byte) (ModePayload, bool) {
	if len(data) < ModePayloadSize {
		return ModePayload{}, false
	}
	return ModePayload{Mode: data[0], Index: data[1]}, true
}

// PatternPayload describes a procedural pattern with two colours and a speed.
// Layout: index(1) type(1) r1 g1 b1 r2 g2 b2 speed (1 each).
type PatternPayload struct {
	Index uint8
	Type  uint8
	R1    uint8
	G1    uint8
	B1    uint8
	R2    uint8
	G2    uint8
	B2    uint8
	Speed uint8
}

const PatternPayloadSize = 9

func (p PatternPayload) Encode() []byte {
	return []byte{p.Index, p.Type, p.R1, p.G1, p.B1, p.R2, p.G2, p.B2, p.Speed}
}

func DecodePattern(data []byte) (PatternPayload, bool) {
	if len(data) < PatternPayloadSize {
		return PatternPayload{}, false
	}
	return PatternPayload{
		Index: data[0], Type: data[1],
		R1: data[2], G1: data[3], B1: data[4],
		R2: data[5], G2: data[6], B2: data[7],
		Speed: data[8],
	}, true
}

// BrightnessPayload carries a global brightness level.
type BrightnessPayload struct {
	Brightness uint8
}

const BrightnessPayloadSize = 1

func (p BrightnessPayload) Encode() []byte {
	return []byte{p.Brightness}
}

func DecodeBrightness(data []byte) (BrightnessPayload, bool) {
	if len(data) < BrightnessPayloadSize {
		return BrightnessPayload{}, false
	}
	return BrightnessPayload{Brightness: data[0]}, true
}

// FrameRatePayload carries the inter-frame delay in milliseconds.
type FrameRatePayload struct {
	FrameDelay uint8
}

const FrameRatePayloadSize = 1

func (p FrameRatePayload) Encode() []byte {
	return []byte{p.FrameDelay}
}

func DecodeFrameRate(data []byte) (FrameRatePayload, bool) {
	if len(data) < FrameRatePayloadSize {
		return FrameRatePayload{}, false
	}
	return FrameRatePayload{FrameDelay: data[0]}, true
}

// HeartbeatPayload is the periodic liveness announcement with the sender's
// display state snapshot.
// Layout: mode(1) index(1) brightness(1) frameDelay(1) uptimeMs(4) syncMode(1) name(24).
type HeartbeatPayload struct {
	Mode       uint8
	Index      uint8
	Brightness uint8
	FrameDelay uint8
	UptimeMs   uint32
	SyncMode   SyncMode
	Name       string
}

const HeartbeatPayloadSize = 4 + 4 + 1 + NameLen

func (p HeartbeatPayload) Encode() []byte {
	buf := make([]byte, HeartbeatPayloadSize)
	buf[0] = p.Mode
	buf[1] = p.Index
	buf[2] = p.Brightness
	buf[3] = p.FrameDelay
	binary.LittleEndian.PutUint32(buf[4:8], p.UptimeMs)
	buf[8] = uint8(p.SyncMode)
	putName(buf[9:9+NameLen], p.Name)
	return buf
}

func DecodeHeartbeat(data []byte) (HeartbeatPayload, bool) {
	if len(data) < HeartbeatPayloadSize {
		return HeartbeatPayload{}, false
	}
	return HeartbeatPayload{
		Mode:       data[0],
		Index:      data[1],
		Brightness: data[2],
		FrameDelay: data[3],
		UptimeMs:   binary.LittleEndian.Uint32(data[4:8]),
		SyncMode:   SyncMode(data[8]),
		Name:       getName(data[9 : 9+NameLen]),
	}, true
}

// SyncTimePayload carries the sender's monotonic clock for phase alignment.
// Layout: senderClockMs(4).
type SyncTimePayload struct {
	SenderClockMs uint32
}

const SyncTimePayloadSize = 4

func (p SyncTimePayload) Encode() []byte {
	buf := make([]byte, SyncTimePayloadSize)
	binary.LittleEndian.PutUint32(buf, p.SenderClockMs)
	return buf
}

func DecodeSyncTime(data []byte) (SyncTimePayload, bool) {
	if len(data) < SyncTimePayloadSize {
		return SyncTimePayload{}, false
	}
	return SyncTimePayload{SenderClockMs: binary.LittleEndian.Uint32(data[0:4])}, true
}

// PeerCommandPayload wraps a sub-command targeted at one peer in
// independent mode. Reserved: encoded and decoded here but not routed by
// the dispatcher.
// Layout: cmdType(1) data(32) dataLen(1).
type PeerCommandPayload struct {
	CmdType uint8
	Data    []byte // at most PeerCommandDataLen bytes
}

const (
	PeerCommandDataLen     = 32
	PeerCommandPayloadSize = 1 + PeerCommandDataLen + 1
)

func (p PeerCommandPayload) Encode() []byte {
	buf := make([]byte, PeerCommandPayloadSize)
	buf[0] = p.CmdType
	n := copy(buf[1:1+PeerCommandDataLen], p.Data)
	buf[33] = byte(n)
	return buf
}

func DecodePeerCommand(data []byte) (PeerCommandPayload, bool) {
	if len(data) < PeerCommandPayloadSize {
		return PeerCommandPayload{}, false
	}
	n := int(data[33])
	if n > PeerCommandDataLen {
		n = PeerCommandDataLen
	}
	p := PeerCommandPayload{CmdType: data[0], Data: make([]byte, n)}
	copy(p.Data, data[1:1+n])
	return p, true
}
