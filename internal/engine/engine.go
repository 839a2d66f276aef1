// Package engine implements the poisync peer-synchronization core: the
// pairing state machine, heartbeat liveness tracking, clock-offset
// estimation and command fan-out to paired devices.
//
// The engine owns the peer registry. The host drives it from two sides: a
// periodic Tick from the main loop and HandleDatagram from the transport's
// receive path, which may run on a different goroutine. A single mutex
// serializes both; callbacks fire synchronously at the end of each entry
// point, after the lock is released.
package engine

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"poisync/internal/peers"
	"poisync/internal/transport"
	"poisync/internal/wire"
)

// Protocol timing, in milliseconds. Fixed by the wire protocol, never
// negotiated at runtime.
const (
	heartbeatIntervalMs = 2000
	offlineTimeoutMs    = 10000
	staleTimeoutMs      = 30000
	timeSyncIntervalMs  = 5000
)

// Callbacks are invoked when a remote peer pushes state to this device or
// when a peer's lifecycle changes. Nil entries are skipped. Invocation is
// synchronous and in arrival order; callbacks must not block.
type Callbacks struct {
	ModeChange func(mode, index uint8)
	Pattern    func(p wire.PatternPayload)
	Brightness func(brightness uint8)
	FrameRate  func(frameDelayMs uint8)
	SyncTime   func(offsetMs int32)
	// PeerUpdate fires on pairing, discovery, online/offline transitions
	// and removal. A removed peer is reported with State == StateNone.
	PeerUpdate func(p peers.Peer)
}

// Config carries the immutable identity and the initial settings.
type Config struct {
	Endpoint wire.Endpoint
	Name     string
	AutoPair bool
	SyncMode wire.SyncMode
	// Clock overrides the engine's millisecond monotonic clock. Tests
	// inject a fake; nil means milliseconds since New.
	Clock func() int64
}

// Engine is the peer-synchronization core for one device.
type Engine struct {
	tr  transport.Transport
	log zerolog.Logger
	cb  Callbacks

	localEP   wire.Endpoint
	localName string
	clock     func() int64

	mu       sync.Mutex
	reg      *peers.Registry
	syncMode wire.SyncMode
	autoPair bool
	seq      byte

	localMode       uint8
	localIndex      uint8
	localBrightness uint8
	localFrameDelay uint8

	timeOffset    int32
	lastHeartbeat int64
	lastTimeSync  int64

	pending []func()
}

// New creates an engine bound to the given transport. The transport's
// receive path must be wired to HandleDatagram by the caller.
func New(cfg Config, tr transport.Transport, cb Callbacks, log zerolog.Logger) *Engine {
	clock := cfg.Clock
	if clock == nil {
		start := time.Now()
		clock = func() int64 { return time.Since(start).Milliseconds() }
	}
	return &Engine{
		tr:              tr,
		log:             log,
		cb:              cb,
		localEP:         cfg.Endpoint,
		localName:       cfg.Name,
		clock:           clock,
		reg:             peers.NewRegistry(),
		syncMode:        cfg.SyncMode,
		autoPair:        cfg.AutoPair,
		localBrightness: 128,
		localFrameDelay: 20,
	}
}

// run executes fn under the engine lock, then fires any callbacks fn
// queued. Every public entry point goes through here so callbacks never
// run while the lock is held.
func (e *Engine) run(fn func()) {
	e.mu.Lock()
	fn()
	fns := e.pending
	e.pending = nil
	e.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

func (e *Engine) queuePeerUpdate(p peers.Peer) {
	if e.cb.PeerUpdate == nil {
		return
	}
	e.pending = append(e.pending, func() { e.cb.PeerUpdate(p) })
}

// Tick advances the periodic work: heartbeat broadcast, the liveness
// sweep, and time-sync broadcast. The host calls it from its main loop.
func (e *Engine) Tick() {
	e.run(func() {
		now := e.clock()

		if now-e.lastHeartbeat >= heartbeatIntervalMs {
			e.lastHeartbeat = now
			e.sendHeartbeatLocked(now)
			e.sweepLocked(now)
		}

		if e.syncMode == wire.SyncMirror && e.hasPairedOnlineLocked() &&
			now-e.lastTimeSync >= timeSyncIntervalMs {
			e.lastTimeSync = now
			e.sendTimeSyncLocked(now)
		}
	})
}

func (e *Engine) sendHeartbeatLocked(now int64) {
	hb := wire.HeartbeatPayload{
		Mode:       e.localMode,
		Index:      e.localIndex,
		Brightness: e.localBrightness,
		FrameDelay: e.localFrameDelay,
		UptimeMs:   uint32(now),
		SyncMode:   e.syncMode,
		Name:       e.localName,
	}
	// Heartbeats go to the broadcast address so unpaired devices can
	// discover us too.
	e.sendLocked(wire.Broadcast, wire.TypeHeartbeat, hb.Encode())
}

func (e *Engine) sendTimeSyncLocked(now int64) {
	p := wire.SyncTimePayload{SenderClockMs: uint32(now)}
	e.broadcastToPeersLocked(wire.TypeSyncTime, p.Encode())
}

// sweepLocked recomputes online state for paired peers and prunes stale
// records that never completed pairing.
func (e *Engine) sweepLocked(now int64) {
	for i := 0; i < e.reg.Len(); i++ {
		p := e.reg.Get(i)

		if p.State == peers.StatePaired {
			wasOnline := p.Online
			p.Online = now-p.LastSeen < offlineTimeoutMs
			if wasOnline && !p.Online {
				e.log.Info().
					Str("peer", p.Name).
					Str("endpoint", p.Endpoint.String()).
					Msg("Peer went offline")
				e.queuePeerUpdate(*p)
			}
			continue
		}

		if now-p.LastSeen > staleTimeoutMs {
			e.log.Debug().
				Str("endpoint", p.Endpoint.String()).
				Str("state", p.State.String()).
				Msg("Pruning stale discovery entry")
			e.tr.DeregisterPeer(p.Endpoint)
			removed := *p
			removed.State = peers.StateNone
			removed.Online = false
			e.reg.Remove(i)
			e.queuePeerUpdate(removed)
			i--
		}
	}
}

// sendLocked encodes and transmits one message, consuming a sequence
// number. Sends are fire-and-forget; failures are logged and dropped.
func (e *Engine) sendLocked(to wire.Endpoint, msgType byte, payload []byte) {
	data := wire.EncodeMessage(msgType, e.seq, payload)
	e.seq++

	var err error
	if to == wire.Broadcast {
		err = e.tr.Broadcast(data)
	} else {
		err = e.tr.Send(to, data)
	}
	if err != nil {
		e.log.Debug().
			Err(err).
			Uint8("type", msgType).
			Str("to", to.String()).
			Msg("Send failed")
	}
}

// broadcastToPeersLocked fans a message out to every paired, online peer.
func (e *Engine) broadcastToPeersLocked(msgType byte, payload []byte) {
	for i := 0; i < e.reg.Len(); i++ {
		p := e.reg.Get(i)
		if p.State == peers.StatePaired && p.Online {
			e.sendLocked(p.Endpoint, msgType, payload)
		}
	}
}

func (e *Engine) hasPairedOnlineLocked() bool {
	for i := 0; i < e.reg.Len(); i++ {
		p := e.reg.Get(i)
		if p.State == peers.StatePaired && p.Online {
			return true
		}
	}
	return false
}

// SetLocalState records the local display state echoed in heartbeats.
func (e *Engine) SetLocalState(mode, index, brightness, frameDelay uint8) {
	e.run(func() {
		e.localMode = mode
		e.localIndex = index
		e.localBrightness = brightness
		e.localFrameDelay = frameDelay
	})
}

// SetSyncMode switches between mirrored and independent coordination.
func (e *Engine) SetSyncMode(m wire.SyncMode) {
	e.run(func() {
		e.syncMode = m
		e.log.Info().Str("mode", m.String()).Msg("Sync mode changed")
	})
}

// SyncMode returns the current coordination mode.
func (e *Engine) SyncMode() wire.SyncMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncMode
}

// SetAutoPair enables or disables automatic acceptance of pair requests.
func (e *Engine) SetAutoPair(enabled bool) {
	e.run(func() { e.autoPair = enabled })
}

// AutoPair reports whether inbound pair requests are auto-accepted.
func (e *Engine) AutoPair() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoPair
}

// PeerCount returns the number of registry records, paired or not.
func (e *Engine) PeerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Len()
}

// Peer returns a snapshot of the record at the given registry index.
func (e *Engine) Peer(index int) (peers.Peer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Snapshot(index)
}

// Peers returns a snapshot of the whole registry.
func (e *Engine) Peers() []peers.Peer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.All()
}

// HasPairedPeer reports whether at least one peer is paired and online.
func (e *Engine) HasPairedPeer() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasPairedOnlineLocked()
}

// TimeOffset returns the most recent clock-offset estimate in
// milliseconds. Positive means the peer's clock is ahead of ours.
func (e *Engine) TimeOffset() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeOffset
}

// LocalEndpoint returns this device's transport address.
func (e *Engine) LocalEndpoint() wire.Endpoint { return e.localEP }

// LocalName returns this device's display name.
func (e *Engine) LocalName() string { return e.localName }

// RestorePeer reinstates a previously paired peer, typically loaded from
// the on-disk pair store at startup. The peer starts offline; its first
// heartbeat brings it online.
func (e *Engine) RestorePeer(ep wire.Endpoint, name string) bool {
	restored := false
	e.run(func() {
		idx := e.reg.Insert(ep)
		if idx < 0 {
			e.log.Warn().Str("endpoint", ep.String()).Msg("No peer slot to restore pairing")
			return
		}
		p := e.reg.Get(idx)
		p.Name = name
		p.State = peers.StatePaired
		p.LastSeen = e.clock()
		p.Online = false
		e.tr.RegisterPeer(ep)
		restored = true
	})
	return restored
}
