package engine

import (
	"poisync/internal/peers"
	"poisync/internal/wire"
)

// StartPairing broadcasts a pair request. Devices in range with auto-pair
// enabled respond and become paired; there is no retry — an unanswered
// request simply never produces a peer.
func (e *Engine) StartPairing() {
	e.run(func() {
		e.log.Info().Msg("Broadcasting pair request")
		req := wire.PairPayload{
			Endpoint: e.localEP,
			Name:     e.localName,
		}
		e.sendLocked(wire.Broadcast, wire.TypePairRequest, req.Encode())
	})
}

// UnpairAll notifies every paired peer and clears the registry.
func (e *Engine) UnpairAll() {
	e.run(func() {
		for i := 0; i < e.reg.Len(); i++ {
			p := e.reg.Get(i)
			if p.State == peers.StatePaired {
				e.sendLocked(p.Endpoint, wire.TypeUnpair, nil)
			}
			e.tr.DeregisterPeer(p.Endpoint)

			removed := *p
			removed.State = peers.StateNone
			removed.Online = false
			e.queuePeerUpdate(removed)
		}
		e.reg = peers.NewRegistry()
		e.log.Info().Msg("All peers unpaired")
	})
}

// UnpairPeer removes the peer at the given registry index, notifying it
// first if it was paired.
func (e *Engine) UnpairPeer(index int) {
	e.run(func() {
		p := e.reg.Get(index)
		if p == nil {
			return
		}
		if p.State == peers.StatePaired {
			e.sendLocked(p.Endpoint, wire.TypeUnpair, nil)
		}
		e.tr.DeregisterPeer(p.Endpoint)

		removed := *p
		removed.State = peers.StateNone
		removed.Online = false
		e.reg.Remove(index)
		e.queuePeerUpdate(removed)

		e.log.Info().Str("peer", removed.Name).Msg("Peer unpaired")
	})
}

// The broadcast operations mirror a local state change to every paired,
// online peer. They are no-ops outside mirror mode or with no online peer.

func (e *Engine) BroadcastModeChange(mode, index uint8) {
	e.run(func() {
		if e.syncMode != wire.SyncMirror || !e.hasPairedOnlineLocked() {
			return
		}
		p := wire.ModePayload{Mode: mode, Index: index}
		e.broadcastToPeersLocked(wire.TypeSetMode, p.Encode())
	})
}

func (e *Engine) BroadcastPattern(p wire.PatternPayload) {
	e.run(func() {
		if e.syncMode != wire.SyncMirror || !e.hasPairedOnlineLocked() {
			return
		}
		e.broadcastToPeersLocked(wire.TypeSetPattern, p.Encode())
	})
}

func (e *Engine) BroadcastBrightness(brightness uint8) {
	e.run(func() {
		if e.syncMode != wire.SyncMirror || !e.hasPairedOnlineLocked() {
			return
		}
		p := wire.BrightnessPayload{Brightness: brightness}
		e.broadcastToPeersLocked(wire.TypeSetBrightness, p.Encode())
	})
}

func (e *Engine) BroadcastFrameRate(frameDelay uint8) {
	e.run(func() {
		if e.syncMode != wire.SyncMirror || !e.hasPairedOnlineLocked() {
			return
		}
		p := wire.FrameRatePayload{FrameDelay: frameDelay}
		e.broadcastToPeersLocked(wire.TypeSetFrameRate, p.Encode())
	})
}

// The targeted operations address exactly one peer by registry index, for
// independent-mode control. Unlike the broadcast path they are attempted
// even when the peer is currently marked offline.

func (e *Engine) SendPeerModeChange(peerIndex int, mode, index uint8) {
	e.sendToPeer(peerIndex, wire.TypeSetMode, wire.ModePayload{Mode: mode, Index: index}.Encode())
}

func (e *Engine) SendPeerPattern(peerIndex int, p wire.PatternPayload) {
	e.sendToPeer(peerIndex, wire.TypeSetPattern, p.Encode())
}

func (e *Engine) SendPeerBrightness(peerIndex int, brightness uint8) {
	e.sendToPeer(peerIndex, wire.TypeSetBrightness, wire.BrightnessPayload{Brightness: brightness}.Encode())
}

func (e *Engine) SendPeerFrameRate(peerIndex int, frameDelay uint8) {
	e.sendToPeer(peerIndex, wire.TypeSetFrameRate, wire.FrameRatePayload{FrameDelay: frameDelay}.Encode())
}

func (e *Engine) sendToPeer(peerIndex int, msgType byte, payload []byte) {
	e.run(func() {
		p := e.reg.Get(peerIndex)
		if p == nil || p.State != peers.StatePaired {
			return
		}
		e.sendLocked(p.Endpoint, msgType, payload)
	})
}
