package engine

import (
	"poisync/internal/peers"
	"poisync/internal/wire"
)

// HandleDatagram is the single inbound entry point. The transport invokes
// it for every received datagram; malformed envelopes and loop-backs are
// dropped silently.
func (e *Engine) HandleDatagram(from wire.Endpoint, data []byte) {
	msgType, _, payload, ok := wire.DecodeEnvelope(data)
	if !ok {
		return
	}
	if from == e.localEP {
		return
	}

	e.run(func() {
		switch msgType {
		case wire.TypePairRequest:
			e.handlePairRequestLocked(from, payload)
		case wire.TypePairResponse:
			e.handlePairResponseLocked(from, payload)
		case wire.TypeUnpair:
			e.handleUnpairLocked(from)
		case wire.TypeSetMode:
			e.handleSetModeLocked(from, payload)
		case wire.TypeSetPattern:
			e.handleSetPatternLocked(from, payload)
		case wire.TypeSetBrightness:
			e.handleSetBrightnessLocked(from, payload)
		case wire.TypeSetFrameRate:
			e.handleSetFrameRateLocked(from, payload)
		case wire.TypeHeartbeat:
			e.handleHeartbeatLocked(from, payload)
		case wire.TypeSyncTime:
			e.handleSyncTimeLocked(from, payload)
		case wire.TypePeerCommand:
			// Reserved for independent-mode sub-commands; not routed yet.
			e.log.Debug().Str("from", from.String()).Msg("Peer command ignored")
		default:
			e.log.Debug().
				Uint8("type", msgType).
				Str("from", from.String()).
				Msg("Unknown message type")
		}
	})
}

func (e *Engine) handlePairRequestLocked(from wire.Endpoint, payload []byte) {
	req, ok := wire.DecodePair(payload)
	if !ok {
		return
	}

	e.log.Info().
		Str("peer", req.Name).
		Str("endpoint", from.String()).
		Msg("Pair request received")

	if !e.autoPair {
		e.log.Info().Msg("Auto-pair disabled, ignoring pair request")
		return
	}

	idx := e.reg.Insert(from)
	if idx < 0 {
		e.log.Warn().Msg("Peer table full, pair request ignored")
		return
	}
	e.tr.RegisterPeer(from)

	p := e.reg.Get(idx)
	p.Name = req.Name
	p.State = peers.StatePaired
	p.LastSeen = e.clock()
	p.Online = true

	resp := wire.PairPayload{
		Endpoint: e.localEP,
		Name:     e.localName,
		Accepted: true,
	}
	e.sendLocked(from, wire.TypePairResponse, resp.Encode())

	e.log.Info().Str("peer", p.Name).Msg("Paired")
	e.queuePeerUpdate(*p)
}

func (e *Engine) handlePairResponseLocked(from wire.Endpoint, payload []byte) {
	resp, ok := wire.DecodePair(payload)
	if !ok {
		return
	}

	if !resp.Accepted {
		e.log.Info().Str("peer", resp.Name).Msg("Pair rejected")
		return
	}

	idx := e.reg.Insert(from)
	if idx < 0 {
		return
	}
	e.tr.RegisterPeer(from)

	p := e.reg.Get(idx)
	p.Name = resp.Name
	p.State = peers.StatePaired
	p.LastSeen = e.clock()
	p.Online = true

	e.log.Info().Str("peer", p.Name).Msg("Pair accepted")
	e.queuePeerUpdate(*p)
}

func (e *Engine) handleUnpairLocked(from wire.Endpoint) {
	idx := e.reg.Find(from)
	if idx < 0 {
		return
	}

	removed, _ := e.reg.Snapshot(idx)
	e.log.Info().Str("peer", removed.Name).Msg("Unpaired by peer")

	e.tr.DeregisterPeer(from)
	e.reg.Remove(idx)

	removed.State = peers.StateNone
	removed.Online = false
	e.queuePeerUpdate(removed)
}

// pairedSenderLocked returns the registry record for a sender that must
// already be paired, or nil. Commands from anyone else are dropped.
func (e *Engine) pairedSenderLocked(from wire.Endpoint) *peers.Peer {
	idx := e.reg.Find(from)
	if idx < 0 {
		return nil
	}
	p := e.reg.Get(idx)
	if p.State != peers.StatePaired {
		return nil
	}
	return p
}

func (e *Engine) handleSetModeLocked(from wire.Endpoint, payload []byte) {
	p := e.pairedSenderLocked(from)
	if p == nil {
		return
	}
	m, ok := wire.DecodeMode(payload)
	if !ok {
		return
	}

	e.log.Debug().
		Str("peer", p.Name).
		Uint8("mode", m.Mode).
		Uint8("index", m.Index).
		Msg("Mode change from peer")

	p.Mode = m.Mode
	p.Index = m.Index

	if e.cb.ModeChange != nil {
		e.pending = append(e.pending, func() { e.cb.ModeChange(m.Mode, m.Index) })
	}
}

func (e *Engine) handleSetPatternLocked(from wire.Endpoint, payload []byte) {
	p := e.pairedSenderLocked(from)
	if p == nil {
		return
	}
	pat, ok := wire.DecodePattern(payload)
	if !ok {
		return
	}

	e.log.Debug().
		Str("peer", p.Name).
		Uint8("type", pat.Type).
		Msg("Pattern from peer")

	if e.cb.Pattern != nil {
		e.pending = append(e.pending, func() { e.cb.Pattern(pat) })
	}
}

func (e *Engine) handleSetBrightnessLocked(from wire.Endpoint, payload []byte) {
	p := e.pairedSenderLocked(from)
	if p == nil {
		return
	}
	b, ok := wire.DecodeBrightness(payload)
	if !ok {
		return
	}

	e.log.Debug().
		Str("peer", p.Name).
		Uint8("brightness", b.Brightness).
		Msg("Brightness from peer")

	p.Brightness = b.Brightness

	if e.cb.Brightness != nil {
		e.pending = append(e.pending, func() { e.cb.Brightness(b.Brightness) })
	}
}

func (e *Engine) handleSetFrameRateLocked(from wire.Endpoint, payload []byte) {
	p := e.pairedSenderLocked(from)
	if p == nil {
		return
	}
	fr, ok := wire.DecodeFrameRate(payload)
	if !ok {
		return
	}

	e.log.Debug().
		Str("peer", p.Name).
		Uint8("frame_delay", fr.FrameDelay).
		Msg("Frame rate from peer")

	if e.cb.FrameRate != nil {
		e.pending = append(e.pending, func() { e.cb.FrameRate(fr.FrameDelay) })
	}
}

func (e *Engine) handleHeartbeatLocked(from wire.Endpoint, payload []byte) {
	hb, ok := wire.DecodeHeartbeat(payload)
	if !ok {
		return
	}

	idx := e.reg.Find(from)
	if idx >= 0 {
		p := e.reg.Get(idx)
		p.LastSeen = e.clock()
		p.Name = hb.Name
		p.Mode = hb.Mode
		p.Index = hb.Index
		p.Brightness = hb.Brightness

		if p.State == peers.StatePaired {
			wasOffline := !p.Online
			p.Online = true
			if wasOffline {
				e.log.Info().Str("peer", p.Name).Msg("Peer back online")
				e.queuePeerUpdate(*p)
			}
		}
		return
	}

	// Unknown sender: record it as discoverable so the host can list
	// nearby devices. Pairing still requires an explicit pair request;
	// the staleness sweep prunes the entry if none arrives.
	idx = e.reg.Insert(from)
	if idx < 0 {
		return
	}
	p := e.reg.Get(idx)
	p.Name = hb.Name
	p.State = peers.StateDiscovering
	p.LastSeen = e.clock()
	p.Mode = hb.Mode
	p.Index = hb.Index
	p.Brightness = hb.Brightness

	e.log.Debug().
		Str("peer", p.Name).
		Str("endpoint", from.String()).
		Msg("Device discovered")
	e.queuePeerUpdate(*p)
}

func (e *Engine) handleSyncTimeLocked(from wire.Endpoint, payload []byte) {
	p := e.pairedSenderLocked(from)
	if p == nil {
		return
	}
	st, ok := wire.DecodeSyncTime(payload)
	if !ok {
		return
	}

	// Positive offset means the peer's clock is ahead of ours.
	e.timeOffset = int32(st.SenderClockMs) - int32(e.clock())

	if e.cb.SyncTime != nil {
		offset := e.timeOffset
		e.pending = append(e.pending, func() { e.cb.SyncTime(offset) })
	}
}
