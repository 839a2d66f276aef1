// Package peers implements the fixed-capacity peer table.
//
// The registry itself is not safe for concurrent use; the sync engine
// serializes every access under its own lock.
package peers

import "poisync/internal/wire"

// MaxPeers is the registry capacity.
const MaxPeers = 6

// State is the pairing lifecycle state of a peer. A record only ever moves
// forward through these states; regression happens by deletion.
type State uint8

const (
	// StateNone marks a peer that is not (or no longer) in the registry.
	// It appears only in snapshots reporting a removal.
	StateNone State = iota
	// StateDiscovering marks a device heard from but not paired.
	StateDiscovering
	// StatePairSent marks an outbound pairing awaiting a response.
	StatePairSent
	// StatePaired marks an established pairing.
	StatePaired
)

func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StatePairSent:
		return "pair-sent"
	case StatePaired:
		return "paired"
	}
	return "none"
}

// Peer is one record in the registry. The Mode/Index/Brightness fields hold
// the last state reported by the remote device and are observational only.
type Peer struct {
	Endpoint wire.Endpoint
	Name     string
	State    State
	// LastSeen is the engine clock (milliseconds) at the most recent
	// inbound message from this endpoint.
	LastSeen   int64
	Online     bool
	Mode       uint8
	Index      uint8
	Brightness uint8
}

// Registry is a bounded peer table keyed by endpoint.
type Registry struct {
	peers []Peer
}

// NewRegistry returns an empty registry with capacity MaxPeers.
func NewRegistry() *Registry {
	return &Registry{peers: make([]Peer, 0, MaxPeers)}
}

// Len returns the number of records.
func (r *Registry) Len() int { return len(r.peers) }

// Find returns the index of the record for ep, or -1.
func (r *Registry) Find(ep wire.Endpoint) int {
	for i := range r.peers {
		if r.peers[i].Endpoint == ep {
			return i
		}
	}
	return -1
}

// Insert returns the index for ep, creating a record if needed. It returns
// -1 when the table is full. Inserting an existing endpoint is idempotent.
func (r *Registry) Insert(ep wire.Endpoint) int {
	if i := r.Find(ep); i >= 0 {
		return i
	}
	if len(r.peers) >= MaxPeers {
		return -1
	}
	r.peers = append(r.peers, Peer{Endpoint: ep})
	return len(r.peers) - 1
}

// Remove deletes the record at index i, preserving the relative order of
// the remaining records.
func (r *Registry) Remove(i int) {
	if i < 0 || i >= len(r.peers) {
		return
	}
	r.peers = append(r.peers[:i], r.peers[i+1:]...)
}

// Get returns a pointer to the record at index i for in-place mutation,
// or nil if out of range.
func (r *Registry) Get(i int) *Peer {
	if i < 0 || i >= len(r.peers) {
		return nil
	}
	return &r.peers[i]
}

// Snapshot returns a copy of the record at index i.
func (r *Registry) Snapshot(i int) (Peer, bool) {
	if i < 0 || i >= len(r.peers) {
		return Peer{}, false
	}
	return r.peers[i], true
}

// All returns a copy of every record.
func (r *Registry) All() []Peer {
	out := make([]Peer, len(r.peers))
	copy(out, r.peers)
	return out
}
