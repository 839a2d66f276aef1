// Package transport provides the datagram transport the sync engine runs
// over: best-effort, connectionless, broadcast-capable, small MTU.
package transport

import "poisync/internal/wire"

// RecvFunc receives one inbound datagram tagged with the sender endpoint.
// It may be invoked from a goroutine other than the caller's main loop.
type RecvFunc func(from wire.Endpoint, data []byte)

// Transport sends protocol frames to a specific endpoint or to every
// device in range. Sends are fire-and-forget: delivery is not guaranteed
// and never acknowledged.
type Transport interface {
	// Send delivers a frame to one endpoint.
	Send(to wire.Endpoint, data []byte) error
	// Broadcast delivers a frame to every device in range.
	Broadcast(data []byte) error
	// RegisterPeer announces that targeted sends to ep are expected.
	RegisterPeer(ep wire.Endpoint)
	// DeregisterPeer drops transport state held for ep.
	DeregisterPeer(ep wire.Endpoint)
}
