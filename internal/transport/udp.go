package transport

import (
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"

	"poisync/internal/wire"
)

// Datagram layout on the UDP link: [senderEndpoint:6][frame...]. The radio
// link the protocol was designed for reports the sender's hardware address
// out of band; over UDP the prefix carries it instead.
const endpointPrefixLen = 6

const maxDatagramSize = endpointPrefixLen + wire.MaxDatagram

// UDP is the default Transport: IPv4 multicast for broadcast, unicast to
// learned addresses for targeted sends.
type UDP struct {
	localEP wire.Endpoint
	group   *net.UDPAddr
	conn    *net.UDPConn
	recv    *net.UDPConn
	log     zerolog.Logger

	mu         sync.Mutex
	addrs      map[wire.Endpoint]*net.UDPAddr
	registered map[wire.Endpoint]bool
}

// NewUDP opens the multicast group on the given interface (empty for the
// system default) and returns a transport bound to the local endpoint.
func NewUDP(ifaceName, group string, port int, localEP wire.Endpoint, log zerolog.Logger) (*UDP, error) {
	groupIP := net.ParseIP(group)
	if groupIP == nil {
		return nil, fmt.Errorf("invalid multicast group: %s", group)
	}
	groupAddr := &net.UDPAddr{IP: groupIP, Port: port}

	var iface *net.Interface
	if ifaceName != "" {
		var err error
		iface, err = net.InterfaceByName(ifaceName)
		if err != nil {
			return nil, fmt.Errorf("finding interface %s: %w", ifaceName, err)
		}
	}

	recv, err := net.ListenMulticastUDP("udp4", iface, groupAddr)
	if err != nil {
		return nil, fmt.Errorf("joining multicast group: %w", err)
	}
	if err := recv.SetReadBuffer(maxDatagramSize * 16); err != nil {
		log.Warn().Err(err).Msg("Failed to set read buffer")
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		recv.Close()
		return nil, fmt.Errorf("opening send socket: %w", err)
	}

	pc := ipv4.NewPacketConn(conn)
	if iface != nil {
		if err := pc.SetMulticastInterface(iface); err != nil {
			log.Warn().Err(err).Msg("Failed to set multicast interface")
		}
	}
	if err := pc.SetMulticastTTL(1); err != nil {
		log.Warn().Err(err).Msg("Failed to set multicast TTL")
	}
	// Loopback stays on so several nodes on one host can hear each other;
	// the engine drops frames from its own endpoint.
	if err := pc.SetMulticastLoopback(true); err != nil {
		log.Warn().Err(err).Msg("Failed to set multicast loopback")
	}

	return &UDP{
		localEP:    localEP,
		group:      groupAddr,
		conn:       conn,
		recv:       recv,
		log:        log,
		addrs:      make(map[wire.Endpoint]*net.UDPAddr),
		registered: make(map[wire.Endpoint]bool),
	}, nil
}

// Start begins the receive loop, delivering inbound frames to fn from a
// dedicated goroutine.
func (u *UDP) Start(fn RecvFunc) {
	go u.readLoop(fn)
}

// Close shuts the sockets down, terminating the receive loop.
func (u *UDP) Close() error {
	u.recv.Close()
	return u.conn.Close()
}

// Broadcast sends a frame to the multicast group.
func (u *UDP) Broadcast(data []byte) error {
	return u.write(u.group, data)
}

// Send delivers a frame to a single endpoint. The endpoint's UDP address
// must have been learned from a previous inbound datagram; targeted sends
// to never-heard endpoints are dropped.
func (u *UDP) Send(to wire.Endpoint, data []byte) error {
	if to == wire.Broadcast {
		return u.Broadcast(data)
	}
	u.mu.Lock()
	addr := u.addrs[to]
	u.mu.Unlock()
	if addr == nil {
		return fmt.Errorf("no route to endpoint %s", to)
	}
	return u.write(addr, data)
}

// RegisterPeer marks ep as an expected unicast destination.
func (u *UDP) RegisterPeer(ep wire.Endpoint) {
	u.mu.Lock()
	u.registered[ep] = true
	u.mu.Unlock()
}

// DeregisterPeer forgets the learned address for ep.
func (u *UDP) DeregisterPeer(ep wire.Endpoint) {
	u.mu.Lock()
	delete(u.registered, ep)
	delete(u.addrs, ep)
	u.mu.Unlock()
}

func (u *UDP) write(addr *net.UDPAddr, frame []byte) error {
	dgram := encodeDatagram(u.localEP, frame)
	if _, err := u.conn.WriteToUDP(dgram, addr); err != nil {
		return fmt.Errorf("writing datagram to %s: %w", addr, err)
	}
	return nil
}

func (u *UDP) readLoop(fn RecvFunc) {
	buf := make([]byte, maxDatagramSize)
	for {
		n, src, err := u.recv.ReadFromUDP(buf)
		if err != nil {
			// Closed socket ends the loop; anything else is transient.
			if ne, ok := err.(net.Error); ok && !ne.Timeout() {
				return
			}
			u.log.Error().Err(err).Msg("Error reading from UDP")
			continue
		}

		from, frame, ok := decodeDatagram(buf[:n])
		if !ok {
			continue
		}
		if from == u.localEP {
			continue
		}

		u.mu.Lock()
		u.addrs[from] = src
		u.mu.Unlock()

		data := make([]byte, len(frame))
		copy(data, frame)
		fn(from, data)
	}
}

func encodeDatagram(from wire.Endpoint, frame []byte) []byte {
	dgram := make([]byte, endpointPrefixLen+len(frame))
	copy(dgram[:endpointPrefixLen], from[:])
	copy(dgram[endpointPrefixLen:], frame)
	return dgram
}

func decodeDatagram(data []byte) (from wire.Endpoint, frame []byte, ok bool) {
	if len(data) <= endpointPrefixLen {
		return wire.Endpoint{}, nil, false
	}
	copy(from[:], data[:endpointPrefixLen])
	return from, data[endpointPrefixLen:], true
}
