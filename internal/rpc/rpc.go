// Package rpc provides Unix socket IPC between the poisync node and the
// control CLIs.
package rpc

import (
	"fmt"
	"net"
	netrpc "net/rpc"
	"os"

	"github.com/rs/zerolog"

	"poisync/internal/engine"
	"poisync/internal/peers"
	"poisync/internal/wire"
)

// Service is the RPC service exposed by the node.
type Service struct {
	eng *engine.Engine
	log zerolog.Logger
}

// Empty is the request or reply for methods that carry no data.
type Empty struct{}

// ListPeersReply is the response for ListPeers.
type ListPeersReply struct {
	Peers []peers.Peer
}

// ListPeers returns a snapshot of the peer registry.
func (s *Service) ListPeers(args *Empty, reply *ListPeersReply) error {
	reply.Peers = s.eng.Peers()
	return nil
}

// StatusReply describes the local device.
type StatusReply struct {
	Name         string
	Endpoint     string
	SyncMode     string
	AutoPair     bool
	TimeOffsetMs int32
	PeerCount    int
}

// Status returns the local device state.
func (s *Service) Status(args *Empty, reply *StatusReply) error {
	reply.Name = s.eng.LocalName()
	reply.Endpoint = s.eng.LocalEndpoint().String()
	reply.SyncMode = s.eng.SyncMode().String()
	reply.AutoPair = s.eng.AutoPair()
	reply.TimeOffsetMs = s.eng.TimeOffset()
	reply.PeerCount = s.eng.PeerCount()
	return nil
}

// StartPairing broadcasts a pair request.
func (s *Service) StartPairing(args *Empty, reply *Empty) error {
	s.eng.StartPairing()
	return nil
}

// UnpairArgs selects a peer by registry index.
type UnpairArgs struct {
	Index int
}

// UnpairPeer removes one peer.
func (s *Service) UnpairPeer(args *UnpairArgs, reply *Empty) error {
	s.eng.UnpairPeer(args.Index)
	return nil
}

// UnpairAll removes every peer.
func (s *Service) UnpairAll(args *Empty, reply *Empty) error {
	s.eng.UnpairAll()
	return nil
}

// SetSyncModeArgs carries "mirror" or "independent".
type SetSyncModeArgs struct {
	Mode string
}

// SetSyncMode switches the coordination mode.
func (s *Service) SetSyncMode(args *SetSyncModeArgs, reply *Empty) error {
	m, err := wire.ParseSyncMode(args.Mode)
	if err != nil {
		return err
	}
	s.eng.SetSyncMode(m)
	return nil
}

// SetAutoPairArgs enables or disables auto-pairing.
type SetAutoPairArgs struct {
	Enabled bool
}

// SetAutoPair toggles automatic acceptance of pair requests.
func (s *Service) SetAutoPair(args *SetAutoPairArgs, reply *Empty) error {
	s.eng.SetAutoPair(args.Enabled)
	return nil
}

// LocalStateArgs is the local display-state snapshot.
type LocalStateArgs struct {
	Mode       uint8
	Index      uint8
	Brightness uint8
	FrameDelay uint8
}

// SetLocalState records the state echoed in heartbeats.
func (s *Service) SetLocalState(args *LocalStateArgs, reply *Empty) error {
	s.eng.SetLocalState(args.Mode, args.Index, args.Brightness, args.FrameDelay)
	return nil
}

// CommandArgs addresses a command either at every paired online peer
// (Peer < 0) or at a single registry index.
type CommandArgs struct {
	Peer       int
	Mode       uint8
	Index      uint8
	Brightness uint8
	FrameDelay uint8
	Pattern    wire.PatternPayload
}

// SendMode distributes a mode change.
func (s *Service) SendMode(args *CommandArgs, reply *Empty) error {
	if args.Peer < 0 {
		s.eng.BroadcastModeChange(args.Mode, args.Index)
	} else {
		s.eng.SendPeerModeChange(args.Peer, args.Mode, args.Index)
	}
	return nil
}

// SendPattern distributes a pattern.
func (s *Service) SendPattern(args *CommandArgs, reply *Empty) error {
	if args.Peer < 0 {
		s.eng.BroadcastPattern(args.Pattern)
	} else {
		s.eng.SendPeerPattern(args.Peer, args.Pattern)
	}
	return nil
}

// SendBrightness distributes a brightness level.
func (s *Service) SendBrightness(args *CommandArgs, reply *Empty) error {
	if args.Peer < 0 {
		s.eng.BroadcastBrightness(args.Brightness)
	} else {
		s.eng.SendPeerBrightness(args.Peer, args.Brightness)
	}
	return nil
}

// SendFrameRate distributes a frame delay.
func (s *Service) SendFrameRate(args *CommandArgs, reply *Empty) error {
	if args.Peer < 0 {
		s.eng.BroadcastFrameRate(args.FrameDelay)
	} else {
		s.eng.SendPeerFrameRate(args.Peer, args.FrameDelay)
	}
	return nil
}

// StartServer starts the Unix socket RPC server.
func StartServer(socketPath string, eng *engine.Engine, log zerolog.Logger) error {
	service := &Service{eng: eng, log: log}

	server := netrpc.NewServer()
	if err := server.Register(service); err != nil {
		return fmt.Errorf("registering RPC service: %w", err)
	}

	// Remove existing socket file if present
	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", socketPath, err)
	}

	if err := os.Chmod(socketPath, 0660); err != nil {
		log.Warn().Err(err).Msg("Failed to set socket permissions")
	}

	log.Info().Str("socket", socketPath).Msg("RPC server started")

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("RPC accept error")
				continue
			}
			go server.ServeConn(conn)
		}
	}()

	return nil
}

// Client is a client for the poisync RPC service.
type Client struct {
	client *netrpc.Client
}

// NewClient dials the Unix socket and returns an RPC client.
func NewClient(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to RPC socket %s: %w", socketPath, err)
	}
	return &Client{client: netrpc.NewClient(conn)}, nil
}

// Close closes the RPC client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// ListPeers fetches the peer table from the node.
func (c *Client) ListPeers() ([]peers.Peer, error) {
	reply := &ListPeersReply{}
	if err := c.client.Call("Service.ListPeers", &Empty{}, reply); err != nil {
		return nil, err
	}
	return reply.Peers, nil
}

// Status fetches the local device state.
func (c *Client) Status() (*StatusReply, error) {
	reply := &StatusReply{}
	if err := c.client.Call("Service.Status", &Empty{}, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// StartPairing asks the node to broadcast a pair request.
func (c *Client) StartPairing() error {
	return c.client.Call("Service.StartPairing", &Empty{}, &Empty{})
}

// UnpairPeer removes the peer at the given index.
func (c *Client) UnpairPeer(index int) error {
	return c.client.Call("Service.UnpairPeer", &UnpairArgs{Index: index}, &Empty{})
}

// UnpairAll removes every peer.
func (c *Client) UnpairAll() error {
	return c.client.Call("Service.UnpairAll", &Empty{}, &Empty{})
}

// SetSyncMode switches the coordination mode.
func (c *Client) SetSyncMode(mode string) error {
	return c.client.Call("Service.SetSyncMode", &SetSyncModeArgs{Mode: mode}, &Empty{})
}

// SetAutoPair toggles auto-pairing.
func (c *Client) SetAutoPair(enabled bool) error {
	return c.client.Call("Service.SetAutoPair", &SetAutoPairArgs{Enabled: enabled}, &Empty{})
}

// SendMode distributes a mode change; peer < 0 broadcasts.
func (c *Client) SendMode(peer int, mode, index uint8) error {
	return c.client.Call("Service.SendMode", &CommandArgs{Peer: peer, Mode: mode, Index: index}, &Empty{})
}

// SendPattern distributes a pattern; peer < 0 broadcasts.
func (c *Client) SendPattern(peer int, p wire.PatternPayload) error {
	return c.client.Call("Service.SendPattern", &CommandArgs{Peer: peer, Pattern: p}, &Empty{})
}

// SendBrightness distributes a brightness level; peer < 0 broadcasts.
func (c *Client) SendBrightness(peer int, brightness uint8) error {
	return c.client.Call("Service.SendBrightness", &CommandArgs{Peer: peer, Brightness: brightness}, &Empty{})
}

// SendFrameRate distributes a frame delay; peer < 0 broadcasts.
func (c *Client) SendFrameRate(peer int, frameDelay uint8) error {
	return c.client.Call("Service.SendFrameRate", &CommandArgs{Peer: peer, FrameDelay: frameDelay}, &Empty{})
}
