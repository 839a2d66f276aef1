// Package ctl implements the poisync ctl subcommand: control actions sent
// to a running node over its RPC socket.
package ctl

import (
	"fmt"
	"strconv"

	"poisync/internal/rpc"
	"poisync/internal/wire"
	"poisync/pkg/config"
)

// Run executes one control action against a running node.
func Run(configPath string, args []string) error {
	if len(args) == 0 {
		return usage()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := rpc.NewClient(cfg.Sync.RPCSocket)
	if err != nil {
		return fmt.Errorf("connecting to node: %w\nIs 'poisync node' running?", err)
	}
	defer client.Close()

	switch args[0] {
	case "status":
		return showStatus(client)
	case "pair":
		if err := client.StartPairing(); err != nil {
			return err
		}
		fmt.Println("Pair request broadcast. Devices with auto-pair enabled will respond.")
		return nil
	case "unpair":
		return runUnpair(client, args[1:])
	case "mode":
		if len(args) < 2 {
			return fmt.Errorf("usage: poisync ctl mode <mirror|independent>")
		}
		if _, err := wire.ParseSyncMode(args[1]); err != nil {
			return err
		}
		return client.SetSyncMode(args[1])
	case "autopair":
		if len(args) < 2 || (args[1] != "on" && args[1] != "off") {
			return fmt.Errorf("usage: poisync ctl autopair <on|off>")
		}
		return client.SetAutoPair(args[1] == "on")
	case "set":
		return runSet(client, args[1:])
	default:
		return usage()
	}
}

func usage() error {
	return fmt.Errorf(`usage: poisync ctl <action>

Actions:
  status                          Show local device state
  pair                            Broadcast a pair request
  unpair <index|all>              Unpair one peer or all peers
  mode <mirror|independent>       Switch coordination mode
  autopair <on|off>               Toggle auto-accept of pair requests
  set [--peer i] brightness <n>   Push brightness (0-255)
  set [--peer i] framerate <ms>   Push frame delay (0-255)
  set [--peer i] mode <m> <idx>   Push display mode and index
  set [--peer i] pattern <idx> <type> <r1> <g1> <b1> <r2> <g2> <b2> <speed>

Without --peer, set commands mirror to all online paired peers (mirror
mode only); with --peer they target one registry index.`)
}

func showStatus(client *rpc.Client) error {
	st, err := client.Status()
	if err != nil {
		return err
	}
	fmt.Printf("Name:        %s\n", st.Name)
	fmt.Printf("Endpoint:    %s\n", st.Endpoint)
	fmt.Printf("Sync mode:   %s\n", st.SyncMode)
	fmt.Printf("Auto-pair:   %v\n", st.AutoPair)
	fmt.Printf("Peers:       %d\n", st.PeerCount)
	fmt.Printf("Time offset: %dms\n", st.TimeOffsetMs)
	return nil
}

func runUnpair(client *rpc.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: poisync ctl unpair <index|all>")
	}
	if args[0] == "all" {
		return client.UnpairAll()
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid peer index: %s", args[0])
	}
	return client.UnpairPeer(index)
}

func runSet(client *rpc.Client, args []string) error {
	peer := -1
	if len(args) >= 2 && args[0] == "--peer" {
		var err error
		peer, err = strconv.Atoi(args[1])
		if err != nil || peer < 0 {
			return fmt.Errorf("invalid peer index: %s", args[1])
		}
		args = args[2:]
	}
	if len(args) == 0 {
		return usage()
	}

	vals, err := byteArgs(args[1:])
	if err != nil {
		return err
	}

	switch args[0] {
	case "brightness":
		if len(vals) != 1 {
			return fmt.Errorf("usage: poisync ctl set brightness <0-255>")
		}
		return client.SendBrightness(peer, vals[0])
	case "framerate":
		if len(vals) != 1 {
			return fmt.Errorf("usage: poisync ctl set framerate <0-255>")
		}
		return client.SendFrameRate(peer, vals[0])
	case "mode":
		if len(vals) != 2 {
			return fmt.Errorf("usage: poisync ctl set mode <mode> <index>")
		}
		return client.SendMode(peer, vals[0], vals[1])
	case "pattern":
		if len(vals) != 9 {
			return fmt.Errorf("usage: poisync ctl set pattern <idx> <type> <r1> <g1> <b1> <r2> <g2> <b2> <speed>")
		}
		return client.SendPattern(peer, wire.PatternPayload{
			Index: vals[0], Type: vals[1],
			R1: vals[2], G1: vals[3], B1: vals[4],
			R2: vals[5], G2: vals[6], B2: vals[7],
			Speed: vals[8],
		})
	default:
		return usage()
	}
}

func byteArgs(args []string) ([]uint8, error) {
	out := make([]uint8, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseUint(a, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q (want 0-255)", a)
		}
		out = append(out, uint8(v))
	}
	return out, nil
}
