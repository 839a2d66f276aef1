// Package peerlist implements the poisync peers subcommand.
package peerlist

import (
	"fmt"
	"time"

	"poisync/internal/peers"
	"poisync/internal/rpc"
	"poisync/pkg/config"
)

// Run prints the peer table of a running node.
func Run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := rpc.NewClient(cfg.Sync.RPCSocket)
	if err != nil {
		return fmt.Errorf("connecting to node: %w\nIs 'poisync node' running?", err)
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		return fmt.Errorf("fetching status: %w", err)
	}

	list, err := client.ListPeers()
	if err != nil {
		return fmt.Errorf("fetching peers: %w", err)
	}

	fmt.Printf("\n  %s (%s), %s mode, %d/%d peer slots used\n\n",
		status.Name, status.Endpoint, status.SyncMode, len(list), peers.MaxPeers)

	if len(list) == 0 {
		fmt.Println("  No peers. Run 'poisync ctl pair' on both devices to pair.")
		return nil
	}

	fmt.Printf("  %-3s %-20s %-18s %-12s %-8s %-6s %-6s\n",
		"#", "NAME", "ENDPOINT", "STATE", "ONLINE", "MODE", "BRIGHT")
	for i, p := range list {
		online := "no"
		if p.Online {
			online = "yes"
		}
		fmt.Printf("  %-3d %-20s %-18s %-12s %-8s %-6d %-6d\n",
			i, p.Name, p.Endpoint.String(), p.State.String(), online, p.Mode, p.Brightness)
	}

	if status.TimeOffsetMs != 0 {
		fmt.Printf("\n  Clock offset: %s\n", time.Duration(status.TimeOffsetMs)*time.Millisecond)
	}
	fmt.Println()
	return nil
}
