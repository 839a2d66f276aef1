// poisync — peer synchronization for wireless POV poi
//
// Usage:
//
//	poisync node   — run the sync node (pairing, heartbeats, command fan-out)
//	poisync peers  — list paired and discovered devices
//	poisync ctl    — control a running node (pair, unpair, push state)
package main

import (
	"fmt"
	"os"

	"poisync/cmd/ctl"
	"poisync/cmd/node"
	"poisync/cmd/peerlist"
)

const (
	defaultSystemPath = "/etc/poisync/config.toml"
	defaultLocalPath  = "config.toml"
	version           = "1.0.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	configPath := ""

	// Parse --config flag if present
	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" && i+1 < len(args) {
			configPath = args[i+1]
			args = append(args[:i], args[i+2:]...)
			i--
			continue
		}
		if len(arg) > 9 && arg[:9] == "--config=" {
			configPath = arg[9:]
			args = append(args[:i], args[i+1:]...)
			i--
			continue
		}
	}

	// Auto-discover config if not specified
	if configPath == "" {
		if _, err := os.Stat(defaultLocalPath); err == nil {
			configPath = defaultLocalPath
		} else {
			configPath = defaultSystemPath
		}
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	subcommand := args[0]
	var err error

	switch subcommand {
	case "node":
		err = node.Run(configPath)
	case "peers":
		err = peerlist.Run(configPath)
	case "ctl":
		err = ctl.Run(configPath, args[1:])
	case "edit":
		err = node.EditConfig(configPath)
	case "version":
		fmt.Printf("poisync v%s\n", version)
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`poisync v%s — peer synchronization for wireless POV poi

Usage:
  poisync <command> [--config <path>]

Commands:
  node     Run the sync node (pairing, heartbeats, command fan-out)
  peers    List paired and discovered devices
  ctl      Control a running node (pair, unpair, mode, push state)
  edit     Edit the configuration file in your system editor
  version  Print version information
  help     Show this help message

Options:
  --config <path>  Path to config file (default: looks for ./config.toml, then %s)

Examples:
  poisync node                 # Run the sync node with default config
  poisync ctl pair             # Broadcast a pair request
  poisync ctl set brightness 200
  poisync peers                # Show the peer table

`, version, defaultSystemPath)
}
