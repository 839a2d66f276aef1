// Package sysinfo derives the local device identity from the host: the
// 6-byte transport endpoint comes from the primary interface's hardware
// address, the default display name from the hostname.
package sysinfo

import (
	"fmt"
	"net"
	"os"

	"github.com/shirou/gopsutil/v3/host"

	"poisync/internal/wire"
)

// Identity describes this device.
type Identity struct {
	Endpoint wire.Endpoint
	Hostname string
	Kernel   string
	UptimeS  uint64
}

// Collect gathers the local identity. ifaceName selects the interface to
// take the hardware address from; empty picks the first usable one.
func Collect(ifaceName string) (*Identity, error) {
	ep, err := endpointFromInterface(ifaceName)
	if err != nil {
		return nil, err
	}

	id := &Identity{Endpoint: ep}
	id.Hostname, _ = os.Hostname()

	if info, err := host.Info(); err == nil {
		id.Kernel = info.KernelVersion
		id.UptimeS = info.Uptime
	}

	return id, nil
}

// endpointFromInterface returns the hardware address of the named
// interface, or of the first up, non-loopback interface with one.
func endpointFromInterface(name string) (wire.Endpoint, error) {
	var ep wire.Endpoint

	if name != "" {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return ep, fmt.Errorf("finding interface %s: %w", name, err)
		}
		if len(iface.HardwareAddr) < 6 {
			return ep, fmt.Errorf("interface %s has no usable hardware address", name)
		}
		copy(ep[:], iface.HardwareAddr[:6])
		return ep, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return ep, fmt.Errorf("listing interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if len(iface.HardwareAddr) < 6 {
			continue
		}
		copy(ep[:], iface.HardwareAddr[:6])
		return ep, nil
	}

	return ep, fmt.Errorf("no usable network interface found")
}
