package link

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"

	"firestige.xyz/vswitch/internal/log"
)

// prepareInterface brings the interface up, optionally enables promiscuous
// mode, and returns its hardware address.
func prepareInterface(name string, promisc bool) (net.HardwareAddr, error) {
	l, err := netlink.LinkByName(name)
	if err != nil {
		return nil, fmt.Errorf("lookup interface %s: %w", name, err)
	}
	attrs := l.Attrs()

	if attrs.Flags&net.FlagUp == 0 {
		if err := netlink.LinkSetUp(l); err != nil {
			return nil, fmt.Errorf("set %s up: %w", name, err)
		}
	}
	if promisc && attrs.Promisc == 0 {
		if err := netlink.SetPromiscOn(l); err != nil {
			return nil, fmt.Errorf("set %s promiscuous: %w", name, err)
		}
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"interface": name,
		"index":     attrs.Index,
		"mtu":       attrs.MTU,
		"hw_addr":   attrs.HardwareAddr.String(),
		"type":      l.Type(),
	}).Info("interface details")

	return attrs.HardwareAddr, nil
}
