// Package stp holds the extension point for a loop-prevention protocol.
// No protocol is implemented: the default does nothing on each tick.
package stp

import (
	"fmt"
	"net"
	"time"

	"firestige.xyz/vswitch/internal/core"
)

// DefaultHelloInterval is the BPDU period of 802.1D.
const DefaultHelloInterval = time.Second

// Protocol is driven by the timer on the forwarding loop goroutine, so it
// may read and modify switch state without locking.
type Protocol interface {
	Name() string
	Tick(now time.Time)
}

// NopProtocol is the default protocol.
type NopProtocol struct{}

func (NopProtocol) Name() string   { return "none" }
func (NopProtocol) Tick(time.Time) {}

// BridgeID identifies the switch to a loop-prevention protocol: the
// configured priority and the switch MAC.
type BridgeID struct {
	Priority int
	MAC      core.MAC
}

// NewBridgeID builds an id from the port-table priority and the hardware
// address of the first attached port.
func NewBridgeID(priority int, hw net.HardwareAddr) (BridgeID, error) {
	id := BridgeID{Priority: priority}
	if len(hw) != len(id.MAC) {
		return id, fmt.Errorf("switch address %q is not an ethernet address", hw)
	}
	copy(id.MAC[:], hw)
	return id, nil
}

// String renders the id as "<priority>.<mac>".
func (b BridgeID) String() string {
	return fmt.Sprintf("%d.%s", b.Priority, b.MAC)
}

// Less orders ids as root election would: lower priority first, then lower
// MAC.
func (b BridgeID) Less(o BridgeID) bool {
	if b.Priority != o.Priority {
		return b.Priority < o.Priority
	}
	for i := range b.MAC {
		if b.MAC[i] != o.MAC[i] {
			return b.MAC[i] < o.MAC[i]
		}
	}
	return false
}
