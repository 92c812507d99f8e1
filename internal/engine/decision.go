package engine

import (
	"firestige.xyz/vswitch/internal/core"
	"firestige.xyz/vswitch/internal/frame"
)

// Kind classifies a forwarding decision.
type Kind int

const (
	// Dropped frames were rejected before a forwarding decision.
	Dropped Kind = iota
	// Unicast frames go to the single learned port.
	Unicast
	// Flood frames go to the VLAN's flood domain minus the ingress port.
	Flood
	// Filtered frames were destined to the port they arrived on.
	Filtered
)

func (k Kind) String() string {
	switch k {
	case Unicast:
		return "unicast"
	case Flood:
		return "flood"
	case Filtered:
		return "filtered"
	default:
		return "dropped"
	}
}

// Output is one frame to transmit.
type Output struct {
	Port core.PortID
	Data []byte
}

// Decision is the outcome of processing one received frame.
type Decision struct {
	Kind    Kind
	Ingress core.PortID
	Header  frame.Header
	VLAN    core.VLANID // VLAN the frame was switched in
	Out     []Output
	Reason  string // drop reason, see metrics.Drop*
}

// Egress returns the output ports in transmit order.
func (d Decision) Egress() []core.PortID {
	ports := make([]core.PortID, len(d.Out))
	for i, o := range d.Out {
		ports[i] = o.Port
	}
	return ports
}
