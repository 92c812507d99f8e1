package link

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// packetOutgoing is PACKET_OUTGOING from <linux/if_packet.h>.
const packetOutgoing = 4

// ingressGuard rejects frames the host transmitted on the interface, which
// AF_PACKET sockets otherwise see again. Without it every frame the switch
// sends would be received back as ingress.
func ingressGuard() []bpf.Instruction {
	return []bpf.Instruction{
		bpf.LoadExtension{Num: bpf.ExtType},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: packetOutgoing, SkipTrue: 1},
		bpf.RetConstant{Val: 0},
	}
}

// CompileFilter builds the socket filter for a switch port: the ingress guard
// followed by filter, a libpcap expression. An empty filter accepts every
// inbound frame.
func CompileFilter(filter string, snapLen int) ([]bpf.RawInstruction, error) {
	guard, err := bpf.Assemble(ingressGuard())
	if err != nil {
		return nil, fmt.Errorf("assemble ingress guard: %w", err)
	}

	if filter == "" {
		accept, err := bpf.Assemble([]bpf.Instruction{bpf.RetConstant{Val: uint32(snapLen)}})
		if err != nil {
			return nil, fmt.Errorf("assemble accept: %w", err)
		}
		return append(guard, accept...), nil
	}

	pcapBpf, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snapLen, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to compile BPF filter %q: %w", filter, err)
	}

	// libpcap programs jump relative to the current instruction, so the
	// guard can be prepended without relocating them.
	raw := make([]bpf.RawInstruction, 0, len(guard)+len(pcapBpf))
	raw = append(raw, guard...)
	for _, ins := range pcapBpf {
		raw = append(raw, bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K})
	}
	return raw, nil
}
