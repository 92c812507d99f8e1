// Package core defines core types with zero external dependencies.
package core

import "fmt"

// PortID identifies an attached link. IDs are assigned in attach order and
// stay stable for the process lifetime.
type PortID int

// NoPort is returned by lookups that found nothing.
const NoPort PortID = -1

// VLANID is a 12-bit 802.1Q VLAN identifier.
type VLANID uint16

const (
	// MaxVLAN is the largest valid VLAN identifier.
	MaxVLAN VLANID = 0x0FFF
)

// Valid reports whether v fits in 12 bits.
func (v VLANID) Valid() bool { return v <= MaxVLAN }

// MAC is a 48-bit hardware address stored by value so it can be used as a
// map key.
type MAC [6]byte

// BroadcastMAC is ff:ff:ff:ff:ff:ff.
var BroadcastMAC = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// IsUnicast reports whether the group bit (low bit of the first octet) is 0.
func (m MAC) IsUnicast() bool { return m[0]&0x01 == 0 }

// IsBroadcast reports whether m is the all-ones address.
func (m MAC) IsBroadcast() bool { return m == BroadcastMAC }

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}
