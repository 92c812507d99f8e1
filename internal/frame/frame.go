// Package frame implements Ethernet header decoding and VLAN tag handling.
package frame

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/vswitch/internal/core"
)

const (
	// HeaderLen is dst MAC + src MAC + EtherType.
	HeaderLen = 14
	// TagLen is TPID + TCI.
	TagLen = 4
	// TaggedHeaderLen is the minimum length of a tagged frame.
	TaggedHeaderLen = HeaderLen + TagLen

	// TPID marks a tagged frame. The switch uses 0x8200, not the IEEE 0x8100.
	TPID uint16 = 0x8200

	macLen      = 6
	addrsLen    = 2 * macLen
	vlanIDMask  = 0x0FFF
	etherOffset = addrsLen
)

// Header is the decoded L2 header of a frame.
type Header struct {
	Dst       core.MAC
	Src       core.MAC
	EtherType uint16      // inner EtherType when tagged
	VLAN      core.VLANID // valid only when Tagged
	Tagged    bool
}

func (h Header) String() string {
	if h.Tagged {
		return fmt.Sprintf("%s -> %s vlan=%d type=0x%04x", h.Src, h.Dst, h.VLAN, h.EtherType)
	}
	return fmt.Sprintf("%s -> %s type=0x%04x", h.Src, h.Dst, h.EtherType)
}

// Decode reads the Ethernet header of raw. A frame whose EtherType field
// equals TPID carries a tag; its VLAN id is the low 12 bits of the TCI and
// the real EtherType follows the tag.
func Decode(raw []byte) (Header, error) {
	if len(raw) < HeaderLen {
		return Header{}, &core.FrameFormatError{Len: len(raw), Msg: "shorter than ethernet header"}
	}

	var h Header
	copy(h.Dst[:], raw[0:6])
	copy(h.Src[:], raw[6:12])

	etherType := binary.BigEndian.Uint16(raw[12:14])
	if etherType == TPID {
		if len(raw) < TaggedHeaderLen {
			return h, &core.FrameFormatError{Len: len(raw), Msg: "truncated vlan tag"}
		}
		tci := binary.BigEndian.Uint16(raw[14:16])
		h.VLAN = core.VLANID(tci & vlanIDMask)
		h.Tagged = true
		etherType = binary.BigEndian.Uint16(raw[16:18])
	}
	h.EtherType = etherType

	return h, nil
}

// StripTag returns a copy of raw with bytes 12-15 removed.
func StripTag(raw []byte) ([]byte, error) {
	if len(raw) < HeaderLen+2 {
		return nil, &core.FrameFormatError{Len: len(raw), Msg: "too short to carry a vlan tag"}
	}
	out := make([]byte, 0, len(raw)-TagLen)
	out = append(out, raw[:etherOffset]...)
	out = append(out, raw[etherOffset+TagLen:]...)
	return out, nil
}

// InsertTag returns a copy of raw with a tag for vlan inserted after the MAC
// addresses. Only the low 12 bits of vlan are used, so 4096 becomes 0.
func InsertTag(raw []byte, vlan core.VLANID) []byte {
	at := min(len(raw), etherOffset)
	out := make([]byte, len(raw)+TagLen)
	copy(out, raw[:at])
	putTag(out[at:], vlan)
	copy(out[at+TagLen:], raw[at:])
	return out
}

// EncodeTag returns the 4 tag bytes for vlan.
func EncodeTag(vlan core.VLANID) [TagLen]byte {
	var b [TagLen]byte
	putTag(b[:], vlan)
	return b
}

func putTag(b []byte, vlan core.VLANID) {
	binary.BigEndian.PutUint16(b[0:2], TPID)
	binary.BigEndian.PutUint16(b[2:4], uint16(vlan)&vlanIDMask)
}
