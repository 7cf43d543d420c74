package flowreprog

import "net/netip"

// Packet carries the header fields a flow match is evaluated against.
type Packet struct {
	InputIntf string
	EthSrc    EthAddr
	EthDst    EthAddr
	EthType   uint16
	VlanID    uint16
	Cos       uint8
	IPSrc     netip.Addr
	IPDst     netip.Addr
	Length    int
}

// Matches reports whether p satisfies every non-wildcard field of m.
func (m Match) Matches(p Packet) bool {
	if len(m.InputIntfs) > 0 && !contains(m.InputIntfs, p.InputIntf) {
		return false
	}
	if !m.EthSrc.IsZero() && m.EthSrc != p.EthSrc {
		return false
	}
	if !m.EthDst.IsZero() && m.EthDst != p.EthDst {
		return false
	}
	if m.EthType != 0 && m.EthType != p.EthType {
		return false
	}
	if m.VlanID != 0 {
		mask := m.VlanMask
		if mask == 0 {
			mask = MaxVlanID
		}
		if m.VlanID&mask != p.VlanID&mask {
			return false
		}
		if m.Cos != 0 && m.Cos != p.Cos {
			return false
		}
	}
	if m.IPSrc.IsValid() && !(p.IPSrc.IsValid() && m.IPSrc.Contains(p.IPSrc)) {
		return false
	}
	if m.IPDst.IsValid() && !(p.IPDst.IsValid() && m.IPDst.Contains(p.IPDst)) {
		return false
	}
	return true
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
