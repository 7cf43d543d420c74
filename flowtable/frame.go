package flowtable

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/frobware/go-flowreprog"
)

// ErrNotEthernet is returned when a frame has no decodable Ethernet
// header.
var ErrNotEthernet = errors.New("frame has no ethernet header")

// DecodeFrame extracts the match-relevant header fields from an
// Ethernet frame received on intf. 802.1Q tags and IPv4/IPv6 headers
// are decoded; anything above the network layer is ignored. EthType is
// the type of the innermost decoded payload.
func DecodeFrame(intf string, frame []byte) (flowreprog.Packet, error) {
	var (
		eth   layers.Ethernet
		dot1q layers.Dot1Q
		ip4   layers.IPv4
		ip6   layers.IPv6
	)
	parser := gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &eth, &dot1q, &ip4, &ip6)
	parser.IgnoreUnsupported = true

	decoded := make([]gopacket.LayerType, 0, 4)
	err := parser.DecodeLayers(frame, &decoded)

	p := flowreprog.Packet{InputIntf: intf, Length: len(frame)}
	sawEthernet := false
	for _, lt := range decoded {
		switch lt {
		case layers.LayerTypeEthernet:
			sawEthernet = true
			p.EthSrc = ethAddr(eth.SrcMAC)
			p.EthDst = ethAddr(eth.DstMAC)
			p.EthType = uint16(eth.EthernetType)
		case layers.LayerTypeDot1Q:
			p.VlanID = dot1q.VLANIdentifier
			p.Cos = dot1q.Priority
			p.EthType = uint16(dot1q.Type)
		case layers.LayerTypeIPv4:
			p.IPSrc = ipAddr(ip4.SrcIP)
			p.IPDst = ipAddr(ip4.DstIP)
		case layers.LayerTypeIPv6:
			p.IPSrc = ipAddr(ip6.SrcIP)
			p.IPDst = ipAddr(ip6.DstIP)
		}
	}
	if !sawEthernet {
		if err != nil {
			return flowreprog.Packet{}, fmt.Errorf("%w: %v", ErrNotEthernet, err)
		}
		return flowreprog.Packet{}, ErrNotEthernet
	}
	return p, nil
}

func ethAddr(hw net.HardwareAddr) flowreprog.EthAddr {
	var a flowreprog.EthAddr
	if len(hw) == len(a) {
		copy(a[:], hw)
	}
	return a
}

func ipAddr(ip net.IP) netip.Addr {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}
	}
	return addr.Unmap()
}
