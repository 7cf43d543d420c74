package flowtable_test

import (
	"net"
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/flowtable"
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

var (
	srcMAC = net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	dstMAC = net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02}
)

func TestDecodeFrame_TaggedIPv4UDP(t *testing.T) {
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(192, 0, 2, 1),
		DstIP:    net.IPv4(10, 1, 2, 3),
	}
	udp := &layers.UDP{SrcPort: 4000, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	frame := serialize(t,
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeDot1Q},
		&layers.Dot1Q{Priority: 5, VLANIdentifier: 100, Type: layers.EthernetTypeIPv4},
		ip, udp, gopacket.Payload([]byte("hello")),
	)

	p, err := flowtable.DecodeFrame("Ethernet3", frame)
	require.NoError(t, err)

	wantSrc, _ := flowreprog.ParseEthAddr(srcMAC.String())
	wantDst, _ := flowreprog.ParseEthAddr(dstMAC.String())
	assert.Equal(t, flowreprog.Packet{
		InputIntf: "Ethernet3",
		EthSrc:    wantSrc,
		EthDst:    wantDst,
		EthType:   uint16(layers.EthernetTypeIPv4),
		VlanID:    100,
		Cos:       5,
		IPSrc:     netip.MustParseAddr("192.0.2.1"),
		IPDst:     netip.MustParseAddr("10.1.2.3"),
		Length:    len(frame),
	}, p)
}

func TestDecodeFrame_UntaggedIPv6(t *testing.T) {
	frame := serialize(t,
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv6},
		&layers.IPv6{
			Version:    6,
			HopLimit:   64,
			NextHeader: layers.IPProtocolNoNextHeader,
			SrcIP:      net.ParseIP("2001:db8::1"),
			DstIP:      net.ParseIP("2001:db8::2"),
		},
	)

	p, err := flowtable.DecodeFrame("e1", frame)
	require.NoError(t, err)
	assert.Equal(t, uint16(layers.EthernetTypeIPv6), p.EthType)
	assert.Zero(t, p.VlanID)
	assert.Equal(t, netip.MustParseAddr("2001:db8::2"), p.IPDst)
}

func TestDecodeFrame_Garbage(t *testing.T) {
	_, err := flowtable.DecodeFrame("e1", []byte{0x01, 0x02})
	assert.ErrorIs(t, err, flowtable.ErrNotEthernet)
}

func TestDecodeFrame_ClassifiesAgainstMatch(t *testing.T) {
	frame := serialize(t,
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4},
		&layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP,
			SrcIP: net.IPv4(192, 0, 2, 1), DstIP: net.IPv4(10, 9, 9, 9)},
	)
	p, err := flowtable.DecodeFrame("Ethernet1", frame)
	require.NoError(t, err)

	m := flowreprog.Match{
		InputIntfs: []string{"Ethernet1"},
		EthType:    uint16(layers.EthernetTypeIPv4),
		IPDst:      netip.MustParsePrefix("10.0.0.0/8"),
	}
	assert.True(t, m.Matches(p))
	m.InputIntfs = []string{"Ethernet2"}
	assert.False(t, m.Matches(p))
}
