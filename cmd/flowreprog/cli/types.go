// Package cli provides the Kong-based command-line interface for
// flowreprog.
package cli

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/frobware/go-flowreprog"
)

// Priority wraps a flow priority with hex support.
type Priority struct {
	Value flowreprog.Priority
}

// ParsePriority parses a priority in the range 0-65535, supporting a
// 0x prefix.
func ParsePriority(s string) (Priority, error) {
	v, err := parseUint(s, math.MaxUint16)
	if err != nil {
		return Priority{}, fmt.Errorf("invalid priority %q: %w", s, err)
	}
	return Priority{Value: flowreprog.Priority(v)}, nil
}

// EtherType wraps an Ethernet type with hex support.
type EtherType struct {
	Value uint16
}

// ParseEtherType parses an EtherType such as 0x0800, 2048 or one of
// the names ipv4, ipv6, arp, vlan.
func ParseEtherType(s string) (EtherType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ipv4":
		return EtherType{Value: 0x0800}, nil
	case "arp":
		return EtherType{Value: 0x0806}, nil
	case "vlan":
		return EtherType{Value: 0x8100}, nil
	case "ipv6":
		return EtherType{Value: 0x86dd}, nil
	}
	v, err := parseUint(s, math.MaxUint16)
	if err != nil {
		return EtherType{}, fmt.Errorf("invalid ethertype %q: %w", s, err)
	}
	return EtherType{Value: uint16(v)}, nil
}

// VlanID wraps an 802.1Q VLAN id.
type VlanID struct {
	Value uint16
}

// ParseVlanID parses a VLAN id in the range 0-4095.
func ParseVlanID(s string) (VlanID, error) {
	v, err := parseUint(s, flowreprog.MaxVlanID)
	if err != nil {
		return VlanID{}, fmt.Errorf("invalid vlan id %q: %w", s, err)
	}
	return VlanID{Value: uint16(v)}, nil
}

// Frame is a raw Ethernet frame given on the command line in hex.
type Frame struct {
	Bytes []byte
}

// ParseFrame parses a hex-encoded frame. Whitespace, colons and an
// optional 0x prefix are ignored.
func ParseFrame(s string) (Frame, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(":", "", " ", "", "\n", "", "\t", "").Replace(s)
	if s == "" {
		return Frame{}, fmt.Errorf("frame cannot be empty")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Frame{}, fmt.Errorf("invalid frame: %w", err)
	}
	return Frame{Bytes: b}, nil
}

func parseUint(s string, limit uint64) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("value cannot be empty")
	}
	var (
		v   uint64
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, err
	}
	if v > limit {
		return 0, fmt.Errorf("out of range 0-%d", limit)
	}
	return v, nil
}
