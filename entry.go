// Package flowreprog defines the flow entry values exchanged between the
// reprogrammer and a flow-table service.
package flowreprog

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/netip"
	"slices"
	"strings"
)

// Priority ranks flow entries that match the same traffic. Higher wins.
type Priority uint16

// MaxPriority is the highest representable priority.
const MaxPriority Priority = math.MaxUint16

// MaxVlanID is the highest valid 802.1Q VLAN id.
const MaxVlanID = 4095

// EthAddr is a 48-bit Ethernet address. The zero value means "not set".
type EthAddr [6]byte

// ParseEthAddr parses a colon or dash separated MAC address.
func ParseEthAddr(s string) (EthAddr, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return EthAddr{}, err
	}
	if len(hw) != 6 {
		return EthAddr{}, fmt.Errorf("ethernet address %q is not 48 bits", s)
	}
	var a EthAddr
	copy(a[:], hw)
	return a, nil
}

// IsZero reports whether the address is unset.
func (a EthAddr) IsZero() bool {
	return a == EthAddr{}
}

func (a EthAddr) String() string {
	return net.HardwareAddr(a[:]).String()
}

// MarshalText implements encoding.TextMarshaler.
func (a EthAddr) MarshalText() ([]byte, error) {
	if a.IsZero() {
		return []byte{}, nil
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *EthAddr) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*a = EthAddr{}
		return nil
	}
	parsed, err := ParseEthAddr(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Match holds the criteria a packet must satisfy for an entry to apply.
// Zero-valued fields are wildcards. InputIntfs is a set: order and
// duplicates are not significant.
type Match struct {
	InputIntfs []string     `json:"input_intfs,omitempty" yaml:"input_intfs,omitempty"`
	EthSrc     EthAddr      `json:"eth_src,omitzero" yaml:"eth_src,omitempty"`
	EthDst     EthAddr      `json:"eth_dst,omitzero" yaml:"eth_dst,omitempty"`
	EthType    uint16       `json:"eth_type,omitempty" yaml:"eth_type,omitempty"`
	VlanID     uint16       `json:"vlan_id,omitempty" yaml:"vlan_id,omitempty"`
	VlanMask   uint16       `json:"vlan_mask,omitempty" yaml:"vlan_mask,omitempty"`
	Cos        uint8        `json:"cos,omitempty" yaml:"cos,omitempty"`
	IPSrc      netip.Prefix `json:"ip_src,omitzero" yaml:"ip_src,omitempty"`
	IPDst      netip.Prefix `json:"ip_dst,omitzero" yaml:"ip_dst,omitempty"`
}

// Action describes what happens to matching packets. Zero-valued rewrite
// fields are not applied. Drop discards the packet; otherwise packets
// leave through OutputIntfs.
type Action struct {
	OutputIntfs []string   `json:"output_intfs,omitempty" yaml:"output_intfs,omitempty"`
	Drop        bool       `json:"drop,omitempty" yaml:"drop,omitempty"`
	VlanID      uint16     `json:"vlan_id,omitempty" yaml:"vlan_id,omitempty"`
	Cos         uint8      `json:"cos,omitempty" yaml:"cos,omitempty"`
	EthSrc      EthAddr    `json:"eth_src,omitzero" yaml:"eth_src,omitempty"`
	EthDst      EthAddr    `json:"eth_dst,omitzero" yaml:"eth_dst,omitempty"`
	IPSrc       netip.Addr `json:"ip_src,omitzero" yaml:"ip_src,omitempty"`
	IPDst       netip.Addr `json:"ip_dst,omitzero" yaml:"ip_dst,omitempty"`
}

// Entry is a named flow entry. Entries are values: submitting the same
// Entry twice describes the same hardware state.
type Entry struct {
	Name     string   `json:"name" yaml:"name"`
	Match    Match    `json:"match" yaml:"match"`
	Action   Action   `json:"action" yaml:"action"`
	Priority Priority `json:"priority" yaml:"priority"`
}

// Validate checks that the entry can be handed to a flow table by a
// caller. Temporary entry names are rejected.
func (e Entry) Validate() error {
	var errs []error
	switch {
	case e.Name == "":
		errs = append(errs, ErrEmptyName)
	case strings.HasSuffix(e.Name, TempSuffix):
		errs = append(errs, ErrReservedSuffix)
	}
	if e.Priority == 0 {
		errs = append(errs, ErrZeroPriority)
	}
	if e.Match.VlanID > MaxVlanID {
		errs = append(errs, fmt.Errorf("match vlan id %d out of range", e.Match.VlanID))
	}
	if e.Action.VlanID > MaxVlanID {
		errs = append(errs, fmt.Errorf("action vlan id %d out of range", e.Action.VlanID))
	}
	if e.Match.Cos > 7 || e.Action.Cos > 7 {
		errs = append(errs, errors.New("cos must be in the range 0-7"))
	}
	if e.Action.Drop && len(e.Action.OutputIntfs) > 0 {
		errs = append(errs, errors.New("drop action cannot have output interfaces"))
	}
	if len(errs) == 0 {
		return nil
	}
	return &InvalidEntryError{Name: e.Name, Err: errors.Join(errs...)}
}

// TempEntry returns the temporary entry that shadows e during an
// in-place update: same match and action, priority one higher, temp
// name.
func (e Entry) TempEntry() (Entry, error) {
	if e.Priority == MaxPriority {
		return Entry{}, ErrPriorityOverflow
	}
	tmp := e.Clone()
	tmp.Name = TempName(e.Name)
	tmp.Priority = e.Priority + 1
	return tmp, nil
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	e.Match.InputIntfs = slices.Clone(e.Match.InputIntfs)
	e.Action.OutputIntfs = slices.Clone(e.Action.OutputIntfs)
	return e
}

// Equal reports whether two entries describe the same flow.
func (e Entry) Equal(o Entry) bool {
	return e.Name == o.Name &&
		e.Priority == o.Priority &&
		e.Match.Equal(o.Match) &&
		e.Action.Equal(o.Action)
}

// Equal reports whether two matches select the same traffic.
func (m Match) Equal(o Match) bool {
	return m.EthSrc == o.EthSrc &&
		m.EthDst == o.EthDst &&
		m.EthType == o.EthType &&
		m.VlanID == o.VlanID &&
		m.VlanMask == o.VlanMask &&
		m.Cos == o.Cos &&
		m.IPSrc == o.IPSrc &&
		m.IPDst == o.IPDst &&
		sameSet(m.InputIntfs, o.InputIntfs)
}

// Equal reports whether two actions have the same effect.
func (a Action) Equal(o Action) bool {
	return a.Drop == o.Drop &&
		a.VlanID == o.VlanID &&
		a.Cos == o.Cos &&
		a.EthSrc == o.EthSrc &&
		a.EthDst == o.EthDst &&
		a.IPSrc == o.IPSrc &&
		a.IPDst == o.IPDst &&
		sameSet(a.OutputIntfs, o.OutputIntfs)
}

func (e Entry) String() string {
	return fmt.Sprintf("%s(prio=%d match=%s action=%s)", e.Name, e.Priority, e.Match, e.Action)
}

func (m Match) String() string {
	var parts []string
	if len(m.InputIntfs) > 0 {
		parts = append(parts, "in="+strings.Join(setOf(m.InputIntfs), ","))
	}
	if !m.EthSrc.IsZero() {
		parts = append(parts, "eth_src="+m.EthSrc.String())
	}
	if !m.EthDst.IsZero() {
		parts = append(parts, "eth_dst="+m.EthDst.String())
	}
	if m.EthType != 0 {
		parts = append(parts, fmt.Sprintf("eth_type=0x%04x", m.EthType))
	}
	if m.VlanID != 0 {
		parts = append(parts, fmt.Sprintf("vlan=%d", m.VlanID))
	}
	if m.IPSrc.IsValid() {
		parts = append(parts, "ip_src="+m.IPSrc.String())
	}
	if m.IPDst.IsValid() {
		parts = append(parts, "ip_dst="+m.IPDst.String())
	}
	if len(parts) == 0 {
		return "any"
	}
	return strings.Join(parts, " ")
}

func (a Action) String() string {
	var parts []string
	switch {
	case a.Drop:
		parts = append(parts, "drop")
	case len(a.OutputIntfs) > 0:
		parts = append(parts, "out="+strings.Join(setOf(a.OutputIntfs), ","))
	}
	if a.VlanID != 0 {
		parts = append(parts, fmt.Sprintf("set_vlan=%d", a.VlanID))
	}
	if a.IPSrc.IsValid() {
		parts = append(parts, "set_ip_src="+a.IPSrc.String())
	}
	if a.IPDst.IsValid() {
		parts = append(parts, "set_ip_dst="+a.IPDst.String())
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

// setOf returns the sorted, de-duplicated members of s.
func setOf(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return slices.Compact(out)
}

func sameSet(a, b []string) bool {
	return slices.Equal(setOf(a), setOf(b))
}
