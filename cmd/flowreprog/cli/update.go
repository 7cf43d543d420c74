package cli

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/client"
)

// UpdateCmd installs a flow entry, or reprograms it in place if it is
// already installed.
type UpdateCmd struct {
	OutputFlags
	Name     string   `arg:"" name:"name" help:"Flow entry name."`
	Priority Priority `name:"priority" short:"p" required:"" help:"Entry priority (1-65535, supports hex with 0x prefix)."`

	MatchFlags  `embed:""`
	ActionFlags `embed:""`

	Wait time.Duration `name:"wait" help:"Wait up to this long for reprogramming to finish." default:"0s"`
}

// MatchFlags select the traffic an entry applies to.
type MatchFlags struct {
	In       []string           `name:"in" help:"Input interfaces (repeatable or comma separated)."`
	EthSrc   flowreprog.EthAddr `name:"eth-src" help:"Match source MAC address."`
	EthDst   flowreprog.EthAddr `name:"eth-dst" help:"Match destination MAC address."`
	EthType  EtherType          `name:"eth-type" help:"Match EtherType (0x0800, ipv4, ipv6, arp, vlan)."`
	Vlan     VlanID             `name:"vlan" help:"Match VLAN id."`
	VlanMask VlanID             `name:"vlan-mask" help:"Mask applied to the VLAN id before matching."`
	Cos      uint8              `name:"cos" help:"Match 802.1p class of service."`
	IPSrc    netip.Prefix       `name:"ip-src" help:"Match IPv4 source prefix."`
	IPDst    netip.Prefix       `name:"ip-dst" help:"Match IPv4 destination prefix."`
}

// ActionFlags describe what happens to matching packets.
type ActionFlags struct {
	Out    []string           `name:"out" help:"Output interfaces (repeatable or comma separated)."`
	Drop   bool               `name:"drop" help:"Drop matching packets."`
	Vlan   VlanID             `name:"set-vlan" help:"Rewrite the VLAN id."`
	Cos    uint8              `name:"set-cos" help:"Rewrite the class of service."`
	EthSrc flowreprog.EthAddr `name:"set-eth-src" help:"Rewrite the source MAC address."`
	EthDst flowreprog.EthAddr `name:"set-eth-dst" help:"Rewrite the destination MAC address."`
	IPSrc  netip.Addr         `name:"set-ip-src" help:"Rewrite the IPv4 source address."`
	IPDst  netip.Addr         `name:"set-ip-dst" help:"Rewrite the IPv4 destination address."`
}

// Entry builds the flow entry described by the command line.
func (c *UpdateCmd) Entry() flowreprog.Entry {
	return flowreprog.Entry{
		Name:     c.Name,
		Priority: c.Priority.Value,
		Match: flowreprog.Match{
			InputIntfs: c.MatchFlags.In,
			EthSrc:     c.MatchFlags.EthSrc,
			EthDst:     c.MatchFlags.EthDst,
			EthType:    c.MatchFlags.EthType.Value,
			VlanID:     c.MatchFlags.Vlan.Value,
			VlanMask:   c.MatchFlags.VlanMask.Value,
			Cos:        c.MatchFlags.Cos,
			IPSrc:      c.MatchFlags.IPSrc,
			IPDst:      c.MatchFlags.IPDst,
		},
		Action: flowreprog.Action{
			OutputIntfs: c.ActionFlags.Out,
			Drop:        c.ActionFlags.Drop,
			VlanID:      c.ActionFlags.Vlan.Value,
			Cos:         c.ActionFlags.Cos,
			EthSrc:      c.ActionFlags.EthSrc,
			EthDst:      c.ActionFlags.EthDst,
			IPSrc:       c.ActionFlags.IPSrc,
			IPDst:       c.ActionFlags.IPDst,
		},
	}
}

// Run executes the update command.
func (c *UpdateCmd) Run(cli *CLI, ctx context.Context) error {
	b, err := cli.Client(ctx)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer b.Close()

	res, err := b.UpdateFlow(ctx, c.Entry())
	if err != nil {
		return err
	}

	if res.Pending != nil && c.Wait > 0 {
		if err := waitSettled(ctx, b, c.Name, c.Wait); err != nil {
			return err
		}
		res.Pending = nil
	}

	output, err := FormatUpdateResult(res, &c.OutputFlags)
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}

const waitInterval = 50 * time.Millisecond

// waitSettled polls until name has no reprogramming in flight.
func waitSettled(ctx context.Context, b client.Client, name string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(waitInterval)
	defer ticker.Stop()
	for {
		info, err := b.GetFlow(ctx, name)
		if err != nil {
			return err
		}
		if info.Phase == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("flow %s still %s: %w", name, info.Phase, ctx.Err())
		case <-ticker.C:
		}
	}
}
