package cli

import (
	"context"
	"fmt"
)

// ClassifyCmd reports which programmed entry forwards a frame.
type ClassifyCmd struct {
	OutputFlags
	Intf  string `name:"intf" short:"i" required:"" help:"Interface the frame arrives on."`
	Frame Frame  `name:"frame" required:"" help:"Ethernet frame in hex (colons and spaces ignored)."`
}

// Run executes the classify command.
func (c *ClassifyCmd) Run(cli *CLI, ctx context.Context) error {
	b, err := cli.Client(ctx)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer b.Close()

	res, err := b.Classify(ctx, c.Intf, c.Frame.Bytes)
	if err != nil {
		return err
	}

	output, err := FormatClassifyResult(res, &c.OutputFlags)
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}
