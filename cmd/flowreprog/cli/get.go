package cli

import (
	"context"
	"fmt"
)

// GetCmd shows a configured flow entry.
type GetCmd struct {
	OutputFlags
	Name string `arg:"" name:"name" help:"Flow entry name."`
}

// Run executes the get command.
func (c *GetCmd) Run(cli *CLI, ctx context.Context) error {
	b, err := cli.Client(ctx)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer b.Close()

	info, err := b.GetFlow(ctx, c.Name)
	if err != nil {
		return err
	}

	output, err := FormatFlowInfo(info, &c.OutputFlags)
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}
