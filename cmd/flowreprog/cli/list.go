package cli

import (
	"context"
	"fmt"
)

// ListCmd lists configured flow entries.
type ListCmd struct {
	OutputFlags
}

// Run executes the list command.
func (c *ListCmd) Run(cli *CLI, ctx context.Context) error {
	b, err := cli.Client(ctx)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer b.Close()

	flows, err := b.ListFlows(ctx)
	if err != nil {
		return err
	}

	if len(flows) == 0 && c.Format() == OutputFormatTable {
		return cli.PrintOut("No flow entries found\n")
	}

	output, err := FormatFlowList(flows, &c.OutputFlags)
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}

// PendingCmd lists the flows whose reprogramming is in flight.
type PendingCmd struct {
	OutputFlags
}

// Run executes the pending command.
func (c *PendingCmd) Run(cli *CLI, ctx context.Context) error {
	b, err := cli.Client(ctx)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer b.Close()

	reqs, err := b.ListPending(ctx)
	if err != nil {
		return err
	}

	if len(reqs) == 0 && c.Format() == OutputFormatTable {
		return cli.PrintOut("No reprogramming in flight\n")
	}

	output, err := FormatPending(reqs, &c.OutputFlags)
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}
