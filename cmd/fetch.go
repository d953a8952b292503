package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"stripd/internal/aggregate"
)

func init() {
	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and extract the selected strips, printing results without downloading",
		RunE:  runFetch,
	}

	addSelectionFlags(fetchCmd)
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, _ []string) error {
	cfg, _, registry, runner, err := buildRuntime(cmd)
	if err != nil {
		return err
	}

	keys, err := selectKeys(cfg, registry)
	if err != nil {
		return err
	}

	outcomes, err := runner.Run(context.Background(), keys, flagDate, aggregate.ModeList)
	if err != nil {
		return err
	}

	for _, out := range outcomes {
		printOutcome(out)
	}

	return nil
}
