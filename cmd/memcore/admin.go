package main

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/memcore/internal/decay"
	"github.com/spf13/cobra"
)

var (
	decayPolicy        string
	decayThresholdDays  int
	decayUsageThreshold float64

	listIncludeArchived bool
)

func init() {
	decayCmd.Flags().StringVar(&decayPolicy, "policy", "by_time", "by_time, by_usage, or both")
	decayCmd.Flags().IntVar(&decayThresholdDays, "threshold-days", 0, "staleness threshold in days (0 = config default)")
	decayCmd.Flags().Float64Var(&decayUsageThreshold, "usage-threshold", 0, "access-ratio threshold (0 = config default)")

	listBlocksCmd.Flags().BoolVar(&listIncludeArchived, "include-archived", false, "include archived blocks")
}

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Run the lifecycle decay pass and archive qualifying blocks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		core, _, err := buildCore(ctx)
		if err != nil {
			return err
		}

		policy := decay.Policy(decayPolicy)
		switch policy {
		case decay.ByTime, decay.ByUsage, decay.Both:
		default:
			return fmt.Errorf("unknown --policy %q", decayPolicy)
		}

		out, err := core.DecayRun(ctx, policy, decay.Params{
			ThresholdDays:  decayThresholdDays,
			UsageThreshold: decayUsageThreshold,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	},
}

var listBlocksCmd = &cobra.Command{
	Use:   "list-blocks",
	Short: "List blocks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		core, _, err := buildCore(ctx)
		if err != nil {
			return err
		}
		blocks, err := core.ListBlocks(ctx, listIncludeArchived)
		if err != nil {
			return err
		}
		return printJSON(cmd, blocks)
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex-all",
	Short: "Reset the vector store and re-encode every non-archived block",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		core, _, err := buildCore(ctx)
		if err != nil {
			return err
		}
		return core.ReindexAll(ctx)
	},
}

var resetVectorsCmd = &cobra.Command{
	Use:   "reset-vectors",
	Short: "Clear the vector store without touching the blockstore",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		core, _, err := buildCore(ctx)
		if err != nil {
			return err
		}
		return core.ResetVectors(ctx)
	},
}
