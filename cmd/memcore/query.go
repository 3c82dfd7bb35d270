package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/memcore/internal/retriever"
	"github.com/spf13/cobra"
)

var (
	retrieveTopK    int
	retrieveMode    string
	retrieveBoost   string
	retrieveExclude string

	compressMaxTokens int

	materializeMaxTokens int
)

func init() {
	retrieveCmd.Flags().IntVar(&retrieveTopK, "top-k", 0, "number of results (0 = config default)")
	retrieveCmd.Flags().StringVar(&retrieveMode, "mode", "", "dense or rrf (empty = dense)")
	retrieveCmd.Flags().StringVar(&retrieveBoost, "boost", "", "comma-separated block ids to boost")
	retrieveCmd.Flags().StringVar(&retrieveExclude, "exclude", "", "comma-separated block ids to exclude")

	compressCmd.Flags().IntVar(&compressMaxTokens, "max-tokens", 0, "token budget (required)")
	_ = compressCmd.MarkFlagRequired("max-tokens")

	materializeCmd.Flags().IntVar(&materializeMaxTokens, "max-tokens", 0, "token budget (required)")
	_ = materializeCmd.MarkFlagRequired("max-tokens")
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Run hybrid retrieval and print ranked results as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		core, _, err := buildCore(ctx)
		if err != nil {
			return err
		}

		req := retriever.Request{
			Query:   args[0],
			TopK:    retrieveTopK,
			Boost:   splitCSV(retrieveBoost),
			Exclude: splitCSV(retrieveExclude),
			Mode:    retriever.Mode(retrieveMode),
		}
		results, err := core.Retrieve(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(cmd, results)
	},
}

var reflectCmd = &cobra.Command{
	Use:   "reflect [block-id]",
	Short: "Propose and persist relationships from a seed block",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		core, _, err := buildCore(ctx)
		if err != nil {
			return err
		}
		out, err := core.Reflect(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	},
}

var compressCmd = &cobra.Command{
	Use:   "compress [block-id...]",
	Short: "Compress a set of blocks to fit a token budget",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		core, _, err := buildCore(ctx)
		if err != nil {
			return err
		}
		res, err := core.Compress(ctx, args, compressMaxTokens)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var materializeCmd = &cobra.Command{
	Use:   "materialize-context [goal]",
	Short: "Retrieve and assemble a token-budgeted context for a goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		core, _, err := buildCore(ctx)
		if err != nil {
			return err
		}
		res, err := core.MaterializeContext(ctx, args[0], materializeMaxTokens)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
