package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fyrsmithlabs/memcore/internal/blockstore"
	"github.com/fyrsmithlabs/memcore/internal/project"
	"github.com/spf13/cobra"
)

var (
	recordTitle    string
	recordBody     string
	recordTags     string
	recordInfoType string

	linkKind   string
	linkWeight float64
)

func init() {
	recordCmd.Flags().StringVar(&recordTitle, "title", "", "block title (required)")
	recordCmd.Flags().StringVar(&recordBody, "body", "", "block body (required)")
	recordCmd.Flags().StringVar(&recordTags, "tags", "", "comma-separated tags")
	recordCmd.Flags().StringVar(&recordInfoType, "type", "static", "information_type: static, semi-static, dynamic, ephemeral")
	_ = recordCmd.MarkFlagRequired("title")
	_ = recordCmd.MarkFlagRequired("body")

	linkCmd.Flags().StringVar(&linkKind, "kind", "relates_to", "relationship kind")
	linkCmd.Flags().Float64Var(&linkWeight, "weight", 0.5, "relationship weight in [0, 1]")
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Create a new knowledge block without encoding it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		core, _, err := buildCore(ctx)
		if err != nil {
			return err
		}

		var tags []string
		if recordTags != "" {
			tags = strings.Split(recordTags, ",")
		}

		var extra map[string]interface{}
		if wd, err := os.Getwd(); err == nil {
			if info, err := project.Detect(wd); err == nil && (info.Branch != "" || info.Commit != "") {
				extra = map[string]interface{}{
					"git_branch": info.Branch,
					"git_commit": info.Commit,
				}
			}
		}

		id, err := core.Record(ctx, recordTitle, recordBody, tags, blockstore.InformationType(recordInfoType), extra)
		if err != nil {
			return err
		}
		cmd.Println(id)
		return nil
	},
}

var encodeCmd = &cobra.Command{
	Use:   "encode [block-id]",
	Short: "Embed a block and upsert it into the vector store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		core, _, err := buildCore(ctx)
		if err != nil {
			return err
		}
		return core.Encode(ctx, args[0])
	},
}

var linkCmd = &cobra.Command{
	Use:   "link [source-id] [target-id]",
	Short: "Create an explicit relationship between two blocks",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		core, _, err := buildCore(ctx)
		if err != nil {
			return err
		}
		if linkWeight < 0 || linkWeight > 1 {
			return fmt.Errorf("--weight must be in [0, 1]")
		}
		return core.Link(ctx, args[0], args[1], linkKind, linkWeight)
	},
}
