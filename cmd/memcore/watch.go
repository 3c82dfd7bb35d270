package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fyrsmithlabs/memcore/internal/inflow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	watchExtensions string
	watchTags       string
)

func init() {
	watchCmd.Flags().StringVar(&watchExtensions, "extensions", ".md,.txt", "comma-separated file extensions to record, empty means all")
	watchCmd.Flags().StringVar(&watchTags, "tags", "", "comma-separated tags attached to every recorded block")
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a folder and record new text files as blocks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		core, logger, err := buildCore(ctx)
		if err != nil {
			return err
		}

		var extensions []string
		if watchExtensions != "" {
			extensions = strings.Split(watchExtensions, ",")
		}
		var tags []string
		if watchTags != "" {
			tags = strings.Split(watchTags, ",")
		}

		w, err := inflow.New(inflow.Config{
			Dir:        args[0],
			Extensions: extensions,
			Tags:       tags,
		}, core, logger)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		logger.Info(ctx, "memcore: watching inflow folder", zap.String("dir", args[0]))
		<-sigCh
		logger.Info(ctx, "memcore: received shutdown signal")
		return nil
	},
}
