package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fyrsmithlabs/memcore/internal/httpapi"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 9090, "HTTP server port")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the memcore HTTP operations server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		core, logger, err := buildCore(ctx)
		if err != nil {
			return err
		}

		srv, err := httpapi.NewServer(core, logger.Zap(), &httpapi.Config{Port: servePort})
		if err != nil {
			return err
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			logger.Info(ctx, "memcore: received shutdown signal")
			cancel()
		}()

		logger.Info(ctx, "memcore: serving", zap.Int("port", servePort))
		if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}
