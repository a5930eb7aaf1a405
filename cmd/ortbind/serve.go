package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/go-ortbind/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the model over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			b, closeModel, err := openModel(ctx, cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = closeModel() }()

			return server.New(cfg.Server, b).Start(ctx)
		},
	}

	return cmd
}
