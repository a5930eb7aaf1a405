package main

import (
	"fmt"

	"github.com/example/go-ortbind/internal/server"
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var (
		addr      string
		wantReady bool
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running server's /health endpoint and model state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.ListenAddr
			}

			health, err := server.FetchHealth(addr)
			if err != nil {
				return err
			}
			if wantReady && health.Model != "ready" {
				return fmt.Errorf("server at %s is up but model is %q", addr, health.Model)
			}

			out := cmd.OutOrStdout()
			if health.Model == "" {
				_, err = fmt.Fprintln(out, health.Status)
				return err
			}
			_, err = fmt.Fprintf(out, "%s model=%s version=%s\n", health.Status, health.Model, health.Version)
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP server address to probe")
	cmd.Flags().BoolVar(&wantReady, "ready", false, "Fail unless the server reports a loaded model")

	return cmd
}
