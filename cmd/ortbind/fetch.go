package main

import (
	"errors"
	"fmt"

	"github.com/example/go-ortbind/internal/model"
	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "fetch [source]",
		Short: "Download a model into the cache and print its local path",
		Long: "Resolve a model source (path, file://, http(s):// or gs://) to a local file.\n" +
			"Without an argument the configured --paths-model-path is used.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			source := cfg.Paths.ModelPath
			if len(args) == 1 {
				source = args[0]
			}

			path, err := model.Resolve(cmd.Context(), source, model.Options{
				CacheDir:  cfg.Paths.CacheDir,
				SHA256:    cfg.Fetch.SHA256,
				HTTPToken: cfg.Fetch.HTTPToken,
				Refresh:   refresh,
				Stdout:    cmd.ErrOrStderr(),
			})
			if err != nil {
				var denied *model.ErrAccessDenied
				if errors.As(err, &denied) {
					return err
				}
				return fmt.Errorf("model fetch failed: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Download again even if a cached copy exists")

	return cmd
}
