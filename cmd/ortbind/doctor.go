package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/example/go-ortbind/internal/binder"
	"github.com/example/go-ortbind/internal/config"
	"github.com/example/go-ortbind/internal/doctor"
	"github.com/example/go-ortbind/internal/onnx"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var load bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime and model checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			dcfg := doctor.Config{
				Runtime: func() (string, string, error) {
					info, err := onnx.DetectRuntime(cfg.Runtime)
					return info.LibraryPath, info.Version, err
				},
				APIVersion: cfg.Runtime.APIVersion,
			}

			if isRemoteSource(cfg.Paths.ModelPath) {
				_, _ = fmt.Fprintf(out, "%s model file: skipped (remote source %s, run fetch first)\n",
					doctor.PassMark, cfg.Paths.ModelPath)
			} else {
				path, err := resolveModel(cmd.Context(), cfg, "", os.Stderr)
				if err != nil {
					return err
				}
				dcfg.ModelFiles = []string{path}
			}

			if load {
				dcfg.Inspect = func(path string) ([]string, []string, error) {
					return inspectModel(cmd, cfg.Runtime, path)
				}
			}

			result := doctor.Run(dcfg, out)

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&load, "load", false, "Also load the model and list its declared names")

	return cmd
}

func isRemoteSource(source string) bool {
	scheme, _, ok := strings.Cut(source, "://")
	return ok && !strings.EqualFold(scheme, "file")
}

func inspectModel(cmd *cobra.Command, rcfg config.RuntimeConfig, path string) ([]string, []string, error) {
	eng, err := newEngine(rcfg)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = eng.Close() }()

	b, err := binder.Open(cmd.Context(), eng, path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = b.Close() }()

	return names(b.Inputs()), names(b.Outputs()), nil
}

func names(specs []binder.TensorSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name
	}
	return out
}
