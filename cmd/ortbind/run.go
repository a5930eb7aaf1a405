package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/example/go-ortbind/internal/batch"
	"github.com/example/go-ortbind/internal/binder"
	"github.com/example/go-ortbind/internal/tensor"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		inputs  []string
		seed    uint64
		count   int
		workers int
		asJSON  bool
		preview int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load the model, feed generated inputs and print the outputs",
		Long: "Load the configured model and run it once with a tensor for every declared input.\n" +
			"Inputs default to random float32 1x3x224x224; override with --input name=dtype:shape.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if count < 1 {
				return fmt.Errorf("--batch must be at least 1")
			}

			overrides, err := parseInputSpecs(inputs)
			if err != nil {
				return err
			}

			b, closeModel, err := openModel(cmd.Context(), cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = closeModel() }()

			rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
			requests := make([]map[string]*tensor.Tensor, count)
			for i := range requests {
				requests[i], err = buildInputs(b.Inputs(), overrides, rng)
				if err != nil {
					return err
				}
			}

			results, err := batch.Run(cmd.Context(), b, requests, workers)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeRunJSON(out, results)
			}
			writeRunSummary(out, b.Outputs(), results, preview)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Input override name=dtype:shape (repeatable)")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Seed for random float inputs")
	cmd.Flags().IntVar(&count, "batch", 1, "Number of independent requests to run")
	cmd.Flags().IntVar(&workers, "workers", 1, "Concurrent requests when --batch > 1")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print full output tensors as JSON")
	cmd.Flags().IntVar(&preview, "preview", 8, "Number of values shown per output tensor")

	return cmd
}

func writeRunSummary(w io.Writer, outputs []binder.TensorSpec, results []map[string]*tensor.Tensor, preview int) {
	for i, res := range results {
		if len(results) > 1 {
			fmt.Fprintf(w, "request %d:\n", i)
		}
		for _, spec := range outputs {
			fmt.Fprintf(w, "%s: %s\n", spec.Name, res[spec.Name].Summary(preview))
		}
	}
}

func writeRunJSON(w io.Writer, results []map[string]*tensor.Tensor) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(results) == 1 {
		return enc.Encode(map[string]any{"outputs": results[0]})
	}
	return enc.Encode(map[string]any{"results": results})
}
