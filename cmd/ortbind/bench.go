package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/example/go-ortbind/internal/bench"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		inputs    []string
		runs      int
		format    string
		threshold time.Duration
		skipCold  bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark inference latency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
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

			feed, err := buildInputs(b.Inputs(), overrides, rand.New(rand.NewPCG(1, 2)))
			if err != nil {
				return err
			}

			results, err := bench.Measure(cmd.Context(), b, feed, runs)
			if err != nil {
				return err
			}

			durations := bench.Durations(results, skipCold && len(results) > 1)
			stats := bench.ComputeStats(durations)

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				bench.FormatJSON(results, stats, out)
			default:
				bench.FormatTable(results, stats, out)
			}

			return bench.CheckThreshold(stats.Mean, threshold)
		},
	}

	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Input override name=dtype:shape (repeatable)")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of inference runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().DurationVar(&threshold, "threshold", 0, "Exit non-zero if mean latency exceeds this value (0 = disabled)")
	cmd.Flags().BoolVar(&skipCold, "skip-cold", false, "Exclude the cold first run from the statistics")

	return cmd
}
