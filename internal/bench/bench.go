// Package bench provides benchmarking primitives for the ortbind bench command.
package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/example/go-ortbind/internal/tensor"
)

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the timing of a single inference run.
type RunResult struct {
	Index    int
	Cold     bool // true for the first run (cold-start)
	Duration time.Duration
	Outputs  int
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
	P50  time.Duration
	P95  time.Duration
}

// ComputeStats calculates min, max, mean and percentiles over durations.
// An empty slice yields zero Stats.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}
	sorted := slices.Clone(durations)
	slices.Sort(sorted)

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	return Stats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: sum / time.Duration(len(sorted)),
		P50:  percentile(sorted, 50),
		P95:  percentile(sorted, 95),
	}
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// Durations extracts the run durations, optionally skipping the cold run.
func Durations(runs []RunResult, skipCold bool) []time.Duration {
	out := make([]time.Duration, 0, len(runs))
	for _, r := range runs {
		if skipCold && r.Cold {
			continue
		}
		out = append(out, r.Duration)
	}
	return out
}

// ---------------------------------------------------------------------------
// Measurement
// ---------------------------------------------------------------------------

// Inferer runs one name-keyed inference.
type Inferer interface {
	Infer(ctx context.Context, inputs map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error)
}

// Measure calls inf.Infer runs times with the same inputs. The first run is
// marked cold. Measurement stops at the first error.
func Measure(ctx context.Context, inf Inferer, inputs map[string]*tensor.Tensor, runs int) ([]RunResult, error) {
	if runs < 1 {
		return nil, errors.New("runs must be >= 1")
	}

	results := make([]RunResult, 0, runs)
	for i := range runs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		start := time.Now()
		out, err := inf.Infer(ctx, inputs)
		elapsed := time.Since(start)
		if err != nil {
			return results, fmt.Errorf("run %d: %w", i+1, err)
		}
		results = append(results, RunResult{
			Index:    i,
			Cold:     i == 0,
			Duration: elapsed,
			Outputs:  len(out),
		})
	}
	return results, nil
}

// ---------------------------------------------------------------------------
// Latency threshold gate
// ---------------------------------------------------------------------------

// CheckThreshold returns an error if mean > threshold.
// A threshold of 0 disables the gate.
func CheckThreshold(mean, threshold time.Duration) error {
	if threshold <= 0 {
		return nil
	}
	if mean > threshold {
		return fmt.Errorf("mean latency %s exceeds threshold %s", mean, threshold)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// FormatTable writes a human-readable ASCII table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %-5s  %10s  %8s\n", "Run", "Cold", "MS", "Outputs")
	fmt.Fprintln(sb, strings.Repeat("-", 34))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}
		fmt.Fprintf(sb, "%-5d  %-5s  %10.2f  %8d\n", r.Index+1, cold, ms(r.Duration), r.Outputs)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 34))
	for _, row := range []struct {
		label string
		d     time.Duration
	}{
		{"min", stats.Min},
		{"mean", stats.Mean},
		{"p50", stats.P50},
		{"p95", stats.P95},
		{"max", stats.Max},
	} {
		fmt.Fprintf(sb, "%-5s  %-5s  %10.2f  %8s  (%s)\n", "", "", ms(row.d), "", row.label)
	}

	fmt.Fprint(w, sb.String())
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index      int     `json:"index"`
	Cold       bool    `json:"cold"`
	DurationMS float64 `json:"duration_ms"`
	Outputs    int     `json:"outputs"`
}

type jsonStats struct {
	MinMS  float64 `json:"min_ms"`
	MeanMS float64 `json:"mean_ms"`
	P50MS  float64 `json:"p50_ms"`
	P95MS  float64 `json:"p95_ms"`
	MaxMS  float64 `json:"max_ms"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:  ms(stats.Min),
			MeanMS: ms(stats.Mean),
			P50MS:  ms(stats.P50),
			P95MS:  ms(stats.P95),
			MaxMS:  ms(stats.Max),
		},
	}
	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:      r.Index,
			Cold:       r.Cold,
			DurationMS: ms(r.Duration),
			Outputs:    r.Outputs,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(jr)
}
