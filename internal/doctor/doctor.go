// Package doctor provides environment preflight checks for ortbind.
package doctor

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// RuntimeFunc reports the ONNX Runtime library path and version, or an
// error if no library could be found.
type RuntimeFunc func() (path, version string, err error)

// InspectFunc loads a model and returns its declared input and output names.
type InspectFunc func(path string) (inputs, outputs []string, err error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Runtime locates the ONNX Runtime shared library.
	Runtime RuntimeFunc
	// SkipRuntime skips the runtime check.
	SkipRuntime bool
	// APIVersion is the ONNX Runtime C API version the binary will request.
	// A known runtime version whose minor is lower fails the check. Zero
	// disables the comparison.
	APIVersion uint32
	// ModelFiles is the list of model paths to verify on disk.
	ModelFiles []string
	// Inspect, when set, loads each model file that exists and lists its
	// declared names.
	Inspect InspectFunc
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- onnx runtime -----------------------------------------------------
	switch {
	case cfg.SkipRuntime:
		fmt.Fprintf(w, "%s onnx runtime: skipped\n", PassMark)
	case cfg.Runtime == nil:
		res.fail("onnx runtime: no detector configured")
		fmt.Fprintf(w, "%s onnx runtime: no detector configured\n", FailMark)
	default:
		path, ver, err := cfg.Runtime()
		if err != nil {
			res.fail(fmt.Sprintf("onnx runtime: %v", err))
			fmt.Fprintf(w, "%s onnx runtime: not found (%v)\n", FailMark, err)
		} else if verErr := checkRuntimeVersion(ver, cfg.APIVersion); verErr != nil {
			res.fail(fmt.Sprintf("onnx runtime version: %v", verErr))
			fmt.Fprintf(w, "%s onnx runtime %s (%s): %v\n", FailMark, ver, path, verErr)
		} else {
			fmt.Fprintf(w, "%s onnx runtime: %s (%s)\n", PassMark, ver, path)
		}
	}

	// ---- model files ------------------------------------------------------
	for _, path := range cfg.ModelFiles {
		if _, err := os.Stat(path); err != nil {
			res.fail(fmt.Sprintf("model file %q: %v", path, err))
			fmt.Fprintf(w, "%s model file %s: not found\n", FailMark, path)
			continue
		}
		fmt.Fprintf(w, "%s model file: %s\n", PassMark, path)

		if cfg.Inspect == nil {
			continue
		}
		inputs, outputs, err := cfg.Inspect(path)
		if err != nil {
			res.fail(fmt.Sprintf("model load %q: %v", path, err))
			fmt.Fprintf(w, "%s model load %s: %v\n", FailMark, path, err)
			continue
		}
		fmt.Fprintf(w, "%s model load: inputs=[%s] outputs=[%s]\n",
			PassMark, strings.Join(inputs, ", "), strings.Join(outputs, ", "))
	}

	return res
}

// checkRuntimeVersion returns an error if ver is not a 1.x release whose
// minor version covers apiVersion. ORT 1.N exposes C API versions up to N.
// An unknown version passes, since it is only inferred from file names.
func checkRuntimeVersion(ver string, apiVersion uint32) error {
	if ver == "" || ver == "unknown" {
		return nil
	}
	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}
	if major != 1 {
		return fmt.Errorf("requires ONNX Runtime 1.x, got %d", major)
	}
	if apiVersion > 0 && minor < int(apiVersion) {
		return fmt.Errorf("requires ONNX Runtime >=1.%d for API version %d, got 1.%d", apiVersion, apiVersion, minor)
	}
	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	parts := strings.SplitN(ver, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}
	return major, minor, nil
}
