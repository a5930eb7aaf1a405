// Package testutil provides shared skip helpers and fixtures for tests that
// need a real ONNX Runtime.
//
// Each helper calls t.Skip with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    lib := testutil.RequireONNXRuntime(t)
//	    model := testutil.IdentityModel(t)
//	    ...
//	}
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-ortbind/internal/onnx/onnxtest"
	"github.com/example/go-ortbind/internal/tensor"
)

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located and returns its path otherwise. It checks (in order): the
// ORT_LIBRARY_PATH env var, the ORTBIND_ORT_LIB env var, then common system
// library paths.
func RequireONNXRuntime(tb testing.TB) string {
	tb.Helper()

	for _, env := range []string{"ORT_LIBRARY_PATH", "ORTBIND_ORT_LIB"} {
		if p := os.Getenv(env); p != "" {
			// #nosec G703 -- Integration tests intentionally accept explicit env-provided local library paths.
			if _, err := os.Stat(p); err == nil {
				return p
			}

			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)
			return ""
		}
	}

	candidates := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	tb.Skip("ONNX Runtime shared library not found; set ORT_LIBRARY_PATH or ORTBIND_ORT_LIB")
	return ""
}

// IdentityModel writes a two-input identity model (a→x float32[1,4],
// b→y int64[2]) into a temp dir and returns its path.
func IdentityModel(tb testing.TB) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "identity.onnx")
	err := onnxtest.WriteIdentityModel(path,
		onnxtest.Identity{Input: "a", Output: "x", DType: tensor.Float32, Shape: []int64{1, 4}},
		onnxtest.Identity{Input: "b", Output: "y", DType: tensor.Int64, Shape: []int64{2}},
	)
	if err != nil {
		tb.Fatalf("write identity model: %v", err)
	}

	return path
}
