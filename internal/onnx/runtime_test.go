package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-ortbind/internal/config"
)

func writeFakeLib(t *testing.T, dir, name string) string {
	t.Helper()
	lib := filepath.Join(dir, name)
	if err := os.WriteFile(lib, []byte("fake"), 0o644); err != nil {
		t.Fatalf("write fake lib: %v", err)
	}
	return lib
}

func TestDetectRuntimePrefersConfig(t *testing.T) {
	tmp := t.TempDir()
	fromCfg := writeFakeLib(t, tmp, "libonnxruntime.so.1.22.0")
	fromEnv := writeFakeLib(t, tmp, "libonnxruntime.so")

	t.Setenv("ORTBIND_ORT_LIB", fromEnv)

	info, err := DetectRuntime(config.RuntimeConfig{ORTLibraryPath: fromCfg})
	if err != nil {
		t.Fatalf("DetectRuntime failed: %v", err)
	}
	if info.LibraryPath != fromCfg {
		t.Fatalf("expected %q, got %q", fromCfg, info.LibraryPath)
	}
	if info.Version != "1.22.0" {
		t.Fatalf("expected version inferred from file name, got %q", info.Version)
	}
}

func TestDetectRuntimePrefersORTBINDORTLIB(t *testing.T) {
	tmp := t.TempDir()
	lib := writeFakeLib(t, tmp, "libonnxruntime.so")

	t.Setenv("ORTBIND_ORT_LIB", lib)
	t.Setenv("ORT_LIBRARY_PATH", filepath.Join(tmp, "does-not-exist"))

	info, err := DetectRuntime(config.RuntimeConfig{})
	if err != nil {
		t.Fatalf("DetectRuntime failed: %v", err)
	}
	if info.LibraryPath != lib {
		t.Fatalf("expected %q, got %q", lib, info.LibraryPath)
	}
}

func TestDetectRuntimeExplicitVersionWins(t *testing.T) {
	lib := writeFakeLib(t, t.TempDir(), "libonnxruntime.so.1.20.1")

	info, err := DetectRuntime(config.RuntimeConfig{ORTLibraryPath: lib, ORTVersion: "1.23.0"})
	if err != nil {
		t.Fatalf("DetectRuntime failed: %v", err)
	}
	if info.Version != "1.23.0" {
		t.Fatalf("expected configured version, got %q", info.Version)
	}
}

func TestDetectRuntimeMissingPath(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.so")

	info, err := DetectRuntime(config.RuntimeConfig{ORTLibraryPath: missing})
	if err == nil {
		t.Fatal("expected error for missing library")
	}
	if info.LibraryPath != missing {
		t.Fatalf("expected reported path %q, got %q", missing, info.LibraryPath)
	}
}

func TestDetectRuntimeNothingFound(t *testing.T) {
	orig := libraryCandidates
	t.Cleanup(func() { libraryCandidates = orig })
	libraryCandidates = nil

	t.Setenv("ORTBIND_ORT_LIB", "")
	t.Setenv("ORT_LIBRARY_PATH", "")

	info, err := DetectRuntime(config.RuntimeConfig{})
	if err == nil {
		t.Fatal("expected detection failure")
	}
	if info.LibraryPath != "not found" {
		t.Fatalf("unexpected library path %q", info.LibraryPath)
	}
}
