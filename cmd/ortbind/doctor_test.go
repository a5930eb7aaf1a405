package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsRemoteSource(t *testing.T) {
	tests := map[string]bool{
		"model.onnx":          false,
		"/abs/model.onnx":     false,
		"file:///m.onnx":      false,
		"https://host/m.onnx": true,
		"gs://bucket/m.onnx":  true,
		"HTTP://host/m.onnx":  true,
		"FILE:///tmp/m.onnx":  false,
	}
	for src, want := range tests {
		if got := isRemoteSource(src); got != want {
			t.Errorf("isRemoteSource(%q) = %v; want %v", src, got, want)
		}
	}
}

func fakeRuntimeLib(t *testing.T) string {
	t.Helper()
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so.1.23.0")
	if err := os.WriteFile(lib, []byte("fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return lib
}

func TestDoctorCmd_PassesWithRuntimeAndModel(t *testing.T) {
	useFakeEngine(t)

	dir := t.TempDir()
	modelPath := filepath.Join(dir, "demo.onnx")
	if err := os.WriteFile(modelPath, []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "doctor",
		"--runtime-ort-library-path", fakeRuntimeLib(t),
		"--paths-model-path", modelPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	if !strings.Contains(out, "doctor checks passed") {
		t.Errorf("output:\n%s", out)
	}
}

func TestDoctorCmd_FailsForMissingModel(t *testing.T) {
	useFakeEngine(t)

	out, err := execute(t, "doctor",
		"--runtime-ort-library-path", fakeRuntimeLib(t),
		"--paths-model-path", filepath.Join(t.TempDir(), "absent.onnx"))
	if err == nil {
		t.Fatalf("want doctor failure, output:\n%s", out)
	}
}

func TestDoctorCmd_SkipsRemoteModel(t *testing.T) {
	useFakeEngine(t)

	out, err := execute(t, "doctor",
		"--runtime-ort-library-path", fakeRuntimeLib(t),
		"--paths-model-path", "gs://bucket/m.onnx")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	if !strings.Contains(out, "remote source") {
		t.Errorf("output:\n%s", out)
	}
}

func TestDoctorCmd_LoadInspectsModel(t *testing.T) {
	useFakeEngine(t)

	// The fake engine only knows "demo.onnx", resolved relative to the
	// working directory.
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "demo.onnx"), []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	out, err := execute(t, "doctor", "--load",
		"--runtime-ort-library-path", fakeRuntimeLib(t),
		"--paths-model-path", "demo.onnx")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	if !strings.Contains(out, "inputs=[a, b] outputs=[x, y]") {
		t.Errorf("output:\n%s", out)
	}
}
