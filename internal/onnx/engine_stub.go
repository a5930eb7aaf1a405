//go:build windows || (js && wasm)

package onnx

import (
	"context"
	"errors"
	"runtime"

	"github.com/example/go-ortbind/internal/binder"
	"github.com/example/go-ortbind/internal/config"
)

// Engine is unavailable on this platform. Supply another binder.Engine
// implementation instead.
type Engine struct {
	info RuntimeInfo
}

var _ binder.Engine = (*Engine)(nil)

var errUnavailable = errors.New("native onnx engine is unavailable on " + runtime.GOOS + "/" + runtime.GOARCH)

// NewEngine always returns an error on this platform.
func NewEngine(_ config.RuntimeConfig) (*Engine, error) {
	return nil, errUnavailable
}

func (e *Engine) Info() RuntimeInfo { return e.info }

// Load always returns an error on this platform.
func (e *Engine) Load(_ context.Context, _ string) (binder.Handle, error) {
	return nil, errUnavailable
}

// Close is a no-op on this platform.
func (e *Engine) Close() error { return nil }
