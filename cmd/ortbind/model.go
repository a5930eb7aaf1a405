package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/example/go-ortbind/internal/binder"
	"github.com/example/go-ortbind/internal/config"
	"github.com/example/go-ortbind/internal/model"
	"github.com/example/go-ortbind/internal/onnx"
)

// engine is a binder.Engine that owns native resources.
type engine interface {
	binder.Engine
	Close() error
}

// newEngine opens the inference engine. Tests replace it with a fake.
var newEngine = func(cfg config.RuntimeConfig) (engine, error) {
	e, err := onnx.NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// resolveModel turns the configured model source into a local path,
// downloading remote sources into the cache. Progress goes to progress.
func resolveModel(ctx context.Context, cfg config.Config, source string, progress io.Writer) (string, error) {
	if source == "" {
		source = cfg.Paths.ModelPath
	}
	return model.Resolve(ctx, source, model.Options{
		CacheDir:  cfg.Paths.CacheDir,
		SHA256:    cfg.Fetch.SHA256,
		HTTPToken: cfg.Fetch.HTTPToken,
		Stdout:    progress,
	})
}

// openModel resolves the configured model, starts the engine and binds the
// model. The returned close func releases both.
func openModel(ctx context.Context, cfg config.Config, progress io.Writer) (*binder.Binder, func() error, error) {
	path, err := resolveModel(ctx, cfg, "", progress)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve model: %w", err)
	}

	eng, err := newEngine(cfg.Runtime)
	if err != nil {
		return nil, nil, err
	}

	b, err := binder.Open(ctx, eng, path, binder.WithLogger(slog.Default()))
	if err != nil {
		_ = eng.Close()
		return nil, nil, err
	}

	closeFn := func() error {
		return errors.Join(b.Close(), eng.Close())
	}
	return b, closeFn, nil
}
