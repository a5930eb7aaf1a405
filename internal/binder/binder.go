// Package binder routes name-keyed tensors into a loaded model and maps the
// engine's positional results back onto the model's declared output names.
//
// A Binder is either uninitialized or ready. Load moves it to ready; loading
// again first releases the current model, so a failed reload leaves the
// binder uninitialized rather than serving a stale model.
//
// The binder adds no synchronization. Concurrent Infer calls are as safe as
// the engine handle makes them; Load and Close must not race with Infer.
package binder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/go-ortbind/internal/tensor"
)

type Option func(*Binder)

// WithLogger sets the logger used for load status messages.
func WithLogger(l *slog.Logger) Option {
	return func(b *Binder) { b.log = l }
}

type Binder struct {
	engine Engine
	log    *slog.Logger

	path        string
	handle      Handle
	inputs      []TensorSpec
	outputs     []TensorSpec
	inputNames  []string
	outputNames []string
}

// New returns an uninitialized binder backed by engine.
func New(engine Engine, opts ...Option) *Binder {
	b := &Binder{
		engine: engine,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open creates a binder and loads path in one step.
func Open(ctx context.Context, engine Engine, path string, opts ...Option) (*Binder, error) {
	b := New(engine, opts...)
	if err := b.Load(ctx, path); err != nil {
		return nil, err
	}
	return b, nil
}

// Load (re)initializes the binder from the model at path. Errors are always
// *LoadError.
func (b *Binder) Load(ctx context.Context, path string) error {
	b.release()

	err := b.load(ctx, path)
	if err != nil {
		b.log.ErrorContext(ctx, "failed to load model", "path", path, "error", err)
		return &LoadError{Path: path, Err: err}
	}

	b.log.InfoContext(ctx, "model loaded successfully",
		"path", path,
		"inputs", strings.Join(b.inputNames, ","),
		"outputs", strings.Join(b.outputNames, ","),
	)
	return nil
}

func (b *Binder) load(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("model path is empty")
	}
	if b.engine == nil {
		return errors.New("no inference engine configured")
	}

	h, err := b.engine.Load(ctx, path)
	if err != nil {
		return err
	}
	if h == nil {
		return errors.New("engine returned no model handle")
	}

	inputs := cloneSpecs(h.Inputs())
	outputs := cloneSpecs(h.Outputs())
	if err := checkUnique("input", inputs); err != nil {
		_ = h.Close()
		return err
	}
	if err := checkUnique("output", outputs); err != nil {
		_ = h.Close()
		return err
	}

	b.path = path
	b.handle = h
	b.inputs = inputs
	b.outputs = outputs
	b.inputNames = specNames(inputs)
	b.outputNames = specNames(outputs)
	return nil
}

// Infer binds the declared inputs from inputs, executes the model and returns
// one tensor per declared output. Entries in inputs that the model does not
// declare are ignored.
func (b *Binder) Infer(ctx context.Context, inputs map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	if b.handle == nil {
		return nil, ErrNotInitialized
	}

	bound := make(map[string]*tensor.Tensor, len(b.inputNames))
	for _, name := range b.inputNames {
		t, ok := inputs[name]
		if !ok {
			return nil, &MissingInputError{Name: name}
		}
		bound[name] = t
	}

	results, err := b.handle.Execute(ctx, b.outputNames, bound)
	if err != nil {
		return nil, &ExecutionError{Err: err}
	}
	if len(results) != len(b.outputNames) {
		return nil, &ExecutionError{
			Err: fmt.Errorf("engine returned %d results for %d outputs", len(results), len(b.outputNames)),
		}
	}

	out := make(map[string]*tensor.Tensor, len(results))
	for i, name := range b.outputNames {
		out[name] = results[i]
	}
	return out, nil
}

// Ready reports whether a model is loaded.
func (b *Binder) Ready() bool {
	return b.handle != nil
}

// Path returns the path of the loaded model, or "" when uninitialized.
func (b *Binder) Path() string {
	return b.path
}

func (b *Binder) Inputs() []TensorSpec {
	return cloneSpecs(b.inputs)
}

func (b *Binder) Outputs() []TensorSpec {
	return cloneSpecs(b.outputs)
}

// Close releases the loaded model. Safe to call multiple times.
func (b *Binder) Close() error {
	if b.handle == nil {
		return nil
	}
	err := b.handle.Close()
	b.reset()
	if err != nil {
		return fmt.Errorf("release model: %w", err)
	}
	return nil
}

func (b *Binder) release() {
	if b.handle == nil {
		return
	}
	path := b.path
	if err := b.Close(); err != nil {
		b.log.Warn("release previous model", "path", path, "error", err)
	}
}

func (b *Binder) reset() {
	b.path = ""
	b.handle = nil
	b.inputs = nil
	b.outputs = nil
	b.inputNames = nil
	b.outputNames = nil
}

func checkUnique(kind string, specs []TensorSpec) error {
	seen := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("model declares duplicate %s name %q", kind, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}
