// Package bindertest provides an in-memory Engine for tests that need a
// loaded binder without an ONNX Runtime installation.
package bindertest

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/example/go-ortbind/internal/binder"
	"github.com/example/go-ortbind/internal/tensor"
)

// ExecuteFunc computes positional results for a fake model.
type ExecuteFunc func(ctx context.Context, outputNames []string, inputs map[string]*tensor.Tensor) ([]*tensor.Tensor, error)

// Model is what the fake engine serves for one path.
type Model struct {
	Inputs  []binder.TensorSpec
	Outputs []binder.TensorSpec
	Execute ExecuteFunc
}

// Engine loads Models registered by path. Unknown paths fail to load.
type Engine struct {
	mu      sync.Mutex
	models  map[string]Model
	loadErr map[string]error

	Loads    atomic.Int64
	Executes atomic.Int64
	Closes   atomic.Int64
	Live     atomic.Int64

	lastInputs map[string]*tensor.Tensor
}

var _ binder.Engine = (*Engine)(nil)

func NewEngine() *Engine {
	return &Engine{
		models:  make(map[string]Model),
		loadErr: make(map[string]error),
	}
}

// Add registers a model under path.
func (e *Engine) Add(path string, m Model) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.models[path] = m
	return e
}

// FailLoad makes loading path fail with err.
func (e *Engine) FailLoad(path string, err error) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadErr[path] = err
	return e
}

// LastInputs returns the binding passed to the most recent Execute.
func (e *Engine) LastInputs() map[string]*tensor.Tensor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastInputs
}

func (e *Engine) Load(_ context.Context, path string) (binder.Handle, error) {
	e.Loads.Add(1)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err, ok := e.loadErr[path]; ok {
		return nil, err
	}
	m, ok := e.models[path]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file or directory", path)
	}
	e.Live.Add(1)
	return &handle{engine: e, model: m}, nil
}

type handle struct {
	engine *Engine
	model  Model
	closed atomic.Bool
}

func (h *handle) Inputs() []binder.TensorSpec  { return h.model.Inputs }
func (h *handle) Outputs() []binder.TensorSpec { return h.model.Outputs }

func (h *handle) Execute(ctx context.Context, outputNames []string, inputs map[string]*tensor.Tensor) ([]*tensor.Tensor, error) {
	if h.closed.Load() {
		return nil, fmt.Errorf("handle is closed")
	}
	h.engine.Executes.Add(1)

	h.engine.mu.Lock()
	h.engine.lastInputs = inputs
	h.engine.mu.Unlock()

	if h.model.Execute == nil {
		return Identity(ctx, outputNames, inputs)
	}
	return h.model.Execute(ctx, outputNames, inputs)
}

func (h *handle) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	h.engine.Closes.Add(1)
	h.engine.Live.Add(-1)
	return nil
}

// Identity returns the bound input with the smallest name for every
// requested output. It is the default ExecuteFunc.
func Identity(_ context.Context, outputNames []string, inputs map[string]*tensor.Tensor) ([]*tensor.Tensor, error) {
	names := slices.Sorted(maps.Keys(inputs))
	var first *tensor.Tensor
	if len(names) > 0 {
		first = inputs[names[0]]
	}
	out := make([]*tensor.Tensor, len(outputNames))
	for i := range out {
		out[i] = first
	}
	return out, nil
}

// Constants returns an ExecuteFunc producing one float32 scalar per output,
// taken positionally from values.
func Constants(values ...float32) ExecuteFunc {
	return func(_ context.Context, outputNames []string, _ map[string]*tensor.Tensor) ([]*tensor.Tensor, error) {
		out := make([]*tensor.Tensor, 0, len(outputNames))
		for i := range outputNames {
			if i >= len(values) {
				break
			}
			t, err := tensor.New([]float32{values[i]}, nil)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		return out, nil
	}
}

// Specs builds name-only TensorSpecs.
func Specs(names ...string) []binder.TensorSpec {
	specs := make([]binder.TensorSpec, len(names))
	for i, n := range names {
		specs[i] = binder.TensorSpec{Name: n}
	}
	return specs
}
