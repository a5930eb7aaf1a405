//go:build !windows && !(js && wasm)

package onnx

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/example/go-ortbind/internal/binder"
	"github.com/example/go-ortbind/internal/config"
	"github.com/example/go-ortbind/internal/tensor"
	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

const defaultAPIVersion = 23

// Engine loads ONNX models into ONNX Runtime sessions. One runtime and one
// environment are shared by every model the engine loads; Close them only
// after all handles are closed.
type Engine struct {
	info    RuntimeInfo
	runtime *ort.Runtime
	env     *ort.Env
	threads int

	closeOnce sync.Once
}

var _ binder.Engine = (*Engine)(nil)

// NewEngine detects and opens the ONNX Runtime shared library.
func NewEngine(cfg config.RuntimeConfig) (*Engine, error) {
	info, err := DetectRuntime(cfg)
	if err != nil {
		return nil, err
	}

	apiVersion := cfg.APIVersion
	if apiVersion == 0 {
		apiVersion = defaultAPIVersion
	}

	runtime, err := ort.NewRuntime(info.LibraryPath, apiVersion)
	if err != nil {
		return nil, fmt.Errorf("initialize ONNX Runtime (lib=%q api=%d): %w", info.LibraryPath, apiVersion, err)
	}

	env, err := runtime.NewEnv("ortbind", ort.LoggingLevelWarning)
	if err != nil {
		_ = runtime.Close()
		return nil, fmt.Errorf("create ONNX Runtime env: %w", err)
	}

	slog.Debug("onnx runtime ready", "library", info.LibraryPath, "version", info.Version, "api", apiVersion)

	return &Engine{info: info, runtime: runtime, env: env, threads: cfg.Threads}, nil
}

// Info returns the detected runtime library.
func (e *Engine) Info() RuntimeInfo {
	return e.info
}

// Load creates a session for the model at path. The declared inputs and
// outputs are the names the session reports.
func (e *Engine) Load(_ context.Context, path string) (binder.Handle, error) {
	if e.runtime == nil {
		return nil, fmt.Errorf("onnx engine is closed")
	}

	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	session, err := e.runtime.NewSession(e.env, path, sessionOptions(e.threads))
	if err != nil {
		return nil, fmt.Errorf("ort session: %w", err)
	}

	return &handle{
		runtime: e.runtime,
		session: session,
		inputs:  specsFromNames(session.InputNames()),
		outputs: specsFromNames(session.OutputNames()),
	}, nil
}

// sessionOptions returns nil, the runtime defaults, unless an intra-op
// thread count is configured.
func sessionOptions(threads int) *ort.SessionOptions {
	if threads <= 0 {
		return nil
	}
	return &ort.SessionOptions{IntraOpNumThreads: threads}
}

// Close releases the environment and runtime. Safe to call multiple times.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		if e.env != nil {
			e.env.Close()
			e.env = nil
		}
		if e.runtime != nil {
			err = e.runtime.Close()
			e.runtime = nil
		}
	})
	return err
}

// handle wraps one ORT session. ORT sessions accept concurrent Run calls, so
// Execute may be called from several goroutines.
type handle struct {
	runtime *ort.Runtime
	session *ort.Session
	inputs  []binder.TensorSpec
	outputs []binder.TensorSpec

	mu sync.RWMutex
}

func (h *handle) Inputs() []binder.TensorSpec  { return h.inputs }
func (h *handle) Outputs() []binder.TensorSpec { return h.outputs }

func (h *handle) Execute(ctx context.Context, outputNames []string, inputs map[string]*tensor.Tensor) ([]*tensor.Tensor, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return nil, fmt.Errorf("session is closed")
	}

	ortInputs := make(map[string]*ort.Value, len(inputs))
	defer closeORTValues(ortInputs)

	for name, t := range inputs {
		if t == nil {
			return nil, fmt.Errorf("input %q is nil", name)
		}
		v, err := tensorToORT(h.runtime, t)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		ortInputs[name] = v
	}

	ortOutputs, err := h.session.Run(ctx, ortInputs, ort.WithOutputNames(outputNames...))
	if err != nil {
		return nil, err
	}
	defer closeORTValues(ortOutputs)

	return pickOutputs(ortOutputs, outputNames, ortToTensor)
}

// Close releases the session. Safe to call multiple times.
func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session != nil {
		h.session.Close()
		h.session = nil
	}
	return nil
}

func tensorToORT(runtime *ort.Runtime, t *tensor.Tensor) (*ort.Value, error) {
	switch data := t.Data().(type) {
	case []float32:
		return ort.NewTensorValue(runtime, data, t.Shape())
	case []int64:
		return ort.NewTensorValue(runtime, data, t.Shape())
	default:
		return nil, fmt.Errorf("unsupported tensor dtype %s", t.DType())
	}
}

func ortToTensor(v *ort.Value) (*tensor.Tensor, error) {
	elemType, err := v.GetTensorElementType()
	if err != nil {
		return nil, fmt.Errorf("get element type: %w", err)
	}

	switch elemType {
	case ort.ONNXTensorElementDataTypeFloat:
		data, shape, err := ort.GetTensorData[float32](v)
		if err != nil {
			return nil, err
		}

		return tensor.New(data, shape)
	case ort.ONNXTensorElementDataTypeInt64:
		data, shape, err := ort.GetTensorData[int64](v)
		if err != nil {
			return nil, err
		}

		return tensor.New(data, shape)
	default:
		return nil, fmt.Errorf("unsupported ORT element type %d", elemType)
	}
}

func closeORTValues(vals map[string]*ort.Value) {
	for _, v := range vals {
		if v != nil {
			v.Close()
		}
	}
}
