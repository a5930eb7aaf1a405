package binder

import (
	"context"

	"github.com/example/go-ortbind/internal/tensor"
)

// TensorSpec describes one declared input or output slot. Only Name takes part
// in binding; DType and Shape are whatever the engine chose to report.
type TensorSpec struct {
	Name  string   `json:"name"`
	DType string   `json:"dtype,omitempty"`
	Shape []string `json:"shape,omitempty"`
}

// Engine turns a model artifact into an executable Handle.
type Engine interface {
	Load(ctx context.Context, path string) (Handle, error)
}

// Handle is a loaded model. Execute returns results positionally matching
// outputNames.
type Handle interface {
	Inputs() []TensorSpec
	Outputs() []TensorSpec
	Execute(ctx context.Context, outputNames []string, inputs map[string]*tensor.Tensor) ([]*tensor.Tensor, error)
	Close() error
}

func specNames(specs []TensorSpec) []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}

func cloneSpecs(specs []TensorSpec) []TensorSpec {
	if specs == nil {
		return nil
	}
	out := make([]TensorSpec, len(specs))
	for i, s := range specs {
		s.Shape = append([]string(nil), s.Shape...)
		out[i] = s
	}
	return out
}
