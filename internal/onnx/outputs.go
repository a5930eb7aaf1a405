package onnx

import (
	"fmt"

	"github.com/example/go-ortbind/internal/binder"
	"github.com/example/go-ortbind/internal/tensor"
)

// pickOutputs returns the produced values for names, in that order.
func pickOutputs[V any](produced map[string]V, names []string, convert func(V) (*tensor.Tensor, error)) ([]*tensor.Tensor, error) {
	results := make([]*tensor.Tensor, len(names))
	for i, name := range names {
		v, ok := produced[name]
		if !ok {
			return nil, fmt.Errorf("session produced no output %q", name)
		}
		t, err := convert(v)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}
		results[i] = t
	}
	return results, nil
}

func specsFromNames(names []string) []binder.TensorSpec {
	specs := make([]binder.TensorSpec, len(names))
	for i, name := range names {
		specs[i] = binder.TensorSpec{Name: name}
	}
	return specs
}
