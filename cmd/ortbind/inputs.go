package main

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/example/go-ortbind/internal/binder"
	"github.com/example/go-ortbind/internal/tensor"
)

// defaultInputShape is used for declared inputs without an --input override.
var defaultInputShape = []int64{1, 3, 224, 224}

type inputSpec struct {
	Name  string
	DType tensor.DType
	Shape []int64
}

// parseInputSpec parses "name=dtype:shape", e.g. "input=float32:1,3,224,224".
// The dtype may be omitted ("name=1,4") and defaults to float32. An empty
// shape ("name=float32:") is a scalar.
func parseInputSpec(raw string) (inputSpec, error) {
	name, rest, ok := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return inputSpec{}, fmt.Errorf("input %q: want name=dtype:shape", raw)
	}

	dtype := tensor.Float32
	shapeStr := rest
	if d, s, hasType := strings.Cut(rest, ":"); hasType {
		parsed, err := tensor.ParseDType(d)
		if err != nil {
			return inputSpec{}, fmt.Errorf("input %q: %w", name, err)
		}
		dtype, shapeStr = parsed, s
	}

	shape, err := tensor.ParseShape(shapeStr)
	if err != nil {
		return inputSpec{}, fmt.Errorf("input %q: %w", name, err)
	}
	return inputSpec{Name: name, DType: dtype, Shape: shape}, nil
}

func parseInputSpecs(raw []string) (map[string]inputSpec, error) {
	specs := make(map[string]inputSpec, len(raw))
	for _, r := range raw {
		s, err := parseInputSpec(r)
		if err != nil {
			return nil, err
		}
		if _, dup := specs[s.Name]; dup {
			return nil, fmt.Errorf("input %q given more than once", s.Name)
		}
		specs[s.Name] = s
	}
	return specs, nil
}

// buildInputs creates one tensor per declared input. Float inputs are drawn
// from rng; int64 inputs are zeros. Without an override the declared dtype and
// shape are used when the engine reports them.
func buildInputs(declared []binder.TensorSpec, overrides map[string]inputSpec, rng *rand.Rand) (map[string]*tensor.Tensor, error) {
	inputs := make(map[string]*tensor.Tensor, len(declared))
	for _, d := range declared {
		spec, ok := overrides[d.Name]
		if !ok {
			var err error
			spec, err = declaredInputSpec(d)
			if err != nil {
				return nil, err
			}
		}

		var (
			t   *tensor.Tensor
			err error
		)
		switch spec.DType {
		case tensor.Float32:
			t, err = tensor.Random(spec.Shape, rng)
		default:
			t, err = tensor.Zeros(spec.DType, spec.Shape)
		}
		if err != nil {
			return nil, fmt.Errorf("build input %q: %w", d.Name, err)
		}
		inputs[d.Name] = t
	}
	return inputs, nil
}

// declaredInputSpec turns engine metadata into a generated input. Unknown
// dtypes default to float32, an unknown shape to defaultInputShape, and
// symbolic dimensions to 1.
func declaredInputSpec(d binder.TensorSpec) (inputSpec, error) {
	spec := inputSpec{Name: d.Name, DType: tensor.Float32, Shape: defaultInputShape}

	if d.DType != "" {
		dtype, err := tensor.ParseDType(d.DType)
		if err != nil {
			return inputSpec{}, fmt.Errorf("input %q: declared %w; pass --input %s=dtype:shape", d.Name, err, d.Name)
		}
		spec.DType = dtype
	}

	if d.Shape != nil {
		shape := make([]int64, len(d.Shape))
		for i, dim := range d.Shape {
			n, err := strconv.ParseInt(dim, 10, 64)
			if err != nil || n < 0 {
				n = 1
			}
			shape[i] = n
		}
		spec.Shape = shape
	}
	return spec, nil
}
