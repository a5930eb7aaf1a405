// Package tensor holds the value type routed between callers and the
// inference engine. The binder never looks inside a Tensor; only the engine
// adapters, the CLI and the HTTP codec do.
package tensor

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
)

type DType string

const (
	Float32 DType = "float32"
	Int64   DType = "int64"
)

type Tensor struct {
	dtype DType
	shape []int64
	data  any
}

// New copies data into a tensor of the given shape. A nil or empty shape
// describes a scalar and requires exactly one element; any zero dimension
// describes an empty tensor.
func New[T ~int64 | ~float32](data []T, shape []int64) (*Tensor, error) {
	dtype, err := dtypeFromSlice(data)
	if err != nil {
		return nil, err
	}
	if err := validateShapeAgainstData(shape, len(data)); err != nil {
		return nil, err
	}

	t := &Tensor{
		dtype: dtype,
		shape: append([]int64(nil), shape...),
	}
	switch dtype {
	case Float32:
		converted := make([]float32, len(data))
		for i, v := range data {
			converted[i] = float32(v)
		}
		t.data = converted
	case Int64:
		converted := make([]int64, len(data))
		for i, v := range data {
			converted[i] = int64(v)
		}
		t.data = converted
	default:
		return nil, fmt.Errorf("unsupported tensor dtype %q", dtype)
	}
	return t, nil
}

func Zeros(dtype DType, shape []int64) (*Tensor, error) {
	count, err := elementCount(shape)
	if err != nil {
		return nil, err
	}

	switch dtype {
	case Float32:
		return New(make([]float32, count), shape)
	case Int64:
		return New(make([]int64, count), shape)
	default:
		return nil, fmt.Errorf("unsupported tensor dtype %q", dtype)
	}
}

// Random fills a float32 tensor with standard normal samples. A nil rng uses
// the global source.
func Random(shape []int64, rng *rand.Rand) (*Tensor, error) {
	count, err := elementCount(shape)
	if err != nil {
		return nil, err
	}

	norm := rand.NormFloat64
	if rng != nil {
		norm = rng.NormFloat64
	}

	data := make([]float32, count)
	for i := range data {
		data[i] = float32(norm())
	}
	return New(data, shape)
}

func (t *Tensor) DType() DType {
	return t.dtype
}

func (t *Tensor) Shape() []int64 {
	return append([]int64(nil), t.shape...)
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	switch v := t.data.(type) {
	case []float32:
		return len(v)
	case []int64:
		return len(v)
	default:
		return 0
	}
}

// Data returns a copy of the backing slice as []float32 or []int64.
func (t *Tensor) Data() any {
	switch v := t.data.(type) {
	case []float32:
		return append([]float32(nil), v...)
	case []int64:
		return append([]int64(nil), v...)
	default:
		return nil
	}
}

func (t *Tensor) Float32s() ([]float32, error) {
	if t == nil {
		return nil, fmt.Errorf("tensor is nil")
	}
	data, ok := t.data.([]float32)
	if !ok {
		return nil, fmt.Errorf("expected float32 tensor, got %s", t.dtype)
	}
	return append([]float32(nil), data...), nil
}

func (t *Tensor) Int64s() ([]int64, error) {
	if t == nil {
		return nil, fmt.Errorf("tensor is nil")
	}
	data, ok := t.data.([]int64)
	if !ok {
		return nil, fmt.Errorf("expected int64 tensor, got %s", t.dtype)
	}
	return append([]int64(nil), data...), nil
}

// Summary renders dtype, shape and at most max leading elements.
func (t *Tensor) Summary(max int) string {
	if t == nil {
		return "<nil>"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s%v [", t.dtype, t.shape)

	n := t.Len()
	shown := n
	if max >= 0 && shown > max {
		shown = max
	}
	for i := 0; i < shown; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		switch v := t.data.(type) {
		case []float32:
			sb.WriteString(strconv.FormatFloat(float64(v[i]), 'g', 6, 32))
		case []int64:
			sb.WriteString(strconv.FormatInt(v[i], 10))
		}
	}
	if shown < n {
		fmt.Fprintf(&sb, " ... +%d", n-shown)
	}
	sb.WriteByte(']')
	return sb.String()
}

// ParseDType accepts the spellings ONNX Runtime and users tend to use, for
// example "float", "tensor(float)" or "long".
func ParseDType(raw string) (DType, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.TrimPrefix(normalized, "tensor(")
	normalized = strings.TrimSuffix(normalized, ")")
	switch normalized {
	case "float", "float32":
		return Float32, nil
	case "int64", "long":
		return Int64, nil
	default:
		return "", fmt.Errorf("unsupported tensor dtype %q", raw)
	}
}

// ParseShape parses a comma-separated shape such as "1,3,224,224". An empty
// string is a scalar.
func ParseShape(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []int64{}, nil
	}

	parts := strings.Split(raw, ",")
	shape := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty dimension in shape %q", raw)
		}
		dim, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse dimension %q: %w", part, err)
		}
		if dim < 0 {
			return nil, fmt.Errorf("dimension %d is negative", dim)
		}
		shape = append(shape, dim)
	}
	if _, err := elementCount(shape); err != nil {
		return nil, err
	}
	return shape, nil
}

func dtypeFromSlice[T ~int64 | ~float32](_ []T) (DType, error) {
	var zero T
	switch any(zero).(type) {
	case int64:
		return Int64, nil
	case float32:
		return Float32, nil
	}

	// Named types: only floating point kinds keep a fractional half.
	one := T(1)
	if one/2 != 0 {
		return Float32, nil
	}
	return Int64, nil
}

func validateShapeAgainstData(shape []int64, dataLen int) error {
	count, err := elementCount(shape)
	if err != nil {
		return err
	}
	if count != dataLen {
		return fmt.Errorf("shape %v expects %d elements, got %d", shape, count, dataLen)
	}
	return nil
}

func elementCount(shape []int64) (int, error) {
	if len(shape) == 0 {
		return 1, nil
	}
	empty := false
	for i, dim := range shape {
		if dim < 0 {
			return 0, fmt.Errorf("shape[%d]=%d is negative", i, dim)
		}
		if dim == 0 {
			empty = true
		}
	}
	if empty {
		return 0, nil
	}

	count := int64(1)
	for _, dim := range shape {
		if count > math.MaxInt64/dim {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}
		count *= dim
	}
	if count > int64(math.MaxInt) {
		return 0, fmt.Errorf("shape %v exceeds platform int capacity", shape)
	}
	return int(count), nil
}
