package tensor

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

type wireTensor struct {
	DType DType           `json:"dtype"`
	Shape []int64         `json:"shape"`
	Data  json.RawMessage `json:"data"`
}

// MarshalJSON encodes {"dtype":..,"shape":..,"data":..}. Non-finite float32
// elements are written as the strings "NaN", "Infinity" and "-Infinity".
func (t *Tensor) MarshalJSON() ([]byte, error) {
	payload := t.data
	if v, ok := t.data.([]float32); ok {
		wire := make([]wireFloat, len(v))
		for i, f := range v {
			wire[i] = wireFloat(f)
		}
		payload = wire
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tensor data: %w", err)
	}
	shape := t.shape
	if shape == nil {
		shape = []int64{}
	}
	return json.Marshal(wireTensor{DType: t.dtype, Shape: shape, Data: data})
}

// UnmarshalJSON decodes {"dtype":..,"shape":..,"data":..}. A missing dtype
// defaults to float32; the element count must match the shape.
func (t *Tensor) UnmarshalJSON(b []byte) error {
	var w wireTensor
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("decode tensor: %w", err)
	}

	dtype := Float32
	if w.DType != "" {
		parsed, err := ParseDType(string(w.DType))
		if err != nil {
			return err
		}
		dtype = parsed
	}

	var (
		decoded *Tensor
		err     error
	)
	switch dtype {
	case Float32:
		var wire []wireFloat
		if err := json.Unmarshal(w.Data, &wire); err != nil {
			return fmt.Errorf("decode float32 data: %w", err)
		}
		data := make([]float32, len(wire))
		for i, f := range wire {
			data[i] = float32(f)
		}
		decoded, err = New(data, w.Shape)
	case Int64:
		var data []int64
		if err := json.Unmarshal(w.Data, &data); err != nil {
			return fmt.Errorf("decode int64 data: %w", err)
		}
		decoded, err = New(data, w.Shape)
	}
	if err != nil {
		return err
	}

	*t = *decoded
	return nil
}

// wireFloat is a float32 element whose non-finite values travel as strings.
type wireFloat float32

func (f wireFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	}
	return json.Marshal(float32(f))
}

func (f *wireFloat) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		switch s {
		case "NaN":
			*f = wireFloat(math.NaN())
		case "Infinity", "+Infinity":
			*f = wireFloat(math.Inf(1))
		case "-Infinity":
			*f = wireFloat(math.Inf(-1))
		default:
			return fmt.Errorf("invalid float32 element %q", s)
		}
		return nil
	}

	var v float32
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = wireFloat(v)
	return nil
}
