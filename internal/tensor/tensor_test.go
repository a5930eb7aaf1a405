package tensor

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("float32 ok", func(t *testing.T) {
		tt, err := New([]float32{1, 2, 3, 4}, []int64{2, 2})
		require.NoError(t, err)

		assert.Equal(t, Float32, tt.DType())
		assert.Equal(t, []int64{2, 2}, tt.Shape())
		assert.Equal(t, 4, tt.Len())

		got, err := tt.Float32s()
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2, 3, 4}, got)
	})

	t.Run("int64 scalar", func(t *testing.T) {
		tt, err := New([]int64{7}, nil)
		require.NoError(t, err)
		assert.Equal(t, Int64, tt.DType())
		assert.Empty(t, tt.Shape())
	})

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := New([]int64{1, 2, 3}, []int64{2, 2})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expects 4 elements, got 3")
	})

	t.Run("zero-sized dim", func(t *testing.T) {
		tt, err := New([]float32{}, []int64{0, 4})
		require.NoError(t, err)
		assert.Equal(t, 0, tt.Len())
		assert.Equal(t, []int64{0, 4}, tt.Shape())
		assert.Equal(t, "float32[0 4] []", tt.Summary(3))

		_, err = New([]float32{1}, []int64{0, 4})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expects 0 elements, got 1")
	})

	t.Run("negative dim", func(t *testing.T) {
		_, err := New([]float32{}, []int64{2, -1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is negative")
	})
}

type score float32

func TestNew_NamedElementType(t *testing.T) {
	tt, err := New([]score{0.5}, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, Float32, tt.DType())
}

func TestTensorCopiesOnReadAndWrite(t *testing.T) {
	src := []float32{1, 2}
	tt, err := New(src, []int64{2})
	require.NoError(t, err)

	src[0] = 99
	got, err := tt.Float32s()
	require.NoError(t, err)
	assert.Equal(t, float32(1), got[0], "New must copy its input")

	got[1] = 42
	again, err := tt.Float32s()
	require.NoError(t, err)
	assert.Equal(t, float32(2), again[1], "Float32s must return a copy")

	shape := tt.Shape()
	shape[0] = 5
	assert.Equal(t, []int64{2}, tt.Shape())
}

func TestTypedExtractionRejectsWrongDType(t *testing.T) {
	tt, err := New([]int64{1}, []int64{1})
	require.NoError(t, err)

	_, err = tt.Float32s()
	require.Error(t, err)

	var nilTensor *Tensor
	_, err = nilTensor.Int64s()
	require.Error(t, err)
}

func TestEmptyTensors(t *testing.T) {
	z, err := Zeros(Int64, []int64{3, 0})
	require.NoError(t, err)
	assert.Equal(t, 0, z.Len())

	r, err := Random([]int64{0}, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())

	// A huge leading dimension does not overflow once another dim is zero.
	_, err = Zeros(Float32, []int64{1 << 40, 1 << 40, 0})
	require.NoError(t, err)
}

func TestZeros(t *testing.T) {
	tt, err := Zeros(Int64, []int64{2, 3})
	require.NoError(t, err)

	got, err := tt.Int64s()
	require.NoError(t, err)
	assert.Equal(t, make([]int64, 6), got)

	_, err = Zeros(DType("bfloat16"), []int64{1})
	require.Error(t, err)
}

func TestRandomIsSeedDeterministic(t *testing.T) {
	a, err := Random([]int64{1, 3, 4, 4}, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	b, err := Random([]int64{1, 3, 4, 4}, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)

	assert.Equal(t, a.Data(), b.Data())
	assert.Equal(t, 48, a.Len())
}

func TestParseDType(t *testing.T) {
	tests := []struct {
		raw  string
		want DType
	}{
		{"float", Float32},
		{"tensor(float)", Float32},
		{" Float32 ", Float32},
		{"int64", Int64},
		{"long", Int64},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseDType(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ParseDType("string")
	require.Error(t, err)
}

func TestParseShape(t *testing.T) {
	got, err := ParseShape("1, 3,224,224")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 224, 224}, got)

	got, err = ParseShape("")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = ParseShape("0,4")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 4}, got)

	for _, bad := range []string{"1,,2", "a", "1,-1", "-3"} {
		_, err := ParseShape(bad)
		assert.Error(t, err, "shape %q", bad)
	}
}

func TestSummary(t *testing.T) {
	tt, err := New([]int64{1, 2, 3, 4, 5}, []int64{5})
	require.NoError(t, err)

	assert.Equal(t, "int64[5] [1 2 3 ... +2]", tt.Summary(3))
	assert.Equal(t, "int64[5] [1 2 3 4 5]", tt.Summary(-1))

	var nilTensor *Tensor
	assert.Equal(t, "<nil>", nilTensor.Summary(3))
}

func TestJSON(t *testing.T) {
	tt, err := New([]float32{0.5, 1.5}, []int64{1, 2})
	require.NoError(t, err)

	b, err := json.Marshal(tt)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dtype":"float32","shape":[1,2],"data":[0.5,1.5]}`, string(b))

	var decoded Tensor
	require.NoError(t, json.Unmarshal([]byte(`{"dtype":"tensor(int64)","shape":[3],"data":[1,2,3]}`), &decoded))
	assert.Equal(t, Int64, decoded.DType())
	assert.Equal(t, []int64{1, 2, 3}, decoded.Data())

	var defaulted Tensor
	require.NoError(t, json.Unmarshal([]byte(`{"shape":[1],"data":[2]}`), &defaulted))
	assert.Equal(t, Float32, defaulted.DType())

	var bad Tensor
	err = json.Unmarshal([]byte(`{"dtype":"float32","shape":[2,2],"data":[1]}`), &bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 4 elements")
}

func TestJSON_NonFiniteFloats(t *testing.T) {
	nan := float32(math.NaN())
	tt, err := New([]float32{nan, float32(math.Inf(1)), float32(math.Inf(-1)), 2}, []int64{4})
	require.NoError(t, err)

	b, err := json.Marshal(tt)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dtype":"float32","shape":[4],"data":["NaN","Infinity","-Infinity",2]}`, string(b))

	var decoded Tensor
	require.NoError(t, json.Unmarshal(b, &decoded))
	got, err := decoded.Float32s()
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.True(t, math.IsNaN(float64(got[0])))
	assert.True(t, math.IsInf(float64(got[1]), 1))
	assert.True(t, math.IsInf(float64(got[2]), -1))
	assert.Equal(t, float32(2), got[3])

	var bad Tensor
	err = json.Unmarshal([]byte(`{"shape":[1],"data":["nope"]}`), &bad)
	require.Error(t, err)
}

func TestJSON_EmptyTensor(t *testing.T) {
	tt, err := New([]int64{}, []int64{0, 4})
	require.NoError(t, err)

	b, err := json.Marshal(tt)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dtype":"int64","shape":[0,4],"data":[]}`, string(b))

	var decoded Tensor
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, []int64{0, 4}, decoded.Shape())
	assert.Equal(t, 0, decoded.Len())
}
