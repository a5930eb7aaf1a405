// Package onnxtest writes tiny ONNX models for runtime integration tests.
package onnxtest

import (
	"fmt"
	"os"

	"github.com/example/go-ortbind/internal/tensor"
	"google.golang.org/protobuf/encoding/protowire"
)

// Identity maps one graph input straight to one graph output.
type Identity struct {
	Input  string
	Output string
	DType  tensor.DType
	Shape  []int64
}

const (
	irVersion    = 8
	opsetVersion = 13

	elemFloat = 1
	elemInt64 = 7
)

// IdentityModel encodes a ModelProto whose graph holds one Identity node per
// entry, with inputs and outputs declared in the given order.
func IdentityModel(pairs ...Identity) ([]byte, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("at least one identity pair is required")
	}

	var graph []byte
	for i, p := range pairs {
		var node []byte
		node = appendString(node, 1, p.Input)
		node = appendString(node, 2, p.Output)
		node = appendString(node, 3, fmt.Sprintf("identity_%d", i))
		node = appendString(node, 4, "Identity")
		graph = appendMessage(graph, 1, node)
	}
	graph = appendString(graph, 2, "identity")
	for _, p := range pairs {
		vi, err := valueInfo(p.Input, p.DType, p.Shape)
		if err != nil {
			return nil, err
		}
		graph = appendMessage(graph, 11, vi)
	}
	for _, p := range pairs {
		vi, err := valueInfo(p.Output, p.DType, p.Shape)
		if err != nil {
			return nil, err
		}
		graph = appendMessage(graph, 12, vi)
	}

	var opset []byte
	opset = appendString(opset, 1, "")
	opset = protowire.AppendTag(opset, 2, protowire.VarintType)
	opset = protowire.AppendVarint(opset, opsetVersion)

	var model []byte
	model = protowire.AppendTag(model, 1, protowire.VarintType)
	model = protowire.AppendVarint(model, irVersion)
	model = appendString(model, 2, "ortbind-onnxtest")
	model = appendMessage(model, 7, graph)
	model = appendMessage(model, 8, opset)
	return model, nil
}

// WriteIdentityModel writes IdentityModel(pairs...) to path.
func WriteIdentityModel(path string, pairs ...Identity) error {
	data, err := IdentityModel(pairs...)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write identity model: %w", err)
	}
	return nil
}

func valueInfo(name string, dtype tensor.DType, shape []int64) ([]byte, error) {
	var elem uint64
	switch dtype {
	case tensor.Float32, "":
		elem = elemFloat
	case tensor.Int64:
		elem = elemInt64
	default:
		return nil, fmt.Errorf("unsupported dtype %q", dtype)
	}

	var dims []byte
	for _, d := range shape {
		var dim []byte
		dim = protowire.AppendTag(dim, 1, protowire.VarintType)
		dim = protowire.AppendVarint(dim, uint64(d))
		dims = appendMessage(dims, 1, dim)
	}

	var tensorType []byte
	tensorType = protowire.AppendTag(tensorType, 1, protowire.VarintType)
	tensorType = protowire.AppendVarint(tensorType, elem)
	tensorType = appendMessage(tensorType, 2, dims)

	var typ []byte
	typ = appendMessage(typ, 1, tensorType)

	var vi []byte
	vi = appendString(vi, 1, name)
	vi = appendMessage(vi, 2, typ)
	return vi, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
