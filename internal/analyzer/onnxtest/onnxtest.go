// Package onnxtest builds small ONNX model files for tests. Graphs take a
// single float32 input "pixel_values" of shape [1,3,H,W] and produce a
// single output "logits".
package onnxtest

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	irVersion    = 6
	elemFloat    = 1 // TensorProto.FLOAT
	opsetVersion = 11
)

// Linear returns a graph computing Flatten(x) x weights, where weights is
// row-major with shape [3*h*w, classes].
func Linear(h, w, classes int, weights []float32) []byte {
	in := 3 * h * w
	if len(weights) != in*classes {
		panic("onnxtest: weights must hold 3*h*w*classes values")
	}
	var g []byte
	g = appendMsg(g, 1, node("flatten", "Flatten", []string{"pixel_values"}, "flat"))
	g = appendMsg(g, 1, node("classifier", "MatMul", []string{"flat", "weight"}, "logits"))
	g = appendStr(g, 2, "linear")
	g = appendMsg(g, 5, floatTensor("weight", []int64{int64(in), int64(classes)}, weights))
	g = appendMsg(g, 11, valueInfo("pixel_values", 1, 3, int64(h), int64(w)))
	g = appendMsg(g, 12, valueInfo("logits", 1, int64(classes)))
	return model(g)
}

// SingleOp returns a graph applying op to the input, for operator coverage tests.
func SingleOp(op string, h, w int) []byte {
	var g []byte
	g = appendMsg(g, 1, node("only", op, []string{"pixel_values"}, "logits"))
	g = appendStr(g, 2, "single_"+op)
	g = appendMsg(g, 11, valueInfo("pixel_values", 1, 3, int64(h), int64(w)))
	g = appendMsg(g, 12, valueInfo("logits", 1, 3, int64(h), int64(w)))
	return model(g)
}

// WriteFile writes b to dir/model.onnx and returns the path.
func WriteFile(dir string, b []byte) (string, error) {
	p := filepath.Join(dir, "model.onnx")
	return p, os.WriteFile(p, b, 0o644)
}

func model(graph []byte) []byte {
	var opset []byte
	opset = protowire.AppendTag(opset, 2, protowire.VarintType)
	opset = protowire.AppendVarint(opset, opsetVersion)

	var m []byte
	m = protowire.AppendTag(m, 1, protowire.VarintType)
	m = protowire.AppendVarint(m, irVersion)
	m = appendStr(m, 2, "fakedetect-onnxtest")
	m = appendMsg(m, 7, graph)
	m = appendMsg(m, 8, opset)
	return m
}

func node(name, op string, inputs []string, output string) []byte {
	var n []byte
	for _, in := range inputs {
		n = appendStr(n, 1, in)
	}
	n = appendStr(n, 2, output)
	n = appendStr(n, 3, name)
	n = appendStr(n, 4, op)
	return n
}

func floatTensor(name string, dims []int64, data []float32) []byte {
	var packed []byte
	for _, d := range dims {
		packed = protowire.AppendVarint(packed, uint64(d))
	}
	raw := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	var t []byte
	t = appendMsg(t, 1, packed)
	t = protowire.AppendTag(t, 2, protowire.VarintType)
	t = protowire.AppendVarint(t, elemFloat)
	t = appendStr(t, 8, name)
	t = appendMsg(t, 9, raw)
	return t
}

func valueInfo(name string, dims ...int64) []byte {
	var shape []byte
	for _, d := range dims {
		var dim []byte
		dim = protowire.AppendTag(dim, 1, protowire.VarintType)
		dim = protowire.AppendVarint(dim, uint64(d))
		shape = appendMsg(shape, 1, dim)
	}
	var tensorType []byte
	tensorType = protowire.AppendTag(tensorType, 1, protowire.VarintType)
	tensorType = protowire.AppendVarint(tensorType, elemFloat)
	tensorType = appendMsg(tensorType, 2, shape)

	var typ []byte
	typ = appendMsg(typ, 1, tensorType)

	var vi []byte
	vi = appendStr(vi, 1, name)
	vi = appendMsg(vi, 2, typ)
	return vi
}

func appendStr(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMsg(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}
