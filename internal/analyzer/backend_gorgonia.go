package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/owulveryck/onnx-go"
	"github.com/owulveryck/onnx-go/backend/x/gorgonnx"
	"gorgonia.org/tensor"
)

// gorgoniaBackend evaluates the ONNX graph in pure Go. It covers a narrower
// operator set than onnxruntime but needs no shared library.
type gorgoniaBackend struct {
	graph  *gorgonnx.Graph
	model  *onnx.Model
	width  int
	height int
}

func newGorgoniaBackend(spec BackendSpec) (Backend, error) {
	b, err := os.ReadFile(spec.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	graph := gorgonnx.NewGraph()
	model := onnx.NewModel(graph)
	if err := model.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("decode onnx graph: %w", err)
	}
	// Operators are only resolved when the expression graph is built, so
	// build it now against a zero input of the session shape.
	zero := tensor.New(tensor.WithShape(1, 3, spec.Height, spec.Width), tensor.Of(tensor.Float32))
	if err := model.SetInput(0, zero); err != nil {
		return nil, fmt.Errorf("set input: %w", err)
	}
	if err := graph.PopulateExprgraph(); err != nil {
		var ni *onnx.ErrNotImplemented
		if errors.As(err, &ni) {
			return nil, unsupportedOperatorError{op: ni.Operator, detail: ni.Message}
		}
		return nil, fmt.Errorf("build graph for 1x3x%dx%d input: %w", spec.Height, spec.Width, err)
	}
	return &gorgoniaBackend{graph: graph, model: model, width: spec.Width, height: spec.Height}, nil
}

func (g *gorgoniaBackend) Forward(ctx context.Context, pixels []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if want := 3 * g.width * g.height; len(pixels) != want {
		return nil, fmt.Errorf("input tensor expects %d values, got %d", want, len(pixels))
	}
	in := tensor.New(
		tensor.WithShape(1, 3, g.height, g.width),
		tensor.WithBacking(append([]float32(nil), pixels...)),
	)
	if err := g.model.SetInput(0, in); err != nil {
		return nil, fmt.Errorf("set input: %w", err)
	}
	if err := g.graph.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	outs, err := g.model.GetOutputTensors()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	if len(outs) == 0 {
		return nil, fmt.Errorf("model produced no output")
	}
	data, ok := outs[0].Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outs[0].Data())
	}
	return append([]float32(nil), data...), nil
}

func (g *gorgoniaBackend) Close() error { return nil }
