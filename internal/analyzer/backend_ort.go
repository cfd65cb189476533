//go:build cgo

package analyzer

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// onnxruntimeBuilt indicates this binary can load the onnxruntime shared library.
var onnxruntimeBuilt = true

var (
	ortMu   sync.Mutex
	ortRefs int
)

// acquireORT initializes the process-wide onnxruntime environment on first use.
func acquireORT(lib string) error {
	ortMu.Lock()
	defer ortMu.Unlock()
	if ortRefs == 0 && !ort.IsInitialized() {
		if lib == "" {
			lib = discoverOnnxLib()
		}
		if lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return ErrDependencyUnavailable(fmt.Sprintf("onnxruntime unavailable: %v", err))
		}
	}
	ortRefs++
	return nil
}

func releaseORT() {
	ortMu.Lock()
	defer ortMu.Unlock()
	if ortRefs == 0 {
		return
	}
	ortRefs--
	if ortRefs == 0 && ort.IsInitialized() {
		_ = ort.DestroyEnvironment()
	}
}

// ortBackend owns one AdvancedSession with pre-bound input/output tensors.
type ortBackend struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func newORTBackend(spec BackendSpec, cuda bool) (Backend, error) {
	if err := acquireORT(spec.OnnxLib); err != nil {
		return nil, err
	}
	b, err := buildORTBackend(spec, cuda)
	if err != nil {
		releaseORT()
		return nil, err
	}
	return b, nil
}

func buildORTBackend(spec BackendSpec, cuda bool) (*ortBackend, error) {
	inName, outName := "pixel_values", "logits"
	inputs, outputs, err := ort.GetInputOutputInfo(spec.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect model: %w", err)
	}
	if len(inputs) > 0 {
		inName = inputs[0].Name
	}
	if len(outputs) > 0 {
		outName = outputs[0].Name
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()
	if cuda {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, ErrDependencyUnavailable(fmt.Sprintf("cuda provider unavailable: %v", err))
		}
		defer cudaOpts.Destroy()
		if err := cudaOpts.Update(map[string]string{"device_id": "0"}); err != nil {
			return nil, fmt.Errorf("cuda provider options: %w", err)
		}
		if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			return nil, ErrDependencyUnavailable(fmt.Sprintf("cuda provider unavailable: %v", err))
		}
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(spec.Height), int64(spec.Width)))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(spec.NumLabels)))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(spec.ModelPath,
		[]string{inName}, []string{outName},
		[]ort.Value{input}, []ort.Value{output},
		opts)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return &ortBackend{session: session, input: input, output: output}, nil
}

func (b *ortBackend) Forward(ctx context.Context, pixels []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in := b.input.GetData()
	if len(pixels) != len(in) {
		return nil, fmt.Errorf("input tensor expects %d values, got %d", len(in), len(pixels))
	}
	copy(in, pixels)
	if err := b.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return append([]float32(nil), b.output.GetData()...), nil
}

func (b *ortBackend) Close() error {
	if b.session != nil {
		b.session.Destroy()
	}
	if b.input != nil {
		b.input.Destroy()
	}
	if b.output != nil {
		b.output.Destroy()
	}
	releaseORT()
	return nil
}
