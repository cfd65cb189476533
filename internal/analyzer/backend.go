package analyzer

import (
	"context"
	"fmt"
	"strings"
)

// Backend runs the model's forward pass. A Backend is not safe for concurrent
// use; the pool hands each one to a single caller at a time.
type Backend interface {
	// Forward maps a [1,3,H,W] pixel tensor to one logit per class.
	Forward(ctx context.Context, pixels []float32) ([]float32, error)
	// Close releases resources associated with the backend.
	Close() error
}

// Target selects the execution target for the forward pass.
type Target string

const (
	// TargetAuto prefers CUDA and falls back to the onnxruntime CPU provider.
	TargetAuto     Target = "auto"
	TargetCUDA     Target = "cuda"
	TargetCPU      Target = "cpu"
	TargetGorgonia Target = "gorgonia"
)

// ParseTarget maps a config value to a Target.
func ParseTarget(s string) (Target, error) {
	switch t := Target(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TargetAuto, nil
	case TargetAuto, TargetCUDA, TargetCPU, TargetGorgonia:
		return t, nil
	default:
		return "", fmt.Errorf("unknown execution target %q", s)
	}
}

// BackendSpec describes the session a backend must provide.
type BackendSpec struct {
	ModelPath string
	Width     int
	Height    int
	NumLabels int
	Target    Target
	OnnxLib   string
}

// Opener creates one backend for spec, reporting the target it actually runs on.
type Opener func(spec BackendSpec) (Backend, Target, error)

// OpenBackend is the production Opener. TargetAuto tries CUDA first and
// falls back to the CPU provider when CUDA cannot be initialized.
func OpenBackend(spec BackendSpec) (Backend, Target, error) {
	switch spec.Target {
	case TargetGorgonia:
		b, err := newGorgoniaBackend(spec)
		return b, TargetGorgonia, err
	case TargetCUDA:
		b, err := newORTBackend(spec, true)
		return b, TargetCUDA, err
	case TargetCPU:
		b, err := newORTBackend(spec, false)
		return b, TargetCPU, err
	case TargetAuto, "":
		if b, err := newORTBackend(spec, true); err == nil {
			return b, TargetCUDA, nil
		}
		b, err := newORTBackend(spec, false)
		return b, TargetCPU, err
	default:
		return nil, "", fmt.Errorf("unknown execution target %q", spec.Target)
	}
}

// openBackends opens n backends. The target resolved by the first one is
// pinned for the rest so every session runs on the same device.
func openBackends(open Opener, spec BackendSpec, n int) ([]Backend, Target, error) {
	first, target, err := open(spec)
	if err != nil {
		return nil, "", err
	}
	out := []Backend{first}
	spec.Target = target
	for len(out) < n {
		b, _, err := open(spec)
		if err != nil {
			for _, o := range out {
				_ = o.Close()
			}
			return nil, "", fmt.Errorf("open session %d/%d: %w", len(out)+1, n, err)
		}
		out = append(out, b)
	}
	return out, target, nil
}
