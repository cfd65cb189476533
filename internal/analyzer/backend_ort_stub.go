//go:build !cgo

package analyzer

// onnxruntimeBuilt indicates this binary can load the onnxruntime shared library.
var onnxruntimeBuilt = false

func newORTBackend(spec BackendSpec, cuda bool) (Backend, error) {
	return nil, ErrDependencyUnavailable("onnxruntime requires a cgo build; use device=gorgonia or rebuild with CGO_ENABLED=1")
}
