package analyzer

import (
	"os"
	"path/filepath"
	"runtime"

	"fakedetect/internal/registry"
	"fakedetect/pkg/types"
)

// SanityReport describes runtime checks for external dependencies.
type SanityReport struct {
	Target         Target               `json:"target"`
	OnnxruntimeCgo bool                 `json:"onnxruntime_cgo"`
	OnnxLibFound   bool                 `json:"onnx_lib_found"`
	OnnxLibPath    string               `json:"onnx_lib_path,omitempty"`
	ModelFound     bool                 `json:"model_found"`
	Snapshot       *types.ModelSnapshot `json:"snapshot,omitempty"`
	LabelsOK       bool                 `json:"labels_ok"`
	GraphOK        bool                 `json:"graph_ok,omitempty"`
	Labels         []string             `json:"labels,omitempty"`
	Errors         []string             `json:"errors,omitempty"`
}

// OK reports whether serving can start with the checked settings.
func (r SanityReport) OK() bool { return len(r.Errors) == 0 }

// SanityCheck validates that the model snapshot and, for onnxruntime
// targets, the shared library are available. For the gorgonia target the
// graph is built once so operators the pure-Go runtime lacks are reported.
func SanityCheck(modelsDir, modelName, onnxLib string, target Target) SanityReport {
	r := SanityReport{Target: target, OnnxruntimeCgo: onnxruntimeBuilt}
	snap, err := registry.Resolve(modelsDir, modelName)
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	} else {
		r.ModelFound = true
		r.Snapshot = &snap
		if labels, err := LoadLabelMap(snap.ConfigPath); err != nil {
			r.Errors = append(r.Errors, err.Error())
		} else {
			r.LabelsOK = true
			r.Labels = labels
		}
	}
	if target == TargetGorgonia {
		if r.ModelFound {
			r.checkGraph(snap)
		}
		return r
	}
	if !onnxruntimeBuilt {
		r.Errors = append(r.Errors, "binary built without cgo: onnxruntime targets unavailable")
		return r
	}
	lib := onnxLib
	if lib == "" {
		lib = discoverOnnxLib()
	}
	if lib == "" {
		r.Errors = append(r.Errors, "onnxruntime shared library not found: set onnx_lib")
		return r
	}
	r.OnnxLibPath = lib
	if fi, err := os.Stat(lib); err == nil && !fi.IsDir() {
		r.OnnxLibFound = true
	} else if err != nil {
		r.Errors = append(r.Errors, err.Error())
	} else {
		r.Errors = append(r.Errors, "onnx_lib is a directory")
	}
	return r
}

// checkGraph builds the model on the gorgonia runtime with the snapshot's
// input size.
func (r *SanityReport) checkGraph(snap types.ModelSnapshot) {
	proc, err := LoadProcessor(snap.PreprocessorPath)
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
		return
	}
	b, err := newGorgoniaBackend(BackendSpec{ModelPath: snap.ModelPath, Target: TargetGorgonia, Width: proc.Width, Height: proc.Height})
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
		return
	}
	_ = b.Close()
	r.GraphOK = true
}

func discoverOnnxLib() string {
	name := "libonnxruntime.so"
	switch runtime.GOOS {
	case "darwin":
		name = "libonnxruntime.dylib"
	case "windows":
		name = "onnxruntime.dll"
	}
	candidates := []string{
		filepath.Join("/usr/local/lib", name),
		filepath.Join("/usr/lib", name),
		filepath.Join("/opt/homebrew/lib", name),
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".local", "lib", name))
	}
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}
