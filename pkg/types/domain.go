package types

// Prediction is the outcome of a single image analysis.
type Prediction struct {
	Label      string
	Confidence float64
}

// Response converts a prediction to its wire form.
func (p Prediction) Response() AnalyzeResponse {
	return AnalyzeResponse{Result: p.Label, Confidence: p.Confidence}
}

// ModelSnapshot locates the on-disk artifacts of a pretrained model.
type ModelSnapshot struct {
	// Hub-style name, e.g. prithivMLmods/Deep-Fake-Detector-Model.
	Name string `json:"name"`
	// Directory holding the snapshot.
	Dir string `json:"dir"`
	// ONNX graph.
	ModelPath string `json:"model_path"`
	// Model config carrying id2label.
	ConfigPath string `json:"config_path"`
	// Preprocessing config. Empty when the snapshot ships none.
	PreprocessorPath string `json:"preprocessor_path,omitempty"`
}
