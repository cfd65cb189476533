// Package analyzer wraps a pretrained real/fake image classifier. It is
// structured into small files by concern:
//
//   - analyzer.go: Analyzer type, construction from a model snapshot, Predict.
//   - labels.go: id2label parsing from the snapshot's config.json.
//   - preprocess.go: preprocessor_config.json parsing and the image -> tensor transform.
//   - scores.go: softmax, argmax and confidence rounding.
//   - backend.go: Backend interface and execution target selection.
//   - backend_ort.go: onnxruntime sessions (CUDA or CPU), cgo builds only.
//   - backend_gorgonia.go: pure-Go onnx-go/gorgonia backend.
//   - pool.go: fixed-size session pool guarding the forward pass.
//   - errors.go: error types and helpers (IsTooBusy, IsDependencyUnavailable).
//   - events.go, eventpub_*.go: lifecycle/prediction events.
//   - metrics.go: prometheus collectors.
//   - sanity.go: runtime dependency checks used by `fakedetect check`.
//
// Sessions are created once per process and are read-only afterwards; each
// pooled session serves one forward pass at a time.
package analyzer
