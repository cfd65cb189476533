package e2e

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"fakedetect/internal/analyzer"
	"fakedetect/internal/analyzer/onnxtest"
	"fakedetect/internal/httpapi"
	"fakedetect/internal/registry"
)

// logitBackend returns fixed logits, optionally waiting on gate first.
type logitBackend struct {
	logits []float32
	gate   chan struct{}
}

func (b *logitBackend) Forward(ctx context.Context, pixels []float32) ([]float32, error) {
	if b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return append([]float32(nil), b.logits...), nil
}

func (b *logitBackend) Close() error { return nil }

// countingBackend records how many forward passes ran.
type countingBackend struct {
	logitBackend
	calls atomic.Int32
}

func (b *countingBackend) Forward(ctx context.Context, pixels []float32) ([]float32, error) {
	b.calls.Add(1)
	return b.logitBackend.Forward(ctx, pixels)
}

// createTempModelsDir lays out <dir>/acme/detector as a model snapshot.
func createTempModelsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	snap := filepath.Join(dir, "acme", "detector")
	if err := os.MkdirAll(snap, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string]string{
		"model.onnx":               "onnx",
		"config.json":              `{"id2label":{"0":"Fake","1":"Real"}}`,
		"preprocessor_config.json": `{"do_resize":true,"size":{"height":64,"width":64},"resample":2,"rescale_factor":0.00392156862745098,"image_mean":[0.5,0.5,0.5],"image_std":[0.5,0.5,0.5]}`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(snap, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

// newGorgoniaServer serves a real linear ONNX graph on the pure-Go runtime.
// Logit 0 is the sum of the normalized red plane, logit 1 is zero.
func newGorgoniaServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := createTempModelsDir(t)
	const side = 64
	w := make([]float32, 3*side*side*2)
	for i := 0; i < side*side; i++ {
		w[2*i] = 1
	}
	if _, err := onnxtest.WriteFile(filepath.Join(dir, "acme", "detector"), onnxtest.Linear(side, side, 2, w)); err != nil {
		t.Fatalf("model: %v", err)
	}
	snap, err := registry.Resolve(dir, "acme/detector")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	az, err := analyzer.New(analyzer.Options{Snapshot: snap, Target: analyzer.TargetGorgonia, InvertLabels: true})
	if err != nil {
		t.Fatalf("analyzer: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(az))
	t.Cleanup(func() {
		srv.Close()
		_ = az.Close()
	})
	return srv
}

// newServer wires registry -> analyzer -> httpapi the way `fakedetect serve` does.
func newServer(t *testing.T, backend analyzer.Backend, queueTimeout time.Duration) *httptest.Server {
	t.Helper()
	snap, err := registry.Resolve(createTempModelsDir(t), "acme/detector")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	az, err := analyzer.New(analyzer.Options{
		Snapshot:     snap,
		Target:       analyzer.TargetCPU,
		InvertLabels: true,
		QueueTimeout: queueTimeout,
		Open: func(analyzer.BackendSpec) (analyzer.Backend, analyzer.Target, error) {
			return backend, analyzer.TargetCPU, nil
		},
	})
	if err != nil {
		t.Fatalf("analyzer: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(az))
	t.Cleanup(func() {
		srv.Close()
		_ = az.Close()
	})
	return srv
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(6 * x), G: uint8(8 * y), B: 90, A: 200})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png: %v", err)
	}
	return buf.Bytes()
}

func postFile(t *testing.T, url, filename string, content []byte) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write(content)
	_ = mw.Close()
	resp, err := http.Post(url+"/analyze", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Errorf("POST /analyze: %v", err)
		return &http.Response{}, nil
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

// bombPNG is a 1x1 PNG re-labelled in its IHDR as w x h.
func bombPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("png: %v", err)
	}
	b := buf.Bytes()
	binary.BigEndian.PutUint32(b[16:20], w)
	binary.BigEndian.PutUint32(b[20:24], h)
	binary.BigEndian.PutUint32(b[29:33], crc32.ChecksumIEEE(b[12:29]))
	return b
}

// solidPNG encodes a w x h image of one color.
func solidPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png: %v", err)
	}
	return buf.Bytes()
}
