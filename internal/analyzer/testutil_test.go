package analyzer

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"fakedetect/pkg/types"
)

// fakeBackend is a lightweight in-memory backend used for tests.
type fakeBackend struct {
	logits  []float32
	err     error
	block   chan struct{} // when set, Forward waits for it to be closed
	calls   atomic.Int32
	closed  atomic.Bool
	lastLen int
	mu      sync.Mutex
}

func (f *fakeBackend) Forward(ctx context.Context, pixels []float32) ([]float32, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastLen = len(pixels)
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]float32(nil), f.logits...), nil
}

func (f *fakeBackend) Close() error {
	f.closed.Store(true)
	return nil
}

// fakeOpener hands out the given backends in order, reporting target.
func fakeOpener(target Target, backends ...*fakeBackend) (Opener, *[]BackendSpec) {
	var specs []BackendSpec
	i := 0
	return func(spec BackendSpec) (Backend, Target, error) {
		specs = append(specs, spec)
		b := backends[i%len(backends)]
		i++
		return b, target, nil
	}, &specs
}

// writeSnapshot creates a model snapshot directory with the given label map JSON.
func writeSnapshot(t *testing.T, id2label string) types.ModelSnapshot {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"model.onnx":               "onnx",
		"config.json":              `{"id2label":` + id2label + `}`,
		"preprocessor_config.json": `{"size":{"height":32,"width":32},"image_mean":[0.5,0.5,0.5],"image_std":[0.5,0.5,0.5]}`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return types.ModelSnapshot{
		Name:             "acme/detector",
		Dir:              dir,
		ModelPath:        filepath.Join(dir, "model.onnx"),
		ConfigPath:       filepath.Join(dir, "config.json"),
		PreprocessorPath: filepath.Join(dir, "preprocessor_config.json"),
	}
}

// jpegBytes encodes a small solid-color JPEG.
func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

// oversizedPNG returns a valid 1x1 PNG whose IHDR claims w x h pixels.
func oversizedPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	b := buf.Bytes()
	binary.BigEndian.PutUint32(b[16:20], w)
	binary.BigEndian.PutUint32(b[20:24], h)
	binary.BigEndian.PutUint32(b[29:33], crc32.ChecksumIEEE(b[12:29]))
	return b
}

// emptyGIF is a well-formed GIF with a 0x0 logical screen and no frames.
var emptyGIF = []byte{'G', 'I', 'F', '8', '9', 'a', 0, 0, 0, 0, 0, 0, 0, 0x3B}
