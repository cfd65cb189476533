package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fakedetect/internal/common/fsutil"
	"fakedetect/pkg/types"
)

// DefaultModelName is the pretrained real/fake image classifier served by default.
const DefaultModelName = "prithivMLmods/Deep-Fake-Detector-Model"

// ErrSnapshotNotFound is returned when no snapshot directory holds the model.
var ErrSnapshotNotFound = errors.New("model snapshot not found")

var (
	modelCandidates        = []string{"model.onnx", filepath.Join("onnx", "model.onnx")}
	preprocessorCandidates = []string{"preprocessor_config.json", filepath.Join("onnx", "preprocessor_config.json")}
)

// Resolve locates the snapshot of a hub-named model under dir. Two layouts are
// accepted: <dir>/<org>/<name>/ and the hub cache layout
// <dir>/models--<org>--<name>/snapshots/<rev>/ (rev taken from refs/main when present).
func Resolve(dir, name string) (types.ModelSnapshot, error) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		return types.ModelSnapshot{}, fmt.Errorf("empty model name")
	}
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return types.ModelSnapshot{}, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return types.ModelSnapshot{}, fmt.Errorf("abs path: %w", err)
	}
	for _, d := range snapshotDirs(abs, name) {
		snap, ok := inspect(d)
		if ok {
			snap.Name = name
			return snap, nil
		}
	}
	return types.ModelSnapshot{}, fmt.Errorf("%w: %s under %s", ErrSnapshotNotFound, name, abs)
}

// LoadDir lists every snapshot in the <org>/<name> layout under dir.
func LoadDir(dir string) ([]types.ModelSnapshot, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	orgs, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []types.ModelSnapshot
	for _, org := range orgs {
		if !org.IsDir() { continue }
		names, err := os.ReadDir(filepath.Join(abs, org.Name()))
		if err != nil { continue }
		for _, n := range names {
			if !n.IsDir() { continue }
			snap, ok := inspect(filepath.Join(abs, org.Name(), n.Name()))
			if !ok { continue }
			snap.Name = org.Name() + "/" + n.Name()
			out = append(out, snap)
		}
	}
	return out, nil
}

func snapshotDirs(root, name string) []string {
	dirs := []string{filepath.Join(root, filepath.FromSlash(name))}
	cache := filepath.Join(root, "models--"+strings.ReplaceAll(name, "/", "--"))
	if b, err := os.ReadFile(filepath.Join(cache, "refs", "main")); err == nil {
		if rev := strings.TrimSpace(string(b)); rev != "" {
			dirs = append(dirs, filepath.Join(cache, "snapshots", rev))
		}
	}
	if entries, err := os.ReadDir(filepath.Join(cache, "snapshots")); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, filepath.Join(cache, "snapshots", e.Name()))
			}
		}
	}
	return dirs
}

// inspect reports the snapshot files in d; a snapshot needs a graph and config.json.
func inspect(d string) (types.ModelSnapshot, bool) {
	mp, ok := fsutil.FirstFile(d, modelCandidates...)
	if !ok {
		return types.ModelSnapshot{}, false
	}
	cp, ok := fsutil.FirstFile(d, "config.json")
	if !ok {
		return types.ModelSnapshot{}, false
	}
	pp, _ := fsutil.FirstFile(d, preprocessorCandidates...)
	return types.ModelSnapshot{Dir: d, ModelPath: mp, ConfigPath: cp, PreprocessorPath: pp}, true
}
