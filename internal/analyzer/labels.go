package analyzer

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// LabelMap maps output class index to its human-readable name.
type LabelMap []string

// LoadLabelMap reads id2label from a model config.json.
func LoadLabelMap(path string) (LabelMap, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model config: %w", err)
	}
	return ParseLabelMap(b)
}

// ParseLabelMap parses the id2label object of a model config. Keys must be
// the canonical decimal indices 0..n-1 ("1", not "01"), so no index can
// appear twice. At least two classes are required.
func ParseLabelMap(b []byte) (LabelMap, error) {
	var cfg struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse model config: %w", err)
	}
	n := len(cfg.ID2Label)
	if n < 2 {
		return nil, fmt.Errorf("id2label needs at least 2 classes, got %d", n)
	}
	labels := make(LabelMap, n)
	for k, v := range cfg.ID2Label {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= n || k != strconv.Itoa(i) {
			return nil, fmt.Errorf("id2label: invalid class index %q", k)
		}
		labels[i] = v
	}
	return labels, nil
}

// Reported returns the label reported for top class index top. With invert
// set the opposite class of a two-class map is reported.
func (l LabelMap) Reported(top int, invert bool) string {
	if invert {
		return l[1-top]
	}
	return l[top]
}
