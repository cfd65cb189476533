package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"fakedetect/internal/registry"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified"; Defaults fills them.
type Config struct {
	Addr                string   `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir           string   `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	ModelName           string   `json:"model_name" yaml:"model_name" toml:"model_name"`
	Device              string   `json:"device" yaml:"device" toml:"device"`
	OnnxLib             string   `json:"onnx_lib" yaml:"onnx_lib" toml:"onnx_lib"`
	Workers             int      `json:"workers" yaml:"workers" toml:"workers"`
	QueueTimeoutMS      int      `json:"queue_timeout_ms" yaml:"queue_timeout_ms" toml:"queue_timeout_ms"`
	InferTimeoutSeconds int      `json:"infer_timeout_seconds" yaml:"infer_timeout_seconds" toml:"infer_timeout_seconds"`
	InvertLabels        *bool    `json:"invert_labels" yaml:"invert_labels" toml:"invert_labels"`
	AllowedOrigins      []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	MaxUploadMB         int      `json:"max_upload_mb" yaml:"max_upload_mb" toml:"max_upload_mb"`
	LogLevel            string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat           string   `json:"log_format" yaml:"log_format" toml:"log_format"`
}

// EnvPrefix prefixes every environment override, e.g. FAKEDETECT_ADDR.
const EnvPrefix = "FAKEDETECT_"

// Defaults returns the configuration used when nothing else is specified.
func Defaults() Config {
	invert := true
	return Config{
		Addr:         "127.0.0.1:5000",
		ModelsDir:    "~/models/hf",
		ModelName:    registry.DefaultModelName,
		Device:       "auto",
		Workers:      1,
		InvertLabels: &invert,
		MaxUploadMB:  32,
		LogLevel:     "info",
		LogFormat:    "json",
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil { return cfg, err }
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil { return cfg, err }
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil { return cfg, err }
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from a .env file into the process
// environment without overriding variables that are already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Merge overlays every non-zero field of o onto c.
func (c Config) Merge(o Config) Config {
	if o.Addr != "" { c.Addr = o.Addr }
	if o.ModelsDir != "" { c.ModelsDir = o.ModelsDir }
	if o.ModelName != "" { c.ModelName = o.ModelName }
	if o.Device != "" { c.Device = o.Device }
	if o.OnnxLib != "" { c.OnnxLib = o.OnnxLib }
	if o.Workers != 0 { c.Workers = o.Workers }
	if o.QueueTimeoutMS != 0 { c.QueueTimeoutMS = o.QueueTimeoutMS }
	if o.InferTimeoutSeconds != 0 { c.InferTimeoutSeconds = o.InferTimeoutSeconds }
	if o.InvertLabels != nil {
		v := *o.InvertLabels
		c.InvertLabels = &v
	}
	if o.AllowedOrigins != nil { c.AllowedOrigins = append([]string(nil), o.AllowedOrigins...) }
	if o.MaxUploadMB != 0 { c.MaxUploadMB = o.MaxUploadMB }
	if o.LogLevel != "" { c.LogLevel = o.LogLevel }
	if o.LogFormat != "" { c.LogFormat = o.LogFormat }
	return c
}

// FromEnv reads FAKEDETECT_* variables through lookup (os.LookupEnv in production).
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	var cfg Config
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok { *dst = strings.TrimSpace(v) }
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || strings.TrimSpace(v) == "" { return nil }
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil { return fmt.Errorf("%s%s: %w", EnvPrefix, key, err) }
		*dst = n
		return nil
	}
	str("ADDR", &cfg.Addr)
	str("MODELS_DIR", &cfg.ModelsDir)
	str("MODEL_NAME", &cfg.ModelName)
	str("DEVICE", &cfg.Device)
	str("ONNX_LIB", &cfg.OnnxLib)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	for key, dst := range map[string]*int{
		"WORKERS":               &cfg.Workers,
		"QUEUE_TIMEOUT_MS":      &cfg.QueueTimeoutMS,
		"INFER_TIMEOUT_SECONDS": &cfg.InferTimeoutSeconds,
		"MAX_UPLOAD_MB":         &cfg.MaxUploadMB,
	} {
		if err := num(key, dst); err != nil { return cfg, err }
	}
	if v, ok := lookup(EnvPrefix + "INVERT_LABELS"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil { return cfg, fmt.Errorf("%sINVERT_LABELS: %w", EnvPrefix, err) }
		cfg.InvertLabels = &b
	}
	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = SplitCSV(v)
	}
	return cfg, nil
}

// Validate rejects values the service cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" { return fmt.Errorf("addr is required") }
	if strings.TrimSpace(c.ModelName) == "" { return fmt.Errorf("model_name is required") }
	if c.Workers < 1 { return fmt.Errorf("workers must be >= 1, got %d", c.Workers) }
	if c.QueueTimeoutMS < 0 { return fmt.Errorf("queue_timeout_ms must be >= 0") }
	if c.InferTimeoutSeconds < 0 { return fmt.Errorf("infer_timeout_seconds must be >= 0") }
	if c.MaxUploadMB < 0 { return fmt.Errorf("max_upload_mb must be >= 0") }
	switch strings.ToLower(c.Device) {
	case "auto", "cuda", "cpu", "gorgonia":
	default:
		return fmt.Errorf("unknown device %q (want auto|cuda|cpu|gorgonia)", c.Device)
	}
	return nil
}

// SplitCSV splits a comma-separated list, trimming blanks and dropping empty items.
func SplitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
