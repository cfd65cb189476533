package main

import (
	"os"

	"github.com/spf13/cobra"

	"fakedetect/internal/config"
)

// rootOptions carries persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
}

func buildRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "fakedetect",
		Short:         "Real/fake image classification service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (.yaml, .yml, .json, .toml)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading FAKEDETECT_* variables")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults FAKEDETECT_LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: json|console")

	root.AddCommand(newServeCmd(opts), newPredictCmd(opts), newCheckCmd(opts), newModelsCmd(opts))
	return root
}

// addModelFlags registers the flags that select and load the model.
func addModelFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("models-dir", "", "Directory holding model snapshots (default ~/models/hf)")
	f.String("model", "", "Model name, e.g. org/name")
	f.String("device", "", "Execution target: auto|cuda|cpu|gorgonia")
	f.String("onnx-lib", "", "Path to the onnxruntime shared library")
	f.Int("workers", 0, "Number of pooled inference sessions")
	f.Bool("invert-labels", true, "Report the opposite class of the top logit")
}

// flagConfig collects only the flags the user set explicitly, so they
// override env and file values without clobbering them with flag defaults.
func flagConfig(cmd *cobra.Command, opts *rootOptions) config.Config {
	var c config.Config
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if f.Changed(name) {
			*dst, _ = f.GetInt(name)
		}
	}
	str("addr", &c.Addr)
	str("models-dir", &c.ModelsDir)
	str("model", &c.ModelName)
	str("device", &c.Device)
	str("onnx-lib", &c.OnnxLib)
	num("workers", &c.Workers)
	num("queue-timeout-ms", &c.QueueTimeoutMS)
	num("infer-timeout-seconds", &c.InferTimeoutSeconds)
	num("max-upload-mb", &c.MaxUploadMB)
	if f.Changed("invert-labels") {
		v, _ := f.GetBool("invert-labels")
		c.InvertLabels = &v
	}
	if f.Changed("allowed-origins") {
		v, _ := f.GetString("allowed-origins")
		c.AllowedOrigins = config.SplitCSV(v)
	}
	c.LogLevel = opts.logLevel
	c.LogFormat = opts.logFormat
	return c
}

// resolveConfig layers defaults < file < env < flags and validates the result.
func resolveConfig(opts *rootOptions, flags config.Config, lookup func(string) (string, bool)) (config.Config, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return config.Config{}, err
	}
	cfg := config.Defaults()
	if opts.configPath != "" {
		fileCfg, err := config.Load(opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg, err := config.FromEnv(lookup)
	if err != nil {
		return config.Config{}, err
	}
	cfg = cfg.Merge(envCfg).Merge(flags)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	return resolveConfig(opts, flagConfig(cmd, opts), os.LookupEnv)
}
