package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fakedetect/internal/analyzer"
	"fakedetect/internal/config"
	"fakedetect/internal/httpapi"
	"fakedetect/internal/registry"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /analyze over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	addModelFlags(cmd)
	f := cmd.Flags()
	f.String("addr", "", "HTTP listen address (default 127.0.0.1:5000)")
	f.Int("queue-timeout-ms", 0, "Max wait for a free session before 429 (0 waits)")
	f.Int("infer-timeout-seconds", 0, "Per-request analysis timeout (0 disables)")
	f.Int("max-upload-mb", 0, "Upload size limit in MiB")
	f.String("allowed-origins", "", "Comma-separated CORS origins; empty or * allows all")
	return cmd
}

// openAnalyzer resolves the configured snapshot and loads the model.
func openAnalyzer(cfg config.Config, logger zerolog.Logger) (*analyzer.Analyzer, error) {
	target, err := analyzer.ParseTarget(cfg.Device)
	if err != nil {
		return nil, err
	}
	snap, err := registry.Resolve(cfg.ModelsDir, cfg.ModelName)
	if err != nil {
		return nil, err
	}
	invert := true
	if cfg.InvertLabels != nil {
		invert = *cfg.InvertLabels
	}
	return analyzer.New(analyzer.Options{
		Snapshot:     snap,
		Target:       target,
		OnnxLib:      cfg.OnnxLib,
		Workers:      cfg.Workers,
		QueueTimeout: time.Duration(cfg.QueueTimeoutMS) * time.Millisecond,
		InvertLabels: invert,
		Publisher:    analyzer.NewLogPublisher(logger.With().Str("component", "analyzer").Logger()),
	})
}

// configureHTTP pushes config into the httpapi package-level settings.
func configureHTTP(cfg config.Config, logger zerolog.Logger) {
	httpapi.SetLogger(logger.With().Str("component", "http").Logger())
	httpapi.SetDefaultLogLevel(httpLogLevel(cfg.LogLevel))
	httpapi.SetMaxUploadBytes(int64(cfg.MaxUploadMB) << 20)
	httpapi.SetInferTimeoutSeconds(int64(cfg.InferTimeoutSeconds))
	httpapi.SetCORSOptions(corsOrigins(cfg.AllowedOrigins), nil, nil)
}

// httpLogLevel maps a zerolog level name onto the request log levels.
func httpLogLevel(level string) string {
	switch level {
	case "debug", "trace":
		return "debug"
	case "warn", "error", "fatal", "panic":
		return "error"
	case "disabled", "off":
		return "off"
	default:
		return "info"
	}
}

// corsOrigins treats a lone "*" like an empty list: every origin is allowed.
func corsOrigins(origins []string) []string {
	for _, o := range origins {
		if o == "*" {
			return nil
		}
	}
	return origins
}

func serve(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	az, err := openAnalyzer(cfg, logger)
	if err != nil {
		return err
	}
	configureHTTP(cfg, logger)

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(az),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("model", az.Model()).Str("target", string(az.Target())).
			Int("workers", cfg.Workers).Msg("fakedetect listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		_ = az.Close()
		return err
	}

	// Graceful shutdown (Ctrl+C / SIGTERM)
	logger.Info().Msg("shutting down")
	cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	return az.Close()
}
