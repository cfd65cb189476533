package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fakedetect/internal/httpapi"
	"fakedetect/pkg/types"
)

type predictLine struct {
	File       string  `json:"file"`
	Result     string  `json:"result,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
}

func newPredictCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "predict <image>...",
		Short:   "Classify local image files and print one JSON line per file",
		Example: "  fakedetect predict --device cpu face.jpg",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			az, err := openAnalyzer(cfg, logger)
			if err != nil {
				return err
			}
			defer az.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			failed := 0
			for _, path := range args {
				line := predictLine{File: path}
				if pred, err := predictFile(cmd.Context(), az, path); err != nil {
					line.Error = err.Error()
					failed++
				} else {
					line.Result, line.Confidence = pred.Label, pred.Confidence
				}
				if err := enc.Encode(line); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d images failed", failed, len(args))
			}
			return nil
		},
	}
	addModelFlags(cmd)
	return cmd
}

func predictFile(ctx context.Context, svc httpapi.Service, path string) (types.Prediction, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Prediction{}, err
	}
	defer f.Close()
	return svc.Predict(ctx, f)
}
