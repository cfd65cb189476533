package main

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"fakedetect/internal/analyzer"
	"fakedetect/internal/registry"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the model snapshot and inference runtime without serving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			target, err := analyzer.ParseTarget(cfg.Device)
			if err != nil {
				return err
			}
			report := analyzer.SanityCheck(cfg.ModelsDir, cfg.ModelName, cfg.OnnxLib, target)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.OK() {
				return errors.New("check failed: " + strings.Join(report.Errors, "; "))
			}
			return nil
		},
	}
	addModelFlags(cmd)
	return cmd
}

func newModelsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List model snapshots found under the models dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			snaps, err := registry.LoadDir(cfg.ModelsDir)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, s := range snaps {
				if err := enc.Encode(s); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().String("models-dir", "", "Directory holding model snapshots (default ~/models/hf)")
	return cmd
}
