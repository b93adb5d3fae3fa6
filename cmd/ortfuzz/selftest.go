package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/amikos-tech/onnx-fuzz/harness"
	"github.com/amikos-tech/onnx-fuzz/internal/config"
	"github.com/amikos-tech/onnx-fuzz/internal/onnxmodel"
)

func newSelftestCmd() *cobra.Command {
	var ortModel string

	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Fuzz a built-in two-input model through every load path",
		Long: `Build a small Add/Identity model in memory and fuzz it once loaded from
a file path and once from an in-memory graph. With --ort-model, an ORT-format
model file is also fuzzed from raw bytes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			logger := slog.Default()
			engine, release, err := newEngine(cmd.Context(), cfg.Runtime, logger)
			if err != nil {
				return err
			}
			sink := harness.NewSink(cmd.OutOrStdout())
			err = selftest(engine, cfg, sink, logger, ortModel)
			return errors.Join(err, release())
		},
	}

	cmd.Flags().StringVar(&ortModel, "ort-model", "", "ORT-format model to exercise the raw bytes path")
	return cmd
}

func selftest(engine harness.Engine, cfg config.Config, sink *harness.Sink, logger *slog.Logger, ortModel string) error {
	model := onnxmodel.TwoInputModel()
	if err := model.Validate(); err != nil {
		return fmt.Errorf("build self-test model: %w", err)
	}
	data := model.Marshal()

	dir, err := os.MkdirTemp("", "ortfuzz-selftest-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "two_input.onnx")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}

	type target struct {
		source string
		path   string
	}
	targets := []target{
		{source: config.SourcePath, path: path},
		{source: config.SourceGraph, path: path},
	}
	if ortModel != "" {
		targets = append(targets, target{source: config.SourceBytes, path: ortModel})
	}

	var errs []error
	for _, t := range targets {
		run := cfg
		run.Model = config.ModelConfig{Path: t.path, Source: t.source}
		logger.Info("self-test", "source", t.source)
		if err := fuzzModel(engine, run, sink, logger); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.source, err))
		}
	}
	return errors.Join(errs...)
}
