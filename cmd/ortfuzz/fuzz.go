package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/amikos-tech/onnx-fuzz/harness"
	"github.com/amikos-tech/onnx-fuzz/internal/config"
)

func newFuzzCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fuzz [model]",
		Short: "Run a model on random inputs",
		Long: `Run a model on random inputs generated from its declared input types.

Inputs, outputs and failures are written to standard output, one section per
step, so a crash inside ONNX Runtime leaves the inputs that caused it on record.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Model.Path = args[0]
			}
			if cfg.Model.Path == "" {
				return fmt.Errorf("no model given: pass a path or set --model")
			}

			logger := slog.Default()
			engine, release, err := newEngine(cmd.Context(), cfg.Runtime, logger)
			if err != nil {
				return err
			}
			sink := harness.NewSink(cmd.OutOrStdout())
			err = fuzzModel(engine, cfg, sink, logger)
			return errors.Join(err, release())
		},
	}
}

func fuzzModel(engine harness.Engine, cfg config.Config, sink *harness.Sink, logger *slog.Logger) error {
	p, err := openPrediction(engine, cfg, sink, logger)
	if err != nil {
		return err
	}
	err = fuzzPrediction(p, cfg.Fuzz, sink, logger.With("model", cfg.Model.Path, "source", cfg.Model.Source))
	return errors.Join(err, p.Close())
}

func openPrediction(engine harness.Engine, cfg config.Config, sink *harness.Sink, logger *slog.Logger) (*harness.Prediction, error) {
	opts, err := predictionOptions(cfg, sink, logger)
	if err != nil {
		return nil, err
	}

	switch cfg.Model.Source {
	case config.SourcePath:
		return harness.NewFromPath(engine, cfg.Model.Path, opts...)
	case config.SourceGraph, config.SourceBytes:
		data, err := os.ReadFile(cfg.Model.Path)
		if err != nil {
			return nil, fmt.Errorf("read model: %w", err)
		}
		if cfg.Model.Source == config.SourceGraph {
			return harness.NewFromGraph(engine, harness.SerializedGraph(data), opts...)
		}
		return harness.NewFromBytes(engine, data, opts...)
	default:
		return nil, fmt.Errorf("unknown model source %q", cfg.Model.Source)
	}
}

func predictionOptions(cfg config.Config, sink *harness.Sink, logger *slog.Logger) ([]harness.Option, error) {
	opts := []harness.Option{
		harness.WithSink(sink),
		harness.WithLogger(logger),
		harness.WithTelemetry(cfg.Runtime.Telemetry),
		harness.WithFreeDimension(cfg.Fuzz.FreeDimension),
	}
	shapes, err := cfg.ShapeOverrides()
	if err != nil {
		return nil, err
	}
	for name, shape := range shapes {
		opts = append(opts, harness.WithInputShape(name, shape))
	}
	return opts, nil
}

// fuzzPrediction runs cfg.Runs iterations. Each iteration starts at the seed
// after the previous one, so iteration k of a run with seed s reproduces on
// its own with the seed logged for it. Inference failures are counted and do
// not stop later iterations.
func fuzzPrediction(p *harness.Prediction, cfg config.FuzzConfig, sink *harness.Sink, logger *slog.Logger) error {
	guard := watchdog{
		timeout:    cfg.Timeout,
		logger:     logger,
		beforeExit: func() { _ = sink.Flush() },
	}

	seed := cfg.Seed
	failures := 0
	for run := 1; run <= cfg.Runs; run++ {
		logger.Info("fuzz iteration", "run", run, "runs", cfg.Runs, "seed", seed)
		if err := p.SetupInput(seed); err != nil {
			return fmt.Errorf("run %d: set up inputs: %w", run, err)
		}

		err := guard.guard(p.Run)
		switch {
		case err == nil:
			if err := p.PrintOutputs(); err != nil {
				return fmt.Errorf("run %d: print outputs: %w", run, err)
			}
		case errors.Is(err, harness.ErrInference):
			failures++
			logger.Warn("fuzz iteration failed", "run", run, "seed", seed, "err", err)
		default:
			return fmt.Errorf("run %d: %w", run, err)
		}

		next, err := p.NextSeed(seed)
		if err != nil {
			return err
		}
		seed = next
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d runs failed", failures, cfg.Runs)
	}
	return nil
}
