package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/amikos-tech/onnx-fuzz/ort"
)

var version = "dev"

var runtimeVersion = func(cmd *cobra.Command) (string, error) {
	cfg, err := requireConfig()
	if err != nil {
		return "", err
	}
	release, err := initRuntime(cmd.Context(), cfg.Runtime, slog.Default())
	if err != nil {
		return "", err
	}
	v := ort.GetVersionString()
	return v, release()
}

func newVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print ortfuzz and ONNX Runtime versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ortfuzz %s\n", version)
			if short {
				return nil
			}
			v, err := runtimeVersion(cmd)
			if err != nil {
				return fmt.Errorf("query ONNX Runtime version: %w", err)
			}
			fmt.Fprintf(out, "onnxruntime %s\n", v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the ortfuzz version")
	return cmd
}
