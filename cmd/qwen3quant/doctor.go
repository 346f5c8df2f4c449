package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/example/go-qwen3-quant/internal/doctor"
	"github.com/example/go-qwen3-quant/internal/export"
	"github.com/example/go-qwen3-quant/internal/onnx"
	"github.com/example/go-qwen3-quant/internal/python"
	"github.com/example/go-qwen3-quant/internal/quantize"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var skipExport bool
	var withORT bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the Python export and quantization tooling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			stdout := cmd.OutOrStdout()
			pythonBin := resolvePython(cfg)

			exporter := &export.Optimum{CLIPath: cfg.Export.CLIPath, PythonBin: pythonBin}
			quantizer := &quantize.Dynamic{PythonBin: pythonBin}

			result := doctor.Run(doctor.Config{
				PythonVersion: func() (string, error) {
					return python.Version(ctx, pythonBin)
				},
				OptimumVersion: func() (string, error) {
					return probeVersion(ctx, cfg.Export.CLIPath)
				},
				ExportModules:   func() error { return exporter.CheckDependencies(ctx) },
				SkipExport:      skipExport,
				QuantizeModules: func() error { return quantizer.CheckDependencies(ctx) },
				ORTRuntime: func() (string, error) {
					info, err := onnx.DetectRuntime(cfg.Runtime)
					if err != nil {
						return "", err
					}
					return fmt.Sprintf("%s (version %s)", info.LibraryPath, info.Version), nil
				},
				SkipORT: !withORT,
			}, stdout)

			if result.Failed() {
				for _, f := range result.Failures() {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(stdout, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&skipExport, "skip-export", false, "Skip optimum-cli checks (quantize-only workflow)")
	cmd.Flags().BoolVar(&withORT, "with-ort", false, "Also check for the ONNX Runtime shared library used by --verify")

	return cmd
}

// probeVersion runs `<exe> --version` and returns its trimmed output.
func probeVersion(ctx context.Context, exe string) (string, error) {
	out, err := exec.CommandContext(ctx, exe, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("%s --version failed: %w", exe, err)
	}

	return strings.TrimSpace(string(out)), nil
}
