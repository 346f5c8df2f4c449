package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/example/go-qwen3-quant/internal/artifact"
	"github.com/example/go-qwen3-quant/internal/config"
	"github.com/example/go-qwen3-quant/internal/export"
	"github.com/example/go-qwen3-quant/internal/onnx"
	"github.com/example/go-qwen3-quant/internal/pipeline"
	"github.com/example/go-qwen3-quant/internal/python"
	"github.com/example/go-qwen3-quant/internal/quantize"
)

type pipelineFlags struct {
	skipExport bool
	onnxInput  string
	verify     bool
}

func runPipeline(ctx context.Context, cfg config.Config, flags pipelineFlags, stdout, stderr io.Writer) (pipeline.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	wt, err := quantize.ParseWeightType(cfg.Quantize.WeightType)
	if err != nil {
		return pipeline.Result{}, err
	}

	outDir, err := resolveOutputDir(cfg)
	if err != nil {
		return pipeline.Result{}, err
	}

	pythonBin := resolvePython(cfg)
	slog.Debug("resolved tooling",
		"python", pythonBin,
		"optimum_cli", cfg.Export.CLIPath,
		"output_dir", outDir,
	)

	deps := pipeline.Deps{
		Exporter: &export.Optimum{
			CLIPath:   cfg.Export.CLIPath,
			PythonBin: pythonBin,
			Task:      cfg.Export.Task,
			Stdout:    stdout,
			Stderr:    stderr,
		},
		Quantizer: &quantize.Dynamic{
			PythonBin: pythonBin,
			Stdout:    stdout,
			Stderr:    stderr,
		},
		Store: artifact.NewStore(),
	}

	if flags.verify {
		v, err := newVerifier(cfg, stdout, stderr)
		if err != nil {
			return pipeline.Result{}, err
		}
		deps.Verifier = v
	}

	return pipeline.Run(ctx, pipeline.Options{
		ModelName:   cfg.Export.ModelName,
		OutputDir:   outDir,
		SkipExport:  flags.skipExport,
		ONNXInput:   flags.onnxInput,
		WeightType:  wt,
		PerChannel:  cfg.Quantize.PerChannel,
		ReduceRange: cfg.Quantize.ReduceRange,
		Verify:      flags.verify,
		Stdout:      stdout,
	}, deps)
}

func resolveOutputDir(cfg config.Config) (string, error) {
	if cfg.Paths.OutputDir != "" {
		return cfg.Paths.OutputDir, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := artifact.ResolveProjectRoot(cfg.Paths.ProjectRoot, wd)
	if err != nil {
		return "", err
	}

	return artifact.DefaultOutputDir(root), nil
}

// resolvePython prefers an explicit interpreter, then the one optimum-cli
// was installed into.
func resolvePython(cfg config.Config) string {
	if cfg.Quantize.PythonBin != "" {
		return cfg.Quantize.PythonBin
	}
	return python.DetectInterpreter(cfg.Export.CLIPath)
}

func newVerifier(cfg config.Config, stdout, stderr io.Writer) (*onnx.Verifier, error) {
	info, err := onnx.DetectRuntime(cfg.Runtime)
	if err != nil {
		return nil, err
	}
	slog.Debug("onnx runtime", "library", info.LibraryPath, "version", info.Version)

	return onnx.NewVerifier(onnx.VerifyOptions{
		LibraryPath: info.LibraryPath,
		APIVersion:  uint32(cfg.Runtime.ORTAPIVersion),
		Stdout:      stdout,
		Stderr:      stderr,
	}), nil
}
