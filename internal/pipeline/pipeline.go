// Package pipeline runs the export, quantize and report steps in order.
//
// Each step runs once. The first failure stops the run and is returned
// unchanged, so callers can match it with errors.As against the typed errors
// of the export, quantize, artifact and python packages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/example/go-qwen3-quant/internal/artifact"
	"github.com/example/go-qwen3-quant/internal/export"
	"github.com/example/go-qwen3-quant/internal/quantize"
	"github.com/example/go-qwen3-quant/internal/report"
)

// Stage is one state of a run. Stages only move forward.
type Stage string

const (
	StageExport     Stage = "EXPORT"
	StageSkipExport Stage = "SKIP_EXPORT"
	StageQuantize   Stage = "QUANTIZE"
	StageReport     Stage = "REPORT"
	StageVerify     Stage = "VERIFY"
)

// ErrInputIsOutput is returned when the artifact to quantize is the
// quantized output path itself.
var ErrInputIsOutput = errors.New("quantization input is the quantized output")

type Exporter interface {
	CheckDependencies(ctx context.Context) error
	Export(ctx context.Context, modelName, outDir string) error
}

type Quantizer interface {
	CheckDependencies(ctx context.Context) error
	Quantize(ctx context.Context, req quantize.Request) error
}

type Store interface {
	EnsureDir(ctx context.Context, dir string) error
	Exists(ctx context.Context, path string) (bool, error)
	Size(ctx context.Context, path string) (int64, error)
	List(ctx context.Context, dir, ext string) ([]string, error)
}

type Verifier interface {
	Verify(ctx context.Context, paths []string) error
}

type Deps struct {
	Exporter  Exporter
	Quantizer Quantizer
	Store     Store
	// Verifier is only required when Options.Verify is set.
	Verifier Verifier
}

type Options struct {
	ModelName  string
	OutputDir  string
	SkipExport bool
	// ONNXInput overrides the default fp32 artifact path when SkipExport is set.
	ONNXInput   string
	WeightType  quantize.WeightType
	PerChannel  bool
	ReduceRange bool
	Verify      bool
	Stdout      io.Writer
}

type Result struct {
	ExportedPath  string
	QuantizedPath string
	Summary       report.Summary
	Stages        []Stage
}

func Run(ctx context.Context, opts Options, deps Deps) (Result, error) {
	if err := validate(opts, deps); err != nil {
		return Result{}, err
	}
	out := opts.Stdout
	if out == nil {
		out = io.Discard
	}

	res := Result{
		ExportedPath:  artifact.FP32Path(opts.OutputDir),
		QuantizedPath: artifact.INT8Path(opts.OutputDir),
	}

	if opts.SkipExport {
		res.Stages = append(res.Stages, StageSkipExport)
		if err := deps.Store.EnsureDir(ctx, opts.OutputDir); err != nil {
			return res, err
		}
		if opts.ONNXInput != "" {
			res.ExportedPath = opts.ONNXInput
		}
		ok, err := deps.Store.Exists(ctx, res.ExportedPath)
		if err != nil {
			return res, err
		}
		if !ok {
			return res, &artifact.NotFoundError{Path: res.ExportedPath}
		}
	} else {
		res.Stages = append(res.Stages, StageExport)
		_, _ = fmt.Fprintf(out, "[1/2] Exporting %s to ONNX...\n", opts.ModelName)

		// Nothing touches the filesystem until the exporter is known to be usable.
		if err := deps.Exporter.CheckDependencies(ctx); err != nil {
			return res, err
		}
		if err := deps.Store.EnsureDir(ctx, opts.OutputDir); err != nil {
			return res, err
		}
		if err := deps.Exporter.Export(ctx, opts.ModelName, opts.OutputDir); err != nil {
			return res, err
		}
		exported, err := export.FindArtifact(ctx, deps.Store, opts.OutputDir)
		if err != nil {
			return res, err
		}
		res.ExportedPath = exported
		_, _ = fmt.Fprintf(out, "  Exported to: %s\n", exported)
	}
	if samePath(res.ExportedPath, res.QuantizedPath) {
		return res, fmt.Errorf("%w: %s", ErrInputIsOutput, res.ExportedPath)
	}
	slog.Info("exported artifact ready", "path", res.ExportedPath, "skipped_export", opts.SkipExport)

	res.Stages = append(res.Stages, StageQuantize)
	_, _ = fmt.Fprintln(out, "[2/2] Applying INT8 dynamic quantization...")
	if err := deps.Quantizer.CheckDependencies(ctx); err != nil {
		return res, err
	}
	err := deps.Quantizer.Quantize(ctx, quantize.Request{
		Input:       res.ExportedPath,
		Output:      res.QuantizedPath,
		WeightType:  opts.WeightType,
		PerChannel:  opts.PerChannel,
		ReduceRange: opts.ReduceRange,
	})
	if err != nil {
		return res, err
	}
	ok, err := deps.Store.Exists(ctx, res.QuantizedPath)
	if err != nil {
		return res, err
	}
	if !ok {
		return res, &quantize.Error{Input: res.ExportedPath, Err: fmt.Errorf("no output written at %s", res.QuantizedPath)}
	}

	res.Stages = append(res.Stages, StageReport)
	summary, err := summarize(ctx, deps.Store, res.ExportedPath, res.QuantizedPath)
	if err != nil {
		return res, err
	}
	res.Summary = summary
	if err := summary.Write(out); err != nil {
		return res, err
	}
	slog.Info("quantization complete",
		"original_bytes", summary.OriginalBytes,
		"quantized_bytes", summary.QuantizedBytes,
		"reduction_pct", summary.Reduction(),
	)

	if opts.Verify {
		res.Stages = append(res.Stages, StageVerify)
		if err := deps.Verifier.Verify(ctx, []string{res.ExportedPath, res.QuantizedPath}); err != nil {
			return res, err
		}
	}

	return res, nil
}

func summarize(ctx context.Context, store Store, original, quantized string) (report.Summary, error) {
	origSize, err := store.Size(ctx, original)
	if err != nil {
		return report.Summary{}, fmt.Errorf("measure exported artifact: %w", err)
	}
	quantSize, err := store.Size(ctx, quantized)
	if err != nil {
		return report.Summary{}, fmt.Errorf("measure quantized artifact: %w", err)
	}
	return report.NewSummary(origSize, quantSize, quantized)
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func validate(opts Options, deps Deps) error {
	if opts.OutputDir == "" {
		return errors.New("output dir is required")
	}
	if !opts.SkipExport && opts.ModelName == "" {
		return errors.New("model name is required")
	}
	if deps.Store == nil || deps.Quantizer == nil {
		return errors.New("store and quantizer are required")
	}
	if !opts.SkipExport && deps.Exporter == nil {
		return errors.New("exporter is required unless export is skipped")
	}
	if opts.Verify && deps.Verifier == nil {
		return errors.New("verifier is required when verification is enabled")
	}
	return nil
}
