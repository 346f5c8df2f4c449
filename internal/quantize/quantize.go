// Package quantize applies ONNX Runtime dynamic weight quantization to an
// exported model.
package quantize

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/example/go-qwen3-quant/internal/python"
)

// InstallHint is printed when onnxruntime is missing.
const InstallHint = "pip install onnxruntime"

//go:embed quantize_dynamic.py
var helperScript string

// WeightType is the integer representation weights are converted to.
type WeightType string

const (
	QInt8  WeightType = "QInt8"
	QUInt8 WeightType = "QUInt8"
)

// ParseWeightType accepts QInt8 or QUInt8 in any case. Empty means QInt8.
func ParseWeightType(s string) (WeightType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "qint8", "int8":
		return QInt8, nil
	case "quint8", "uint8":
		return QUInt8, nil
	default:
		return "", fmt.Errorf("invalid weight type %q (expected %s|%s)", s, QInt8, QUInt8)
	}
}

// Request describes one quantization run.
type Request struct {
	Input       string
	Output      string
	WeightType  WeightType
	PerChannel  bool
	ReduceRange bool
}

func (r Request) args() []string {
	wt := r.WeightType
	if wt == "" {
		wt = QInt8
	}
	args := []string{"-c", helperScript, r.Input, r.Output, string(wt)}
	if r.PerChannel {
		args = append(args, "--per-channel")
	}
	if r.ReduceRange {
		args = append(args, "--reduce-range")
	}
	return args
}

// Error wraps a failed quantization run.
type Error struct {
	Input string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("quantize %s: %v", e.Input, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Dynamic runs onnxruntime.quantization.quantize_dynamic through PythonBin.
type Dynamic struct {
	PythonBin string
	Stdout    io.Writer
	Stderr    io.Writer
}

func (d *Dynamic) CheckDependencies(ctx context.Context) error {
	if err := python.CheckModules(ctx, d.python(), "onnxruntime.quantization"); err != nil {
		return &python.DependencyError{Component: "quantization (onnxruntime)", Install: InstallHint, Err: err}
	}
	return nil
}

// Quantize runs the helper once. Callers check that req.Output was written.
func (d *Dynamic) Quantize(ctx context.Context, req Request) error {
	if req.Input == "" || req.Output == "" {
		return errors.New("quantize: input and output paths are required")
	}

	cmd := exec.CommandContext(ctx, d.python(), req.args()...)
	cmd.Stdout = writerOrDiscard(d.Stdout)
	cmd.Stderr = writerOrDiscard(d.Stderr)

	slog.Debug("running quantizer", "input", req.Input, "output", req.Output, "weight_type", req.WeightType)
	if err := cmd.Run(); err != nil {
		return &Error{Input: req.Input, Err: err}
	}
	return nil
}

func (d *Dynamic) python() string {
	if d.PythonBin == "" {
		return python.DefaultInterpreter
	}
	return d.PythonBin
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
