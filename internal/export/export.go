// Package export produces the floating-point ONNX artifact by running the
// Hugging Face optimum exporter.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"

	"github.com/example/go-qwen3-quant/internal/artifact"
	"github.com/example/go-qwen3-quant/internal/python"
)

const (
	DefaultCLI  = "optimum-cli"
	DefaultTask = "text-to-audio"

	// InstallHint is printed when the exporter or its Python packages are missing.
	InstallHint = "pip install optimum[onnxruntime] transformers torch"

	// PreExportedRepo hosts an ONNX export usable with --skip-export.
	PreExportedRepo = "zukky/Qwen3-TTS-ONNX-DLL"
	upstreamRepoURL = "https://github.com/QwenLM/Qwen3-TTS"
)

var requiredModules = []string{"optimum.onnxruntime", "transformers"}

// ErrNoArtifact is returned when the exporter leaves no .onnx file behind.
var ErrNoArtifact = errors.New("ONNX export produced no .onnx files\n" +
	"  Qwen3-TTS may require manual export.\n" +
	"  Check " + upstreamRepoURL + " for updates.")

// Error wraps a failure to run the exporter.
type Error struct {
	Model string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export failed for %s: %v\n"+
		"  Qwen3-TTS architecture may not be supported by optimum yet.\n"+
		"  Try using a pre-exported ONNX model from:\n"+
		"    https://huggingface.co/%s (see `qwen3quant download-onnx`)",
		e.Model, e.Err, PreExportedRepo)
}

func (e *Error) Unwrap() error { return e.Err }

// Optimum runs `optimum-cli export onnx`.
type Optimum struct {
	CLIPath   string
	PythonBin string
	Task      string
	Stdout    io.Writer
	Stderr    io.Writer
}

// CheckDependencies verifies that optimum-cli is executable and that its
// interpreter can import the export packages.
func (o *Optimum) CheckDependencies(ctx context.Context) error {
	cli := o.cli()
	if _, err := exec.LookPath(cli); err != nil {
		return &python.DependencyError{Component: "ONNX export", Install: InstallHint, Err: err}
	}

	bin := o.PythonBin
	if bin == "" {
		bin = python.DetectInterpreter(cli)
	}
	if err := python.CheckModules(ctx, bin, requiredModules...); err != nil {
		return &python.DependencyError{Component: "ONNX export", Install: InstallHint, Err: err}
	}
	return nil
}

// Export writes the exported graph files into outDir. A non-zero exit status
// is not fatal on its own: optimum reports post-export validation mismatches
// that way after the model is already written, so the caller decides by
// scanning outDir.
func (o *Optimum) Export(ctx context.Context, modelName, outDir string) error {
	task := o.Task
	if task == "" {
		task = DefaultTask
	}
	args := []string{"export", "onnx", "--model", modelName, "--task", task, outDir}

	cmd := exec.CommandContext(ctx, o.cli(), args...)
	cmd.Stdout = writerOrDiscard(o.Stdout)
	cmd.Stderr = writerOrDiscard(o.Stderr)

	slog.Debug("running exporter", "cli", o.cli(), "args", args)
	err := cmd.Run()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		slog.Warn("exporter exited with non-zero status", "model", modelName, "exit_code", exitErr.ExitCode())
		return nil
	}
	if err != nil {
		return &Error{Model: modelName, Err: err}
	}
	return nil
}

func (o *Optimum) cli() string {
	if o.CLIPath == "" {
		return DefaultCLI
	}
	return o.CLIPath
}

// Lister lists artifact files in a directory.
type Lister interface {
	List(ctx context.Context, dir, ext string) ([]string, error)
}

// FindArtifact returns the first .onnx file in dir. When the exporter emits
// several graphs only the first in lexical order is used. The quantized
// artifact of an earlier run is never a candidate.
func FindArtifact(ctx context.Context, l Lister, dir string) (string, error) {
	listed, err := l.List(ctx, dir, artifact.ONNXExt)
	if err != nil {
		return "", fmt.Errorf("scan export output: %w", err)
	}
	files := listed[:0:0]
	for _, f := range listed {
		if filepath.Base(f) == artifact.INT8Name {
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return "", ErrNoArtifact
	}
	if len(files) > 1 {
		slog.Warn("exporter produced several ONNX files; using the first", "picked", files[0], "count", len(files))
	}
	return files[0], nil
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
