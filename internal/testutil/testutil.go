// Package testutil provides shared skip helpers for integration tests.
//
// Each helper calls t.Skipf with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestQuantizeIntegration(t *testing.T) {
//	    py := testutil.RequirePythonModules(t, "onnx", "onnxruntime.quantization")
//	    ...
//	}
package testutil

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/example/go-qwen3-quant/internal/config"
	"github.com/example/go-qwen3-quant/internal/onnx"
	"github.com/example/go-qwen3-quant/internal/python"
)

// PythonBin returns the interpreter integration tests run against:
// QWEN3Q_QUANTIZE_PYTHON_BIN when set, else python3.
func PythonBin() string {
	if bin := os.Getenv("QWEN3Q_QUANTIZE_PYTHON_BIN"); bin != "" {
		return bin
	}
	return python.DefaultInterpreter
}

// RequireOptimumCLI skips the test if optimum-cli is not found in PATH or at
// the path given by QWEN3Q_EXPORT_CLI_PATH. It returns the resolved path.
func RequireOptimumCLI(tb testing.TB) string {
	tb.Helper()

	exe := os.Getenv("QWEN3Q_EXPORT_CLI_PATH")
	if exe == "" {
		exe = config.DefaultOptimumCLI
	}

	path, err := exec.LookPath(exe)
	if err != nil {
		tb.Skipf("optimum-cli not available (%q not in PATH); set QWEN3Q_EXPORT_CLI_PATH to override", exe)
		return ""
	}
	return path
}

// RequirePythonModules skips the test unless PythonBin can import every
// module. It returns the interpreter that passed the check.
func RequirePythonModules(tb testing.TB, modules ...string) string {
	tb.Helper()

	bin := PythonBin()
	if _, err := exec.LookPath(bin); err != nil {
		tb.Skipf("python interpreter %q not available", bin)
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := python.CheckModules(ctx, bin, modules...); err != nil {
		tb.Skipf("python modules not available: %v", err)
		return ""
	}
	return bin
}

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located through the same lookup the verify command uses. It returns the
// library path.
func RequireONNXRuntime(tb testing.TB) string {
	tb.Helper()

	info, err := onnx.DetectRuntime(config.RuntimeConfig{})
	if err != nil {
		tb.Skipf("ONNX Runtime shared library not found (%v); set QWEN3Q_ORT_LIB or ORT_LIBRARY_PATH", err)
		return ""
	}
	return info.LibraryPath
}
