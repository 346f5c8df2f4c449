package testutil_test

import (
	"testing"

	"github.com/example/go-qwen3-quant/internal/testutil"
)

func TestPythonBin_EnvOverride(t *testing.T) {
	t.Setenv("QWEN3Q_QUANTIZE_PYTHON_BIN", "/opt/venv/bin/python")
	if got := testutil.PythonBin(); got != "/opt/venv/bin/python" {
		t.Errorf("PythonBin() = %q", got)
	}

	t.Setenv("QWEN3Q_QUANTIZE_PYTHON_BIN", "")
	if got := testutil.PythonBin(); got != "python3" {
		t.Errorf("PythonBin() = %q; want python3", got)
	}
}

func TestRequireOptimumCLI_SkipsWhenAbsent(t *testing.T) {
	t.Setenv("QWEN3Q_EXPORT_CLI_PATH", "/nonexistent/optimum-cli")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	if got := testutil.RequireOptimumCLI(fakeT); got != "" {
		t.Errorf("RequireOptimumCLI() = %q; want empty", got)
	}
	if !skipped {
		t.Error("expected RequireOptimumCLI to skip when binary is absent")
	}
}

func TestRequirePythonModules_SkipsWhenInterpreterAbsent(t *testing.T) {
	t.Setenv("QWEN3Q_QUANTIZE_PYTHON_BIN", "/nonexistent/python")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequirePythonModules(fakeT, "onnx")
	if !skipped {
		t.Error("expected RequirePythonModules to skip when python is absent")
	}
}

func TestRequireONNXRuntime_SkipsWhenAbsent(t *testing.T) {
	t.Setenv("QWEN3Q_ORT_LIB", "/nonexistent/libonnxruntime.so")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequireONNXRuntime(fakeT)
	if !skipped {
		t.Error("expected RequireONNXRuntime to skip when library is absent")
	}
}

// skipTracker is a minimal testing.TB implementation that intercepts Skipf calls.
type skipTracker struct {
	testing.TB
	onSkip func()
}

func (s *skipTracker) Helper() {}

func (s *skipTracker) Skipf(_ string, _ ...any) {
	s.onSkip()
	// Do NOT call s.TB.Skip; that would skip the outer test.
}
