// Package doctor provides preflight checks for the export and quantization tooling.
package doctor

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// CheckFunc returns nil when the component is usable.
type CheckFunc func() error

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// PythonVersion returns the interpreter version string (e.g. "3.11.4").
	PythonVersion VersionFunc
	// OptimumVersion returns the output of `optimum-cli --version`.
	OptimumVersion VersionFunc
	// ExportModules checks that the exporter's Python packages import.
	ExportModules CheckFunc
	// SkipExport skips the exporter checks (quantize-only workflows).
	SkipExport bool
	// QuantizeModules checks that onnxruntime.quantization imports.
	QuantizeModules CheckFunc
	// ORTRuntime returns the detected ONNX Runtime library description.
	ORTRuntime VersionFunc
	// SkipORT skips the ONNX Runtime library check (only needed for verification).
	SkipORT bool
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- Python version ---------------------------------------------------
	pyVer, err := cfg.PythonVersion()
	if err != nil {
		res.fail(fmt.Sprintf("python version: %v", err))
		fmt.Fprintf(w, "%s python version: not found (%v)\n", FailMark, err)
	} else if pyErr := checkPythonVersion(pyVer); pyErr != nil {
		res.fail(fmt.Sprintf("python version: %v", pyErr))
		fmt.Fprintf(w, "%s python version %s: %v\n", FailMark, pyVer, pyErr)
	} else {
		fmt.Fprintf(w, "%s python version: %s\n", PassMark, pyVer)
	}

	// ---- exporter ---------------------------------------------------------
	if cfg.SkipExport {
		fmt.Fprintf(w, "%s optimum-cli: skipped\n", PassMark)
		fmt.Fprintf(w, "%s export packages: skipped\n", PassMark)
	} else {
		ver, err := cfg.OptimumVersion()
		if err != nil {
			res.fail(fmt.Sprintf("optimum-cli: %v", err))
			fmt.Fprintf(w, "%s optimum-cli: not found (%v)\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s optimum-cli: %s\n", PassMark, ver)
		}

		runCheck(&res, w, "export packages", cfg.ExportModules)
	}

	// ---- quantizer --------------------------------------------------------
	runCheck(&res, w, "quantization packages", cfg.QuantizeModules)

	// ---- ONNX Runtime -----------------------------------------------------
	if cfg.SkipORT {
		fmt.Fprintf(w, "%s onnx runtime library: skipped\n", PassMark)
	} else {
		info, err := cfg.ORTRuntime()
		if err != nil {
			res.fail(fmt.Sprintf("onnx runtime library: %v", err))
			fmt.Fprintf(w, "%s onnx runtime library: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s onnx runtime library: %s\n", PassMark, info)
		}
	}

	return res
}

func runCheck(res *Result, w io.Writer, name string, check CheckFunc) {
	if err := check(); err != nil {
		res.fail(fmt.Sprintf("%s: %v", name, err))
		fmt.Fprintf(w, "%s %s: %v\n", FailMark, name, err)
		return
	}
	fmt.Fprintf(w, "%s %s: ok\n", PassMark, name)
}

// checkPythonVersion returns an error if ver is outside [3.10, 3.15).
// ver is expected to be a string like "3.11.4".
func checkPythonVersion(ver string) error {
	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}
	if major != 3 {
		return fmt.Errorf("requires Python 3, got %d", major)
	}
	if minor < 10 {
		return fmt.Errorf("requires Python >=3.10, got 3.%d", minor)
	}
	if minor >= 15 {
		return fmt.Errorf("requires Python <3.15, got 3.%d", minor)
	}
	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	parts := strings.SplitN(ver, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}
	return major, minor, nil
}
