// Package python locates the Python interpreter behind the export tooling and
// probes it for the modules the export and quantization steps import.
package python

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// DefaultInterpreter is used when no launcher shebang points elsewhere.
const DefaultInterpreter = "python3"

// DetectInterpreter returns the interpreter named in the shebang of launcher
// (for example optimum-cli inside a virtualenv). It falls back to
// DefaultInterpreter when launcher is not on PATH or has no usable shebang.
func DetectInterpreter(launcher string) string {
	if launcher == "" {
		return DefaultInterpreter
	}
	launcherPath, err := exec.LookPath(launcher)
	if err != nil {
		return DefaultInterpreter
	}
	fh, err := os.Open(launcherPath)
	if err != nil {
		return DefaultInterpreter
	}
	defer fh.Close()

	s := bufio.NewScanner(fh)
	if !s.Scan() {
		return DefaultInterpreter
	}
	line := strings.TrimSpace(s.Text())
	if !strings.HasPrefix(line, "#!") {
		return DefaultInterpreter
	}
	fields := strings.Fields(strings.TrimPrefix(line, "#!"))
	if len(fields) == 0 {
		return DefaultInterpreter
	}
	interpreter := fields[0]
	// "#!/usr/bin/env python3" style shebangs name the interpreter second.
	if strings.HasSuffix(interpreter, "/env") && len(fields) > 1 {
		return fields[1]
	}
	if _, err := os.Stat(interpreter); err != nil {
		return DefaultInterpreter
	}
	return interpreter
}

// CheckModules runs `bin -c "import <modules>"` and reports the interpreter's
// last stderr line when the import fails.
func CheckModules(ctx context.Context, bin string, modules ...string) error {
	if len(modules) == 0 {
		return errors.New("no modules to check")
	}
	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("python interpreter %q not found: %w", bin, err)
	}

	var stderr bytes.Buffer
	check := exec.CommandContext(ctx, bin, "-c", "import "+strings.Join(modules, ", "))
	check.Stderr = &stderr
	if err := check.Run(); err != nil {
		if msg := lastLine(stderr.String()); msg != "" {
			return fmt.Errorf("import %s: %s: %w", strings.Join(modules, ", "), msg, err)
		}
		return fmt.Errorf("import %s: %w", strings.Join(modules, ", "), err)
	}
	return nil
}

// Version runs `bin --version` and returns the bare version, e.g. "3.11.4".
func Version(ctx context.Context, bin string) (string, error) {
	out, err := exec.CommandContext(ctx, bin, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s --version failed: %w", bin, err)
	}
	raw := strings.TrimSpace(string(out))
	raw = strings.TrimPrefix(raw, "Python ")
	if raw == "" {
		return "", fmt.Errorf("%s --version printed nothing", bin)
	}
	return raw, nil
}

// DependencyError reports a missing external tool or Python package together
// with the command that installs it.
type DependencyError struct {
	Component string
	Install   string
	Err       error
}

func (e *DependencyError) Error() string {
	msg := fmt.Sprintf("required packages not installed for %s", e.Component)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Install != "" {
		msg += "\n  " + e.Install
	}
	return msg
}

func (e *DependencyError) Unwrap() error { return e.Err }

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
