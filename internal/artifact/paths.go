package artifact

import (
	"fmt"
	"os"
	"path/filepath"
)

// File names written into the output directory.
const (
	FP32Name = "qwen3_fp32.onnx"
	INT8Name = "qwen3_int8.onnx"
)

// ONNXExt is the extension the exported artifact is discovered by.
const ONNXExt = ".onnx"

var defaultOutputSubdir = filepath.Join("assets", "tts", "qwen3")

// rootMarkers identify a project root when walking up from the working directory.
var rootMarkers = []string{"go.mod", ".git"}

// ResolveProjectRoot returns explicit when set. Otherwise it walks up from
// start to the first directory holding a root marker, and returns start
// itself when none is found.
func ResolveProjectRoot(explicit, start string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}

	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		start = cwd
	}

	start, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", start, err)
	}

	for dir := start; ; {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start, nil
		}
		dir = parent
	}
}

// DefaultOutputDir is assets/tts/qwen3 under root.
func DefaultOutputDir(root string) string {
	return filepath.Join(root, defaultOutputSubdir)
}

// FP32Path is the exported artifact path assumed when export is skipped.
func FP32Path(dir string) string { return filepath.Join(dir, FP32Name) }

// INT8Path is the quantized artifact path.
func INT8Path(dir string) string { return filepath.Join(dir, INT8Name) }

// NotFoundError is returned when a supplied or expected artifact is missing.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("ONNX model not found at %s", e.Path)
}
