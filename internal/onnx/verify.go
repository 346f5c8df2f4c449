// Package onnx loads produced artifacts in ONNX Runtime to confirm they are
// usable graphs.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

const DefaultAPIVersion = 23

type VerifyOptions struct {
	LibraryPath string
	APIVersion  uint32
	Stdout      io.Writer
	Stderr      io.Writer
}

// Verifier smoke-loads ONNX artifacts.
type Verifier struct {
	opts VerifyOptions
}

var runNativeVerify = runNativeVerifyImpl

func NewVerifier(opts VerifyOptions) *Verifier {
	if opts.APIVersion == 0 {
		opts.APIVersion = DefaultAPIVersion
	}

	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	return &Verifier{opts: opts}
}

// Verify creates one session per path and reports PASS/FAIL for each.
func (v *Verifier) Verify(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return errors.New("no artifacts to verify")
	}

	return runNativeVerify(ctx, paths, v.opts)
}

func runNativeVerifyImpl(_ context.Context, paths []string, opts VerifyOptions) error {
	runtime, err := ort.NewRuntime(opts.LibraryPath, opts.APIVersion)
	if err != nil {
		return fmt.Errorf("initialize ONNX Runtime (lib=%q api=%d): %w", opts.LibraryPath, opts.APIVersion, err)
	}

	defer func() { _ = runtime.Close() }()

	env, err := runtime.NewEnv("qwen3quant-verify", ort.LoggingLevelWarning)
	if err != nil {
		return fmt.Errorf("create ONNX Runtime env: %w", err)
	}
	defer env.Close()

	var failures []string

	for _, path := range paths {
		s, err := runtime.NewSession(env, path, nil)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "FAIL %s: %v\n", path, err)
			failures = append(failures, path)

			continue
		}

		s.Close()
		_, _ = fmt.Fprintf(opts.Stdout, "PASS %s\n", path)
	}

	if len(failures) > 0 {
		return fmt.Errorf("verify failed for %d artifact(s): %s", len(failures), strings.Join(failures, ", "))
	}

	return nil
}
