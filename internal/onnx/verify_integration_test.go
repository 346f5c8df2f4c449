//go:build integration

package onnx_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-qwen3-quant/internal/onnx"
	"github.com/example/go-qwen3-quant/internal/testutil"
)

func TestVerifier_LoadsTinyModel(t *testing.T) {
	lib := testutil.RequireONNXRuntime(t)
	model := testutil.WriteTinyModel(t, t.TempDir())

	var stdout bytes.Buffer
	v := onnx.NewVerifier(onnx.VerifyOptions{LibraryPath: lib, Stdout: &stdout})
	if err := v.Verify(context.Background(), []string{model}); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !strings.Contains(stdout.String(), "PASS "+model) {
		t.Errorf("stdout = %q; want PASS line", stdout.String())
	}
}

func TestVerifier_RejectsGarbage(t *testing.T) {
	lib := testutil.RequireONNXRuntime(t)
	bad := filepath.Join(t.TempDir(), "bad.onnx")
	if err := os.WriteFile(bad, []byte("not a model"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stderr bytes.Buffer
	v := onnx.NewVerifier(onnx.VerifyOptions{LibraryPath: lib, Stderr: &stderr})
	if err := v.Verify(context.Background(), []string{bad}); err == nil {
		t.Fatal("expected error for invalid model")
	}
	if !strings.Contains(stderr.String(), "FAIL "+bad) {
		t.Errorf("stderr = %q; want FAIL line", stderr.String())
	}
}
