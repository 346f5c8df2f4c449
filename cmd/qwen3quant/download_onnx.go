package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/go-qwen3-quant/internal/artifact"
	"github.com/example/go-qwen3-quant/internal/model"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func newDownloadONNXCmd() *cobra.Command {
	var repo string
	var revision string
	var files []string
	var checksums map[string]string
	var outDir string
	var hfToken string
	var baseURL string

	cmd := &cobra.Command{
		Use:   "download-onnx",
		Short: "Download a pre-exported Qwen3-TTS ONNX model from Hugging Face",
		Long: "Download pre-exported ONNX files, verify their sha256 and record them in\n" +
			"download-manifest.lock.json. Quantize the result with --skip-export --onnx-input.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if outDir == "" {
				outDir, err = resolveOutputDir(cfg)
				if err != nil {
					return err
				}
			}

			token := hfToken
			if token == "" {
				token = os.Getenv("HF_TOKEN")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			paths, err := model.Download(ctx, model.DownloadOptions{
				Repo:     repo,
				Revision: revision,
				Files:    files,
				SHA256:   checksums,
				OutDir:   outDir,
				HFToken:  token,
				BaseURL:  baseURL,
				Progress: isTerminal(cmd.OutOrStdout()),
				Stdout:   cmd.OutOrStdout(),
				Stderr:   cmd.ErrOrStderr(),
			})
			if err != nil {
				var denied *model.AccessDeniedError
				if errors.As(err, &denied) {
					return fmt.Errorf("%w\n  Accept the model terms on huggingface.co, then export HF_TOKEN.", err)
				}
				return fmt.Errorf("download ONNX model failed: %w", err)
			}

			for _, p := range paths {
				if strings.EqualFold(filepath.Ext(p), artifact.ONNXExt) {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "quantize with: qwen3quant --skip-export --onnx-input %s\n", p)
					break
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "hf-repo", model.DefaultONNXRepo, "Hugging Face repo holding the ONNX export")
	cmd.Flags().StringVar(&revision, "revision", "main", "Repo revision (branch, tag or commit)")
	cmd.Flags().StringSliceVar(&files, "file", nil, "File to download, relative to the repo root (repeatable)")
	cmd.Flags().StringToStringVar(&checksums, "sha256", nil, "Expected checksum per file (file=hex)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Destination directory (default: output directory)")
	cmd.Flags().StringVar(&hfToken, "hf-token", "", "Hugging Face token (default: $HF_TOKEN)")
	cmd.Flags().StringVar(&baseURL, "hf-endpoint", model.DefaultBaseURL, "Hugging Face endpoint")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
