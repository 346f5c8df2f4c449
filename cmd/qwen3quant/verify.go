package main

import (
	"context"

	"github.com/example/go-qwen3-quant/internal/artifact"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [model.onnx...]",
		Short: "Load ONNX artifacts in ONNX Runtime",
		Long:  "Create an ONNX Runtime session for each model. Without arguments the fp32 and int8\nartifacts in the output directory are checked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			paths := args
			if len(paths) == 0 {
				dir, err := resolveOutputDir(cfg)
				if err != nil {
					return err
				}
				paths = []string{artifact.FP32Path(dir), artifact.INT8Path(dir)}
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			store := artifact.NewStore()
			for _, p := range paths {
				ok, err := store.Exists(ctx, p)
				if err != nil {
					return err
				}
				if !ok {
					return &artifact.NotFoundError{Path: p}
				}
			}

			v, err := newVerifier(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			return v.Verify(ctx, paths)
		},
	}

	cmd.Flags().String("output-dir", "", "Directory holding the default artifacts (default: assets/tts/qwen3 under the project root)")

	return cmd
}
