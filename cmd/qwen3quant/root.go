package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/example/go-qwen3-quant/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	var flags pipelineFlags

	cmd := &cobra.Command{
		Use:   "qwen3quant",
		Short: "Export Qwen3-TTS to ONNX and quantize it to INT8",
		Long: "Export a Qwen3-TTS checkpoint to ONNX with optimum-cli, then apply INT8 dynamic\n" +
			"quantization with onnxruntime and report the size reduction.\n\n" +
			"Use --skip-export with --onnx-input to quantize an existing ONNX model.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			setupLogger(loaded.LogLevel)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			_, err = runPipeline(cmd.Context(), cfg, flags, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return err
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	config.RegisterPipelineFlags(cmd.Flags(), defaults)
	cmd.Flags().BoolVar(&flags.skipExport, "skip-export", false, "Skip export, quantize an existing ONNX model")
	cmd.Flags().StringVar(&flags.onnxInput, "onnx-input", "", "Path to pre-exported ONNX model (with --skip-export; default <output-dir>/qwen3_fp32.onnx)")
	cmd.Flags().BoolVar(&flags.verify, "verify", false, "Load both artifacts in ONNX Runtime after quantizing")

	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newDownloadONNXCmd())
	cmd.AddCommand(newVerifyCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(levelStr string) {
	lvl, err := config.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func requireConfig() (config.Config, error) {
	if activeCfg.Quantize.WeightType == "" {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return activeCfg, nil
}
