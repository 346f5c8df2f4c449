package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

// newFlagSet creates a FlagSet with shared and pipeline flags registered at their defaults.
func newFlagSet(defaults Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)
	RegisterPipelineFlags(fs, defaults)

	return fs
}

// --- DefaultConfig ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "info")
	}

	if cfg.Export.ModelName != "Qwen/Qwen3-TTS-12Hz-0.6B-Base" {
		t.Errorf("Export.ModelName = %q; want %q", cfg.Export.ModelName, "Qwen/Qwen3-TTS-12Hz-0.6B-Base")
	}

	if cfg.Export.Task != "text-to-audio" {
		t.Errorf("Export.Task = %q; want %q", cfg.Export.Task, "text-to-audio")
	}

	if cfg.Export.CLIPath != "optimum-cli" {
		t.Errorf("Export.CLIPath = %q; want %q", cfg.Export.CLIPath, "optimum-cli")
	}

	if cfg.Quantize.WeightType != "QInt8" {
		t.Errorf("Quantize.WeightType = %q; want %q", cfg.Quantize.WeightType, "QInt8")
	}

	if cfg.Paths.OutputDir != "" {
		t.Errorf("Paths.OutputDir = %q; want empty (derived from project root)", cfg.Paths.OutputDir)
	}

	if cfg.Runtime.ORTAPIVersion != 23 {
		t.Errorf("Runtime.ORTAPIVersion = %d; want 23", cfg.Runtime.ORTAPIVersion)
	}
}

// --- RegisterFlags ---

func TestRegisterFlags(t *testing.T) {
	fs := newFlagSet(DefaultConfig())

	checks := []struct {
		flag string
		want string
	}{
		{"log-level", "info"},
		{"model-name", "Qwen/Qwen3-TTS-12Hz-0.6B-Base"},
		{"output-dir", ""},
		{"optimum-cli", "optimum-cli"},
		{"export-task", "text-to-audio"},
		{"weight-type", "QInt8"},
		{"per-channel", "false"},
		{"reduce-range", "false"},
		{"python-bin", ""},
		{"ort-api-version", "23"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}

		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}
}

func TestRegisterFlags_PipelineFlagsAreSeparate(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, DefaultConfig())

	for _, name := range []string{"model-name", "output-dir"} {
		if fs.Lookup(name) != nil {
			t.Errorf("flag %q registered by RegisterFlags; want only RegisterPipelineFlags", name)
		}
	}
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ORT_LIBRARY_PATH", "")
	t.Setenv("QWEN3Q_ORT_LIB", "")

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      &fakeBinder{fs: newFlagSet(defaults)},
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if diff := cmp.Diff(defaults, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	defaults := DefaultConfig()
	fs := newFlagSet(defaults)

	err := fs.Parse([]string{
		"--model-name=/models/qwen3",
		"--output-dir=/tmp/out",
		"--weight-type=QUInt8",
		"--per-channel",
		"--log-level=debug",
		"--ort-api-version=22",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := Load(LoadOptions{
		Cmd:      &fakeBinder{fs: fs},
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Export.ModelName != "/models/qwen3" {
		t.Errorf("Export.ModelName = %q; want %q", cfg.Export.ModelName, "/models/qwen3")
	}

	if cfg.Paths.OutputDir != "/tmp/out" {
		t.Errorf("Paths.OutputDir = %q; want %q", cfg.Paths.OutputDir, "/tmp/out")
	}

	if cfg.Quantize.WeightType != "QUInt8" {
		t.Errorf("Quantize.WeightType = %q; want %q", cfg.Quantize.WeightType, "QUInt8")
	}

	if !cfg.Quantize.PerChannel {
		t.Error("Quantize.PerChannel = false; want true")
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}

	if cfg.Runtime.ORTAPIVersion != 22 {
		t.Errorf("Runtime.ORTAPIVersion = %d; want 22", cfg.Runtime.ORTAPIVersion)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("QWEN3Q_LOG_LEVEL", "warn")
	t.Setenv("QWEN3Q_PATHS_OUTPUT_DIR", "/env/out")
	t.Setenv("QWEN3Q_EXPORT_MODEL_NAME", "org/other-model")

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}

	if cfg.Paths.OutputDir != "/env/out" {
		t.Errorf("Paths.OutputDir = %q; want %q", cfg.Paths.OutputDir, "/env/out")
	}

	if cfg.Export.ModelName != "org/other-model" {
		t.Errorf("Export.ModelName = %q; want %q", cfg.Export.ModelName, "org/other-model")
	}
}

func TestLoad_ORTLibraryEnvAliases(t *testing.T) {
	t.Setenv("ORT_LIBRARY_PATH", "/opt/ort/libonnxruntime.so")

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Runtime.ORTLibraryPath != "/opt/ort/libonnxruntime.so" {
		t.Errorf("Runtime.ORTLibraryPath = %q; want %q", cfg.Runtime.ORTLibraryPath, "/opt/ort/libonnxruntime.so")
	}
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	t.Setenv("QWEN3Q_EXPORT_MODEL_NAME", "org/env-model")

	defaults := DefaultConfig()
	fs := newFlagSet(defaults)
	if err := fs.Parse([]string{"--model-name=org/flag-model"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := Load(LoadOptions{Cmd: &fakeBinder{fs: fs}, Defaults: defaults})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Export.ModelName != "org/flag-model" {
		t.Errorf("Export.ModelName = %q; want %q", cfg.Export.ModelName, "org/flag-model")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	t.Setenv("ORT_LIBRARY_PATH", "")
	t.Setenv("QWEN3Q_ORT_LIB", "")

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "qwen3quant.yaml")

	content := `
log_level: error
paths:
  output_dir: /cfg/out
export:
  model_name: org/from-file
quantize:
  weight_type: QUInt8
  reduce_range: true
`

	err := os.WriteFile(cfgFile, []byte(content), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:        &fakeBinder{fs: newFlagSet(defaults)},
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := defaults
	want.LogLevel = "error"
	want.Paths.OutputDir = "/cfg/out"
	want.Export.ModelName = "org/from-file"
	want.Quantize.WeightType = "QUInt8"
	want.Quantize.ReduceRange = true

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "bad.yaml")
	// Write invalid YAML
	err := os.WriteFile(cfgFile, []byte(":\t:bad yaml:::"), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = Load(LoadOptions{
		ConfigFile: cfgFile,
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: "/nonexistent/path/qwen3quant.yaml",
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}

func TestLoad_NilCmd(t *testing.T) {
	cfg, err := Load(LoadOptions{
		Cmd:      nil,
		Defaults: DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Export.Task != DefaultExportTask {
		t.Errorf("Export.Task = %q; want %q", cfg.Export.Task, DefaultExportTask)
	}
}

// --- ParseLogLevel ---

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLogLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) err = %v; wantErr=%v", tt.input, err, tt.wantErr)
			}

			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v; want %v", tt.input, got, tt.want)
			}
		})
	}
}
