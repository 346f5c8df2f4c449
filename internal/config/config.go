package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultModelName  = "Qwen/Qwen3-TTS-12Hz-0.6B-Base"
	DefaultExportTask = "text-to-audio"
	DefaultOptimumCLI = "optimum-cli"
	DefaultWeightType = "QInt8"
)

type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Export   ExportConfig   `mapstructure:"export"`
	Quantize QuantizeConfig `mapstructure:"quantize"`
	Runtime  RuntimeConfig  `mapstructure:"runtime"`
}

type PathsConfig struct {
	// ProjectRoot is detected from the working directory when empty.
	ProjectRoot string `mapstructure:"project_root"`
	// OutputDir defaults to assets/tts/qwen3 under the project root when empty.
	OutputDir string `mapstructure:"output_dir"`
}

type ExportConfig struct {
	ModelName string `mapstructure:"model_name"`
	Task      string `mapstructure:"task"`
	CLIPath   string `mapstructure:"cli_path"`
}

type QuantizeConfig struct {
	PythonBin   string `mapstructure:"python_bin"`
	WeightType  string `mapstructure:"weight_type"`
	PerChannel  bool   `mapstructure:"per_channel"`
	ReduceRange bool   `mapstructure:"reduce_range"`
}

type RuntimeConfig struct {
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTAPIVersion  int    `mapstructure:"ort_api_version"`
	ORTVersion     string `mapstructure:"ort_version"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// flagKeys maps config keys to the flag names that override them.
var flagKeys = map[string]string{
	"log_level":                "log-level",
	"paths.project_root":       "project-root",
	"paths.output_dir":         "output-dir",
	"export.model_name":        "model-name",
	"export.task":              "export-task",
	"export.cli_path":          "optimum-cli",
	"quantize.python_bin":      "python-bin",
	"quantize.weight_type":     "weight-type",
	"quantize.per_channel":     "per-channel",
	"quantize.reduce_range":    "reduce-range",
	"runtime.ort_library_path": "ort-lib",
	"runtime.ort_api_version":  "ort-api-version",
	"runtime.ort_version":      "ort-version",
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Paths: PathsConfig{
			ProjectRoot: "",
			OutputDir:   "",
		},
		Export: ExportConfig{
			ModelName: DefaultModelName,
			Task:      DefaultExportTask,
			CLIPath:   DefaultOptimumCLI,
		},
		Quantize: QuantizeConfig{
			PythonBin:  "",
			WeightType: DefaultWeightType,
		},
		Runtime: RuntimeConfig{
			ORTLibraryPath: "",
			ORTAPIVersion:  23,
		},
	}
}

// RegisterFlags registers the flags shared by every command.
func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
	fs.String("project-root", defaults.Paths.ProjectRoot, "Project root (default: nearest parent with go.mod or .git)")
	fs.String("python-bin", defaults.Quantize.PythonBin, "Python interpreter (auto-detected from optimum-cli by default)")
	fs.String("optimum-cli", defaults.Export.CLIPath, "Path to the optimum-cli executable")
	fs.String("export-task", defaults.Export.Task, "Task passed to optimum-cli export onnx")
	fs.String("weight-type", defaults.Quantize.WeightType, "Quantized weight type (QInt8|QUInt8)")
	fs.Bool("per-channel", defaults.Quantize.PerChannel, "Quantize weights per channel")
	fs.Bool("reduce-range", defaults.Quantize.ReduceRange, "Quantize weights with 7 bits")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (verification only)")
	fs.Int("ort-api-version", defaults.Runtime.ORTAPIVersion, "ONNX Runtime C API version expected by the purego binding")
	fs.String("ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
}

// RegisterPipelineFlags registers the flags that only the export/quantize run accepts.
func RegisterPipelineFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("model-name", defaults.Export.ModelName, "HuggingFace model name or local path")
	fs.String("output-dir", defaults.Paths.OutputDir, "Output directory (default: assets/tts/qwen3 under the project root)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("QWEN3Q")
	replacer := strings.NewReplacer("-", "_", ".", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "QWEN3Q_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("qwen3quant")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("paths.project_root", c.Paths.ProjectRoot)
	v.SetDefault("paths.output_dir", c.Paths.OutputDir)
	v.SetDefault("export.model_name", c.Export.ModelName)
	v.SetDefault("export.task", c.Export.Task)
	v.SetDefault("export.cli_path", c.Export.CLIPath)
	v.SetDefault("quantize.python_bin", c.Quantize.PythonBin)
	v.SetDefault("quantize.weight_type", c.Quantize.WeightType)
	v.SetDefault("quantize.per_channel", c.Quantize.PerChannel)
	v.SetDefault("quantize.reduce_range", c.Quantize.ReduceRange)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_api_version", c.Runtime.ORTAPIVersion)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
}

// bindFlags binds each known flag present in fs to its nested key. Flags
// that a command does not register are skipped.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for key, name := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}

	return nil
}

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}
