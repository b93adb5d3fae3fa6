// Package config loads ortfuzz settings from defaults, an optional config
// file, ORTFUZZ_* environment variables and command line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/amikos-tech/onnx-fuzz/ort"
)

// Model sources accepted by ModelConfig.Source.
const (
	SourcePath  = "path"
	SourceGraph = "graph"
	SourceBytes = "bytes"
)

// ShapeFlag is the repeatable shape override flag. It is read directly from
// the flag set because viper splits list values on commas.
const ShapeFlag = "shape"

type Config struct {
	Model   ModelConfig   `mapstructure:"model"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Fuzz    FuzzConfig    `mapstructure:"fuzz"`
	Log     LogConfig     `mapstructure:"log"`
}

type ModelConfig struct {
	Path string `mapstructure:"path"`
	// Source selects how the model reaches the engine: the engine opens the
	// path, the file is handed over as an in-memory ONNX graph, or as raw
	// ORT-format bytes.
	Source string `mapstructure:"source"`
}

type RuntimeConfig struct {
	ORTLibraryPath  string `mapstructure:"ort_library_path"`
	ORTVersion      string `mapstructure:"ort_version"`
	CacheDir        string `mapstructure:"cache_dir"`
	DisableDownload bool   `mapstructure:"disable_download"`
	Threads         int    `mapstructure:"threads"`
	InterOpThreads  int    `mapstructure:"inter_op_threads"`
	Telemetry       bool   `mapstructure:"telemetry"`
}

type FuzzConfig struct {
	Seed          int64         `mapstructure:"seed"`
	Runs          int           `mapstructure:"runs"`
	Timeout       time.Duration `mapstructure:"timeout"`
	FreeDimension int64         `mapstructure:"free_dimension"`
	// Shapes holds "name=d0,d1,..." overrides.
	Shapes []string `mapstructure:"shapes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Model: ModelConfig{
			Source: SourcePath,
		},
		Runtime: RuntimeConfig{
			Threads:        1,
			InterOpThreads: 1,
			Telemetry:      false,
		},
		Fuzz: FuzzConfig{
			Seed:          42,
			Runs:          1,
			Timeout:       0,
			FreeDimension: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"model":                "model.path",
	"source":               "model.source",
	"ort-lib":              "runtime.ort_library_path",
	"ort-version":          "runtime.ort_version",
	"ort-cache-dir":        "runtime.cache_dir",
	"ort-disable-download": "runtime.disable_download",
	"threads":              "runtime.threads",
	"inter-op-threads":     "runtime.inter_op_threads",
	"telemetry":            "runtime.telemetry",
	"seed":                 "fuzz.seed",
	"runs":                 "fuzz.runs",
	"timeout":              "fuzz.timeout",
	"free-dim":             "fuzz.free_dimension",
	"log-level":            "log.level",
	"log-format":           "log.format",
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("model", defaults.Model.Path, "Path to the model to fuzz")
	fs.String("source", defaults.Model.Source, "How the model is handed to the engine: path, graph or bytes")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to the ONNX Runtime shared library (downloaded when empty)")
	fs.String("ort-version", defaults.Runtime.ORTVersion, "ONNX Runtime version to download")
	fs.String("ort-cache-dir", defaults.Runtime.CacheDir, "Cache directory for downloaded ONNX Runtime libraries")
	fs.Bool("ort-disable-download", defaults.Runtime.DisableDownload, "Fail instead of downloading ONNX Runtime")
	fs.Int("threads", defaults.Runtime.Threads, "ONNX Runtime intra-op thread count")
	fs.Int("inter-op-threads", defaults.Runtime.InterOpThreads, "ONNX Runtime inter-op thread count")
	fs.Bool("telemetry", defaults.Runtime.Telemetry, "Enable ONNX Runtime telemetry events")
	fs.Int64("seed", defaults.Fuzz.Seed, "Seed of the first generated input")
	fs.Int("runs", defaults.Fuzz.Runs, "Number of fuzz iterations")
	fs.Duration("timeout", defaults.Fuzz.Timeout, "Abort the process when one inference runs longer (0 disables)")
	fs.Int64("free-dim", defaults.Fuzz.FreeDimension, "Value substituted for symbolic dimensions")
	fs.StringArray(ShapeFlag, nil, "Input shape override name=d0,d1,... (repeatable)")
	fs.String("log-level", defaults.Log.Level, "Log level: debug, info, warn or error")
	fs.String("log-format", defaults.Log.Format, "Log format: text or json")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	var fs *pflag.FlagSet
	if opts.Cmd != nil {
		fs = opts.Cmd.Flags()
		if err := bindFlags(v, fs); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("ORTFUZZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	if err := v.BindEnv("runtime.ort_library_path", "ORTFUZZ_ORT_LIB", ort.EnvLibraryPath); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("ortfuzz")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if fs != nil {
		if flag := fs.Lookup(ShapeFlag); flag != nil && flag.Changed {
			shapes, err := fs.GetStringArray(ShapeFlag)
			if err != nil {
				return Config{}, fmt.Errorf("read --%s: %w", ShapeFlag, err)
			}
			cfg.Fuzz.Shapes = append(cfg.Fuzz.Shapes, shapes...)
		}
	}

	return cfg, nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	names := make([]string, 0, len(flagKeys))
	for name := range flagKeys {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(flagKeys[name], flag); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("model.path", c.Model.Path)
	v.SetDefault("model.source", c.Model.Source)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("runtime.cache_dir", c.Runtime.CacheDir)
	v.SetDefault("runtime.disable_download", c.Runtime.DisableDownload)
	v.SetDefault("runtime.threads", c.Runtime.Threads)
	v.SetDefault("runtime.inter_op_threads", c.Runtime.InterOpThreads)
	v.SetDefault("runtime.telemetry", c.Runtime.Telemetry)
	v.SetDefault("fuzz.seed", c.Fuzz.Seed)
	v.SetDefault("fuzz.runs", c.Fuzz.Runs)
	v.SetDefault("fuzz.timeout", c.Fuzz.Timeout)
	v.SetDefault("fuzz.free_dimension", c.Fuzz.FreeDimension)
	v.SetDefault("fuzz.shapes", c.Fuzz.Shapes)
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.format", c.Log.Format)
}

// Validate checks values that flags and files cannot constrain by type.
func (c Config) Validate() error {
	switch c.Model.Source {
	case SourcePath, SourceGraph, SourceBytes:
	default:
		return fmt.Errorf("unknown model source %q (want %s, %s or %s)", c.Model.Source, SourcePath, SourceGraph, SourceBytes)
	}
	if c.Runtime.Threads < 0 || c.Runtime.InterOpThreads < 0 {
		return fmt.Errorf("thread counts must be >= 0")
	}
	if c.Fuzz.Runs < 1 {
		return fmt.Errorf("runs must be >= 1, got %d", c.Fuzz.Runs)
	}
	if c.Fuzz.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %s", c.Fuzz.Timeout)
	}
	if c.Fuzz.FreeDimension < 1 {
		return fmt.Errorf("free dimension must be >= 1, got %d", c.Fuzz.FreeDimension)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.Log.Format)
	}
	_, err := c.ShapeOverrides()
	return err
}

// ShapeOverrides parses Fuzz.Shapes. Later entries for the same input win.
func (c Config) ShapeOverrides() (map[string]ort.Shape, error) {
	overrides := make(map[string]ort.Shape, len(c.Fuzz.Shapes))
	for _, raw := range c.Fuzz.Shapes {
		name, shape, err := ort.ParseNamedShape(raw)
		if err != nil {
			return nil, err
		}
		overrides[name] = shape
	}
	return overrides, nil
}

// ParseLogLevel maps a level name to its slog.Level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
