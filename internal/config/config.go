package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig   `mapstructure:"paths"`
	Runtime  RuntimeConfig `mapstructure:"runtime"`
	Server   ServerConfig  `mapstructure:"server"`
	Fetch    FetchConfig   `mapstructure:"fetch"`
	LogLevel string        `mapstructure:"log_level"`
}

type PathsConfig struct {
	ModelPath string `mapstructure:"model_path"`
	CacheDir  string `mapstructure:"cache_dir"`
}

type RuntimeConfig struct {
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTVersion     string `mapstructure:"ort_version"`
	APIVersion     uint32 `mapstructure:"api_version"`
	Threads        int    `mapstructure:"threads"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64  `mapstructure:"max_body_bytes"`
}

type FetchConfig struct {
	SHA256    string `mapstructure:"sha256"`
	HTTPToken string `mapstructure:"http_token"`
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
		Paths: PathsConfig{
			ModelPath: "example_model.onnx",
			CacheDir:  "models/cache",
		},
		Runtime: RuntimeConfig{
			ORTLibraryPath: "",
			ORTVersion:     "",
			APIVersion:     23,
			Threads:        0,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         2,
			RequestTimeout:  60,
			ShutdownTimeout: 30,
			MaxBodyBytes:    64 << 20,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-model-path", defaults.Paths.ModelPath, "Model source: local path, file://, http(s):// or gs:// URI")
	fs.String("paths-cache-dir", defaults.Paths.CacheDir, "Directory for downloaded models")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.String("runtime-ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.Uint32("runtime-api-version", defaults.Runtime.APIVersion, "ONNX Runtime C API version")
	fs.Int("runtime-threads", defaults.Runtime.Threads, "ONNX Runtime intra-op thread count (0 = runtime default)")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-workers", defaults.Server.Workers, "Max concurrent inference requests (0 = unlimited)")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request inference timeout in seconds")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain period in seconds")
	fs.Int64("server-max-body-bytes", defaults.Server.MaxBodyBytes, "Maximum /infer request body size")
	fs.String("fetch-sha256", defaults.Fetch.SHA256, "Expected SHA-256 of a downloaded model")
	fs.String("fetch-http-token", defaults.Fetch.HTTPToken, "Bearer token for http(s) model downloads")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("ORTBIND")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "ORTBIND_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("ortbind")
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
	v.SetDefault("paths.model_path", c.Paths.ModelPath)
	v.SetDefault("paths.cache_dir", c.Paths.CacheDir)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("runtime.api_version", c.Runtime.APIVersion)
	v.SetDefault("runtime.threads", c.Runtime.Threads)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("server.max_body_bytes", c.Server.MaxBodyBytes)
	v.SetDefault("fetch.sha256", c.Fetch.SHA256)
	v.SetDefault("fetch.http_token", c.Fetch.HTTPToken)
	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("paths.model_path", "paths-model-path")
	v.RegisterAlias("paths.cache_dir", "paths-cache-dir")
	v.RegisterAlias("runtime.ort_library_path", "runtime-ort-library-path")
	v.RegisterAlias("runtime.ort_library_path", "ort-lib")
	v.RegisterAlias("runtime.ort_version", "runtime-ort-version")
	v.RegisterAlias("runtime.api_version", "runtime-api-version")
	v.RegisterAlias("runtime.threads", "runtime-threads")
	v.RegisterAlias("server.listen_addr", "server-listen-addr")
	v.RegisterAlias("server.workers", "server-workers")
	v.RegisterAlias("server.request_timeout", "server-request-timeout")
	v.RegisterAlias("server.shutdown_timeout", "server-shutdown-timeout")
	v.RegisterAlias("server.max_body_bytes", "server-max-body-bytes")
	v.RegisterAlias("fetch.sha256", "fetch-sha256")
	v.RegisterAlias("fetch.http_token", "fetch-http-token")
	v.RegisterAlias("log_level", "log-level")
}
