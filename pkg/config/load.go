package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/classmux/classmux/internal/bytesize"
)

// Load reads the configuration file (or the default location when
// configPath is empty), layers CLASSMUX_* environment variables on top,
// fills in defaults, and validates the result. A missing file is not an
// error; the built-in defaults are returned instead.
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return GetDefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load with a friendlier failure mode for CLI commands: a
// missing file produces instructions for creating one instead of a bare
// not-found error.
func MustLoad(configPath string) (*Config, error) {
	switch {
	case configPath == "" && !DefaultConfigExists():
		return nil, fmt.Errorf(
			"no configuration file found at default location: %s\n\n"+
				"Initialize one first:\n"+
				"  classmux init\n\n"+
				"Or point at an existing file:\n"+
				"  classmux <command> --config /path/to/config.yaml",
			GetDefaultConfigPath())

	case configPath == "":
		configPath = GetDefaultConfigPath()

	default:
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf(
				"configuration file not found: %s\n\n"+
					"Create it with:\n"+
					"  classmux init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

// newViper builds a viper instance bound to the CLASSMUX_* environment
// and pointed at the requested (or default) configuration file.
func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CLASSMUX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(configDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	return v
}

// decodeHooks converts the custom field types during unmarshal: byte
// sizes from "10Mi"-style strings or plain numbers, and durations from
// "30s"-style strings. Numeric durations decode natively.
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		byteSizeHook,
	)
}

var byteSizeType = reflect.TypeOf(bytesize.ByteSize(0))

// byteSizeHook parses ByteSize fields from strings and accepts every
// numeric shape the YAML and TOML decoders may deliver.
func byteSizeHook(_, to reflect.Type, data any) (any, error) {
	if to != byteSizeType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return bytesize.ParseByteSize(v)
	case int:
		return bytesize.ByteSize(v), nil
	case int64:
		return bytesize.ByteSize(v), nil
	case uint64:
		return bytesize.ByteSize(v), nil
	case float64:
		return bytesize.ByteSize(v), nil
	default:
		return data, nil
	}
}

// configDir is where classmux keeps its configuration, following the
// platform convention reported by os.UserConfigDir.
func configDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "classmux")
}

// GetDefaultConfigPath returns where the configuration file lives when
// no --config flag is given.
func GetDefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultConfigExists reports whether a configuration file exists at
// the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
