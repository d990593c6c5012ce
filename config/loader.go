package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/miosa/osa-scroller/scroller"
	"github.com/miosa/osa-scroller/window"
)

// configName is the config file name without extension.
const configName = ".osa-scroller"

// configType is the format assumed for a searched config file.
const configType = "yaml"

// envPrefix is the environment variable prefix.
const envPrefix = "OSA_SCROLLER"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Defaults. Sizes are in terminal rows.
const (
	DefaultBuffer      = 10
	DefaultMinItemSize = 1
	DefaultSortDelay   = "300ms"
	DefaultTheme       = "dark"
	DefaultWheelStep   = 3
	DefaultSourceCount = 10000
	DefaultLogLevel    = "info"
	DefaultLogMaxSize  = "10MB"
	defaultLogDir      = ".osa"
	defaultLogFileName = "scroller.log"
)

// Load loads configuration from file, env vars and defaults. If path is
// non-empty it is the explicit config file; its extension selects YAML or
// TOML. Otherwise .osa-scroller.yaml is searched in CWD and $HOME. A
// missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigType(configType)
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration Load yields with no file and no
// environment.
func Default() *Config {
	v := viper.New()
	applyDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("scroller.key_field", scroller.DefaultKeyField)
	v.SetDefault("scroller.size_field", scroller.DefaultSizeField)
	v.SetDefault("scroller.type_field", scroller.DefaultTypeField)
	v.SetDefault("scroller.buffer", DefaultBuffer)
	v.SetDefault("scroller.items_limit", window.DefaultItemsLimit)
	v.SetDefault("scroller.item_size", 0)
	v.SetDefault("scroller.min_item_size", DefaultMinItemSize)
	v.SetDefault("scroller.grid_items", 0)
	v.SetDefault("scroller.item_secondary_size", 0)
	v.SetDefault("scroller.num_items_above", 0)
	v.SetDefault("scroller.num_items_below", 0)
	v.SetDefault("scroller.empty_item_size", 0)
	v.SetDefault("scroller.page_mode", false)
	v.SetDefault("scroller.prerender", 0)
	v.SetDefault("scroller.sort_delay", DefaultSortDelay)
	v.SetDefault("scroller.max_end_polls", scroller.DefaultMaxEndPolls)
	v.SetDefault("scroller.direction", string(scroller.Vertical))

	v.SetDefault("ui.theme", DefaultTheme)
	v.SetDefault("ui.scrollbar", true)
	v.SetDefault("ui.wheel_step", DefaultWheelStep)
	v.SetDefault("ui.poll_interval", "")

	v.SetDefault("source.kind", SourceSynthetic)
	v.SetDefault("source.count", DefaultSourceCount)
	v.SetDefault("source.path", ".")

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", defaultLogFile())
	v.SetDefault("log.max_size", DefaultLogMaxSize)

	v.SetDefault("metrics.addr", "")
}

func defaultLogFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultLogFileName
	}
	return filepath.Join(home, defaultLogDir, defaultLogFileName)
}
