// Package config loads the scroller and UI settings.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/miosa/osa-scroller/scroller"
	"github.com/miosa/osa-scroller/style"
)

// Config is the top-level configuration. Field tags use mapstructure for
// viper unmarshalling and yaml/toml for Encode.
type Config struct {
	Scroller ScrollerConfig `mapstructure:"scroller" yaml:"scroller" toml:"scroller"`
	UI       UIConfig       `mapstructure:"ui" yaml:"ui" toml:"ui"`
	Source   SourceConfig   `mapstructure:"source" yaml:"source" toml:"source"`
	Log      LogConfig      `mapstructure:"log" yaml:"log" toml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics" toml:"metrics"`
}

// ScrollerConfig mirrors scroller.Options.
type ScrollerConfig struct {
	KeyField          string  `mapstructure:"key_field" yaml:"key_field" toml:"key_field"`
	SizeField         string  `mapstructure:"size_field" yaml:"size_field" toml:"size_field"`
	TypeField         string  `mapstructure:"type_field" yaml:"type_field" toml:"type_field"`
	Buffer            float64 `mapstructure:"buffer" yaml:"buffer" toml:"buffer"`
	ItemsLimit        int     `mapstructure:"items_limit" yaml:"items_limit" toml:"items_limit"`
	ItemSize          float64 `mapstructure:"item_size" yaml:"item_size" toml:"item_size"`
	MinItemSize       float64 `mapstructure:"min_item_size" yaml:"min_item_size" toml:"min_item_size"`
	GridItems         int     `mapstructure:"grid_items" yaml:"grid_items" toml:"grid_items"`
	ItemSecondarySize float64 `mapstructure:"item_secondary_size" yaml:"item_secondary_size" toml:"item_secondary_size"`
	NumItemsAbove     int     `mapstructure:"num_items_above" yaml:"num_items_above" toml:"num_items_above"`
	NumItemsBelow     int     `mapstructure:"num_items_below" yaml:"num_items_below" toml:"num_items_below"`
	EmptyItemSize     float64 `mapstructure:"empty_item_size" yaml:"empty_item_size" toml:"empty_item_size"`
	PageMode          bool    `mapstructure:"page_mode" yaml:"page_mode" toml:"page_mode"`
	Prerender         int     `mapstructure:"prerender" yaml:"prerender" toml:"prerender"`
	SortDelay         string  `mapstructure:"sort_delay" yaml:"sort_delay" toml:"sort_delay"`
	MaxEndPolls       int     `mapstructure:"max_end_polls" yaml:"max_end_polls" toml:"max_end_polls"`
	Direction         string  `mapstructure:"direction" yaml:"direction" toml:"direction"`
}

// UIConfig holds the interactive list settings.
type UIConfig struct {
	Theme        string `mapstructure:"theme" yaml:"theme" toml:"theme"`
	Scrollbar    bool   `mapstructure:"scrollbar" yaml:"scrollbar" toml:"scrollbar"`
	WheelStep    int    `mapstructure:"wheel_step" yaml:"wheel_step" toml:"wheel_step"`
	PollInterval string `mapstructure:"poll_interval" yaml:"poll_interval" toml:"poll_interval"`
}

// SourceConfig selects the items to scroll through.
type SourceConfig struct {
	Kind  string `mapstructure:"kind" yaml:"kind" toml:"kind"`
	Count int    `mapstructure:"count" yaml:"count" toml:"count"`
	Path  string `mapstructure:"path" yaml:"path" toml:"path"`
}

// LogConfig configures the log file.
type LogConfig struct {
	Level   string `mapstructure:"level" yaml:"level" toml:"level"`
	JSON    bool   `mapstructure:"json" yaml:"json" toml:"json"`
	File    string `mapstructure:"file" yaml:"file" toml:"file"`
	MaxSize string `mapstructure:"max_size" yaml:"max_size" toml:"max_size"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" toml:"addr"`
}

// Source kinds.
const (
	SourceSynthetic = "synthetic"
	SourceMarkdown  = "markdown"
	SourceGit       = "git"
	SourceProcesses = "processes"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid config")

// Sentinel errors for configuration validation.
var (
	ErrInvalidBuffer      = fmt.Errorf("%w: scroller.buffer must be non-negative", ErrInvalidConfig)
	ErrInvalidItemsLimit  = fmt.Errorf("%w: scroller.items_limit must be positive", ErrInvalidConfig)
	ErrInvalidItemSize    = fmt.Errorf("%w: scroller.item_size or scroller.min_item_size must be positive", ErrInvalidConfig)
	ErrInvalidGrid        = fmt.Errorf("%w: scroller.grid_items needs scroller.item_size", ErrInvalidConfig)
	ErrInvalidPadding     = fmt.Errorf("%w: scroller.num_items_above/below must be non-negative", ErrInvalidConfig)
	ErrInvalidSortDelay   = fmt.Errorf("%w: scroller.sort_delay must be a non-negative duration", ErrInvalidConfig)
	ErrInvalidDirection   = fmt.Errorf("%w: scroller.direction must be vertical or horizontal", ErrInvalidConfig)
	ErrInvalidTheme       = fmt.Errorf("%w: ui.theme is not a known theme", ErrInvalidConfig)
	ErrInvalidPoll        = fmt.Errorf("%w: ui.poll_interval must be a non-negative duration", ErrInvalidConfig)
	ErrInvalidSource      = fmt.Errorf("%w: source.kind must be synthetic, markdown, git or processes", ErrInvalidConfig)
	ErrInvalidSourceCount = fmt.Errorf("%w: source.count must be positive", ErrInvalidConfig)
	ErrInvalidLogLevel    = fmt.Errorf("%w: log.level must be debug, info, warn or error", ErrInvalidConfig)
	ErrInvalidLogMaxSize  = fmt.Errorf("%w: log.max_size must be a byte size like 10MB", ErrInvalidConfig)
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if err := c.validateScroller(); err != nil {
		return err
	}
	if err := c.validateUI(); err != nil {
		return err
	}
	switch c.Source.Kind {
	case SourceSynthetic, SourceMarkdown, SourceGit, SourceProcesses:
	default:
		return ErrInvalidSource
	}
	if c.Source.Kind == SourceSynthetic && c.Source.Count <= 0 {
		return ErrInvalidSourceCount
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if _, err := c.Log.MaxBytes(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScroller() error {
	s := c.Scroller
	if s.Buffer < 0 {
		return ErrInvalidBuffer
	}
	if s.ItemsLimit <= 0 {
		return ErrInvalidItemsLimit
	}
	if s.ItemSize <= 0 && s.MinItemSize <= 0 {
		return ErrInvalidItemSize
	}
	if s.GridItems > 1 && s.ItemSize <= 0 {
		return ErrInvalidGrid
	}
	if s.NumItemsAbove < 0 || s.NumItemsBelow < 0 {
		return ErrInvalidPadding
	}
	if d, err := parseDuration(s.SortDelay); err != nil || d < 0 {
		return ErrInvalidSortDelay
	}
	switch scroller.Direction(s.Direction) {
	case scroller.Vertical, scroller.Horizontal:
	default:
		return ErrInvalidDirection
	}
	return nil
}

func (c *Config) validateUI() error {
	if _, ok := style.Themes[c.UI.Theme]; !ok {
		return ErrInvalidTheme
	}
	if d, err := parseDuration(c.UI.PollInterval); err != nil || d < 0 {
		return ErrInvalidPoll
	}
	return nil
}

// Options converts the scroller section to scroller options.
func (c *Config) Options() scroller.Options {
	s := c.Scroller
	delay, _ := parseDuration(s.SortDelay)
	return scroller.Options{
		KeyField:          s.KeyField,
		SizeField:         s.SizeField,
		TypeField:         s.TypeField,
		Buffer:            s.Buffer,
		ItemsLimit:        s.ItemsLimit,
		ItemSize:          s.ItemSize,
		MinItemSize:       s.MinItemSize,
		GridItems:         s.GridItems,
		ItemSecondarySize: s.ItemSecondarySize,
		NumItemsAbove:     s.NumItemsAbove,
		NumItemsBelow:     s.NumItemsBelow,
		EmptyItemSize:     s.EmptyItemSize,
		PageMode:          s.PageMode,
		Prerender:         s.Prerender,
		SortDelay:         delay,
		MaxEndPolls:       s.MaxEndPolls,
		Direction:         scroller.Direction(s.Direction),
	}
}

// Poll returns the resize poll interval; zero disables polling.
func (u UIConfig) Poll() time.Duration {
	d, _ := parseDuration(u.PollInterval)
	return d
}

// SlogLevel parses the log level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(l.Level))); err != nil {
		return 0, ErrInvalidLogLevel
	}
	return lvl, nil
}

// MaxBytes parses the log size cap. Zero means no cap.
func (l LogConfig) MaxBytes() (uint64, error) {
	if l.MaxSize == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(l.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidLogMaxSize, err)
	}
	return n, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
