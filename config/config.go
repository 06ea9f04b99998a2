package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

const (
	FormatAuto   = "auto"
	FormatServer = "server"
	FormatClient = "client"

	TimestampEpoch    = "epoch"
	TimestampRelative = "relative"

	OutputCSV     = "csv"
	OutputHTML    = "html"
	OutputSummary = "summary"
	OutputXLSX    = "xlsx"
	OutputJSON    = "json"
	OutputProm    = "prom"
)

// Environment toggles read on top of the YAML file.
const (
	EnvSkipPbenchGraphing = "SKIP_PBENCH_GRAPHING"
	EnvInterval           = "GVPROF_INTERVAL"
	EnvLogMode            = "GVPROF_LOG_MODE"
)

type SysConfig struct {
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
}

type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

// ProfileConfig controls how a profile log is turned into graphs.
type ProfileConfig struct {
	Format string `yaml:"format"`
	// Interval in seconds; 0 means take it from the log.
	Interval        int      `yaml:"interval"`
	TimestampMode   string   `yaml:"timestamp_mode"`
	TimestampColumn *bool    `yaml:"timestamp_column"`
	KeepPartial     bool     `yaml:"keep_partial"`
	FillGaps        bool     `yaml:"fill_gaps"`
	StaticDir       string   `yaml:"static_dir"`
	Outputs         []string `yaml:"outputs"`
}

type AppConfig struct {
	System  SysConfig             `yaml:"system"`
	Logger  LogConfig             `yaml:"logger"`
	Profile ProfileConfig         `yaml:"profile"`
	Formats map[string]LineShapes `yaml:"formats"`
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file. An empty path yields the defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.System.Location == "" {
		c.System.Location = "Local"
	}
	if c.System.Workdir == "" {
		c.System.Workdir = "."
	}
	if c.Logger.Mode == "" {
		c.Logger.Mode = "development"
	}
	if c.Logger.FileEnable && c.Logger.Filename == "" {
		c.Logger.Filename = "gvprof.log"
	}
	if c.Profile.Format == "" {
		c.Profile.Format = FormatAuto
	}
	if c.Profile.TimestampMode == "" {
		c.Profile.TimestampMode = TimestampEpoch
	}
	if c.Profile.TimestampColumn == nil {
		on := true
		c.Profile.TimestampColumn = &on
	}
	if c.Profile.StaticDir == "" {
		c.Profile.StaticDir = "static"
	}
	if len(c.Profile.Outputs) == 0 {
		c.Profile.Outputs = []string{OutputCSV, OutputHTML, OutputSummary, OutputXLSX, OutputJSON, OutputProm}
	}

	builtin := BuiltinFormats()
	if c.Formats == nil {
		c.Formats = make(map[string]LineShapes, len(builtin))
	}
	for name, shapes := range builtin {
		c.Formats[name] = shapes.Merge(c.Formats[name])
	}
}

func (c *AppConfig) applyEnv() {
	// any non-empty value turns the pbench timestamp column off
	if os.Getenv(EnvSkipPbenchGraphing) != "" {
		off := false
		c.Profile.TimestampColumn = &off
	}
	if v := strings.TrimSpace(os.Getenv(EnvInterval)); v != "" {
		if n, err := cast.ToIntE(v); err == nil && n > 0 {
			c.Profile.Interval = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogMode)); v != "" {
		c.Logger.Mode = v
	}
}

// Validate checks the profile settings and every line shape set.
func (c *AppConfig) Validate() error {
	switch c.Profile.Format {
	case FormatAuto, FormatServer, FormatClient:
	default:
		if _, ok := c.Formats[c.Profile.Format]; !ok {
			return errors.Errorf("profile.format %q is not defined", c.Profile.Format)
		}
	}
	switch c.Profile.TimestampMode {
	case TimestampEpoch, TimestampRelative:
	default:
		return errors.Errorf("profile.timestamp_mode must be %q or %q, got %q",
			TimestampEpoch, TimestampRelative, c.Profile.TimestampMode)
	}
	if c.Profile.Interval < 0 {
		return errors.Errorf("profile.interval must not be negative")
	}
	for _, o := range c.Profile.Outputs {
		switch o {
		case OutputCSV, OutputHTML, OutputSummary, OutputXLSX, OutputJSON, OutputProm:
		default:
			return errors.Errorf("unknown output %q", o)
		}
	}
	for name, shapes := range c.Formats {
		if err := shapes.Validate(); err != nil {
			return errors.Wrapf(err, "formats.%s", name)
		}
	}
	return nil
}

// TimestampColumnEnabled reports whether CSVs lead with timestamp_ms.
func (c *AppConfig) TimestampColumnEnabled() bool {
	return c.Profile.TimestampColumn == nil || *c.Profile.TimestampColumn
}

// OutputEnabled reports whether the named output should be produced.
func (c *AppConfig) OutputEnabled(name string) bool {
	for _, o := range c.Profile.Outputs {
		if o == name {
			return true
		}
	}
	return false
}
