// Package config handles configuration loading for the Criteria Atlas server.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/criteria-atlas/server/internal/plot"
)

// Config represents the server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Data   DataConfig   `yaml:"data"`
	Cache  CacheConfig  `yaml:"cache"`
	Render RenderConfig `yaml:"render"`
	View   ViewConfig   `yaml:"view"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	Title       string   `yaml:"title"`
}

// PlotConfig locates one plot's resources. Either the three CSV paths or a
// SQLite database is used; SQLite wins when both are set.
type PlotConfig struct {
	Points string `yaml:"points"`
	Labels string `yaml:"labels"`
	Ranks  string `yaml:"ranks"`
	SQLite string `yaml:"sqlite"`
	// Plot key inside the SQLite database; defaults to the plot name.
	Key string `yaml:"key"`
}

// DataConfig contains data source settings.
type DataConfig struct {
	DefaultPlot string `yaml:"default_plot"`
	Watch       bool   `yaml:"watch"`

	// Plots is keyed by display name ("Breast Cancer"). Order follows the
	// YAML document and is available from PlotNames.
	Plots map[string]PlotConfig `yaml:"-"`
	order []string
}

// PlotNames returns plot names in configuration order.
func (d DataConfig) PlotNames() []string {
	return d.order
}

// UnmarshalYAML keeps the document order of the plots mapping.
func (d *DataConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		DefaultPlot string    `yaml:"default_plot"`
		Watch       bool      `yaml:"watch"`
		Plots       yaml.Node `yaml:"plots"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	d.DefaultPlot = raw.DefaultPlot
	d.Watch = raw.Watch
	d.Plots = make(map[string]PlotConfig)
	d.order = nil

	if raw.Plots.Kind == 0 {
		return nil
	}
	if raw.Plots.Kind != yaml.MappingNode {
		return fmt.Errorf("data.plots: expected a mapping, got line %d", raw.Plots.Line)
	}
	for i := 0; i+1 < len(raw.Plots.Content); i += 2 {
		name := raw.Plots.Content[i].Value
		var pc PlotConfig
		if err := raw.Plots.Content[i+1].Decode(&pc); err != nil {
			return fmt.Errorf("data.plots.%s: %w", name, err)
		}
		if _, dup := d.Plots[name]; dup {
			return fmt.Errorf("data.plots: duplicate plot %q", name)
		}
		d.Plots[name] = pc
		d.order = append(d.order, name)
	}
	return nil
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	SnapshotSizeMB     int `yaml:"snapshot_size_mb"`
	SnapshotTTLMinutes int `yaml:"snapshot_ttl_minutes"`
	QueryCacheSize     int `yaml:"query_cache_size"`
}

// RenderConfig contains snapshot rendering settings.
type RenderConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	PointSize  float64 `yaml:"point_size"`
	Background string  `yaml:"background"`
	Palette    string  `yaml:"palette"`
}

// ViewConfig contains pipeline parameters shared by every plot.
type ViewConfig struct {
	Padding      float64     `yaml:"padding"`
	MarginFactor float64     `yaml:"margin_factor"`
	BinWidth     int         `yaml:"bin_width"`
	Bands        []plot.Band `yaml:"bands"`
	// Decades is set by "bands: decades": decade bands over each plot's
	// year extent replace Bands.
	Decades bool `yaml:"-"`
}

// UnmarshalYAML accepts either a list of bands or the "decades" shorthand.
func (v *ViewConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Padding      float64   `yaml:"padding"`
		MarginFactor float64   `yaml:"margin_factor"`
		BinWidth     int       `yaml:"bin_width"`
		Bands        yaml.Node `yaml:"bands"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*v = ViewConfig{Padding: raw.Padding, MarginFactor: raw.MarginFactor, BinWidth: raw.BinWidth}

	switch raw.Bands.Kind {
	case 0:
	case yaml.ScalarNode:
		if raw.Bands.Tag == "!!null" {
			break
		}
		if raw.Bands.Value != "decades" {
			return fmt.Errorf("view.bands: unknown preset %q (want a list or \"decades\")", raw.Bands.Value)
		}
		v.Decades = true
	default:
		if err := raw.Bands.Decode(&v.Bands); err != nil {
			return fmt.Errorf("view.bands: %w", err)
		}
	}
	return nil
}

// LogConfig selects log level and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file. A missing file yields the
// default configuration; relative data paths resolve against the file's
// directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	resolvePaths(&cfg, filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			Title:       "Clinical Trial Criteria Visualizer",
		},
		Data: DataConfig{
			DefaultPlot: "default",
			Plots: map[string]PlotConfig{
				"default": {
					Points: "./data/database.csv",
					Labels: "./data/labels.csv",
					Ranks:  "./data/ranks.csv",
				},
			},
			order: []string{"default"},
		},
		Cache: CacheConfig{
			SnapshotSizeMB:     128,
			SnapshotTTLMinutes: 10,
			QueryCacheSize:     1000,
		},
		Render: RenderConfig{
			Width:      1024,
			Height:     768,
			PointSize:  3,
			Background: "#1E1E1E",
			Palette:    "neon",
		},
		View: ViewConfig{
			Padding:      plot.DefaultPadding,
			MarginFactor: plot.DefaultMargin,
			BinWidth:     1,
			Bands:        plot.DefaultBands(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
	return cfg
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Server.Title == "" {
		cfg.Server.Title = defaults.Server.Title
	}
	if len(cfg.Data.order) == 0 {
		cfg.Data.Plots = defaults.Data.Plots
		cfg.Data.order = defaults.Data.order
	}
	if cfg.Data.DefaultPlot == "" {
		cfg.Data.DefaultPlot = cfg.Data.order[0]
	}
	if cfg.Cache.SnapshotSizeMB == 0 {
		cfg.Cache.SnapshotSizeMB = defaults.Cache.SnapshotSizeMB
	}
	if cfg.Cache.SnapshotTTLMinutes == 0 {
		cfg.Cache.SnapshotTTLMinutes = defaults.Cache.SnapshotTTLMinutes
	}
	if cfg.Cache.QueryCacheSize == 0 {
		cfg.Cache.QueryCacheSize = defaults.Cache.QueryCacheSize
	}
	if cfg.Render.Width == 0 {
		cfg.Render.Width = defaults.Render.Width
	}
	if cfg.Render.Height == 0 {
		cfg.Render.Height = defaults.Render.Height
	}
	if cfg.Render.PointSize == 0 {
		cfg.Render.PointSize = defaults.Render.PointSize
	}
	if cfg.Render.Background == "" {
		cfg.Render.Background = defaults.Render.Background
	}
	if cfg.Render.Palette == "" {
		cfg.Render.Palette = defaults.Render.Palette
	}
	if cfg.View.Padding == 0 {
		cfg.View.Padding = defaults.View.Padding
	}
	if cfg.View.MarginFactor == 0 {
		cfg.View.MarginFactor = defaults.View.MarginFactor
	}
	if cfg.View.BinWidth == 0 {
		cfg.View.BinWidth = defaults.View.BinWidth
	}
	if len(cfg.View.Bands) == 0 && !cfg.View.Decades {
		cfg.View.Bands = defaults.View.Bands
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
}

func resolvePaths(cfg *Config, base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for name, pc := range cfg.Data.Plots {
		pc.Points = abs(pc.Points)
		pc.Labels = abs(pc.Labels)
		pc.Ranks = abs(pc.Ranks)
		pc.SQLite = abs(pc.SQLite)
		cfg.Data.Plots[name] = pc
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if _, ok := c.Data.Plots[c.Data.DefaultPlot]; !ok {
		return fmt.Errorf("data.default_plot %q is not a configured plot", c.Data.DefaultPlot)
	}
	for _, name := range c.Data.order {
		pc := c.Data.Plots[name]
		if pc.SQLite == "" && pc.Points == "" {
			return fmt.Errorf("data.plots.%s: points or sqlite is required", name)
		}
	}
	if c.View.MarginFactor < 0 || c.View.MarginFactor > 1 {
		return fmt.Errorf("view.margin_factor must be in (0, 1], got %v", c.View.MarginFactor)
	}
	return nil
}
