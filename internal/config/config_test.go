package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_PlotOrderPreserved(t *testing.T) {
	content := `
server:
  port: 9000
data:
  plots:
    Breast Cancer:
      points: breast/database.csv
      labels: breast/labels.csv
      ranks: breast/ranks.csv
    Lung Cancer:
      points: /data/lung/database.csv.zst
    GI Oncology:
      sqlite: gi.sqlite
`
	cfg, dir := loadFromString(t, content)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"Breast Cancer", "Lung Cancer", "GI Oncology"}, cfg.Data.PlotNames())
	assert.Equal(t, "Breast Cancer", cfg.Data.DefaultPlot)

	breast := cfg.Data.Plots["Breast Cancer"]
	assert.Equal(t, filepath.Join(dir, "breast/database.csv"), breast.Points)
	assert.Equal(t, filepath.Join(dir, "breast/ranks.csv"), breast.Ranks)

	lung := cfg.Data.Plots["Lung Cancer"]
	assert.Equal(t, "/data/lung/database.csv.zst", lung.Points)
	assert.Empty(t, lung.Labels)

	assert.Equal(t, filepath.Join(dir, "gi.sqlite"), cfg.Data.Plots["GI Oncology"].SQLite)
}

func TestLoad_DefaultsApplied(t *testing.T) {
	content := `
server:
  port: 0
data:
  plots:
    test:
      points: points.csv
`
	cfg, _ := loadFromString(t, content)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 128, cfg.Cache.SnapshotSizeMB)
	assert.Equal(t, 1024, cfg.Render.Width)
	assert.Equal(t, 0.1, cfg.View.Padding)
	assert.Equal(t, 0.9, cfg.View.MarginFactor)
	assert.Equal(t, 1, cfg.View.BinWidth)
	assert.Len(t, cfg.View.Bands, 8)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_NoDataSection(t *testing.T) {
	cfg, _ := loadFromString(t, "server:\n  port: 8080\n")

	assert.Equal(t, "default", cfg.Data.DefaultPlot)
	assert.Equal(t, []string{"default"}, cfg.Data.PlotNames())
}

func TestLoad_CustomBands(t *testing.T) {
	content := `
data:
  plots:
    p:
      points: p.csv
view:
  bands:
    - {start: 2000, end: 2010, color: "#111111"}
    - {start: 2010, color: "#222222"}
`
	cfg, _ := loadFromString(t, content)
	require.Len(t, cfg.View.Bands, 2)
	assert.Equal(t, "2000-2009", cfg.View.Bands[0].Label())
	assert.Equal(t, "2010+", cfg.View.Bands[1].Label())
}

func TestLoad_DecadeBands(t *testing.T) {
	content := `
data:
  plots:
    p:
      points: p.csv
view:
  bin_width: 2
  bands: decades
`
	cfg, _ := loadFromString(t, content)
	assert.True(t, cfg.View.Decades)
	assert.Empty(t, cfg.View.Bands)
	assert.Equal(t, 2, cfg.View.BinWidth)
	assert.Equal(t, 0.9, cfg.View.MarginFactor)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown default", "data:\n  default_plot: nope\n  plots:\n    a:\n      points: a.csv\n"},
		{"missing sources", "data:\n  plots:\n    a:\n      labels: a.csv\n"},
		{"duplicate plot", "data:\n  plots:\n    a:\n      points: a.csv\n    a:\n      points: b.csv\n"},
		{"unknown band preset", "data:\n  plots:\n    a:\n      points: a.csv\nview:\n  bands: fives\n"},
		{"bad margin", "data:\n  plots:\n    a:\n      points: a.csv\nview:\n  margin_factor: 1.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func loadFromString(t *testing.T, content string) (*Config, string) {
	t.Helper()

	path := writeConfig(t, content)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg, filepath.Dir(path)
}
