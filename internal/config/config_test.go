package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/discochess/blunderlab"
)

func TestLoad_Defaults(t *testing.T) {
	// Run from an empty directory and home so no config file is found.
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want data", cfg.DataDir)
	}
	if cfg.Engine.Path != "stockfish" || cfg.Engine.Depth != 12 {
		t.Errorf("engine defaults = %+v", cfg.Engine)
	}
	if cfg.BlunderThresholds() != blunderlab.DefaultThresholds() {
		t.Errorf("thresholds = %+v, want defaults", cfg.Thresholds)
	}
	if cfg.Metric() != blunderlab.MetricCPLoss {
		t.Errorf("metric = %q, want cp_loss", cfg.Metric())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blunderlab.toml")
	body := `
data_dir = "out"

[chesscom]
username = "hikaru"
max_games = 5

[engine]
depth = 16

[thresholds]
inaccuracy = 30
mistake = 90
blunder = 300

[selection]
metric = "wp_swing"

[output]
compression = "zst"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != "out" || cfg.Chesscom.Username != "hikaru" || cfg.Chesscom.MaxGames != 5 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Engine.Depth != 16 {
		t.Errorf("depth = %d, want 16", cfg.Engine.Depth)
	}
	// File values merge over defaults.
	if cfg.Engine.Path != "stockfish" {
		t.Errorf("unset engine path = %q, want default", cfg.Engine.Path)
	}
	want := blunderlab.Thresholds{Inaccuracy: 30, Mistake: 90, Blunder: 300}
	if cfg.BlunderThresholds() != want {
		t.Errorf("thresholds = %+v, want %+v", cfg.Thresholds, want)
	}
	if cfg.Metric() != blunderlab.MetricWPSwing {
		t.Errorf("metric = %q, want wp_swing", cfg.Metric())
	}
	if cfg.Output.Compression != "zst" {
		t.Errorf("compression = %q, want zst", cfg.Output.Compression)
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("Load() error = %v, want missing-file error", err)
	}
}

func TestLoad_EnvOverlay(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CHESSCOM_USER", "env-user")
	t.Setenv("LICHESS_STUDY_ID", "abcdef12")
	t.Setenv("LICHESS_TOKEN", "lip_secret")
	t.Setenv("DATA_DIR", "/tmp/elsewhere")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Chesscom.Username != "env-user" {
		t.Errorf("username = %q, want env-user", cfg.Chesscom.Username)
	}
	if cfg.Lichess.StudyID != "abcdef12" || cfg.Lichess.Token != "lip_secret" {
		t.Errorf("lichess = %+v", cfg.Lichess)
	}
	if cfg.DataDir != "/tmp/elsewhere" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero depth", func(c *Config) { c.Engine.Depth = 0 }},
		{"zero max games", func(c *Config) { c.Chesscom.MaxGames = 0 }},
		{"descending thresholds", func(c *Config) { c.Thresholds.Blunder = 10 }},
		{"unknown metric", func(c *Config) { c.Selection.Metric = "vibes" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestWriteSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "blunderlab.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample() error = %v", err)
	}

	// The sample must itself load and validate.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(sample) error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("sample config failed validation: %v", err)
	}
}
