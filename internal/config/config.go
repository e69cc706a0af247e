// Package config loads pipeline configuration from a TOML file with an
// environment overlay for credentials.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/discochess/blunderlab"
)

//go:embed sample_config.toml
var sampleConfig string

// Chesscom configures the game fetcher.
type Chesscom struct {
	Username  string `toml:"username"`
	MaxGames  int    `toml:"max_games"`
	UserAgent string `toml:"user_agent"`
}

// Engine configures the evaluator process.
type Engine struct {
	Path               string `toml:"path"`
	Depth              int    `toml:"depth"`
	MoveTimeoutSeconds int    `toml:"move_timeout_seconds"`
}

// Thresholds are the centipawn classification boundaries.
type Thresholds struct {
	Inaccuracy int `toml:"inaccuracy"`
	Mistake    int `toml:"mistake"`
	Blunder    int `toml:"blunder"`
}

// Selection configures blunder ranking and the upload cap.
type Selection struct {
	Metric string `toml:"metric"`
	Limit  int    `toml:"limit"`
}

// Lichess configures study publishing.
type Lichess struct {
	StudyID      string  `toml:"study_id"`
	Token        string  `toml:"token"`
	SleepSeconds float64 `toml:"sleep_seconds"`
}

// Output configures where and how tables are written.
type Output struct {
	// Compression is "", "gz", or "zst".
	Compression string `toml:"compression"`
}

// Config is the full configuration surface.
type Config struct {
	DataDir    string     `toml:"data_dir"`
	Chesscom   Chesscom   `toml:"chesscom"`
	Engine     Engine     `toml:"engine"`
	Thresholds Thresholds `toml:"thresholds"`
	Selection  Selection  `toml:"selection"`
	Lichess    Lichess    `toml:"lichess"`
	Output     Output     `toml:"output"`
}

// Default returns the built-in defaults.
func Default() Config {
	t := blunderlab.DefaultThresholds()
	return Config{
		DataDir: "data",
		Chesscom: Chesscom{
			MaxGames:  50,
			UserAgent: "blunderlab/1.0 (chess study pipeline)",
		},
		Engine: Engine{
			Path:               "stockfish",
			Depth:              12,
			MoveTimeoutSeconds: 30,
		},
		Thresholds: Thresholds{
			Inaccuracy: t.Inaccuracy,
			Mistake:    t.Mistake,
			Blunder:    t.Blunder,
		},
		Selection: Selection{
			Metric: string(blunderlab.MetricCPLoss),
		},
		Lichess: Lichess{
			SleepSeconds: 0.6,
		},
	}
}

// candidates returns the config search order: working directory first,
// then the user config directory.
func candidates() []string {
	paths := []string{"blunderlab.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "blunderlab", "config.toml"))
	}
	return paths
}

// Load reads the configuration. With an empty path the standard search
// order is used and a missing file falls back to defaults; an explicit
// path must exist. Environment variables overlay credentials last.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range candidates() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return cfg, fmt.Errorf("config file %s does not exist", path)
			}
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays the environment variables the original tooling
// honored. Environment wins over file values for credentials.
func (c *Config) applyEnv() {
	if v := os.Getenv("CHESSCOM_USER"); v != "" {
		c.Chesscom.Username = v
	}
	if v := os.Getenv("LICHESS_STUDY_ID"); v != "" {
		c.Lichess.StudyID = v
	}
	if v := os.Getenv("LICHESS_TOKEN"); v != "" {
		c.Lichess.Token = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
}

// Validate checks everything that must hold before a run starts.
func (c *Config) Validate() error {
	if c.Engine.Depth <= 0 {
		return fmt.Errorf("config: engine depth must be positive, got %d", c.Engine.Depth)
	}
	if c.Chesscom.MaxGames <= 0 {
		return fmt.Errorf("config: max_games must be positive, got %d", c.Chesscom.MaxGames)
	}
	if err := c.BlunderThresholds().Validate(); err != nil {
		return err
	}
	if _, err := blunderlab.ParseMetric(c.Selection.Metric); err != nil {
		return err
	}
	return nil
}

// BlunderThresholds converts to the pipeline threshold type.
func (c *Config) BlunderThresholds() blunderlab.Thresholds {
	return blunderlab.Thresholds{
		Inaccuracy: c.Thresholds.Inaccuracy,
		Mistake:    c.Thresholds.Mistake,
		Blunder:    c.Thresholds.Blunder,
	}
}

// Metric returns the validated ranking metric.
func (c *Config) Metric() blunderlab.Metric {
	m, err := blunderlab.ParseMetric(c.Selection.Metric)
	if err != nil {
		return blunderlab.MetricCPLoss
	}
	return m
}

// WriteSample writes the annotated sample configuration to path.
func WriteSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}
