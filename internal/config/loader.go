package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	CacheDir string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	DataDir  string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	// OutputDir is where generated videos are written.
	OutputDir string `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	// DiskMarginPercent is the admission safety margin over an artifact's
	// expected footprint (default 20).
	DiskMarginPercent int `json:"disk_margin_percent" yaml:"disk_margin_percent" toml:"disk_margin_percent"`
	// ProgressStepPercent controls download progress persistence granularity.
	ProgressStepPercent int `json:"progress_step_percent" yaml:"progress_step_percent" toml:"progress_step_percent"`
	// DownloadTimeoutMinutes bounds one download attempt.
	DownloadTimeoutMinutes int `json:"download_timeout_minutes" yaml:"download_timeout_minutes" toml:"download_timeout_minutes"`
	Workers                int `json:"workers" yaml:"workers" toml:"workers"`
	// RefundOnFailure issues a compensating credit when a task fails.
	RefundOnFailure bool `json:"refund_on_failure" yaml:"refund_on_failure" toml:"refund_on_failure"`
	// SignupCredits is the initial grant for new accounts.
	SignupCredits int64 `json:"signup_credits" yaml:"signup_credits" toml:"signup_credits"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
