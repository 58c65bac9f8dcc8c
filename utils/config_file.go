package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FileConfig is the optional YAML configuration file. Command-line flags
// take precedence over anything set here.
type FileConfig struct {
	BlurThreshold  *float64 `yaml:"blur_threshold"`
	MatchThreshold *float64 `yaml:"match_threshold"`
	ResampleFactor *float64 `yaml:"resample_factor"`
	SizeHint       string   `yaml:"size_hint"`
	SteamUser      string   `yaml:"steam_user"`
	Workers        int      `yaml:"workers"`
	Database       string   `yaml:"database"`
	LogFile        string   `yaml:"logfile"`
}

// LoadConfigFile reads and strictly decodes a YAML configuration file
func LoadConfigFile(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open config file: %w", err)
	}
	defer f.Close()

	var cfg FileConfig
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	// An empty file decodes to io.EOF
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

// MergeConfigFile fills args with values from the file named by --config
// for every flag not already given. Without --config it does nothing.
func MergeConfigFile(args map[string]string) error {
	path, ok := args["config"]
	if !ok || path == "" {
		return nil
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		return err
	}

	setDefault := func(name, value string) {
		if _, given := args[name]; !given && value != "" {
			args[name] = value
		}
	}
	formatFloat := func(v *float64) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'g', -1, 64)
	}

	setDefault("blur-threshold", formatFloat(cfg.BlurThreshold))
	setDefault("match-threshold", formatFloat(cfg.MatchThreshold))
	setDefault("resample-factor", formatFloat(cfg.ResampleFactor))
	setDefault("size-hint", cfg.SizeHint)
	setDefault("steam-user", cfg.SteamUser)
	if cfg.Workers > 0 {
		setDefault("workers", strconv.Itoa(cfg.Workers))
	}
	setDefault("database", cfg.Database)
	setDefault("logfile", cfg.LogFile)
	return nil
}
