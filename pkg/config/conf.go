package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mchmarny/fairaudit/pkg/dataset"
	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config.yaml"
	dirMode        = 0700
	fileMode       = 0600
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the audit profile: which columns to read and how to interpret them.
type Config struct {
	Protected  string   `yaml:"protected" validate:"required"`
	Privileged []string `yaml:"privileged" validate:"required,min=1,dive,required"`
	Label      string   `yaml:"label" validate:"required"`
	Prediction string   `yaml:"prediction,omitempty"`
	Score      string   `yaml:"score,omitempty"`
	Favorable  int      `yaml:"favorable" validate:"oneof=0 1"`
}

// Default returns the profile for the ProPublica COMPAS two-year dataset.
func Default() *Config {
	return &Config{
		Protected:  "race",
		Privileged: []string{"Caucasian"},
		Label:      "two_year_recid",
		Score:      "decile_score",
		Favorable:  0,
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config required")
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Schema returns the dataset schema described by the profile.
func (c *Config) Schema() dataset.Schema {
	return dataset.Schema{
		Protected:  c.Protected,
		Label:      c.Label,
		Prediction: c.Prediction,
		Score:      c.Score,
		Binarize:   dataset.MatchAny(c.Privileged...),
	}
}

func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if err := c.Validate(); err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(dirPath, configFileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configFileName, err)
	}
	return nil
}

// Load reads and validates the profile at path. Keys missing from the file
// are empty, they do not fall back to Default.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	c := &Config{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return c, nil
}

// ReadOrCreate reads app config from directory or creates a new one.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dirPath, dirMode); err != nil {
			return nil, fmt.Errorf("failed to create dir %s: %w", dirPath, err)
		}
	}

	path := filepath.Join(dirPath, configFileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating default config", "path", path)
		if err := Save(dirPath, Default()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	return Load(path)
}

// GetOrCreateHomeDir returns the home directory for the current user.
// The create flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("failed to get user home dir: %w", err)
	}
	slog.Debug("home dir", "path", home)

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
		created = true
	}
	return dir, created, nil
}
