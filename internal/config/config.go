package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shiwake/internal/errors"
	"shiwake/pkg/types"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Settings controls how a batch is collected and executed.
type Settings struct {
	Recursive         bool     `yaml:"recursive"`          // Descend into subfolders of the input folder
	Unclassified      string   `yaml:"unclassified"`       // other or skip
	OtherCategory     string   `yaml:"other_category"`     // Bucket for unclassified files
	RepairPermissions bool     `yaml:"repair_permissions"` // chmod u+w and retry once on EACCES
	DryRun            bool     `yaml:"dry_run"`            // Plan only
	Exclude           []string `yaml:"exclude"`            // Glob patterns matched against base names
}

// WatchSettings controls watch mode.
type WatchSettings struct {
	DebounceMS int `yaml:"debounce_ms"`
}

// Debounce returns the debounce interval as a duration.
func (w WatchSettings) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// HistorySettings controls the run journal.
type HistorySettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // Empty means the default data dir
}

// LoggingSettings controls log output.
type LoggingSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Config represents the application configuration structure.
// Categories are kept in file order; that order decides which category wins
// when two list the same extension.
type Config struct {
	Categories    types.Ruleset   `yaml:"categories"`
	OutputFolders []string        `yaml:"output_folders"`
	InputFolder   string          `yaml:"input_folder"`
	Settings      Settings        `yaml:"settings"`
	Watch         WatchSettings   `yaml:"watch"`
	History       HistorySettings `yaml:"history"`
	Logging       LoggingSettings `yaml:"logging"`
}

// DefaultPath returns ~/.config/shiwake/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "shiwake", "config.yaml"), nil
}

// DefaultHistoryPath returns ~/.local/share/shiwake/history.db.
func DefaultHistoryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "shiwake", "history.db"), nil
}

// LoadConfig loads configuration from the default location.
func LoadConfig() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFile(path)
}

// rawConfig mirrors Config with pointers so that unset keys keep defaults.
type rawConfig struct {
	Categories    *types.Ruleset `yaml:"categories"`
	OutputFolders []string       `yaml:"output_folders"`
	InputFolder   string         `yaml:"input_folder"`
	Settings      struct {
		Recursive         *bool    `yaml:"recursive"`
		Unclassified      string   `yaml:"unclassified"`
		OtherCategory     string   `yaml:"other_category"`
		RepairPermissions *bool    `yaml:"repair_permissions"`
		DryRun            *bool    `yaml:"dry_run"`
		Exclude           []string `yaml:"exclude"`
	} `yaml:"settings"`
	Watch struct {
		DebounceMS int `yaml:"debounce_ms"`
	} `yaml:"watch"`
	History struct {
		Enabled *bool  `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"history"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// LoadConfigFile loads configuration from a specific file path.
// If the file doesn't exist, returns default configuration.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.NewConfigError("error reading config file", path, errors.ConfigNotFound, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewConfigError("error parsing config file", path, errors.InvalidConfig, err)
	}

	// An explicit empty list clears the default categories.
	if raw.Categories != nil {
		cfg.Categories = *raw.Categories
	}
	if raw.OutputFolders != nil {
		cfg.OutputFolders = raw.OutputFolders
	}
	cfg.InputFolder = raw.InputFolder

	if raw.Settings.Recursive != nil {
		cfg.Settings.Recursive = *raw.Settings.Recursive
	}
	if raw.Settings.Unclassified != "" {
		cfg.Settings.Unclassified = raw.Settings.Unclassified
	}
	if raw.Settings.OtherCategory != "" {
		cfg.Settings.OtherCategory = raw.Settings.OtherCategory
	}
	if raw.Settings.RepairPermissions != nil {
		cfg.Settings.RepairPermissions = *raw.Settings.RepairPermissions
	}
	if raw.Settings.DryRun != nil {
		cfg.Settings.DryRun = *raw.Settings.DryRun
	}
	if raw.Settings.Exclude != nil {
		cfg.Settings.Exclude = raw.Settings.Exclude
	}

	if raw.Watch.DebounceMS != 0 {
		cfg.Watch.DebounceMS = raw.Watch.DebounceMS
	}
	if raw.History.Enabled != nil {
		cfg.History.Enabled = *raw.History.Enabled
	}
	if raw.History.Path != "" {
		cfg.History.Path = raw.History.Path
	}
	if raw.Logging.Level != "" {
		cfg.Logging.Level = raw.Logging.Level
	}
	if raw.Logging.Format != "" {
		cfg.Logging.Format = raw.Logging.Format
	}

	cfg.Categories = cfg.Categories.Normalized()

	if err := cfg.Validate(); err != nil {
		return nil, errors.NewConfigError("invalid configuration", path, errors.InvalidConfig, err)
	}

	return cfg, nil
}

// defaultConfig returns the default configuration.
func defaultConfig() *Config {
	cfg := &Config{
		Categories:    types.DefaultRuleset(),
		OutputFolders: []string{},
	}

	cfg.Settings.Unclassified = types.UnclassifiedOther
	cfg.Settings.OtherCategory = types.DefaultOtherCategory
	cfg.Settings.RepairPermissions = true
	cfg.Settings.Exclude = []string{".DS_Store", "Thumbs.db", "*.part", "*.crdownload", "*.tmp"}

	cfg.Watch.DebounceMS = 1500

	cfg.History.Enabled = true

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	return cfg
}

// New returns a configuration populated with defaults.
func New() *Config {
	return defaultConfig()
}

// SaveConfig saves the configuration to the specified file.
// It creates parent directories if they don't exist.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewFileError("failed to create config directory", dir, errors.FileCreateFailed, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// Write to a sibling temp file first so a crash never truncates the config.
	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return errors.NewFileError("failed to write config file", path, errors.FileCreateFailed, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.NewFileError("failed to write config file", path, errors.FileOperationFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewFileError("failed to write config file", path, errors.FileOperationFailed, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return errors.NewFileError("failed to write config file", path, errors.FileOperationFailed, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.NewFileError("failed to write config file", path, errors.FileOperationFailed, err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("nil config")
	}

	if err := c.Categories.Validate(); err != nil {
		return err
	}

	switch c.Settings.Unclassified {
	case types.UnclassifiedOther, types.UnclassifiedSkip:
	default:
		return fmt.Errorf("invalid unclassified policy: %q (want %q or %q)",
			c.Settings.Unclassified, types.UnclassifiedOther, types.UnclassifiedSkip)
	}

	if c.Settings.Unclassified == types.UnclassifiedOther {
		if err := types.ValidateCategoryName(c.Settings.OtherCategory); err != nil {
			return fmt.Errorf("other_category: %w", err)
		}
	}

	for i, pattern := range c.Settings.Exclude {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("exclude %d: pattern cannot be empty", i)
		}
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("exclude %d: invalid pattern %q: %w", i, pattern, err)
		}
	}

	for i, dir := range c.OutputFolders {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("output folder %d: path cannot be empty", i)
		}
	}

	if c.Watch.DebounceMS < 0 {
		return fmt.Errorf("watch debounce must be >= 0 ms")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	return nil
}

// ExcludeMatchers compiles the exclude globs. Validate must have passed.
func (c *Config) ExcludeMatchers() []glob.Glob {
	matchers := make([]glob.Glob, 0, len(c.Settings.Exclude))
	for _, pattern := range c.Settings.Exclude {
		if g, err := glob.Compile(pattern); err == nil {
			matchers = append(matchers, g)
		}
	}
	return matchers
}

// HistoryPath returns the configured journal path or the default one.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	return DefaultHistoryPath()
}

// DefaultDestination returns the first output folder, or "" if none is set.
func (c *Config) DefaultDestination() string {
	if len(c.OutputFolders) == 0 {
		return ""
	}
	return c.OutputFolders[0]
}

// NewTestConfig creates a configuration instance for testing purposes.
func NewTestConfig() *Config {
	cfg := defaultConfig()
	cfg.Categories = types.Ruleset{
		{Name: "Documents", Extensions: []string{".txt", ".pdf"}},
		{Name: "Images", Extensions: []string{".jpg", ".png"}},
	}
	cfg.Settings.Exclude = nil
	cfg.History.Enabled = false
	return cfg
}
