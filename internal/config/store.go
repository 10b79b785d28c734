package config

import (
	"path/filepath"
	"sync"

	"shiwake/internal/errors"
	"shiwake/pkg/types"
)

// RulesetStore loads and saves the ordered category ruleset.
type RulesetStore interface {
	LoadRuleset() (types.Ruleset, error)
	SaveRuleset(types.Ruleset) error
}

// FileStore persists the configuration as YAML at a fixed path. Every
// mutating call writes through immediately.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store for path. An empty path uses DefaultPath.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, errors.NewConfigError("cannot resolve config path", "", errors.ConfigNotSet, err)
		}
		path = p
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the configuration, falling back to defaults when the file is
// missing.
func (s *FileStore) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LoadConfigFile(s.path)
}

// Save validates and writes cfg.
func (s *FileStore) Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return errors.NewConfigError("invalid configuration", s.path, errors.InvalidConfig, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return SaveConfig(cfg, s.path)
}

// LoadRuleset returns the configured categories in file order.
func (s *FileStore) LoadRuleset() (types.Ruleset, error) {
	cfg, err := s.Load()
	if err != nil {
		return nil, err
	}
	return cfg.Categories, nil
}

// SaveRuleset replaces the configured categories.
func (s *FileStore) SaveRuleset(rs types.Ruleset) error {
	rs = rs.Normalized()
	if err := rs.Validate(); err != nil {
		return errors.NewRuleError("invalid ruleset", "", errors.InvalidRule, err)
	}
	return s.update(func(cfg *Config) error {
		cfg.Categories = rs
		return nil
	})
}

// SetInputFolder records the folder files are collected from.
func (s *FileStore) SetInputFolder(dir string) error {
	abs, err := absPath(dir)
	if err != nil {
		return err
	}
	return s.update(func(cfg *Config) error {
		cfg.InputFolder = abs
		return nil
	})
}

// AddOutputFolder appends dir to the output folders unless already present.
func (s *FileStore) AddOutputFolder(dir string) error {
	abs, err := absPath(dir)
	if err != nil {
		return err
	}
	return s.update(func(cfg *Config) error {
		for _, existing := range cfg.OutputFolders {
			if filepath.Clean(existing) == abs {
				return nil
			}
		}
		cfg.OutputFolders = append(cfg.OutputFolders, abs)
		return nil
	})
}

// RemoveOutputFolder drops dir from the output folders. Removing a folder
// that is not configured is not an error.
func (s *FileStore) RemoveOutputFolder(dir string) error {
	abs, err := absPath(dir)
	if err != nil {
		return err
	}
	return s.update(func(cfg *Config) error {
		kept := cfg.OutputFolders[:0]
		for _, existing := range cfg.OutputFolders {
			if filepath.Clean(existing) != abs {
				kept = append(kept, existing)
			}
		}
		cfg.OutputFolders = kept
		return nil
	})
}

func (s *FileStore) update(fn func(*Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := LoadConfigFile(s.path)
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.NewConfigError("invalid configuration", s.path, errors.InvalidConfig, err)
	}
	return SaveConfig(cfg, s.path)
}

func absPath(dir string) (string, error) {
	if dir == "" {
		return "", errors.NewFileError("folder path is empty", "", errors.InvalidPath, nil)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.NewFileError("cannot resolve folder", dir, errors.InvalidPath, err)
	}
	return abs, nil
}
