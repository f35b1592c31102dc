package autosave

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	globalDirName     = ".vmem"
	globalConfigName  = "config.yml"
	projectConfigName = ".vmem.yml"
)

// Store reads and writes the auto-save configuration files.
type Store struct {
	home    string
	workdir string
}

// NewStore creates a store rooted at the user's home directory and the
// current working directory.
func NewStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewStoreAt(home, cwd), nil
}

// NewStoreAt creates a store with explicit directories.
func NewStoreAt(home, workdir string) *Store {
	return &Store{home: home, workdir: workdir}
}

// GlobalPath returns the global config file path.
func (s *Store) GlobalPath() string {
	return filepath.Join(s.home, globalDirName, globalConfigName)
}

// ProjectPath returns the project config file path.
func (s *Store) ProjectPath() string {
	return filepath.Join(s.workdir, projectConfigName)
}

// Load reads both config files. Missing or unreadable files leave the
// corresponding mode unset; a corrupt file is treated the same so a
// bad edit never locks the CLI out.
func (s *Store) Load() *Settings {
	settings := &Settings{}

	if v, ok := readYAMLKey(s.GlobalPath(), "auto_save.mode"); ok {
		settings.GlobalMode = Normalize(v)
	}
	if v, ok := readYAMLKey(s.ProjectPath(), "auto_save"); ok {
		settings.ProjectMode = Normalize(v)
	}

	return settings
}

// readYAMLKey loads a YAML file and extracts one key. The second
// return is false when the file is missing, unparseable, or lacks the
// key.
func readYAMLKey(path, key string) (any, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, false
	}
	if !k.Exists(key) {
		return nil, false
	}
	return k.Get(key), true
}

// SetGlobal writes the global auto-save mode, creating ~/.vmem with
// 0700 permissions if needed.
func (s *Store) SetGlobal(mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid mode %q (must be off, on, or prompt)", mode)
	}

	dir := filepath.Join(s.home, globalDirName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	content := fmt.Sprintf("auto_save:\n  mode: %s\n  per_project: true\n", mode)
	if err := os.WriteFile(s.GlobalPath(), []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write global config: %w", err)
	}
	return nil
}

// SetProject writes the project auto-save mode to ./.vmem.yml.
func (s *Store) SetProject(mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid mode %q (must be off, on, or prompt)", mode)
	}

	content := fmt.Sprintf("auto_save: %s\n", mode)
	if err := os.WriteFile(s.ProjectPath(), []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write project config: %w", err)
	}
	return nil
}
