package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

// ProjectAllowlistFile is the allowlist filename looked up in the project root.
const ProjectAllowlistFile = ".vmem-allowlist.toml"

// Allowlist holds regex patterns excluded from secret detection.
type Allowlist struct {
	Paths   []string // file path patterns to ignore
	Regexes []string // content patterns to ignore
}

// UserAllowlistPath returns the per-user allowlist file under ~/.vmem.
// Returns an empty string when the home directory cannot be resolved.
func UserAllowlistPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".vmem", "allowlist.toml")
}

// LoadAllowlists merges the project and user allowlists with union semantics.
// Missing files are skipped. Unparseable TOML or an invalid pattern is an
// error: a half-loaded allowlist would silently re-expose secrets it was
// meant to cover.
//
// projectDir is the directory searched for ProjectAllowlistFile; userPath is
// the full path to the user file. Either may be empty to skip that source.
func LoadAllowlists(projectDir, userPath string) (*Allowlist, error) {
	merged := &Allowlist{
		Paths:   []string{},
		Regexes: []string{},
	}

	if projectDir != "" {
		project, err := loadTOML(filepath.Join(projectDir, ProjectAllowlistFile))
		switch {
		case err == nil:
			merged.Paths = append(merged.Paths, project.Paths...)
			merged.Regexes = append(merged.Regexes, project.Regexes...)
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	if userPath != "" {
		user, err := loadTOML(userPath)
		switch {
		case err == nil:
			merged.Paths = append(merged.Paths, user.Paths...)
			merged.Regexes = append(merged.Regexes, user.Regexes...)
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	return merged, nil
}

// loadTOML reads a single allowlist file and validates every pattern.
func loadTOML(path string) (*Allowlist, error) {
	var file struct {
		Allowlist struct {
			Paths   []string
			Regexes []string
		}
	}

	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	for _, pattern := range file.Allowlist.Paths {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: path pattern %q in %s: %v",
				ErrInvalidRegex, pattern, path, err)
		}
	}
	for _, pattern := range file.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: content pattern %q in %s: %v",
				ErrInvalidRegex, pattern, path, err)
		}
	}

	return &Allowlist{
		Paths:   file.Allowlist.Paths,
		Regexes: file.Allowlist.Regexes,
	}, nil
}
