// Package autosave implements the auto-save policy for the vmem CLI.
//
// The policy is controlled by two YAML files: a global config at
// ~/.vmem/config.yml and a per-project override at ./.vmem.yml. The
// project setting wins when both are present.
package autosave

import (
	"strings"
)

// Mode is an auto-save mode.
type Mode string

const (
	// ModeOff disables automatic saves. Manual saves still work.
	ModeOff Mode = "off"

	// ModeOn allows automatic saves without confirmation.
	ModeOn Mode = "on"

	// ModePrompt asks for confirmation before each automatic save.
	ModePrompt Mode = "prompt"
)

// Valid reports whether m is a recognized mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeOff, ModeOn, ModePrompt:
		return true
	}
	return false
}

// Normalize converts a YAML value into a Mode. YAML 1.1 parsers read
// on/off as booleans, so both bool and string forms must be accepted.
// Unknown values normalize to the empty (unset) mode.
func Normalize(v any) Mode {
	switch t := v.(type) {
	case bool:
		if t {
			return ModeOn
		}
		return ModeOff
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "on", "true", "yes":
			return ModeOn
		case "off", "false", "no":
			return ModeOff
		case "prompt":
			return ModePrompt
		}
	}
	return ""
}

// Settings holds the loaded auto-save configuration.
type Settings struct {
	// GlobalMode comes from ~/.vmem/config.yml. Empty when unset.
	GlobalMode Mode

	// ProjectMode comes from ./.vmem.yml. Empty when unset.
	ProjectMode Mode
}

// Effective returns the mode in force: project over global, defaulting
// to off.
func (s *Settings) Effective() Mode {
	if s.ProjectMode != "" {
		return s.ProjectMode
	}
	if s.GlobalMode != "" {
		return s.GlobalMode
	}
	return ModeOff
}

// CanSave reports whether an automatic save may proceed under mode. In
// prompt mode the confirm callback decides; a nil confirm denies.
func CanSave(mode Mode, confirm func() bool) bool {
	switch mode {
	case ModeOn:
		return true
	case ModePrompt:
		if confirm == nil {
			return false
		}
		return confirm()
	default:
		return false
	}
}
