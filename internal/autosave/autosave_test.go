package autosave

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  Mode
	}{
		{"string on", "on", ModeOn},
		{"string off", "off", ModeOff},
		{"string prompt", "prompt", ModePrompt},
		{"bool true", true, ModeOn},
		{"bool false", false, ModeOff},
		{"string true", "true", ModeOn},
		{"string false", "false", ModeOff},
		{"string yes", "yes", ModeOn},
		{"string no", "no", ModeOff},
		{"mixed case", "ON", ModeOn},
		{"padded", "  prompt  ", ModePrompt},
		{"unknown string", "sometimes", Mode("")},
		{"nil", nil, Mode("")},
		{"number", 42, Mode("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestModeValid(t *testing.T) {
	assert.True(t, ModeOff.Valid())
	assert.True(t, ModeOn.Valid())
	assert.True(t, ModePrompt.Valid())
	assert.False(t, Mode("").Valid())
	assert.False(t, Mode("auto").Valid())
}

func TestEffective(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		want     Mode
	}{
		{"both unset defaults off", Settings{}, ModeOff},
		{"global only", Settings{GlobalMode: ModeOn}, ModeOn},
		{"project only", Settings{ProjectMode: ModePrompt}, ModePrompt},
		{"project overrides global", Settings{GlobalMode: ModeOn, ProjectMode: ModeOff}, ModeOff},
		{"project prompt over global off", Settings{GlobalMode: ModeOff, ProjectMode: ModePrompt}, ModePrompt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.settings.Effective())
		})
	}
}

func TestCanSave(t *testing.T) {
	yes := func() bool { return true }
	no := func() bool { return false }

	assert.True(t, CanSave(ModeOn, nil))
	assert.False(t, CanSave(ModeOff, yes))
	assert.True(t, CanSave(ModePrompt, yes))
	assert.False(t, CanSave(ModePrompt, no))
	assert.False(t, CanSave(ModePrompt, nil))
	assert.False(t, CanSave(Mode(""), yes))
}
