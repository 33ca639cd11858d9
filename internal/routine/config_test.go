package routine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, warnings, err := NewConfig(nil)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 500, cfg.GlobalDelay)
	assert.Equal(t, 15000, cfg.AwaitTimeout)
	assert.Equal(t, " ", cfg.Separator)
	assert.Equal(t, DefaultMessage, cfg.Message)
	assert.False(t, cfg.ContinueOnFailure)
	assert.True(t, cfg.LogResult)
}

func TestNewConfigOverlay(t *testing.T) {
	// numbers decoded from JSON arrive as float64
	cfg, _, err := NewConfig(map[string]any{
		"globalDelay":       float64(100),
		"continueOnFailure": true,
		"message":           "Checkout",
		"separator":         "|",
	})
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.GlobalDelay)
	assert.True(t, cfg.ContinueOnFailure)
	assert.Equal(t, "Checkout", cfg.Message)
	assert.Equal(t, "|", cfg.Separator)
	assert.Equal(t, 15000, cfg.AwaitTimeout)
}

func TestNewConfigRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
	}{
		{"unknown key", map[string]any{"bogus": 1}},
		{"wrong type", map[string]any{"globalDelay": "soon"}},
		{"negative delay", map[string]any{"globalDelay": -1}},
		{"empty separator", map[string]any{"separator": ""}},
		{"zero speed", map[string]any{"displaySpeed": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewConfig(tt.options)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			var se *StepError
			require.ErrorAs(t, err, &se)
			assert.True(t, se.Fatal())
		})
	}
}

func TestNewConfigTutorialMode(t *testing.T) {
	cfg, warnings, err := NewConfig(map[string]any{
		"tutorialMode":     true,
		"displayProgress":  false,
		"keyboardControls": true,
	})
	require.NoError(t, err)
	assert.True(t, cfg.DisplayProgress)
	assert.False(t, cfg.KeyboardControls)
	assert.Len(t, warnings, 2)

	cfg, warnings, err = NewConfig(map[string]any{"tutorialMode": true})
	require.NoError(t, err)
	assert.True(t, cfg.DisplayProgress)
	assert.False(t, cfg.KeyboardControls)
	assert.Empty(t, warnings)

	// viper lowercases keys
	cfg, warnings, err = NewConfig(map[string]any{
		"tutorialmode":    true,
		"displayprogress": "false",
	})
	require.NoError(t, err)
	assert.True(t, cfg.TutorialMode)
	assert.True(t, cfg.DisplayProgress)
	assert.Len(t, warnings, 1)
}

func TestConfigIntervals(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 500*time.Millisecond, cfg.Delay())
	assert.Equal(t, 250*time.Millisecond, cfg.SubInterval())
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 15*time.Second, cfg.Timeout())

	cfg.AwaitInterval = 100
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval())

	cfg.GlobalDelay = 0
	assert.Equal(t, minTick, cfg.SubInterval())
}

func TestConfigTitle(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "[User-Routine]", cfg.Title())
	cfg.Message = "Checkout"
	assert.Equal(t, "[User-Routine] Checkout", cfg.Title())
}

func TestMergeOptions(t *testing.T) {
	base := map[string]any{"globaldelay": 100, "separator": ","}
	merged := MergeOptions(base, map[string]any{"globalDelay": 0})

	assert.Equal(t, map[string]any{"globalDelay": 0, "separator": ","}, merged)
	assert.Equal(t, 100, base["globaldelay"], "base must not change")

	cfg, _, err := NewConfig(merged)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.GlobalDelay)
	assert.Equal(t, ",", cfg.Separator)

	assert.Empty(t, MergeOptions(nil, nil))
}
