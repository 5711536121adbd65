package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	res := NewValidator(DefaultRules()).Validate(DefaultConfig())
	assert.True(t, res.Valid, "errors: %v", res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "v1", res.RuleVersion)
}

func TestSerializable_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Forces.ChargeStrength = -123.5
	cfg.Viewport.Easing = "ease-in-out"
	cfg.Performance.ThrottleLevel = 2

	data, err := ToSerializable(cfg)
	require.NoError(t, err)

	back, err := FromSerializable(data)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFromSerializable_RejectsUnknownAndInvalid(t *testing.T) {
	_, err := FromSerializable([]byte("forces:\n  nope: 1\n"))
	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)

	_, err = FromSerializable([]byte("forces:\n  charge_strength: 5\n"))
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "forces.charge_strength", cerr.Errors[0].Field)
}

func TestFromSerializable_PartialDocumentKeepsDefaults(t *testing.T) {
	cfg, err := FromSerializable([]byte("dimensions:\n  width: 640\n"))
	require.NoError(t, err)
	assert.Equal(t, 640.0, cfg.Dimensions.Width)
	assert.Equal(t, DefaultConfig().Dimensions.Height, cfg.Dimensions.Height)
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("TASKMAP_WIDTH", "")
	t.Setenv("TASKMAP_HEIGHT", "")
	t.Setenv("TASKMAP_MAX_FRAME_RATE", "")

	path := filepath.Join(t.TempDir(), "nested", "taskmap.yaml")
	cfg := DefaultConfig()
	cfg.SmartSpacing.MinNodeSeparation = 75

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 75.0, loaded.SmartSpacing.MinNodeSeparation)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("TASKMAP_WIDTH", "")
	t.Setenv("TASKMAP_HEIGHT", "")
	t.Setenv("TASKMAP_MAX_FRAME_RATE", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation:\n  alpha_decay: 4\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TASKMAP_WIDTH", "1920")
	t.Setenv("TASKMAP_HEIGHT", "not-a-number")
	t.Setenv("TASKMAP_MAX_FRAME_RATE", "30")
	t.Setenv("TASKMAP_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, 1920.0, cfg.Dimensions.Width)
	assert.Equal(t, 800.0, cfg.Dimensions.Height)
	assert.Equal(t, 30.0, cfg.Performance.MaxFrameRate)
	assert.Equal(t, "debug", LogLevelFromEnv("info"))
}

func TestConfig_Helpers(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 750*time.Millisecond, cfg.Viewport.GetTransitionDuration())
	cfg.Viewport.TransitionDuration = "garbage"
	assert.Equal(t, 750*time.Millisecond, cfg.Viewport.GetTransitionDuration())

	assert.InDelta(t, float64(time.Second/60), float64(cfg.Performance.FrameBudget()), float64(time.Microsecond))
}
