package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffForTransition(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	b.Forces.ChargeStrength = -50
	b.Viewport.Easing = "linear"

	changes := DiffForTransition(a, b)

	require.Len(t, changes, 2)
	assert.Equal(t, FieldChange{Field: "forces.charge_strength", From: -300.0, To: -50.0}, changes[0])
	assert.Equal(t, FieldChange{Field: "viewport.easing", From: "ease-out", To: "linear"}, changes[1])
	assert.Empty(t, DiffForTransition(a, a))
}

func TestRequiresReheat(t *testing.T) {
	a := DefaultConfig()

	physics := a
	physics.SmartSpacing.ClusterSpacing = 90
	assert.True(t, RequiresReheat(DiffForTransition(a, physics)))

	camera := a
	camera.Viewport.MaxZoom = 4
	camera.Performance.ThrottleLevel = 1
	assert.False(t, RequiresReheat(DiffForTransition(a, camera)))
}

func TestPatchFromYAML(t *testing.T) {
	p, err := PatchFromYAML([]byte("forces:\n  theta: 1.1\nfocus:\n  enabled: false\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"focus.enabled", "forces.theta"}, p.Keys())
	assert.Equal(t, 1.1, p["forces.theta"])
}

func TestPatch_ConflictingKeys(t *testing.T) {
	v := NewValidator(DefaultRules())
	_, res := v.ValidatePatch(DefaultConfig(), Patch{"forces": 1, "forces.theta": 1.0})
	assert.False(t, res.Valid)
}

func TestKnownFields(t *testing.T) {
	known := KnownFields()
	assert.True(t, known["performance.throttle_level"])
	assert.True(t, known["smart_spacing.cluster_by"])
	assert.False(t, known["forces"])
}
