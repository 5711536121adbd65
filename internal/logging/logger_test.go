package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestGet_UsesInstalledBase(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetBase(zap.New(core))
	t.Cleanup(func() { SetBase(nil) })

	Get(CategorySimulation).Warn("unknown node %q", "n1")
	SimulationDebug("tick %d", 3)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "unknown node \"n1\"", entries[0].Message)
	assert.Equal(t, "simulation", entries[0].LoggerName)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
}

func TestCategoryFilter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetBase(zap.New(core))
	SetCategories(map[string]bool{"force": false})
	t.Cleanup(func() { SetBase(nil) })

	assert.False(t, IsCategoryEnabled(CategoryForce))
	assert.True(t, IsCategoryEnabled(CategoryViewport))

	Get(CategoryForce).Info("hidden")
	Viewport("shown")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "shown", logs.All()[0].Message)
}

func TestWith_CarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetBase(zap.New(core))
	t.Cleanup(func() { SetBase(nil) })

	Get(CategoryEngine).With("session", "abc").Info("started")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "abc", logs.All()[0].ContextMap()["session"])
}

func TestInitialize_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskmap.log")
	require.NoError(t, Initialize(Options{Level: "debug", JSON: true, OutputPaths: []string{path}}))
	t.Cleanup(func() { SetBase(nil) })

	Get(CategoryBoot).Info("hello")
	assert.NoError(t, Sync())
	assert.FileExists(t, path)
}

func TestNoopBeforeInitialize(t *testing.T) {
	SetBase(nil)
	assert.NotPanics(t, func() {
		Get(CategoryTracker).Error("nothing listens %d", 1)
	})
}
