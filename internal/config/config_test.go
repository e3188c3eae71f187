package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/beatsim/internal/dynamo"
	"github.com/san-kum/beatsim/internal/timestep"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "fitzhugh_nagumo", cfg.Cell)
	assert.Equal(t, dynamo.Interval{T0: 0, T1: DefaultDuration}, cfg.Interval())
}

func TestPresetsAreValid(t *testing.T) {
	names := ListPresets()
	require.NotEmpty(t, names)
	for _, name := range names {
		cfg := GetPreset(name)
		require.NotNil(t, cfg, name)
		assert.NoError(t, cfg.Validate(), name)
		assert.Equal(t, name, cfg.Name)
	}
	assert.Nil(t, GetPreset("nonexistent"))
}

func TestGetPresetReturnsCopy(t *testing.T) {
	cfg := GetPreset("cable")
	cfg.Stimulus[0].Amplitude = -1
	cfg.Probes[0].X = 99
	assert.Equal(t, 50.0, Presets["cable"].Stimulus[0].Amplitude)
	assert.Equal(t, 2.5, Presets["cable"].Probes[0].X)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown cell", func(c *Config) { c.Cell = "hodgkin_huxley" }},
		{"one node", func(c *Config) { c.Grid.Nx = 1 }},
		{"theta above one", func(c *Config) { c.Splitting.Theta = 1.5 }},
		{"zero dt", func(c *Config) { c.Time.Dt = 0 }},
		{"empty interval", func(c *Config) { c.Time.End = c.Time.Start }},
		{"unknown scheme", func(c *Config) { c.ODE.Scheme = "leapfrog" }},
		{"flat sheet", func(c *Config) { c.Grid.Ny = 5; c.Grid.Ly = 0 }},
		{"monodomain constraint", func(c *Config) { c.PDE.Constraint = true }},
		{"unordered schedule", func(c *Config) {
			c.Time.Schedule = []timestep.Switch{{At: 0, Dt: 0.1}, {At: 0, Dt: 0.05}}
		}},
		{"zero stimulus duration", func(c *Config) {
			c.Stimulus = []StimulusConfig{{Amplitude: 1}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), dynamo.ErrConfiguration)
		})
	}
}

func TestScheduleSelection(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, timestep.Constant(DefaultDt), cfg.Schedule())

	cfg.Time.Schedule = []timestep.Switch{{At: 0, Dt: 0.1}, {At: 1, Dt: 0.2}}
	assert.Equal(t, timestep.Variable(cfg.Time.Schedule...), cfg.Schedule())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.yaml")
	cfg := GetPreset("sheet")
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cell: passive\ntime:\n  end: 2\n  dt: 0.1\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "passive", cfg.Cell)
	assert.Equal(t, 2.0, cfg.Time.End)
	assert.Equal(t, DefaultNodes, cfg.Grid.Nx)
	assert.Equal(t, "rk4", cfg.ODE.Scheme)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("splitting:\n  theta: 2\n"), 0644))

	_, err := Load(path)
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)
}
