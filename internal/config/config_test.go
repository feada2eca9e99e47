package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/listing-studio/pkg/types"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.Output.Format = "webp"
	cfg.Vision.Timeout = Duration(45 * time.Second)
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"batch": {"max_workers": 3}, "vision": {"timeout": 30}}`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Batch.MaxWorkers)
	assert.Equal(t, 800, cfg.Preview.Width)
	assert.Equal(t, "png", cfg.Output.Format)
	assert.Equal(t, Duration(30*time.Second), cfg.Vision.Timeout)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"output": `), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"format", func(c *Config) { c.Output.Format = "gif" }},
		{"quality", func(c *Config) { c.Output.Quality = 1.5 }},
		{"workers", func(c *Config) { c.Batch.MaxWorkers = -1 }},
		{"preview", func(c *Config) { c.Preview.Width = 0 }},
		{"backend", func(c *Config) { c.Vision.Enabled = true; c.Vision.Backend = "cloud" }},
		{"model", func(c *Config) { c.Vision.Enabled = true; c.Vision.Model = "" }},
		{"send quality", func(c *Config) { c.Vision.SendQuality = 0 }},
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }},
		{"level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEncodeOptions(t *testing.T) {
	opts, err := OutputConfig{Format: "jpg", Quality: 0.8}.EncodeOptions()
	require.NoError(t, err)
	assert.Equal(t, types.FormatJPEG, opts.Format)
	require.NotNil(t, opts.Quality)
	assert.Equal(t, 0.8, *opts.Quality)

	opts, err = OutputConfig{Format: "jpg"}.EncodeOptions()
	require.NoError(t, err)
	require.NotNil(t, opts.Quality)
	assert.Zero(t, *opts.Quality)

	_, err = OutputConfig{Format: "tiff"}.EncodeOptions()
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "config.json", filepath.Base(GetConfigPath()))
}
