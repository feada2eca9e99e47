package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/menta2k/listing-studio/pkg/processing"
	"github.com/menta2k/listing-studio/pkg/types"
)

// Config holds the application configuration
type Config struct {
	Output  OutputConfig  `json:"output"`
	Batch   BatchConfig   `json:"batch"`
	Preview PreviewConfig `json:"preview"`
	Vision  VisionConfig  `json:"vision"`
	Server  ServerConfig  `json:"server"`
	Log     LogConfig     `json:"log"`
}

// OutputConfig selects the encoding of applied and batched results
type OutputConfig struct {
	Format   string  `json:"format"`
	Quality  float64 `json:"quality"`
	Lossless bool    `json:"lossless"`
	Prefix   string  `json:"prefix"`
}

// EncodeOptions converts the output section for the processor.
func (o OutputConfig) EncodeOptions() (processing.EncodeOptions, error) {
	f, err := types.ParseFormat(o.Format)
	if err != nil {
		return processing.EncodeOptions{}, err
	}
	return processing.EncodeOptions{Format: f, Quality: processing.Quality(o.Quality), Lossless: o.Lossless}, nil
}

// BatchConfig bounds batch concurrency
type BatchConfig struct {
	MaxWorkers int `json:"max_workers"`
}

// PreviewConfig holds the default preview width
type PreviewConfig struct {
	Width int `json:"width"`
}

// VisionConfig holds configuration for wall detection
type VisionConfig struct {
	Enabled     bool     `json:"enabled"`
	Backend     string   `json:"backend"`
	URL         string   `json:"url"`
	Model       string   `json:"model"`
	SendSize    int      `json:"send_size"`
	SendQuality int      `json:"send_quality"`
	Timeout     Duration `json:"timeout"`
}

// ServerConfig holds the local HTTP backend settings
type ServerConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	MaxUploadMB int    `json:"max_upload_mb"`
	OpenBrowser bool   `json:"open_browser"`
}

// LogConfig holds logging settings; an empty File logs to the console only
type LogConfig struct {
	Level      string `json:"level"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Duration is a time.Duration written as a string like "90s" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n float64
		if err2 := json.Unmarshal(b, &n); err2 != nil {
			return fmt.Errorf("duration must be a string or seconds: %w", err)
		}
		*d = Duration(time.Duration(n * float64(time.Second)))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Format:  "png",
			Quality: 0.92,
			Prefix:  "listing-",
		},
		Batch: BatchConfig{
			MaxWorkers: 0,
		},
		Preview: PreviewConfig{
			Width: 800,
		},
		Vision: VisionConfig{
			Enabled:     false,
			Backend:     "ollama",
			URL:         "http://localhost:11434",
			Model:       "qwen2.5vl:7b",
			SendSize:    1024,
			SendQuality: 85,
			Timeout:     Duration(2 * time.Minute),
		},
		Server: ServerConfig{
			Host:        "localhost",
			Port:        0,
			MaxUploadMB: 64,
			OpenBrowser: true,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 2,
			MaxAgeDays: 28,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Missing fields keep
// their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads filename when it exists and returns the defaults otherwise.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadFromFile(filename)
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := types.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}

	if c.Output.Quality < 0 || c.Output.Quality > 1 {
		return fmt.Errorf("output.quality must be between 0 and 1")
	}

	if c.Batch.MaxWorkers < 0 {
		return fmt.Errorf("batch.max_workers cannot be negative")
	}

	if c.Preview.Width < 1 {
		return fmt.Errorf("preview.width must be positive")
	}

	if c.Vision.Enabled {
		switch c.Vision.Backend {
		case "ollama", "llamacpp":
		default:
			return fmt.Errorf("vision.backend must be ollama or llamacpp, got %q", c.Vision.Backend)
		}
		if c.Vision.URL == "" || c.Vision.Model == "" {
			return fmt.Errorf("vision.url and vision.model are required when vision is enabled")
		}
	}

	if c.Vision.SendQuality < 1 || c.Vision.SendQuality > 100 {
		return fmt.Errorf("vision.send_quality must be between 1 and 100")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535")
	}

	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of trace, debug, info, warn, error", c.Log.Level)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "listing-studio", "config.json")
}
