// Package config loads the application configuration from a JSON file with
// environment overrides (.env supported).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	API      APIConfig      `json:"api"`
	Detector DetectorConfig `json:"detector"`
	Local    LocalConfig    `json:"local"`
	Image    ImageConfig    `json:"image"`
}

// APIConfig holds backend connection settings.
type APIConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	TokenPath      string `json:"token_path"`
}

// DetectorConfig holds on-device detection settings. Detection is optional;
// with no model path configured the pipeline runs without it.
type DetectorConfig struct {
	ModelPath    string `json:"model_path"`
	MetadataPath string `json:"metadata_path"`
	// ConfidenceThreshold is deliberately permissive by default; its
	// calibration is provisional and belongs in config, not code.
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

// LocalConfig holds settings for the local model backends.
type LocalConfig struct {
	Backend string `json:"backend"` // remote | ollama | llamacpp
	URL     string `json:"url"`
	Model   string `json:"model"`
}

// ImageConfig holds upload encoding settings.
type ImageConfig struct {
	JPEGQuality  int `json:"jpeg_quality"`
	MaxUploadDim int `json:"max_upload_dim"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 60,
		},
		Detector: DetectorConfig{
			ConfidenceThreshold: 0.1,
		},
		Local: LocalConfig{
			Backend: "remote",
			URL:     "http://localhost:11434",
			Model:   "llava",
		},
		Image: ImageConfig{
			JPEGQuality:  80,
			MaxUploadDim: 1536,
		},
	}
}

// LoadFromFile loads configuration from a JSON file over the defaults.
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

// Load reads the config file when present, then applies environment
// overrides. A missing file just means defaults.
func Load(filename string) (*Config, error) {
	config := Default()
	if filename != "" {
		loaded, err := LoadFromFile(filename)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else {
			config = loaded
		}
	}
	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overlays GLASSCLOSET_* environment variables, loading a .env
// file first if one exists.
func (c *Config) applyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("GLASSCLOSET_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("GLASSCLOSET_TOKEN_PATH"); v != "" {
		c.API.TokenPath = v
	}
	if v := os.Getenv("GLASSCLOSET_BACKEND"); v != "" {
		c.Local.Backend = v
	}
	if v := os.Getenv("GLASSCLOSET_MODEL_URL"); v != "" {
		c.Local.URL = v
	}
	if v := os.Getenv("GLASSCLOSET_MODEL"); v != "" {
		c.Local.Model = v
	}
	if v := os.Getenv("GLASSCLOSET_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Detector.ConfidenceThreshold = f
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url cannot be empty")
	}
	if c.API.TimeoutSeconds < 1 {
		return fmt.Errorf("api.timeout_seconds must be positive")
	}
	if c.Detector.ConfidenceThreshold < 0 || c.Detector.ConfidenceThreshold > 1 {
		return fmt.Errorf("detector.confidence_threshold must be between 0 and 1")
	}
	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return fmt.Errorf("image.jpeg_quality must be between 1 and 100")
	}
	if c.Image.MaxUploadDim < 0 {
		return fmt.Errorf("image.max_upload_dim cannot be negative")
	}
	switch c.Local.Backend {
	case "remote", "ollama", "llamacpp":
	default:
		return fmt.Errorf("local.backend must be remote, ollama, or llamacpp")
	}
	return nil
}

// GetConfigPath returns the default configuration file path.
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "glasscloset", "config.json")
}
