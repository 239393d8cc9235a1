package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names for required secrets
const (
	EnvDiscordToken = "DISCORD_TOKEN"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config represents the complete bot configuration
type Config struct {
	Discord       DiscordConfig       `yaml:"discord"`
	Audio         AudioConfig         `yaml:"audio"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Summary       SummaryConfig       `yaml:"summary"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// DiscordConfig contains chat platform configuration
type DiscordConfig struct {
	CommandPrefix string `yaml:"command_prefix"`
}

// AudioConfig contains audio capture parameters
type AudioConfig struct {
	SampleRate     int    `yaml:"sample_rate"`
	Channels       int    `yaml:"channels"`
	SilenceTimeout int    `yaml:"silence_timeout_ms"` // milliseconds
	TempDir        string `yaml:"temp_dir"`
}

// TranscriptionConfig contains speech-to-text API configuration
type TranscriptionConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Timeout     int    `yaml:"timeout"` // seconds
	MaxAttempts int    `yaml:"max_attempts"`
}

// SummaryConfig contains summarization API configuration
type SummaryConfig struct {
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Timeout  int    `yaml:"timeout"` // seconds
	MinWords int    `yaml:"min_words"`
}

// HTTPConfig contains monitoring HTTP server configuration
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Secrets holds credentials loaded from the environment
type Secrets struct {
	DiscordToken string
	OpenAIAPIKey string
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// LoadSecrets reads required credentials from the environment, honoring a
// .env file in the working directory when present
func LoadSecrets() (*Secrets, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	secrets := &Secrets{
		DiscordToken: os.Getenv(EnvDiscordToken),
		OpenAIAPIKey: os.Getenv(EnvOpenAIAPIKey),
	}

	if secrets.DiscordToken == "" {
		return nil, fmt.Errorf("%s is required", EnvDiscordToken)
	}

	if secrets.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%s is required", EnvOpenAIAPIKey)
	}

	return secrets, nil
}

// applyDefaults fills unset optional fields
func (c *Config) applyDefaults() {
	if c.Discord.CommandPrefix == "" {
		c.Discord.CommandPrefix = "!"
	}

	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 48000
	}

	if c.Audio.Channels == 0 {
		c.Audio.Channels = 2
	}

	if c.Audio.SilenceTimeout == 0 {
		c.Audio.SilenceTimeout = 100
	}

	if c.Audio.TempDir == "" {
		c.Audio.TempDir = os.TempDir()
	}

	if c.Transcription.Timeout == 0 {
		c.Transcription.Timeout = 60
	}

	if c.Transcription.MaxAttempts == 0 {
		c.Transcription.MaxAttempts = 3
	}

	if c.Summary.Timeout == 0 {
		c.Summary.Timeout = 30
	}

	if c.Summary.MinWords == 0 {
		c.Summary.MinWords = 30
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Discord.Validate(); err != nil {
		return fmt.Errorf("discord config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Summary.Validate(); err != nil {
		return fmt.Errorf("summary config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates Discord configuration
func (d *DiscordConfig) Validate() error {
	if d.CommandPrefix == "" {
		return fmt.Errorf("command_prefix cannot be empty")
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 48000 {
		return fmt.Errorf("sample_rate must be 48000 Hz for Discord voice, got %d", a.SampleRate)
	}

	if a.Channels != 2 {
		return fmt.Errorf("channels must be 2 (stereo) for Discord voice, got %d", a.Channels)
	}

	if a.SilenceTimeout < 20 || a.SilenceTimeout > 5000 {
		return fmt.Errorf("silence_timeout_ms must be between 20 and 5000, got %d", a.SilenceTimeout)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", t.MaxAttempts)
	}

	return nil
}

// Validate validates summary configuration
func (s *SummaryConfig) Validate() error {
	if s.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", s.Timeout)
	}

	if s.MinWords < 1 {
		return fmt.Errorf("min_words must be at least 1, got %d", s.MinWords)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetSilenceTimeout returns the silence timeout as a time.Duration
func (a *AudioConfig) GetSilenceTimeout() time.Duration {
	return time.Duration(a.SilenceTimeout) * time.Millisecond
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetTimeoutDuration returns the summary timeout as a time.Duration
func (s *SummaryConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}
