// Package config loads go-livetranslate configuration from YAML, .env and the
// process environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-livetranslate/internal/httpc"
)

// Default configuration values.
const (
	DefaultModel            = "models/gemini-2.0-flash-exp"
	DefaultVoice            = "Kore"
	DefaultInputSampleRate  = 16000
	DefaultOutputSampleRate = 24000
	DefaultFrameSize        = 4096
	DefaultWebAddr          = ":8080"

	// GenerativeLanguageScope is the OAuth scope used with Application Default Credentials.
	GenerativeLanguageScope = "https://www.googleapis.com/auth/generative-language"
)

// Config represents the complete service configuration.
type Config struct {
	Gemini  GeminiConfig  `yaml:"gemini"`
	Audio   AudioConfig   `yaml:"audio"`
	Session SessionConfig `yaml:"session"`
	Web     WebConfig     `yaml:"web"`
	Logging LoggingConfig `yaml:"logging"`
}

// GeminiConfig configures the remote translation session.
type GeminiConfig struct {
	// APIKey is never read from YAML; it comes from GOOGLE_API_KEY or API_KEY.
	APIKey   string `yaml:"-"`
	Model    string `yaml:"model"`
	Voice    string `yaml:"voice"`
	Endpoint string `yaml:"endpoint"`
	UseADC   bool   `yaml:"use_adc"`
}

// AudioConfig contains capture and playback parameters.
type AudioConfig struct {
	Backend          string `yaml:"backend"`
	InputSampleRate  int    `yaml:"input_sample_rate"`
	OutputSampleRate int    `yaml:"output_sample_rate"`
	FrameSize        int    `yaml:"frame_size"`
	Device           string `yaml:"device"`
	InputFile        string `yaml:"input_file"`
	SendQueue        int    `yaml:"send_queue"`
}

// SessionConfig holds the default language pair.
type SessionConfig struct {
	SourceLanguage string        `yaml:"source_language"`
	TargetLanguage string        `yaml:"target_language"`
	Transcription  bool          `yaml:"transcription"`
	VolumeInterval time.Duration `yaml:"volume_interval"`
}

// WebConfig contains dashboard server configuration.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Gemini: GeminiConfig{
			Model: DefaultModel,
			Voice: DefaultVoice,
		},
		Audio: AudioConfig{
			Backend:          "auto",
			InputSampleRate:  DefaultInputSampleRate,
			OutputSampleRate: DefaultOutputSampleRate,
			FrameSize:        DefaultFrameSize,
			SendQueue:        8,
		},
		Session: SessionConfig{
			SourceLanguage: "sw",
			TargetLanguage: "en",
			VolumeInterval: 50 * time.Millisecond,
		},
		Web: WebConfig{
			Address: DefaultWebAddr,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the optional YAML file at path, then applies
// .env and environment overrides. A missing .env file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() {
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	} else if key := os.Getenv("API_KEY"); key != "" {
		c.Gemini.APIKey = key
	}
	setString(&c.Gemini.Model, "GEMINI_MODEL")
	setString(&c.Gemini.Voice, "GEMINI_VOICE")
	setString(&c.Session.SourceLanguage, "SOURCE_LANG")
	setString(&c.Session.TargetLanguage, "TARGET_LANG")
	setString(&c.Audio.Backend, "AUDIO_BACKEND")
	setString(&c.Audio.InputFile, "AUDIO_INPUT_FILE")
	setString(&c.Logging.Level, "LOG_LEVEL")
	if addr := os.Getenv("WEB_ADDR"); addr != "" {
		c.Web.Address = addr
		c.Web.Enabled = true
	}
	if v, err := strconv.ParseBool(os.Getenv("GEMINI_USE_ADC")); err == nil {
		c.Gemini.UseADC = v
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// Validate checks the configuration for errors.
// A missing credential is not a validation error; the translator reports it.
func (c *Config) Validate() error {
	if c.Audio.InputSampleRate <= 0 {
		return fmt.Errorf("input_sample_rate must be positive, got %d", c.Audio.InputSampleRate)
	}
	if c.Audio.OutputSampleRate <= 0 {
		return fmt.Errorf("output_sample_rate must be positive, got %d", c.Audio.OutputSampleRate)
	}
	if c.Audio.FrameSize < 256 {
		return fmt.Errorf("frame_size must be at least 256, got %d", c.Audio.FrameSize)
	}
	if c.Audio.SendQueue <= 0 {
		return fmt.Errorf("send_queue must be positive, got %d", c.Audio.SendQueue)
	}
	if c.Session.VolumeInterval <= 0 {
		return fmt.Errorf("volume_interval must be positive, got %v", c.Session.VolumeInterval)
	}
	if c.Gemini.Model == "" {
		return errors.New("gemini model is required")
	}
	return nil
}

// TokenSource returns a Google ADC token source when UseADC is set, or nil.
func (c *Config) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	if !c.Gemini.UseADC {
		return nil, nil
	}
	ts, err := google.DefaultTokenSource(httpc.OAuthContext(ctx), GenerativeLanguageScope)
	if err != nil {
		return nil, fmt.Errorf("failed to load application default credentials: %w", err)
	}
	return ts, nil
}
