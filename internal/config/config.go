package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	VariantPrompt = "prompt"
	VariantUpload = "upload"
	VariantOpenAI = "openai"

	PlaybackOpenAI  = "openai"
	PlaybackCommand = "command"
	PlaybackNone    = "none"
)

// Config stores runtime configuration for the widget and the relay.
type Config struct {
	Completion CompletionConfig `yaml:"completion"`
	Deepgram   DeepgramConfig   `yaml:"deepgram"`
	Audio      AudioConfig      `yaml:"audio"`
	Capture    CaptureConfig    `yaml:"capture"`
	Playback   PlaybackConfig   `yaml:"playback"`
	Log        LogConfig        `yaml:"log"`
	Relay      RelayConfig      `yaml:"relay"`
}

type CompletionConfig struct {
	Variant      string        `yaml:"variant"`
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	SystemPrompt string        `yaml:"system_prompt"`
	RulesFile    string        `yaml:"rules_file"`
	Timeout      time.Duration `yaml:"timeout"`
}

type DeepgramConfig struct {
	APIKey      string `yaml:"api_key"`
	APIBaseURL  string `yaml:"api_base_url"`
	Model       string `yaml:"model"`
	SmartFormat bool   `yaml:"smart_format"`
}

type AudioConfig struct {
	Backend         string `yaml:"backend"`
	RecorderCommand string `yaml:"recorder_command"`
	InputFormat     string `yaml:"input_format"`
	InputDevice     string `yaml:"input_device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
}

type CaptureConfig struct {
	Language       string        `yaml:"language"`
	ChunkSize      int           `yaml:"chunk_size"`
	StreamingGrace time.Duration `yaml:"streaming_grace"`
	MaxRestarts       int           `yaml:"max_restarts"`
	RestartBackoff    time.Duration `yaml:"restart_backoff"`
	MaxRestartBackoff time.Duration `yaml:"max_restart_backoff"`
	ClearOnError      bool          `yaml:"clear_on_error"`
}

type PlaybackConfig struct {
	Backend       string `yaml:"backend"`
	Voice         string `yaml:"voice"`
	Model         string `yaml:"model"`
	PlayerCommand string `yaml:"player_command"`
	SpeakCommand  string `yaml:"speak_command"`
	SpeakErrors   bool   `yaml:"speak_errors"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RelayConfig struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"`
}

// Load resolves configuration from defaults, an optional YAML file
// (VOICEWIDGET_CONFIG) and environment variables, in increasing priority.
// A .env file is loaded into the environment first when present.
func Load() (Config, error) {
	if err := loadDotEnv(envOrDefault("VOICEWIDGET_ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}

	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("VOICEWIDGET_CONFIG")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.applyEnv()
	cfg.sanitize()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Completion: CompletionConfig{
			Variant: VariantPrompt,
			BaseURL: "http://localhost:8080",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		Deepgram: DeepgramConfig{
			APIBaseURL:  "https://api.deepgram.com/v1",
			Model:       "nova-2",
			SmartFormat: true,
		},
		Audio: AudioConfig{
			Backend:         "ffmpeg",
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      16000,
			Channels:        1,
		},
		Capture: CaptureConfig{
			Language:       "en-US",
			ChunkSize:      4096,
			StreamingGrace: 250 * time.Millisecond,
			MaxRestarts:       5,
			RestartBackoff:    250 * time.Millisecond,
			MaxRestartBackoff: 5 * time.Second,
		},
		Playback: PlaybackConfig{
			Backend:       PlaybackOpenAI,
			Voice:         "alloy",
			Model:         "tts-1",
			PlayerCommand: "ffplay -nodisp -autoexit -loglevel error -i -",
			SpeakCommand:  "espeak-ng",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Relay: RelayConfig{
			Addr: ":8080",
		},
	}
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %q: %w", path, err)
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Completion.Variant = envOrDefault("VOICEWIDGET_COMPLETION_VARIANT", c.Completion.Variant)
	c.Completion.BaseURL = envOrDefault("VOICEWIDGET_COMPLETION_URL", c.Completion.BaseURL)
	c.Completion.APIKey = firstNonEmpty(os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_KEY"), c.Completion.APIKey)
	c.Completion.Model = envOrDefault("VOICEWIDGET_OPENAI_MODEL", c.Completion.Model)
	c.Completion.SystemPrompt = envOrDefault("VOICEWIDGET_SYSTEM_PROMPT", c.Completion.SystemPrompt)
	c.Completion.RulesFile = envOrDefault("VOICEWIDGET_PROMPT_RULES", c.Completion.RulesFile)
	c.Completion.Timeout = envOrDefaultMillis("VOICEWIDGET_COMPLETION_TIMEOUT_MS", c.Completion.Timeout)

	c.Deepgram.APIKey = envOrDefault("DEEPGRAM_API_KEY", c.Deepgram.APIKey)
	c.Deepgram.APIBaseURL = envOrDefault("DEEPGRAM_API_BASE", c.Deepgram.APIBaseURL)
	c.Deepgram.Model = envOrDefault("DEEPGRAM_MODEL", c.Deepgram.Model)
	c.Deepgram.SmartFormat = envOrDefaultBool("DEEPGRAM_SMART_FORMAT", c.Deepgram.SmartFormat)

	c.Audio.Backend = envOrDefault("VOICEWIDGET_AUDIO_BACKEND", c.Audio.Backend)
	c.Audio.RecorderCommand = envOrDefault("VOICEWIDGET_FFMPEG_COMMAND", c.Audio.RecorderCommand)
	c.Audio.InputFormat = envOrDefault("VOICEWIDGET_AUDIO_INPUT_FORMAT", c.Audio.InputFormat)
	c.Audio.InputDevice = envOrDefault("VOICEWIDGET_AUDIO_INPUT_DEVICE", c.Audio.InputDevice)
	c.Audio.SampleRate = envOrDefaultInt("VOICEWIDGET_SAMPLE_RATE", c.Audio.SampleRate)
	c.Audio.Channels = envOrDefaultInt("VOICEWIDGET_CHANNELS", c.Audio.Channels)

	c.Capture.Language = envOrDefault("VOICEWIDGET_LANGUAGE", c.Capture.Language)
	c.Capture.ChunkSize = envOrDefaultInt("VOICEWIDGET_AUDIO_CHUNK_SIZE", c.Capture.ChunkSize)
	c.Capture.StreamingGrace = envOrDefaultMillis("VOICEWIDGET_STREAMING_GRACE_MS", c.Capture.StreamingGrace)
	c.Capture.MaxRestarts = envOrDefaultInt("VOICEWIDGET_MAX_RESTARTS", c.Capture.MaxRestarts)
	c.Capture.RestartBackoff = envOrDefaultMillis("VOICEWIDGET_RESTART_BACKOFF_MS", c.Capture.RestartBackoff)
	c.Capture.MaxRestartBackoff = envOrDefaultMillis("VOICEWIDGET_MAX_RESTART_BACKOFF_MS", c.Capture.MaxRestartBackoff)
	c.Capture.ClearOnError = envOrDefaultBool("VOICEWIDGET_CLEAR_ON_CAPTURE_ERROR", c.Capture.ClearOnError)

	c.Playback.Backend = envOrDefault("VOICEWIDGET_PLAYBACK", c.Playback.Backend)
	c.Playback.Voice = envOrDefault("VOICEWIDGET_TTS_VOICE", c.Playback.Voice)
	c.Playback.Model = envOrDefault("VOICEWIDGET_TTS_MODEL", c.Playback.Model)
	c.Playback.PlayerCommand = envOrDefault("VOICEWIDGET_PLAYER_COMMAND", c.Playback.PlayerCommand)
	c.Playback.SpeakCommand = envOrDefault("VOICEWIDGET_SPEAK_COMMAND", c.Playback.SpeakCommand)
	c.Playback.SpeakErrors = envOrDefaultBool("VOICEWIDGET_SPEAK_ERRORS", c.Playback.SpeakErrors)

	c.Log.Level = envOrDefault("VOICEWIDGET_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOrDefault("VOICEWIDGET_LOG_FORMAT", c.Log.Format)

	c.Relay.Addr = envOrDefault("VOICEWIDGET_RELAY_ADDR", c.Relay.Addr)
	c.Relay.Token = envOrDefault("VOICEWIDGET_RELAY_TOKEN", c.Relay.Token)
}

// sanitize replaces out-of-range values with defaults.
func (c *Config) sanitize() {
	defaults := Defaults()

	c.Completion.Variant = strings.ToLower(c.Completion.Variant)
	c.Completion.BaseURL = strings.TrimRight(c.Completion.BaseURL, "/")
	if c.Completion.Timeout <= 0 {
		c.Completion.Timeout = defaults.Completion.Timeout
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = defaults.Audio.SampleRate
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = defaults.Audio.Channels
	}
	if c.Capture.ChunkSize < 256 {
		c.Capture.ChunkSize = defaults.Capture.ChunkSize
	}
	if c.Capture.StreamingGrace < 0 {
		c.Capture.StreamingGrace = defaults.Capture.StreamingGrace
	}
	if c.Capture.MaxRestarts < 0 {
		c.Capture.MaxRestarts = defaults.Capture.MaxRestarts
	}
	if c.Capture.RestartBackoff <= 0 {
		c.Capture.RestartBackoff = defaults.Capture.RestartBackoff
	}
	if c.Capture.MaxRestartBackoff < c.Capture.RestartBackoff {
		c.Capture.MaxRestartBackoff = max(defaults.Capture.MaxRestartBackoff, c.Capture.RestartBackoff)
	}
	c.Playback.Backend = strings.ToLower(c.Playback.Backend)
}

func (c Config) validate() error {
	switch c.Completion.Variant {
	case VariantPrompt, VariantUpload, VariantOpenAI:
	default:
		return fmt.Errorf("unknown completion variant %q", c.Completion.Variant)
	}
	switch c.Playback.Backend {
	case PlaybackOpenAI, PlaybackCommand, PlaybackNone:
	default:
		return fmt.Errorf("unknown playback backend %q", c.Playback.Backend)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
