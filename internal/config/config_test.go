package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VOICEWIDGET_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("VOICEWIDGET_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Completion.Variant != VariantPrompt || cfg.Completion.BaseURL != "http://localhost:8080" {
		t.Fatalf("unexpected completion defaults: %+v", cfg.Completion)
	}
	if cfg.Capture.Language != "en-US" {
		t.Fatalf("unexpected language: %q", cfg.Capture.Language)
	}
	if cfg.Completion.Timeout != time.Minute {
		t.Fatalf("unexpected timeout: %s", cfg.Completion.Timeout)
	}
	if cfg.Capture.ClearOnError {
		t.Fatalf("expected transcript to be kept on capture errors by default")
	}
}

func TestLoadYAMLThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widget.yaml")
	contents := `
completion:
  variant: upload
  base_url: http://yaml.local:9000/
  timeout: 5s
capture:
  language: de-DE
  max_restarts: 2
  max_restart_backoff: 3s
playback:
  backend: command
  speak_command: ${TEST_SPEAK_BIN}
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	t.Setenv("VOICEWIDGET_ENV_FILE", "")
	t.Setenv("VOICEWIDGET_CONFIG", path)
	t.Setenv("TEST_SPEAK_BIN", "/usr/bin/say")
	t.Setenv("VOICEWIDGET_LANGUAGE", "fr-FR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Completion.Variant != VariantUpload {
		t.Fatalf("expected yaml variant, got %q", cfg.Completion.Variant)
	}
	if cfg.Completion.BaseURL != "http://yaml.local:9000" {
		t.Fatalf("expected trimmed yaml base url, got %q", cfg.Completion.BaseURL)
	}
	if cfg.Completion.Timeout != 5*time.Second {
		t.Fatalf("expected yaml timeout, got %s", cfg.Completion.Timeout)
	}
	if cfg.Capture.Language != "fr-FR" {
		t.Fatalf("expected env to win over yaml, got %q", cfg.Capture.Language)
	}
	if cfg.Capture.MaxRestarts != 2 || cfg.Capture.MaxRestartBackoff != 3*time.Second {
		t.Fatalf("expected yaml restart settings, got %+v", cfg.Capture)
	}
	if cfg.Playback.Backend != PlaybackCommand || cfg.Playback.SpeakCommand != "/usr/bin/say" {
		t.Fatalf("unexpected playback config: %+v", cfg.Playback)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Fatalf("expected default sample rate to survive yaml merge, got %d", cfg.Audio.SampleRate)
	}
}

func TestLoadRespectsEnvOverrides(t *testing.T) {
	t.Setenv("VOICEWIDGET_ENV_FILE", "")
	t.Setenv("VOICEWIDGET_CONFIG", "")
	t.Setenv("VOICEWIDGET_COMPLETION_VARIANT", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_KEY", "legacy-key")
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "false")
	t.Setenv("VOICEWIDGET_AUDIO_BACKEND", "portaudio")
	t.Setenv("VOICEWIDGET_SAMPLE_RATE", "22050")
	t.Setenv("VOICEWIDGET_STREAMING_GRACE_MS", "25")
	t.Setenv("VOICEWIDGET_RESTART_BACKOFF_MS", "40")
	t.Setenv("VOICEWIDGET_MAX_RESTART_BACKOFF_MS", "900")
	t.Setenv("VOICEWIDGET_CLEAR_ON_CAPTURE_ERROR", "yes")
	t.Setenv("VOICEWIDGET_SPEAK_ERRORS", "on")
	t.Setenv("VOICEWIDGET_RELAY_TOKEN", "relay-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Completion.Variant != VariantOpenAI || cfg.Completion.APIKey != "legacy-key" {
		t.Fatalf("unexpected completion config: %+v", cfg.Completion)
	}
	if cfg.Deepgram.APIKey != "dg-key" || cfg.Deepgram.SmartFormat {
		t.Fatalf("unexpected deepgram config: %+v", cfg.Deepgram)
	}
	if cfg.Audio.Backend != "portaudio" || cfg.Audio.SampleRate != 22050 {
		t.Fatalf("unexpected audio config: %+v", cfg.Audio)
	}
	if cfg.Capture.StreamingGrace != 25*time.Millisecond || cfg.Capture.RestartBackoff != 40*time.Millisecond {
		t.Fatalf("unexpected capture timings: %+v", cfg.Capture)
	}
	if cfg.Capture.MaxRestartBackoff != 900*time.Millisecond {
		t.Fatalf("unexpected restart backoff cap: %s", cfg.Capture.MaxRestartBackoff)
	}
	if !cfg.Capture.ClearOnError || !cfg.Playback.SpeakErrors {
		t.Fatalf("expected boolean overrides to apply")
	}
	if cfg.Relay.Token != "relay-secret" {
		t.Fatalf("unexpected relay token: %q", cfg.Relay.Token)
	}
}

func TestLoadInvalidNumericValuesFallback(t *testing.T) {
	t.Setenv("VOICEWIDGET_ENV_FILE", "")
	t.Setenv("VOICEWIDGET_CONFIG", "")
	t.Setenv("VOICEWIDGET_SAMPLE_RATE", "bad")
	t.Setenv("VOICEWIDGET_CHANNELS", "-1")
	t.Setenv("VOICEWIDGET_AUDIO_CHUNK_SIZE", "5")
	t.Setenv("VOICEWIDGET_STREAMING_GRACE_MS", "bad")
	t.Setenv("VOICEWIDGET_MAX_RESTARTS", "-3")
	t.Setenv("VOICEWIDGET_COMPLETION_TIMEOUT_MS", "0")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "not-bool")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 {
		t.Fatalf("expected audio defaults, got %+v", cfg.Audio)
	}
	if cfg.Capture.ChunkSize != 4096 {
		t.Fatalf("expected chunk size fallback, got %d", cfg.Capture.ChunkSize)
	}
	if cfg.Capture.StreamingGrace != 250*time.Millisecond {
		t.Fatalf("expected default grace, got %s", cfg.Capture.StreamingGrace)
	}
	if cfg.Capture.MaxRestarts != 5 {
		t.Fatalf("expected default restarts, got %d", cfg.Capture.MaxRestarts)
	}
	if cfg.Completion.Timeout != time.Minute {
		t.Fatalf("expected default timeout, got %s", cfg.Completion.Timeout)
	}
	if !cfg.Deepgram.SmartFormat {
		t.Fatalf("expected default smart format true")
	}
}

func TestLoadRestartBackoffCapNeverBelowInitialDelay(t *testing.T) {
	t.Setenv("VOICEWIDGET_ENV_FILE", "")
	t.Setenv("VOICEWIDGET_CONFIG", "")
	t.Setenv("VOICEWIDGET_RESTART_BACKOFF_MS", "8000")
	t.Setenv("VOICEWIDGET_MAX_RESTART_BACKOFF_MS", "100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Capture.MaxRestartBackoff != 8*time.Second {
		t.Fatalf("expected cap raised to the initial delay, got %s", cfg.Capture.MaxRestartBackoff)
	}
}

func TestLoadRejectsUnknownVariant(t *testing.T) {
	t.Setenv("VOICEWIDGET_ENV_FILE", "")
	t.Setenv("VOICEWIDGET_CONFIG", "")
	t.Setenv("VOICEWIDGET_COMPLETION_VARIANT", "carrier-pigeon")

	if _, err := Load(); err == nil {
		t.Fatalf("expected unknown variant error")
	}
}

func TestLoadReadsDotEnvWithoutOverridingEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "widget.env")
	if err := os.WriteFile(envFile, []byte("VOICEWIDGET_TTS_VOICE=nova\nVOICEWIDGET_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_ = os.Unsetenv("VOICEWIDGET_TTS_VOICE")
	t.Cleanup(func() { _ = os.Unsetenv("VOICEWIDGET_TTS_VOICE") })
	t.Setenv("VOICEWIDGET_LOG_LEVEL", "warn")
	t.Setenv("VOICEWIDGET_ENV_FILE", envFile)
	t.Setenv("VOICEWIDGET_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Playback.Voice != "nova" {
		t.Fatalf("expected voice from env file, got %q", cfg.Playback.Voice)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("expected process env to win over env file, got %q", cfg.Log.Level)
	}
}

func TestLoadMissingConfigFileFails(t *testing.T) {
	t.Setenv("VOICEWIDGET_ENV_FILE", "")
	t.Setenv("VOICEWIDGET_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected missing config file error")
	}
}

func TestNewLoggerFormats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "component", "test")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("expected json output, got %s", out)
	}
}
