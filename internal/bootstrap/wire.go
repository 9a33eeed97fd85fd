package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"voicewidget/internal/audio"
	"voicewidget/internal/config"
	"voicewidget/internal/playback"
	"voicewidget/internal/ports"
	"voicewidget/internal/providers/completion"
	"voicewidget/internal/providers/deepgram"
	"voicewidget/internal/relay"
	"voicewidget/internal/rules"
	"voicewidget/internal/speech"
	"voicewidget/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Widget *usecase.Widget
	Config config.Config
	Logger *slog.Logger
}

// Build loads configuration and wires the widget for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	logger := config.NewLogger(cfg.Log, os.Stderr)
	return Assemble(cfg, eventSink, logger)
}

// Assemble wires the widget from an already loaded configuration.
func Assemble(cfg config.Config, eventSink ports.EventSink, logger *slog.Logger) (Services, error) {
	capture, err := audio.NewCapture(cfg.Audio.Backend, cfg.Audio.RecorderCommand, logger)
	if err != nil {
		return Services{}, err
	}

	recognizer := speech.NewRecognizer(
		capture,
		deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			SmartFormat: cfg.Deepgram.SmartFormat,
			Logger:      logger,
		}),
		speech.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Encoding:       "linear16",
			ChunkSize:      cfg.Capture.ChunkSize,
			StreamingGrace: cfg.Capture.StreamingGrace,
		},
		logger,
	)

	completionService, err := NewCompletionService(cfg.Completion)
	if err != nil {
		return Services{}, err
	}

	promptRules, err := rules.Load(cfg.Completion.RulesFile)
	if err != nil {
		return Services{}, err
	}

	widget := usecase.NewWidget(
		recognizer,
		newPlayback(cfg, logger),
		completionService,
		promptRules,
		eventSink,
		usecase.Config{
			Language:               cfg.Capture.Language,
			ClearTranscriptOnError: cfg.Capture.ClearOnError,
			MaxRestarts:            cfg.Capture.MaxRestarts,
			RestartBackoff:         cfg.Capture.RestartBackoff,
			MaxRestartBackoff:      cfg.Capture.MaxRestartBackoff,
			RequestTimeout:         cfg.Completion.Timeout,
			SpeakErrors:            cfg.Playback.SpeakErrors,
		},
		logger,
	)

	logger.Info("widget assembled",
		"completion", cfg.Completion.Variant,
		"audio", cfg.Audio.Backend,
		"playback", cfg.Playback.Backend,
		"prompt_rules", promptRules.Len(),
	)
	return Services{Widget: widget, Config: cfg, Logger: logger}, nil
}

// NewCompletionService picks the client for the configured wire contract.
func NewCompletionService(cfg config.CompletionConfig) (ports.CompletionService, error) {
	switch cfg.Variant {
	case config.VariantPrompt:
		return completion.NewPromptClient(cfg.BaseURL, cfg.APIKey, nil), nil
	case config.VariantUpload:
		return completion.NewUploadClient(cfg.BaseURL, nil), nil
	case config.VariantOpenAI:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("completion variant %q requires OPENAI_API_KEY", cfg.Variant)
		}
		return completion.NewOpenAIClient(completion.OpenAIConfig{
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			SystemPrompt: cfg.SystemPrompt,
		}), nil
	default:
		return nil, fmt.Errorf("unknown completion variant %q", cfg.Variant)
	}
}

func newPlayback(cfg config.Config, logger *slog.Logger) ports.SpeechPlayback {
	switch cfg.Playback.Backend {
	case config.PlaybackNone:
		return playback.Silent{}
	case config.PlaybackCommand:
		return playback.NewCommand(cfg.Playback.SpeakCommand, logger)
	}

	if strings.TrimSpace(cfg.Completion.APIKey) == "" {
		logger.Warn("no OpenAI key for speech synthesis, falling back to local speak command", "command", cfg.Playback.SpeakCommand)
		return playback.NewCommand(cfg.Playback.SpeakCommand, logger)
	}
	synth := playback.NewOpenAISynthesizer(openai.NewClient(cfg.Completion.APIKey), cfg.Playback.Model, cfg.Playback.Voice)
	return playback.NewSpeaker(synth, cfg.Playback.PlayerCommand, logger)
}

// BuildRelay wires the development completion backend. Without an OpenAI
// key it answers with an echo.
func BuildRelay(cfg config.Config, logger *slog.Logger) *relay.Server {
	var responder ports.CompletionService = relay.Echo{}
	name := "echo"
	if strings.TrimSpace(cfg.Completion.APIKey) != "" {
		responder = completion.NewOpenAIClient(completion.OpenAIConfig{
			APIKey:       cfg.Completion.APIKey,
			Model:        cfg.Completion.Model,
			SystemPrompt: cfg.Completion.SystemPrompt,
		})
		name = "openai:" + cfg.Completion.Model
	}

	return relay.New(responder, relay.Config{
		Token:          cfg.Relay.Token,
		ResponderName:  name,
		RequestTimeout: cfg.Completion.Timeout,
	}, logger)
}
