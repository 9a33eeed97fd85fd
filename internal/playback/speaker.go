// Package playback speaks completion answers aloud.
package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// DefaultPlayerCommand plays an encoded stream from stdin.
const DefaultPlayerCommand = "ffplay -nodisp -autoexit -loglevel error -i -"

// Synthesizer converts text into an encoded audio stream.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}

// OpenAISynthesizer uses the OpenAI speech endpoint.
type OpenAISynthesizer struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
}

func NewOpenAISynthesizer(client *openai.Client, model string, voice string) *OpenAISynthesizer {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAISynthesizer{
		client: client,
		model:  openai.SpeechModel(model),
		voice:  openai.SpeechVoice(voice),
	}
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("create speech: %w", err)
	}
	return resp, nil
}

// Speaker synthesizes text and pipes the audio into a player process.
type Speaker struct {
	synth  Synthesizer
	player []string
	logger *slog.Logger

	current utterances
}

func NewSpeaker(synth Synthesizer, playerCommand string, logger *slog.Logger) *Speaker {
	if strings.TrimSpace(playerCommand) == "" {
		playerCommand = DefaultPlayerCommand
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{
		synth:  synth,
		player: strings.Fields(playerCommand),
		logger: logger.With("component", "playback.speaker"),
	}
}

// Speak plays text, interrupting any earlier utterance, and blocks until
// playback finishes or is cancelled.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	uctx, done := s.current.begin(ctx)
	defer done()

	audio, err := s.synth.Synthesize(uctx, text)
	if err != nil {
		return cancelledOr(uctx, err)
	}
	defer audio.Close()

	cmd := exec.CommandContext(uctx, s.player[0], s.player[1:]...)
	cmd.Stdin = audio
	if out, err := cmd.CombinedOutput(); err != nil {
		return cancelledOr(uctx, fmt.Errorf("player: %w: %s", err, strings.TrimSpace(string(out))))
	}

	s.logger.Debug("utterance played", "chars", len(text))
	return nil
}

// Cancel stops the current utterance, if any.
func (s *Speaker) Cancel() {
	s.current.stop()
}

// cancelledOr reports context cancellation in place of the error it caused.
func cancelledOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
