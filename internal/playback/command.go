package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

var errNoCommand = errors.New("speak command is empty")

// Command speaks through a local TTS program such as espeak-ng or say,
// passing the text as the final argument.
type Command struct {
	argv   []string
	logger *slog.Logger

	current utterances
}

func NewCommand(command string, logger *slog.Logger) *Command {
	if logger == nil {
		logger = slog.Default()
	}
	return &Command{
		argv:   strings.Fields(command),
		logger: logger.With("component", "playback.command"),
	}
}

func (c *Command) Speak(ctx context.Context, text string) error {
	if len(c.argv) == 0 {
		return errNoCommand
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	uctx, done := c.current.begin(ctx)
	defer done()

	args := append(append([]string(nil), c.argv[1:]...), text)
	cmd := exec.CommandContext(uctx, c.argv[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return cancelledOr(uctx, fmt.Errorf("%s: %w: %s", c.argv[0], err, strings.TrimSpace(string(out))))
	}
	return nil
}

func (c *Command) Cancel() {
	c.current.stop()
}

// Silent discards speech.
type Silent struct{}

func (Silent) Speak(context.Context, string) error { return nil }
func (Silent) Cancel()                             {}
