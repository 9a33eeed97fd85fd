package relay

import (
	"context"
	"strings"
)

// Echo answers by repeating the prompt. It lets the widget run end to end
// without an API key.
type Echo struct{}

func (Echo) Complete(_ context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "I didn't catch that.\nTap the microphone and try again.", nil
	}
	return "You said:\n" + prompt, nil
}
