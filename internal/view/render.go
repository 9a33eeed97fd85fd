// Package view turns widget snapshots into the model the frontend draws.
package view

import (
	"strings"

	"voicewidget/internal/domain"
)

const (
	PromptListening = "Tap to STOP recording..."
	PromptIdle      = "Tap to START speaking..."
)

// View is everything the frontend needs to draw the widget.
type View struct {
	Listening      bool     `json:"listening"`
	Prompt         string   `json:"prompt"`
	ShowTranscript bool     `json:"showTranscript"`
	Transcript     string   `json:"transcript"`
	ShowResponse   bool     `json:"showResponse"`
	Heading        string   `json:"heading"`
	ShowProgress   bool     `json:"showProgress"`
	Paragraphs     []string `json:"paragraphs"`
}

// Render is a pure function of the snapshot.
func Render(s domain.Snapshot) View {
	v := View{
		Listening:      s.Recording == domain.RecordingStateListening,
		Prompt:         PromptIdle,
		ShowTranscript: s.Transcript != "",
		Transcript:     s.Transcript,
		ShowResponse:   s.Heading != "",
		Heading:        s.Heading,
		ShowProgress:   s.Phase == domain.ResponsePhasePending,
		Paragraphs:     []string{},
	}
	if v.Listening {
		v.Prompt = PromptListening
	}
	if s.Answer != "" {
		v.Paragraphs = strings.Split(s.Answer, "\n")
	}
	return v
}
