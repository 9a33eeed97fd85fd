package usecase

import "voicewidget/internal/domain"

type trigger string

const (
	triggerStart  trigger = "start"
	triggerStop   trigger = "stop"
	triggerGiveUp trigger = "give_up"
)

var recordingTransitions = map[domain.RecordingState]map[trigger]domain.RecordingState{
	domain.RecordingStateIdle: {
		triggerStart: domain.RecordingStateListening,
	},
	domain.RecordingStateListening: {
		triggerStop:   domain.RecordingStateIdle,
		triggerGiveUp: domain.RecordingStateIdle,
	},
}

// nextRecordingState reports the state reached by firing t from state from.
// Illegal transitions report false and leave the caller's state untouched.
func nextRecordingState(from domain.RecordingState, t trigger) (domain.RecordingState, bool) {
	next, ok := recordingTransitions[from][t]
	return next, ok
}
