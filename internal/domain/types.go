package domain

import "github.com/samber/lo"

// RecordingState models the microphone toggle.
type RecordingState string

const (
	RecordingStateIdle      RecordingState = "idle"
	RecordingStateListening RecordingState = "listening"
)

// ResponsePhase tracks the lifecycle of a completion request.
type ResponsePhase string

const (
	ResponsePhaseNone    ResponsePhase = "none"
	ResponsePhasePending ResponsePhase = "pending"
	ResponsePhaseReady   ResponsePhase = "ready"
	ResponsePhaseFailed  ResponsePhase = "failed"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup    ErrorCode = "startup"
	ErrorCodeCapture    ErrorCode = "capture"
	ErrorCodeAudioStop  ErrorCode = "audio_stop"
	ErrorCodeAudioPump  ErrorCode = "audio_stream"
	ErrorCodePlayback   ErrorCode = "playback"
	ErrorCodeCompletion ErrorCode = "completion"
)

// TranscriptKind identifies whether a provider event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent is raw output from a streaming transcription provider.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	Confidence    float64        `json:"confidence,omitempty"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}

// Alternative is one recognition hypothesis for a segment.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence,omitempty"`
}

// RecognitionResult is one recognized speech segment.
type RecognitionResult struct {
	Alternatives []Alternative `json:"alternatives"`
	IsFinal      bool          `json:"isFinal"`
}

// Top returns the best alternative's transcript.
func (r RecognitionResult) Top() string {
	if len(r.Alternatives) == 0 {
		return ""
	}
	return r.Alternatives[0].Transcript
}

// TopTranscripts returns the top transcript of each result, in order.
func TopTranscripts(results []RecognitionResult) []string {
	return lo.Map(results, func(r RecognitionResult, _ int) string {
		return r.Top()
	})
}

// CaptureEventKind enumerates speech capture notifications.
type CaptureEventKind string

const (
	CaptureEventStart  CaptureEventKind = "start"
	CaptureEventResult CaptureEventKind = "result"
	CaptureEventError  CaptureEventKind = "error"
	CaptureEventEnd    CaptureEventKind = "end"
)

// CaptureErrorKind classifies capture failures.
type CaptureErrorKind string

const (
	CaptureErrorAudio    CaptureErrorKind = "audio-capture"
	CaptureErrorNetwork  CaptureErrorKind = "network"
	CaptureErrorProvider CaptureErrorKind = "provider"
	CaptureErrorNoSpeech CaptureErrorKind = "no-speech"
)

// CaptureEvent is delivered to capture listeners. Results always holds every
// segment since the stream started, not a delta.
type CaptureEvent struct {
	Kind      CaptureEventKind    `json:"kind"`
	Results   []RecognitionResult `json:"results,omitempty"`
	ErrorKind CaptureErrorKind    `json:"errorKind,omitempty"`
	Detail    string              `json:"detail,omitempty"`
}

// Snapshot is a point-in-time copy of the widget state.
type Snapshot struct {
	Recording  RecordingState `json:"recording"`
	Transcript string         `json:"transcript"`
	Phase      ResponsePhase  `json:"phase"`
	Heading    string         `json:"heading"`
	Answer     string         `json:"answer"`
	RequestID  string         `json:"requestId,omitempty"`
	// Version increases with every published change.
	Version uint64 `json:"version"`
}

// Outcome is returned once a completion request resolves.
type Outcome struct {
	RequestID string        `json:"requestId"`
	Prompt    string        `json:"prompt"`
	Phase     ResponsePhase `json:"phase"`
	Answer    string        `json:"answer"`
	Spoken    bool          `json:"spoken"`
}
