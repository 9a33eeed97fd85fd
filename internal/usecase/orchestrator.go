package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"voicewidget/internal/domain"
	"voicewidget/internal/ports"
)

// orchestrator runs completion requests and owns the response fields of the
// widget snapshot. Only the newest request may publish its outcome.
type orchestrator struct {
	completion  ports.CompletionService
	playback    ports.SpeechPlayback
	rules       ports.PromptRules
	events      ports.EventSink
	update      func(func(*domain.Snapshot) bool)
	headings    Headings
	timeout     time.Duration
	speakErrors bool
	logger      *slog.Logger
	newID       func() string

	mu       sync.Mutex
	inflight *inflightRequest
}

type inflightRequest struct {
	id     string
	cancel context.CancelFunc
}

func newOrchestrator(
	completion ports.CompletionService,
	playback ports.SpeechPlayback,
	rules ports.PromptRules,
	events ports.EventSink,
	update func(func(*domain.Snapshot) bool),
	cfg Config,
	logger *slog.Logger,
) *orchestrator {
	return &orchestrator{
		completion:  completion,
		playback:    playback,
		rules:       rules,
		events:      events,
		update:      update,
		headings:    cfg.Headings,
		timeout:     cfg.RequestTimeout,
		speakErrors: cfg.SpeakErrors,
		logger:      logger.With("component", "completion"),
		newID:       uuid.NewString,
	}
}

// submit sends prompt to the completion service and publishes the outcome.
// Failures of any kind become FailureAnswer. A request replaced by a newer
// one is cancelled and returns ErrSuperseded without touching the state.
func (o *orchestrator) submit(ctx context.Context, transcript string) (domain.Outcome, error) {
	id := o.newID()
	reqCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	o.mu.Lock()
	if o.inflight != nil {
		o.logger.Info("superseding pending request", "request_id", o.inflight.id, "by", id)
		o.inflight.cancel()
	}
	o.inflight = &inflightRequest{id: id, cancel: cancel}
	o.mu.Unlock()

	// A newer request may already have published its own Pending state.
	o.update(func(s *domain.Snapshot) bool {
		if !o.isCurrent(id) {
			return false
		}
		s.Phase = domain.ResponsePhasePending
		s.Heading = o.headings.Pending
		s.RequestID = id
		return true
	})

	prompt := o.rewrite(transcript)
	o.logger.Debug("completion request sent", "request_id", id, "chars", len(prompt))

	started := time.Now()
	answer, err := o.completion.Complete(reqCtx, prompt)

	o.mu.Lock()
	current := o.inflight != nil && o.inflight.id == id
	if current {
		o.inflight = nil
	}
	o.mu.Unlock()

	outcome := domain.Outcome{RequestID: id, Prompt: prompt}
	if !current {
		o.logger.Debug("discarding superseded outcome", "request_id", id)
		return outcome, ErrSuperseded
	}

	if err != nil {
		o.logger.Warn("completion request failed", "request_id", id, "error", err, "elapsed", time.Since(started))
		outcome.Phase = domain.ResponsePhaseFailed
		outcome.Answer = FailureAnswer
	} else {
		o.logger.Info("completion received", "request_id", id, "elapsed", time.Since(started))
		outcome.Phase = domain.ResponsePhaseReady
		outcome.Answer = answer
	}

	o.update(func(s *domain.Snapshot) bool {
		if s.RequestID != id {
			return false
		}
		s.Phase = outcome.Phase
		s.Heading = o.headings.Response
		s.Answer = outcome.Answer
		return true
	})

	if outcome.Phase == domain.ResponsePhaseReady || o.speakErrors {
		outcome.Spoken = true
		go o.speak(context.WithoutCancel(ctx), id, outcome.Answer)
	}
	return outcome, nil
}

// cancel abandons the pending request, if any. Its outcome is discarded and
// the response panel is cleared.
func (o *orchestrator) cancel() {
	o.mu.Lock()
	inflight := o.inflight
	o.inflight = nil
	o.mu.Unlock()

	if inflight == nil {
		return
	}
	inflight.cancel()
	o.update(func(s *domain.Snapshot) bool {
		if s.RequestID != inflight.id || s.Phase != domain.ResponsePhasePending {
			return false
		}
		s.Phase = domain.ResponsePhaseNone
		s.Heading = ""
		s.Answer = ""
		s.RequestID = ""
		return true
	})
}

// isCurrent reports whether id is the request in flight. It is called with
// the widget lock held, so o.mu must never be held while taking that lock.
func (o *orchestrator) isCurrent(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inflight != nil && o.inflight.id == id
}

func (o *orchestrator) rewrite(transcript string) string {
	if o.rules == nil {
		return transcript
	}
	prompt, err := o.rules.Apply(transcript)
	if err != nil {
		o.logger.Warn("prompt rules failed, sending transcript as spoken", "error", err)
		return transcript
	}
	return prompt
}

func (o *orchestrator) speak(ctx context.Context, id string, text string) {
	if err := o.playback.Speak(ctx, text); err != nil {
		if !errors.Is(err, context.Canceled) {
			o.logger.Warn("playback failed", "request_id", id, "error", err)
			o.events.WidgetError(domain.ErrorCodePlayback, err.Error())
		}
	}
}
