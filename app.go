package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"voicewidget/internal/bootstrap"
	"voicewidget/internal/config"
	"voicewidget/internal/domain"
	"voicewidget/internal/usecase"
	"voicewidget/internal/view"
)

const (
	eventView  = "voicewidget:view"
	eventError = "voicewidget:error"

	transcriptCoalesce = 60 * time.Millisecond
)

// App is the Wails application root and the widget's event sink.
type App struct {
	ctx context.Context

	widget  *usecase.Widget
	cfg     config.Config
	logger  *slog.Logger
	bootErr error

	emit      func(ctx context.Context, name string, data ...interface{})
	debounced func(func())

	mu     sync.Mutex
	latest domain.Snapshot
	sent   domain.Snapshot
}

func NewApp() *App {
	return &App{
		logger:    slog.Default(),
		emit:      runtime.EventsEmit,
		debounced: debounce.New(transcriptCoalesce),
	}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.WidgetError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.logger = services.Logger
	a.widget = services.Widget
	a.StateChanged(a.widget.Snapshot())
}

func (a *App) shutdown(context.Context) {
	if a.widget != nil {
		a.widget.Abort()
	}
}

// Toggle flips between listening and idle. Stopping waits for the answer.
func (a *App) Toggle() (view.View, error) {
	if err := a.requireReady(); err != nil {
		return view.View{}, err
	}
	_, err := a.widget.Toggle(a.ctx)
	return a.result(err)
}

// StartListening begins a new recording.
func (a *App) StartListening() (view.View, error) {
	if err := a.requireReady(); err != nil {
		return view.View{}, err
	}
	return a.result(a.widget.StartListening(a.ctx))
}

// StopListening ends the recording and asks the completion service.
func (a *App) StopListening() (view.View, error) {
	if err := a.requireReady(); err != nil {
		return view.View{}, err
	}
	_, err := a.widget.StopListening(a.ctx)
	return a.result(err)
}

// Abort discards an in-progress recording and any pending answer.
func (a *App) Abort() (view.View, error) {
	if err := a.requireReady(); err != nil {
		return view.View{}, err
	}
	a.widget.Abort()
	return a.GetView(), nil
}

// GetView returns the current view model.
func (a *App) GetView() view.View {
	if a.widget == nil {
		return view.Render(domain.Snapshot{Recording: domain.RecordingStateIdle, Phase: domain.ResponsePhaseNone})
	}
	return view.Render(a.widget.Snapshot())
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":         "Deepgram",
		"model":            a.cfg.Deepgram.Model,
		"language":         a.cfg.Capture.Language,
		"completion":       a.cfg.Completion.Variant,
		"completionUrl":    a.cfg.Completion.BaseURL,
		"playback":         a.cfg.Playback.Backend,
		"audioBackend":     a.cfg.Audio.Backend,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"promptRules":      a.cfg.Completion.RulesFile,
	}
}

// result maps widget errors that are not failures to a plain view.
func (a *App) result(err error) (view.View, error) {
	switch {
	case err == nil, errors.Is(err, usecase.ErrNotListening), errors.Is(err, usecase.ErrSuperseded):
		return a.GetView(), nil
	default:
		a.WidgetError(domain.ErrorCodeCapture, err.Error())
		return a.GetView(), err
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.widget == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// StateChanged pushes the rendered view to the frontend. Updates that only
// touch the live transcript are coalesced. Snapshots older than the newest one
// seen are dropped, and views are emitted under mu so they reach the frontend
// in version order.
func (a *App) StateChanged(snapshot domain.Snapshot) {
	if a.ctx == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if snapshot.Version <= a.latest.Version {
		return
	}
	a.latest = snapshot
	if transcriptOnlyChange(a.sent, snapshot) {
		a.debounced(a.flush)
		return
	}
	a.sent = snapshot
	a.emit(a.ctx, eventView, view.Render(snapshot))
}

// flush sends whatever snapshot is newest when the debounce fires.
func (a *App) flush() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sent.Version == a.latest.Version {
		return
	}
	a.sent = a.latest
	a.emit(a.ctx, eventView, view.Render(a.latest))
}

func transcriptOnlyChange(prev domain.Snapshot, next domain.Snapshot) bool {
	if next.Recording != domain.RecordingStateListening || prev.Transcript == next.Transcript {
		return false
	}
	prev.Transcript = next.Transcript
	prev.Version = next.Version
	return prev == next
}

// WidgetError emits backend errors to the UI.
func (a *App) WidgetError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	a.emit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCapture:
		return "Speech capture issue"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioPump:
		return "Audio streaming issue"
	case domain.ErrorCodePlayback:
		return "Could not play the answer"
	case domain.ErrorCodeCompletion:
		return "Completion service error"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
