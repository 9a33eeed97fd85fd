package playback

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeSynth struct {
	audio string
	err   error
	texts chan string
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) (io.ReadCloser, error) {
	if f.texts != nil {
		f.texts <- text
	}
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.audio)), nil
}

func TestSpeakerPipesSynthesizedAudioToPlayer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "played.bin")
	player := writeScript(t, dir, "player.sh", "#!/usr/bin/env bash\ncat > \"$1\"\n")

	speaker := NewSpeaker(&fakeSynth{audio: "mp3-bytes"}, player+" "+out, nil)
	if err := speaker.Speak(context.Background(), "line1\nline2"); err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != "mp3-bytes" {
		t.Fatalf("unexpected audio at player: %q", got)
	}
}

func TestSpeakerSkipsBlankText(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{err: errors.New("should not be called")}
	speaker := NewSpeaker(synth, "", nil)
	if err := speaker.Speak(context.Background(), "   "); err != nil {
		t.Fatalf("expected blank text to be skipped, got %v", err)
	}
}

func TestSpeakerSynthesisError(t *testing.T) {
	t.Parallel()

	speaker := NewSpeaker(&fakeSynth{err: errors.New("quota")}, "", nil)
	err := speaker.Speak(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "quota") {
		t.Fatalf("expected synthesis error, got %v", err)
	}
}

func TestSpeakerCancelStopsPlayback(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	player := writeScript(t, dir, "slow.sh", "#!/usr/bin/env bash\nexec sleep 5\n")
	speaker := NewSpeaker(&fakeSynth{audio: "x"}, player, nil)

	result := make(chan error, 1)
	go func() { result <- speaker.Speak(context.Background(), "a long answer") }()

	time.Sleep(100 * time.Millisecond)
	speaker.Cancel()

	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("cancel did not stop playback")
	}
}

func TestSpeakInterruptsPreviousUtterance(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	player := writeScript(t, dir, "slow.sh", "#!/usr/bin/env bash\nexec sleep 5\n")
	cmd := NewCommand(player, nil)

	first := make(chan error, 1)
	go func() { first <- cmd.Speak(context.Background(), "first") }()
	time.Sleep(100 * time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- cmd.Speak(context.Background(), "second") }()

	select {
	case err := <-first:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected first utterance to be cancelled, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("first utterance was not interrupted")
	}

	cmd.Cancel()
	<-second
}

func TestCommandPassesTextAsLastArgument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "args.txt")
	script := writeScript(t, dir, "say.sh", "#!/usr/bin/env bash\nprintf '%s|' \"$@\" > \""+out+"\"\n")

	cmd := NewCommand(script+" -v en", nil)
	if err := cmd.Speak(context.Background(), "hello there"); err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != "-v|en|hello there|" {
		t.Fatalf("unexpected args: %q", got)
	}
}

func TestCommandEmpty(t *testing.T) {
	t.Parallel()

	if err := NewCommand("  ", nil).Speak(context.Background(), "hi"); !errors.Is(err, errNoCommand) {
		t.Fatalf("expected errNoCommand, got %v", err)
	}
}

func writeScript(t *testing.T, dir string, name string, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
