package tts

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/loqalabs/loqa-rhvoice/internal/config"
	"github.com/loqalabs/loqa-rhvoice/internal/options"
	"github.com/loqalabs/loqa-rhvoice/internal/voices"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecSynthReturnsStdout(t *testing.T) {
	requireShell(t)
	rec := &recorder{}
	synth, err := NewExecSynth(`sh -c 'cat >/dev/null; printf fLaC'`, config.Default().RHVoice.Defaults(), voices.Default(), time.Second, newLogger(), rec)
	if err != nil {
		t.Fatalf("new exec synth: %v", err)
	}
	encoding, audio, err := synth.GetAudio(context.Background(), "hello", "en-US", map[string]any{options.Format: "flac"})
	if err != nil {
		t.Fatalf("get audio: %v", err)
	}
	if encoding != "mp3" || string(audio) != "fLaC" {
		t.Fatalf("unexpected result %q %q", encoding, audio)
	}
	if a := rec.last(t); a.Backend != "exec" || a.Outcome != OutcomeOK {
		t.Fatalf("unexpected attempt %+v", a)
	}
}

func TestExecSynthEmptyOutput(t *testing.T) {
	requireShell(t)
	synth, err := NewExecSynth(`sh -c 'cat >/dev/null'`, config.Default().RHVoice.Defaults(), voices.Default(), time.Second, newLogger())
	if err != nil {
		t.Fatalf("new exec synth: %v", err)
	}
	encoding, audio, err := synth.GetAudio(context.Background(), "hello", "", nil)
	if err != nil || encoding != "mp3" {
		t.Fatalf("expected success, got %q %v", encoding, err)
	}
	if audio == nil || len(audio) != 0 {
		t.Fatalf("expected empty non-nil audio, got %v", audio)
	}
}

func TestExecSynthReceivesResolvedOptions(t *testing.T) {
	requireShell(t)
	synth, err := NewExecSynth(`sh -c 'cat'`, config.Default().RHVoice.Defaults(), voices.Default(), time.Second, newLogger())
	if err != nil {
		t.Fatalf("new exec synth: %v", err)
	}
	_, audio, err := synth.GetAudio(context.Background(), "", "", map[string]any{options.Voice: "kiko"})
	if err != nil {
		t.Fatalf("get audio: %v", err)
	}
	for _, want := range []string{`"text":" "`, `"voice":"kiko"`, `"format":"mp3"`, `"pitch":50`} {
		if !bytes.Contains(audio, []byte(want)) {
			t.Fatalf("expected %s in request, got %s", want, audio)
		}
	}
}

func TestExecSynthFailures(t *testing.T) {
	requireShell(t)
	rec := &recorder{}
	failing, err := NewExecSynth(`sh -c 'exit 3'`, config.Default().RHVoice.Defaults(), voices.Default(), time.Second, newLogger(), rec)
	if err != nil {
		t.Fatalf("new exec synth: %v", err)
	}
	if encoding, audio, err := failing.GetAudio(context.Background(), "hi", "", nil); err != nil || encoding != "" || audio != nil {
		t.Fatalf("expected collapsed failure, got %q %v %v", encoding, audio, err)
	}
	if a := rec.last(t); a.Outcome != OutcomeTransport || a.StatusCode != 3 {
		t.Fatalf("unexpected attempt %+v", a)
	}

	slow, err := NewExecSynth(`sleep 5`, config.Default().RHVoice.Defaults(), voices.Default(), 100*time.Millisecond, newLogger(), rec)
	if err != nil {
		t.Fatalf("new exec synth: %v", err)
	}
	start := time.Now()
	if _, audio, _ := slow.GetAudio(context.Background(), "hi", "", nil); audio != nil {
		t.Fatal("expected no audio on timeout")
	}
	if time.Since(start) > 3*time.Second {
		t.Fatal("exec timeout not honored")
	}
	if a := rec.last(t); a.Outcome != OutcomeTimeout {
		t.Fatalf("expected timeout, got %+v", a)
	}
}

func TestNewExecSynthRejectsEmptyCommand(t *testing.T) {
	if _, err := NewExecSynth("  ", config.Default().RHVoice.Defaults(), nil, 0, newLogger()); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestMockSynth(t *testing.T) {
	synth := NewMockSynth(config.Default().RHVoice.Defaults(), voices.Default(), newLogger())
	encoding, audio, err := synth.GetAudio(context.Background(), "hello", "", map[string]any{options.Format: "wav"})
	if err != nil {
		t.Fatalf("get audio: %v", err)
	}
	if encoding != "mp3" || !bytes.HasPrefix(audio, []byte("RIFF")) || !bytes.Contains(audio[:16], []byte("WAVE")) {
		t.Fatalf("expected wav container, got %q (%d bytes)", encoding, len(audio))
	}

	_, _, err = synth.GetAudio(context.Background(), "hello", "", map[string]any{options.Rate: 500})
	var verr *options.ValidationError
	if !errors.As(err, &verr) || verr.Option != options.Rate {
		t.Fatalf("expected rate validation error, got %v", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.Default()
	for mode, want := range map[string]string{"rhvoice": "*tts.Provider", "mock": "*tts.mockSynth"} {
		cfg.TTS.Mode = mode
		synth, err := New(cfg, nil, newLogger())
		if err != nil {
			t.Fatalf("new %s: %v", mode, err)
		}
		if got := typeName(synth); got != want {
			t.Fatalf("mode %s: expected %s, got %s", mode, want, got)
		}
	}
	cfg.TTS.Mode = "espeak"
	if _, err := New(cfg, nil, newLogger()); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *Provider:
		return "*tts.Provider"
	case *mockSynth:
		return "*tts.mockSynth"
	case *execSynth:
		return "*tts.execSynth"
	default:
		return "unknown"
	}
}
