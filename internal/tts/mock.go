package tts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/xid"
	"github.com/spf13/afero"

	"github.com/loqalabs/loqa-rhvoice/internal/options"
	"github.com/loqalabs/loqa-rhvoice/internal/voices"
)

const mockSampleRate = 22050

type mockSynth struct {
	capabilities
	delay     time.Duration
	observers []Observer
	logger    *slog.Logger
}

// NewMockSynth returns a synthesizer that answers every request with 100ms of
// silence. Non-wav formats get the raw PCM without a container.
func NewMockSynth(defaults options.Set, catalog *voices.Catalog, logger *slog.Logger, observers ...Observer) Synthesizer {
	return &mockSynth{
		capabilities: newCapabilities(defaults, catalog),
		delay:        50 * time.Millisecond,
		observers:    observers,
		logger:       logger.With(slog.String("component", "tts-mock")),
	}
}

func (m *mockSynth) GetAudio(ctx context.Context, text, language string, opts map[string]any) (string, []byte, error) {
	params, _, err := m.params(text, opts)
	if err != nil {
		return "", nil, err
	}
	a := Attempt{
		ID:        xid.New().String(),
		SessionID: SessionFromContext(ctx),
		Backend:   "mock",
		Language:  language,
		Params:    params,
		StartedAt: time.Now(),
	}
	select {
	case <-ctx.Done():
		a.Outcome, a.Err = OutcomeTimeout, ctx.Err()
	case <-time.After(m.delay):
		if data, err := silence(params.Format, mockSampleRate/10); err != nil {
			a.Outcome, a.Err = OutcomeTransport, err
		} else {
			a.Outcome, a.StatusCode, a.Audio = OutcomeOK, 200, data
		}
	}
	a.Duration = time.Since(a.StartedAt)
	notify(ctx, m.observers, a)
	if a.Outcome != OutcomeOK {
		m.logger.Warn("mock synthesis failed", slog.String("error", a.Err.Error()))
		return "", nil, nil
	}
	return m.encoding, a.Audio, nil
}

// silence returns 16-bit mono PCM zero samples, wrapped in a RIFF container
// for wav.
func silence(format string, samples int) ([]byte, error) {
	if format != "wav" {
		return make([]byte, samples*2), nil
	}

	// wav.Encoder needs an io.WriteSeeker to patch the header on Close.
	fs := afero.NewMemMapFs()
	const name = "silence.wav"
	f, err := fs.Create(name)
	if err != nil {
		return nil, err
	}
	enc := wav.NewEncoder(f, mockSampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:           make([]int, samples),
		Format:         &audio.Format{SampleRate: mockSampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return nil, fmt.Errorf("finish wav: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return afero.ReadFile(fs, name)
}
