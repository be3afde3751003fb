package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/rs/xid"

	"github.com/loqalabs/loqa-rhvoice/internal/options"
	"github.com/loqalabs/loqa-rhvoice/internal/voices"
)

// execSynth runs a local command per request. The command receives a JSON
// document on stdin and writes the encoded audio to stdout.
type execSynth struct {
	capabilities
	cmd       []string
	timeout   time.Duration
	observers []Observer
	logger    *slog.Logger
}

type execRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Format   string `json:"format"`
	Pitch    int    `json:"pitch"`
	Rate     int    `json:"rate"`
	Voice    string `json:"voice"`
	Volume   int    `json:"volume"`
}

func NewExecSynth(command string, defaults options.Set, catalog *voices.Catalog, timeout time.Duration, logger *slog.Logger, observers ...Observer) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command empty")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &execSynth{
		capabilities: newCapabilities(defaults, catalog),
		cmd:          args,
		timeout:      timeout,
		observers:    observers,
		logger:       logger.With(slog.String("component", "tts-exec")),
	}, nil
}

func (e *execSynth) GetAudio(ctx context.Context, text, language string, opts map[string]any) (string, []byte, error) {
	params, substituted, err := e.params(text, opts)
	if err != nil {
		return "", nil, err
	}
	if substituted {
		e.logger.Warn("the message text can't be empty, sending a single space")
	}

	attempt := e.run(ctx, language, params)
	notify(ctx, e.observers, attempt)
	if attempt.Outcome != OutcomeOK {
		return "", nil, nil
	}
	return e.encoding, attempt.Audio, nil
}

func (e *execSynth) run(ctx context.Context, language string, params options.Params) Attempt {
	a := Attempt{
		ID:        xid.New().String(),
		SessionID: SessionFromContext(ctx),
		Backend:   "exec",
		Language:  language,
		Params:    params,
		URL:       strings.Join(e.cmd, " "),
		StartedAt: time.Now(),
	}
	log := e.logger.With(slog.String("request_id", a.ID))

	payload, err := json.Marshal(execRequest{
		Text:     params.Text,
		Language: language,
		Format:   params.Format,
		Pitch:    params.Pitch,
		Rate:     params.Rate,
		Voice:    params.Voice,
		Volume:   params.Volume,
	})
	if err != nil {
		a.Outcome, a.Err = OutcomeTransport, err
		a.Duration = time.Since(a.StartedAt)
		return a
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	a.Duration = time.Since(a.StartedAt)
	switch {
	case err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		a.Outcome, a.Err = OutcomeTimeout, runCtx.Err()
		log.Error("timeout for tts command", slog.Duration("timeout", e.timeout))
	case err != nil:
		a.Outcome, a.Err = OutcomeTransport, err
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			a.StatusCode = exitErr.ExitCode()
		}
		log.Error("tts command failed",
			slog.String("error", err.Error()),
			slog.String("stderr", strings.TrimSpace(stderr.String())))
	default:
		a.Outcome, a.Audio = OutcomeOK, append([]byte{}, stdout.Bytes()...)
	}
	return a
}
