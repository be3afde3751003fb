package tts

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/loqalabs/loqa-rhvoice/internal/config"
	"github.com/loqalabs/loqa-rhvoice/internal/voices"
)

// New selects the backend named by cfg.TTS.Mode.
func New(cfg config.Config, client *http.Client, logger *slog.Logger, observers ...Observer) (Synthesizer, error) {
	catalog := voices.Default()
	switch cfg.TTS.Mode {
	case "rhvoice", "":
		return NewProvider(cfg.RHVoice, catalog, client, logger, observers...), nil
	case "exec":
		return NewExecSynth(cfg.TTS.Command, cfg.RHVoice.Defaults(), catalog, cfg.RHVoice.Timeout(), logger, observers...)
	case "mock":
		return NewMockSynth(cfg.RHVoice.Defaults(), catalog, logger, observers...), nil
	default:
		return nil, fmt.Errorf("unknown tts mode %q", cfg.TTS.Mode)
	}
}
