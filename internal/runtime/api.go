package runtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/loqalabs/loqa-rhvoice/internal/journal"
	"github.com/loqalabs/loqa-rhvoice/internal/options"
	"github.com/loqalabs/loqa-rhvoice/internal/tts"
	"github.com/loqalabs/loqa-rhvoice/internal/voices"
)

// api exposes the synthesizer over plain HTTP.
type api struct {
	synth   tts.Synthesizer
	journal *journal.Store
	catalog *voices.Catalog
	logger  *slog.Logger
}

func newAPI(synth tts.Synthesizer, store *journal.Store, logger *slog.Logger) *api {
	return &api{
		synth:   synth,
		journal: store,
		catalog: voices.Default(),
		logger:  logger.With(slog.String("component", "http-api")),
	}
}

func (a *api) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tts/info", a.handleInfo)
	mux.HandleFunc("GET /api/tts/say", a.handleSay)
	mux.HandleFunc("POST /api/tts/say", a.handleSay)
	mux.HandleFunc("GET /api/tts/journal", a.handleJournal)
	mux.HandleFunc("GET /api/tts/stats", a.handleStats)
}

func (a *api) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, tts.Info(a.synth, a.catalog))
}

func (a *api) handleSay(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	text := r.Form.Get(options.Text)
	language := r.Form.Get("language")

	encoding, audio, err := a.synth.GetAudio(r.Context(), text, language, options.FromValues(r.Form))
	if err != nil {
		var verr *options.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": verr.Error(), "option": verr.Option})
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if encoding == "" && audio == nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "synthesis failed"})
		return
	}

	// The body is in the requested format; the encoding label is the
	// configured one.
	format := encoding
	if f := r.Form.Get(options.Format); f != "" {
		format = f
	}
	w.Header().Set("Content-Type", options.ContentType(format))
	w.Header().Set("X-Audio-Encoding", encoding)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio); err != nil {
		a.logger.Warn("failed to write audio response", slog.String("error", err.Error()))
	}
}

func (a *api) handleJournal(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	entries, err := a.journal.Recent(r.Context(), limit)
	if err != nil {
		a.logger.Error("journal query failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *api) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.journal.Stats(r.Context())
	if err != nil {
		a.logger.Error("journal stats failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
