package tts

import (
	"context"
	"time"

	"github.com/loqalabs/loqa-rhvoice/internal/options"
	"github.com/loqalabs/loqa-rhvoice/internal/voices"
)

// Synthesizer is the contract for producing audio.
//
// GetAudio returns a non-nil error only when the options fail validation; no
// backend work is started in that case. Every failure after dispatch collapses
// to an empty encoding and nil audio.
type Synthesizer interface {
	DefaultLanguage() (string, bool)
	SupportedLanguages() []string
	SupportedOptions() []string
	GetAudio(ctx context.Context, text, language string, opts map[string]any) (string, []byte, error)
}

// Outcome tags how a single synthesis attempt ended.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeRemoteStatus Outcome = "remote_status"
	OutcomeTransport    Outcome = "transport"
)

// Attempt is the detailed record of one dispatched synthesis. It never leaves
// the process through GetAudio; observers receive it for logs, metrics and the
// journal.
type Attempt struct {
	ID         string
	SessionID  string
	Backend    string
	Language   string
	Params     options.Params
	URL        string
	Outcome    Outcome
	StatusCode int
	Err        error
	Audio      []byte
	Duration   time.Duration
	StartedAt  time.Time
}

// Observer receives every dispatched attempt.
type Observer interface {
	Observe(ctx context.Context, a Attempt)
}

type ObserverFunc func(ctx context.Context, a Attempt)

func (f ObserverFunc) Observe(ctx context.Context, a Attempt) { f(ctx, a) }

type sessionKey struct{}

// WithSession tags ctx with a caller session id that is carried into attempts.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func SessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// capabilities holds the read-only state shared by all backends: the option
// resolver, the configured output encoding and the language derived from the
// default voice.
type capabilities struct {
	resolver        *options.Resolver
	encoding        string // label returned on success, the configured format
	defaultLanguage string
	hasLanguage     bool
}

func newCapabilities(defaults options.Set, catalog *voices.Catalog) capabilities {
	resolver := options.NewResolver(defaults, catalog)
	lang, ok := resolver.Catalog().LanguageOf(defaults.Voice)
	return capabilities{resolver: resolver, encoding: defaults.Format, defaultLanguage: lang, hasLanguage: ok}
}

// DefaultLanguage reports the language of the default voice. The second value
// is false when the voice is not listed under any language.
func (c capabilities) DefaultLanguage() (string, bool) {
	return c.defaultLanguage, c.hasLanguage
}

func (c capabilities) SupportedLanguages() []string {
	return c.resolver.Catalog().Languages()
}

func (c capabilities) SupportedOptions() []string {
	return options.Names()
}

func (c capabilities) params(text string, opts map[string]any) (options.Params, bool, error) {
	set, err := c.resolver.Resolve(opts)
	if err != nil {
		return options.Params{}, false, err
	}
	params, substituted := options.NewParams(text, set)
	return params, substituted, nil
}

func notify(ctx context.Context, observers []Observer, a Attempt) {
	for _, o := range observers {
		o.Observe(ctx, a)
	}
}
