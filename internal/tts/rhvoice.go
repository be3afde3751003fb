package tts

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/xid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/loqalabs/loqa-rhvoice/internal/config"
	"github.com/loqalabs/loqa-rhvoice/internal/options"
	"github.com/loqalabs/loqa-rhvoice/internal/voices"
)

const (
	sayPath        = "/say"
	defaultTimeout = 10 * time.Second
)

var tracer = otel.Tracer("github.com/loqalabs/loqa-rhvoice/tts")

// Provider synthesizes speech through the HTTP API of an RHVoice server.
type Provider struct {
	capabilities
	endpoint  string
	timeout   time.Duration
	client    *http.Client
	ownsPool  bool
	observers []Observer
	logger    *slog.Logger
}

// NewProvider builds a provider from an already validated configuration. The
// HTTP client is owned by the caller and shared across calls; when
// certificate verification is disabled the provider works on a clone of its
// transport.
func NewProvider(cfg config.RHVoiceConfig, catalog *voices.Catalog, client *http.Client, logger *slog.Logger, observers ...Observer) *Provider {
	if client == nil {
		client = http.DefaultClient
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger = logger.With(slog.String("component", "rhvoice"))
	var ownsPool bool
	if cfg.SSL && !cfg.VerifySSL {
		insecure, ok := insecureClient(client)
		if !ok {
			logger.Warn("transport does not support disabling certificate verification")
		}
		client, ownsPool = insecure, ok
	}
	return &Provider{
		capabilities: newCapabilities(cfg.Defaults(), catalog),
		endpoint:     endpointURL(cfg),
		timeout:      timeout,
		client:       client,
		ownsPool:     ownsPool,
		observers:    observers,
		logger:       logger,
	}
}

func endpointURL(cfg config.RHVoiceConfig) string {
	scheme := "http"
	if cfg.SSL {
		scheme = "https"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   sayPath,
	}
	return u.String()
}

func insecureClient(base *http.Client) (*http.Client, bool) {
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	transport, ok := rt.(*http.Transport)
	if !ok {
		return base, false
	}
	cloned := transport.Clone()
	if cloned.TLSClientConfig == nil {
		cloned.TLSClientConfig = &tls.Config{}
	}
	cloned.TLSClientConfig.InsecureSkipVerify = true
	c := *base
	c.Transport = cloned
	return &c, true
}

// CloseIdleConnections releases the connection pool the provider created for
// unverified TLS. A borrowed client is left to its owner.
func (p *Provider) CloseIdleConnections() {
	if p.ownsPool {
		p.client.CloseIdleConnections()
	}
}

// Endpoint returns the URL requests are sent to, without query.
func (p *Provider) Endpoint() string { return p.endpoint }

// GetAudio renders text with the resolved options. The returned encoding is
// the configured format even when opts overrides it. The language is accepted
// for interface compatibility and is not matched against the voice.
func (p *Provider) GetAudio(ctx context.Context, text, language string, opts map[string]any) (string, []byte, error) {
	params, substituted, err := p.params(text, opts)
	if err != nil {
		return "", nil, err
	}
	if substituted {
		p.logger.Warn("the message text can't be empty, sending a single space")
	}

	attempt := p.say(ctx, language, params)
	notify(ctx, p.observers, attempt)
	if attempt.Outcome != OutcomeOK {
		return "", nil, nil
	}
	return p.encoding, attempt.Audio, nil
}

// say performs exactly one request bounded by the provider timeout.
func (p *Provider) say(ctx context.Context, language string, params options.Params) (a Attempt) {
	a = Attempt{
		ID:        xid.New().String(),
		SessionID: SessionFromContext(ctx),
		Backend:   "rhvoice",
		Language:  language,
		Params:    params,
		URL:       p.endpoint + "?" + params.Query().Encode(),
		StartedAt: time.Now(),
	}
	log := p.logger.With(slog.String("request_id", a.ID))

	ctx, span := tracer.Start(ctx, "rhvoice.say")
	span.SetAttributes(
		attribute.String("tts.voice", params.Voice),
		attribute.String("tts.format", params.Format),
		attribute.Int("tts.text_length", len(params.Text)),
	)
	defer func() {
		a.Duration = time.Since(a.StartedAt)
		span.SetAttributes(attribute.String("tts.outcome", string(a.Outcome)))
		if a.Outcome != OutcomeOK {
			span.SetStatus(codes.Error, string(a.Outcome))
		}
		span.End()
	}()

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, a.URL, nil)
	if err != nil {
		a.Outcome, a.Err = OutcomeTransport, err
		log.Error("failed to build RHVoice request", slog.String("error", err.Error()))
		return a
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.fail(log, &a, reqCtx, err)
		return a
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.Outcome, a.StatusCode = OutcomeRemoteStatus, resp.StatusCode
		log.Error("RHVoice request rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("url", a.URL))
		return a
	}
	a.StatusCode = resp.StatusCode

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		p.fail(log, &a, reqCtx, err)
		return a
	}
	a.Outcome, a.Audio = OutcomeOK, data
	log.Debug("RHVoice synthesis completed",
		slog.String("voice", params.Voice),
		slog.String("format", params.Format),
		slog.Int("bytes", len(data)))
	return a
}

func (p *Provider) fail(log *slog.Logger, a *Attempt, reqCtx context.Context, err error) {
	a.Err = err
	if isTimeout(reqCtx, err) {
		a.Outcome = OutcomeTimeout
		log.Error("timeout for RHVoice API", slog.Duration("timeout", p.timeout))
		return
	}
	a.Outcome = OutcomeTransport
	log.Error("RHVoice request failed", slog.String("error", err.Error()))
}

func isTimeout(reqCtx context.Context, err error) bool {
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
