package tts

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/loqa-rhvoice/internal/bus"
	"github.com/loqalabs/loqa-rhvoice/internal/config"
	"github.com/loqalabs/loqa-rhvoice/internal/options"
	"github.com/loqalabs/loqa-rhvoice/internal/protocol"
	"github.com/loqalabs/loqa-rhvoice/internal/voices"
)

var errSynthesisFailed = errors.New("synthesis failed")

// Service serves synthesis requests arriving on the bus.
type Service struct {
	cfg      config.TTSConfig
	subjects protocol.Subjects
	bus      *bus.Client
	synth    Synthesizer
	subs     []*nats.Subscription
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   bool
	logger   *slog.Logger
}

func NewService(parent context.Context, cfg config.TTSConfig, busClient *bus.Client, synth Synthesizer, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:      cfg,
		subjects: protocol.TTSSubjects(cfg.SubjectPrefix),
		bus:      busClient,
		synth:    synth,
		ctx:      ctx,
		cancel:   cancel,
		logger:   log.With(slog.String("component", "tts-service")),
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	conn := s.bus.Conn()
	sub, err := conn.Subscribe(s.subjects.Request, s.handleRequest)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)

	infoSub, err := conn.Subscribe(s.subjects.Info, s.handleInfo)
	if err != nil {
		_ = sub.Drain()
		return err
	}
	s.subs = append(s.subs, infoSub)
	return nil
}

// Close stops accepting requests and waits for in-flight ones. Callbacks that
// the drain still delivers are dropped.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return !s.cfg.Enabled || len(s.subs) == 2 }

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.TTSRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode tts request", slogError(err))
		return
	}

	if !s.track() {
		s.logger.Debug("dropping tts request after close", slog.String("session_id", req.SessionID))
		return
	}
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, s.requestTimeout())
		defer cancel()
		ctx = WithSession(ctx, req.SessionID)

		encoding, audio, err := s.synth.GetAudio(ctx, req.Text, req.Language, req.Options)
		if err == nil && encoding == "" && audio == nil {
			err = errSynthesisFailed
		}

		status := protocol.TTSStatus{
			SessionID: req.SessionID,
			Target:    req.Target,
			Completed: err == nil,
			Timestamp: time.Now().UTC(),
		}
		if err != nil {
			var verr *options.ValidationError
			if errors.As(err, &verr) {
				s.logger.Warn("rejected tts request", slog.String("session_id", req.SessionID), slogError(err))
			}
			status.Error = err.Error()
		}

		var packet *protocol.TTSAudio
		if err == nil {
			packet = &protocol.TTSAudio{
				SessionID: req.SessionID,
				Target:    req.Target,
				Encoding:  encoding,
				Audio:     audio,
				Timestamp: status.Timestamp,
			}
		}

		if msg.Reply != "" {
			s.respond(msg, protocol.TTSReply{Status: status, Audio: packet})
			return
		}
		if packet != nil {
			s.publish(s.subjects.Audio, packet)
		}
		s.publish(s.subjects.Done, status)
	}()
}

// track registers one in-flight request unless the service is closed.
func (s *Service) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Service) handleInfo(msg *nats.Msg) {
	if msg.Reply == "" {
		return
	}
	s.respond(msg, Info(s.synth, voices.Default()))
}

func (s *Service) requestTimeout() time.Duration {
	if d := s.cfg.RequestTimeout(); d > 0 {
		return d
	}
	return 45 * time.Second
}

func (s *Service) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("failed to marshal tts message", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(subject, data); err != nil {
		s.logger.Warn("failed to publish tts message", slog.String("subject", subject), slogError(err))
	}
}

func (s *Service) respond(msg *nats.Msg, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("failed to marshal tts reply", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to send tts reply", slogError(err))
	}
}

// Info summarizes what synth supports.
func Info(synth Synthesizer, catalog *voices.Catalog) protocol.TTSInfo {
	info := protocol.TTSInfo{
		Languages: synth.SupportedLanguages(),
		Options:   synth.SupportedOptions(),
		Formats:   options.Formats(),
		Voices:    make(map[string][]string),
	}
	if lang, ok := synth.DefaultLanguage(); ok {
		info.DefaultLanguage = lang
	}
	for _, lang := range catalog.Entries() {
		info.Voices[lang.Tag] = lang.Voices
	}
	return info
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
