package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-rhvoice/internal/bus"
	"github.com/loqalabs/loqa-rhvoice/internal/config"
	"github.com/loqalabs/loqa-rhvoice/internal/journal"
	"github.com/loqalabs/loqa-rhvoice/internal/natsserver"
	"github.com/loqalabs/loqa-rhvoice/internal/tts"
)

type Runtime struct {
	cfg           config.Config
	logger        *slog.Logger
	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error
	journal       *journal.Store
	synthesizer   tts.Synthesizer
	client        *http.Client
	nats          *natsserver.EmbeddedServer
	bus           *bus.Client
	service       *tts.Service
	ready         atomic.Bool
	wg            sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings up every component and blocks until ctx is cancelled.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(ctx, r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if err := r.startComponents(ctx); err != nil {
		r.stop()
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	newAPI(r.synthesizer, r.journal, r.logger).register(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.serve(r.httpServer, "http")

	if metricsHandler != nil && r.cfg.Telemetry.PrometheusBind != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricsHandler)
		r.metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.serve(r.metricsServer, "metrics")
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("mode", r.cfg.TTS.Mode),
		slog.Bool("bus", r.bus != nil),
	)

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)
	r.stop()
	return nil
}

// startComponents wires the journal, the synthesizer and, when enabled, the
// bus service. Everything started here is released by stop.
func (r *Runtime) startComponents(ctx context.Context) error {
	store, err := journal.Open(ctx, r.cfg.Journal, r.logger)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	r.journal = store

	metrics, err := tts.NewMetrics(nil)
	if err != nil {
		return fmt.Errorf("register tts metrics: %w", err)
	}

	r.client = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	synth, err := tts.New(r.cfg, r.client, r.logger, store, metrics)
	if err != nil {
		return fmt.Errorf("create synthesizer: %w", err)
	}
	r.synthesizer = synth

	if !r.cfg.Bus.Enabled {
		return nil
	}

	busCfg := r.cfg.Bus
	if busCfg.Embedded {
		r.nats, err = natsserver.Start(busCfg, "", r.logger)
		if err != nil {
			return fmt.Errorf("start embedded nats: %w", err)
		}
		busCfg.Servers = []string{r.nats.ClientURL()}
	}

	r.bus, err = bus.Connect(busCfg, r.cfg.RuntimeName, r.logger.With(slog.String("component", "bus")))
	if err != nil {
		return err
	}

	r.service = tts.NewService(ctx, r.cfg.TTS, r.bus, synth, r.logger)
	if err := r.service.Start(); err != nil {
		return fmt.Errorf("start tts service: %w", err)
	}
	return nil
}

func (r *Runtime) serve(srv *http.Server, name string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error(name+" server failed", slog.String("error", err.Error()))
		}
	}()
}

// stop releases components in reverse start order.
func (r *Runtime) stop() {
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	for _, srv := range []*http.Server{r.httpServer, r.metricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slog.String("addr", srv.Addr), slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.service != nil {
		r.service.Close()
	}
	r.bus.Close()
	r.nats.Shutdown()

	if c, ok := r.synthesizer.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
	if r.client != nil {
		r.client.CloseIdleConnections()
	}

	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			r.logger.Error("journal close error", slog.String("error", err.Error()))
		}
	}

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.isReady() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (r *Runtime) isReady() bool {
	if !r.ready.Load() {
		return false
	}
	if r.bus != nil && !r.bus.Healthy() {
		return false
	}
	return r.service == nil || r.service.Healthy()
}
