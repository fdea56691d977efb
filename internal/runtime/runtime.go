package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kittenml/speechcore/internal/bus"
	"github.com/kittenml/speechcore/internal/config"
	"github.com/kittenml/speechcore/internal/history"
	"github.com/kittenml/speechcore/internal/natsserver"
	"github.com/kittenml/speechcore/internal/phoneme"
	"github.com/kittenml/speechcore/internal/session"
	"github.com/kittenml/speechcore/internal/stream"
	"github.com/kittenml/speechcore/internal/synth"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded NATS server: %w", err)
	}

	busClient, err := bus.Connect(r.cfg.Bus, r.logger)
	if err != nil {
		embedded.Shutdown()
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	hist, err := history.Open(ctx, r.cfg.History, r.logger)
	if err != nil {
		busClient.Close()
		embedded.Shutdown()
		return fmt.Errorf("failed to open history store: %w", err)
	}

	registry := session.NewRegistry(r.cfg.Sessions, r.cfg.Normalizer.Options(), r.cfg.Chunker.MaxUnitLen, r.logger)

	closeCore := func() {
		registry.Close()
		if err := hist.Close(); err != nil {
			r.logger.Error("history close error", slog.String("error", err.Error()))
		}
		busClient.Close()
		embedded.Shutdown()
	}

	phonemizer, err := r.buildPhonemizer()
	if err != nil {
		closeCore()
		return fmt.Errorf("failed to build phonemizer: %w", err)
	}
	synthesizer, err := r.buildSynthesizer()
	if err != nil {
		closeCore()
		return fmt.Errorf("failed to build synthesizer: %w", err)
	}

	svc := stream.NewService(ctx, r.cfg.Stream, busClient, registry, synthesizer,
		phonemizer, r.cfg.Phonemizer.Language, hist,
		r.cfg.Normalizer.Options(), r.cfg.Chunker.MaxUnitLen, r.logger)
	if err := svc.Start(); err != nil {
		svc.Close()
		closeCore()
		return fmt.Errorf("failed to start stream service: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, req *http.Request) {
		r.handleReady(w, req, busClient, svc)
	})
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	svc.Close()
	closeCore()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) buildPhonemizer() (phoneme.Phonemizer, error) {
	pc := r.cfg.Phonemizer
	if !pc.Enabled {
		return nil, nil
	}
	var inner phoneme.Phonemizer
	switch pc.Mode {
	case "exec":
		p, err := phoneme.NewExec(pc.Command)
		if err != nil {
			return nil, err
		}
		inner = p
	default:
		inner = phoneme.NewMock()
	}
	return phoneme.NewCached(inner, pc.CacheSize), nil
}

func (r *Runtime) buildSynthesizer() (synth.Synthesizer, error) {
	sc := r.cfg.Synth
	if !sc.Enabled {
		return nil, nil
	}
	switch sc.Mode {
	case "exec":
		return synth.NewExec(sc.Command, sc.SampleRate, sc.Channels)
	default:
		return synth.NewMock(sc.SampleRate, sc.Channels), nil
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request, busClient *bus.Client, svc *stream.Service) {
	if r.ready.Load() && busClient.Healthy() && svc.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
