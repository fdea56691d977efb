package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/kittenml/speechcore/internal/chunk"
	"github.com/kittenml/speechcore/internal/config"
	"github.com/kittenml/speechcore/internal/normalize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Registry is the process-wide store of streaming sessions. It is safe for
// concurrent use across different sessions; calls into the same session are
// serialized by the session's own mutex.
//
// Idle sessions are evicted after the configured timeout. Evicting a
// session that still holds pending unflushed text discards that text; the
// registry logs the loss rather than keeping the session alive.
type Registry struct {
	cfg        config.SessionsConfig
	normOpts   normalize.Options
	maxUnitLen int
	log        *slog.Logger
	voices     map[string]struct{}
	sessions   *ttlcache.Cache[string, *Session]
	clock      func() time.Time

	meter     metric.Meter
	unitsDone metric.Int64Counter
	evictions metric.Int64Counter
}

func NewRegistry(cfg config.SessionsConfig, normOpts normalize.Options, maxUnitLen int, log *slog.Logger) *Registry {
	r := &Registry{
		cfg:        cfg,
		normOpts:   normOpts,
		maxUnitLen: maxUnitLen,
		log:        log.With(slog.String("component", "session-registry")),
		voices:     make(map[string]struct{}, len(cfg.Voices)),
		clock:      time.Now,
		meter:      otel.Meter("github.com/kittenml/speechcore/internal/session"),
	}
	for _, v := range cfg.Voices {
		r.voices[v] = struct{}{}
	}

	ttl := ttlcache.NoTTL
	if cfg.IdleTimeoutMS > 0 {
		ttl = time.Duration(cfg.IdleTimeoutMS) * time.Millisecond
	}
	r.sessions = ttlcache.New[string, *Session](
		ttlcache.WithTTL[string, *Session](ttl),
	)
	r.sessions.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Session]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		sess := item.Value()
		sess.mu.Lock()
		pending := sess.seg.Pending()
		sess.mu.Unlock()
		if pending != "" {
			r.log.Warn("evicting idle session with unflushed text",
				slog.String("session_id", sess.ID),
				slog.Int("discarded_bytes", len(pending)))
		} else {
			r.log.Info("evicted idle session", slog.String("session_id", sess.ID))
		}
		if r.evictions != nil {
			r.evictions.Add(context.Background(), 1)
		}
	})
	go r.sessions.Start()

	if err := r.initMetrics(); err != nil {
		r.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	return r
}

func (r *Registry) initMetrics() error {
	gauge, err := r.meter.Int64ObservableGauge("speech.sessions.active",
		metric.WithDescription("Streaming sessions currently registered"))
	if err != nil {
		return err
	}
	if _, err := r.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, int64(r.sessions.Len()))
		return nil
	}, gauge); err != nil {
		return err
	}
	r.unitsDone, err = r.meter.Int64Counter("speech.units.emitted",
		metric.WithDescription("Synthesis-ready text units emitted"))
	if err != nil {
		return err
	}
	r.evictions, err = r.meter.Int64Counter("speech.sessions.evicted",
		metric.WithDescription("Sessions evicted after idle timeout"))
	return err
}

// Close stops the idle-eviction janitor.
func (r *Registry) Close() {
	r.sessions.Stop()
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	return r.sessions.Len()
}

// Start validates voice and speed, creates a session with a fresh random
// identifier, and registers it.
func (r *Registry) Start(voice string, speed float64) (Info, error) {
	if voice == "" {
		voice = r.cfg.DefaultVoice
	}
	if _, ok := r.voices[voice]; !ok {
		return Info{}, fmt.Errorf("%w: unknown voice %q", ErrInvalidParameter, voice)
	}
	if speed < r.cfg.MinSpeed || speed > r.cfg.MaxSpeed {
		return Info{}, fmt.Errorf("%w: speed %.2f outside [%.2f, %.2f]",
			ErrInvalidParameter, speed, r.cfg.MinSpeed, r.cfg.MaxSpeed)
	}

	sess := newSession(uuid.NewString(), voice, speed, r.clock())
	r.sessions.Set(sess.ID, sess, ttlcache.DefaultTTL)
	r.log.Info("session started",
		slog.String("session_id", sess.ID),
		slog.String("voice", voice),
		slog.Float64("speed", speed))
	return sess.info(), nil
}

// Lookup returns a snapshot of the identified session.
func (r *Registry) Lookup(id string) (Info, error) {
	sess, err := r.get(id)
	if err != nil {
		return Info{}, err
	}
	return sess.info(), nil
}

// AddText appends a fragment to the session's pending buffer and returns
// the synthesis-ready units for every sentence the fragment completed.
// Returned units are owned by the caller; the session does not retain them.
func (r *Registry) AddText(id, fragment string) ([]chunk.Unit, error) {
	sess, err := r.get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastActive = r.clock()

	var units []chunk.Unit
	for _, sentence := range sess.seg.Append(fragment) {
		units = append(units, r.process(sess, sentence)...)
	}
	r.countUnits(len(units))
	return units, nil
}

// Flush forces out whatever pending text the session holds, normalized and
// chunked like a completed sentence. May return no units.
func (r *Registry) Flush(id string) ([]chunk.Unit, error) {
	sess, err := r.get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastActive = r.clock()

	remainder := sess.seg.Flush()
	if remainder == "" {
		return nil, nil
	}
	units := r.process(sess, remainder)
	r.countUnits(len(units))
	return units, nil
}

// BufferedText exposes the session's unterminated pending buffer for
// diagnostics.
func (r *Registry) BufferedText(id string) (string, error) {
	sess, err := r.get(id)
	if err != nil {
		return "", err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.seg.Pending(), nil
}

// End removes the session. Further operations on the identifier fail with
// ErrSessionNotFound.
func (r *Registry) End(id string) error {
	if _, err := r.get(id); err != nil {
		return err
	}
	r.sessions.Delete(id)
	r.log.Info("session ended", slog.String("session_id", id))
	return nil
}

func (r *Registry) get(id string) (*Session, error) {
	item := r.sessions.Get(id)
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return item.Value(), nil
}

// process normalizes one completed sentence and splits it into bounded
// units, stamping each with the session-wide ordinal sequence. Caller holds
// the session mutex.
func (r *Registry) process(sess *Session, sentence string) []chunk.Unit {
	normalized := normalize.Normalize(sentence, r.normOpts)
	if normalized == "" {
		return nil
	}
	units := chunk.Split(normalized, r.maxUnitLen)
	for i := range units {
		units[i].Sequence = sess.nextSeq
		sess.nextSeq++
	}
	return units
}

func (r *Registry) countUnits(n int) {
	if n > 0 && r.unitsDone != nil {
		r.unitsDone.Add(context.Background(), int64(n))
	}
}
