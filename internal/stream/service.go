// Package stream exposes the text preparation pipeline over the message
// bus. It owns the NATS subscriptions for one-shot synthesis requests and
// for streaming sessions, fans normalized units back out as bus messages,
// and drives the synthesizer backend when one is configured.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/kittenml/speechcore/internal/bus"
	"github.com/kittenml/speechcore/internal/chunk"
	"github.com/kittenml/speechcore/internal/config"
	"github.com/kittenml/speechcore/internal/history"
	"github.com/kittenml/speechcore/internal/normalize"
	"github.com/kittenml/speechcore/internal/phoneme"
	"github.com/kittenml/speechcore/internal/protocol"
	"github.com/kittenml/speechcore/internal/session"
	"github.com/kittenml/speechcore/internal/synth"
	"github.com/nats-io/nats.go"
)

const synthTimeout = 45 * time.Second

type Service struct {
	cfg        config.StreamConfig
	bus        *bus.Client
	registry   *session.Registry
	synth      synth.Synthesizer
	phon       phoneme.Phonemizer
	phonLang   string
	hist       *history.Store
	normOpts   normalize.Options
	maxUnitLen int

	subSpeech *nats.Subscription
	subStart  *nats.Subscription
	subText   *nats.Subscription
	subEnd    *nats.Subscription

	jobs   chan synthJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

// synthJob is one batch of units queued for synthesis.
type synthJob struct {
	sessionID string
	voice     string
	speed     float64
	units     []chunk.Unit
}

// NewService wires the stream service. synthesizer, phonemizer and hist
// may be nil; the service then only emits text units.
func NewService(parent context.Context, cfg config.StreamConfig, busClient *bus.Client, registry *session.Registry, synthesizer synth.Synthesizer, phonemizer phoneme.Phonemizer, phonLang string, hist *history.Store, normOpts normalize.Options, maxUnitLen int, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	if maxUnitLen <= 0 {
		maxUnitLen = chunk.DefaultMaxLen
	}
	return &Service{
		cfg:        cfg,
		bus:        busClient,
		registry:   registry,
		synth:      synthesizer,
		phon:       phonemizer,
		phonLang:   phonLang,
		hist:       hist,
		normOpts:   normOpts,
		maxUnitLen: maxUnitLen,
		jobs:       make(chan synthJob, 64),
		ctx:        ctx,
		cancel:     cancel,
		logger:     log.With(slog.String("component", "stream-service")),
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}

	if s.synth != nil {
		s.wg.Add(1)
		go s.synthWorker()
	}

	sub, err := s.bus.Conn().Subscribe(protocol.SubjectSpeechRequest, s.handleSpeechRequest)
	if err != nil {
		return err
	}
	s.subSpeech = sub

	if s.subStart, err = s.bus.Conn().Subscribe(protocol.SubjectStreamStart, s.handleStreamStart); err != nil {
		s.drainSubs()
		return err
	}
	if s.subText, err = s.bus.Conn().Subscribe(protocol.SubjectStreamText, s.handleStreamText); err != nil {
		s.drainSubs()
		return err
	}
	if s.subEnd, err = s.bus.Conn().Subscribe(protocol.SubjectStreamEnd, s.handleStreamEnd); err != nil {
		s.drainSubs()
		return err
	}
	return nil
}

func (s *Service) Close() {
	s.cancel()
	s.drainSubs()
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	if !s.cfg.Enabled {
		return true
	}
	return s.subSpeech != nil && s.subStart != nil && s.subText != nil && s.subEnd != nil
}

func (s *Service) drainSubs() {
	for _, sub := range []*nats.Subscription{s.subSpeech, s.subStart, s.subText, s.subEnd} {
		if sub != nil {
			_ = sub.Drain()
		}
	}
}

// handleSpeechRequest prepares a static block of text without opening a
// session. The request id doubles as the session id on emitted messages.
func (s *Service) handleSpeechRequest(msg *nats.Msg) {
	var req protocol.SpeechRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode speech request", slogError(err))
		return
	}
	if req.Text == "" {
		return
	}

	normalized := normalize.Normalize(req.Text, s.normOpts)
	if normalized == "" {
		// Nothing speakable survived, e.g. the text was only markup or a URL.
		return
	}
	units := chunk.Split(normalized, s.maxUnitLen)

	for _, u := range units {
		s.publishUnit(req.RequestID, u)
		s.recordUnit(req.RequestID, u)
	}

	speed := req.Speed
	if speed == 0 {
		speed = 1.0
	}
	s.synthesizeUnits(req.RequestID, req.Voice, speed, units)
}

func (s *Service) handleStreamStart(msg *nats.Msg) {
	var req protocol.StreamStart
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode stream start", slogError(err))
		return
	}

	info, err := s.registry.Start(req.Voice, req.Speed)
	reply := protocol.StreamStarted{}
	if err != nil {
		reply.Error = err.Error()
	} else {
		reply.SessionID = info.ID
		s.recordSession(info)
	}

	if msg.Reply == "" {
		if err != nil {
			s.logger.Warn("stream start rejected without reply subject", slogError(err))
		}
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		s.logger.Warn("failed to marshal stream started", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to respond to stream start", slogError(err))
	}
}

func (s *Service) handleStreamText(msg *nats.Msg) {
	var req protocol.StreamText
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode stream text", slogError(err))
		return
	}

	units, err := s.registry.AddText(req.SessionID, req.Text)
	if err != nil {
		s.logger.Warn("stream text rejected",
			slog.String("session_id", req.SessionID), slogError(err))
		s.respondUnits(msg, protocol.UnitBatch{Error: err.Error()})
		return
	}

	// A failed flush must not drop the units the append already produced.
	var flushErr error
	if req.Flush {
		flushed, err := s.registry.Flush(req.SessionID)
		if err != nil {
			flushErr = err
			s.logger.Warn("stream flush rejected",
				slog.String("session_id", req.SessionID), slogError(err))
		} else {
			units = append(units, flushed...)
		}
	}

	var emitted []protocol.TextUnit
	for _, u := range units {
		emitted = append(emitted, s.publishUnit(req.SessionID, u))
		s.recordUnit(req.SessionID, u)
	}

	batch := protocol.UnitBatch{Units: emitted}
	if flushErr != nil {
		batch.Error = flushErr.Error()
	}
	s.respondUnits(msg, batch)

	if len(units) > 0 {
		if info, err := s.registry.Lookup(req.SessionID); err == nil {
			s.synthesizeUnits(req.SessionID, info.Voice, info.Speed, units)
		}
	}
}

func (s *Service) handleStreamEnd(msg *nats.Msg) {
	var req protocol.StreamEnd
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode stream end", slogError(err))
		return
	}
	if err := s.registry.End(req.SessionID); err != nil {
		s.logger.Warn("stream end rejected",
			slog.String("session_id", req.SessionID), slogError(err))
	}
}

func (s *Service) respondUnits(msg *nats.Msg, batch protocol.UnitBatch) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(batch)
	if err != nil {
		s.logger.Warn("failed to marshal unit batch", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to respond with unit batch", slogError(err))
	}
}

func (s *Service) publishUnit(sessionID string, u chunk.Unit) protocol.TextUnit {
	unit := protocol.TextUnit{
		SessionID: sessionID,
		Sequence:  u.Sequence,
		Text:      u.Text,
		Final:     u.Final,
	}
	data, err := json.Marshal(unit)
	if err != nil {
		s.logger.Warn("failed to marshal text unit", slogError(err))
		return unit
	}
	if err := s.bus.Conn().Publish(protocol.SubjectUnitReady, data); err != nil {
		s.logger.Warn("failed to publish text unit", slogError(err))
	}
	return unit
}

func (s *Service) recordSession(info session.Info) {
	if s.hist == nil {
		return
	}
	rec := history.SessionRecord{
		SessionID: info.ID,
		Voice:     info.Voice,
		Speed:     info.Speed,
		CreatedAt: info.CreatedAt,
	}
	if err := s.hist.AppendSession(s.ctx, rec); err != nil {
		s.logger.Warn("failed to record session", slogError(err))
	}
}

func (s *Service) recordUnit(sessionID string, u chunk.Unit) {
	if s.hist == nil {
		return
	}
	rec := history.UnitRecord{
		SessionID: sessionID,
		Sequence:  u.Sequence,
		Text:      u.Text,
		Final:     u.Final,
	}
	if err := s.hist.AppendUnit(s.ctx, rec); err != nil {
		s.logger.Warn("failed to record unit", slogError(err))
	}
}

// synthesizeUnits queues a batch for the synth worker. The single worker
// drains batches in enqueue order, so audio chunks for a session are
// published in unit order even across successive text messages.
func (s *Service) synthesizeUnits(sessionID, voice string, speed float64, units []chunk.Unit) {
	if s.synth == nil || len(units) == 0 {
		return
	}
	select {
	case s.jobs <- synthJob{sessionID: sessionID, voice: voice, speed: speed, units: units}:
	case <-s.ctx.Done():
	}
}

func (s *Service) synthWorker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-s.jobs:
			for _, u := range job.units {
				s.synthesizeUnit(job.sessionID, job.voice, job.speed, u)
			}
		}
	}
}

func (s *Service) synthesizeUnit(sessionID, voice string, speed float64, u chunk.Unit) {
	ctx, cancel := context.WithTimeout(s.ctx, synthTimeout)
	defer cancel()

	text := u.Text
	if s.phon != nil {
		phonemes, err := s.phon.Phonemize(ctx, u.Text, s.phonLang)
		if err != nil {
			s.logger.Warn("phonemization failed, passing raw text",
				slog.String("session_id", sessionID), slogError(err))
		} else {
			text = phonemes
		}
	}

	chunks, errs := s.synth.Synthesize(ctx, synth.Request{
		SessionID: sessionID,
		Text:      text,
		Voice:     voice,
		Speed:     speed,
	})

	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			s.publishChunk(sessionID, u, c)
		case err, ok := <-errs:
			if ok && err != nil {
				s.logger.Warn("synthesis error",
					slog.String("session_id", sessionID), slogError(err))
			}
			errs = nil
		case <-ctx.Done():
			s.logger.Warn("synthesis cancelled", slogError(ctx.Err()))
			return
		}
		if chunks == nil && errs == nil {
			return
		}
	}
}

func (s *Service) publishChunk(sessionID string, u chunk.Unit, c synth.Chunk) {
	packet := protocol.AudioChunk{
		SessionID:    sessionID,
		Target:       s.cfg.Target,
		SampleRate:   c.SampleRate,
		Channels:     c.Channels,
		UnitSequence: u.Sequence,
		Sequence:     c.Sequence,
		PCM:          c.PCM,
		Final:        u.Final && c.Final,
	}
	data, err := json.Marshal(packet)
	if err != nil {
		s.logger.Warn("failed to marshal audio chunk", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectAudioChunk, data); err != nil {
		s.logger.Warn("failed to publish audio chunk", slogError(err))
	}
	if packet.Final {
		status := protocol.SynthStatus{
			SessionID: sessionID,
			Target:    s.cfg.Target,
			Completed: true,
			Timestamp: time.Now().UTC(),
		}
		if data, err := json.Marshal(status); err == nil {
			_ = s.bus.Conn().Publish(protocol.SubjectAudioDone, data)
		}
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
