package stream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kittenml/speechcore/internal/bus"
	"github.com/kittenml/speechcore/internal/config"
	"github.com/kittenml/speechcore/internal/natsserver"
	"github.com/kittenml/speechcore/internal/normalize"
	"github.com/kittenml/speechcore/internal/protocol"
	"github.com/kittenml/speechcore/internal/session"
	"github.com/kittenml/speechcore/internal/synth"
	"github.com/nats-io/nats.go"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(t *testing.T, synthesizer synth.Synthesizer) (*Service, *session.Registry, *bus.Client) {
	t.Helper()
	log := newLogger()

	busCfg := config.Default().Bus
	busCfg.Port = -1 // random port
	srv, err := natsserver.Start(busCfg, log)
	if err != nil {
		t.Fatalf("start embedded server: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	busCfg.Servers = []string{srv.ClientURL()}
	client, err := bus.Connect(busCfg, log)
	if err != nil {
		t.Fatalf("connect to embedded server: %v", err)
	}
	t.Cleanup(client.Close)

	registry := session.NewRegistry(config.Default().Sessions, normalize.DefaultOptions(), 400, log)
	t.Cleanup(registry.Close)

	svc := NewService(context.Background(), config.StreamConfig{Enabled: true, Target: "test"},
		client, registry, synthesizer, nil, "", nil, normalize.DefaultOptions(), 400, log)
	if err := svc.Start(); err != nil {
		t.Fatalf("start stream service: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc, registry, client
}

func TestAudioChunksFollowUnitOrder(t *testing.T) {
	svc, registry, client := newTestService(t, synth.NewMock(24000, 1))

	received := make(chan protocol.AudioChunk, 8)
	sub, err := client.Conn().Subscribe(protocol.SubjectAudioChunk, func(m *nats.Msg) {
		var c protocol.AudioChunk
		if err := json.Unmarshal(m.Data, &c); err == nil {
			received <- c
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() { _ = sub.Unsubscribe() })

	info, err := registry.Start("expr-voice-5-m", 1.0)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	// Two successive messages, each completing one sentence.
	for _, text := range []string{"First sentence done. ", "Second sentence done. "} {
		data, err := json.Marshal(protocol.StreamText{SessionID: info.ID, Text: text})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		svc.handleStreamText(&nats.Msg{Data: data})
	}

	var order []int
	deadline := time.After(5 * time.Second)
	for len(order) < 2 {
		select {
		case c := <-received:
			if c.SessionID != info.ID {
				continue
			}
			order = append(order, c.UnitSequence)
		case <-deadline:
			t.Fatalf("timed out waiting for audio chunks, got %v", order)
		}
	}
	if order[0] != 0 || order[1] != 1 {
		t.Fatalf("audio chunks out of unit order: %v", order)
	}
}

func TestSpeechRequestSkipsEmptyNormalizedText(t *testing.T) {
	svc, _, client := newTestService(t, nil)

	units := make(chan protocol.TextUnit, 4)
	sub, err := client.Conn().Subscribe(protocol.SubjectUnitReady, func(m *nats.Msg) {
		var u protocol.TextUnit
		if err := json.Unmarshal(m.Data, &u); err == nil {
			units <- u
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() { _ = sub.Unsubscribe() })

	data, err := json.Marshal(protocol.SpeechRequest{RequestID: "req-1", Text: "https://example.com"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	svc.handleSpeechRequest(&nats.Msg{Data: data})

	select {
	case u := <-units:
		t.Fatalf("unexpected unit published for markup-only text: %+v", u)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestStreamTextFlushCombinesUnits(t *testing.T) {
	_, registry, client := newTestService(t, nil)

	info, err := registry.Start("expr-voice-5-m", 1.0)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	data, err := json.Marshal(protocol.StreamText{SessionID: info.ID, Text: "Complete sentence. And a tail", Flush: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg, err := client.Conn().Request(protocol.SubjectStreamText, data, 2*time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var batch protocol.UnitBatch
	if err := json.Unmarshal(msg.Data, &batch); err != nil {
		t.Fatalf("unmarshal batch: %v", err)
	}
	if batch.Error != "" {
		t.Fatalf("unexpected batch error: %s", batch.Error)
	}
	if len(batch.Units) != 2 {
		t.Fatalf("expected sentence plus flushed tail, got %v", batch.Units)
	}
	if batch.Units[0].Sequence != 0 || batch.Units[1].Sequence != 1 {
		t.Fatalf("unexpected sequences: %v", batch.Units)
	}
	if batch.Units[1].Text != "And a tail" {
		t.Fatalf("unexpected flushed unit: %q", batch.Units[1].Text)
	}
}

func TestStreamTextUnknownSessionReturnsError(t *testing.T) {
	_, _, client := newTestService(t, nil)

	data, err := json.Marshal(protocol.StreamText{SessionID: "missing", Text: "Hello there. "})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg, err := client.Conn().Request(protocol.SubjectStreamText, data, 2*time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var batch protocol.UnitBatch
	if err := json.Unmarshal(msg.Data, &batch); err != nil {
		t.Fatalf("unmarshal batch: %v", err)
	}
	if batch.Error == "" {
		t.Fatal("expected an error for an unknown session")
	}
	if len(batch.Units) != 0 {
		t.Fatalf("expected no units, got %v", batch.Units)
	}
}
