package session

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/kittenml/speechcore/internal/config"
	"github.com/kittenml/speechcore/internal/normalize"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	cfg := config.Default().Sessions
	r := NewRegistry(cfg, normalize.DefaultOptions(), 400, newLogger())
	t.Cleanup(r.Close)
	return r
}

func TestStartValidatesParameters(t *testing.T) {
	r := newRegistry(t)

	if _, err := r.Start("expr-voice-5-m", 5.0); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for speed, got %v", err)
	}
	if _, err := r.Start("expr-voice-5-m", 0.1); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for slow speed, got %v", err)
	}
	if _, err := r.Start("robot-voice", 1.0); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for voice, got %v", err)
	}

	info, err := r.Start("expr-voice-2-f", 1.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID == "" || info.Voice != "expr-voice-2-f" || info.Speed != 1.5 {
		t.Fatalf("unexpected session info: %+v", info)
	}
}

func TestStartDefaultsVoice(t *testing.T) {
	r := newRegistry(t)
	info, err := r.Start("", 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Voice != "expr-voice-5-m" {
		t.Fatalf("expected default voice, got %q", info.Voice)
	}
}

func TestAddTextEmitsNormalizedUnits(t *testing.T) {
	r := newRegistry(t)
	info, err := r.Start("expr-voice-5-m", 1.0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	units, err := r.AddText(info.ID, "I have 3 cats and $5. And more coming")
	if err != nil {
		t.Fatalf("add text: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d: %v", len(units), units)
	}
	if units[0].Text != "I have three cats and five dollars." {
		t.Fatalf("unexpected unit text: %q", units[0].Text)
	}
	if units[0].Sequence != 0 || !units[0].Final {
		t.Fatalf("unexpected unit metadata: %+v", units[0])
	}

	buffered, err := r.BufferedText(info.ID)
	if err != nil {
		t.Fatalf("buffered text: %v", err)
	}
	if buffered != "And more coming" {
		t.Fatalf("unexpected pending buffer: %q", buffered)
	}
}

func TestFlushEmitsRemainder(t *testing.T) {
	r := newRegistry(t)
	info, _ := r.Start("expr-voice-5-m", 1.0)

	if _, err := r.AddText(info.ID, "an unterminated thought"); err != nil {
		t.Fatalf("add text: %v", err)
	}
	units, err := r.Flush(info.ID)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(units) != 1 || units[0].Text != "an unterminated thought" {
		t.Fatalf("unexpected flush units: %v", units)
	}

	units, err = r.Flush(info.ID)
	if err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if len(units) != 0 {
		t.Fatalf("expected empty second flush, got %v", units)
	}
}

func TestSequenceSpansSentences(t *testing.T) {
	r := newRegistry(t)
	info, _ := r.Start("expr-voice-5-m", 1.0)

	first, err := r.AddText(info.ID, "One here. Two here. ")
	if err != nil {
		t.Fatalf("add text: %v", err)
	}
	second, err := r.AddText(info.ID, "Three here.")
	if err != nil {
		t.Fatalf("add text: %v", err)
	}
	all := append(first, second...)
	if len(all) != 3 {
		t.Fatalf("expected 3 units, got %d", len(all))
	}
	for i, unit := range all {
		if unit.Sequence != i {
			t.Fatalf("unit %d has sequence %d", i, unit.Sequence)
		}
	}
}

func TestEndRemovesSession(t *testing.T) {
	r := newRegistry(t)
	info, _ := r.Start("expr-voice-5-m", 1.0)

	if err := r.End(info.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := r.AddText(info.ID, "hello"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := r.End(info.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on double end, got %v", err)
	}
}

func TestUnknownSessionOperations(t *testing.T) {
	r := newRegistry(t)
	if _, err := r.AddText("ghost", "text"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := r.Flush("ghost"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := r.BufferedText("ghost"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionIsolation(t *testing.T) {
	r := newRegistry(t)
	a, _ := r.Start("expr-voice-2-m", 1.0)
	b, _ := r.Start("expr-voice-3-f", 2.0)

	if _, err := r.AddText(a.ID, "Alpha session text without end"); err != nil {
		t.Fatalf("add text a: %v", err)
	}
	unitsB, err := r.AddText(b.ID, "Beta sentence closes here.")
	if err != nil {
		t.Fatalf("add text b: %v", err)
	}
	for _, unit := range unitsB {
		if strings.Contains(unit.Text, "Alpha") {
			t.Fatalf("session a text leaked into session b: %q", unit.Text)
		}
	}
	bufA, _ := r.BufferedText(a.ID)
	if !strings.Contains(bufA, "Alpha") {
		t.Fatalf("session a lost its pending text: %q", bufA)
	}
	bufB, _ := r.BufferedText(b.ID)
	if bufB != "" {
		t.Fatalf("session b should have empty pending buffer, got %q", bufB)
	}
}

func TestLongSentenceIsChunked(t *testing.T) {
	cfg := config.Default().Sessions
	r := NewRegistry(cfg, normalize.DefaultOptions(), 40, newLogger())
	t.Cleanup(r.Close)

	info, _ := r.Start("expr-voice-5-m", 1.0)
	long := "this sentence keeps going with many short words strung together until it finally stops."
	units, err := r.AddText(info.ID, long)
	if err != nil {
		t.Fatalf("add text: %v", err)
	}
	if len(units) < 2 {
		t.Fatalf("expected chunked output, got %v", units)
	}
	if !units[len(units)-1].Final {
		t.Fatal("last unit must carry the final flag")
	}
	for i, unit := range units[:len(units)-1] {
		if unit.Final {
			t.Fatalf("unit %d wrongly marked final", i)
		}
	}
}

func TestIdleEviction(t *testing.T) {
	cfg := config.Default().Sessions
	cfg.IdleTimeoutMS = 20
	r := NewRegistry(cfg, normalize.DefaultOptions(), 400, newLogger())
	t.Cleanup(r.Close)

	if _, err := r.Start("expr-voice-5-m", 1.0); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Polling Len instead of Lookup: a lookup would refresh the idle timer.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.Len() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session was not evicted after idle timeout")
}
