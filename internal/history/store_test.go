package history

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/kittenml/speechcore/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	cfg := config.HistoryConfig{RetentionMode: "ephemeral"}
	st, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.AppendUnit(context.Background(), UnitRecord{SessionID: "s1", Text: "hello"}); err != nil {
		t.Fatalf("ephemeral append should be a no-op: %v", err)
	}
	units, err := st.ListSessionUnits(context.Background(), "s1", 10)
	if err != nil {
		t.Fatalf("list units: %v", err)
	}
	if len(units) != 0 {
		t.Fatalf("ephemeral store should return no units, got %d", len(units))
	}
}

func TestAppendAndQuery(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.HistoryConfig{Path: filepath.Join(tmp, "history.db"), RetentionMode: "session"}
	st, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	sessionID := "session-123"
	if err := st.AppendSession(context.Background(), SessionRecord{SessionID: sessionID, Voice: "expr-voice-5-m", Speed: 1.0}); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := st.AppendUnit(context.Background(), UnitRecord{SessionID: sessionID, Sequence: 0, Text: "hello there!", Final: false}); err != nil {
		t.Fatalf("append unit: %v", err)
	}
	if err := st.AppendUnit(context.Background(), UnitRecord{SessionID: sessionID, Sequence: 1, Text: "how are you?", Final: true}); err != nil {
		t.Fatalf("append unit: %v", err)
	}

	units, err := st.ListSessionUnits(context.Background(), sessionID, 10)
	if err != nil {
		t.Fatalf("list units: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if units[0].Text != "hello there!" || units[0].Sequence != 0 {
		t.Fatalf("unexpected first unit: %+v", units[0])
	}
	if !units[1].Final {
		t.Fatalf("expected second unit to be final")
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.HistoryConfig{Path: filepath.Join(tmp, "history.db"), RetentionMode: "persistent", RetentionDays: 1, MaxSessions: 1}
	st, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	st.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := st.AppendSession(context.Background(), SessionRecord{SessionID: "old-session", Voice: "expr-voice-2-f", Speed: 1.0}); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := st.AppendUnit(context.Background(), UnitRecord{SessionID: "old-session", Text: "stale"}); err != nil {
		t.Fatalf("append unit: %v", err)
	}

	st.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := st.AppendSession(context.Background(), SessionRecord{SessionID: "new-session", Voice: "expr-voice-2-f", Speed: 1.0}); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := st.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	units, err := st.ListSessionUnits(context.Background(), "old-session", 10)
	if err != nil {
		t.Fatalf("list units: %v", err)
	}
	if len(units) != 0 {
		t.Fatalf("expected old session units pruned")
	}
}
