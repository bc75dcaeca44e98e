package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/keystress/internal/tracker"
)

func TestSnapshotRecordCopiesFeatures(t *testing.T) {
	takenAt := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	snap := tracker.Snapshot{
		EventCount:    9,
		KeyDowns:      5,
		KeyUps:        4,
		UniqueKeys:    3,
		MeanDwellMs:   80,
		MeanIKGMs:     150,
		MouseMoves:    2,
		DistancePx:    120,
		MaxSpeedPxS:   300,
		ActiveSeconds: 0.4,
	}
	rec := snapshotRecord(7, takenAt, snap)
	if rec.SessionID != 7 || !rec.TakenAt.Equal(takenAt) {
		t.Fatalf("unexpected record identity: %+v", rec)
	}
	if rec.EventCount != 9 || rec.KeyDowns != 5 || rec.KeyUps != 4 || rec.UniqueKeys != 3 {
		t.Fatalf("unexpected key counters: %+v", rec)
	}
	if rec.MeanDwellMs != 80 || rec.MeanIKGMs != 150 {
		t.Fatalf("unexpected timing features: %+v", rec)
	}
	if rec.MouseMoves != 2 || rec.DistancePx != 120 || rec.MaxSpeedPxS != 300 {
		t.Fatalf("unexpected mouse features: %+v", rec)
	}
	if rec.ActiveSeconds != 0.4 {
		t.Fatalf("unexpected active fraction: %+v", rec)
	}
	if rec.SignalQuality != "" || rec.StressProb != 0 {
		t.Fatalf("prediction fields must start empty: %+v", rec)
	}
}

func TestStatLineAlignsLabel(t *testing.T) {
	out := statLine("Keys", "12 down")
	if !strings.Contains(out, "Keys") || !strings.Contains(out, "12 down") {
		t.Fatalf("missing label or value: %q", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected unchanged string, got %q", got)
	}
	got := truncate("a long error message from the backend", 12)
	if len([]rune(got)) != 12 {
		t.Fatalf("expected 12 runes, got %d (%q)", len([]rune(got)), got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
}
