package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/keystress/internal/model"
	"github.com/verte-zerg/keystress/internal/store"
)

func TestBuildReport(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "keystress.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			t.Fatalf("failed to close store: %v", cerr)
		}
	}()

	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sessionID, err := st.StartSession(ctx, model.SessionRecord{
		StartedAt:  started,
		User:       "alice",
		WindowMs:   15_000,
		IntervalMs: 5_000,
		Endpoint:   "http://localhost:8000/predict",
	})
	if err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	for i := 0; i < 3; i++ {
		_, err := st.InsertSnapshot(ctx, model.SnapshotRecord{
			SessionID:      sessionID,
			TakenAt:        started.Add(time.Duration(i+1) * 5 * time.Second),
			EventCount:     10 * (i + 1),
			KeyDowns:       5 * (i + 1),
			StressSmoothed: 0.1 * float64(i+1),
			SignalQuality:  "ok",
		})
		if err != nil {
			t.Fatalf("failed to insert snapshot: %v", err)
		}
	}

	report, err := BuildReport(ctx, st, model.StatsConfig{})
	if err != nil {
		t.Fatalf("failed to build report: %v", err)
	}
	if len(report.Sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(report.Sessions))
	}
	if len(report.Snapshots) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(report.Snapshots))
	}
	if report.WindowMs != 15_000 {
		t.Fatalf("expected window from session, got %d", report.WindowMs)
	}
	if report.Sessions[0].KeyDowns != 30 {
		t.Fatalf("expected 30 keydowns across snapshots, got %d", report.Sessions[0].KeyDowns)
	}
}

func TestBuildReportEmpty(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "keystress.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			t.Fatalf("failed to close store: %v", cerr)
		}
	}()

	report, err := BuildReport(context.Background(), st, model.StatsConfig{})
	if err != nil {
		t.Fatalf("failed to build report: %v", err)
	}
	if len(report.Sessions) != 0 || len(report.Snapshots) != 0 {
		t.Fatalf("expected empty report, got %d sessions and %d snapshots",
			len(report.Sessions), len(report.Snapshots))
	}
	if report.WindowMs != 10_000 {
		t.Fatalf("expected default window, got %d", report.WindowMs)
	}
}
