package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/keystress/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(filepath.Join(dir, "keystress.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestSessionLifecycle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	started := time.Unix(0, 0).UTC()
	id, err := st.StartSession(ctx, model.SessionRecord{
		StartedAt:  started,
		User:       "sam",
		WindowMs:   10_000,
		IntervalMs: 5_000,
		Endpoint:   "http://localhost:8000/api/stress/behavior/predict",
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	for i := 0; i < 3; i++ {
		_, err := st.InsertSnapshot(ctx, model.SnapshotRecord{
			SessionID:      id,
			TakenAt:        started.Add(time.Duration(i*5) * time.Second),
			KeyDowns:       10 + i,
			MouseMoves:     20,
			StressSmoothed: 0.2 * float64(i),
			ActiveSeconds:  0.5,
			SignalQuality:  "ok",
		})
		if err != nil {
			t.Fatalf("insert snapshot: %v", err)
		}
	}
	if err := st.EndSession(ctx, id, started.Add(time.Minute)); err != nil {
		t.Fatalf("end session: %v", err)
	}

	sessions, err := st.ListSessions(ctx, model.StatsConfig{})
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	agg := sessions[0]
	if agg.Snapshots != 3 {
		t.Fatalf("expected 3 snapshots, got %d", agg.Snapshots)
	}
	if agg.KeyDowns != 33 {
		t.Fatalf("expected 33 keydowns, got %d", agg.KeyDowns)
	}
	if agg.MaxStress != 0.4 {
		t.Fatalf("expected max stress 0.4, got %v", agg.MaxStress)
	}
	if agg.EndedAt.IsZero() {
		t.Fatalf("expected ended_at to be set")
	}
}

func TestListSnapshotsFilters(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Unix(1000, 0).UTC()

	var sessionIDs []int64
	for s := 0; s < 2; s++ {
		id, err := st.StartSession(ctx, model.SessionRecord{
			StartedAt: base.Add(time.Duration(s) * time.Hour),
			User:      "sam", WindowMs: 10_000, IntervalMs: 5_000,
		})
		if err != nil {
			t.Fatalf("start session: %v", err)
		}
		sessionIDs = append(sessionIDs, id)
		for i := 0; i < 4; i++ {
			_, err := st.InsertSnapshot(ctx, model.SnapshotRecord{
				SessionID: id,
				TakenAt:   base.Add(time.Duration(s)*time.Hour + time.Duration(i*5)*time.Second),
				KeyDowns:  i,
			})
			if err != nil {
				t.Fatalf("insert snapshot: %v", err)
			}
		}
	}

	records, err := st.ListSnapshots(ctx, model.StatsConfig{SessionID: sessionIDs[0]})
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 snapshots for session, got %d", len(records))
	}

	since := base.Add(time.Hour)
	records, err = st.ListSnapshots(ctx, model.StatsConfig{Since: &since})
	if err != nil {
		t.Fatalf("list snapshots since: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 snapshots since cutoff, got %d", len(records))
	}

	records, err = st.ListSnapshots(ctx, model.StatsConfig{Last: 3})
	if err != nil {
		t.Fatalf("list snapshots last: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected last 3 snapshots, got %d", len(records))
	}
	if records[0].SessionID != sessionIDs[1] {
		t.Fatalf("expected newest session's snapshots, got session %d", records[0].SessionID)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.StartSession(ctx, model.SessionRecord{StartedAt: time.Unix(0, 0).UTC(), User: "sam"})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	in := model.SnapshotRecord{
		SessionID:      id,
		TakenAt:        time.Unix(42, 0).UTC(),
		EventCount:     12,
		KeyDowns:       7,
		KeyUps:         5,
		UniqueKeys:     4,
		MeanDwellMs:    80.5,
		MedianDwellMs:  75,
		P95DwellMs:     140.25,
		MeanIKGMs:      210,
		MedianIKGMs:    190,
		P95IKGMs:       400,
		MouseMoves:     31,
		MouseClicks:    2,
		MouseScrolls:   1,
		DistancePx:     512.5,
		MeanSpeedPxS:   120,
		MaxSpeedPxS:    480,
		ActiveSeconds:  0.7,
		StressProb:     0.61,
		StressSmoothed: 0.55,
		SignalQuality:  "ok",
	}
	if _, err := st.InsertSnapshot(ctx, in); err != nil {
		t.Fatalf("insert snapshot: %v", err)
	}

	records, err := st.ListSnapshots(ctx, model.StatsConfig{SessionID: id})
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(records))
	}
	out := records[0]
	if out.KeyDowns != in.KeyDowns || out.P95DwellMs != in.P95DwellMs ||
		out.DistancePx != in.DistancePx || out.StressSmoothed != in.StressSmoothed ||
		out.SignalQuality != in.SignalQuality {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if !out.TakenAt.Equal(in.TakenAt) {
		t.Fatalf("taken_at mismatch: %v vs %v", out.TakenAt, in.TakenAt)
	}
}
