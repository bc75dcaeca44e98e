package tracker

import (
	"math"
	"testing"
)

func newTestTracker() *Tracker {
	return New(DefaultConfig())
}

func TestSnapshotEmpty(t *testing.T) {
	tr := newTestTracker()
	snap := tr.Snapshot(5000)
	if snap.KeyDowns != 0 || snap.KeyUps != 0 || snap.EventCount != 0 || snap.UniqueKeys != 0 {
		t.Fatalf("expected zero counts, got %+v", snap)
	}
	if snap.MeanDwellMs != 0 || snap.MedianDwellMs != 0 || snap.P95DwellMs != 0 {
		t.Fatalf("expected zero dwell stats, got %+v", snap)
	}
	if snap.MeanIKGMs != 0 || snap.MedianIKGMs != 0 || snap.P95IKGMs != 0 {
		t.Fatalf("expected zero gap stats, got %+v", snap)
	}
	if snap.DistancePx != 0 || snap.MeanSpeedPxS != 0 || snap.MaxSpeedPxS != 0 {
		t.Fatalf("expected zero mouse stats, got %+v", snap)
	}
	if snap.ActiveSeconds != 0 {
		t.Fatalf("expected zero active fraction, got %v", snap.ActiveSeconds)
	}
	if len(snap.KeyEvents) != 0 || len(snap.MouseEvents) != 0 {
		t.Fatalf("expected empty sequences, got %+v", snap)
	}
}

func TestDwellPairing(t *testing.T) {
	tr := newTestTracker()
	tr.OnKeyDown("x", 0)
	tr.OnKeyUp("x", 100)
	snap := tr.Snapshot(200)
	if snap.KeyDowns != 1 || snap.KeyUps != 1 {
		t.Fatalf("expected one press and one release, got %+v", snap)
	}
	if snap.MeanDwellMs != 100 {
		t.Fatalf("expected mean dwell 100, got %v", snap.MeanDwellMs)
	}
	if snap.MedianDwellMs != 100 || snap.P95DwellMs != 100 {
		t.Fatalf("expected single-sample percentiles of 100, got %+v", snap)
	}
	if snap.EventCount != 2 {
		t.Fatalf("expected event count 2, got %d", snap.EventCount)
	}
}

func TestKeyUpResolvesMostRecentOpenPress(t *testing.T) {
	tr := newTestTracker()
	tr.OnKeyDown("a", 0)
	tr.OnKeyDown("a", 50)
	tr.OnKeyUp("a", 80)
	snap := tr.Snapshot(100)
	if snap.KeyDowns != 2 || snap.KeyUps != 1 {
		t.Fatalf("unexpected counts: %+v", snap)
	}
	// The release at t=80 pairs with the press at t=50, not the one at t=0.
	if snap.KeyEvents[1].UpMs != 80 {
		t.Fatalf("expected second press released at 80, got %+v", snap.KeyEvents)
	}
	if snap.KeyEvents[0].UpMs != 0 {
		t.Fatalf("expected first press unresolved, got %+v", snap.KeyEvents)
	}
}

func TestUnmatchedKeyUpCountsActivityOnly(t *testing.T) {
	tr := newTestTracker()
	tr.OnKeyUp("z", 1500)
	snap := tr.Snapshot(2000)
	if snap.KeyDowns != 0 || snap.KeyUps != 0 {
		t.Fatalf("unmatched key-up must not create records: %+v", snap)
	}
	if snap.ActiveSeconds == 0 {
		t.Fatalf("unmatched key-up should still mark activity")
	}
}

func TestIgnoreUnmatchedKeyUps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IgnoreUnmatchedKeyUps = true
	tr := New(cfg)
	tr.OnKeyUp("z", 1500)
	snap := tr.Snapshot(2000)
	if snap.ActiveSeconds != 0 {
		t.Fatalf("ignored key-up must not mark activity, got %v", snap.ActiveSeconds)
	}
}

func TestInterKeyGaps(t *testing.T) {
	tr := newTestTracker()
	tr.OnKeyDown("a", 0)
	tr.OnKeyDown("b", 50)
	tr.OnKeyDown("c", 120)
	snap := tr.Snapshot(200)
	// Gaps are [50, 70].
	if snap.MeanIKGMs != 60 {
		t.Fatalf("expected mean gap 60, got %v", snap.MeanIKGMs)
	}
	if snap.MedianIKGMs != 60 {
		t.Fatalf("expected median gap 60, got %v", snap.MedianIKGMs)
	}
	if snap.P95IKGMs <= snap.MedianIKGMs || snap.P95IKGMs > 70 {
		t.Fatalf("expected p95 in (60, 70], got %v", snap.P95IKGMs)
	}
	if snap.UniqueKeys != 3 {
		t.Fatalf("expected 3 unique keys, got %d", snap.UniqueKeys)
	}
}

func TestUniqueKeysNeverExceedKeyDowns(t *testing.T) {
	tr := newTestTracker()
	keys := []string{"a", "b", "a", "a", "c", "b"}
	for i, k := range keys {
		tr.OnKeyDown(k, int64(i*10))
	}
	snap := tr.Snapshot(100)
	if snap.UniqueKeys > snap.KeyDowns {
		t.Fatalf("unique %d exceeds downs %d", snap.UniqueKeys, snap.KeyDowns)
	}
	if snap.UniqueKeys != 3 {
		t.Fatalf("expected 3 unique keys, got %d", snap.UniqueKeys)
	}
}

func TestWindowContainment(t *testing.T) {
	tr := newTestTracker()
	tr.OnKeyDown("old", 0)
	tr.OnKeyUp("old", 50)
	tr.OnKeyDown("fresh", 15_000)
	snap := tr.Snapshot(20_000)
	if snap.KeyDowns != 1 {
		t.Fatalf("expected only the in-window press, got %d", snap.KeyDowns)
	}
	if snap.UniqueKeys != 1 {
		t.Fatalf("expected one unique key, got %d", snap.UniqueKeys)
	}
	if len(snap.KeyEvents) != 1 || snap.KeyEvents[0].DownMs != 15_000 {
		t.Fatalf("unexpected sequence: %+v", snap.KeyEvents)
	}
}

func TestEagerPruningBoundsBuffers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowMs = 1000
	tr := New(cfg)
	for i := int64(0); i < 100; i++ {
		tr.OnKeyDown("k", i*100)
		tr.OnMouseMove(float64(i), 0, i*100)
	}
	// Window 1000ms + 500ms slack over 100ms spacing: at most 16 each.
	if len(tr.keys) > 16 {
		t.Fatalf("key buffer not pruned: %d records", len(tr.keys))
	}
	if len(tr.mouse) > 16 {
		t.Fatalf("mouse buffer not pruned: %d records", len(tr.mouse))
	}
	if len(tr.activeSecs) > 2 {
		t.Fatalf("active seconds not pruned: %d markers", len(tr.activeSecs))
	}
}

func TestDisabledDropsEvents(t *testing.T) {
	tr := newTestTracker()
	tr.SetEnabled(false)
	for i := int64(0); i < 5; i++ {
		tr.OnKeyDown("a", i*10)
	}
	tr.OnMouseMove(1, 1, 100)
	snap := tr.Snapshot(200)
	if snap.KeyDowns != 0 || snap.MouseMoves != 0 || snap.ActiveSeconds != 0 {
		t.Fatalf("disabled tracker recorded events: %+v", snap)
	}

	tr.SetEnabled(true)
	tr.OnKeyDown("a", 300)
	snap = tr.Snapshot(400)
	if snap.KeyDowns != 1 {
		t.Fatalf("re-enabled tracker should record, got %+v", snap)
	}
}

func TestMouseDistanceAndSpeed(t *testing.T) {
	tr := newTestTracker()
	tr.OnMouseMove(0, 0, 0)
	tr.OnMouseMove(30, 0, 1000)
	snap := tr.Snapshot(2000)
	if snap.MouseMoves != 2 {
		t.Fatalf("expected 2 moves, got %d", snap.MouseMoves)
	}
	if snap.DistancePx != 30 {
		t.Fatalf("expected distance 30, got %v", snap.DistancePx)
	}
	if snap.MeanSpeedPxS != 30 || snap.MaxSpeedPxS != 30 {
		t.Fatalf("expected speed 30 px/s, got mean=%v max=%v", snap.MeanSpeedPxS, snap.MaxSpeedPxS)
	}
}

func TestMouseDistancePairsNeedAMove(t *testing.T) {
	tr := newTestTracker()
	tr.OnMouseDown(0, 0, 0)
	tr.OnMouseDown(10, 0, 100)
	tr.OnMouseMove(20, 0, 200)
	snap := tr.Snapshot(1000)
	// Click->click contributes nothing; click->move contributes 10px.
	if snap.DistancePx != 10 {
		t.Fatalf("expected distance 10, got %v", snap.DistancePx)
	}
	if snap.MouseClicks != 2 || snap.MouseMoves != 1 {
		t.Fatalf("unexpected counts: %+v", snap)
	}
}

func TestMouseZeroElapsedExcludedFromSpeeds(t *testing.T) {
	tr := newTestTracker()
	tr.OnMouseMove(0, 0, 500)
	tr.OnMouseMove(40, 0, 500)
	snap := tr.Snapshot(1000)
	if snap.DistancePx != 40 {
		t.Fatalf("distance should still accumulate, got %v", snap.DistancePx)
	}
	if snap.MeanSpeedPxS != 0 || snap.MaxSpeedPxS != 0 {
		t.Fatalf("zero-elapsed pair must not produce a speed, got %+v", snap)
	}
}

func TestMouseNonFiniteCoordinatesSuppressed(t *testing.T) {
	tr := newTestTracker()
	tr.OnMouseMove(0, 0, 0)
	tr.OnMouseMove(math.NaN(), 10, 100)
	tr.OnMouseMove(5, 10, 200)
	snap := tr.Snapshot(1000)
	if math.IsNaN(snap.DistancePx) || snap.DistancePx < 0 {
		t.Fatalf("distance must stay finite and non-negative, got %v", snap.DistancePx)
	}
	if math.IsNaN(snap.MeanSpeedPxS) || math.IsNaN(snap.MaxSpeedPxS) {
		t.Fatalf("speeds must stay finite, got %+v", snap)
	}
}

func TestDistanceNonNegative(t *testing.T) {
	tr := newTestTracker()
	tr.OnMouseMove(5, 5, 0)
	tr.OnMouseMove(5, 5, 100)
	tr.OnMouseMove(0, 0, 200)
	snap := tr.Snapshot(1000)
	if snap.DistancePx < 0 {
		t.Fatalf("distance went negative: %v", snap.DistancePx)
	}
}

func TestActiveSecondsFraction(t *testing.T) {
	tr := newTestTracker()
	tr.OnKeyDown("a", 1000)
	tr.OnKeyDown("b", 1500)
	tr.OnKeyDown("c", 3200)
	snap := tr.Snapshot(10_000)
	// Seconds 1 and 3 saw activity over a 10s window.
	if snap.ActiveSeconds != 0.2 {
		t.Fatalf("expected fraction 0.2, got %v", snap.ActiveSeconds)
	}
}

func TestActiveFractionClamped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowMs = 2000
	tr := New(cfg)
	for ts := int64(0); ts <= 2500; ts += 250 {
		tr.OnMouseMove(0, 0, ts)
	}
	snap := tr.Snapshot(2500)
	if snap.ActiveSeconds > 1 {
		t.Fatalf("fraction exceeds 1: %v", snap.ActiveSeconds)
	}
}

func TestPercentileOrdering(t *testing.T) {
	tr := newTestTracker()
	dwellTimes := []int64{20, 80, 40, 120, 60}
	for i, d := range dwellTimes {
		ts := int64(i * 500)
		key := string(rune('a' + i))
		tr.OnKeyDown(key, ts)
		tr.OnKeyUp(key, ts+d)
	}
	snap := tr.Snapshot(3000)
	if snap.MedianDwellMs > snap.P95DwellMs {
		t.Fatalf("p50 %v exceeds p95 %v", snap.MedianDwellMs, snap.P95DwellMs)
	}
	if snap.MedianDwellMs < 20 || snap.P95DwellMs > 120 {
		t.Fatalf("percentiles outside sample range: p50=%v p95=%v", snap.MedianDwellMs, snap.P95DwellMs)
	}
	if snap.MedianDwellMs != 60 {
		t.Fatalf("expected median 60, got %v", snap.MedianDwellMs)
	}
}

func TestQuantileInterpolation(t *testing.T) {
	values := []float64{10, 20, 30, 40}
	if got := quantileOf(values, 0.5); got != 25 {
		t.Fatalf("expected median 25, got %v", got)
	}
	// p95 position is 0.95*3 = 2.85 -> 30 + 0.85*10.
	if got := quantileOf(values, 0.95); math.Abs(got-38.5) > 1e-9 {
		t.Fatalf("expected p95 38.5, got %v", got)
	}
	if got := quantileOf(nil, 0.5); got != 0 {
		t.Fatalf("expected 0 for empty input, got %v", got)
	}
	if got := quantileOf([]float64{7}, 0.95); got != 7 {
		t.Fatalf("expected single value, got %v", got)
	}
}

func TestKeySequenceAnnotation(t *testing.T) {
	tr := newTestTracker()
	tr.OnKeyDown("a", 0)
	tr.OnKeyUp("a", 40)
	tr.OnKeyDown("b", 100)
	tr.OnKeyUp("b", 150)
	snap := tr.Snapshot(500)
	if len(snap.KeyEvents) != 2 {
		t.Fatalf("expected 2 key events, got %d", len(snap.KeyEvents))
	}
	first, last := snap.KeyEvents[0], snap.KeyEvents[1]
	if first.NextDownMs != 100 {
		t.Fatalf("expected next down 100, got %+v", first)
	}
	// The last press points at its own resolved release.
	if last.NextDownMs != 150 {
		t.Fatalf("expected terminal next down 150, got %+v", last)
	}
	if first.UpMs != 40 || last.UpMs != 150 {
		t.Fatalf("unexpected up timestamps: %+v %+v", first, last)
	}
}

func TestHeldKeyHasZeroDwell(t *testing.T) {
	tr := newTestTracker()
	tr.OnKeyDown("a", 100)
	snap := tr.Snapshot(500)
	if snap.MeanDwellMs != 0 {
		t.Fatalf("held key should contribute zero dwell, got %v", snap.MeanDwellMs)
	}
	if snap.KeyEvents[0].UpMs != 100 {
		t.Fatalf("held key resolves up to its own down, got %+v", snap.KeyEvents[0])
	}
}

func TestSnapshotDoesNotMutateBuffers(t *testing.T) {
	tr := newTestTracker()
	tr.OnKeyDown("a", 0)
	tr.OnMouseMove(1, 1, 10)
	before := len(tr.keys) + len(tr.mouse)
	first := tr.Snapshot(100)
	second := tr.Snapshot(100)
	if len(tr.keys)+len(tr.mouse) != before {
		t.Fatalf("snapshot mutated buffers")
	}
	if first.KeyDowns != second.KeyDowns || first.DistancePx != second.DistancePx {
		t.Fatalf("repeated snapshots disagree: %+v vs %+v", first, second)
	}
}
