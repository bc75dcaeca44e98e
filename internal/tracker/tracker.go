// Package tracker derives behavioral features from raw input events.
package tracker

import (
	"math"
	"sort"
)

// Defaults for the trailing window and the snapshot cadence expected from the caller.
const (
	DefaultWindowMs   = 10_000
	DefaultIntervalMs = 5_000
)

// pruneSlackMs keeps a little history beyond the window to tolerate
// snapshot-timing jitter.
const pruneSlackMs = 500

// Config controls a Tracker instance.
type Config struct {
	// WindowMs is the trailing window length used by every statistic.
	WindowMs int64
	// IntervalMs is the cadence at which callers are expected to pull
	// snapshots. The tracker itself only records it; consecutive windows
	// overlap by WindowMs-IntervalMs.
	IntervalMs int64
	// Enabled gates recording. When false incoming events are dropped
	// before touching any buffer.
	Enabled bool
	// IgnoreUnmatchedKeyUps drops key-up events that have no open press
	// entirely. By default they still count as activity.
	IgnoreUnmatchedKeyUps bool
}

// DefaultConfig returns an enabled tracker configuration with default timing.
func DefaultConfig() Config {
	return Config{WindowMs: DefaultWindowMs, IntervalMs: DefaultIntervalMs, Enabled: true}
}

// Recorder receives raw input events. Timestamps are milliseconds on a
// monotonically increasing clock; callers deliver events in chronological
// order.
type Recorder interface {
	OnKeyDown(key string, tsMs int64)
	OnKeyUp(key string, tsMs int64)
	OnMouseMove(x, y float64, tsMs int64)
	OnMouseDown(x, y float64, tsMs int64)
	OnMouseWheel(x, y float64, tsMs int64)
}

// MouseKind classifies a mouse event.
type MouseKind int

// Mouse event kinds, in the wire encoding order.
const (
	MouseMove MouseKind = iota
	MouseClick
	MouseScroll
)

// MouseEvent is a single buffered mouse observation.
type MouseEvent struct {
	TsMs int64     `json:"ts"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
	Kind MouseKind `json:"kind"`
}

// KeyEvent is a windowed key press in a snapshot sequence. NextDownMs is the
// down timestamp of the following press, or the press's own resolved up
// timestamp when it is the last in the window.
type KeyEvent struct {
	DownMs     int64 `json:"down_ts"`
	UpMs       int64 `json:"up_ts"`
	NextDownMs int64 `json:"next_down_ts"`
}

// Snapshot is the feature vector computed over one trailing window.
type Snapshot struct {
	EventCount    int     `json:"ks_event_count"`
	KeyDowns      int     `json:"ks_keydowns"`
	KeyUps        int     `json:"ks_keyups"`
	UniqueKeys    int     `json:"ks_unique_keys"`
	MeanDwellMs   float64 `json:"ks_mean_dwell_ms"`
	MedianDwellMs float64 `json:"ks_median_dwell_ms"`
	P95DwellMs    float64 `json:"ks_p95_dwell_ms"`
	MeanIKGMs     float64 `json:"ks_mean_ikg_ms"`
	MedianIKGMs   float64 `json:"ks_median_ikg_ms"`
	P95IKGMs      float64 `json:"ks_p95_ikg_ms"`
	MouseMoves    int     `json:"mouse_move_count"`
	MouseClicks   int     `json:"mouse_click_count"`
	MouseScrolls  int     `json:"mouse_scroll_count"`
	DistancePx    float64 `json:"mouse_total_distance_px"`
	MeanSpeedPxS  float64 `json:"mouse_mean_speed_px_s"`
	MaxSpeedPxS   float64 `json:"mouse_max_speed_px_s"`
	ActiveSeconds float64 `json:"active_seconds_fraction"`

	KeyEvents   []KeyEvent   `json:"key_events"`
	MouseEvents []MouseEvent `json:"mouse_events"`
}

type keyPress struct {
	downMs   int64
	upMs     int64
	released bool
	key      string
}

// Tracker buffers input events over a trailing window and computes feature
// snapshots on demand. It owns its buffers exclusively and is not safe for
// concurrent use; it is meant to live on a single event loop.
type Tracker struct {
	cfg Config

	keys       []keyPress
	mouse      []MouseEvent
	activeSecs map[int64]struct{}
}

// New constructs a Tracker. Non-positive timing fields fall back to defaults.
func New(cfg Config) *Tracker {
	if cfg.WindowMs <= 0 {
		cfg.WindowMs = DefaultWindowMs
	}
	if cfg.IntervalMs <= 0 {
		cfg.IntervalMs = DefaultIntervalMs
	}
	return &Tracker{
		cfg:        cfg,
		activeSecs: map[int64]struct{}{},
	}
}

// WindowMs returns the configured window length.
func (t *Tracker) WindowMs() int64 { return t.cfg.WindowMs }

// IntervalMs returns the configured snapshot cadence.
func (t *Tracker) IntervalMs() int64 { return t.cfg.IntervalMs }

// Enabled reports whether events are being recorded.
func (t *Tracker) Enabled() bool { return t.cfg.Enabled }

// SetEnabled toggles recording. Disabling stops buffer growth immediately;
// re-enabling resumes with whatever retained state is still inside the
// window; the next events prune anything stale.
func (t *Tracker) SetEnabled(enabled bool) { t.cfg.Enabled = enabled }

// OnKeyDown records a key press.
func (t *Tracker) OnKeyDown(key string, tsMs int64) {
	if !t.cfg.Enabled {
		return
	}
	t.keys = append(t.keys, keyPress{downMs: tsMs, key: key})
	t.markActive(tsMs)
	t.prune(tsMs)
}

// OnKeyUp resolves the most recent open press for the key. A key-up without
// an open press contributes activity only.
func (t *Tracker) OnKeyUp(key string, tsMs int64) {
	if !t.cfg.Enabled {
		return
	}
	matched := false
	for i := len(t.keys) - 1; i >= 0; i-- {
		if t.keys[i].key == key && !t.keys[i].released {
			t.keys[i].upMs = tsMs
			t.keys[i].released = true
			matched = true
			break
		}
	}
	if matched || !t.cfg.IgnoreUnmatchedKeyUps {
		t.markActive(tsMs)
	}
	t.prune(tsMs)
}

// OnMouseMove records a pointer movement.
func (t *Tracker) OnMouseMove(x, y float64, tsMs int64) {
	t.recordMouse(MouseEvent{TsMs: tsMs, X: x, Y: y, Kind: MouseMove})
}

// OnMouseDown records a button press.
func (t *Tracker) OnMouseDown(x, y float64, tsMs int64) {
	t.recordMouse(MouseEvent{TsMs: tsMs, X: x, Y: y, Kind: MouseClick})
}

// OnMouseWheel records a scroll step.
func (t *Tracker) OnMouseWheel(x, y float64, tsMs int64) {
	t.recordMouse(MouseEvent{TsMs: tsMs, X: x, Y: y, Kind: MouseScroll})
}

func (t *Tracker) recordMouse(ev MouseEvent) {
	if !t.cfg.Enabled {
		return
	}
	t.mouse = append(t.mouse, ev)
	t.markActive(ev.TsMs)
	t.prune(ev.TsMs)
}

// Snapshot computes the feature vector over [nowMs-WindowMs, nowMs]. It
// never mutates the buffers; pruning happens in the event handlers.
func (t *Tracker) Snapshot(nowMs int64) Snapshot {
	fromMs := nowMs - t.cfg.WindowMs

	keys := t.windowKeys(fromMs, nowMs)
	snap := Snapshot{
		KeyDowns:    len(keys),
		KeyEvents:   []KeyEvent{},
		MouseEvents: []MouseEvent{},
	}

	unique := map[string]struct{}{}
	dwells := make([]float64, 0, len(keys))
	downs := make([]float64, 0, len(keys))
	for _, k := range keys {
		unique[k.key] = struct{}{}
		if k.released && k.upMs >= fromMs && k.upMs <= nowMs {
			snap.KeyUps++
		}
		dwells = append(dwells, dwellMs(k))
		downs = append(downs, float64(k.downMs))
	}
	snap.EventCount = snap.KeyDowns + snap.KeyUps
	snap.UniqueKeys = len(unique)
	snap.MeanDwellMs = meanOf(dwells)
	snap.MedianDwellMs = quantileOf(dwells, 0.5)
	snap.P95DwellMs = quantileOf(dwells, 0.95)

	sort.Float64s(downs)
	gaps := make([]float64, 0, len(downs))
	for i := 1; i < len(downs); i++ {
		gap := downs[i] - downs[i-1]
		if gap < 0 {
			gap = 0
		}
		gaps = append(gaps, gap)
	}
	snap.MeanIKGMs = meanOf(gaps)
	snap.MedianIKGMs = quantileOf(gaps, 0.5)
	snap.P95IKGMs = quantileOf(gaps, 0.95)

	mouse := t.windowMouse(fromMs, nowMs)
	snap.MouseEvents = mouse
	var speeds []float64
	var maxSpeed float64
	var prev *MouseEvent
	for i := range mouse {
		ev := &mouse[i]
		switch ev.Kind {
		case MouseMove:
			snap.MouseMoves++
		case MouseClick:
			snap.MouseClicks++
		case MouseScroll:
			snap.MouseScrolls++
		}
		if prev != nil && (ev.Kind == MouseMove || prev.Kind == MouseMove) {
			dist := math.Hypot(ev.X-prev.X, ev.Y-prev.Y)
			if isFinite(dist) {
				snap.DistancePx += dist
			}
			elapsedSec := float64(ev.TsMs-prev.TsMs) / 1000.0
			if elapsedSec > 0 {
				speed := dist / elapsedSec
				if isFinite(speed) {
					speeds = append(speeds, speed)
					if speed > maxSpeed {
						maxSpeed = speed
					}
				}
			}
		}
		prev = ev
	}
	snap.MeanSpeedPxS = meanOf(speeds)
	snap.MaxSpeedPxS = maxSpeed

	snap.ActiveSeconds = t.activeFraction(fromMs, nowMs)

	for i, k := range keys {
		ev := KeyEvent{DownMs: k.downMs, UpMs: resolvedUpMs(k)}
		if i+1 < len(keys) {
			ev.NextDownMs = keys[i+1].downMs
		} else {
			ev.NextDownMs = ev.UpMs
		}
		snap.KeyEvents = append(snap.KeyEvents, ev)
	}
	return snap
}

func (t *Tracker) windowKeys(fromMs, toMs int64) []keyPress {
	out := make([]keyPress, 0, len(t.keys))
	for _, k := range t.keys {
		if k.downMs >= fromMs && k.downMs <= toMs {
			out = append(out, k)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].downMs < out[j].downMs })
	return out
}

func (t *Tracker) windowMouse(fromMs, toMs int64) []MouseEvent {
	out := make([]MouseEvent, 0, len(t.mouse))
	for _, ev := range t.mouse {
		if ev.TsMs >= fromMs && ev.TsMs <= toMs {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TsMs < out[j].TsMs })
	return out
}

func (t *Tracker) activeFraction(fromMs, toMs int64) float64 {
	windowSecs := (toMs - fromMs) / 1000
	if windowSecs <= 0 {
		return 0
	}
	fromSec := floorDiv(fromMs, 1000)
	toSec := floorDiv(toMs, 1000)
	count := 0
	for sec := range t.activeSecs {
		if sec >= fromSec && sec <= toSec {
			count++
		}
	}
	frac := float64(count) / float64(windowSecs)
	if frac > 1 {
		frac = 1
	}
	return frac
}

func (t *Tracker) markActive(tsMs int64) {
	t.activeSecs[floorDiv(tsMs, 1000)] = struct{}{}
}

func (t *Tracker) prune(nowMs int64) {
	cutoff := nowMs - t.cfg.WindowMs - pruneSlackMs

	keep := t.keys[:0]
	for _, k := range t.keys {
		if k.downMs >= cutoff || (k.released && k.upMs >= cutoff) {
			keep = append(keep, k)
		}
	}
	t.keys = keep

	keepMouse := t.mouse[:0]
	for _, ev := range t.mouse {
		if ev.TsMs >= cutoff {
			keepMouse = append(keepMouse, ev)
		}
	}
	t.mouse = keepMouse

	cutoffSec := floorDiv(cutoff, 1000)
	for sec := range t.activeSecs {
		if sec < cutoffSec {
			delete(t.activeSecs, sec)
		}
	}
}

func dwellMs(k keyPress) float64 {
	d := float64(resolvedUpMs(k) - k.downMs)
	if d < 0 {
		return 0
	}
	return d
}

// resolvedUpMs falls back to the down timestamp for presses still held.
func resolvedUpMs(k keyPress) int64 {
	if k.released {
		return k.upMs
	}
	return k.downMs
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func floorDiv(v, div int64) int64 {
	q := v / div
	if v%div != 0 && (v < 0) != (div < 0) {
		q--
	}
	return q
}
