// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/keystress/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Tempo computes input events per minute for one snapshot, using the window
// the snapshot was computed over.
func Tempo(rec model.SnapshotRecord, windowMs int64) float64 {
	if windowMs <= 0 {
		return 0
	}
	minutes := float64(windowMs) / 60000.0
	return float64(rec.EventCount) / minutes
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// StressSeries extracts the smoothed stress values from snapshot records.
func StressSeries(records []model.SnapshotRecord) []float64 {
	out := make([]float64, len(records))
	for i, rec := range records {
		out[i] = rec.StressSmoothed
	}
	return out
}

// TempoSeries extracts events-per-minute values from snapshot records.
func TempoSeries(records []model.SnapshotRecord, windowMs int64) []float64 {
	out := make([]float64, len(records))
	for i, rec := range records {
		out[i] = Tempo(rec, windowMs)
	}
	return out
}

// RenderSummary prints a summary over sessions.
func RenderSummary(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	var totalSnapshots, totalKeyDowns, totalMouseMoves int
	var meanStressSum, maxStress float64
	for _, s := range sessions {
		totalSnapshots += s.Snapshots
		totalKeyDowns += s.KeyDowns
		totalMouseMoves += s.MouseMoves
		meanStressSum += s.MeanStress
		if s.MaxStress > maxStress {
			maxStress = s.MaxStress
		}
	}
	count := float64(len(sessions))
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", len(sessions)),
		fmt.Sprintf("Snapshots: %d", totalSnapshots),
		fmt.Sprintf("Key presses: %d", totalKeyDowns),
		fmt.Sprintf("Mouse moves: %d", totalMouseMoves),
		fmt.Sprintf("Avg stress: %.2f", meanStressSum/count),
		fmt.Sprintf("Peak stress: %.2f", maxStress),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderSessionTable prints per-session aggregates.
func RenderSessionTable(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Sessions"); err != nil {
		return err
	}
	headers := []string{"ID", "Started", "Snapshots", "Keys", "Mouse", "Avg Stress", "Peak", "Active"}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.SessionID),
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", s.Snapshots),
			fmt.Sprintf("%d", s.KeyDowns),
			fmt.Sprintf("%d", s.MouseMoves),
			fmt.Sprintf("%.2f", s.MeanStress),
			fmt.Sprintf("%.2f", s.MaxStress),
			fmt.Sprintf("%.0f%%", s.MeanActive*100),
		})
	}
	rightAlign := map[int]bool{0: true, 2: true, 3: true, 4: true, 5: true, 6: true, 7: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderSnapshotTable prints the most interesting columns of snapshot records.
func RenderSnapshotTable(w io.Writer, records []model.SnapshotRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No snapshots found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Snapshots"); err != nil {
		return err
	}
	headers := []string{"Taken", "Keys", "IKG (ms)", "Mouse", "Dist (px)", "Active", "Stress", "Quality"}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.TakenAt.Local().Format("15:04:05"),
			fmt.Sprintf("%d", rec.KeyDowns),
			fmt.Sprintf("%.0f", rec.MeanIKGMs),
			fmt.Sprintf("%d", rec.MouseMoves),
			fmt.Sprintf("%.0f", rec.DistancePx),
			fmt.Sprintf("%.0f%%", rec.ActiveSeconds*100),
			fmt.Sprintf("%.2f", rec.StressSmoothed),
			rec.SignalQuality,
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderStressCurves prints smoothed stress and typing tempo over the
// snapshot history, sized to a given total width.
func RenderStressCurves(w io.Writer, records []model.SnapshotRecord, windowMs int64, curveWindow, totalWidth, height int) error {
	if len(records) == 0 {
		return nil
	}
	stress := MovingAverage(StressSeries(records), curveWindow)
	tempo := MovingAverage(TempoSeries(records, windowMs), curveWindow)

	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	return PlotSeries(w, "Stress & Tempo", []Series{
		{Name: "Stress", Values: stress},
		{Name: "Tempo (ev/min)", Values: tempo},
	}, width, height)
}
