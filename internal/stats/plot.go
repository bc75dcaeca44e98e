// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// Series represents a named data series for plotting.
type Series struct {
	Name   string
	Values []float64
}

const (
	defaultPlotHeight   = 10
	minPlotWidth        = 10
	axisLabelTop        = "max"
	axisLabelBottom     = "min"
	axisSeparator       = " | "
	scaleNote           = "Scaled per series; see min/max below."
	terminalWidthBackup = 80
)

var seriesMarkers = []byte{'*', 'o', '+', 'x'}

// PlotSeries renders a text plot for the provided series. Each series is
// scaled to its own min/max and drawn with its own marker.
func PlotSeries(w io.Writer, title string, series []Series, width, height int) error {
	kept := make([]Series, 0, len(series))
	for _, s := range series {
		if len(s.Values) > 0 {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = PlotWidthFor(terminalWidth())
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}

	grid := make([][]byte, height)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(" ", width))
	}
	type bounds struct{ min, max float64 }
	ranges := make([]bounds, len(kept))
	for si, s := range kept {
		values := resample(s.Values, width)
		minVal, maxVal := minMax(values)
		if math.Abs(maxVal-minVal) < 1e-9 {
			minVal--
			maxVal++
		}
		ranges[si] = bounds{min: minVal, max: maxVal}
		marker := seriesMarkers[si%len(seriesMarkers)]
		for x, v := range values {
			pos := (v - ranges[si].min) / (ranges[si].max - ranges[si].min)
			row := int(math.Round((1 - pos) * float64(height-1)))
			if row < 0 {
				row = 0
			}
			if row >= height {
				row = height - 1
			}
			grid[row][x] = marker
		}
	}

	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, scaleNote); err != nil {
		return err
	}
	for i, s := range kept {
		marker := seriesMarkers[i%len(seriesMarkers)]
		if _, err := fmt.Fprintf(w, "%c %s: min=%.2f max=%.2f\n", marker, s.Name, ranges[i].min, ranges[i].max); err != nil {
			return err
		}
	}
	labelWidth := utf8.RuneCountInString(axisLabelTop)
	for y := 0; y < height; y++ {
		label := ""
		switch y {
		case 0:
			label = axisLabelTop
		case height - 1:
			label = axisLabelBottom
		}
		if _, err := fmt.Fprintf(w, "%*s%s%s\n", labelWidth, label, axisSeparator, string(grid[y])); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	axisWidth := utf8.RuneCountInString(axisLabelTop) + utf8.RuneCountInString(axisSeparator)
	plotWidth := totalWidth - axisWidth
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	return plotWidth
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// resample stretches or shrinks values to exactly width samples. Shrinking
// averages buckets; stretching interpolates linearly.
func resample(values []float64, width int) []float64 {
	if len(values) == 0 || width <= 0 {
		return nil
	}
	if len(values) == width {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, width)
	if len(values) > width {
		for i := 0; i < width; i++ {
			start := i * len(values) / width
			end := (i + 1) * len(values) / width
			if end <= start {
				end = start + 1
			}
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
		return out
	}
	if len(values) == 1 || width == 1 {
		for i := range out {
			out[i] = values[0]
		}
		return out
	}
	for i := 0; i < width; i++ {
		pos := float64(i) * float64(len(values)-1) / float64(width-1)
		idx := int(pos)
		if idx >= len(values)-1 {
			out[i] = values[len(values)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = values[idx]*(1-frac) + values[idx+1]*frac
	}
	return out
}

func minMax(values []float64) (float64, float64) {
	minVal := math.Inf(1)
	maxVal := math.Inf(-1)
	for _, v := range values {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if minVal == math.Inf(1) {
		minVal = 0
	}
	if maxVal == math.Inf(-1) {
		maxVal = 0
	}
	return minVal, maxVal
}
