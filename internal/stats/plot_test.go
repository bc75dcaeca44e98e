package stats

import (
	"math"
	"strings"
	"testing"
)

func TestPlotSeries(t *testing.T) {
	var b strings.Builder
	series := []Series{
		{Name: "Stress", Values: []float64{0.1, 0.5, 0.9, 0.4}},
		{Name: "Tempo", Values: []float64{120, 240, 180, 200}},
	}
	if err := PlotSeries(&b, "Curves", series, 20, 6); err != nil {
		t.Fatalf("failed to plot: %v", err)
	}
	out := b.String()
	for _, want := range []string{"Curves", scaleNote, "* Stress", "o Tempo", axisLabelTop, axisLabelBottom} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected plot to contain %q, got:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "*") || !strings.Contains(out, "o") {
		t.Fatalf("expected both markers in grid, got:\n%s", out)
	}
}

func TestPlotSeriesSkipsEmpty(t *testing.T) {
	var b strings.Builder
	if err := PlotSeries(&b, "Empty", []Series{{Name: "None"}}, 20, 6); err != nil {
		t.Fatalf("failed to plot: %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("expected no output for empty series, got %q", b.String())
	}
}

func TestPlotWidthFor(t *testing.T) {
	if got := PlotWidthFor(80); got != 80-6 {
		t.Fatalf("expected 74, got %d", got)
	}
	if got := PlotWidthFor(0); got != minPlotWidth {
		t.Fatalf("expected minimum width, got %d", got)
	}
	if got := PlotWidthFor(8); got != minPlotWidth {
		t.Fatalf("expected minimum width for tiny terminals, got %d", got)
	}
}

func TestResampleIdentity(t *testing.T) {
	values := []float64{1, 2, 3}
	got := resample(values, 3)
	for i := range values {
		if got[i] != values[i] {
			t.Fatalf("index %d: expected %v, got %v", i, values[i], got[i])
		}
	}
	got[0] = 99
	if values[0] == 99 {
		t.Fatalf("resample must not alias the input slice")
	}
}

func TestResampleShrinkAveragesBuckets(t *testing.T) {
	got := resample([]float64{1, 3, 5, 7}, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if math.Abs(got[0]-2) > 1e-9 || math.Abs(got[1]-6) > 1e-9 {
		t.Fatalf("expected bucket means [2 6], got %v", got)
	}
}

func TestResampleStretchInterpolates(t *testing.T) {
	got := resample([]float64{0, 10}, 5)
	want := []float64{0, 2.5, 5, 7.5, 10}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("index %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestResampleSingleValue(t *testing.T) {
	got := resample([]float64{4}, 3)
	for i, v := range got {
		if v != 4 {
			t.Fatalf("index %d: expected 4, got %v", i, v)
		}
	}
}

func TestMinMax(t *testing.T) {
	minVal, maxVal := minMax([]float64{3, -1, 7, 2})
	if minVal != -1 || maxVal != 7 {
		t.Fatalf("expected [-1 7], got [%v %v]", minVal, maxVal)
	}
	minVal, maxVal = minMax(nil)
	if minVal != 0 || maxVal != 0 {
		t.Fatalf("expected zeros for empty input, got [%v %v]", minVal, maxVal)
	}
}
