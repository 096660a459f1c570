package plot

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistogram_BinsPerYear(t *testing.T) {
	points := []DataPoint{{Year: 2000}, {Year: 2000}, {Year: 2002}, {Year: 2003}}
	bins := Histogram(points, 2000, 2003, 1)

	assert.Equal(t, []HistogramBin{
		{Start: 2000, Count: 2},
		{Start: 2001, Count: 0},
		{Start: 2002, Count: 1},
	}, bins)
}

func TestHistogram_FractionalBounds(t *testing.T) {
	points := []DataPoint{{Year: 1999}, {Year: 2001}}
	bins := Histogram(points, 1999.4, 2001.2, 1)
	require.Len(t, bins, 3)
	assert.Equal(t, 1999, bins[0].Start)
	assert.Equal(t, 2001, bins[2].Start)
	assert.Equal(t, 1, bins[2].Count)
}

func TestHistogram_WideBins(t *testing.T) {
	points := []DataPoint{{Year: 1990}, {Year: 1994}, {Year: 1995}, {Year: 2001}}
	bins := Histogram(points, 1990, 2002, 5)
	assert.Equal(t, []HistogramBin{
		{Start: 1990, Count: 2},
		{Start: 1995, Count: 1},
		{Start: 2000, Count: 1},
	}, bins)
}

func TestHistogram_Empty(t *testing.T) {
	bins := Histogram(nil, 1990, 2000, 1)
	require.NotNil(t, bins)
	assert.Empty(t, bins)

	assert.Empty(t, SliderHistogram(nil, 1))
}

func TestSliderHistogram_SumsToTotal(t *testing.T) {
	points := samplePoints()
	for _, width := range []int{0, 1, 2, 7} {
		total := 0
		for _, b := range SliderHistogram(points, width) {
			total += b.Count
		}
		assert.Equal(t, len(points), total, "width %d", width)
	}
}

func TestSliderHistogram_WideSpanIsCapped(t *testing.T) {
	tests := []struct {
		name   string
		points []DataPoint
	}{
		{"date in year column", []DataPoint{{Year: 1995}, {Year: 20150101}}},
		{"extreme years", []DataPoint{{Year: -(1 << 62)}, {Year: 1 << 62}}},
		{"full int range", []DataPoint{{Year: math.MinInt}, {Year: 0}, {Year: math.MaxInt}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var bins []HistogramBin
			require.NotPanics(t, func() { bins = SliderHistogram(tt.points, 1) })
			require.NotEmpty(t, bins)
			assert.LessOrEqual(t, len(bins), MaxHistogramBins)
			assert.Equal(t, tt.points[0].Year, bins[0].Start)

			total := 0
			for _, b := range bins {
				total += b.Count
			}
			assert.Equal(t, len(tt.points), total)
		})
	}
}

func TestHistogram_InfiniteBounds(t *testing.T) {
	points := []DataPoint{{Year: 2000}}
	assert.NotPanics(t, func() {
		bins := Histogram(points, math.Inf(-1), math.Inf(1), 1)
		assert.LessOrEqual(t, len(bins), MaxHistogramBins)
	})
	assert.Empty(t, Histogram(points, math.NaN(), 2001, 1))
}

func TestSliderHistogram_IgnoresFilter(t *testing.T) {
	points := samplePoints()
	full := SliderHistogram(points, 1)
	_ = Filter(points, Range{2000, 2001})
	assert.Equal(t, full, SliderHistogram(points, 1))
	assert.Equal(t, 1992, full[0].Start)
	assert.Equal(t, 2024, full[len(full)-1].Start)
}
