package plot

import "math"

// MaxHistogramBins caps the bin count. Wider year spans widen the bins
// instead, so counts still sum to the number of points in range.
const MaxHistogramBins = 4096

// HistogramBin counts points whose year falls in [Start, Start+width).
type HistogramBin struct {
	Start int `json:"start"`
	Count int `json:"count"`
}

// Histogram buckets points into bins of binWidth years covering
// [floor(minYear), ceil(maxYear)). A non-positive binWidth is treated as 1.
func Histogram(points []DataPoint, minYear, maxYear float64, binWidth int) []HistogramBin {
	if len(points) == 0 || math.IsNaN(minYear) || math.IsNaN(maxYear) {
		return []HistogramBin{}
	}
	lo := floatToInt(math.Floor(minYear))
	hi := floatToInt(math.Ceil(maxYear))
	if hi <= lo {
		return []HistogramBin{}
	}
	return bucket(points, lo, hi-1, binWidth)
}

// SliderHistogram is the histogram shown under the year slider. It spans the
// full year extent of points with the last year included, so the counts
// always sum to len(points).
func SliderHistogram(points []DataPoint, binWidth int) []HistogramBin {
	min, max, ok := YearExtent(points)
	if !ok {
		return []HistogramBin{}
	}
	return bucket(points, min, max, binWidth)
}

// bucket bins the years [lo, last]. Spans are computed unsigned so extreme
// years cannot overflow.
func bucket(points []DataPoint, lo, last, binWidth int) []HistogramBin {
	if binWidth <= 0 {
		binWidth = 1
	}
	span := uint64(last) - uint64(lo) + 1
	if span == 0 {
		span = math.MaxUint64
	}
	width := uint64(binWidth)
	if minWidth := (span-1)/MaxHistogramBins + 1; width < minWidth {
		width = minWidth
	}
	n := (span-1)/width + 1

	bins := make([]HistogramBin, n)
	for i := range bins {
		bins[i].Start = int(uint64(lo) + uint64(i)*width)
	}
	for _, p := range points {
		if p.Year < lo || p.Year > last {
			continue
		}
		bins[(uint64(p.Year)-uint64(lo))/width].Count++
	}
	return bins
}

func floatToInt(f float64) int {
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt
	case f <= math.MinInt64:
		return math.MinInt
	}
	return int(f)
}
