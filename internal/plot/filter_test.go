package plot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePoints() []DataPoint {
	return []DataPoint{
		{Year: 1995, Cluster: 1, X: 0, Y: 0},
		{Year: 2005, Cluster: 2, X: 1, Y: 1},
		{Year: 1992, Cluster: 3, X: -2, Y: 4},
		{Year: 2019, Cluster: 1, X: 3, Y: -1},
		{Year: 2005, Cluster: 3, X: 2, Y: 2},
		{Year: 2024, Cluster: 2, X: 5, Y: 0.5},
	}
}

func TestFilter(t *testing.T) {
	points := samplePoints()

	tests := []struct {
		name  string
		r     Range
		years []int
	}{
		{"full range is identity", Range{1992, 2024}, []int{1995, 2005, 1992, 2019, 2005, 2024}},
		{"inclusive bounds", Range{1995, 2005}, []int{1995, 2005, 2005}},
		{"single year", Range{2005, 2005}, []int{2005, 2005}},
		{"outside data", Range{1950, 1960}, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(points, tt.r)
			years := make([]int, 0, len(got))
			for _, p := range got {
				years = append(years, p.Year)
				assert.True(t, tt.r.Contains(p.Year))
			}
			assert.Equal(t, tt.years, years)
		})
	}
}

func TestFilter_FullRangeReturnsSamePoints(t *testing.T) {
	points := samplePoints()
	assert.Equal(t, points, Filter(points, FullRange(points)))
}

func TestFilter_Empty(t *testing.T) {
	got := Filter(nil, Range{1990, 2000})
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilter_ExactlyTheInRangePoints(t *testing.T) {
	points := samplePoints()
	for lo := 1990; lo <= 2025; lo++ {
		for hi := lo; hi <= 2025; hi += 3 {
			r := Range{lo, hi}
			got := Filter(points, r)
			want := 0
			for _, p := range points {
				if p.Year >= lo && p.Year <= hi {
					want++
				}
			}
			require.Len(t, got, want, "range %v", r)
		}
	}
}

func TestRangeClamp(t *testing.T) {
	assert.Equal(t, Range{1990, 2000}, Range{1980, 2000}.Clamp(1990, 2024))
	assert.Equal(t, Range{1995, 2024}, Range{2030, 1995}.Clamp(1990, 2024))
	assert.Equal(t, Range{2024, 2024}, Range{2030, 2040}.Clamp(1990, 2024))
}

func TestYearExtent(t *testing.T) {
	min, max, ok := YearExtent(samplePoints())
	require.True(t, ok)
	assert.Equal(t, 1992, min)
	assert.Equal(t, 2024, max)

	_, _, ok = YearExtent(nil)
	assert.False(t, ok)
}

func TestClusterCounts(t *testing.T) {
	assert.Equal(t, map[int]int{1: 2, 2: 2, 3: 2}, ClusterCounts(samplePoints()))
	assert.Empty(t, ClusterCounts(nil))
}
