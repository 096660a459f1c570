package plot

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/criteria-atlas/server/pkg/colormap"
)

func TestGroupPoints_ScenarioSingleCluster(t *testing.T) {
	points := []DataPoint{
		{Year: 1995, Cluster: 1, X: 0, Y: 0},
		{Year: 2005, Cluster: 2, X: 1, Y: 1},
	}
	filtered := Filter(points, Range{1990, 2000})
	require.Equal(t, []DataPoint{{Year: 1995, Cluster: 1, X: 0, Y: 0}}, filtered)

	groups := GroupPoints(filtered, ModeClusters, Options{})
	require.Len(t, groups, 1)
	assert.Equal(t, "Cluster 1", groups[0].Label)
	assert.Equal(t, colormap.Neon[0], groups[0].Color)
	assert.Equal(t, filtered, groups[0].Points)
}

func TestGroupPoints_ClustersSortedAndCycled(t *testing.T) {
	palette := colormap.Palette{"#111111", "#222222"}
	points := []DataPoint{
		{Year: 2000, Cluster: 7},
		{Year: 2000, Cluster: 3},
		{Year: 2000, Cluster: 5},
		{Year: 2001, Cluster: 3},
	}
	groups := GroupPoints(points, ModeClusters, Options{Palette: palette})
	require.Len(t, groups, 3)

	assert.Equal(t, []string{"Cluster 3", "Cluster 5", "Cluster 7"},
		[]string{groups[0].Label, groups[1].Label, groups[2].Label})
	assert.Equal(t, []string{"#111111", "#222222", "#111111"},
		[]string{groups[0].Color, groups[1].Color, groups[2].Color})
	assert.Len(t, groups[0].Points, 2)
	assert.Equal(t, "cluster-3", groups[0].Key)
}

func TestGroupPoints_Deterministic(t *testing.T) {
	points := samplePoints()
	for _, mode := range []Mode{ModeClusters, ModeYears} {
		a := GroupPoints(points, mode, Options{})
		b := GroupPoints(points, mode, Options{})
		assert.Equal(t, a, b, "mode %s", mode)
	}
}

func TestGroupPoints_NoPointLostOrDuplicated(t *testing.T) {
	points := samplePoints()
	for _, mode := range []Mode{ModeClusters, ModeYears} {
		total := 0
		for _, g := range GroupPoints(points, mode, Options{}) {
			total += len(g.Points)
		}
		assert.Equal(t, len(points), total, "mode %s", mode)
	}
}

func TestGroupPoints_YearBandsKeepEmptyEntries(t *testing.T) {
	points := []DataPoint{{Year: 1991, Cluster: 1}, {Year: 2030, Cluster: 2}}
	groups := GroupPoints(points, ModeYears, Options{})

	bands := DefaultBands()
	require.Len(t, groups, len(bands))
	assert.Equal(t, "1990-1994", groups[0].Label)
	assert.Len(t, groups[0].Points, 1)
	assert.Equal(t, "2025+", groups[len(groups)-1].Label)
	assert.Len(t, groups[len(groups)-1].Points, 1)
	for _, g := range groups[1 : len(groups)-1] {
		assert.NotNil(t, g.Points)
		assert.Empty(t, g.Points)
	}
}

func TestBandLabels(t *testing.T) {
	assert.Equal(t, "2000-2004", Band{Start: 2000, End: 2005}.Label())
	assert.Equal(t, "2020+", Band{Start: 2020, End: OpenEnd}.Label())
	assert.Equal(t, "2020+", Band{Start: 2020}.Label())
	assert.True(t, Band{Start: 2020}.Contains(2100))
	assert.False(t, Band{Start: 2000, End: 2005}.Contains(2005))
}

func TestDecadeBands(t *testing.T) {
	bands := DecadeBands(1973, 2024, colormap.Bands)
	labels := make([]string, len(bands))
	for i, b := range bands {
		labels[i] = b.Label()
	}
	assert.Equal(t, []string{"1970-1979", "1980-1989", "1990-1999", "2000-2009", "2010-2019", "2020+"}, labels)
}

func TestDecadeBands_WideSpanIsCapped(t *testing.T) {
	for _, years := range [][2]int{{1995, 20150101}, {math.MinInt, math.MaxInt}} {
		var bands []Band
		require.NotPanics(t, func() { bands = DecadeBands(years[0], years[1], colormap.Bands) })
		assert.LessOrEqual(t, len(bands), MaxBands+1)

		for _, y := range years {
			n := 0
			for _, b := range bands {
				if b.Contains(y) {
					n++
				}
			}
			assert.Equal(t, 1, n, "year %d in %v", y, years)
		}
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Years")
	require.NoError(t, err)
	assert.Equal(t, ModeYears, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeClusters, m)

	_, err = ParseMode("decades")
	assert.Error(t, err)
}
