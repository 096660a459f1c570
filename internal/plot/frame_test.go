package plot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive_EmptyDataset(t *testing.T) {
	for _, mode := range []Mode{ModeClusters, ModeYears} {
		f := Derive(Dataset{Name: "empty"}, Params{Mode: mode, Range: Range{1990, 2000}})
		assert.NotNil(t, f.Groups)
		assert.Empty(t, f.Groups)
		assert.NotNil(t, f.Histogram)
		assert.Empty(t, f.Histogram)
		assert.Empty(t, f.Filtered)
		assert.Empty(t, f.Sidebar)
		assert.False(t, f.HasBounds)
	}
}

func TestDerive_ClampsRangeAndGroups(t *testing.T) {
	ds := Dataset{
		Points: samplePoints(),
		Ranks:  []RankEntry{{Cluster: 1, Text: "one", Rank: 1}, {Cluster: 2, Text: "two", Rank: 2}},
	}
	f := Derive(ds, Params{Range: Range{1900, 2000}, Mode: ModeClusters, Hover: HoverOn(2)})

	assert.Equal(t, Range{1992, 2000}, f.Range)
	assert.Equal(t, 1992, f.MinYear)
	assert.Equal(t, 2024, f.MaxYear)
	require.Len(t, f.Filtered, 2)
	require.Len(t, f.Groups, 2)
	assert.Equal(t, "Cluster 1", f.Groups[0].Label)
	assert.Equal(t, "Cluster 3", f.Groups[1].Label)

	require.Len(t, f.Sidebar, 2)
	assert.Equal(t, 1, f.Sidebar[0].Cluster)
	assert.True(t, f.Sidebar[1].Highlighted)
	assert.Equal(t, f.Groups[0].Color, f.Sidebar[0].Color)

	assert.True(t, f.HasBounds)
	total := 0
	for _, b := range f.Histogram {
		total += b.Count
	}
	assert.Equal(t, len(ds.Points), total)
}

func TestDerive_DecadeBandsFollowDataset(t *testing.T) {
	ds := Dataset{Points: []DataPoint{{Year: 1987, Cluster: 1}, {Year: 2003, Cluster: 2}, {Year: 2011, Cluster: 2}}}
	f := Derive(ds, Params{
		Mode:    ModeYears,
		Range:   Range{2000, 2020},
		Options: Options{Decades: true},
	})

	labels := make([]string, len(f.Groups))
	for i, g := range f.Groups {
		labels[i] = g.Label
	}
	assert.Equal(t, []string{"1980-1989", "1990-1999", "2000-2009", "2010+"}, labels)
	assert.Empty(t, f.Groups[0].Points)
	require.Len(t, f.Groups[2].Points, 1)
	assert.Equal(t, 2003, f.Groups[2].Points[0].Year)
}
