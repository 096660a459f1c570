package plot

import "github.com/criteria-atlas/server/pkg/colormap"

// Params is the explicit view state the derived frame depends on.
type Params struct {
	Range    Range
	Mode     Mode
	Hover    Hover
	Options  Options
	BinWidth int
	Padding  float64
}

// Frame is everything a renderer needs for one state of a view.
type Frame struct {
	Range     Range          `json:"range"`
	MinYear   int            `json:"min_year"`
	MaxYear   int            `json:"max_year"`
	Mode      Mode           `json:"mode"`
	Filtered  []DataPoint    `json:"-"`
	Groups    []Group        `json:"groups"`
	Histogram []HistogramBin `json:"histogram"`
	Sidebar   []SidebarRow   `json:"sidebar"`
	Bounds    Bounds         `json:"bounds"`
	HasBounds bool           `json:"has_bounds"`
}

// Derive recomputes the frame for ds under p. The range is clamped to the
// dataset's year extent; bounds cover the filtered points. An empty dataset
// yields empty groups in every mode.
func Derive(ds Dataset, p Params) Frame {
	if p.Mode == "" {
		p.Mode = ModeClusters
	}
	padding := p.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}

	f := Frame{Mode: p.Mode}
	opts := p.Options
	if min, max, ok := YearExtent(ds.Points); ok {
		f.MinYear, f.MaxYear = min, max
		f.Range = p.Range.Clamp(min, max)
		if opts.Decades {
			opts.Bands = DecadeBands(min, max, colormap.Bands)
		}
	}

	f.Filtered = Filter(ds.Points, f.Range)
	if len(ds.Points) == 0 {
		// Nothing loaded yet: no legend either.
		f.Groups = []Group{}
	} else {
		f.Groups = GroupPoints(f.Filtered, p.Mode, opts)
	}
	f.Histogram = SliderHistogram(ds.Points, p.BinWidth)
	f.Sidebar = Sidebar(ds.Ranks, ClusterCounts(f.Filtered), ClusterColors(f.Filtered, p.Options.Palette), p.Hover)
	f.Bounds, f.HasBounds = ComputeBounds(f.Filtered, padding)
	return f
}
