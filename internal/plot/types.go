// Package plot implements the pipeline that turns raw criteria points into
// filtered, grouped, colored and camera-fit views.
//
// Everything here is a pure function over value types or a small state
// machine owned by a single goroutine. Nothing in this package locks.
package plot

// DataPoint is a single trial criterion placed on the 2D map.
type DataPoint struct {
	Cluster int     `json:"CLUSTER"`
	Year    int     `json:"YEAR"`
	X       float64 `json:"X"`
	Y       float64 `json:"Y"`
}

// LabelPoint annotates a cluster on the canvas.
type LabelPoint struct {
	Cluster int     `json:"CLUSTER"`
	Text    string  `json:"LABEL"`
	X       float64 `json:"X"`
	Y       float64 `json:"Y"`
}

// RankEntry is one row of the criteria side list.
type RankEntry struct {
	Cluster int    `json:"CLUSTER"`
	Text    string `json:"LABEL"`
	Rank    int    `json:"RANK"`
}

// Range is an inclusive year interval.
type Range struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

// Contains reports whether year lies in [Lo, Hi].
func (r Range) Contains(year int) bool {
	return year >= r.Lo && year <= r.Hi
}

// Clamp orders the bounds and pulls both into [min, max].
func (r Range) Clamp(min, max int) Range {
	if min > max {
		min, max = max, min
	}
	if r.Lo > r.Hi {
		r.Lo, r.Hi = r.Hi, r.Lo
	}
	r.Lo = clampInt(r.Lo, min, max)
	r.Hi = clampInt(r.Hi, min, max)
	return r
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Bounds is an axis-aligned box in data coordinates.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// Width returns MaxX-MinX.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns MaxY-MinY.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Center returns the midpoint of the box.
func (b Bounds) Center() (float64, float64) {
	return (b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2
}

// Dataset is an immutable snapshot of one plot's resources.
type Dataset struct {
	Name   string       `json:"name"`
	Points []DataPoint  `json:"points"`
	Labels []LabelPoint `json:"labels"`
	Ranks  []RankEntry  `json:"ranks"`
}

// YearExtent returns the rounded minimum and maximum year in points.
func YearExtent(points []DataPoint) (min, max int, ok bool) {
	if len(points) == 0 {
		return 0, 0, false
	}
	min, max = points[0].Year, points[0].Year
	for _, p := range points[1:] {
		if p.Year < min {
			min = p.Year
		}
		if p.Year > max {
			max = p.Year
		}
	}
	return min, max, true
}

// FullRange returns the slider range covering every point, or the zero
// range when points is empty.
func FullRange(points []DataPoint) Range {
	min, max, ok := YearExtent(points)
	if !ok {
		return Range{}
	}
	return Range{Lo: min, Hi: max}
}
