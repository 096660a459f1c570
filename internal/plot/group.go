package plot

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/criteria-atlas/server/pkg/colormap"
)

// Mode selects how filtered points are split into colored groups.
type Mode string

const (
	ModeClusters Mode = "clusters"
	ModeYears    Mode = "years"
)

// ParseMode accepts "clusters"/"cluster" and "years"/"year". Empty means
// clusters.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clusters", "cluster":
		return ModeClusters, nil
	case "years", "year":
		return ModeYears, nil
	}
	return "", fmt.Errorf("unknown color mode %q", s)
}

// OpenEnd marks a band without an upper bound.
const OpenEnd = math.MaxInt

// Band is a half-open year interval [Start, End) with a fixed color.
type Band struct {
	Start int    `json:"start" yaml:"start"`
	End   int    `json:"end" yaml:"end"`
	Color string `json:"color" yaml:"color"`
}

// Open reports whether the band has no upper bound.
func (b Band) Open() bool { return b.End == OpenEnd || b.End <= b.Start }

// Contains reports whether year falls in the band.
func (b Band) Contains(year int) bool {
	if year < b.Start {
		return false
	}
	return b.Open() || year < b.End
}

// Label renders "1990-1994" or "2025+".
func (b Band) Label() string {
	if b.Open() {
		return strconv.Itoa(b.Start) + "+"
	}
	return fmt.Sprintf("%d-%d", b.Start, b.End-1)
}

// MaxBands caps the closed bands StepBands builds. Wider spans widen the
// step instead.
const MaxBands = 256

// StepBands builds consecutive bands of width step from start up to end,
// followed by an open-ended band starting at end. Colors cycle through
// palette.
func StepBands(start, end, step int, palette colormap.Palette) []Band {
	if step <= 0 {
		step = 5
	}
	var bands []Band
	if end > start {
		span := uint64(end) - uint64(start)
		width := uint64(step)
		if minWidth := (span-1)/MaxBands + 1; width < minWidth {
			width = minWidth
		}
		n := (span-1)/width + 1
		for i := uint64(0); i < n; i++ {
			e := end
			if i+1 < n {
				e = int(uint64(start) + (i+1)*width)
			}
			bands = append(bands, Band{Start: int(uint64(start) + i*width), End: e, Color: palette.At(len(bands))})
		}
	}
	bands = append(bands, Band{Start: end, End: OpenEnd, Color: palette.At(len(bands))})
	return bands
}

// DefaultBands returns 5-year bands from 1990 to 2025 plus "2025+".
func DefaultBands() []Band {
	return StepBands(1990, 2025, 5, colormap.Bands)
}

// DecadeBands covers [min, max] with decade bands aligned to multiples of
// ten; the final decade is open-ended.
func DecadeBands(min, max int, palette colormap.Palette) []Band {
	return StepBands(decade(min), decade(max), 10, palette)
}

// decade rounds year down to a multiple of ten, or returns year unchanged
// when that would overflow.
func decade(year int) int {
	d := year - (year%10+10)%10
	if d > year {
		return year
	}
	return d
}

// Group is a colored, labeled subset of the filtered points.
type Group struct {
	Key    string      `json:"key"`
	Label  string      `json:"label"`
	Color  string      `json:"color"`
	Points []DataPoint `json:"points"`
}

// Options carries the palette for cluster mode and the bands for year mode.
// Decades replaces Bands with DecadeBands over the dataset's year extent.
type Options struct {
	Palette colormap.Palette
	Bands   []Band
	Decades bool
}

func (o Options) palette() colormap.Palette {
	if len(o.Palette) == 0 {
		return colormap.Neon
	}
	return o.Palette
}

func (o Options) bands() []Band {
	if len(o.Bands) == 0 {
		return DefaultBands()
	}
	return o.Bands
}

// GroupPoints partitions points by mode. Output order and colors depend only
// on the inputs.
//
// Cluster mode emits one group per cluster present in points, ascending by
// id. Year mode emits every band, empty or not, in band order; points
// outside all bands are not grouped.
func GroupPoints(points []DataPoint, mode Mode, opts Options) []Group {
	if mode == ModeYears {
		return groupByBand(points, opts.bands())
	}
	return groupByCluster(points, opts.palette())
}

func groupByCluster(points []DataPoint, palette colormap.Palette) []Group {
	buckets := make(map[int][]DataPoint)
	for _, p := range points {
		buckets[p.Cluster] = append(buckets[p.Cluster], p)
	}
	ids := SortedClusters(points)
	groups := make([]Group, 0, len(ids))
	for i, id := range ids {
		groups = append(groups, Group{
			Key:    "cluster-" + strconv.Itoa(id),
			Label:  "Cluster " + strconv.Itoa(id),
			Color:  palette.At(i),
			Points: buckets[id],
		})
	}
	return groups
}

func groupByBand(points []DataPoint, bands []Band) []Group {
	groups := make([]Group, len(bands))
	for i, b := range bands {
		groups[i] = Group{
			Key:    "years-" + strconv.Itoa(b.Start),
			Label:  b.Label(),
			Color:  b.Color,
			Points: []DataPoint{},
		}
	}
	for _, p := range points {
		for i, b := range bands {
			if b.Contains(p.Year) {
				groups[i].Points = append(groups[i].Points, p)
				break
			}
		}
	}
	return groups
}

// SortedClusters returns the distinct cluster ids in points, ascending.
func SortedClusters(points []DataPoint) []int {
	seen := make(map[int]struct{})
	ids := make([]int, 0)
	for _, p := range points {
		if _, ok := seen[p.Cluster]; ok {
			continue
		}
		seen[p.Cluster] = struct{}{}
		ids = append(ids, p.Cluster)
	}
	sort.Ints(ids)
	return ids
}

// ClusterColors maps each cluster present in points to the color cluster
// mode would give it.
func ClusterColors(points []DataPoint, palette colormap.Palette) map[int]string {
	if len(palette) == 0 {
		palette = colormap.Neon
	}
	ids := SortedClusters(points)
	colors := make(map[int]string, len(ids))
	for i, id := range ids {
		colors[id] = palette.At(i)
	}
	return colors
}
