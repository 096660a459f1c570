package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/criteria-atlas/server/internal/plot"
	"github.com/criteria-atlas/server/internal/view"
)

// A terminal cell is roughly twice as tall as it is wide, so the camera
// sees each row as two pixels.
const cellAspect = 2

type cell struct {
	r     rune
	color string
	bold  bool
}

// rasterize projects the frame onto a cols x rows grid. Later groups draw
// over earlier ones; the hovered cluster draws last. Labels of visible
// clusters are written over the points.
func rasterize(f view.Frame, hover plot.Hover, cols, rows int) [][]cell {
	grid := make([][]cell, rows)
	for i := range grid {
		grid[i] = make([]cell, cols)
		for j := range grid[i] {
			grid[i][j].r = ' '
		}
	}
	if cols <= 0 || rows <= 0 || !f.HasBounds {
		return grid
	}

	w, h := float64(cols), float64(rows*cellAspect)
	put := func(x, y float64, c cell) {
		sx, sy := plot.Project(f.Fit, x, y, w, h)
		col, row := int(math.Floor(sx)), int(math.Floor(sy/cellAspect))
		if col < 0 || col >= cols || row < 0 || row >= rows {
			return
		}
		grid[row][col] = c
	}

	_, hovering := hover.Current()
	type colored struct {
		p     plot.DataPoint
		color string
	}
	var top []colored
	for _, g := range f.Groups {
		for _, p := range g.Points {
			if hovering && hover.Highlighted(p.Cluster) {
				top = append(top, colored{p, g.Color})
				continue
			}
			r := '•'
			if hovering {
				r = '·'
			}
			put(p.X, p.Y, cell{r: r, color: g.Color})
		}
	}
	for _, c := range top {
		put(c.p.X, c.p.Y, cell{r: '●', color: c.color, bold: true})
	}

	visible := plot.ClusterCounts(f.Filtered)
	for _, l := range f.Labels {
		if visible[l.Cluster] == 0 {
			continue
		}
		sx, sy := plot.Project(f.Fit, l.X, l.Y, w, h)
		text := []rune(l.Text)
		start := int(math.Floor(sx)) - len(text)/2
		row := int(math.Floor(sy / cellAspect))
		if row < 0 || row >= rows || start < 0 || start+len(text) > cols {
			continue
		}
		for i, r := range text {
			grid[row][start+i] = cell{r: r, color: "#FFFFFF", bold: hover.Highlighted(l.Cluster)}
		}
	}
	return grid
}

// renderGrid turns a grid into styled lines, merging runs of equal style.
func renderGrid(grid [][]cell) string {
	styles := make(map[string]lipgloss.Style)
	style := func(c cell) lipgloss.Style {
		k := c.color
		if c.bold {
			k += "!"
		}
		s, ok := styles[k]
		if !ok {
			s = lipgloss.NewStyle().Foreground(lipgloss.Color(c.color)).Bold(c.bold)
			styles[k] = s
		}
		return s
	}

	var b strings.Builder
	for i, row := range grid {
		if i > 0 {
			b.WriteByte('\n')
		}
		var run strings.Builder
		var cur cell
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if cur.color == "" {
				b.WriteString(run.String())
			} else {
				b.WriteString(style(cur).Render(run.String()))
			}
			run.Reset()
		}
		for _, c := range row {
			if c.color != cur.color || c.bold != cur.bold {
				flush()
				cur = c
			}
			run.WriteRune(c.r)
		}
		flush()
	}
	return b.String()
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// sparkline compresses bins into at most width columns. selected reports,
// per column, whether any of its bins starts inside r.
func sparkline(bins []plot.HistogramBin, r plot.Range, width int) (string, []bool) {
	if len(bins) == 0 || width <= 0 {
		return "", nil
	}
	cols := len(bins)
	if cols > width {
		cols = width
	}
	sums := make([]int, cols)
	selected := make([]bool, cols)
	for i, b := range bins {
		c := i * cols / len(bins)
		sums[c] += b.Count
		if b.Start >= r.Lo && b.Start <= r.Hi {
			selected[c] = true
		}
	}
	max := 0
	for _, s := range sums {
		if s > max {
			max = s
		}
	}
	out := make([]rune, cols)
	for i, s := range sums {
		if max == 0 || s == 0 {
			out[i] = ' '
			continue
		}
		idx := int(math.Ceil(float64(s)/float64(max)*float64(len(sparkRunes)))) - 1
		if idx < 0 {
			idx = 0
		}
		out[i] = sparkRunes[idx]
	}
	return string(out), selected
}
