package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/criteria-atlas/server/internal/plot"
	"github.com/criteria-atlas/server/internal/view"
)

type staticFetcher struct{}

func (staticFetcher) Points(ctx context.Context, name string) ([]plot.DataPoint, error) {
	return []plot.DataPoint{
		{Cluster: 1, Year: 1995, X: 0, Y: 0},
		{Cluster: 2, Year: 2005, X: 10, Y: 10},
		{Cluster: 2, Year: 2010, X: 5, Y: 5},
	}, nil
}

func (staticFetcher) Labels(ctx context.Context, name string) ([]plot.LabelPoint, error) {
	return []plot.LabelPoint{{Cluster: 2, Text: "ECOG", X: 7, Y: 7}}, nil
}

func (staticFetcher) Ranks(ctx context.Context, name string) ([]plot.RankEntry, error) {
	return []plot.RankEntry{
		{Cluster: 1, Text: "Age >= 18", Rank: 1},
		{Cluster: 2, Text: "ECOG 0-1", Rank: 2},
	}, nil
}

// runCmd executes a command tree synchronously and feeds every message
// back into the model.
func runCmd(m *Model, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			runCmd(m, c)
		}
	case nil:
	default:
		_, next := m.Update(msg)
		runCmd(m, next)
	}
}

func newLoadedModel(t *testing.T) *Model {
	t.Helper()
	m := New(context.Background(), view.NewState(view.Config{}), view.NewLoader(staticFetcher{}, 0), []string{"breast", "lung"})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	runCmd(m, m.Init())
	require.False(t, m.frame.Loading)
	return m
}

func press(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelLoadsAndRenders(t *testing.T) {
	m := newLoadedModel(t)
	assert.Equal(t, plot.Fitted, m.frame.Camera)
	assert.Len(t, m.frame.Filtered, 3)

	out := m.View()
	assert.Contains(t, out, "breast")
	assert.Contains(t, out, "Age >= 18")
	assert.Contains(t, out, "ECOG")
}

func TestModelKeys(t *testing.T) {
	m := newLoadedModel(t)

	m.Update(press("]"))
	assert.Equal(t, plot.Range{Lo: 1996, Hi: 2010}, m.state.Range())
	m.Update(press("{"))
	assert.Equal(t, plot.Range{Lo: 1996, Hi: 2009}, m.state.Range())
	assert.Len(t, m.frame.Filtered, 1)

	m.Update(press("m"))
	assert.Equal(t, plot.ModeYears, m.frame.Mode)

	m.Update(press("j"))
	cluster, active := m.state.Hover().Current()
	require.True(t, active)
	assert.Equal(t, m.frame.Sidebar[0].Cluster, cluster)
	m.Update(press("j"))
	cluster, _ = m.state.Hover().Current()
	assert.Equal(t, m.frame.Sidebar[1].Cluster, cluster)
	m.Update(press("esc"))
	_, active = m.state.Hover().Current()
	assert.False(t, active)

	m.Update(press("left"))
	assert.Equal(t, plot.UserAdjusted, m.frame.Camera)
	assert.Equal(t, 1, m.state.CameraFits())

	_, cmd := m.Update(press("tab"))
	assert.Equal(t, "lung", m.state.Key().Plot)
	assert.True(t, m.frame.Loading)
	runCmd(m, cmd)
	assert.Equal(t, plot.Fitted, m.frame.Camera)
	assert.Equal(t, 2, m.state.CameraFits())
}

func TestRasterizeHighlightsHoveredCluster(t *testing.T) {
	s := view.NewState(view.Config{})
	req := s.Select("p")
	s.Apply(view.Result{Key: req, Kind: view.KindPoints, Points: []plot.DataPoint{
		{Cluster: 1, Year: 2000, X: 0, Y: 0},
		{Cluster: 2, Year: 2000, X: 10, Y: 10},
	}})
	s.Enter(2)
	f := s.Derive(40, 20*cellAspect)

	grid := rasterize(f, s.Hover(), 40, 20)
	var big, small int
	for _, row := range grid {
		for _, c := range row {
			switch c.r {
			case '●':
				big++
				assert.True(t, c.bold)
			case '·':
				small++
			}
		}
	}
	assert.Equal(t, 1, big)
	assert.Equal(t, 1, small)
}

func TestRasterizeHoveredClusterKeepsBandColors(t *testing.T) {
	s := view.NewState(view.Config{})
	req := s.Select("p")
	s.Apply(view.Result{Key: req, Kind: view.KindPoints, Points: []plot.DataPoint{
		{Cluster: 1, Year: 1992, X: 0, Y: 0},
		{Cluster: 1, Year: 2012, X: 10, Y: 10},
		{Cluster: 2, Year: 2000, X: 5, Y: 0},
	}})
	s.SetMode(plot.ModeYears)
	s.Enter(1)
	f := s.Derive(40, 20*cellAspect)

	bandColor := make(map[int]string)
	for _, g := range f.Groups {
		for _, p := range g.Points {
			bandColor[p.Year] = g.Color
		}
	}
	require.NotEqual(t, bandColor[1992], bandColor[2012])

	var colors []string
	for _, row := range rasterize(f, s.Hover(), 40, 20) {
		for _, c := range row {
			if c.r == '●' {
				colors = append(colors, c.color)
			}
		}
	}
	assert.ElementsMatch(t, []string{bandColor[1992], bandColor[2012]}, colors)
}

func TestSparkline(t *testing.T) {
	bins := []plot.HistogramBin{{Start: 2000, Count: 1}, {Start: 2001, Count: 0}, {Start: 2002, Count: 4}, {Start: 2003, Count: 2}}

	line, selected := sparkline(bins, plot.Range{Lo: 2002, Hi: 2003}, 10)
	assert.Equal(t, 4, len([]rune(line)))
	assert.Equal(t, []bool{false, false, true, true}, selected)
	assert.Equal(t, '█', []rune(line)[2])
	assert.Equal(t, ' ', []rune(line)[1])

	line, selected = sparkline(bins, plot.Range{Lo: 2000, Hi: 2000}, 2)
	assert.Equal(t, 2, len([]rune(line)))
	assert.Equal(t, []bool{true, false}, selected)
	assert.True(t, strings.ContainsRune(line, '█'))
}
