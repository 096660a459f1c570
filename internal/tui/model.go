// Package tui is a terminal viewer for a running atlas server.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/criteria-atlas/server/internal/plot"
	"github.com/criteria-atlas/server/internal/view"
)

const (
	sidebarWidth = 38
	panStep      = 4
	zoomStep     = 1.25
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#04D9FF"))
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
	selectedYearsStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#39FF14"))
	rowActiveStyle = lipgloss.NewStyle().
			Reverse(true)
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF073A"))
	sidebarStyle = lipgloss.NewStyle().
			Width(sidebarWidth).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			PaddingLeft(1)
)

type resultMsg view.Result

// Model is the bubbletea model of the viewer.
type Model struct {
	ctx     context.Context
	state   *view.State
	loader  *view.Loader
	plots   []string
	plotIdx int

	width  int
	height int
	cursor int
	frame  view.Frame

	help     help.Model
	showHelp bool
}

// New creates a viewer over plots, starting with the first one.
func New(ctx context.Context, state *view.State, loader *view.Loader, plots []string) *Model {
	if len(plots) == 0 {
		plots = []string{""}
	}
	return &Model{
		ctx:    ctx,
		state:  state,
		loader: loader,
		plots:  plots,
		width:  100,
		height: 30,
		help:   help.New(),
	}
}

// Init starts loading the first plot.
func (m *Model) Init() tea.Cmd {
	return m.load()
}

func (m *Model) load() tea.Cmd {
	req := m.state.Select(m.plots[m.plotIdx])
	m.cursor = 0
	m.refresh()

	var cmds []tea.Cmd
	for _, fetch := range m.loader.Fetches(m.ctx, req) {
		fetch := fetch
		cmds = append(cmds, func() tea.Msg { return resultMsg(fetch()) })
	}
	return tea.Batch(cmds...)
}

func (m *Model) canvasSize() (int, int) {
	cols := m.width - sidebarWidth - 2
	rows := m.height - 5
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return cols, rows
}

// refresh re-derives the frame after any state change.
func (m *Model) refresh() {
	cols, rows := m.canvasSize()
	m.frame = m.state.Derive(float64(cols), float64(rows*cellAspect))
	if m.cursor >= len(m.frame.Sidebar) {
		m.cursor = len(m.frame.Sidebar) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.refresh()

	case resultMsg:
		if m.state.Apply(view.Result(msg)) {
			m.refresh()
		}

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	r := m.state.Range()
	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit
	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return nil
	case key.Matches(msg, keys.NextPlot):
		m.plotIdx = (m.plotIdx + 1) % len(m.plots)
		return m.load()
	case key.Matches(msg, keys.Reload):
		return m.load()
	case key.Matches(msg, keys.Mode):
		if m.state.Mode() == plot.ModeClusters {
			m.state.SetMode(plot.ModeYears)
		} else {
			m.state.SetMode(plot.ModeClusters)
		}
	case key.Matches(msg, keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, keys.Leave):
		m.state.Leave()
	case key.Matches(msg, keys.PanLeft):
		m.state.Pan(panStep, 0)
	case key.Matches(msg, keys.PanRight):
		m.state.Pan(-panStep, 0)
	case key.Matches(msg, keys.PanUp):
		m.state.Pan(0, panStep*cellAspect)
	case key.Matches(msg, keys.PanDown):
		m.state.Pan(0, -panStep*cellAspect)
	case key.Matches(msg, keys.ZoomIn):
		m.state.Zoom(zoomStep)
	case key.Matches(msg, keys.ZoomOut):
		m.state.Zoom(1 / zoomStep)
	case key.Matches(msg, keys.LoDown):
		m.state.SetRange(r.Lo-1, r.Hi)
	case key.Matches(msg, keys.LoUp):
		if r.Lo < r.Hi {
			m.state.SetRange(r.Lo+1, r.Hi)
		}
	case key.Matches(msg, keys.HiDown):
		if r.Hi > r.Lo {
			m.state.SetRange(r.Lo, r.Hi-1)
		}
	case key.Matches(msg, keys.HiUp):
		m.state.SetRange(r.Lo, r.Hi+1)
	default:
		return nil
	}
	m.refresh()
	return nil
}

// moveCursor moves the sidebar cursor and hovers the row's cluster.
func (m *Model) moveCursor(delta int) {
	rows := m.frame.Sidebar
	if len(rows) == 0 {
		return
	}
	if _, active := m.state.Hover().Current(); active {
		m.cursor += delta
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(rows) {
		m.cursor = len(rows) - 1
	}
	m.state.Enter(rows[m.cursor].Cluster)
}

// View renders the screen.
func (m *Model) View() string {
	cols, rows := m.canvasSize()
	f := m.frame

	title := titleStyle.Render(fmt.Sprintf("criteria atlas · %s", displayName(m.state.Key().Plot)))
	status := dimStyle.Render(fmt.Sprintf("  %s · %d–%d · %d points · camera %s",
		f.Mode, f.Range.Lo, f.Range.Hi, len(f.Filtered), f.Camera))
	if f.Loading {
		status += dimStyle.Render(" · loading " + m.pendingList())
	}

	var canvas string
	if len(m.state.Dataset().Points) == 0 {
		canvas = m.placeholder(cols, rows)
	} else {
		canvas = renderGrid(rasterize(f, m.state.Hover(), cols, rows))
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(cols).Height(rows).Render(canvas),
		sidebarStyle.Height(rows).Render(m.sidebar(rows)),
	)

	return strings.Join([]string{
		title + status,
		body,
		m.slider(cols),
		m.errors(),
		m.help.View(keys),
	}, "\n")
}

func displayName(name string) string {
	if name == "" {
		return "default plot"
	}
	return name
}

func (m *Model) pendingList() string {
	var pending []string
	for _, k := range []view.Kind{view.KindPoints, view.KindLabels, view.KindRanks} {
		if m.state.Status(k) == view.Pending {
			pending = append(pending, k.String())
		}
	}
	return strings.Join(pending, ", ")
}

func (m *Model) placeholder(cols, rows int) string {
	msg := "no points"
	if m.state.Status(view.KindPoints) == view.Pending {
		msg = "loading…"
	}
	return lipgloss.Place(cols, rows, lipgloss.Center, lipgloss.Center, dimStyle.Render(msg))
}

func (m *Model) sidebar(height int) string {
	rows := m.frame.Sidebar
	if len(rows) == 0 {
		return dimStyle.Render("no criteria")
	}
	start := 0
	if m.cursor >= height {
		start = m.cursor - height + 1
	}
	var lines []string
	for i := start; i < len(rows) && len(lines) < height; i++ {
		r := rows[i]
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(r.Color)).Render("■")
		text := fmt.Sprintf("%2d. %s (%d)", r.Position, r.Text, r.Count)
		if max := sidebarWidth - 4; len([]rune(text)) > max {
			text = string([]rune(text)[:max-1]) + "…"
		}
		if r.Highlighted {
			text = rowActiveStyle.Render(text)
		}
		lines = append(lines, swatch+" "+text)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) slider(width int) string {
	f := m.frame
	spark, selected := sparkline(f.Histogram, f.Range, width)
	if spark == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range []rune(spark) {
		if selected[i] {
			b.WriteString(selectedYearsStyle.Render(string(r)))
		} else {
			b.WriteString(dimStyle.Render(string(r)))
		}
	}
	return b.String() + dimStyle.Render(fmt.Sprintf("  %d … %d", f.MinYear, f.MaxYear))
}

func (m *Model) errors() string {
	var errs []string
	for _, k := range []view.Kind{view.KindPoints, view.KindLabels, view.KindRanks} {
		if err := m.state.Err(k); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", k, err))
		}
	}
	if len(errs) == 0 {
		return ""
	}
	return errorStyle.Render(strings.Join(errs, " · "))
}
