package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit     key.Binding
	NextPlot key.Binding
	Mode     key.Binding
	Reload   key.Binding
	Up       key.Binding
	Down     key.Binding
	Leave    key.Binding
	PanLeft  key.Binding
	PanRight key.Binding
	PanUp    key.Binding
	PanDown  key.Binding
	ZoomIn   key.Binding
	ZoomOut  key.Binding
	LoDown   key.Binding
	LoUp     key.Binding
	HiDown   key.Binding
	HiUp     key.Binding
	Help     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Mode, k.NextPlot, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Leave},
		{k.PanLeft, k.PanRight, k.PanUp, k.PanDown, k.ZoomIn, k.ZoomOut},
		{k.LoDown, k.LoUp, k.HiDown, k.HiUp},
		{k.Mode, k.NextPlot, k.Reload, k.Help, k.Quit},
	}
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	NextPlot: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next plot")),
	Mode:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "clusters/years")),
	Reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Up:       key.NewBinding(key.WithKeys("k"), key.WithHelp("k", "previous criterion")),
	Down:     key.NewBinding(key.WithKeys("j"), key.WithHelp("j", "next criterion")),
	Leave:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear highlight")),
	PanLeft:  key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "pan left")),
	PanRight: key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "pan right")),
	PanUp:    key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "pan up")),
	PanDown:  key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "pan down")),
	ZoomIn:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
	ZoomOut:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "zoom out")),
	LoDown:   key.NewBinding(key.WithKeys("["), key.WithHelp("[", "start year -1")),
	LoUp:     key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "start year +1")),
	HiDown:   key.NewBinding(key.WithKeys("{"), key.WithHelp("{", "end year -1")),
	HiUp:     key.NewBinding(key.WithKeys("}"), key.WithHelp("}", "end year +1")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}
