package api

import (
	"github.com/criteria-atlas/server/internal/service"
)

// PlotInfo contains information about a plot for the API response.
type PlotInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PlotRegistry holds plot services for all configured plots.
type PlotRegistry struct {
	services    map[string]*service.PlotService
	defaultPlot string
	plotOrder   []string
	title       string
}

// NewPlotRegistry creates a new plot registry.
func NewPlotRegistry(defaultPlot string, order []string, title string) *PlotRegistry {
	return &PlotRegistry{
		services:    make(map[string]*service.PlotService),
		defaultPlot: defaultPlot,
		plotOrder:   order,
		title:       title,
	}
}

// Register adds a plot service. Plots registered outside the configured
// order are appended to it.
func (r *PlotRegistry) Register(plotID string, svc *service.PlotService) {
	if _, ok := r.services[plotID]; !ok {
		known := false
		for _, id := range r.plotOrder {
			if id == plotID {
				known = true
				break
			}
		}
		if !known {
			r.plotOrder = append(r.plotOrder, plotID)
		}
	}
	r.services[plotID] = svc
	if r.defaultPlot == "" {
		r.defaultPlot = plotID
	}
}

// Get returns the plot service, or nil if not found.
func (r *PlotRegistry) Get(plotID string) *service.PlotService {
	return r.services[plotID]
}

// Resolve returns the service for plotID, or the default plot's service
// when plotID is empty.
func (r *PlotRegistry) Resolve(plotID string) (*service.PlotService, string) {
	if plotID == "" {
		plotID = r.defaultPlot
	}
	return r.services[plotID], plotID
}

// DefaultPlotID returns the default plot ID.
func (r *PlotRegistry) DefaultPlotID() string {
	return r.defaultPlot
}

// PlotIDs returns all plot IDs in config order.
func (r *PlotRegistry) PlotIDs() []string {
	return r.plotOrder
}

// Services returns every registered service in config order.
func (r *PlotRegistry) Services() []*service.PlotService {
	out := make([]*service.PlotService, 0, len(r.services))
	for _, id := range r.plotOrder {
		if svc, ok := r.services[id]; ok {
			out = append(out, svc)
		}
	}
	return out
}

// Title returns the configured site title.
func (r *PlotRegistry) Title() string {
	if r.title != "" {
		return r.title
	}
	return "Clinical Trial Criteria Visualizer"
}

// Plots returns plot info for all registered plots.
func (r *PlotRegistry) Plots() []PlotInfo {
	infos := make([]PlotInfo, 0, len(r.plotOrder))
	for _, id := range r.plotOrder {
		if _, ok := r.services[id]; !ok {
			continue
		}
		infos = append(infos, PlotInfo{ID: id, Name: id})
	}
	return infos
}
