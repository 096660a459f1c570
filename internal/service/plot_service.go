// Package service provides business logic for the plot server.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/criteria-atlas/server/internal/cache"
	"github.com/criteria-atlas/server/internal/metrics"
	"github.com/criteria-atlas/server/internal/plot"
	"github.com/criteria-atlas/server/internal/render"
)

// Resource names one of the three collections of a plot.
type Resource string

const (
	ResourcePoints Resource = "points"
	ResourceLabels Resource = "labels"
	ResourceRanks  Resource = "ranks"
)

// ErrNotLoaded is returned by queries on a resource whose last load failed.
var ErrNotLoaded = errors.New("resource not loaded")

// Source loads the collections of one plot. Both csvstore.Reader and
// sqlstore.Source implement it.
type Source interface {
	Name() string
	Paths() []string
	Points(ctx context.Context) ([]plot.DataPoint, error)
	Labels(ctx context.Context) ([]plot.LabelPoint, error)
	Ranks(ctx context.Context) ([]plot.RankEntry, error)
}

// PlotServiceConfig contains plot service configuration.
type PlotServiceConfig struct {
	Name     string
	Source   Source
	Cache    *cache.Manager
	Renderer *render.SnapshotRenderer
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Options  plot.Options
	BinWidth int
	Padding  float64
	Margin   float64
}

// Snapshot is an immutable loaded state of a plot. Reloads replace it.
type Snapshot struct {
	Dataset    plot.Dataset
	Generation uint64
	LoadedAt   time.Time
	Errors     map[Resource]error
}

// Err returns the load error of a resource, wrapped with ErrNotLoaded.
func (s *Snapshot) Err(r Resource) error {
	if err := s.Errors[r]; err != nil {
		return fmt.Errorf("%s: %w: %v", r, ErrNotLoaded, err)
	}
	return nil
}

// Query selects the view a derived result is computed for.
type Query struct {
	Mode  plot.Mode
	Range plot.Range
	// Hover is the highlighted cluster; negative means none.
	Hover int
}

// FullQuery covers every year with no hover.
func FullQuery(mode plot.Mode) Query {
	return Query{Mode: mode, Range: plot.Range{Lo: math.MinInt, Hi: math.MaxInt}, Hover: -1}
}

func (q Query) params() map[string]string {
	return map[string]string{
		"mode":  string(q.Mode),
		"lo":    strconv.Itoa(q.Range.Lo),
		"hi":    strconv.Itoa(q.Range.Hi),
		"hover": strconv.Itoa(q.Hover),
	}
}

// PlotService serves one plot: loading, derivation and rendering.
type PlotService struct {
	name     string
	source   Source
	cache    *cache.Manager
	renderer *render.SnapshotRenderer
	metrics  *metrics.Metrics
	logger   *zap.Logger
	options  plot.Options
	binWidth int
	padding  float64
	margin   float64

	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
	loads      singleflight.Group
}

// NewPlotService creates a new plot service. Nothing is loaded until the
// first query or an explicit Reload.
func NewPlotService(cfg PlotServiceConfig) *PlotService {
	name := cfg.Name
	if name == "" {
		name = cfg.Source.Name()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlotService{
		name:     name,
		source:   cfg.Source,
		cache:    cfg.Cache,
		renderer: cfg.Renderer,
		metrics:  cfg.Metrics,
		logger:   logger.With(zap.String("plot", name)),
		options:  cfg.Options,
		binWidth: cfg.BinWidth,
		padding:  cfg.Padding,
		margin:   cfg.Margin,
	}
}

// Name returns the plot name.
func (s *PlotService) Name() string { return s.name }

// Paths returns the files backing the plot.
func (s *PlotService) Paths() []string { return s.source.Paths() }

// Snapshot returns the current state, loading it on first use.
func (s *PlotService) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}
	return s.Reload(ctx)
}

// Reload reads every resource again and swaps the snapshot. Concurrent
// callers share one load. A failing resource is logged and left empty;
// the error is only returned when all three fail.
func (s *PlotService) Reload(ctx context.Context) (*Snapshot, error) {
	v, err, _ := s.loads.Do("load", func() (interface{}, error) {
		return s.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (s *PlotService) load(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	snap := &Snapshot{
		Dataset: plot.Dataset{
			Name:   s.name,
			Points: []plot.DataPoint{},
			Labels: []plot.LabelPoint{},
			Ranks:  []plot.RankEntry{},
		},
		Errors: make(map[Resource]error),
	}

	if points, err := s.source.Points(ctx); err != nil {
		snap.Errors[ResourcePoints] = err
	} else {
		snap.Dataset.Points = points
	}
	if labels, err := s.source.Labels(ctx); err != nil {
		snap.Errors[ResourceLabels] = err
	} else {
		snap.Dataset.Labels = labels
	}
	if ranks, err := s.source.Ranks(ctx); err != nil {
		snap.Errors[ResourceRanks] = err
	} else {
		snap.Dataset.Ranks = ranks
	}

	for r, err := range snap.Errors {
		s.logger.Warn("resource load failed", zap.String("resource", string(r)), zap.Error(err))
	}
	if len(snap.Errors) == 3 {
		err := fmt.Errorf("load plot %s: %w", s.name, errors.Join(
			snap.Errors[ResourcePoints], snap.Errors[ResourceLabels], snap.Errors[ResourceRanks]))
		s.metrics.DatasetLoaded(s.name, 0, err)
		return nil, err
	}
	if dups := plot.DuplicateRankClusters(snap.Dataset.Ranks); len(dups) > 0 {
		s.logger.Warn("clusters ranked more than once", zap.Ints("clusters", dups))
	}

	snap.Generation = s.generation.Add(1)
	snap.LoadedAt = time.Now()
	s.current.Store(snap)
	s.metrics.DatasetLoaded(s.name, len(snap.Dataset.Points), nil)
	s.logger.Info("plot loaded",
		zap.Uint64("generation", snap.Generation),
		zap.Int("points", len(snap.Dataset.Points)),
		zap.Int("labels", len(snap.Dataset.Labels)),
		zap.Int("ranks", len(snap.Dataset.Ranks)),
		zap.Duration("took", time.Since(start)),
	)
	return snap, nil
}

// Points returns the raw points.
func (s *PlotService) Points(ctx context.Context) ([]plot.DataPoint, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := snap.Err(ResourcePoints); err != nil {
		return nil, err
	}
	return snap.Dataset.Points, nil
}

// Labels returns the raw cluster labels.
func (s *PlotService) Labels(ctx context.Context) ([]plot.LabelPoint, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := snap.Err(ResourceLabels); err != nil {
		return nil, err
	}
	return snap.Dataset.Labels, nil
}

// Ranks returns the raw rank table.
func (s *PlotService) Ranks(ctx context.Context) ([]plot.RankEntry, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := snap.Err(ResourceRanks); err != nil {
		return nil, err
	}
	return snap.Dataset.Ranks, nil
}

// Frame derives the view state for q.
func (s *PlotService) Frame(ctx context.Context, q Query) (plot.Frame, *Snapshot, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return plot.Frame{}, nil, err
	}
	var hover plot.Hover
	if q.Hover >= 0 {
		hover = plot.HoverOn(q.Hover)
	}
	f := plot.Derive(snap.Dataset, plot.Params{
		Range:    q.Range,
		Mode:     q.Mode,
		Hover:    hover,
		Options:  s.options,
		BinWidth: s.binWidth,
		Padding:  s.padding,
	})
	return f, snap, nil
}

// DerivedJSON returns the JSON encoding of build(frame), cached per
// dataset generation and query.
func (s *PlotService) DerivedJSON(ctx context.Context, kind string, q Query, build func(plot.Frame) interface{}) ([]byte, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	key := cache.QueryKey(kind, s.name, snap.Generation, q.params())
	if s.cache != nil {
		if data, ok := s.cache.GetQuery(key); ok {
			return data, nil
		}
	}

	f, _, err := s.Frame(ctx, q)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(build(f))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	if s.cache != nil {
		s.cache.SetQuery(key, data)
	}
	return data, nil
}

// Fit computes the camera fit of the filtered points for a viewport.
func (s *PlotService) Fit(ctx context.Context, q Query, width, height float64) (plot.Fit, plot.Bounds, bool, error) {
	f, _, err := s.Frame(ctx, q)
	if err != nil {
		return plot.Fit{}, plot.Bounds{}, false, err
	}
	if !f.HasBounds {
		return plot.Fit{Zoom: 1}, f.Bounds, false, nil
	}
	return plot.FitBounds(f.Bounds, width, height, s.margin), f.Bounds, true, nil
}

// RenderSnapshot renders q to PNG, cached per dataset generation.
func (s *PlotService) RenderSnapshot(ctx context.Context, q Query, width, height int) ([]byte, error) {
	if s.renderer == nil {
		return nil, errors.New("renderer not configured")
	}
	width, height = s.renderer.Size(width, height)

	f, snap, err := s.Frame(ctx, q)
	if err != nil {
		return nil, err
	}
	key := cache.SnapshotKey(s.name, snap.Generation, string(f.Mode), f.Range.Lo, f.Range.Hi, q.Hover, width, height)
	if s.cache != nil {
		if data, ok := s.cache.GetSnapshot(key); ok {
			return data, nil
		}
	}

	var hover plot.Hover
	if q.Hover >= 0 {
		hover = plot.HoverOn(q.Hover)
	}
	data, err := s.renderer.Render(render.Request{
		Frame:  f,
		Labels: snap.Dataset.Labels,
		Hover:  hover,
		Width:  width,
		Height: height,
	})
	if err != nil {
		return nil, fmt.Errorf("render snapshot: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.SetSnapshot(key, data); err != nil {
			s.logger.Debug("snapshot not cached", zap.Error(err))
		}
	}
	return data, nil
}
