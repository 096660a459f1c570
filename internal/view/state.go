// Package view holds the interactive state of one viewer session: which
// plot is active, what has arrived from the server, and the user's range,
// grouping mode, hover and camera. It is not safe for concurrent use; the
// owner drives it from a single event loop.
package view

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/criteria-atlas/server/internal/plot"
)

// Kind identifies one of the three collections fetched per plot.
type Kind int

const (
	KindPoints Kind = iota
	KindLabels
	KindRanks
	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindPoints:
		return "points"
	case KindLabels:
		return "labels"
	case KindRanks:
		return "ranks"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Status is the load state of one collection.
type Status int

const (
	Pending Status = iota
	Loaded
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// RequestKey tags every fetch. Only results carrying the active key are
// applied.
type RequestKey struct {
	Plot       string
	Generation uint64
}

// Result is the outcome of one fetch. Exactly one of the collection fields
// is meaningful, chosen by Kind.
type Result struct {
	Key    RequestKey
	Kind   Kind
	Points []plot.DataPoint
	Labels []plot.LabelPoint
	Ranks  []plot.RankEntry
	Err    error
}

// Config holds the fixed derivation settings of a session.
type Config struct {
	Options  plot.Options
	BinWidth int
	Padding  float64
	Margin   float64
	Logger   *zap.Logger
}

// Frame is a derived plot frame plus the session's camera.
type Frame struct {
	plot.Frame
	Labels  []plot.LabelPoint
	Fit     plot.Fit
	Camera  plot.CameraState
	Loading bool
}

// State is one viewer session.
type State struct {
	cfg     Config
	logger  *zap.Logger
	key     RequestKey
	dataset plot.Dataset
	status  [numKinds]Status
	errs    [numKinds]error
	rng     plot.Range
	mode    plot.Mode
	hover   plot.Hover
	camera  *plot.Camera
}

// NewState returns a session with no active plot.
func NewState(cfg Config) *State {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &State{
		cfg:    cfg,
		logger: logger,
		mode:   plot.ModeClusters,
		camera: plot.NewCamera(cfg.Margin),
	}
	s.clear()
	return s
}

func (s *State) clear() {
	s.dataset = plot.Dataset{
		Name:   s.key.Plot,
		Points: []plot.DataPoint{},
		Labels: []plot.LabelPoint{},
		Ranks:  []plot.RankEntry{},
	}
	for i := range s.status {
		s.status[i] = Pending
		s.errs[i] = nil
	}
	s.rng = plot.Range{}
	s.hover.Leave()
	s.camera.Reset()
}

// Select makes name the active plot and returns the key its fetches must
// carry. Everything loaded for the previous plot is dropped, and results
// still in flight for it become stale. Selecting the active plot again
// reloads it.
func (s *State) Select(name string) RequestKey {
	s.key = RequestKey{Plot: name, Generation: s.key.Generation + 1}
	s.clear()
	return s.key
}

// Key returns the active request key.
func (s *State) Key() RequestKey { return s.key }

// Apply stores a fetch result. It reports false, changing nothing, when the
// result belongs to a superseded request. A failed fetch leaves its
// collection empty.
func (s *State) Apply(r Result) bool {
	if r.Key != s.key {
		s.logger.Debug("dropping stale result",
			zap.String("plot", r.Key.Plot),
			zap.Uint64("generation", r.Key.Generation),
			zap.Stringer("kind", r.Kind))
		return false
	}
	if r.Kind < 0 || r.Kind >= numKinds {
		return false
	}
	if r.Err != nil {
		s.logger.Warn("fetch failed", zap.String("plot", r.Key.Plot), zap.Stringer("kind", r.Kind), zap.Error(r.Err))
		s.status[r.Kind] = Failed
		s.errs[r.Kind] = r.Err
		return true
	}

	switch r.Kind {
	case KindPoints:
		s.dataset.Points = nonNil(r.Points)
		s.rng = plot.FullRange(s.dataset.Points)
		s.camera.Reset()
	case KindLabels:
		s.dataset.Labels = nonNil(r.Labels)
	case KindRanks:
		s.dataset.Ranks = nonNil(r.Ranks)
		if dups := plot.DuplicateRankClusters(s.dataset.Ranks); len(dups) > 0 {
			s.logger.Warn("clusters ranked more than once", zap.String("plot", r.Key.Plot), zap.Ints("clusters", dups))
		}
	}
	s.status[r.Kind] = Loaded
	s.errs[r.Kind] = nil
	return true
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// Status returns the load state of one collection.
func (s *State) Status(k Kind) Status { return s.status[k] }

// Err returns the last fetch error of one collection.
func (s *State) Err(k Kind) error { return s.errs[k] }

// Loading reports whether any collection is still pending.
func (s *State) Loading() bool {
	for _, st := range s.status {
		if st == Pending {
			return true
		}
	}
	return false
}

// Dataset returns what has arrived so far.
func (s *State) Dataset() plot.Dataset { return s.dataset }

// Extent returns the year extent of the loaded points.
func (s *State) Extent() (min, max int, ok bool) {
	return plot.YearExtent(s.dataset.Points)
}

// Range returns the selected year range.
func (s *State) Range() plot.Range { return s.rng }

// SetRange selects [lo, hi], ordered and clamped to the loaded extent.
// Without points the range is kept as given until points arrive.
func (s *State) SetRange(lo, hi int) {
	r := plot.Range{Lo: lo, Hi: hi}
	if min, max, ok := s.Extent(); ok {
		r = r.Clamp(min, max)
	} else if r.Lo > r.Hi {
		r.Lo, r.Hi = r.Hi, r.Lo
	}
	s.rng = r
}

// Mode returns the grouping mode.
func (s *State) Mode() plot.Mode { return s.mode }

// SetMode switches the grouping mode. A change clears the hover.
func (s *State) SetMode(m plot.Mode) {
	if m == "" {
		m = plot.ModeClusters
	}
	if m != s.mode {
		s.hover.Leave()
	}
	s.mode = m
}

// Hover returns the hover state.
func (s *State) Hover() plot.Hover { return s.hover }

// Enter hovers a cluster.
func (s *State) Enter(cluster int) { s.hover.Enter(cluster) }

// Leave clears the hover.
func (s *State) Leave() { s.hover.Leave() }

// Pan moves the camera by a screen delta.
func (s *State) Pan(dx, dy float64) { s.camera.Pan(dx, dy) }

// Zoom scales the camera.
func (s *State) Zoom(factor float64) { s.camera.ZoomBy(factor) }

// CameraFits returns how many automatic fits the camera has done.
func (s *State) CameraFits() int { return s.camera.Fits() }

// Derive computes the frame for a viewport. The first frame with visible
// points after a load fits the camera; later frames keep the camera where
// the fit or the user left it.
func (s *State) Derive(width, height float64) Frame {
	f := plot.Derive(s.dataset, plot.Params{
		Range:    s.rng,
		Mode:     s.mode,
		Hover:    s.hover,
		Options:  s.cfg.Options,
		BinWidth: s.cfg.BinWidth,
		Padding:  s.cfg.Padding,
	})
	if f.HasBounds && s.status[KindPoints] == Loaded {
		s.camera.Apply(f.Bounds, width, height)
	}
	return Frame{
		Frame:   f,
		Labels:  s.dataset.Labels,
		Fit:     s.camera.View(),
		Camera:  s.camera.State(),
		Loading: s.Loading(),
	}
}
