// Package render draws scatter snapshots using fogleman/gg.
package render

import (
	"bytes"
	"image/color"
	"image/png"
	"sync"

	"github.com/fogleman/gg"

	"github.com/criteria-atlas/server/internal/plot"
	"github.com/criteria-atlas/server/pkg/colormap"
)

// Height of the year histogram strip along the bottom edge.
const stripHeight = 48

// Config contains renderer configuration.
type Config struct {
	Width      int
	Height     int
	PointSize  float64
	Background string
	Margin     float64
}

// Request describes one snapshot.
type Request struct {
	Frame  plot.Frame
	Labels []plot.LabelPoint
	Hover  plot.Hover
	Width  int
	Height int
}

// SnapshotRenderer renders derived frames to PNG.
type SnapshotRenderer struct {
	config      Config
	background  color.Color
	contextPool sync.Pool
	bufferPool  sync.Pool
}

// NewSnapshotRenderer creates a new renderer. Contexts of the default size
// are pooled; other sizes are allocated per call.
func NewSnapshotRenderer(cfg Config) *SnapshotRenderer {
	if cfg.Width <= 0 {
		cfg.Width = 1024
	}
	if cfg.Height <= 0 {
		cfg.Height = 768
	}
	if cfg.PointSize <= 0 {
		cfg.PointSize = 3
	}
	bg, err := colormap.ParseHex(cfg.Background)
	if err != nil {
		bg = color.RGBA{R: 0x1E, G: 0x1E, B: 0x1E, A: 0xFF}
	}

	r := &SnapshotRenderer{
		config:     cfg,
		background: bg,
		contextPool: sync.Pool{
			New: func() interface{} {
				return gg.NewContext(cfg.Width, cfg.Height)
			},
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 64*1024))
			},
		},
	}
	return r
}

// Size resolves a requested size against the configured default.
func (r *SnapshotRenderer) Size(width, height int) (int, int) {
	if width <= 0 {
		width = r.config.Width
	}
	if height <= 0 {
		height = r.config.Height
	}
	return width, height
}

// Render draws the frame's groups fitted to the canvas, cluster labels, and
// the year histogram with the selected range marked.
func (r *SnapshotRenderer) Render(req Request) ([]byte, error) {
	width, height := r.Size(req.Width, req.Height)

	var dc *gg.Context
	if width == r.config.Width && height == r.config.Height {
		dc = r.contextPool.Get().(*gg.Context)
		defer r.contextPool.Put(dc)
	} else {
		dc = gg.NewContext(width, height)
	}

	dc.SetColor(r.background)
	dc.Clear()

	plotH := float64(height - stripHeight)
	if plotH < 1 {
		plotH = float64(height)
	}
	w := float64(width)

	if req.Frame.HasBounds {
		fit := plot.FitBounds(req.Frame.Bounds, w, plotH, r.config.Margin)
		r.drawGroups(dc, req, fit, w, plotH)
		r.drawLabels(dc, req, fit, w, plotH)
	}
	if plotH < float64(height) {
		r.drawHistogram(dc, req.Frame, w, plotH, float64(stripHeight))
	}

	return r.encodeContext(dc)
}

func (r *SnapshotRenderer) drawGroups(dc *gg.Context, req Request, fit plot.Fit, w, h float64) {
	_, hovering := req.Hover.Current()
	radius := r.config.PointSize / 2
	for _, g := range req.Frame.Groups {
		c, err := colormap.ParseHex(g.Color)
		if err != nil {
			c = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
		}
		for _, p := range g.Points {
			sx, sy := plot.Project(fit, p.X, p.Y, w, h)
			if sx < -radius || sx > w+radius || sy < -radius || sy > h+radius {
				continue
			}
			rad := radius
			alpha := 0.8
			if hovering {
				if req.Hover.Highlighted(p.Cluster) {
					rad *= 1.5
					alpha = 1
				} else {
					alpha = 0.25
				}
			}
			dc.SetRGBA(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255, alpha)
			dc.DrawCircle(sx, sy, rad)
			dc.Fill()
		}
	}
}

// drawLabels writes the text of every label whose cluster has visible points.
func (r *SnapshotRenderer) drawLabels(dc *gg.Context, req Request, fit plot.Fit, w, h float64) {
	visible := plot.ClusterCounts(req.Frame.Filtered)
	dc.SetRGB(1, 1, 1)
	for _, l := range req.Labels {
		if visible[l.Cluster] == 0 {
			continue
		}
		sx, sy := plot.Project(fit, l.X, l.Y, w, h)
		if sx < 0 || sx > w || sy < 0 || sy > h {
			continue
		}
		dc.DrawStringAnchored(l.Text, sx, sy, 0.5, 0.5)
	}
}

func (r *SnapshotRenderer) drawHistogram(dc *gg.Context, f plot.Frame, w, top, h float64) {
	bins := f.Histogram
	if len(bins) == 0 {
		return
	}
	maxCount := 0
	for _, b := range bins {
		if b.Count > maxCount {
			maxCount = b.Count
		}
	}
	if maxCount == 0 {
		return
	}

	barW := w / float64(len(bins))
	for i, b := range bins {
		frac := float64(b.Count) / float64(maxCount)
		c := colormap.Viridis.At(frac)
		dc.SetColor(c)
		barH := frac * (h - 4)
		dc.DrawRectangle(float64(i)*barW, top+h-barH, barW, barH)
		dc.Fill()

		if b.Start < f.Range.Lo || b.Start > f.Range.Hi {
			dc.SetRGBA(0, 0, 0, 0.6)
			dc.DrawRectangle(float64(i)*barW, top, barW, h)
			dc.Fill()
		}
	}
}

func (r *SnapshotRenderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
