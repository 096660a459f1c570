package plot

import "math"

const (
	// DefaultPadding is the fraction of the data extent added on each side.
	DefaultPadding = 0.1
	// DefaultMargin scales the raw fit zoom to leave a visual border.
	DefaultMargin = 0.9
)

// ComputeBounds returns the bounding box of points padded by
// extent*padding on every side. ok is false for an empty point set.
func ComputeBounds(points []DataPoint, padding float64) (b Bounds, ok bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	b = Bounds{
		MinX: math.Inf(1), MaxX: math.Inf(-1),
		MinY: math.Inf(1), MaxY: math.Inf(-1),
	}
	for _, p := range points {
		b.MinX = math.Min(b.MinX, p.X)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	xPad := b.Width() * padding
	yPad := b.Height() * padding
	b.MinX -= xPad
	b.MaxX += xPad
	b.MinY -= yPad
	b.MaxY += yPad
	return b, true
}

// Fit is an orthographic camera transform: world units are scaled by Zoom
// around (CenterX, CenterY).
type Fit struct {
	Zoom    float64 `json:"zoom"`
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
}

// FitBounds computes the zoom and center that fit b into a viewport of
// width x height pixels, scaled by margin. Zero-extent axes and viewports
// are treated as extent 1; a non-positive margin uses DefaultMargin.
func FitBounds(b Bounds, width, height, margin float64) Fit {
	if margin <= 0 {
		margin = DefaultMargin
	}
	dataW := nonZeroExtent(b.Width())
	dataH := nonZeroExtent(b.Height())
	width = nonZeroExtent(width)
	height = nonZeroExtent(height)

	dataAspect := dataW / dataH
	viewAspect := width / height

	var zoom float64
	if viewAspect > dataAspect {
		zoom = height / dataH
	} else {
		zoom = width / dataW
	}

	cx, cy := b.Center()
	return Fit{Zoom: zoom * margin, CenterX: cx, CenterY: cy}
}

func nonZeroExtent(v float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 1
	}
	return v
}

// CameraState is the fit latch of a Camera.
type CameraState int

const (
	// NeedsFit waits for the first bounds of a dataset.
	NeedsFit CameraState = iota
	// Fitted has been fit automatically and not touched since.
	Fitted
	// UserAdjusted has been panned or zoomed by the user.
	UserAdjusted
)

func (s CameraState) String() string {
	switch s {
	case NeedsFit:
		return "needs_fit"
	case Fitted:
		return "fitted"
	case UserAdjusted:
		return "user_adjusted"
	}
	return "unknown"
}

// Camera fits itself to the data once per dataset load and afterwards only
// moves when the user moves it.
type Camera struct {
	state  CameraState
	view   Fit
	margin float64
	fits   int
}

// NewCamera returns a camera in NeedsFit with the given fit margin.
func NewCamera(margin float64) *Camera {
	if margin <= 0 {
		margin = DefaultMargin
	}
	return &Camera{state: NeedsFit, view: Fit{Zoom: 1}, margin: margin}
}

// State returns the current latch state.
func (c *Camera) State() CameraState { return c.state }

// View returns the current transform.
func (c *Camera) View() Fit { return c.view }

// Fits returns how many automatic fits have been applied.
func (c *Camera) Fits() int { return c.fits }

// Apply fits the camera to b if it is waiting for a fit. It reports whether
// a fit happened.
func (c *Camera) Apply(b Bounds, width, height float64) bool {
	if c.state != NeedsFit {
		return false
	}
	c.view = FitBounds(b, width, height, c.margin)
	c.state = Fitted
	c.fits++
	return true
}

// Pan moves the view by a screen-space delta in pixels. Panning before the
// first fit leaves the camera waiting for it.
func (c *Camera) Pan(dx, dy float64) {
	zoom := nonZeroExtent(c.view.Zoom)
	c.view.CenterX -= dx / zoom
	c.view.CenterY += dy / zoom
	c.touch()
}

// ZoomBy multiplies the zoom by factor. Non-positive factors are ignored.
func (c *Camera) ZoomBy(factor float64) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return
	}
	c.view.Zoom *= factor
	c.touch()
}

func (c *Camera) touch() {
	if c.state == Fitted {
		c.state = UserAdjusted
	}
}

// Reset re-arms the fit for a new dataset.
func (c *Camera) Reset() {
	c.state = NeedsFit
}

// Project maps data coordinates to screen pixels for a width x height
// viewport with y growing downwards.
func (c *Camera) Project(x, y, width, height float64) (float64, float64) {
	return Project(c.view, x, y, width, height)
}

// Project maps data coordinates through f into screen pixels.
func Project(f Fit, x, y, width, height float64) (float64, float64) {
	sx := (x-f.CenterX)*f.Zoom + width/2
	sy := height/2 - (y-f.CenterY)*f.Zoom
	return sx, sy
}
