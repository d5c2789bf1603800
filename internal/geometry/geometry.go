package geometry

import (
	"math"

	"whiteboard-backend/internal/scene"
)

const (
	// BaseWidth is the fixed logical canvas width. Baseline zoom maps this
	// many logical units onto the viewport width regardless of physical
	// pixels.
	BaseWidth = 1920.0

	// ScrollPadding is added to an axis once content overflows the viewport,
	// so the outermost element is never flush against the scroll edge.
	ScrollPadding = 80.0

	// MaxCanvasDimension is the hard ceiling on the unzoomed canvas extent.
	// Past this, zoom shrinks instead of the canvas growing.
	MaxCanvasDimension = 4000.0
)

// Viewport is the visible area in physical pixels.
type Viewport struct {
	Width  float64
	Height float64
}

// Dimensions is the computed canvas geometry.
type Dimensions struct {
	Zoom       float64
	Width      float64
	Height     float64
	Scrollable bool
}

// boundingRight/boundingBottom use the group-relative rect when the object is
// part of the live multi-select group, since its Left/Top are then local to
// the group transform.
func contentExtents(objs []*scene.Object, graph *scene.Graph) (maxRight, maxBottom float64) {
	var group *scene.Object
	if graph != nil {
		group, _ = graph.ActiveGroup()
	}

	for _, o := range objs {
		r := o.BoundingRect()
		right := r.Left + r.Width
		bottom := r.Top + r.Height

		if group != nil && graph.ActiveGroupContains(o.UUID) {
			gx, gy := GroupGlobalPosition(group, o.Left, o.Top)
			right = gx + r.Width/2
			bottom = gy + r.Height/2
		}

		if right > maxRight {
			maxRight = right
		}
		if bottom > maxBottom {
			maxBottom = bottom
		}
	}
	return maxRight, maxBottom
}

// ComputeDimensions derives zoom, canvas size and scrollability from the
// viewport, the element set and the fit-to-screen flag.
//
// Invariant: zoom is always positive and finite, and the canvas never ends up
// smaller than the viewport except when fit-to-screen shrinks it on purpose.
func ComputeDimensions(vp Viewport, graph *scene.Graph, fitToScreen bool) Dimensions {
	zoom := vp.Width / BaseWidth
	if zoom <= 0 || math.IsInf(zoom, 0) || math.IsNaN(zoom) {
		zoom = 1
	}

	maxRight, maxBottom := contentExtents(graph.Objects(), graph)

	// Real (unzoomed) content extents, floored at the viewport.
	realWidth := math.Max(maxRight, vp.Width)
	realHeight := math.Max(maxBottom, vp.Height)

	scrollable := false
	paddedWidth, paddedHeight := realWidth, realHeight
	if maxRight > vp.Width {
		scrollable = true
		paddedWidth += ScrollPadding
	}
	if maxBottom > vp.Height {
		scrollable = true
		paddedHeight += ScrollPadding
	}

	d := Dimensions{Zoom: zoom, Scrollable: scrollable}

	switch {
	case fitToScreen:
		d.Zoom = math.Min(vp.Width/realWidth, vp.Height/realHeight)
		d.Width = vp.Width
		d.Height = vp.Height
		d.Scrollable = false

	case realWidth > MaxCanvasDimension || realHeight > MaxCanvasDimension:
		largest := math.Max(realWidth, realHeight)
		d.Zoom = zoom * MaxCanvasDimension / largest
		d.Width = paddedWidth * d.Zoom
		d.Height = paddedHeight * d.Zoom

	default:
		// Minus one pixel guards against a rounding-error scrollbar.
		d.Width = math.Max(paddedWidth-1, vp.Width)
		d.Height = math.Max(paddedHeight-1, vp.Height)
	}

	if d.Zoom <= 0 || math.IsInf(d.Zoom, 0) || math.IsNaN(d.Zoom) {
		d.Zoom = zoom
	}
	return d
}

// ClampWithinCanvas pushes an object back inside the canvas when a move,
// scale or rotate dragged its bounding box past the negative edge. The
// bounding box is in unzoomed logical units, so the overflow is scaled to
// zoomed pixels before the divided-by-zoom correction; the object lands on
// the edge exactly at any zoom. Right and bottom never clamp; the canvas
// grows there.
func ClampWithinCanvas(obj *scene.Object, zoom float64) {
	if zoom <= 0 {
		zoom = 1
	}
	r := obj.BoundingRect()
	if screenLeft := r.Left * zoom; screenLeft < 0 {
		obj.Left += -screenLeft / zoom
	}
	if screenTop := r.Top * zoom; screenTop < 0 {
		obj.Top += -screenTop / zoom
	}
}
