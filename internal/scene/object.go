package scene

// Object is a single drawable item in the local scene graph. Coordinates are
// center-origin: Left/Top is the object's center point on the canvas.
// Selected and group membership are render-local state and never leave the
// client.
type Object struct {
	UUID    string
	AssetID *int64
	Kind    string
	ZIndex  int

	Left   float64
	Top    float64
	ScaleX float64
	ScaleY float64
	Angle  float64 // degrees

	Width  float64
	Height float64
	Radius float64

	Text       string
	FontSize   float64
	FontFamily string

	Src    string
	Fill   string
	Stroke string
	Path   string

	// IsHelper marks transient drawing guides (the shape being dragged out).
	// Helpers are never persisted or broadcast.
	IsHelper bool

	Selected bool
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// EffectiveSize returns the object's unscaled logical size. Circles report
// their diameter.
func (o *Object) EffectiveSize() (w, h float64) {
	w, h = o.Width, o.Height
	if o.Radius > 0 {
		w, h = o.Radius*2, o.Radius*2
	}
	return w, h
}

// BoundingRect returns the scaled bounding box around the object's center.
func (o *Object) BoundingRect() Rect {
	w, h := o.EffectiveSize()
	sx, sy := abs(o.ScaleX), abs(o.ScaleY)
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	w, h = w*sx, h*sy
	return Rect{
		Left:   o.Left - w/2,
		Top:    o.Top - h/2,
		Width:  w,
		Height: h,
	}
}

// HasContent reports whether the object carries anything worth syncing.
// An empty text box or a path with no points is still local-only noise.
func (o *Object) HasContent() bool {
	switch o.Kind {
	case "text":
		return o.Text != ""
	case "draw-path":
		return o.Path != ""
	default:
		return true
	}
}

// Clone returns a shallow copy. Group pointers are intentionally not carried.
func (o *Object) Clone() *Object {
	cp := *o
	return &cp
}
