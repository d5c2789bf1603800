package element

import (
	"fmt"

	"whiteboard-backend/internal/scene"
)

// Kind is the closed set of element types a board can hold. Anything outside
// this set is rejected at the wire boundary instead of being dispatched to a
// missing constructor.
type Kind string

const (
	KindDrawPath  Kind = "draw-path"
	KindRectangle Kind = "rectangle"
	KindEllipse   Kind = "ellipse"
	KindText      Kind = "text"
	KindImage     Kind = "image"
	KindGroup     Kind = "multi-select-group"
)

// UnknownKindError is returned when a wire element names a type outside the
// closed Kind set.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown element kind %q", e.Kind)
}

// ParseKind validates a wire type string against the closed set.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindDrawPath, KindRectangle, KindEllipse, KindText, KindImage, KindGroup:
		return Kind(s), nil
	}
	return "", &UnknownKindError{Kind: s}
}

// WhiteboardElement is the canonical serialized form of a board element. Only
// the synchronized attribute subset appears here; render-local state like
// selection highlighting has no field and therefore cannot leak onto the wire.
type WhiteboardElement struct {
	UUID    string `json:"uuid,omitempty"`
	AssetID *int64 `json:"assetId,omitempty"`
	Type    Kind   `json:"type"`
	ZIndex  int    `json:"zIndex"`

	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	ScaleX float64 `json:"scaleX"`
	ScaleY float64 `json:"scaleY"`
	Angle  float64 `json:"angle"`

	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Radius float64 `json:"radius,omitempty"`

	Text       string  `json:"text,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`

	Src    string `json:"src,omitempty"`
	Fill   string `json:"fill,omitempty"`
	Stroke string `json:"stroke,omitempty"`
	Path   string `json:"path,omitempty"`
}

// ToWireForm strips a scene object down to the synchronized attribute subset.
// Helper objects have no wire form.
func ToWireForm(obj *scene.Object) (*WhiteboardElement, error) {
	kind, err := ParseKind(obj.Kind)
	if err != nil {
		return nil, err
	}
	if obj.IsHelper {
		return nil, fmt.Errorf("helper elements are not serializable")
	}

	return &WhiteboardElement{
		UUID:       obj.UUID,
		AssetID:    obj.AssetID,
		Type:       kind,
		ZIndex:     obj.ZIndex,
		Left:       obj.Left,
		Top:        obj.Top,
		ScaleX:     obj.ScaleX,
		ScaleY:     obj.ScaleY,
		Angle:      obj.Angle,
		Width:      obj.Width,
		Height:     obj.Height,
		Radius:     obj.Radius,
		Text:       obj.Text,
		FontSize:   obj.FontSize,
		FontFamily: obj.FontFamily,
		Src:        obj.Src,
		Fill:       obj.Fill,
		Stroke:     obj.Stroke,
		Path:       obj.Path,
	}, nil
}

// ApplyMutable copies the mutable attribute allow-list onto an existing scene
// object. The image src is deliberately excluded; src swaps are deferred until
// the replacement image has loaded (see reconcile).
func ApplyMutable(obj *scene.Object, el *WhiteboardElement) {
	obj.Left = el.Left
	obj.Top = el.Top
	obj.ScaleX = el.ScaleX
	obj.ScaleY = el.ScaleY
	obj.Angle = el.Angle
	obj.Width = el.Width
	obj.Height = el.Height
	obj.Radius = el.Radius
	obj.Text = el.Text
	obj.FontSize = el.FontSize
	obj.FontFamily = el.FontFamily
	obj.Fill = el.Fill
	obj.Stroke = el.Stroke
	obj.Path = el.Path
	obj.ZIndex = el.ZIndex
}
