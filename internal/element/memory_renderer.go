package element

import (
	"context"
	"log"

	"whiteboard-backend/internal/scene"
)

// PlaceholderSrc is painted when an image asset fails to load. The rest of
// the batch renders normally around it.
const PlaceholderSrc = "/assets/placeholder-image.png"

// ImageFetcher loads image bytes for a src URL. The headless client plugs in
// an HTTP fetch; tests plug in fakes.
type ImageFetcher func(ctx context.Context, src string) error

// MemoryRenderer materializes scene objects without a drawing surface. It is
// the renderer used by the headless client and by tests; a browser-backed
// renderer satisfies the same interface.
type MemoryRenderer struct {
	Fetch ImageFetcher
}

// NewMemoryRenderer creates a renderer. A nil fetcher treats every image as
// instantly available.
func NewMemoryRenderer(fetch ImageFetcher) *MemoryRenderer {
	return &MemoryRenderer{Fetch: fetch}
}

func baseObject(el *WhiteboardElement) *scene.Object {
	return &scene.Object{
		UUID:       el.UUID,
		AssetID:    el.AssetID,
		Kind:       string(el.Type),
		ZIndex:     el.ZIndex,
		Left:       el.Left,
		Top:        el.Top,
		ScaleX:     el.ScaleX,
		ScaleY:     el.ScaleY,
		Angle:      el.Angle,
		Width:      el.Width,
		Height:     el.Height,
		Radius:     el.Radius,
		Text:       el.Text,
		FontSize:   el.FontSize,
		FontFamily: el.FontFamily,
		Fill:       el.Fill,
		Stroke:     el.Stroke,
		Path:       el.Path,
	}
}

// CreateShape builds a vector object synchronously.
func (r *MemoryRenderer) CreateShape(el *WhiteboardElement) (*scene.Object, error) {
	return baseObject(el), nil
}

// CreateText builds a text object synchronously.
func (r *MemoryRenderer) CreateText(el *WhiteboardElement) (*scene.Object, error) {
	return baseObject(el), nil
}

// CreateImage builds an image object. The object is constructed without a src
// and the src is applied only once the fetch has completed, so a cross-origin
// image can never taint the canvas mid-construction. A failed fetch falls
// back to the placeholder.
func (r *MemoryRenderer) CreateImage(ctx context.Context, el *WhiteboardElement) (*scene.Object, error) {
	obj := baseObject(el)
	obj.Src = ""

	if r.Fetch != nil && el.Src != "" {
		if err := r.Fetch(ctx, el.Src); err != nil {
			log.Printf("[Element] Image fetch failed for %s, using placeholder: %v", el.UUID, err)
			obj.Src = PlaceholderSrc
			return obj, nil
		}
	}
	obj.Src = el.Src
	return obj, nil
}
