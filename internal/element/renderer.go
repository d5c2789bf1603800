package element

import (
	"context"
	"log"

	"whiteboard-backend/internal/scene"
)

// Renderer is the capability surface of the drawing engine. The sync core
// never touches canvas primitives directly; it asks the renderer to
// materialize scene objects from wire forms.
type Renderer interface {
	CreateShape(el *WhiteboardElement) (*scene.Object, error)
	CreateText(el *WhiteboardElement) (*scene.Object, error)
	// CreateImage fetches the image bytes before the object becomes
	// paintable. The src is applied only after the fetch completes so the
	// canvas is never tainted by a half-constructed cross-origin image.
	CreateImage(ctx context.Context, el *WhiteboardElement) (*scene.Object, error)
}

// FromWireForm reconstructs a renderable scene object through the renderer.
// Vector kinds build synchronously; image kinds block on the asset fetch.
// The constructor table is closed: unknown kinds return UnknownKindError.
func FromWireForm(ctx context.Context, el *WhiteboardElement, r Renderer) (*scene.Object, error) {
	kind, err := ParseKind(string(el.Type))
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindText:
		return r.CreateText(el)
	case KindImage:
		return r.CreateImage(ctx, el)
	case KindDrawPath, KindRectangle, KindEllipse, KindGroup:
		return r.CreateShape(el)
	}
	return nil, &UnknownKindError{Kind: string(el.Type)}
}

// FromWireForms materializes a batch, waiting for every element (including
// async image fetches) before returning. A failed image falls back to its
// placeholder inside the renderer and never sinks the batch; genuinely
// malformed elements are dropped and logged.
func FromWireForms(ctx context.Context, els []*WhiteboardElement, r Renderer) []*scene.Object {
	out := make([]*scene.Object, 0, len(els))
	for _, el := range els {
		obj, err := FromWireForm(ctx, el, r)
		if err != nil {
			log.Printf("[Element] Dropping undeserializable element %s: %v", el.UUID, err)
			continue
		}
		out = append(out, obj)
	}
	return out
}
