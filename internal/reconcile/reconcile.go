package reconcile

import (
	"context"
	"log"
	"sync"

	"whiteboard-backend/internal/element"
	"whiteboard-backend/internal/geometry"
	"whiteboard-backend/internal/protocol"
	"whiteboard-backend/internal/scene"
)

// Suppressor is the slice of the local edit tracker the reconciler needs:
// marking uuids as remote-originated and toggling read-only mode.
type Suppressor interface {
	MarkRemoteOrigin(uuid string)
	SetDisabled(disabled bool)
	SetZoom(zoom float64)
}

// Presence receives the online snapshot. The board view uses it to flag
// members.
type Presence interface {
	SetOnlineUsers(userIDs []int64)
}

// Reconciler applies inbound board messages to the local scene graph. Per
// uuid the policy is last-writer-wins: whatever upsert lands last, sticks.
type Reconciler struct {
	graph    *scene.Graph
	renderer element.Renderer
	tracker  Suppressor
	presence Presence

	mu          sync.Mutex
	viewport    geometry.Viewport
	fitToScreen bool
	dims        geometry.Dimensions
}

// New creates a reconciler. presence may be nil.
func New(graph *scene.Graph, renderer element.Renderer, tracker Suppressor, presence Presence, vp geometry.Viewport) *Reconciler {
	r := &Reconciler{
		graph:    graph,
		renderer: renderer,
		tracker:  tracker,
		presence: presence,
		viewport: vp,
	}
	// Geometry follows every structural change, including ones originated
	// locally through the edit tracker rather than an inbound message.
	graph.OnChange(r.recomputeGeometry)
	r.recomputeGeometry()
	return r
}

// SetFitToScreen toggles fit-to-screen viewing and recomputes geometry.
func (r *Reconciler) SetFitToScreen(fit bool) {
	r.mu.Lock()
	r.fitToScreen = fit
	r.mu.Unlock()
	r.recomputeGeometry()
}

// SetViewport updates the viewport size and recomputes geometry.
func (r *Reconciler) SetViewport(vp geometry.Viewport) {
	r.mu.Lock()
	r.viewport = vp
	r.mu.Unlock()
	r.recomputeGeometry()
}

// Dimensions returns the last computed canvas geometry.
func (r *Reconciler) Dimensions() geometry.Dimensions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dims
}

func (r *Reconciler) recomputeGeometry() {
	r.mu.Lock()
	vp, fit := r.viewport, r.fitToScreen
	r.mu.Unlock()

	d := geometry.ComputeDimensions(vp, r.graph, fit)

	r.mu.Lock()
	r.dims = d
	r.mu.Unlock()

	if r.tracker != nil {
		r.tracker.SetZoom(d.Zoom)
	}
}

// HandleUpsert applies an inbound element batch. Known uuids are updated in
// place; unknown uuids are deserialized through the renderer, marked as
// remote-originated so the add does not echo back out, and inserted. A remote
// edit touching the live multi-select invalidates it, so the group selection
// is discarded before the element changes underneath it.
func (r *Reconciler) HandleUpsert(p *protocol.UpsertPayload) {
	for _, entry := range p.WhiteboardElements {
		if entry.Element == nil || entry.UUID == "" {
			log.Printf("[Reconcile] Dropping upsert entry without element or uuid")
			continue
		}

		if obj := r.graph.Find(entry.UUID); obj != nil {
			if r.graph.ActiveGroupContains(entry.UUID) {
				r.graph.DiscardActiveGroup()
			}
			r.applyUpdate(obj, entry.Element)
			r.graph.SetZIndex(entry.UUID, obj.ZIndex)
			continue
		}

		el := entry.Element
		if el.UUID == "" {
			el.UUID = entry.UUID
		}
		obj, err := element.FromWireForm(context.Background(), el, r.renderer)
		if err != nil {
			log.Printf("[Reconcile] Dropping undeserializable element %s: %v", entry.UUID, err)
			continue
		}
		r.tracker.MarkRemoteOrigin(entry.UUID)
		z := el.ZIndex
		r.graph.Add(obj)
		if z != 0 {
			// The wire z-index wins, and the graph must learn it so its
			// front counter stays above every remote element.
			r.graph.SetZIndex(entry.UUID, z)
		}
	}

	r.recomputeGeometry()
}

// applyUpdate writes the mutable attribute set onto a live object. Image src
// changes only land after the replacement image finished loading off-canvas,
// so the swap never flashes.
func (r *Reconciler) applyUpdate(obj *scene.Object, el *element.WhiteboardElement) {
	oldSrc := obj.Src
	element.ApplyMutable(obj, el)

	if obj.Kind == string(element.KindImage) && el.Src != "" && el.Src != oldSrc {
		loaded, err := element.FromWireForm(context.Background(), el, r.renderer)
		if err != nil {
			log.Printf("[Reconcile] Image swap failed for %s: %v", obj.UUID, err)
			return
		}
		obj.Src = loaded.Src
	}
}

// HandleDelete removes the named elements. Deleting an absent uuid is a
// silent no-op. An overlapping live group selection is discarded first.
func (r *Reconciler) HandleDelete(p *protocol.DeletePayload) {
	for _, id := range p.UUIDs {
		if r.graph.ActiveGroupContains(id) {
			r.graph.DiscardActiveGroup()
			break
		}
	}
	for _, id := range p.UUIDs {
		r.graph.Remove(id)
	}

	r.recomputeGeometry()
}

// HandleOrder applies a z-order change to each named element in the given
// uuid order. Reorder messages must be applied in arrival order; they are
// only commutative when replayed as broadcast.
func (r *Reconciler) HandleOrder(p *protocol.OrderPayload) {
	if !p.Direction.Valid() {
		log.Printf("[Reconcile] Dropping order message with unknown direction %q", p.Direction)
		return
	}

	for _, id := range p.UUIDs {
		switch p.Direction {
		case protocol.BringToFront:
			r.graph.BringToFront(id)
		case protocol.SendToBack:
			r.graph.SendToBack(id)
		}
	}
	r.graph.ForceRepaint()
}

// HandleOnline forwards the full connected-user snapshot.
func (r *Reconciler) HandleOnline(users []protocol.OnlineUser) {
	if r.presence == nil {
		return
	}
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.UserID)
	}
	r.presence.SetOnlineUsers(ids)
}

// HandleBoardUpdate reacts to board-level metadata changes. Archival flips
// the board read-only; this core never deletes boards itself.
func (r *Reconciler) HandleBoardUpdate(p *protocol.BoardUpdatePayload) {
	if r.tracker != nil {
		r.tracker.SetDisabled(p.DeletedAt != nil)
	}
	if p.Title != nil {
		log.Printf("[Reconcile] Board %d renamed to %q", p.WhiteboardID, *p.Title)
	}
}
