package tracker

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"whiteboard-backend/internal/element"
	"whiteboard-backend/internal/geometry"
	"whiteboard-backend/internal/protocol"
	"whiteboard-backend/internal/scene"
)

// Broadcaster is the outbound half of the sync session, from the tracker's
// point of view.
type Broadcaster interface {
	BroadcastUpsert(entries []protocol.ElementEntry) error
	BroadcastDelete(uuids []string) error
	BroadcastOrder(direction protocol.OrderDirection, uuids []string) error
}

// Tracker observes local scene mutations and turns them into wire deltas.
// It also owns the remote-origin suppression set that keeps remote inserts
// from echoing back out as local adds.
type Tracker struct {
	graph   *scene.Graph
	session Broadcaster

	mu           sync.Mutex
	remoteOrigin map[string]struct{}
	disableAll   bool
	zoom         float64
}

// New creates a tracker over the given scene graph.
func New(graph *scene.Graph, session Broadcaster) *Tracker {
	return &Tracker{
		graph:        graph,
		session:      session,
		remoteOrigin: make(map[string]struct{}),
		zoom:         1,
	}
}

// SetZoom records the current canvas zoom, used when clamping moved objects.
func (t *Tracker) SetZoom(zoom float64) {
	t.mu.Lock()
	t.zoom = zoom
	t.mu.Unlock()
}

// SetDisabled blocks or unblocks local mutation origination. Set while the
// board is loading or archived.
func (t *Tracker) SetDisabled(disabled bool) {
	t.mu.Lock()
	t.disableAll = disabled
	t.mu.Unlock()
}

// Disabled reports whether local origination is blocked.
func (t *Tracker) Disabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disableAll
}

// MarkRemoteOrigin records a uuid introduced by a remote message so its local
// add is not rebroadcast.
func (t *Tracker) MarkRemoteOrigin(id string) {
	t.mu.Lock()
	t.remoteOrigin[id] = struct{}{}
	t.mu.Unlock()
}

// consumeRemoteOrigin removes and reports the uuid. One shot: the entry is
// gone once the matching add has been seen.
func (t *Tracker) consumeRemoteOrigin(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.remoteOrigin[id]; ok {
		delete(t.remoteOrigin, id)
		return true
	}
	return false
}

func (t *Tracker) currentZoom() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.zoom
}

// ObjectAdded handles a new object appearing in the scene graph. Helpers,
// empty content and remote-originated inserts never leave the client.
func (t *Tracker) ObjectAdded(obj *scene.Object) error {
	if t.Disabled() || obj.IsHelper || !obj.HasContent() {
		return nil
	}
	if obj.UUID != "" && t.consumeRemoteOrigin(obj.UUID) {
		return nil
	}
	if obj.UUID == "" {
		obj.UUID = uuid.New().String()
	}

	wire, err := element.ToWireForm(obj)
	if err != nil {
		return err
	}
	return t.session.BroadcastUpsert([]protocol.ElementEntry{{
		AssetID: obj.AssetID,
		UUID:    obj.UUID,
		Element: wire,
	}})
}

// ObjectsModified handles a move/scale/rotate/edit of one object or of the
// live multi-select group. Grouped members are rewritten to global canvas
// coordinates before their deltas are built. Any modification brings the
// touched elements to the front.
func (t *Tracker) ObjectsModified(objs []*scene.Object) error {
	if t.Disabled() {
		return nil
	}

	group, _ := t.graph.ActiveGroup()
	zoom := t.currentZoom()
	entries := make([]protocol.ElementEntry, 0, len(objs))

	for _, obj := range objs {
		if obj.IsHelper {
			continue
		}
		reported := obj
		if group != nil && t.graph.ActiveGroupContains(obj.UUID) {
			reported = obj.Clone()
			geometry.ApplyGroupTransform(group, reported)
		} else {
			geometry.ClampWithinCanvas(obj, zoom)
		}

		t.graph.BringToFront(obj.UUID)
		reported.ZIndex = obj.ZIndex

		wire, err := element.ToWireForm(reported)
		if err != nil {
			log.Printf("[Tracker] Skipping unserializable modification of %s: %v", obj.UUID, err)
			continue
		}
		entries = append(entries, protocol.ElementEntry{
			AssetID: obj.AssetID,
			UUID:    obj.UUID,
			Element: wire,
		})
	}

	if len(entries) == 0 {
		return nil
	}
	return t.session.BroadcastUpsert(entries)
}

// ObjectsRemoved handles deletion. If the removal target was the multi-select
// wrapper itself, the wrapper is discarded locally in addition to the member
// deletes.
func (t *Tracker) ObjectsRemoved(objs []*scene.Object) error {
	if t.Disabled() {
		return nil
	}

	group, members := t.graph.ActiveGroup()
	uuids := make([]string, 0, len(objs))

	for _, obj := range objs {
		if obj.IsHelper {
			continue
		}
		if group != nil && obj == group {
			for _, m := range members {
				if m.UUID != "" {
					uuids = append(uuids, m.UUID)
					t.graph.Remove(m.UUID)
				}
			}
			t.graph.DiscardActiveGroup()
			continue
		}
		if obj.UUID == "" {
			continue
		}
		uuids = append(uuids, obj.UUID)
		t.graph.Remove(obj.UUID)
	}

	if len(uuids) == 0 {
		return nil
	}
	return t.session.BroadcastDelete(uuids)
}

// Reorder applies bring-to-front/send-to-back locally and broadcasts the
// explicit order message.
func (t *Tracker) Reorder(direction protocol.OrderDirection, objs []*scene.Object) error {
	if t.Disabled() || !direction.Valid() {
		return nil
	}

	uuids := make([]string, 0, len(objs))
	for _, obj := range objs {
		if obj.IsHelper || obj.UUID == "" {
			continue
		}
		switch direction {
		case protocol.BringToFront:
			t.graph.BringToFront(obj.UUID)
		case protocol.SendToBack:
			t.graph.SendToBack(obj.UUID)
		}
		uuids = append(uuids, obj.UUID)
	}

	if len(uuids) == 0 {
		return nil
	}
	return t.session.BroadcastOrder(direction, uuids)
}
