package clipboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"whiteboard-backend/internal/element"
	"whiteboard-backend/internal/geometry"
	"whiteboard-backend/internal/protocol"
	"whiteboard-backend/internal/scene"
)

// PasteOffset is added to both axes on paste so the copy never lands exactly
// on top of the original.
const PasteOffset = 25.0

// Broadcaster is the outbound session surface used for the post-paste batch
// upsert.
type Broadcaster interface {
	BroadcastUpsert(entries []protocol.ElementEntry) error
}

// Clipboard holds wire-form snapshots of copied elements for the lifetime of
// the browser session. Nothing here is persisted.
type Clipboard struct {
	mu      sync.Mutex
	entries []*element.WhiteboardElement
}

// New creates an empty clipboard.
func New() *Clipboard {
	return &Clipboard{}
}

// Len returns the number of held snapshots.
func (cb *Clipboard) Len() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return len(cb.entries)
}

// Copy snapshots the selected objects. Members of the live multi-select group
// are captured at their global canvas position, and every snapshot loses its
// uuid so paste mints new identities.
func (cb *Clipboard) Copy(graph *scene.Graph, objs []*scene.Object) error {
	group, _ := graph.ActiveGroup()

	snapshots := make([]*element.WhiteboardElement, 0, len(objs))
	for _, obj := range objs {
		if obj.IsHelper {
			continue
		}
		src := obj
		if group != nil && graph.ActiveGroupContains(obj.UUID) {
			src = obj.Clone()
			geometry.ApplyGroupTransform(group, src)
		}
		wire, err := element.ToWireForm(src)
		if err != nil {
			return fmt.Errorf("copy: %w", err)
		}
		wire.UUID = ""
		snapshots = append(snapshots, wire)
	}

	cb.mu.Lock()
	cb.entries = snapshots
	cb.mu.Unlock()
	return nil
}

// Paste materializes every clipboard entry with a fresh uuid and the paste
// offset, adds them to the scene, and broadcasts one batch upsert only after
// all of them (including async image loads) have materialized.
func (cb *Clipboard) Paste(ctx context.Context, graph *scene.Graph, r element.Renderer, session Broadcaster) ([]*scene.Object, error) {
	cb.mu.Lock()
	snapshots := make([]*element.WhiteboardElement, len(cb.entries))
	copy(snapshots, cb.entries)
	cb.mu.Unlock()

	if len(snapshots) == 0 {
		return nil, nil
	}

	type slot struct {
		obj *scene.Object
		err error
	}

	slots := make([]slot, len(snapshots))
	pending := make([]*element.WhiteboardElement, len(snapshots))

	for i, snap := range snapshots {
		el := *snap
		el.UUID = uuid.New().String()
		el.Left += PasteOffset
		el.Top += PasteOffset
		pending[i] = &el
	}

	// All pasted elements must be materialized before any of them is
	// selectable or broadcast; image loads span event-loop turns, so the
	// batch joins on every completion.
	var wg sync.WaitGroup
	for i, el := range pending {
		wg.Add(1)
		go func(i int, el *element.WhiteboardElement) {
			defer wg.Done()
			obj, err := element.FromWireForm(ctx, el, r)
			slots[i] = slot{obj: obj, err: err}
		}(i, el)
	}
	wg.Wait()

	objs := make([]*scene.Object, 0, len(slots))
	entries := make([]protocol.ElementEntry, 0, len(slots))
	for i, sl := range slots {
		if sl.err != nil {
			return nil, fmt.Errorf("paste: %w", sl.err)
		}
		graph.Add(sl.obj)
		pending[i].ZIndex = sl.obj.ZIndex
		objs = append(objs, sl.obj)
		entries = append(entries, protocol.ElementEntry{
			AssetID: pending[i].AssetID,
			UUID:    pending[i].UUID,
			Element: pending[i],
		})
	}

	if session != nil {
		if err := session.BroadcastUpsert(entries); err != nil {
			return objs, err
		}
	}
	return objs, nil
}
