package clipboard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiteboard-backend/internal/element"
	"whiteboard-backend/internal/protocol"
	"whiteboard-backend/internal/scene"
)

type recordingBroadcaster struct {
	mu      sync.Mutex
	upserts [][]protocol.ElementEntry
}

func (r *recordingBroadcaster) BroadcastUpsert(entries []protocol.ElementEntry) error {
	r.mu.Lock()
	r.upserts = append(r.upserts, entries)
	r.mu.Unlock()
	return nil
}

func rect(uuid string, left, top float64) *scene.Object {
	return &scene.Object{
		UUID:   uuid,
		Kind:   "rectangle",
		Left:   left,
		Top:    top,
		Width:  100,
		Height: 100,
		ScaleX: 1,
		ScaleY: 1,
	}
}

func TestCopyStripsUUIDs(t *testing.T) {
	graph := scene.NewGraph()
	a := rect("a", 100, 100)
	graph.Add(a)

	cb := New()
	require.NoError(t, cb.Copy(graph, []*scene.Object{a}))
	assert.Equal(t, 1, cb.Len())

	cb.mu.Lock()
	assert.Empty(t, cb.entries[0].UUID)
	cb.mu.Unlock()
}

func TestCopySkipsHelpers(t *testing.T) {
	graph := scene.NewGraph()
	helper := rect("h", 0, 0)
	helper.IsHelper = true
	a := rect("a", 100, 100)
	graph.Add(a)

	cb := New()
	require.NoError(t, cb.Copy(graph, []*scene.Object{helper, a}))
	assert.Equal(t, 1, cb.Len())
}

func TestCopyGroupMemberCapturesGlobalPosition(t *testing.T) {
	graph := scene.NewGraph()
	member := rect("m", 10, 10)
	graph.Add(member)
	wrapper := &scene.Object{Kind: "multi-select-group", Left: 100, Top: 100, ScaleX: 1, ScaleY: 1, IsHelper: true}
	graph.SetActiveGroup(wrapper, []*scene.Object{member})

	cb := New()
	require.NoError(t, cb.Copy(graph, []*scene.Object{member}))

	cb.mu.Lock()
	defer cb.mu.Unlock()
	assert.InDelta(t, 110.0, cb.entries[0].Left, 1e-9)
	assert.InDelta(t, 110.0, cb.entries[0].Top, 1e-9)
}

func TestPasteMintsUUIDsAndOffsets(t *testing.T) {
	graph := scene.NewGraph()
	a := rect("a", 100, 100)
	b := rect("b", 200, 200)
	graph.Add(a)
	graph.Add(b)

	cb := New()
	require.NoError(t, cb.Copy(graph, []*scene.Object{a, b}))

	bc := &recordingBroadcaster{}
	objs, err := cb.Paste(context.Background(), graph, element.NewMemoryRenderer(nil), bc)
	require.NoError(t, err)
	require.Len(t, objs, 2)

	assert.Equal(t, 4, graph.Len())
	for i, pasted := range objs {
		assert.NotEmpty(t, pasted.UUID)
		assert.NotEqual(t, []string{"a", "b"}[i], pasted.UUID)
	}
	assert.InDelta(t, 125.0, objs[0].Left, 1e-9)
	assert.InDelta(t, 125.0, objs[0].Top, 1e-9)
	assert.InDelta(t, 225.0, objs[1].Left, 1e-9)

	require.Len(t, bc.upserts, 1, "one batch upsert for the whole paste")
	require.Len(t, bc.upserts[0], 2)
	assert.Equal(t, objs[0].UUID, bc.upserts[0][0].UUID)
	assert.Equal(t, objs[0].ZIndex, bc.upserts[0][0].Element.ZIndex)
}

func TestPasteTwiceMintsDistinctUUIDs(t *testing.T) {
	graph := scene.NewGraph()
	a := rect("a", 100, 100)
	graph.Add(a)

	cb := New()
	require.NoError(t, cb.Copy(graph, []*scene.Object{a}))

	r := element.NewMemoryRenderer(nil)
	first, err := cb.Paste(context.Background(), graph, r, nil)
	require.NoError(t, err)
	second, err := cb.Paste(context.Background(), graph, r, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first[0].UUID, second[0].UUID)
	// Each paste offsets from the clipboard snapshot, not cumulatively.
	assert.Equal(t, first[0].Left, second[0].Left)
}

func TestPasteEmptyClipboardIsNoOp(t *testing.T) {
	graph := scene.NewGraph()
	cb := New()

	objs, err := cb.Paste(context.Background(), graph, element.NewMemoryRenderer(nil), nil)
	require.NoError(t, err)
	assert.Nil(t, objs)
	assert.Equal(t, 0, graph.Len())
}

func TestPasteBroadcastsOnlyAfterAllMaterialized(t *testing.T) {
	graph := scene.NewGraph()
	assetID := int64(1)
	img := rect("img", 100, 100)
	img.Kind = "image"
	img.AssetID = &assetID
	img.Src = "https://example.com/a.png"
	shape := rect("s", 200, 200)
	graph.Add(img)
	graph.Add(shape)

	cb := New()
	require.NoError(t, cb.Copy(graph, []*scene.Object{img, shape}))

	var inFlight atomic.Bool
	renderer := element.NewMemoryRenderer(func(ctx context.Context, src string) error {
		inFlight.Store(true)
		time.Sleep(20 * time.Millisecond) // slow image load
		inFlight.Store(false)
		return nil
	})

	bc := &recordingBroadcaster{}
	_, err := cb.Paste(context.Background(), graph, renderer, bc)
	require.NoError(t, err)

	assert.False(t, inFlight.Load(), "broadcast must wait for the image load")
	require.Len(t, bc.upserts, 1)
	assert.Len(t, bc.upserts[0], 2)
}
