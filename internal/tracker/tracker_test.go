package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiteboard-backend/internal/protocol"
	"whiteboard-backend/internal/scene"
)

// recordingBroadcaster captures outbound deltas.
type recordingBroadcaster struct {
	upserts [][]protocol.ElementEntry
	deletes [][]string
	orders  []protocol.OrderPayload
}

func (r *recordingBroadcaster) BroadcastUpsert(entries []protocol.ElementEntry) error {
	r.upserts = append(r.upserts, entries)
	return nil
}

func (r *recordingBroadcaster) BroadcastDelete(uuids []string) error {
	r.deletes = append(r.deletes, uuids)
	return nil
}

func (r *recordingBroadcaster) BroadcastOrder(direction protocol.OrderDirection, uuids []string) error {
	r.orders = append(r.orders, protocol.OrderPayload{Direction: direction, UUIDs: uuids})
	return nil
}

func newRect(uuid string, left, top float64) *scene.Object {
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

func TestObjectAdded_MintsUUIDAndBroadcasts(t *testing.T) {
	graph := scene.NewGraph()
	bc := &recordingBroadcaster{}
	trk := New(graph, bc)

	obj := newRect("", 200, 200)
	graph.Add(obj)
	require.NoError(t, trk.ObjectAdded(obj))

	assert.NotEmpty(t, obj.UUID)
	require.Len(t, bc.upserts, 1)
	require.Len(t, bc.upserts[0], 1)
	assert.Equal(t, obj.UUID, bc.upserts[0][0].UUID)
}

func TestObjectAdded_SkipsHelpersAndEmptyContent(t *testing.T) {
	graph := scene.NewGraph()
	bc := &recordingBroadcaster{}
	trk := New(graph, bc)

	helper := newRect("", 0, 0)
	helper.IsHelper = true
	require.NoError(t, trk.ObjectAdded(helper))

	emptyText := &scene.Object{Kind: "text", ScaleX: 1, ScaleY: 1}
	require.NoError(t, trk.ObjectAdded(emptyText))

	emptyPath := &scene.Object{Kind: "draw-path", ScaleX: 1, ScaleY: 1}
	require.NoError(t, trk.ObjectAdded(emptyPath))

	assert.Empty(t, bc.upserts)
}

func TestObjectAdded_RemoteOriginSuppressed(t *testing.T) {
	graph := scene.NewGraph()
	bc := &recordingBroadcaster{}
	trk := New(graph, bc)

	trk.MarkRemoteOrigin("remote-1")

	obj := newRect("remote-1", 100, 100)
	graph.Add(obj)
	require.NoError(t, trk.ObjectAdded(obj))
	assert.Empty(t, bc.upserts, "remote insert must not echo back out")

	// The suppression is one-shot: a genuine local re-add broadcasts.
	require.NoError(t, trk.ObjectAdded(obj))
	assert.Len(t, bc.upserts, 1)
}

func TestObjectAdded_DisabledTrackerIsSilent(t *testing.T) {
	graph := scene.NewGraph()
	bc := &recordingBroadcaster{}
	trk := New(graph, bc)
	trk.SetDisabled(true)

	obj := newRect("", 100, 100)
	graph.Add(obj)
	require.NoError(t, trk.ObjectAdded(obj))

	assert.Empty(t, obj.UUID)
	assert.Empty(t, bc.upserts)
}

func TestObjectsModified_ClampsAndBringsToFront(t *testing.T) {
	graph := scene.NewGraph()
	bc := &recordingBroadcaster{}
	trk := New(graph, bc)
	trk.SetZoom(1)

	a := newRect("a", 10, 10) // bounding rect pokes past the negative edge
	b := newRect("b", 500, 500)
	graph.Add(a)
	graph.Add(b)

	require.NoError(t, trk.ObjectsModified([]*scene.Object{a}))

	r := a.BoundingRect()
	assert.GreaterOrEqual(t, r.Left, 0.0)
	assert.GreaterOrEqual(t, r.Top, 0.0)

	// Modification brings the element above b.
	assert.Greater(t, a.ZIndex, b.ZIndex)

	require.Len(t, bc.upserts, 1)
	assert.Equal(t, a.ZIndex, bc.upserts[0][0].Element.ZIndex)
}

func TestObjectsModified_TopsRemoteZIndex(t *testing.T) {
	graph := scene.NewGraph()
	bc := &recordingBroadcaster{}
	trk := New(graph, bc)

	a := newRect("a", 200, 200)
	remote := newRect("remote", 500, 500)
	graph.Add(a)
	graph.Add(remote)
	graph.SetZIndex("remote", 40) // as applied from an inbound upsert

	require.NoError(t, trk.ObjectsModified([]*scene.Object{a}))

	assert.Greater(t, a.ZIndex, 40, "modification fronts the element above remote z-indexes")
}

func TestObjectsModified_GroupMemberReportsGlobalCoordinates(t *testing.T) {
	graph := scene.NewGraph()
	bc := &recordingBroadcaster{}
	trk := New(graph, bc)

	member := newRect("m", 10, 10) // group-local position
	graph.Add(member)

	wrapper := &scene.Object{Kind: "multi-select-group", Left: 100, Top: 100, ScaleX: 1, ScaleY: 1, IsHelper: true}
	graph.SetActiveGroup(wrapper, []*scene.Object{member})

	require.NoError(t, trk.ObjectsModified([]*scene.Object{member}))

	require.Len(t, bc.upserts, 1)
	wire := bc.upserts[0][0].Element
	assert.InDelta(t, 110.0, wire.Left, 1e-9)
	assert.InDelta(t, 110.0, wire.Top, 1e-9)

	// The member itself keeps its group-local position.
	assert.Equal(t, 10.0, member.Left)
}

func TestObjectsRemoved_GroupWrapperRemovesMembers(t *testing.T) {
	graph := scene.NewGraph()
	bc := &recordingBroadcaster{}
	trk := New(graph, bc)

	m1 := newRect("m1", 10, 10)
	m2 := newRect("m2", 20, 20)
	graph.Add(m1)
	graph.Add(m2)

	wrapper := &scene.Object{Kind: "multi-select-group", IsHelper: true}
	graph.SetActiveGroup(wrapper, []*scene.Object{m1, m2})

	require.NoError(t, trk.ObjectsRemoved([]*scene.Object{wrapper}))

	assert.Equal(t, 0, graph.Len())
	group, _ := graph.ActiveGroup()
	assert.Nil(t, group)

	require.Len(t, bc.deletes, 1)
	assert.ElementsMatch(t, []string{"m1", "m2"}, bc.deletes[0])
}

func TestObjectsRemoved_SingleElement(t *testing.T) {
	graph := scene.NewGraph()
	bc := &recordingBroadcaster{}
	trk := New(graph, bc)

	obj := newRect("a", 10, 10)
	graph.Add(obj)

	require.NoError(t, trk.ObjectsRemoved([]*scene.Object{obj}))

	assert.Equal(t, 0, graph.Len())
	require.Len(t, bc.deletes, 1)
	assert.Equal(t, []string{"a"}, bc.deletes[0])
}

func TestReorder_AppliesLocallyAndBroadcasts(t *testing.T) {
	graph := scene.NewGraph()
	bc := &recordingBroadcaster{}
	trk := New(graph, bc)

	a := newRect("a", 10, 10)
	b := newRect("b", 20, 20)
	graph.Add(a)
	graph.Add(b)

	require.NoError(t, trk.Reorder(protocol.SendToBack, []*scene.Object{b}))

	objs := graph.Objects()
	assert.Equal(t, "b", objs[0].UUID)

	require.Len(t, bc.orders, 1)
	assert.Equal(t, protocol.SendToBack, bc.orders[0].Direction)
	assert.Equal(t, []string{"b"}, bc.orders[0].UUIDs)
}

func TestReorder_InvalidDirectionIgnored(t *testing.T) {
	graph := scene.NewGraph()
	bc := &recordingBroadcaster{}
	trk := New(graph, bc)

	a := newRect("a", 10, 10)
	graph.Add(a)

	require.NoError(t, trk.Reorder(protocol.OrderDirection("sideways"), []*scene.Object{a}))
	assert.Empty(t, bc.orders)
}

// Draw-a-rectangle flow: the helper shape being dragged out stays local; the
// final shape broadcasts exactly once with a fresh uuid.
func TestDrawRectangleFlow(t *testing.T) {
	graph := scene.NewGraph()
	bc := &recordingBroadcaster{}
	trk := New(graph, bc)

	helper := newRect("", 150, 150)
	helper.IsHelper = true
	graph.Add(helper)
	require.NoError(t, trk.ObjectAdded(helper))
	assert.Empty(t, bc.upserts)

	graph.Remove(helper.UUID)
	final := newRect("", 150, 150)
	graph.Add(final)
	require.NoError(t, trk.ObjectAdded(final))

	require.Len(t, bc.upserts, 1)
	assert.NotEmpty(t, final.UUID)
	assert.Equal(t, final.UUID, bc.upserts[0][0].UUID)
}
