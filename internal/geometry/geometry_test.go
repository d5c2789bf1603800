package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"whiteboard-backend/internal/scene"
)

func addRect(t *testing.T, g *scene.Graph, uuid string, left, top, w, h float64) *scene.Object {
	t.Helper()
	obj := &scene.Object{
		UUID:   uuid,
		Kind:   "rectangle",
		Left:   left,
		Top:    top,
		Width:  w,
		Height: h,
		ScaleX: 1,
		ScaleY: 1,
	}
	g.Add(obj)
	return obj
}

func TestComputeDimensions_EmptyBoard(t *testing.T) {
	g := scene.NewGraph()
	vp := Viewport{Width: 960, Height: 540}

	d := ComputeDimensions(vp, g, false)

	assert.InDelta(t, 960.0/BaseWidth, d.Zoom, 1e-9)
	assert.Equal(t, vp.Width, d.Width)
	assert.Equal(t, vp.Height, d.Height)
	assert.False(t, d.Scrollable)
}

func TestComputeDimensions_FitToScreen(t *testing.T) {
	g := scene.NewGraph()
	// Content extents 1600x600: a rectangle centered at (800, 300).
	addRect(t, g, "a", 800, 300, 1600, 600)
	vp := Viewport{Width: 800, Height: 600}

	d := ComputeDimensions(vp, g, true)

	assert.InDelta(t, 0.5, d.Zoom, 1e-9)
	assert.Equal(t, 800.0, d.Width)
	assert.Equal(t, 600.0, d.Height)
	assert.False(t, d.Scrollable)
}

func TestComputeDimensions_ScrollableAddsPadding(t *testing.T) {
	g := scene.NewGraph()
	// Right edge at 2000, below the canvas ceiling.
	addRect(t, g, "a", 1500, 200, 1000, 100)
	vp := Viewport{Width: 1280, Height: 720}

	d := ComputeDimensions(vp, g, false)

	assert.True(t, d.Scrollable)
	// Horizontal overflow: width = extent + padding - 1.
	assert.InDelta(t, 2000+ScrollPadding-1, d.Width, 1e-9)
	// No vertical overflow: height floors at the viewport.
	assert.Equal(t, 720.0, d.Height)
	assert.InDelta(t, 1280.0/BaseWidth, d.Zoom, 1e-9)
}

func TestComputeDimensions_CanvasCeilingShrinksZoom(t *testing.T) {
	g := scene.NewGraph()
	// Right edge at 8000, double the ceiling.
	addRect(t, g, "a", 4000, 100, 8000, 100)
	vp := Viewport{Width: 1280, Height: 720}

	d := ComputeDimensions(vp, g, false)

	base := 1280.0 / BaseWidth
	assert.InDelta(t, base*MaxCanvasDimension/8000, d.Zoom, 1e-9)
	assert.True(t, d.Scrollable)
	// Canvas pixel size shrinks with the zoom instead of growing unbounded.
	assert.InDelta(t, (8000+ScrollPadding)*d.Zoom, d.Width, 1e-9)
}

func TestComputeDimensions_DegenerateViewport(t *testing.T) {
	g := scene.NewGraph()
	d := ComputeDimensions(Viewport{Width: 0, Height: 0}, g, false)

	assert.Greater(t, d.Zoom, 0.0)
}

func TestClampWithinCanvas_NegativeEdges(t *testing.T) {
	obj := &scene.Object{
		Kind:   "rectangle",
		Left:   10,
		Top:    -30,
		Width:  100,
		Height: 100,
		ScaleX: 1,
		ScaleY: 1,
	}

	ClampWithinCanvas(obj, 1)

	r := obj.BoundingRect()
	assert.GreaterOrEqual(t, r.Left, 0.0)
	assert.GreaterOrEqual(t, r.Top, 0.0)
}

func TestClampWithinCanvas_ExactAtAnyZoom(t *testing.T) {
	// Bounding left/top start at -50; after the clamp they sit exactly on
	// the edge whether the board is zoomed out or in.
	for _, zoom := range []float64{0.5, 1, 2} {
		obj := &scene.Object{
			Kind:   "rectangle",
			Left:   0,
			Top:    0,
			Width:  100,
			Height: 100,
			ScaleX: 1,
			ScaleY: 1,
		}
		ClampWithinCanvas(obj, zoom)

		r := obj.BoundingRect()
		assert.InDelta(t, 0.0, r.Left, 1e-9, "zoom %v", zoom)
		assert.InDelta(t, 0.0, r.Top, 1e-9, "zoom %v", zoom)
		assert.InDelta(t, 50.0, obj.Left, 1e-9, "zoom %v", zoom)
	}
}

func TestClampWithinCanvas_RightBottomNeverClamp(t *testing.T) {
	obj := &scene.Object{
		Kind:   "rectangle",
		Left:   5000,
		Top:    5000,
		Width:  100,
		Height: 100,
		ScaleX: 1,
		ScaleY: 1,
	}
	ClampWithinCanvas(obj, 1)

	assert.Equal(t, 5000.0, obj.Left)
	assert.Equal(t, 5000.0, obj.Top)
}

func TestGroupGlobalPosition_NoRotation(t *testing.T) {
	group := &scene.Object{Left: 100, Top: 100, ScaleX: 1, ScaleY: 1, Angle: 0}

	gx, gy := GroupGlobalPosition(group, 10, 10)

	assert.InDelta(t, 110.0, gx, 1e-9)
	assert.InDelta(t, 110.0, gy, 1e-9)
}

func TestGroupGlobalPosition_Rotated90(t *testing.T) {
	group := &scene.Object{Left: 100, Top: 100, ScaleX: 1, ScaleY: 1, Angle: 90}

	gx, gy := GroupGlobalPosition(group, 10, 10)

	assert.InDelta(t, 90.0, gx, 1e-9)
	assert.InDelta(t, 110.0, gy, 1e-9)
}

func TestGroupGlobalPosition_ZeroScaleFallsBackToOne(t *testing.T) {
	group := &scene.Object{Left: 100, Top: 100, ScaleX: 0, ScaleY: 0, Angle: 0}

	gx, gy := GroupGlobalPosition(group, 10, 10)

	assert.InDelta(t, 110.0, gx, 1e-9)
	assert.InDelta(t, 110.0, gy, 1e-9)
}

func TestApplyGroupTransform_ComposesScaleAndAngle(t *testing.T) {
	group := &scene.Object{Left: 200, Top: 200, ScaleX: 2, ScaleY: 2, Angle: 0}
	member := &scene.Object{Left: 10, Top: 5, ScaleX: 1, ScaleY: 1, Angle: 15}

	ApplyGroupTransform(group, member)

	assert.InDelta(t, 220.0, member.Left, 1e-9)
	assert.InDelta(t, 210.0, member.Top, 1e-9)
	assert.InDelta(t, 15.0, member.Angle, 1e-9)
	assert.InDelta(t, 2.0, member.ScaleX, 1e-9)
	assert.InDelta(t, 2.0, member.ScaleY, 1e-9)
}

func TestContentExtents_GroupedMemberUsesGlobalPosition(t *testing.T) {
	g := scene.NewGraph()
	group := &scene.Object{UUID: "grp", Kind: "multi-select-group", Left: 2000, Top: 300, ScaleX: 1, ScaleY: 1, IsHelper: true}
	member := addRect(t, g, "m", 10, 10, 100, 100)
	g.SetActiveGroup(group, []*scene.Object{member})

	vp := Viewport{Width: 1280, Height: 720}
	d := ComputeDimensions(vp, g, false)

	// Member's global center is near (2010, 310), so the board scrolls
	// horizontally even though its local Left is 10.
	assert.True(t, d.Scrollable)
	assert.Greater(t, d.Width, 1280.0)
}
