package element

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiteboard-backend/internal/scene"
)

func TestParseKind(t *testing.T) {
	for _, valid := range []string{"draw-path", "rectangle", "ellipse", "text", "image", "multi-select-group"} {
		kind, err := ParseKind(valid)
		require.NoError(t, err)
		assert.Equal(t, Kind(valid), kind)
	}

	_, err := ParseKind("triangle")
	var unknownErr *UnknownKindError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "triangle", unknownErr.Kind)
}

func TestToWireForm_RejectsHelpers(t *testing.T) {
	obj := &scene.Object{UUID: "h", Kind: "rectangle", IsHelper: true}
	_, err := ToWireForm(obj)
	assert.Error(t, err)
}

func TestToWireForm_RejectsUnknownKind(t *testing.T) {
	obj := &scene.Object{UUID: "x", Kind: "sticker"}
	_, err := ToWireForm(obj)
	var unknownErr *UnknownKindError
	assert.ErrorAs(t, err, &unknownErr)
}

func TestToWireForm_CarriesAttributes(t *testing.T) {
	assetID := int64(7)
	obj := &scene.Object{
		UUID:    "u1",
		AssetID: &assetID,
		Kind:    "image",
		ZIndex:  3,
		Left:    10, Top: 20,
		ScaleX: 1.5, ScaleY: 0.5,
		Angle: 45,
		Width: 100, Height: 50,
		Src: "https://example.com/a.png",
	}

	wire, err := ToWireForm(obj)
	require.NoError(t, err)
	assert.Equal(t, "u1", wire.UUID)
	assert.Equal(t, &assetID, wire.AssetID)
	assert.Equal(t, KindImage, wire.Type)
	assert.Equal(t, 3, wire.ZIndex)
	assert.Equal(t, 45.0, wire.Angle)
	assert.Equal(t, "https://example.com/a.png", wire.Src)
}

func TestApplyMutable_ExcludesSrc(t *testing.T) {
	obj := &scene.Object{UUID: "u1", Kind: "image", Src: "old.png", Left: 0}
	ApplyMutable(obj, &WhiteboardElement{Type: KindImage, Src: "new.png", Left: 42})

	assert.Equal(t, 42.0, obj.Left)
	// Src swaps are deferred until the replacement image is loaded.
	assert.Equal(t, "old.png", obj.Src)
}

func TestFromWireForm_DispatchesByKind(t *testing.T) {
	r := NewMemoryRenderer(nil)
	ctx := context.Background()

	for _, k := range []Kind{KindDrawPath, KindRectangle, KindEllipse, KindGroup} {
		obj, err := FromWireForm(ctx, &WhiteboardElement{UUID: "a", Type: k}, r)
		require.NoError(t, err)
		assert.Equal(t, string(k), obj.Kind)
	}

	obj, err := FromWireForm(ctx, &WhiteboardElement{UUID: "t", Type: KindText, Text: "hi"}, r)
	require.NoError(t, err)
	assert.Equal(t, "hi", obj.Text)

	_, err = FromWireForm(ctx, &WhiteboardElement{UUID: "bad", Type: "triangle"}, r)
	assert.Error(t, err)
}

func TestFromWireForms_DropsMalformed(t *testing.T) {
	r := NewMemoryRenderer(nil)
	els := []*WhiteboardElement{
		{UUID: "ok", Type: KindRectangle},
		{UUID: "bad", Type: "hexagon"},
		{UUID: "ok2", Type: KindEllipse},
	}

	objs := FromWireForms(context.Background(), els, r)

	require.Len(t, objs, 2)
	assert.Equal(t, "ok", objs[0].UUID)
	assert.Equal(t, "ok2", objs[1].UUID)
}

func TestCreateImage_SrcAppliedAfterFetch(t *testing.T) {
	fetched := false
	r := NewMemoryRenderer(func(ctx context.Context, src string) error {
		fetched = true
		return nil
	})

	obj, err := r.CreateImage(context.Background(), &WhiteboardElement{
		UUID: "img", Type: KindImage, Src: "https://example.com/a.png",
	})
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Equal(t, "https://example.com/a.png", obj.Src)
}

func TestCreateImage_PlaceholderOnFetchFailure(t *testing.T) {
	r := NewMemoryRenderer(func(ctx context.Context, src string) error {
		return errors.New("network down")
	})

	obj, err := r.CreateImage(context.Background(), &WhiteboardElement{
		UUID: "img", Type: KindImage, Src: "https://example.com/a.png",
	})
	require.NoError(t, err)
	assert.Equal(t, PlaceholderSrc, obj.Src)
}

func TestFromWireForms_FailedImageDoesNotSinkBatch(t *testing.T) {
	r := NewMemoryRenderer(func(ctx context.Context, src string) error {
		return errors.New("timeout")
	})
	els := []*WhiteboardElement{
		{UUID: "img", Type: KindImage, Src: "https://example.com/a.png"},
		{UUID: "rect", Type: KindRectangle},
	}

	objs := FromWireForms(context.Background(), els, r)

	require.Len(t, objs, 2)
	assert.Equal(t, PlaceholderSrc, objs[0].Src)
}
