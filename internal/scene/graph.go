package scene

import (
	"sort"
	"sync"
)

// Graph is the live scene graph for one board. Paint order follows ZIndex
// ascending. The local edit path and the remote reconciliation path are the
// only writers; both go through the same mutex because message arrival order
// is not under our control.
type Graph struct {
	mu      sync.Mutex
	objects []*Object
	nextZ   int

	activeGroup  *Object
	groupMembers []*Object

	repaints int
	onChange func()
}

// NewGraph creates an empty scene graph.
func NewGraph() *Graph {
	return &Graph{}
}

// OnChange registers a callback fired after every structural change
// (add/remove/reorder/repaint). Used to trigger canvas geometry recomputation.
// The callback runs after the graph mutex is released, so it may read the
// graph freely.
func (g *Graph) OnChange(fn func()) {
	g.mu.Lock()
	g.onChange = fn
	g.mu.Unlock()
}

// Add inserts the object on top of the paint order.
func (g *Graph) Add(obj *Object) {
	g.mu.Lock()
	g.nextZ++
	obj.ZIndex = g.nextZ
	g.objects = append(g.objects, obj)
	fn := g.onChange
	g.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Find returns the object with the given uuid, or nil.
func (g *Graph) Find(uuid string) *Object {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.find(uuid)
}

func (g *Graph) find(uuid string) *Object {
	for _, o := range g.objects {
		if o.UUID == uuid {
			return o
		}
	}
	return nil
}

// Remove deletes the object with the given uuid. Removing an absent uuid is a
// no-op and reports false.
func (g *Graph) Remove(uuid string) bool {
	g.mu.Lock()
	removed := false
	var fn func()
	for i, o := range g.objects {
		if o.UUID == uuid {
			g.objects = append(g.objects[:i], g.objects[i+1:]...)
			removed = true
			fn = g.onChange
			break
		}
	}
	g.mu.Unlock()

	if fn != nil {
		fn()
	}
	return removed
}

// Objects returns the objects in paint order.
func (g *Graph) Objects() []*Object {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*Object, len(g.objects))
	copy(out, g.objects)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	return out
}

// Len returns the number of objects in the graph.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.objects)
}

// SetZIndex assigns an explicit paint position, as carried on the wire. The
// front counter follows the highest z ever observed, so a later BringToFront
// still lands above elements whose z-index arrived from a peer.
func (g *Graph) SetZIndex(uuid string, z int) {
	g.mu.Lock()
	obj := g.find(uuid)
	if obj == nil {
		g.mu.Unlock()
		return
	}
	obj.ZIndex = z
	if z > g.nextZ {
		g.nextZ = z
	}
	fn := g.onChange
	g.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// BringToFront moves the object to the top of the paint order.
func (g *Graph) BringToFront(uuid string) {
	g.mu.Lock()
	obj := g.find(uuid)
	if obj == nil {
		g.mu.Unlock()
		return
	}
	g.nextZ++
	obj.ZIndex = g.nextZ
	fn := g.onChange
	g.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// SendToBack moves the object below every other object.
func (g *Graph) SendToBack(uuid string) {
	g.mu.Lock()
	obj := g.find(uuid)
	if obj == nil {
		g.mu.Unlock()
		return
	}
	min := 0
	for _, o := range g.objects {
		if o.ZIndex < min {
			min = o.ZIndex
		}
	}
	obj.ZIndex = min - 1
	fn := g.onChange
	g.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// SetActiveGroup installs the synthetic multi-select wrapper and its members.
func (g *Graph) SetActiveGroup(group *Object, members []*Object) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.activeGroup = group
	g.groupMembers = members
}

// ActiveGroup returns the current multi-select wrapper and members, or nil.
func (g *Graph) ActiveGroup() (*Object, []*Object) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.activeGroup, g.groupMembers
}

// ActiveGroupContains reports whether the uuid belongs to the live selection.
func (g *Graph) ActiveGroupContains(uuid string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, m := range g.groupMembers {
		if m.UUID == uuid {
			return true
		}
	}
	return false
}

// DiscardActiveGroup drops the multi-select wrapper. The drawing engine does
// not always clean up synthetic group objects, so the wrapper is discarded
// explicitly rather than removed like a normal element.
func (g *Graph) DiscardActiveGroup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.activeGroup = nil
	g.groupMembers = nil
}

// ForceRepaint requests a repaint without a structural change.
func (g *Graph) ForceRepaint() {
	g.mu.Lock()
	g.repaints++
	fn := g.onChange
	g.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Repaints returns how many explicit repaints were requested.
func (g *Graph) Repaints() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.repaints
}
