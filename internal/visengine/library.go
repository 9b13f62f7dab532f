// Package visengine is a cell and portal visibility library. A Camera
// walks the cells reachable from its own, culls objects against the view
// frustum and occlusion tests, and reports everything it decides as a
// stream of events to a Commander.
package visengine

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-vis/internal/occlusion"
	"github.com/Faultbox/midgard-vis/pkg/geom"
)

// NodeID names an object or portal. Hosts map it back to their own items.
type NodeID uint32

// Mode selects how occlusion tests are answered.
type Mode uint8

const (
	ModeHardware Mode = iota
	ModeSoftware
)

func (m Mode) String() string {
	if m == ModeSoftware {
		return "software"
	}
	return "hardware"
}

// Properties control what a camera does during ResolveVisibility.
type Properties uint32

const (
	ViewFrustumCulling Properties = 1 << iota
	OcclusionCulling
	// DepthPass draws every candidate depth-only before the colour pass.
	DepthPass
	// LatentQueries read test results one frame late instead of stalling.
	LatentQueries
)

// LineFlags select debug line output.
type LineFlags uint32

const (
	LineTestModels LineFlags = 1 << iota
	LineWriteModels
	LineObjectBounds
	LineVoxels
	LineSilhouettes
	LineQueries
)

// Statistic names. Values accumulate until ResetStatistics.
const (
	StatCells          = "cells"
	StatPortals        = "portals"
	StatObjects        = "objects"
	StatFrustumCulled  = "frustumCulled"
	StatOccluders      = "occluders"
	StatQueriesIssued  = "queriesIssued"
	StatQueriesCulled  = "queriesCulled"
	StatQueriesPending = "queriesPending"
	StatVisible        = "visible"
	StatMirrors        = "mirrors"
	StatStencilMasks   = "stencilMasks"
)

var statOrder = []string{
	StatCells, StatPortals, StatObjects, StatFrustumCulled, StatOccluders,
	StatQueriesIssued, StatQueriesCulled, StatQueriesPending, StatVisible,
	StatMirrors, StatStencilMasks,
}

// Statistic is one named counter.
type Statistic struct {
	Name  string
	Value float32
}

// PortalKind says how a portal is crossed.
type PortalKind uint8

const (
	PortalPlain PortalKind = iota
	// PortalStencil clips the cell behind it with a stencil mask.
	PortalStencil
	// PortalMirror shows a reflected view of its own cell.
	PortalMirror
)

// Cell is a convex region, usually one chunk.
type Cell struct {
	Name    string
	Bounds  geom.AABB
	objects []*Object
	portals []*Portal
}

// Objects returns the objects in the cell.
func (c *Cell) Objects() []*Object { return c.objects }

// Object is a cullable item.
type Object struct {
	Node NodeID
	// Bounds is in world space.
	Bounds geom.AABB
	// Transform maps object space to world space.
	Transform mgl32.Mat4
	// Occluder objects are drawn in the depth pass and never tested.
	Occluder bool

	cell    *Cell
	slot    int
	noQuery bool
	// latent is the query issued last frame whose result is still unread.
	latent *occlusion.Query
	// tested is the resolve in which the object was last occlusion tested.
	tested uint64
}

// Portal joins two cells, or reflects one cell for a mirror.
type Portal struct {
	Kind PortalKind
	// Node names the portal's stencil model for hosts.
	Node NodeID
	// Polygon is the portal outline in world space.
	Polygon   []mgl32.Vec3
	Transform mgl32.Mat4

	a, b   *Cell
	bounds geom.AABB
	plane  geom.Plane
}

// Plane returns the portal plane, facing the side its first cell is on.
func (p *Portal) Plane() geom.Plane { return p.plane }

// other returns the cell on the far side from c, or nil for mirrors.
func (p *Portal) other(c *Cell) *Cell {
	switch c {
	case p.a:
		return p.b
	case p.b:
		return p.a
	}
	return nil
}

// Library owns cells, objects and query slots.
type Library struct {
	mode     Mode
	svc      Services
	cells    []*Cell
	objects  map[NodeID]*Object
	slots    []*Object
	free     []int
	stats    map[string]float32
	querying bool
	resolves uint64
}

// New creates a library. svc must not be nil.
func New(mode Mode, svc Services) *Library {
	if svc == nil {
		panic("visengine: nil services")
	}
	return &Library{
		mode:    mode,
		svc:     svc,
		objects: make(map[NodeID]*Object),
		stats:   make(map[string]float32),
	}
}

// Mode returns the occlusion mode.
func (l *Library) Mode() Mode { return l.mode }

// SetMode switches occlusion mode. Every query slot is released so the
// next tests allocate from the new backend.
func (l *Library) SetMode(m Mode) {
	l.mustBeIdle("SetMode")
	if m == l.mode {
		return
	}
	l.releaseSlots()
	l.mode = m
}

// NewCell adds a cell.
func (l *Library) NewCell(name string, bounds geom.AABB) *Cell {
	c := &Cell{Name: name, Bounds: bounds}
	l.cells = append(l.cells, c)
	return c
}

// NewObject adds an object to cell. Node must be unique.
func (l *Library) NewObject(cell *Cell, node NodeID, bounds geom.AABB, transform mgl32.Mat4, occluder bool) *Object {
	if _, dup := l.objects[node]; dup {
		l.svc.Error(fmt.Sprintf("duplicate object node %d", node))
		return nil
	}
	o := &Object{
		Node:      node,
		Bounds:    bounds,
		Transform: transform,
		Occluder:  occluder,
		cell:      cell,
		slot:      -1,
	}
	cell.objects = append(cell.objects, o)
	l.objects[node] = o
	return o
}

// RemoveObject deletes an object and frees its query slot.
func (l *Library) RemoveObject(node NodeID) {
	l.mustBeIdle("RemoveObject")
	o, ok := l.objects[node]
	if !ok {
		return
	}
	l.releaseSlot(o)
	delete(l.objects, node)
	objs := o.cell.objects
	for i, x := range objs {
		if x == o {
			o.cell.objects = append(objs[:i], objs[i+1:]...)
			break
		}
	}
}

// Object looks up a node.
func (l *Library) Object(node NodeID) *Object { return l.objects[node] }

// Connect joins a and b through polygon. For mirrors b must be nil.
func (l *Library) Connect(a, b *Cell, kind PortalKind, node NodeID, polygon []mgl32.Vec3) (*Portal, error) {
	if len(polygon) < 3 {
		return nil, fmt.Errorf("portal needs at least 3 vertices, got %d", len(polygon))
	}
	if (kind == PortalMirror) != (b == nil) {
		return nil, fmt.Errorf("portal kind %d from %q: mirrors need no far cell, others need one", kind, a.Name)
	}
	p := &Portal{
		Kind:      kind,
		Node:      node,
		Polygon:   polygon,
		Transform: mgl32.Ident4(),
		a:         a,
		b:         b,
		bounds:    geom.EmptyAABB(),
	}
	for _, v := range polygon {
		p.bounds = p.bounds.Extend(v)
	}
	p.plane = geom.PlaneFromPoints(polygon[0], polygon[1], polygon[2])
	if p.plane.Distance(a.Bounds.Center()) < 0 {
		p.plane = p.plane.Flip()
	}
	a.portals = append(a.portals, p)
	if b != nil {
		b.portals = append(b.portals, p)
	}
	return p, nil
}

// CellAt returns the smallest cell containing pos, or nil.
func (l *Library) CellAt(pos mgl32.Vec3) *Cell {
	var best *Cell
	var bestVol float32
	for _, c := range l.cells {
		if !c.Bounds.Contains(pos) {
			continue
		}
		e := c.Bounds.Extents()
		vol := e[0] * e[1] * e[2]
		if best == nil || vol < bestVol {
			best, bestVol = c, vol
		}
	}
	return best
}

// Statistics returns every counter in a fixed order.
func (l *Library) Statistics() []Statistic {
	out := make([]Statistic, 0, len(statOrder))
	for _, name := range statOrder {
		out = append(out, Statistic{Name: name, Value: l.stats[name]})
	}
	return out
}

// Statistic returns one counter by name.
func (l *Library) Statistic(name string) (float32, bool) {
	for _, n := range statOrder {
		if n == name {
			return l.stats[name], true
		}
	}
	return 0, false
}

// ResetStatistics zeroes every counter.
func (l *Library) ResetStatistics() {
	for k := range l.stats {
		delete(l.stats, k)
	}
}

func (l *Library) count(name string, n int) {
	l.stats[name] += float32(n)
}

// MinimizeMemoryUsage drops query slots and trims internal storage.
func (l *Library) MinimizeMemoryUsage() {
	l.mustBeIdle("MinimizeMemoryUsage")
	l.releaseSlots()
	l.slots = nil
	l.free = nil
	for _, c := range l.cells {
		c.objects = append([]*Object(nil), c.objects...)
	}
}

// Close releases every query slot.
func (l *Library) Close() {
	l.mustBeIdle("Close")
	l.releaseSlots()
}

// SlotsInUse returns the number of allocated query slots.
func (l *Library) SlotsInUse() int {
	n := 0
	for _, o := range l.slots {
		if o != nil {
			n++
		}
	}
	return n
}

func (l *Library) mustBeIdle(op string) {
	if l.querying {
		panic("visengine: " + op + " during ResolveVisibility")
	}
}

// allocSlot gives o a query slot. Failure marks o as never tested.
func (l *Library) allocSlot(o *Object) bool {
	if o.slot >= 0 {
		return true
	}
	if o.noQuery {
		return false
	}
	var index int
	if n := len(l.free); n > 0 {
		sort.Ints(l.free)
		index, l.free = l.free[0], l.free[1:]
	} else {
		index = len(l.slots)
		l.slots = append(l.slots, nil)
	}
	if !l.svc.AllocateQueryObject(index) {
		l.free = append(l.free, index)
		o.noQuery = true
		return false
	}
	l.slots[index] = o
	o.slot = index
	return true
}

func (l *Library) releaseSlot(o *Object) {
	if o.slot < 0 {
		return
	}
	l.svc.ReleaseQueryObject(o.slot)
	l.slots[o.slot] = nil
	l.free = append(l.free, o.slot)
	o.slot = -1
	o.latent = nil
}

func (l *Library) releaseSlots() {
	for _, o := range l.objects {
		l.releaseSlot(o)
		o.noQuery = false
	}
}
