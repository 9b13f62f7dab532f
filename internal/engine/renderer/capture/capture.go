// Package capture provides a renderer.Device that records every call
// instead of rasterising. It backs the headless tool and package tests,
// and simulates occlusion queries with configurable latency.
package capture

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-vis/internal/engine/lighting"
	"github.com/Faultbox/midgard-vis/internal/engine/renderer"
)

// Op names a recorded device call.
type Op string

const (
	OpPush         Op = "Push"
	OpPop          Op = "Pop"
	OpPushState    Op = "PushState"
	OpPopState     Op = "PopState"
	OpSet          Op = "Set"
	OpClipPlane    Op = "SetClipPlane"
	OpDraw         Op = "DrawIndexed"
	OpLines        Op = "DrawLines"
	OpScreenLines  Op = "DrawScreenLines"
	OpBeginQuery   Op = "BeginQuery"
	OpEndQuery     Op = "EndQuery"
	OpQueryResult  Op = "QueryResult"
	OpCreateQuery  Op = "CreateOcclusionQuery"
	OpDestroyQuery Op = "DestroyOcclusionQuery"
)

// Call is one recorded device call with the state in effect after it.
type Call struct {
	Op       Op
	Name     string // setter name for OpSet
	Field    renderer.Field
	State    renderer.State
	Vertices []mgl32.Vec3
	Indices  []uint16
	Plane    mgl32.Vec4
	Query    renderer.QueryID
}

// PixelFunc returns the samples a draw contributes to an active query.
type PixelFunc func(c Call) int

type simQuery struct {
	pixels  int
	polls   int
	pending bool
}

// Device records calls. The zero value is not usable; use New.
type Device struct {
	// Latency is the number of non-waiting polls before a result is ready.
	Latency int
	// Pixels scores draws issued inside a query. Nil counts 64 per draw.
	Pixels PixelFunc
	// FailQueryCreation makes CreateOcclusionQuery report failure.
	FailQueryCreation bool
	// MaxQueries caps live query objects when positive.
	MaxQueries int

	caps    renderer.Caps
	cache   *renderer.StateCache
	calls   []Call
	queries map[renderer.QueryID]*simQuery
	nextID  renderer.QueryID
	active  renderer.QueryID
}

// New returns a capture device reporting caps.
func New(caps renderer.Caps) *Device {
	return &Device{
		caps:    caps,
		cache:   renderer.NewStateCache(),
		queries: make(map[renderer.QueryID]*simQuery),
	}
}

// HardwareCaps are the caps of a shader-model-4 GPU with two clip planes.
func HardwareCaps() renderer.Caps {
	return renderer.Caps{
		Name:              "capture",
		MaxUserClipPlanes: 2,
		ShaderModel:       4,
		OcclusionQueries:  true,
	}
}

// Calls returns the recorded calls.
func (d *Device) Calls() []Call { return d.calls }

// Reset forgets recorded calls but keeps state and live queries.
func (d *Device) Reset() { d.calls = d.calls[:0] }

// Draws returns only DrawIndexed calls.
func (d *Device) Draws() []Call { return d.filter(OpDraw) }

// Lines returns world and screen line calls.
func (d *Device) Lines() []Call {
	return append(d.filter(OpLines), d.filter(OpScreenLines)...)
}

// Count returns how many calls of op were recorded.
func (d *Device) Count(op Op) int { return len(d.filter(op)) }

// Balance reports outstanding full and single-field pushes.
func (d *Device) Balance() (frames, fields int) { return d.cache.Depth() }

// LiveQueries returns the number of query objects not yet destroyed.
func (d *Device) LiveQueries() int { return len(d.queries) }

func (d *Device) filter(op Op) []Call {
	var out []Call
	for _, c := range d.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (d *Device) record(c Call) {
	c.State = *d.cache.Current()
	d.calls = append(d.calls, c)
}

func (d *Device) set(name string) { d.record(Call{Op: OpSet, Name: name}) }

func (d *Device) Caps() renderer.Caps   { return d.caps }
func (d *Device) State() renderer.State { return *d.cache.Current() }

func (d *Device) Push() {
	d.cache.Push()
	d.record(Call{Op: OpPush})
}

func (d *Device) Pop() {
	d.cache.Pop()
	d.record(Call{Op: OpPop})
}

func (d *Device) PushState(f renderer.Field) {
	d.cache.PushField(f)
	d.record(Call{Op: OpPushState, Field: f})
}

func (d *Device) PopState() {
	f := d.cache.PopField()
	d.record(Call{Op: OpPopState, Field: f})
}

func (d *Device) SetFillMode(m renderer.FillMode) {
	d.cache.Current().Fill = m
	d.set("FillMode")
}

func (d *Device) SetCullMode(m renderer.CullMode) {
	d.cache.Current().Cull = m
	d.set("CullMode")
}

func (d *Device) SetDepthTest(enable bool) {
	d.cache.Current().DepthTest = enable
	d.set("DepthTest")
}

func (d *Device) SetDepthWrite(enable bool) {
	d.cache.Current().DepthWrite = enable
	d.set("DepthWrite")
}

func (d *Device) SetDepthFunc(fn renderer.CompareFunc) {
	d.cache.Current().DepthFunc = fn
	d.set("DepthFunc")
}

func (d *Device) SetAlphaTest(enable bool) {
	d.cache.Current().AlphaTest = enable
	d.set("AlphaTest")
}

func (d *Device) SetColorWrite(mask renderer.ColorMask) {
	d.cache.Current().ColorWrite = mask
	d.set("ColorWrite")
}

func (d *Device) SetClipPlanes(mask uint32) {
	d.cache.Current().ClipPlanes = mask
	d.set("ClipPlanes")
}

func (d *Device) SetClipPlane(index int, plane mgl32.Vec4) {
	d.record(Call{Op: OpClipPlane, Plane: plane, Query: renderer.QueryID(index)})
}

func (d *Device) SetStencilEnable(enable bool) {
	d.cache.Current().Stencil.Enable = enable
	d.set("StencilEnable")
}

func (d *Device) SetStencilFunc(fn renderer.CompareFunc, ref int, mask uint32) {
	s := &d.cache.Current().Stencil
	s.Func, s.Ref, s.Mask = fn, ref, mask
	d.set("StencilFunc")
}

func (d *Device) SetStencilOps(fail, zfail, pass renderer.StencilOp) {
	s := &d.cache.Current().Stencil
	s.Fail, s.ZFail, s.Pass = fail, zfail, pass
	d.set("StencilOps")
}

func (d *Device) SetDepthRange(near, far float32) {
	d.cache.Current().DepthRange = [2]float32{near, far}
	d.set("DepthRange")
}

func (d *Device) SetDepthOnly(enable bool) {
	d.cache.Current().DepthOnly = enable
	d.set("DepthOnly")
}

func (d *Device) SetMirrored(mirrored bool) {
	d.cache.Current().Mirrored = mirrored
	d.set("Mirrored")
}

func (d *Device) SetMaterial(m renderer.Material) {
	d.cache.Current().Material = m
	d.set("Material")
}

func (d *Device) SetLights(lights, specular *lighting.Container) {
	s := d.cache.Current()
	s.Lights, s.SpecularLights = lights, specular
	d.set("Lights")
}

func (d *Device) SetWorld(m mgl32.Mat4) {
	d.cache.Current().World = m
	d.set("World")
}

func (d *Device) SetView(m mgl32.Mat4) {
	d.cache.Current().View = m
	d.set("View")
}

func (d *Device) SetProjection(m mgl32.Mat4) {
	d.cache.Current().Projection = m
	d.set("Projection")
}

func (d *Device) DrawIndexed(vertices []mgl32.Vec3, indices []uint16) {
	c := Call{Op: OpDraw, Vertices: vertices, Indices: indices, Query: d.active}
	d.record(c)
	if q := d.queries[d.active]; q != nil && d.active != 0 {
		q.pixels += d.score(d.calls[len(d.calls)-1])
	}
}

func (d *Device) score(c Call) int {
	if d.Pixels == nil {
		return 64
	}
	return d.Pixels(c)
}

func (d *Device) DrawLines(vertices []mgl32.Vec3, colour mgl32.Vec4) {
	d.record(Call{Op: OpLines, Vertices: vertices})
}

func (d *Device) DrawScreenLines(vertices []mgl32.Vec2, colour mgl32.Vec4) {
	flat := make([]mgl32.Vec3, len(vertices))
	for i, v := range vertices {
		flat[i] = v.Vec3(0)
	}
	d.record(Call{Op: OpScreenLines, Vertices: flat})
}

func (d *Device) CreateOcclusionQuery() (renderer.QueryID, bool) {
	if d.FailQueryCreation || !d.caps.OcclusionQueries {
		return 0, false
	}
	if d.MaxQueries > 0 && len(d.queries) >= d.MaxQueries {
		return 0, false
	}
	d.nextID++
	d.queries[d.nextID] = &simQuery{}
	d.record(Call{Op: OpCreateQuery, Query: d.nextID})
	return d.nextID, true
}

func (d *Device) DestroyOcclusionQuery(id renderer.QueryID) {
	if _, ok := d.queries[id]; !ok {
		return
	}
	delete(d.queries, id)
	d.record(Call{Op: OpDestroyQuery, Query: id})
}

func (d *Device) BeginQuery(id renderer.QueryID) {
	q, ok := d.queries[id]
	if !ok {
		panic("capture: BeginQuery on unknown query")
	}
	if d.active != 0 {
		panic("capture: nested BeginQuery")
	}
	*q = simQuery{pending: true}
	d.active = id
	d.record(Call{Op: OpBeginQuery, Query: id})
}

func (d *Device) EndQuery(id renderer.QueryID) {
	if d.active != id {
		panic("capture: EndQuery does not match BeginQuery")
	}
	d.active = 0
	d.record(Call{Op: OpEndQuery, Query: id})
}

func (d *Device) QueryResult(id renderer.QueryID, wait bool) (bool, int) {
	d.record(Call{Op: OpQueryResult, Query: id})
	q, ok := d.queries[id]
	if !ok {
		return false, 0
	}
	if !wait && q.pending && q.polls < d.Latency {
		q.polls++
		return false, 0
	}
	q.pending = false
	return true, q.pixels
}

var _ renderer.Device = (*Device)(nil)
