package visibility

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-vis/internal/engine/lighting"
	"github.com/Faultbox/midgard-vis/internal/engine/renderer"
	"github.com/Faultbox/midgard-vis/internal/occlusion"
	"github.com/Faultbox/midgard-vis/internal/visengine"
	"github.com/Faultbox/midgard-vis/internal/world"
	"github.com/Faultbox/midgard-vis/pkg/geom"
)

// clipPlaneIndex is the frustum plane a mirror view adds.
const clipPlaneIndex = 6

// Commander turns visibility events into device calls. It holds the
// state of one query at a time.
type Commander struct {
	a   *Adapter
	log *zap.Logger

	flags      Flags
	active     bool
	storedView mgl32.Mat4
	// viewerView is the view of the last ViewParametersChanged. Draws
	// resync to it whenever viewChanged is set.
	viewerView  mgl32.Mat4
	viewChanged bool
	colourPass  bool
	clipEnabled bool
	depth       depthTestState
	masker      stencilMasker

	cached     []world.DrawItem
	lastChunk  world.ChunkID
	ambientSun *lighting.Container
}

func newCommander(a *Adapter) *Commander {
	return &Commander{
		a:          a,
		log:        a.log.Named("commander"),
		storedView: mgl32.Ident4(),
		viewerView: mgl32.Ident4(),
		masker:     stencilMasker{portals: a.portals},
		lastChunk:  world.NoChunk,
		ambientSun: lighting.NewContainer(mgl32.Vec4{}),
	}
}

// Active reports whether a query is between QueryBegin and QueryEnd.
func (c *Commander) Active() bool { return c.active }

// Cached returns the items drawn visible by the last query.
func (c *Commander) Cached() int { return len(c.cached) }

// Command handles one event.
func (c *Commander) Command(e visengine.Event) {
	c.a.guard.check("Command")
	if _, begin := e.(visengine.QueryBegin); !begin && !c.active {
		panic(fmt.Sprintf("visibility: %s outside a query", e.Command()))
	}

	dev := c.a.dev
	switch ev := e.(type) {
	case visengine.QueryBegin:
		c.queryBegin(dev)
	case visengine.QueryEnd:
		c.queryEnd(dev)
	case visengine.FlushDepth:
		c.flush(dev)
	case visengine.InstanceDrawDepth:
		c.drawDepth(dev, ev.Instance)
	case visengine.InstanceVisible:
		c.drawVisible(dev, ev.Instance)
	case visengine.OcclusionQueryBegin:
		c.a.backend.Begin(ev.Query)
	case visengine.OcclusionQueryEnd:
		c.a.backend.End(ev.Query)
		dev.SetDepthOnly(false)
	case visengine.OcclusionQueryGetResult:
		avail, pixels := c.a.backend.Result(ev.Query, ev.Query.WaitForResult)
		ev.Query.SetResult(avail, pixels)
	case visengine.OcclusionQueryDrawTestDepth:
		c.drawTestDepth(dev, ev.Query)
	case visengine.ViewParametersChanged:
		c.viewParametersChanged(dev, ev.Viewer)
	case visengine.StencilMask:
		c.stencilMask(dev, ev)
	case visengine.DrawLine2D:
		c.depth.disable(dev, c.clipEnabled)
		c.a.lines.DrawLineScreenSpace(ev.A, ev.B, ev.Colour)
	case visengine.DrawLine3D:
		c.depth.disable(dev, c.clipEnabled)
		c.a.lines.DrawLine(ev.A, ev.B, ev.Colour)
	default:
		panic(fmt.Sprintf("visibility: unknown event %T", e))
	}
}

func (c *Commander) queryBegin(dev renderer.Device) {
	if c.active {
		panic("visibility: QueryBegin inside a query")
	}
	c.depth.disable(dev, c.clipEnabled)
	c.active = true
	c.flags = c.a.flags
	c.storedView = dev.State().View
	c.viewerView = c.storedView
	c.viewChanged = false
	c.colourPass = false
	c.clipEnabled = false
	c.cached = c.cached[:0]
	c.lastChunk = world.NoChunk

	dev.SetStencilEnable(false)
	if space := c.space(); space != nil {
		dev.SetLights(space.Lights(), dev.State().SpecularLights)
	}
	dev.Push()
	c.a.backend.BeginFrame(dev.State().Projection)
}

func (c *Commander) queryEnd(dev renderer.Device) {
	dev.SetStencilEnable(false)
	c.a.lines.Purge(dev)
	c.flush(dev)
	dev.SetView(c.storedView)
	dev.Pop()
	c.clipEnabled = false
	c.active = false
}

func (c *Commander) lookup(node visengine.NodeID) world.DrawItem {
	item, ok := c.a.items.Lookup(node)
	if !ok || item == nil {
		c.log.Debug("skipping stale node", zap.Uint32("node", uint32(node)))
		return nil
	}
	return item
}

func (c *Commander) resyncView(dev renderer.Device) {
	if c.viewChanged {
		dev.SetView(c.viewerView)
		c.viewChanged = false
	}
}

func (c *Commander) drawDepth(dev renderer.Device, inst visengine.Instance) {
	item := c.lookup(inst.Node)
	if item == nil {
		return
	}
	if !c.flags.FlushTrees && world.IsVegetation(item) {
		return
	}
	c.depth.disable(dev, c.clipEnabled)
	c.resyncView(dev)
	if c.flags.DepthOnlyPass {
		dev.SetDepthOnly(true)
	}
	c.lastChunk = item.DrawDepth(dev, c.lastChunk)
	if c.a.softwareMode {
		if b, ok := item.(world.Bounded); ok {
			c.a.backend.AddOccluder(b.Bounds(), c.viewerView)
		}
	}
}

func (c *Commander) drawVisible(dev renderer.Device, inst visengine.Instance) {
	if !c.colourPass {
		dev.SetStencilEnable(false)
	}
	item := c.lookup(inst.Node)
	if item == nil {
		return
	}
	c.colourPass = true
	if !c.flags.FlushTrees && world.IsVegetation(item) {
		return
	}
	c.cached = append(c.cached, item)
	c.depth.disable(dev, c.clipEnabled)
	c.resyncView(dev)
	dev.SetDepthOnly(false)
	c.lastChunk = item.Draw(dev, c.lastChunk)
}

func (c *Commander) drawTestDepth(dev renderer.Device, q *occlusion.Query) {
	if n := q.TriangleCount(); n > occlusion.MaxTestBoxes*occlusion.TrianglesPerBox {
		panic(fmt.Sprintf("visibility: test batch of %d triangles exceeds %d",
			n, occlusion.MaxTestBoxes*occlusion.TrianglesPerBox))
	}
	c.depth.enable(dev, c.clipEnabled)
	dev.SetView(q.ToCamera)
	c.viewChanged = true
	dev.DrawIndexed(q.Vertices, c.a.testIndices[:q.Boxes()*len(geom.BoxIndices)])
}

func (c *Commander) viewParametersChanged(dev renderer.Device, v visengine.Viewer) {
	c.depth.disable(dev, c.clipEnabled)
	c.flush(dev)
	c.a.lines.Purge(dev)

	view := v.CameraToWorld.Inv()
	dev.SetView(view)
	c.viewerView = view
	c.viewChanged = true
	dev.SetCullMode(renderer.CullNone)
	dev.SetMirrored(v.Mirrored)

	if c.a.clipPlaneSupport && v.FrustumPlaneCount() > clipPlaneIndex {
		plane := v.FrustumPlanes[clipPlaneIndex].Transform(dev.State().Projection)
		dev.SetClipPlane(0, mgl32.Vec4(plane))
		dev.SetClipPlanes(1)
		c.clipEnabled = true
	} else {
		dev.SetClipPlanes(0)
		c.clipEnabled = false
	}
}

func (c *Commander) stencilMask(dev renderer.Device, ev visengine.StencilMask) {
	if c.colourPass {
		return
	}
	c.depth.disable(dev, c.clipEnabled)
	if !c.masker.mask(dev, ev) {
		c.log.Debug("skipping stale portal", zap.Uint32("node", uint32(ev.Instance.Node)))
	}
}

// flush draws everything batched so far: foliage when trees are
// occluders, then terrain and compound geometry with their lighting.
func (c *Commander) flush(dev renderer.Device) {
	c.depth.disable(dev, c.clipEnabled)
	w := c.a.world
	if w == nil {
		c.lastChunk = world.NoChunk
		return
	}
	if f := w.Foliage(); c.flags.FlushTrees && f != nil {
		f.Flush(dev)
	}
	c.resyncView(dev)

	space := w.CameraSpace()
	if space == nil {
		c.lastChunk = world.NoChunk
		return
	}
	st := dev.State()
	dev.SetLights(space.Lights(), st.SpecularLights)

	dev.PushState(renderer.FieldFill)
	if c.flags.WireframeTerrain {
		dev.SetFillMode(renderer.FillWireframe)
	}
	if c.a.terrainOverride != nil {
		c.a.terrainOverride()
	} else if t := space.Terrain(); t != nil {
		t.DrawAll(dev)
	}
	dev.PopState()

	c.ambientSun.Reset(space.AmbientLight())
	c.ambientSun.AddDirectional(space.SunLight())
	dev.SetLights(c.ambientSun, c.ambientSun)
	if comp := w.Compounds(); comp != nil {
		comp.DrawAll(dev)
		comp.DrawBatches(dev)
	}
	dev.SetLights(st.Lights, st.SpecularLights)
	c.lastChunk = world.NoChunk
}

// repeat redraws the items of the last query in order, flushes and
// empties the cache.
func (c *Commander) repeat() {
	c.a.guard.check("Repeat")
	if c.active {
		panic("visibility: Repeat inside a query")
	}
	dev := c.a.dev
	dev.Push()
	last := world.NoChunk
	for _, item := range c.cached {
		last = item.Draw(dev, last)
	}
	dev.Pop()
	c.flush(dev)
	c.cached = c.cached[:0]
}

func (c *Commander) space() world.Space {
	if c.a.world == nil {
		return nil
	}
	return c.a.world.CameraSpace()
}
