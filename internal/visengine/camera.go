package visengine

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-vis/internal/occlusion"
	"github.com/Faultbox/midgard-vis/pkg/geom"
)

// maxStencilLevel is the deepest stencil reference a portal chain reaches.
const maxStencilLevel = 0x3f

var (
	colourCell      = mgl32.Vec4{0.5, 0.5, 0.5, 1}
	colourBounds    = mgl32.Vec4{0, 1, 0, 1}
	colourTested    = mgl32.Vec4{1, 1, 0, 1}
	colourOccluder  = mgl32.Vec4{0, 0.4, 1, 1}
	colourCulled    = mgl32.Vec4{1, 0, 0, 1}
	colourPortal2D  = mgl32.Vec4{0, 1, 1, 1}
	defaultProperty = ViewFrustumCulling | OcclusionCulling | LatentQueries
)

// Camera resolves visibility from one viewpoint.
type Camera struct {
	lib           *Library
	cell          *Cell
	cameraToWorld mgl32.Mat4
	projection    mgl32.Mat4
	props         Properties
	lines         LineFlags
}

// NewCamera returns a camera at the origin with an identity projection.
func (l *Library) NewCamera() *Camera {
	return &Camera{
		lib:           l,
		cameraToWorld: mgl32.Ident4(),
		projection:    mgl32.Ident4(),
		props:         defaultProperty,
	}
}

// SetCell pins the start cell. Nil means the cell containing the eye.
func (c *Camera) SetCell(cell *Cell) { c.cell = cell }

func (c *Camera) SetCameraToWorld(m mgl32.Mat4) { c.cameraToWorld = m }

func (c *Camera) SetProjection(m mgl32.Mat4) { c.projection = m }

func (c *Camera) SetProperties(p Properties) { c.props = p }

func (c *Camera) Properties() Properties { return c.props }

func (c *Camera) SetLineFlags(f LineFlags) { c.lines = f }

// resolve holds the per-call working set.
type resolve struct {
	cmd     Commander
	view    mgl32.Mat4
	eye     mgl32.Vec3
	frustum geom.Frustum
	cells   []*Cell
	portals []*Portal
	mirrors []*Portal
	visible []*Object
	tested  []*Object
	culled  []*Object
	occl    []*Object
}

// ResolveVisibility runs one query and reports it to cmd, from
// QueryBegin through QueryEnd.
func (c *Camera) ResolveVisibility(cmd Commander) {
	l := c.lib
	l.svc.EnterMutex()
	defer l.svc.LeaveMutex()
	l.mustBeIdle("ResolveVisibility")
	l.querying = true
	defer func() { l.querying = false }()
	l.resolves++

	r := &resolve{
		cmd:  cmd,
		view: c.cameraToWorld.Inv(),
		eye:  c.cameraToWorld.Col(3).Vec3(),
	}
	r.frustum = geom.FrustumFromMatrix(c.projection.Mul4(r.view))

	cmd.Command(QueryBegin{})
	start := c.cell
	if start == nil {
		start = l.CellAt(r.eye)
	}
	if start == nil {
		l.svc.Error("camera is outside every cell")
		cmd.Command(QueryEnd{})
		return
	}

	main := Viewer{
		CameraToWorld: c.cameraToWorld,
		FrustumPlanes: geom.FrustumFromMatrix(c.projection).Planes,
	}
	cmd.Command(ViewParametersChanged{Viewer: main})

	c.traverse(r, start)
	candidates := c.collect(r)
	c.cull(r, candidates)
	for _, o := range r.visible {
		cmd.Command(InstanceVisible{Instance: instance(o, r.view)})
	}
	l.count(StatVisible, len(r.visible))

	if len(r.mirrors) > 0 {
		for _, p := range r.mirrors {
			c.drawMirror(r, p)
		}
		cmd.Command(ViewParametersChanged{Viewer: main})
	}

	c.drawLines(r)
	cmd.Command(QueryEnd{})
}

func instance(o *Object, view mgl32.Mat4) Instance {
	return Instance{Node: o.Node, ObjectToCamera: view.Mul4(o.Transform)}
}

// traverse walks portals breadth first from start, masking stencil portals.
func (c *Camera) traverse(r *resolve, start *Cell) {
	type visit struct {
		cell  *Cell
		level int
	}
	seen := map[*Cell]bool{start: true}
	queue := []visit{{start, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		r.cells = append(r.cells, cur.cell)

		for _, p := range cur.cell.portals {
			if !r.frustum.IntersectsAABB(p.bounds) {
				continue
			}
			if p.Kind == PortalMirror {
				if p.plane.Distance(r.eye) > 0 {
					r.mirrors = append(r.mirrors, p)
				}
				continue
			}
			next := p.other(cur.cell)
			if next == nil || seen[next] {
				continue
			}
			seen[next] = true
			r.portals = append(r.portals, p)

			level := cur.level
			if p.Kind == PortalStencil && level < maxStencilLevel {
				r.cmd.Command(StencilMask{
					Instance: Instance{Node: p.Node, ObjectToCamera: r.view.Mul4(p.Transform)},
					Test:     level,
					Write:    level + 1,
				})
				c.lib.count(StatStencilMasks, 1)
				level++
			}
			queue = append(queue, visit{next, level})
		}
	}
	c.lib.count(StatCells, len(r.cells))
	c.lib.count(StatPortals, len(r.portals))
}

// collect returns frustum-visible objects nearest first.
func (c *Camera) collect(r *resolve) []*Object {
	var out []*Object
	total := 0
	for _, cell := range r.cells {
		for _, o := range cell.objects {
			total++
			if c.props&ViewFrustumCulling != 0 && !r.frustum.IntersectsAABB(o.Bounds) {
				c.lib.count(StatFrustumCulled, 1)
				continue
			}
			out = append(out, o)
		}
	}
	c.lib.count(StatObjects, total)
	sortFrontToBack(out, r.eye)
	return out
}

func sortFrontToBack(objs []*Object, eye mgl32.Vec3) {
	sort.SliceStable(objs, func(i, j int) bool {
		di, dj := objs[i].Bounds.Distance(eye), objs[j].Bounds.Distance(eye)
		if di != dj {
			return di < dj
		}
		return objs[i].Node < objs[j].Node
	})
}

// cull runs the depth pass and occlusion tests and fills r.visible.
func (c *Camera) cull(r *resolve, candidates []*Object) {
	occlusionOn := c.props&OcclusionCulling != 0
	depthPass := c.props&DepthPass != 0

	if occlusionOn || depthPass {
		drew := false
		for _, o := range candidates {
			if occlusionOn && !o.Occluder {
				continue
			}
			r.cmd.Command(InstanceDrawDepth{Instance: instance(o, r.view)})
			if o.Occluder {
				r.occl = append(r.occl, o)
			}
			drew = true
		}
		c.lib.count(StatOccluders, len(r.occl))
		if drew {
			r.cmd.Command(FlushDepth{})
		}
	}

	if !occlusionOn {
		r.visible = candidates
		return
	}

	latent := c.props&LatentQueries != 0 && c.lib.mode == ModeHardware
	for _, o := range candidates {
		if o.Occluder || !c.lib.allocSlot(o) {
			r.visible = append(r.visible, o)
			continue
		}
		r.tested = append(r.tested, o)
		var vis bool
		if latent {
			vis = c.latentTest(r, o)
		} else {
			vis = c.immediateTest(r, o)
		}
		if vis {
			r.visible = append(r.visible, o)
		} else {
			r.culled = append(r.culled, o)
			c.lib.count(StatQueriesCulled, 1)
		}
	}
}

func (c *Camera) issue(r *resolve, o *Object, wait bool) *occlusion.Query {
	q := occlusion.NewQuery(o.slot, []geom.AABB{o.Bounds}, r.view, wait)
	r.cmd.Command(OcclusionQueryBegin{Query: q})
	r.cmd.Command(OcclusionQueryDrawTestDepth{Query: q})
	r.cmd.Command(OcclusionQueryEnd{Query: q})
	c.lib.count(StatQueriesIssued, 1)
	return q
}

func (c *Camera) immediateTest(r *resolve, o *Object) bool {
	q := c.issue(r, o, true)
	r.cmd.Command(OcclusionQueryGetResult{Query: q})
	return q.Visible()
}

// latentTest reads last frame's result without waiting and issues this
// frame's test. Missing results count as visible. A query left over from
// before the object dropped out of the candidates is discarded.
func (c *Camera) latentTest(r *resolve, o *Object) bool {
	if o.tested+1 != c.lib.resolves {
		o.latent = nil
	}
	o.tested = c.lib.resolves
	vis := true
	if q := o.latent; q != nil {
		q.WaitForResult = false
		r.cmd.Command(OcclusionQueryGetResult{Query: q})
		if avail, _ := q.Result(); !avail {
			c.lib.count(StatQueriesPending, 1)
			return true
		}
		vis = q.Visible()
	}
	o.latent = c.issue(r, o, false)
	return vis
}

// drawMirror reports the objects of a mirror's cell seen in reflection.
func (c *Camera) drawMirror(r *resolve, p *Portal) {
	mirrorToWorld := p.plane.Reflection().Mul4(c.cameraToWorld)
	mview := mirrorToWorld.Inv()

	planes := geom.FrustumFromMatrix(c.projection).Planes
	planes = append(planes, p.plane.Transform(mview))
	r.cmd.Command(ViewParametersChanged{Viewer: Viewer{
		CameraToWorld: mirrorToWorld,
		Mirrored:      true,
		FrustumPlanes: planes,
	}})

	frustum := geom.FrustumFromMatrix(c.projection.Mul4(mview)).WithClipPlane(p.plane)
	eye := mirrorToWorld.Col(3).Vec3()
	var seen []*Object
	for _, o := range p.a.objects {
		if frustum.IntersectsAABB(o.Bounds) {
			seen = append(seen, o)
		}
	}
	sortFrontToBack(seen, eye)
	for _, o := range seen {
		r.cmd.Command(InstanceVisible{Instance: instance(o, mview)})
	}
	c.lib.count(StatMirrors, 1)
}

func (c *Camera) drawLines(r *resolve) {
	if c.lines == 0 {
		return
	}
	boxes := func(flag LineFlags, objs []*Object, colour mgl32.Vec4) {
		if c.lines&flag == 0 {
			return
		}
		for _, o := range objs {
			boxLines(r.cmd, o.Bounds, colour)
		}
	}
	if c.lines&LineVoxels != 0 {
		for _, cell := range r.cells {
			boxLines(r.cmd, cell.Bounds, colourCell)
		}
	}
	boxes(LineObjectBounds, r.visible, colourBounds)
	boxes(LineTestModels, r.tested, colourTested)
	boxes(LineWriteModels, r.occl, colourOccluder)
	boxes(LineQueries, r.culled, colourCulled)

	if c.lines&LineSilhouettes != 0 {
		viewProj := c.projection.Mul4(r.view)
		for _, p := range r.portals {
			silhouette(r.cmd, p.Polygon, viewProj)
		}
	}
}

func boxLines(cmd Commander, b geom.AABB, colour mgl32.Vec4) {
	corners := b.Corners()
	for _, e := range geom.BoxEdges {
		cmd.Command(DrawLine3D{A: corners[e[0]], B: corners[e[1]], Colour: colour})
	}
}

// silhouette outlines a polygon in device coordinates. Edges with an end
// behind the eye are dropped.
func silhouette(cmd Commander, poly []mgl32.Vec3, viewProj mgl32.Mat4) {
	n := len(poly)
	for i := 0; i < n; i++ {
		a, okA := toNDC(poly[i], viewProj)
		b, okB := toNDC(poly[(i+1)%n], viewProj)
		if okA && okB {
			cmd.Command(DrawLine2D{A: a, B: b, Colour: colourPortal2D})
		}
	}
}

func toNDC(v mgl32.Vec3, m mgl32.Mat4) (mgl32.Vec2, bool) {
	clip := m.Mul4x1(v.Vec4(1))
	if clip[3] <= 1e-5 {
		return mgl32.Vec2{}, false
	}
	return mgl32.Vec2{clip[0] / clip[3], clip[1] / clip[3]}, true
}
