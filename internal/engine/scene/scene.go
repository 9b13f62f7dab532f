// Package scene builds the synthetic chunked world the visibility hosts
// render: a grid of chunk cells joined by portals, with buildings that
// occlude, props and trees that get tested, an optional interior behind a
// stencil portal and an optional mirror.
package scene

import (
	"fmt"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-vis/internal/config"
	"github.com/Faultbox/midgard-vis/internal/engine/camera"
	"github.com/Faultbox/midgard-vis/internal/engine/lighting"
	"github.com/Faultbox/midgard-vis/internal/visengine"
	"github.com/Faultbox/midgard-vis/internal/visibility"
	"github.com/Faultbox/midgard-vis/internal/world"
	"github.com/Faultbox/midgard-vis/pkg/geom"
)

// cellHeight is the vertical extent of a chunk cell. It is tall enough
// that an orbiting camera stays inside some cell.
const cellHeight = 2000

var (
	colourBuilding = mgl32.Vec4{0.7, 0.65, 0.6, 1}
	colourProp     = mgl32.Vec4{0.8, 0.3, 0.2, 1}
	colourTree     = mgl32.Vec4{0.2, 0.6, 0.25, 1}
	colourGround   = mgl32.Vec4{0.35, 0.45, 0.3, 1}
	colourPost     = mgl32.Vec4{0.4, 0.4, 0.45, 1}
	colourInterior = mgl32.Vec4{0.9, 0.8, 0.3, 1}
)

type cellDef struct {
	name   string
	bounds geom.AABB
}

type objectDef struct {
	node     visengine.NodeID
	cell     int
	item     world.DrawItem
	bounds   geom.AABB
	occluder bool
}

type portalDef struct {
	node    visengine.NodeID
	a, b    int // b < 0 for mirrors
	kind    visengine.PortalKind
	polygon []mgl32.Vec3
}

// Scene is a generated world plus the layout to register with the
// visibility library.
type Scene struct {
	World  *world.BasicWorld
	Bounds geom.AABB

	cfg      config.SceneConfig
	cells    []cellDef
	objects  []objectDef
	portals  []portalDef
	nextNode visengine.NodeID
	rng      *rand.Rand
}

// New generates a scene from cfg. The same seed gives the same scene.
func New(cfg config.SceneConfig) (*Scene, error) {
	if cfg.GridSize < 1 {
		return nil, fmt.Errorf("grid size must be positive, got %d", cfg.GridSize)
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %f", cfg.ChunkSize)
	}

	extent := float32(cfg.GridSize) * cfg.ChunkSize
	s := &Scene{
		cfg:    cfg,
		Bounds: geom.NewAABB(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{extent, cellHeight, extent}),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
	half := extent / 2
	sun := lighting.NewSun(40, 50, mgl32.Vec4{1, 0.95, 0.85, 1})
	ground := &world.FlatTerrain{Center: mgl32.Vec3{half, 0, half}, Extent: half, Colour: colourGround}
	s.World = &world.BasicWorld{
		Space:    world.NewBasicSpace(mgl32.Vec4{0.25, 0.25, 0.3, 1}, sun, ground),
		Compound: &world.CompoundSet{Colour: colourPost},
		Trees:    world.NewFoliageBatch(colourTree),
	}

	s.layoutChunks()
	if cfg.Interior {
		s.layoutInterior()
	}
	if cfg.Mirror {
		s.layoutMirror()
	}
	return s, nil
}

func (s *Scene) node() visengine.NodeID {
	s.nextNode++
	return s.nextNode
}

func (s *Scene) chunkIndex(x, z int) int { return z*s.cfg.GridSize + x }

func (s *Scene) chunkOrigin(x, z int) mgl32.Vec3 {
	return mgl32.Vec3{float32(x) * s.cfg.ChunkSize, 0, float32(z) * s.cfg.ChunkSize}
}

// place returns a random footprint of size w x d inside the chunk at
// origin, kept off the chunk edges.
func (s *Scene) place(origin mgl32.Vec3, w, h, d float32) geom.AABB {
	margin := s.cfg.ChunkSize * 0.05
	span := s.cfg.ChunkSize - 2*margin
	x := origin[0] + margin + s.rng.Float32()*max(span-w, 0)
	z := origin[2] + margin + s.rng.Float32()*max(span-d, 0)
	return geom.NewAABB(mgl32.Vec3{x, 0, z}, mgl32.Vec3{x + w, h, z + d})
}

func (s *Scene) layoutChunks() {
	n, size := s.cfg.GridSize, s.cfg.ChunkSize
	compound := s.World.Compound
	for z := 0; z < n; z++ {
		for x := 0; x < n; x++ {
			origin := s.chunkOrigin(x, z)
			cell := len(s.cells)
			s.cells = append(s.cells, cellDef{
				name:   fmt.Sprintf("chunk %d,%d", x, z),
				bounds: geom.NewAABB(origin, origin.Add(mgl32.Vec3{size, cellHeight, size})),
			})
			chunk := world.ChunkID(cell)

			for i := 0; i < s.cfg.Buildings; i++ {
				w := size * (0.15 + 0.15*s.rng.Float32())
				d := size * (0.15 + 0.15*s.rng.Float32())
				h := size * (0.2 + 0.4*s.rng.Float32())
				m := &world.Model{Chunk: chunk, Box: s.place(origin, w, h, d), Colour: colourBuilding}
				if i%2 == 1 {
					m.Batch = compound
				}
				s.objects = append(s.objects, objectDef{s.node(), cell, m, m.Box, true})
			}
			for i := 0; i < s.cfg.Props; i++ {
				e := size * (0.01 + 0.03*s.rng.Float32())
				m := &world.Model{Chunk: chunk, Box: s.place(origin, e, e, e), Colour: colourProp}
				s.objects = append(s.objects, objectDef{s.node(), cell, m, m.Box, false})
			}
			for i := 0; i < s.cfg.Trees; i++ {
				e := size * 0.03
				t := s.World.Trees.Plant(chunk, s.place(origin, e, size*0.12, e))
				s.objects = append(s.objects, objectDef{s.node(), cell, t, t.Box, false})
			}

			post := size * 0.01
			compound.Static = append(compound.Static, geom.NewAABB(origin, origin.Add(mgl32.Vec3{post, size * 0.05, post})))

			// Plain portals on the shared faces to the east and south.
			if x > 0 {
				s.portals = append(s.portals, portalDef{
					node: s.node(), a: s.chunkIndex(x-1, z), b: cell, kind: visengine.PortalPlain,
					polygon: quadX(origin[0], origin[2], origin[2]+size, cellHeight),
				})
			}
			if z > 0 {
				s.portals = append(s.portals, portalDef{
					node: s.node(), a: s.chunkIndex(x, z-1), b: cell, kind: visengine.PortalPlain,
					polygon: quadZ(origin[2], origin[0], origin[0]+size, cellHeight),
				})
			}
		}
	}
}

// layoutInterior digs a room under the first chunk, seen through a
// trapdoor stencil portal.
func (s *Scene) layoutInterior() {
	size := s.cfg.ChunkSize
	lo := mgl32.Vec3{size * 0.2, -size * 0.3, size * 0.2}
	hi := mgl32.Vec3{size * 0.6, 0, size * 0.6}
	cell := len(s.cells)
	s.cells = append(s.cells, cellDef{name: "interior", bounds: geom.NewAABB(lo, hi)})

	d0, d1 := size*0.3, size*0.5
	s.portals = append(s.portals, portalDef{
		node: s.node(), a: 0, b: cell, kind: visengine.PortalStencil,
		polygon: []mgl32.Vec3{{d0, 0, d0}, {d1, 0, d0}, {d1, 0, d1}, {d0, 0, d1}},
	})
	for i := 0; i < 3; i++ {
		e := size * 0.05
		x := lo[0] + size*0.05 + float32(i)*size*0.12
		m := &world.Model{
			Chunk:  world.ChunkID(cell),
			Box:    geom.NewAABB(mgl32.Vec3{x, lo[1], lo[2] + size*0.1}, mgl32.Vec3{x + e, lo[1] + e, lo[2] + size*0.1 + e}),
			Colour: colourInterior,
		}
		s.objects = append(s.objects, objectDef{s.node(), cell, m, m.Box, false})
	}
}

// layoutMirror hangs a mirror on the north edge of the first chunk.
func (s *Scene) layoutMirror() {
	size := s.cfg.ChunkSize
	z := float32(0.01)
	x0, x1 := size*0.1, size*0.6
	top := size * 0.3
	s.portals = append(s.portals, portalDef{
		node: s.node(), a: 0, b: -1, kind: visengine.PortalMirror,
		polygon: []mgl32.Vec3{{x0, 0, z}, {x1, 0, z}, {x1, top, z}, {x0, top, z}},
	})
}

// quadX is the rectangle x = at spanning z0..z1, ground to top.
func quadX(at, z0, z1, top float32) []mgl32.Vec3 {
	return []mgl32.Vec3{{at, 0, z0}, {at, 0, z1}, {at, top, z1}, {at, top, z0}}
}

// quadZ is the rectangle z = at spanning x0..x1, ground to top.
func quadZ(at, x0, x1, top float32) []mgl32.Vec3 {
	return []mgl32.Vec3{{x0, 0, at}, {x1, 0, at}, {x1, top, at}, {x0, top, at}}
}

// fan triangulates a convex polygon.
func fan(n int) []uint16 {
	out := make([]uint16, 0, (n-2)*3)
	for i := 1; i+1 < n; i++ {
		out = append(out, 0, uint16(i), uint16(i+1))
	}
	return out
}

// Register adds the scene's cells, objects and portals to the adapter's
// library and binds their nodes to draw items and stencil models.
func (s *Scene) Register(a *visibility.Adapter) error {
	lib := a.Library()
	cells := make([]*visengine.Cell, len(s.cells))
	for i, c := range s.cells {
		cells[i] = lib.NewCell(c.name, c.bounds)
	}
	for _, o := range s.objects {
		if lib.NewObject(cells[o.cell], o.node, o.bounds, mgl32.Ident4(), o.occluder) == nil {
			return fmt.Errorf("registering object %d", o.node)
		}
		a.Items().Add(o.node, o.item)
	}
	for _, p := range s.portals {
		var far *visengine.Cell
		if p.b >= 0 {
			far = cells[p.b]
		}
		if _, err := lib.Connect(cells[p.a], far, p.kind, p.node, p.polygon); err != nil {
			return fmt.Errorf("connecting portal %d: %w", p.node, err)
		}
		if p.kind == visengine.PortalStencil {
			a.Portals().Add(p.node, &world.Portal{Vertices: p.polygon, Triangles: fan(len(p.polygon))})
		}
	}
	return nil
}

// Counts reports the generated layout.
func (s *Scene) Counts() (cells, objects, portals int) {
	return len(s.cells), len(s.objects), len(s.portals)
}

// FrameCamera points c at the middle of the grid from inside its cells.
func (s *Scene) FrameCamera(c *camera.OrbitCamera) {
	extent := float32(s.cfg.GridSize) * s.cfg.ChunkSize
	c.Center = mgl32.Vec3{extent / 2, 0, extent / 2}
	c.Distance = extent * 0.35
	c.MaxDistance = extent * 0.45
	c.RotationX = 0.35
	c.RotationY = 0
}
