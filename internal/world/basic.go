package world

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-vis/internal/engine/lighting"
	"github.com/Faultbox/midgard-vis/internal/engine/renderer"
	"github.com/Faultbox/midgard-vis/pkg/geom"
)

// BasicSpace is a Space with fixed lighting.
type BasicSpace struct {
	Container *lighting.Container
	Ground    TerrainRenderer
}

// NewBasicSpace builds a space lit by ambient and a sun.
func NewBasicSpace(ambient mgl32.Vec4, sun *lighting.Directional, terrain TerrainRenderer) *BasicSpace {
	c := lighting.NewContainer(ambient)
	c.AddDirectional(sun)
	return &BasicSpace{Container: c, Ground: terrain}
}

func (s *BasicSpace) Lights() *lighting.Container     { return s.Container }
func (s *BasicSpace) AmbientLight() mgl32.Vec4        { return s.Container.Ambient }
func (s *BasicSpace) SunLight() *lighting.Directional { return s.Container.Sun() }
func (s *BasicSpace) Terrain() TerrainRenderer        { return s.Ground }

// FlatTerrain is a single ground quad.
type FlatTerrain struct {
	Center mgl32.Vec3
	Extent float32
	Height float32
	Colour mgl32.Vec4
}

var quadIndices = []uint16{0, 1, 2, 0, 2, 3}

func (t *FlatTerrain) DrawAll(dev renderer.Device) {
	e, h := t.Extent, t.Height
	dev.SetWorld(mgl32.Translate3D(t.Center[0], 0, t.Center[2]))
	dev.SetMaterial(renderer.Material{Colour: t.Colour, Shaded: true})
	dev.DrawIndexed([]mgl32.Vec3{{-e, h, -e}, {-e, h, e}, {e, h, e}, {e, h, -e}}, quadIndices)
}

// drawBox draws b as a solid box.
func drawBox(dev renderer.Device, b geom.AABB) {
	corners := b.Corners()
	dev.SetWorld(mgl32.Ident4())
	dev.DrawIndexed(corners[:], geom.BoxIndices[:])
}

// Model is a box-shaped draw item.
type Model struct {
	Chunk  ChunkID
	Box    geom.AABB
	Colour mgl32.Vec4
	// Batch, when set, defers colour draws to the compound batches.
	Batch *CompoundSet
}

func (m *Model) Bounds() geom.AABB { return m.Box }

func (m *Model) Draw(dev renderer.Device, last ChunkID) ChunkID {
	if m.Batch != nil {
		m.Batch.Queue(m)
		return m.Chunk
	}
	dev.SetMaterial(renderer.Material{Colour: m.Colour, Shaded: true})
	drawBox(dev, m.Box)
	return m.Chunk
}

func (m *Model) DrawDepth(dev renderer.Device, last ChunkID) ChunkID {
	drawBox(dev, m.Box)
	return m.Chunk
}

// Tree is a vegetation item drawn through a FoliageBatch.
type Tree struct {
	Chunk   ChunkID
	Box     geom.AABB
	Foliage *FoliageBatch
}

func (t *Tree) Bounds() geom.AABB { return t.Box }
func (t *Tree) Vegetation() bool  { return true }

func (t *Tree) Draw(dev renderer.Device, last ChunkID) ChunkID {
	t.Foliage.Queue(t)
	return t.Chunk
}

func (t *Tree) DrawDepth(dev renderer.Device, last ChunkID) ChunkID {
	t.Foliage.Queue(t)
	return t.Chunk
}

// FoliageBatch queues trees until Flush.
type FoliageBatch struct {
	Colour mgl32.Vec4
	trees  []*Tree
	queued []*Tree
	inQ    map[*Tree]bool
}

// NewFoliageBatch returns an empty batch.
func NewFoliageBatch(colour mgl32.Vec4) *FoliageBatch {
	return &FoliageBatch{Colour: colour, inQ: make(map[*Tree]bool)}
}

// Plant registers a tree and returns it.
func (f *FoliageBatch) Plant(chunk ChunkID, box geom.AABB) *Tree {
	t := &Tree{Chunk: chunk, Box: box, Foliage: f}
	f.trees = append(f.trees, t)
	return t
}

// Queue adds t to the next Flush once.
func (f *FoliageBatch) Queue(t *Tree) {
	if f.inQ[t] {
		return
	}
	f.inQ[t] = true
	f.queued = append(f.queued, t)
}

// Pending returns the number of queued trees.
func (f *FoliageBatch) Pending() int { return len(f.queued) }

func (f *FoliageBatch) Flush(dev renderer.Device) {
	if f == nil {
		return
	}
	f.draw(dev, f.queued)
	f.queued = f.queued[:0]
	clear(f.inQ)
}

func (f *FoliageBatch) DrawAll(dev renderer.Device) {
	if f == nil {
		return
	}
	f.draw(dev, f.trees)
	f.queued = f.queued[:0]
	clear(f.inQ)
}

func (f *FoliageBatch) draw(dev renderer.Device, trees []*Tree) {
	if len(trees) == 0 {
		return
	}
	dev.SetMaterial(renderer.Material{Colour: f.Colour, Shaded: true})
	for _, t := range trees {
		drawBox(dev, t.Box)
	}
}

// CompoundSet holds static boxes drawn every flush plus models queued as
// batches.
type CompoundSet struct {
	Colour  mgl32.Vec4
	Static  []geom.AABB
	batched []*Model
}

// Queue defers m until DrawBatches.
func (c *CompoundSet) Queue(m *Model) { c.batched = append(c.batched, m) }

func (c *CompoundSet) DrawAll(dev renderer.Device) {
	if c == nil || len(c.Static) == 0 {
		return
	}
	dev.SetMaterial(renderer.Material{Colour: c.Colour, Shaded: true})
	for _, b := range c.Static {
		drawBox(dev, b)
	}
}

func (c *CompoundSet) DrawBatches(dev renderer.Device) {
	if c == nil {
		return
	}
	for _, m := range c.batched {
		dev.SetMaterial(renderer.Material{Colour: m.Colour, Shaded: true})
		drawBox(dev, m.Box)
	}
	c.batched = c.batched[:0]
}

// BasicWorld is a World with one space.
type BasicWorld struct {
	Space    Space
	Compound *CompoundSet
	Trees    *FoliageBatch
}

func (w *BasicWorld) CameraSpace() Space {
	if w.Space == nil {
		return nil
	}
	return w.Space
}

func (w *BasicWorld) Compounds() Compounds { return w.Compound }
func (w *BasicWorld) Foliage() Foliage     { return w.Trees }

var (
	_ DrawItem = (*Model)(nil)
	_ DrawItem = (*Tree)(nil)
	_ Space    = (*BasicSpace)(nil)
	_ World    = (*BasicWorld)(nil)
)
