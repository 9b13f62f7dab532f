// Package world holds the chunked scene the visibility commander draws:
// spaces with their lighting, terrain, compound geometry, foliage and the
// per-object draw items bound to visibility nodes.
package world

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-vis/internal/engine/lighting"
	"github.com/Faultbox/midgard-vis/internal/engine/renderer"
	"github.com/Faultbox/midgard-vis/pkg/geom"
)

// ChunkID names the chunk a draw item lives in. Items use it to skip
// redundant per-chunk setup between consecutive draws.
type ChunkID int32

// NoChunk means no chunk has been drawn yet.
const NoChunk ChunkID = -1

// DrawItem is a renderable bound to a visibility node. Both methods take
// the chunk drawn last and return the chunk they drew in.
type DrawItem interface {
	Draw(dev renderer.Device, last ChunkID) ChunkID
	DrawDepth(dev renderer.Device, last ChunkID) ChunkID
}

// Bounded items expose world-space bounds.
type Bounded interface {
	Bounds() geom.AABB
}

// Vegetation items are drawn through the foliage batcher.
type Vegetation interface {
	Vegetation() bool
}

// IsVegetation reports whether item draws through foliage.
func IsVegetation(item DrawItem) bool {
	v, ok := item.(Vegetation)
	return ok && v.Vegetation()
}

// Portal is the stencil model of a portal in object space.
type Portal struct {
	Vertices  []mgl32.Vec3
	Triangles []uint16
}

// TerrainRenderer draws all visible terrain of a space.
type TerrainRenderer interface {
	DrawAll(dev renderer.Device)
}

// Space is one loaded world region.
type Space interface {
	Lights() *lighting.Container
	AmbientLight() mgl32.Vec4
	SunLight() *lighting.Directional
	// Terrain may return nil.
	Terrain() TerrainRenderer
}

// Compounds draws shared static geometry.
type Compounds interface {
	// DrawAll draws every compound queued this frame.
	DrawAll(dev renderer.Device)
	// DrawBatches draws instanced batches queued by draw items.
	DrawBatches(dev renderer.Device)
}

// Foliage batches vegetation draws.
type Foliage interface {
	// Flush draws and clears the queued batches.
	Flush(dev renderer.Device)
	// DrawAll draws every registered plant regardless of visibility.
	DrawAll(dev renderer.Device)
}

// World is what the commander needs from the host scene.
type World interface {
	// CameraSpace returns the space the camera is in, or nil.
	CameraSpace() Space
	Compounds() Compounds
	Foliage() Foliage
}
