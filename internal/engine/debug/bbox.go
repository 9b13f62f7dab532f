// Package debug provides debug visualization utilities.
package debug

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-vis/pkg/geom"
)

// BBoxWireframeVertexCount is the number of vertices for a bbox wireframe (12 edges × 2).
const BBoxWireframeVertexCount = 24

// BBoxWireframe returns line pair vertices for the edges of b grown by
// padding on every side.
func BBoxWireframe(b geom.AABB, padding float32) []mgl32.Vec3 {
	if b.IsEmpty() {
		return nil
	}
	pad := mgl32.Vec3{padding, padding, padding}
	grown := geom.NewAABB(b.Min.Sub(pad), b.Max.Add(pad))
	corners := grown.Corners()

	out := make([]mgl32.Vec3, 0, BBoxWireframeVertexCount)
	for _, e := range geom.BoxEdges {
		out = append(out, corners[e[0]], corners[e[1]])
	}
	return out
}
