package geom

import "github.com/go-gl/mathgl/mgl32"

// Frustum plane indices. A frustum may carry an extra user clip plane at
// index PlaneClip.
const (
	PlaneLeft = iota
	PlaneRight
	PlaneBottom
	PlaneTop
	PlaneNear
	PlaneFar
	PlaneClip
)

// Frustum is a convex volume bounded by inward facing planes.
type Frustum struct {
	Planes []Plane
}

// FrustumFromMatrix extracts the six planes of a view-projection matrix
// (Gribb/Hartmann). The planes live in the space the matrix maps from.
func FrustumFromMatrix(m mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := m.Row(0), m.Row(1), m.Row(2), m.Row(3)
	planes := []Plane{
		Plane(r3.Add(r0)).Normalize(),
		Plane(r3.Sub(r0)).Normalize(),
		Plane(r3.Add(r1)).Normalize(),
		Plane(r3.Sub(r1)).Normalize(),
		Plane(r3.Add(r2)).Normalize(),
		Plane(r3.Sub(r2)).Normalize(),
	}
	return Frustum{Planes: planes}
}

// WithClipPlane returns a copy of the frustum with an extra plane appended.
func (f Frustum) WithClipPlane(p Plane) Frustum {
	planes := make([]Plane, 0, len(f.Planes)+1)
	planes = append(planes, f.Planes...)
	planes = append(planes, p)
	return Frustum{Planes: planes}
}

// Transform moves every plane into the space of point transform m.
func (f Frustum) Transform(m mgl32.Mat4) Frustum {
	inv := m.Inv().Transpose()
	planes := make([]Plane, len(f.Planes))
	for i, p := range f.Planes {
		planes[i] = Plane(inv.Mul4x1(mgl32.Vec4(p)))
	}
	return Frustum{Planes: planes}
}

// IntersectsAABB reports whether any part of b may lie inside the frustum.
// It tests the corner furthest along each plane normal, so it can report
// boxes near frustum edges as visible but never rejects a visible box.
func (f Frustum) IntersectsAABB(b AABB) bool {
	for _, p := range f.Planes {
		v := b.Min
		if p[0] >= 0 {
			v[0] = b.Max[0]
		}
		if p[1] >= 0 {
			v[1] = b.Max[1]
		}
		if p[2] >= 0 {
			v[2] = b.Max[2]
		}
		if p.Distance(v) < 0 {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether v is inside every plane.
func (f Frustum) ContainsPoint(v mgl32.Vec3) bool {
	for _, p := range f.Planes {
		if p.Distance(v) < 0 {
			return false
		}
	}
	return true
}
