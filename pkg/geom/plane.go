package geom

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Plane is the plane a*x + b*y + c*z + d = 0 stored as (a, b, c, d).
// Points with a positive distance are on the inside.
type Plane mgl32.Vec4

// PlaneFromPoints returns the plane through three points, with the normal
// following the counter-clockwise winding a, b, c.
func PlaneFromPoints(a, b, c mgl32.Vec3) Plane {
	n := b.Sub(a).Cross(c.Sub(a)).Normalize()
	return Plane{n[0], n[1], n[2], -n.Dot(a)}
}

// Normal returns the plane normal.
func (p Plane) Normal() mgl32.Vec3 {
	return mgl32.Vec3{p[0], p[1], p[2]}
}

// Distance returns the signed distance of v from the plane.
func (p Plane) Distance(v mgl32.Vec3) float32 {
	return p[0]*v[0] + p[1]*v[1] + p[2]*v[2] + p[3]
}

// Normalize scales the plane so its normal has unit length.
func (p Plane) Normalize() Plane {
	l := math32.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])
	if l == 0 {
		return p
	}
	return Plane{p[0] / l, p[1] / l, p[2] / l, p[3] / l}
}

// Flip returns the plane facing the other way.
func (p Plane) Flip() Plane {
	return Plane{-p[0], -p[1], -p[2], -p[3]}
}

// Transform moves the plane into the space of point transform m.
func (p Plane) Transform(m mgl32.Mat4) Plane {
	return Plane(m.Inv().Transpose().Mul4x1(mgl32.Vec4(p)))
}

// Reflection returns the matrix mirroring points across the plane.
func (p Plane) Reflection() mgl32.Mat4 {
	p = p.Normalize()
	a, b, c, d := p[0], p[1], p[2], p[3]
	return mgl32.Mat4{
		1 - 2*a*a, -2 * a * b, -2 * a * c, 0,
		-2 * a * b, 1 - 2*b*b, -2 * b * c, 0,
		-2 * a * c, -2 * b * c, 1 - 2*c*c, 0,
		-2 * a * d, -2 * b * d, -2 * c * d, 1,
	}
}
