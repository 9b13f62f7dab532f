package geom

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func approx(a, b float32) bool {
	return math32.Abs(a-b) < 1e-4
}

func TestAABBCornerOrder(t *testing.T) {
	b := NewAABB(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{-1, -2, -3})

	tests := []struct {
		index int
		want  mgl32.Vec3
	}{
		{0, mgl32.Vec3{-1, -2, -3}},
		{1, mgl32.Vec3{1, -2, -3}},
		{2, mgl32.Vec3{-1, 2, -3}},
		{4, mgl32.Vec3{-1, -2, 3}},
		{7, mgl32.Vec3{1, 2, 3}},
	}

	for _, tt := range tests {
		if got := b.Corner(tt.index); got != tt.want {
			t.Errorf("Corner(%d) = %v, want %v", tt.index, got, tt.want)
		}
	}
}

func TestAABBExtendAndUnion(t *testing.T) {
	b := EmptyAABB()
	if !b.IsEmpty() {
		t.Fatal("EmptyAABB should be empty")
	}

	b = b.Extend(mgl32.Vec3{1, 1, 1}).Extend(mgl32.Vec3{-1, 0, 2})
	if b.Min != (mgl32.Vec3{-1, 0, 1}) || b.Max != (mgl32.Vec3{1, 1, 2}) {
		t.Errorf("Extend: got %v..%v", b.Min, b.Max)
	}

	u := b.Union(EmptyAABB())
	if u != b {
		t.Errorf("Union with empty box changed the box: %v", u)
	}
}

func TestAABBDistance(t *testing.T) {
	b := NewAABB(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1})
	if d := b.Distance(mgl32.Vec3{0.5, 0.5, 0.5}); d != 0 {
		t.Errorf("inside distance = %f, want 0", d)
	}
	if d := b.Distance(mgl32.Vec3{4, 0.5, 0.5}); !approx(d, 3) {
		t.Errorf("outside distance = %f, want 3", d)
	}
}

func TestBoxIndexBuffer(t *testing.T) {
	idx := BoxIndexBuffer(3)
	if len(idx) != 3*36 {
		t.Fatalf("len = %d, want %d", len(idx), 3*36)
	}
	// Second box starts at vertex 8
	if idx[36] != BoxIndices[0]+8 {
		t.Errorf("second box first index = %d, want %d", idx[36], BoxIndices[0]+8)
	}
	for _, i := range idx {
		if i >= 24 {
			t.Fatalf("index %d out of range for 3 boxes", i)
		}
	}
}

func TestBoxIndicesCoverAllCorners(t *testing.T) {
	seen := map[uint16]int{}
	for _, i := range BoxIndices {
		seen[i]++
	}
	if len(seen) != 8 {
		t.Errorf("box indices reference %d corners, want 8", len(seen))
	}
}

func TestFrustumCulling(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 1, 1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	f := FrustumFromMatrix(proj.Mul4(view))

	tests := []struct {
		name string
		box  AABB
		want bool
	}{
		{"ahead", NewAABB(mgl32.Vec3{-1, -1, -11}, mgl32.Vec3{1, 1, -9}), true},
		{"behind", NewAABB(mgl32.Vec3{-1, -1, 9}, mgl32.Vec3{1, 1, 11}), false},
		{"beyond far", NewAABB(mgl32.Vec3{-1, -1, -300}, mgl32.Vec3{1, 1, -200}), false},
		{"far left", NewAABB(mgl32.Vec3{-200, -1, -11}, mgl32.Vec3{-100, 1, -9}), false},
		{"straddling near", NewAABB(mgl32.Vec3{-1, -1, -2}, mgl32.Vec3{1, 1, 2}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.IntersectsAABB(tt.box); got != tt.want {
				t.Errorf("IntersectsAABB = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrustumCameraToWorld(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 1, 1, 100)
	camToWorld := mgl32.Translate3D(50, 0, 0)
	view := camToWorld.Inv()

	camSpace := FrustumFromMatrix(proj)
	world := FrustumFromMatrix(proj.Mul4(view))
	moved := camSpace.Transform(camToWorld)

	p := mgl32.Vec3{50, 0, -10}
	if !world.ContainsPoint(p) || !moved.ContainsPoint(p) {
		t.Errorf("point ahead of translated camera should be inside both frusta")
	}
	if moved.ContainsPoint(mgl32.Vec3{0, 0, -10}) {
		t.Errorf("point ahead of origin should be outside translated frustum")
	}
}

func TestPlaneReflection(t *testing.T) {
	// Mirror across x = 2
	p := Plane{1, 0, 0, -2}
	r := p.Reflection()
	got := mgl32.TransformCoordinate(mgl32.Vec3{5, 1, 1}, r)
	want := mgl32.Vec3{-1, 1, 1}
	for i := 0; i < 3; i++ {
		if !approx(got[i], want[i]) {
			t.Fatalf("reflection = %v, want %v", got, want)
		}
	}
	if det := r.Det(); !approx(det, -1) {
		t.Errorf("reflection determinant = %f, want -1", det)
	}
}

func TestPlaneFromPoints(t *testing.T) {
	p := PlaneFromPoints(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0})
	if !approx(p.Distance(mgl32.Vec3{0, 0, 3}), 3) {
		t.Errorf("distance above XY plane = %f, want 3", p.Distance(mgl32.Vec3{0, 0, 3}))
	}
}
