package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-vis/pkg/geom"
)

func TestOrbitCameraLooksAtCenter(t *testing.T) {
	c := NewOrbitCamera()
	c.Center = mgl32.Vec3{10, 0, -5}
	c.Distance = 50
	c.RotationX = 0.3
	c.RotationY = 1.2

	pos := c.Position()
	if d := pos.Sub(c.Center).Len(); !mgl32.FloatEqualThreshold(d, 50, 1e-3) {
		t.Errorf("distance = %f, want 50", d)
	}

	// The center lies straight ahead, on the camera's -Z axis.
	inCam := c.ViewMatrix().Mul4x1(c.Center.Vec4(1))
	if !mgl32.FloatEqualThreshold(inCam[0], 0, 1e-3) || !mgl32.FloatEqualThreshold(inCam[1], 0, 1e-3) {
		t.Errorf("center off axis: %v", inCam)
	}
	if inCam[2] >= 0 {
		t.Errorf("center behind camera: %v", inCam)
	}

	eye := c.CameraToWorld().Col(3).Vec3()
	if !eye.ApproxEqualThreshold(pos, 1e-3) {
		t.Errorf("CameraToWorld eye = %v, want %v", eye, pos)
	}
}

func TestOrbitCameraClamps(t *testing.T) {
	tests := []struct {
		name  string
		apply func(c *OrbitCamera)
		check func(c *OrbitCamera) bool
	}{
		{"zoom in", func(c *OrbitCamera) { c.HandleZoom(100) }, func(c *OrbitCamera) bool { return c.Distance == c.MinDistance }},
		{"zoom out", func(c *OrbitCamera) { c.HandleZoom(-1000) }, func(c *OrbitCamera) bool { return c.Distance == c.MaxDistance }},
		{"pitch up", func(c *OrbitCamera) { c.HandleDrag(0, 1e6) }, func(c *OrbitCamera) bool { return c.RotationX == c.MaxPitch }},
		{"pitch down", func(c *OrbitCamera) { c.HandleDrag(0, -1e6) }, func(c *OrbitCamera) bool { return c.RotationX == c.MinPitch }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewOrbitCamera()
			tt.apply(c)
			if !tt.check(c) {
				t.Errorf("not clamped: %+v", c)
			}
		})
	}
}

func TestOrbitWraps(t *testing.T) {
	c := NewOrbitCamera()
	for i := 0; i < 100; i++ {
		c.Orbit(0.5)
	}
	if c.RotationY < 0 || c.RotationY >= 2*3.1416 {
		t.Errorf("yaw not wrapped: %f", c.RotationY)
	}
}

func TestFitToBounds(t *testing.T) {
	c := NewOrbitCamera()
	b := geom.NewAABB(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{400, 20, 200})
	c.FitToBounds(b)
	if c.Center != b.Center() {
		t.Errorf("center = %v, want %v", c.Center, b.Center())
	}
	if c.Distance < 400*0.6-1e-3 {
		t.Errorf("distance %f too small", c.Distance)
	}
}

func TestProjectionAspect(t *testing.T) {
	wide := Projection(60, 200, 100, 1, 10)
	square := Projection(60, 100, 100, 1, 10)
	if !mgl32.FloatEqualThreshold(wide[0]*2, square[0], 1e-5) {
		t.Errorf("x scale %f, want half of %f", wide[0], square[0])
	}
	if zero := Projection(60, 100, 0, 1, 10); zero != square {
		t.Error("zero height should fall back to aspect 1")
	}
}
