package occlusion

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-vis/pkg/geom"
)

// Resolution of the CPU depth buffer on each axis.
const softwareResolution = 64

// occluderShrink pulls each side of an occluder's screen rectangle in by
// this fraction of its size, since a box's projected bounds overstate its
// silhouette.
const occluderShrink = 0.25

// Software tests proxies against a coarse CPU depth buffer built from
// occluder boxes. Results are always available.
type Software struct {
	projection mgl32.Mat4
	depth      []float32
	slots      map[int]bool
	pending    map[int]int
}

// NewSoftware returns a software backend with a cleared depth buffer.
func NewSoftware() *Software {
	s := &Software{
		projection: mgl32.Ident4(),
		depth:      make([]float32, softwareResolution*softwareResolution),
		slots:      make(map[int]bool),
		pending:    make(map[int]int),
	}
	s.clear()
	return s
}

func (s *Software) Software() bool { return true }

func (s *Software) Allocate(index int) bool {
	if index < 0 {
		return false
	}
	s.slots[index] = true
	return true
}

func (s *Software) Release(index int) {
	delete(s.slots, index)
	delete(s.pending, index)
}

func (s *Software) BeginFrame(projection mgl32.Mat4) {
	s.projection = projection
	s.clear()
}

func (s *Software) clear() {
	for i := range s.depth {
		s.depth[i] = 1
	}
}

// rect is a screen region in buffer pixels, max exclusive, with the depth
// range of the projected box.
type rect struct {
	x0, y0, x1, y1 int
	near, far      float32
}

// project returns the screen rectangle of a box. ok is false when any
// corner lies behind the eye.
func (s *Software) project(corners []mgl32.Vec3, toCamera mgl32.Mat4) (r rect, ok bool) {
	m := s.projection.Mul4(toCamera)
	minX, minY := float32(1), float32(1)
	maxX, maxY := float32(-1), float32(-1)
	r.near, r.far = 1, -1
	for _, c := range corners {
		clip := m.Mul4x1(c.Vec4(1))
		if clip[3] <= 1e-5 {
			return rect{}, false
		}
		ndc := clip.Vec3().Mul(1 / clip[3])
		minX, maxX = math32.Min(minX, ndc[0]), math32.Max(maxX, ndc[0])
		minY, maxY = math32.Min(minY, ndc[1]), math32.Max(maxY, ndc[1])
		r.near, r.far = math32.Min(r.near, ndc[2]), math32.Max(r.far, ndc[2])
	}
	r.x0, r.x1 = toPixel(minX), toPixel(maxX)
	r.y0, r.y1 = toPixel(minY), toPixel(maxY)
	return r, true
}

func toPixel(ndc float32) int {
	p := int(math32.Floor((ndc*0.5 + 0.5) * softwareResolution))
	if p < 0 {
		return 0
	}
	if p > softwareResolution {
		return softwareResolution
	}
	return p
}

func (s *Software) AddOccluder(box geom.AABB, toCamera mgl32.Mat4) {
	corners := box.Corners()
	r, ok := s.project(corners[:], toCamera)
	if !ok {
		return
	}
	dx := int(float32(r.x1-r.x0) * occluderShrink)
	dy := int(float32(r.y1-r.y0) * occluderShrink)
	r.x0, r.x1 = r.x0+dx, r.x1-dx
	r.y0, r.y1 = r.y0+dy, r.y1-dy
	far := (r.far + 1) / 2
	for y := r.y0; y < r.y1; y++ {
		row := s.depth[y*softwareResolution:]
		for x := r.x0; x < r.x1; x++ {
			if far < row[x] {
				row[x] = far
			}
		}
	}
}

func (s *Software) Begin(q *Query) {}

// End rasterises the proxy boxes and stores the passing pixel count.
func (s *Software) End(q *Query) {
	if q == nil || !s.slots[q.Index] {
		return
	}
	s.pending[q.Index] = s.test(q)
}

func (s *Software) test(q *Query) int {
	pixels := 0
	for b := 0; b < q.Boxes(); b++ {
		r, ok := s.project(q.Vertices[b*8:b*8+8], q.ToCamera)
		if !ok {
			// Straddles the eye, so it cannot be hidden.
			return softwareResolution * softwareResolution
		}
		near := (r.near + 1) / 2
		for y := r.y0; y < r.y1; y++ {
			row := s.depth[y*softwareResolution:]
			for x := r.x0; x < r.x1; x++ {
				if near <= row[x] {
					pixels++
				}
			}
		}
	}
	return pixels
}

func (s *Software) Result(q *Query, wait bool) (bool, int) {
	if q == nil {
		return false, 0
	}
	pixels, ok := s.pending[q.Index]
	if !ok {
		return false, 0
	}
	return true, pixels
}

func (s *Software) Close() error {
	s.slots = make(map[int]bool)
	s.pending = make(map[int]int)
	return nil
}

var _ Backend = (*Software)(nil)
