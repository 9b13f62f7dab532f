package occlusion

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-vis/pkg/geom"
)

// MaxTestBoxes bounds the proxy boxes drawn for one query.
const MaxTestBoxes = 10

// TrianglesPerBox is the triangle count of one proxy box.
const TrianglesPerBox = 12

// Query is one occlusion test. The backend owns the slot named by Index;
// everyone else only refers to it.
type Query struct {
	Index int
	// Vertices holds eight corners per proxy box in geom.AABB corner order.
	Vertices []mgl32.Vec3
	// ToCamera maps Vertices into camera space.
	ToCamera mgl32.Mat4
	// WaitForResult makes result reads block until the test finishes.
	WaitForResult bool

	available bool
	pixels    int
}

// NewQuery builds a query whose proxy geometry is the given boxes.
func NewQuery(index int, boxes []geom.AABB, toCamera mgl32.Mat4, wait bool) *Query {
	if len(boxes) > MaxTestBoxes {
		panic(fmt.Sprintf("occlusion: %d test boxes exceed limit %d", len(boxes), MaxTestBoxes))
	}
	q := &Query{
		Index:         index,
		Vertices:      make([]mgl32.Vec3, 0, len(boxes)*8),
		ToCamera:      toCamera,
		WaitForResult: wait,
	}
	for _, b := range boxes {
		corners := b.Corners()
		q.Vertices = append(q.Vertices, corners[:]...)
	}
	return q
}

// Boxes returns the number of proxy boxes.
func (q *Query) Boxes() int { return len(q.Vertices) / 8 }

// TriangleCount returns the triangles a test draw issues.
func (q *Query) TriangleCount() int { return q.Boxes() * TrianglesPerBox }

// SetResult stores the outcome of a result read.
func (q *Query) SetResult(available bool, pixels int) {
	q.available, q.pixels = available, pixels
}

// Result returns the last stored outcome.
func (q *Query) Result() (available bool, pixels int) {
	return q.available, q.pixels
}

// Visible applies the fail-open policy: an unavailable result counts as
// visible.
func (q *Query) Visible() bool {
	return !q.available || q.pixels > 0
}
