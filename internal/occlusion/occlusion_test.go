package occlusion

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-vis/internal/engine/renderer"
	"github.com/Faultbox/midgard-vis/internal/engine/renderer/capture"
	"github.com/Faultbox/midgard-vis/pkg/geom"
)

func unitBox(center mgl32.Vec3, half float32) geom.AABB {
	h := mgl32.Vec3{half, half, half}
	return geom.NewAABB(center.Sub(h), center.Add(h))
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name     string
		caps     renderer.Caps
		failQ    bool
		force    bool
		software bool
		reason   Reason
	}{
		{"hardware", capture.HardwareCaps(), false, false, false, ReasonHardware},
		{"forced", capture.HardwareCaps(), false, true, true, ReasonForced},
		{"trial query fails", capture.HardwareCaps(), true, false, true, ReasonTrialFailed},
		{"no query support", renderer.Caps{ShaderModel: 4}, false, false, true, ReasonUnsupported},
		{"fixed function", renderer.Caps{OcclusionQueries: true}, false, false, true, ReasonFixedFunc},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := capture.New(tt.caps)
			dev.FailQueryCreation = tt.failQ

			b, reason := Select(dev, tt.force)
			assert.Equal(t, tt.software, b.Software())
			assert.Equal(t, tt.reason, reason)
			assert.Zero(t, dev.LiveQueries(), "trial query must be destroyed")
		})
	}
}

func TestQueryBoxLimit(t *testing.T) {
	boxes := make([]geom.AABB, MaxTestBoxes)
	q := NewQuery(0, boxes, mgl32.Ident4(), false)
	assert.Equal(t, MaxTestBoxes*TrianglesPerBox, q.TriangleCount())

	assert.Panics(t, func() {
		NewQuery(0, make([]geom.AABB, MaxTestBoxes+1), mgl32.Ident4(), false)
	})
}

func TestQueryFailOpen(t *testing.T) {
	q := NewQuery(0, nil, mgl32.Ident4(), false)
	q.SetResult(false, 0)
	assert.True(t, q.Visible(), "unavailable result must count as visible")

	q.SetResult(true, 0)
	assert.False(t, q.Visible())
}

func TestHardwareReleaseIsIdempotent(t *testing.T) {
	dev := capture.New(capture.HardwareCaps())
	h := NewHardware(dev)

	require.True(t, h.Allocate(3))
	assert.Equal(t, 1, dev.LiveQueries())

	h.Release(3)
	h.Release(3)
	h.Release(7)
	assert.Zero(t, dev.LiveQueries())
	assert.Equal(t, 1, dev.Count(capture.OpDestroyQuery))
}

func TestHardwareAllocateFailureAfterExhaustion(t *testing.T) {
	dev := capture.New(capture.HardwareCaps())
	dev.MaxQueries = 1
	h := NewHardware(dev)

	require.True(t, h.Allocate(0))
	assert.False(t, h.Allocate(1))
	assert.False(t, h.Degraded(), "pool exhaustion is not device failure")

	// A failed slot is still safe to release.
	h.Release(1)

	q := NewQuery(1, []geom.AABB{unitBox(mgl32.Vec3{}, 1)}, mgl32.Ident4(), false)
	h.Begin(q)
	h.End(q)
	avail, _ := h.Result(q, false)
	assert.False(t, avail)
}

func TestHardwareDegradedWhenNothingCanBeCreated(t *testing.T) {
	dev := capture.New(capture.HardwareCaps())
	h := NewHardware(dev)
	dev.FailQueryCreation = true

	assert.False(t, h.Allocate(0))
	assert.True(t, h.Degraded())
}

func TestHardwareNonBlockingResult(t *testing.T) {
	dev := capture.New(capture.HardwareCaps())
	dev.Latency = 1
	h := NewHardware(dev)
	require.True(t, h.Allocate(0))

	q := NewQuery(0, []geom.AABB{unitBox(mgl32.Vec3{}, 1)}, mgl32.Ident4(), false)
	h.Begin(q)
	dev.DrawIndexed(q.Vertices, geom.BoxIndexBuffer(1))
	h.End(q)

	avail, _ := h.Result(q, false)
	assert.False(t, avail)
	avail, pixels := h.Result(q, false)
	assert.True(t, avail)
	assert.Positive(t, pixels)
}

func TestHardwareCloseReportsActiveSlots(t *testing.T) {
	dev := capture.New(capture.HardwareCaps())
	h := NewHardware(dev)
	require.True(t, h.Allocate(0))
	require.True(t, h.Allocate(1))

	h.Begin(NewQuery(1, nil, mgl32.Ident4(), false))

	err := h.Close()
	assert.Error(t, err)
	assert.Zero(t, dev.LiveQueries())
}

func TestSoftwareOcclusion(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 100)
	s := NewSoftware()
	s.BeginFrame(proj)

	// A wall five units in front of the camera (camera looks down -Z).
	wall := geom.NewAABB(mgl32.Vec3{-10, -10, -5.5}, mgl32.Vec3{10, 10, -5})
	s.AddOccluder(wall, mgl32.Ident4())

	tests := []struct {
		name    string
		box     geom.AABB
		visible bool
	}{
		{"behind wall", unitBox(mgl32.Vec3{0, 0, -20}, 1), false},
		{"in front of wall", unitBox(mgl32.Vec3{0, 0, -3}, 0.5), true},
		{"around the eye", unitBox(mgl32.Vec3{}, 1), true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.True(t, s.Allocate(i))
			q := NewQuery(i, []geom.AABB{tt.box}, mgl32.Ident4(), false)
			s.Begin(q)
			s.End(q)

			avail, pixels := s.Result(q, false)
			require.True(t, avail, "software results are always available")
			q.SetResult(avail, pixels)
			assert.Equal(t, tt.visible, q.Visible())
		})
	}
}

func TestSoftwareReleaseForgetsResult(t *testing.T) {
	s := NewSoftware()
	require.True(t, s.Allocate(0))
	q := NewQuery(0, []geom.AABB{unitBox(mgl32.Vec3{0, 0, -5}, 1)}, mgl32.Ident4(), false)
	s.End(q)

	s.Release(0)
	s.Release(0)
	avail, _ := s.Result(q, true)
	assert.False(t, avail)
}
