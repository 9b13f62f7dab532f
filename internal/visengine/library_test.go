package visengine

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-vis/pkg/geom"
)

type fakeServices struct {
	failAlloc bool
	allocated map[int]bool
	released  []int
	errors    []string
	depth     int
	entered   int
}

func newServices() *fakeServices {
	return &fakeServices{allocated: make(map[int]bool)}
}

func (s *fakeServices) Error(msg string) { s.errors = append(s.errors, msg) }
func (s *fakeServices) EnterMutex()      { s.depth++; s.entered++ }
func (s *fakeServices) LeaveMutex()      { s.depth-- }

func (s *fakeServices) AllocateQueryObject(index int) bool {
	if s.failAlloc {
		return false
	}
	s.allocated[index] = true
	return true
}

func (s *fakeServices) ReleaseQueryObject(index int) {
	delete(s.allocated, index)
	s.released = append(s.released, index)
}

// recorder answers every GetResult with result and keeps the event log.
type recorder struct {
	events []Event
	result func(e OcclusionQueryGetResult)
}

func (r *recorder) Command(e Event) {
	r.events = append(r.events, e)
	if g, ok := e.(OcclusionQueryGetResult); ok && r.result != nil {
		r.result(g)
	}
}

func (r *recorder) commands() []Command {
	out := make([]Command, len(r.events))
	for i, e := range r.events {
		out[i] = e.Command()
	}
	return out
}

func (r *recorder) count(c Command) int {
	n := 0
	for _, e := range r.events {
		if e.Command() == c {
			n++
		}
	}
	return n
}

func (r *recorder) visibleNodes() []NodeID {
	var out []NodeID
	for _, e := range r.events {
		if v, ok := e.(InstanceVisible); ok {
			out = append(out, v.Instance.Node)
		}
	}
	return out
}

func box(center mgl32.Vec3, half float32) geom.AABB {
	h := mgl32.Vec3{half, half, half}
	return geom.NewAABB(center.Sub(h), center.Add(h))
}

// scene builds one big cell with the camera at the origin looking down -Z.
func scene(t *testing.T, mode Mode) (*Library, *fakeServices, *Cell, *Camera) {
	t.Helper()
	svc := newServices()
	lib := New(mode, svc)
	cell := lib.NewCell("outdoor", geom.NewAABB(mgl32.Vec3{-100, -100, -100}, mgl32.Vec3{100, 100, 100}))
	cam := lib.NewCamera()
	cam.SetProjection(mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 500))
	return lib, svc, cell, cam
}

func TestResolveBracketsQuery(t *testing.T) {
	lib, svc, cell, cam := scene(t, ModeHardware)
	lib.NewObject(cell, 1, box(mgl32.Vec3{0, 0, -10}, 1), mgl32.Ident4(), false)

	rec := &recorder{}
	cam.ResolveVisibility(rec)

	cmds := rec.commands()
	require.NotEmpty(t, cmds)
	assert.Equal(t, CmdQueryBegin, cmds[0])
	assert.Equal(t, CmdViewParametersChanged, cmds[1])
	assert.Equal(t, CmdQueryEnd, cmds[len(cmds)-1])
	assert.Equal(t, 1, svc.entered)
	assert.Zero(t, svc.depth)
}

func TestFrustumCullingAndOrder(t *testing.T) {
	lib, _, cell, cam := scene(t, ModeHardware)
	cam.SetProperties(ViewFrustumCulling)
	lib.NewObject(cell, 1, box(mgl32.Vec3{0, 0, -30}, 1), mgl32.Ident4(), false)
	lib.NewObject(cell, 2, box(mgl32.Vec3{0, 0, -10}, 1), mgl32.Ident4(), false)
	lib.NewObject(cell, 3, box(mgl32.Vec3{0, 0, 30}, 1), mgl32.Ident4(), false)

	rec := &recorder{}
	cam.ResolveVisibility(rec)

	assert.Equal(t, []NodeID{2, 1}, rec.visibleNodes())
	culled, _ := lib.Statistic(StatFrustumCulled)
	assert.Equal(t, float32(1), culled)
}

func TestImmediateQueriesCullHiddenObjects(t *testing.T) {
	lib, _, cell, cam := scene(t, ModeSoftware)
	lib.NewObject(cell, 1, box(mgl32.Vec3{0, 0, -5}, 2), mgl32.Ident4(), true)
	lib.NewObject(cell, 2, box(mgl32.Vec3{0, 0, -20}, 1), mgl32.Ident4(), false)

	rec := &recorder{result: func(e OcclusionQueryGetResult) {
		assert.True(t, e.Query.WaitForResult)
		e.Query.SetResult(true, 0)
	}}
	cam.ResolveVisibility(rec)

	assert.Equal(t, []NodeID{1}, rec.visibleNodes())

	cmds := rec.commands()
	depth := indexOf(cmds, CmdInstanceDrawDepth)
	flush := indexOf(cmds, CmdFlushDepth)
	begin := indexOf(cmds, CmdOcclusionQueryBegin)
	require.True(t, depth >= 0 && flush > depth && begin > flush, "depth pass must precede tests: %v", cmds)
	assert.Equal(t, []Command{
		CmdOcclusionQueryBegin, CmdOcclusionQueryDrawTestDepth,
		CmdOcclusionQueryEnd, CmdOcclusionQueryGetResult,
	}, cmds[begin:begin+4])

	culled, _ := lib.Statistic(StatQueriesCulled)
	assert.Equal(t, float32(1), culled)
}

func indexOf(cmds []Command, c Command) int {
	for i, x := range cmds {
		if x == c {
			return i
		}
	}
	return -1
}

func TestLatentQueriesReadNextFrame(t *testing.T) {
	lib, _, cell, cam := scene(t, ModeHardware)
	lib.NewObject(cell, 7, box(mgl32.Vec3{0, 0, -20}, 1), mgl32.Ident4(), false)

	// Frame 1 issues the test but has nothing to read.
	rec := &recorder{}
	cam.ResolveVisibility(rec)
	assert.Zero(t, rec.count(CmdOcclusionQueryGetResult))
	assert.Equal(t, 1, rec.count(CmdOcclusionQueryBegin))
	assert.Equal(t, []NodeID{7}, rec.visibleNodes())

	// Frame 2: result still in flight, so the object stays visible and no
	// new test is issued.
	rec = &recorder{result: func(e OcclusionQueryGetResult) {
		assert.False(t, e.Query.WaitForResult)
		e.Query.SetResult(false, 0)
	}}
	cam.ResolveVisibility(rec)
	assert.Equal(t, []NodeID{7}, rec.visibleNodes())
	assert.Zero(t, rec.count(CmdOcclusionQueryBegin))

	// Frame 3: the result arrives and hides the object.
	rec = &recorder{result: func(e OcclusionQueryGetResult) { e.Query.SetResult(true, 0) }}
	cam.ResolveVisibility(rec)
	assert.Empty(t, rec.visibleNodes())
	assert.Equal(t, 1, rec.count(CmdOcclusionQueryBegin))
}

func TestLatentQueryDroppedWhenObjectLeavesView(t *testing.T) {
	lib, _, cell, cam := scene(t, ModeHardware)
	lib.NewObject(cell, 7, box(mgl32.Vec3{0, 0, -20}, 1), mgl32.Ident4(), false)

	cam.ResolveVisibility(&recorder{})

	// Looking away for a few frames leaves the old test unread.
	cam.SetCameraToWorld(mgl32.HomogRotate3DY(mgl32.DegToRad(180)))
	for i := 0; i < 3; i++ {
		rec := &recorder{}
		cam.ResolveVisibility(rec)
		require.Empty(t, rec.visibleNodes())
	}

	// Back in view, the old result would hide it. It must not be read.
	cam.SetCameraToWorld(mgl32.Ident4())
	rec := &recorder{result: func(e OcclusionQueryGetResult) { e.Query.SetResult(true, 0) }}
	cam.ResolveVisibility(rec)
	assert.Zero(t, rec.count(CmdOcclusionQueryGetResult))
	assert.Equal(t, 1, rec.count(CmdOcclusionQueryBegin))
	assert.Equal(t, []NodeID{7}, rec.visibleNodes())
}

func TestFailedSlotAllocationIsAlwaysVisible(t *testing.T) {
	lib, svc, cell, cam := scene(t, ModeHardware)
	svc.failAlloc = true
	lib.NewObject(cell, 1, box(mgl32.Vec3{0, 0, -20}, 1), mgl32.Ident4(), false)

	rec := &recorder{}
	cam.ResolveVisibility(rec)

	assert.Equal(t, []NodeID{1}, rec.visibleNodes())
	assert.Zero(t, rec.count(CmdOcclusionQueryBegin))
	assert.Zero(t, lib.SlotsInUse())
}

func TestStencilPortalMasksBeforeColourPass(t *testing.T) {
	lib, _, outdoor, cam := scene(t, ModeHardware)
	cam.SetProperties(ViewFrustumCulling)
	indoor := lib.NewCell("indoor", geom.NewAABB(mgl32.Vec3{-5, -5, -200}, mgl32.Vec3{5, 5, -100}))
	cam.SetCell(outdoor)
	door := []mgl32.Vec3{{-1, -1, -100}, {1, -1, -100}, {1, 1, -100}, {-1, 1, -100}}
	_, err := lib.Connect(outdoor, indoor, PortalStencil, 99, door)
	require.NoError(t, err)
	lib.NewObject(indoor, 5, box(mgl32.Vec3{0, 0, -150}, 1), mgl32.Ident4(), false)

	rec := &recorder{}
	cam.ResolveVisibility(rec)

	cmds := rec.commands()
	mask := indexOf(cmds, CmdStencilMask)
	visible := indexOf(cmds, CmdInstanceVisible)
	require.True(t, mask >= 0 && visible > mask)

	sm := rec.events[mask].(StencilMask)
	assert.Equal(t, NodeID(99), sm.Instance.Node)
	assert.Equal(t, 0, sm.Test)
	assert.Equal(t, 1, sm.Write)
	assert.Equal(t, []NodeID{5}, rec.visibleNodes())
}

func TestMirrorViewUsesClipPlaneAndSwitchesBack(t *testing.T) {
	lib, _, cell, cam := scene(t, ModeHardware)
	cam.SetProperties(ViewFrustumCulling)
	mirror := []mgl32.Vec3{{-5, -5, -50}, {5, -5, -50}, {5, 5, -50}, {-5, 5, -50}}
	_, err := lib.Connect(cell, nil, PortalMirror, 50, mirror)
	require.NoError(t, err)
	// Behind the camera, only visible in the reflection.
	lib.NewObject(cell, 3, box(mgl32.Vec3{0, 0, 10}, 1), mgl32.Ident4(), false)

	rec := &recorder{}
	cam.ResolveVisibility(rec)

	var viewers []Viewer
	for _, e := range rec.events {
		if v, ok := e.(ViewParametersChanged); ok {
			viewers = append(viewers, v.Viewer)
		}
	}
	require.Len(t, viewers, 3)
	assert.False(t, viewers[0].Mirrored)
	assert.True(t, viewers[1].Mirrored)
	assert.Equal(t, 7, viewers[1].FrustumPlaneCount())
	assert.False(t, viewers[2].Mirrored)
	assert.Equal(t, 6, viewers[2].FrustumPlaneCount())
	assert.Equal(t, []NodeID{3}, rec.visibleNodes())
}

func TestDebugLines(t *testing.T) {
	lib, _, cell, cam := scene(t, ModeHardware)
	cam.SetProperties(ViewFrustumCulling)
	cam.SetLineFlags(LineObjectBounds | LineVoxels)
	lib.NewObject(cell, 1, box(mgl32.Vec3{0, 0, -10}, 1), mgl32.Ident4(), false)

	rec := &recorder{}
	cam.ResolveVisibility(rec)

	assert.Equal(t, 24, rec.count(CmdDrawLine3D), "one box for the object and one for the cell")
}

func TestSetModeReleasesSlots(t *testing.T) {
	lib, svc, cell, cam := scene(t, ModeHardware)
	lib.NewObject(cell, 1, box(mgl32.Vec3{0, 0, -10}, 1), mgl32.Ident4(), false)
	cam.ResolveVisibility(&recorder{})
	require.Equal(t, 1, lib.SlotsInUse())

	lib.SetMode(ModeSoftware)
	assert.Zero(t, lib.SlotsInUse())
	assert.Empty(t, svc.allocated)
	assert.Equal(t, ModeSoftware, lib.Mode())
}

func TestRemoveObjectReleasesSlot(t *testing.T) {
	lib, svc, cell, cam := scene(t, ModeHardware)
	lib.NewObject(cell, 1, box(mgl32.Vec3{0, 0, -10}, 1), mgl32.Ident4(), false)
	cam.ResolveVisibility(&recorder{})

	lib.RemoveObject(1)
	lib.RemoveObject(1)
	assert.Equal(t, []int{0}, svc.released)
	assert.Nil(t, lib.Object(1))
	assert.Empty(t, cell.Objects())
}

func TestStatisticsReset(t *testing.T) {
	lib, _, cell, cam := scene(t, ModeHardware)
	lib.NewObject(cell, 1, box(mgl32.Vec3{0, 0, -10}, 1), mgl32.Ident4(), false)
	cam.ResolveVisibility(&recorder{})

	v, ok := lib.Statistic(StatObjects)
	require.True(t, ok)
	assert.Equal(t, float32(1), v)

	lib.ResetStatistics()
	for _, s := range lib.Statistics() {
		assert.Zero(t, s.Value, s.Name)
	}
	_, ok = lib.Statistic("bogus")
	assert.False(t, ok)
}

func TestMutationDuringResolvePanics(t *testing.T) {
	lib, _, cell, cam := scene(t, ModeHardware)
	lib.NewObject(cell, 1, box(mgl32.Vec3{0, 0, -10}, 1), mgl32.Ident4(), false)

	assert.Panics(t, func() {
		cam.ResolveVisibility(CommanderFunc(func(e Event) {
			if _, ok := e.(InstanceVisible); ok {
				lib.MinimizeMemoryUsage()
			}
		}))
	})
}

func TestCameraOutsideCellsReportsError(t *testing.T) {
	_, svc, _, cam := scene(t, ModeHardware)
	cam.SetCameraToWorld(mgl32.Translate3D(1000, 0, 0))

	rec := &recorder{}
	cam.ResolveVisibility(rec)

	assert.Equal(t, []Command{CmdQueryBegin, CmdQueryEnd}, rec.commands())
	assert.Len(t, svc.errors, 1)
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "STENCIL_MASK", CmdStencilMask.String())
	assert.Equal(t, "Command(200)", Command(200).String())
}
