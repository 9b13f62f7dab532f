package debug

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-vis/internal/engine/renderer"
	"github.com/Faultbox/midgard-vis/pkg/geom"
)

// LineHelper collects debug lines during a frame and draws them in one go.
// Lines are grouped by colour so each colour costs one draw call.
type LineHelper struct {
	world  map[mgl32.Vec4][]mgl32.Vec3
	screen map[mgl32.Vec4][]mgl32.Vec2
	order  []mgl32.Vec4
	seen   map[mgl32.Vec4]bool
}

// NewLineHelper returns an empty helper.
func NewLineHelper() *LineHelper {
	return &LineHelper{
		world:  make(map[mgl32.Vec4][]mgl32.Vec3),
		screen: make(map[mgl32.Vec4][]mgl32.Vec2),
		seen:   make(map[mgl32.Vec4]bool),
	}
}

func (h *LineHelper) note(colour mgl32.Vec4) {
	if !h.seen[colour] {
		h.seen[colour] = true
		h.order = append(h.order, colour)
	}
}

// DrawLine queues a world space line.
func (h *LineHelper) DrawLine(a, b mgl32.Vec3, colour mgl32.Vec4) {
	h.note(colour)
	h.world[colour] = append(h.world[colour], a, b)
}

// DrawLineScreenSpace queues a line in normalised device coordinates.
func (h *LineHelper) DrawLineScreenSpace(a, b mgl32.Vec2, colour mgl32.Vec4) {
	h.note(colour)
	h.screen[colour] = append(h.screen[colour], a, b)
}

// DrawBox queues the edges of b.
func (h *LineHelper) DrawBox(b geom.AABB, colour mgl32.Vec4) {
	verts := BBoxWireframe(b, 0)
	if verts == nil {
		return
	}
	h.note(colour)
	h.world[colour] = append(h.world[colour], verts...)
}

// Pending returns the number of queued lines.
func (h *LineHelper) Pending() int {
	n := 0
	for _, v := range h.world {
		n += len(v) / 2
	}
	for _, v := range h.screen {
		n += len(v) / 2
	}
	return n
}

// Purge draws every queued line with the current view and clears the queue.
func (h *LineHelper) Purge(dev renderer.Device) {
	if len(h.order) == 0 {
		return
	}
	dev.Push()
	dev.SetWorld(mgl32.Ident4())
	dev.SetMaterial(renderer.UntexturedMaterial)
	dev.SetDepthOnly(false)
	for _, colour := range h.order {
		if v := h.world[colour]; len(v) > 0 {
			dev.DrawLines(v, colour)
		}
		if v := h.screen[colour]; len(v) > 0 {
			dev.DrawScreenLines(v, colour)
		}
	}
	dev.Pop()

	clear(h.world)
	clear(h.screen)
	clear(h.seen)
	h.order = h.order[:0]
}
