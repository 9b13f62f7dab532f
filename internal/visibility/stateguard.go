package visibility

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-vis/internal/engine/renderer"
)

// depthTestState switches the device between normal drawing and the
// depth-test-only state used for occlusion test geometry. Redundant
// calls are no-ops, and every enable is matched by exactly one Pop.
type depthTestState struct {
	enabled bool
}

// enable saves the current state and configures depth testing without
// writes: no colour, no culling, no alpha test, identity world and user
// clip planes off.
func (s *depthTestState) enable(dev renderer.Device, clipEnabled bool) {
	if s.enabled {
		return
	}
	dev.Push()
	dev.PushState(renderer.FieldCull)
	dev.PushState(renderer.FieldAlphaTest)
	dev.PushState(renderer.FieldColorWrite)

	dev.SetAlphaTest(false)
	dev.SetDepthWrite(false)
	dev.SetDepthTest(true)
	dev.SetDepthFunc(renderer.CmpLessEqual)
	dev.SetColorWrite(renderer.ColorWriteNone)
	dev.SetCullMode(renderer.CullNone)
	if clipEnabled {
		dev.SetClipPlanes(0)
	}
	dev.SetWorld(mgl32.Ident4())
	s.enabled = true
}

// disable restores what enable saved.
func (s *depthTestState) disable(dev renderer.Device, clipEnabled bool) {
	if !s.enabled {
		return
	}
	if clipEnabled {
		dev.SetClipPlanes(1)
	}
	dev.SetDepthTest(true)
	dev.SetDepthWrite(true)
	dev.SetColorWrite(renderer.ColorWriteRGB)
	dev.PopState()
	dev.PopState()
	dev.PopState()
	dev.Pop()
	s.enabled = false
}
