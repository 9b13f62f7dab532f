package visibility

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-vis/internal/engine/renderer"
	"github.com/Faultbox/midgard-vis/internal/visengine"
	"github.com/Faultbox/midgard-vis/internal/world"
)

// stencilBits is the part of the stencil buffer portal levels use.
const stencilBits = 0x3f

// stencilMasker writes portal shapes into the stencil buffer so later
// depth draws only touch pixels seen through the portal chain.
type stencilMasker struct {
	portals *Registry[*world.Portal]
}

// mask moves the stencil reference under the portal from ev.Test to
// ev.Write. Decrementing also decrements on depth failure.
func (m *stencilMasker) mask(dev renderer.Device, ev visengine.StencilMask) bool {
	portal, ok := m.portals.Lookup(ev.Instance.Node)
	if !ok || portal == nil {
		return false
	}

	dev.SetMaterial(renderer.UntexturedMaterial)
	dev.SetStencilEnable(true)
	dev.SetStencilFunc(renderer.CmpEqual, ev.Test, stencilBits)
	if ev.Write > ev.Test {
		dev.SetStencilOps(renderer.StencilKeep, renderer.StencilKeep, renderer.StencilIncr)
	} else {
		dev.SetStencilOps(renderer.StencilKeep, renderer.StencilDecr, renderer.StencilDecr)
	}
	dev.SetDepthWrite(false)

	dev.PushState(renderer.FieldColorWrite)
	m.drawModel(dev, portal, ev.Instance.ObjectToCamera)
	dev.SetDepthRange(0, 1)
	dev.SetDepthFunc(renderer.CmpLessEqual)
	dev.SetColorWrite(renderer.ColorWriteRGB)
	dev.PopState()

	dev.SetDepthWrite(true)
	dev.SetStencilFunc(renderer.CmpEqual, ev.Write, stencilBits)
	dev.SetStencilOps(renderer.StencilKeep, renderer.StencilKeep, renderer.StencilKeep)
	return true
}

func (m *stencilMasker) drawModel(dev renderer.Device, p *world.Portal, objectToCamera mgl32.Mat4) {
	dev.SetColorWrite(renderer.ColorWriteNone)
	dev.SetCullMode(renderer.CullNone)
	dev.Push()
	dev.SetWorld(mgl32.Ident4())
	dev.SetView(objectToCamera)
	dev.DrawIndexed(p.Vertices, p.Triangles)
	dev.Pop()
}
