// Package renderer defines the device surface the visibility code drives:
// state push/pop, render-state setters, draw calls, transforms and
// occlusion query objects.
package renderer

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-vis/internal/engine/lighting"
)

// Device is a hardware (or recording) renderer.
// All methods must be called from the thread that owns the device.
type Device interface {
	Caps() Caps

	// Push saves the complete state, Pop restores it.
	Push()
	Pop()
	// PushState saves one field, PopState restores the most recent one.
	PushState(f Field)
	PopState()

	SetFillMode(m FillMode)
	SetCullMode(m CullMode)
	SetDepthTest(enable bool)
	SetDepthWrite(enable bool)
	SetDepthFunc(fn CompareFunc)
	SetAlphaTest(enable bool)
	SetColorWrite(mask ColorMask)
	SetClipPlanes(mask uint32)
	SetClipPlane(index int, plane mgl32.Vec4)
	SetStencilEnable(enable bool)
	SetStencilFunc(fn CompareFunc, ref int, mask uint32)
	SetStencilOps(fail, zfail, pass StencilOp)
	SetDepthRange(near, far float32)
	// SetDepthOnly suppresses colour output for subsequent material draws.
	SetDepthOnly(enable bool)
	SetMirrored(mirrored bool)
	SetMaterial(m Material)
	SetLights(lights, specular *lighting.Container)

	SetWorld(m mgl32.Mat4)
	SetView(m mgl32.Mat4)
	SetProjection(m mgl32.Mat4)

	// State returns a copy of the current state.
	State() State

	// DrawIndexed draws a triangle list with the current transforms.
	DrawIndexed(vertices []mgl32.Vec3, indices []uint16)
	// DrawLines draws world space line pairs with the current view.
	DrawLines(vertices []mgl32.Vec3, colour mgl32.Vec4)
	// DrawScreenLines draws line pairs in normalised device coordinates.
	DrawScreenLines(vertices []mgl32.Vec2, colour mgl32.Vec4)

	CreateOcclusionQuery() (QueryID, bool)
	DestroyOcclusionQuery(id QueryID)
	BeginQuery(id QueryID)
	EndQuery(id QueryID)
	// QueryResult reports the visible sample count. With wait false it
	// never blocks and may report the result as unavailable.
	QueryResult(id QueryID, wait bool) (available bool, pixels int)
}
