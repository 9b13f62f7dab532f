// Package gldevice implements renderer.Device on an OpenGL 4.1 core context.
package gldevice

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-vis/internal/engine/lighting"
	"github.com/Faultbox/midgard-vis/internal/engine/renderer"
	"github.com/Faultbox/midgard-vis/internal/engine/shader"
	"github.com/Faultbox/midgard-vis/internal/logger"
)

// maxClipPlanes is the number of clip distances the shader writes.
const maxClipPlanes = 2

const vertexSrc = `
#version 410 core

layout (location = 0) in vec3 aPos;

uniform mat4 uWorld;
uniform mat4 uView;
uniform mat4 uProjection;
uniform vec4 uClip[2];

out float gl_ClipDistance[2];

void main() {
	gl_Position = uProjection * uView * uWorld * vec4(aPos, 1.0);
	gl_ClipDistance[0] = dot(uClip[0], gl_Position);
	gl_ClipDistance[1] = dot(uClip[1], gl_Position);
}
`

const fragmentSrc = `
#version 410 core

uniform vec4 uColour;
uniform vec4 uLight;
uniform int uAlphaTest;

out vec4 FragColor;

void main() {
	vec4 c = uColour * uLight;
	if (uAlphaTest != 0 && c.a < 0.5) {
		discard;
	}
	FragColor = c;
}
`

// Device drives GL state from a renderer.StateCache.
type Device struct {
	cache   *renderer.StateCache
	caps    renderer.Caps
	program *shader.Program
	clip    [maxClipPlanes]mgl32.Vec4
	queries map[renderer.QueryID]bool

	vao, vbo, ebo uint32

	log *zap.Logger
}

// New creates the device. The GL context must be current on the calling thread.
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	d := &Device{
		cache:   renderer.NewStateCache(),
		queries: make(map[renderer.QueryID]bool),
		log:     logger.Named("gldevice"),
	}
	d.caps = probeCaps()
	d.log.Info("OpenGL initialized",
		zap.String("renderer", d.caps.Name),
		zap.Int("clipPlanes", d.caps.MaxUserClipPlanes),
		zap.Bool("occlusionQueries", d.caps.OcclusionQueries),
	)

	var err error
	d.program, err = shader.Compile(vertexSrc, fragmentSrc)
	if err != nil {
		return nil, fmt.Errorf("failed to create shader program: %w", err)
	}

	gl.GenVertexArrays(1, &d.vao)
	gl.GenBuffers(1, &d.vbo)
	gl.GenBuffers(1, &d.ebo)
	gl.BindVertexArray(d.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, d.ebo)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 3*4, 0)
	gl.EnableVertexAttribArray(0)
	gl.BindVertexArray(0)

	d.applyAll()
	return d, nil
}

func probeCaps() renderer.Caps {
	var clipPlanes, counterBits int32
	gl.GetIntegerv(gl.MAX_CLIP_DISTANCES, &clipPlanes)
	gl.GetQueryiv(gl.SAMPLES_PASSED, gl.QUERY_COUNTER_BITS, &counterBits)
	if clipPlanes > maxClipPlanes {
		clipPlanes = maxClipPlanes
	}
	return renderer.Caps{
		Name:              gl.GoStr(gl.GetString(gl.RENDERER)),
		MaxUserClipPlanes: int(clipPlanes),
		ShaderModel:       4,
		OcclusionQueries:  counterBits > 0,
	}
}

// Close releases GL objects. Query objects still alive are deleted too.
func (d *Device) Close() {
	d.log.Info("closing device", zap.Int("liveQueries", len(d.queries)))
	for id := range d.queries {
		d.DestroyOcclusionQuery(id)
	}
	if d.vao != 0 {
		gl.DeleteVertexArrays(1, &d.vao)
	}
	if d.vbo != 0 {
		gl.DeleteBuffers(1, &d.vbo)
	}
	if d.ebo != 0 {
		gl.DeleteBuffers(1, &d.ebo)
	}
	d.program.Delete()
}

// Resize sets the viewport.
func (d *Device) Resize(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
}

// BeginFrame clears colour, depth and stencil.
func (d *Device) BeginFrame() {
	gl.DepthMask(true)
	gl.ColorMask(true, true, true, true)
	gl.StencilMask(0xff)
	gl.ClearColor(0.1, 0.1, 0.15, 1.0)
	gl.ClearStencil(0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT | gl.STENCIL_BUFFER_BIT)
	d.applyAll()
}

func (d *Device) Caps() renderer.Caps { return d.caps }

func (d *Device) State() renderer.State { return *d.cache.Current() }

func (d *Device) Push() { d.cache.Push() }

func (d *Device) Pop() {
	d.cache.Pop()
	d.applyAll()
}

func (d *Device) PushState(f renderer.Field) { d.cache.PushField(f) }

func (d *Device) PopState() {
	d.cache.PopField()
	d.applyAll()
}

func (d *Device) SetFillMode(m renderer.FillMode) {
	d.cache.Current().Fill = m
	applyFill(m)
}

func (d *Device) SetCullMode(m renderer.CullMode) {
	d.cache.Current().Cull = m
	applyCull(m)
}

func (d *Device) SetDepthTest(enable bool) {
	d.cache.Current().DepthTest = enable
	toggle(gl.DEPTH_TEST, enable)
}

func (d *Device) SetDepthWrite(enable bool) {
	d.cache.Current().DepthWrite = enable
	gl.DepthMask(enable)
}

func (d *Device) SetDepthFunc(fn renderer.CompareFunc) {
	d.cache.Current().DepthFunc = fn
	gl.DepthFunc(compareFunc(fn))
}

func (d *Device) SetAlphaTest(enable bool) {
	d.cache.Current().AlphaTest = enable
}

func (d *Device) SetColorWrite(mask renderer.ColorMask) {
	d.cache.Current().ColorWrite = mask
	d.applyColorMask()
}

func (d *Device) SetClipPlanes(mask uint32) {
	d.cache.Current().ClipPlanes = mask
	applyClipMask(mask)
}

func (d *Device) SetClipPlane(index int, plane mgl32.Vec4) {
	if index < 0 || index >= maxClipPlanes {
		d.log.Warn("clip plane index out of range", zap.Int("index", index))
		return
	}
	d.clip[index] = plane
}

func (d *Device) SetStencilEnable(enable bool) {
	d.cache.Current().Stencil.Enable = enable
	toggle(gl.STENCIL_TEST, enable)
}

func (d *Device) SetStencilFunc(fn renderer.CompareFunc, ref int, mask uint32) {
	s := &d.cache.Current().Stencil
	s.Func, s.Ref, s.Mask = fn, ref, mask
	gl.StencilFunc(compareFunc(fn), int32(ref), mask)
}

func (d *Device) SetStencilOps(fail, zfail, pass renderer.StencilOp) {
	s := &d.cache.Current().Stencil
	s.Fail, s.ZFail, s.Pass = fail, zfail, pass
	gl.StencilOp(stencilOp(fail), stencilOp(zfail), stencilOp(pass))
}

func (d *Device) SetDepthRange(near, far float32) {
	d.cache.Current().DepthRange = [2]float32{near, far}
	gl.DepthRange(float64(near), float64(far))
}

func (d *Device) SetDepthOnly(enable bool) {
	d.cache.Current().DepthOnly = enable
	d.applyColorMask()
}

func (d *Device) SetMirrored(mirrored bool) {
	d.cache.Current().Mirrored = mirrored
	applyWinding(mirrored)
}

func (d *Device) SetMaterial(m renderer.Material) { d.cache.Current().Material = m }

func (d *Device) SetLights(lights, specular *lighting.Container) {
	s := d.cache.Current()
	s.Lights, s.SpecularLights = lights, specular
}

func (d *Device) SetWorld(m mgl32.Mat4)      { d.cache.Current().World = m }
func (d *Device) SetView(m mgl32.Mat4)       { d.cache.Current().View = m }
func (d *Device) SetProjection(m mgl32.Mat4) { d.cache.Current().Projection = m }

func (d *Device) DrawIndexed(vertices []mgl32.Vec3, indices []uint16) {
	if len(vertices) == 0 || len(indices) == 0 {
		return
	}
	s := d.cache.Current()
	d.bindProgram(s.World, s.View, s.Projection, s.Material.Colour, d.lightFactor(s))

	gl.BindVertexArray(d.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*3*4, gl.Ptr(&vertices[0]), gl.STREAM_DRAW)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, d.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*2, gl.Ptr(&indices[0]), gl.STREAM_DRAW)
	gl.DrawElementsWithOffset(gl.TRIANGLES, int32(len(indices)), gl.UNSIGNED_SHORT, 0)
	gl.BindVertexArray(0)
}

func (d *Device) DrawLines(vertices []mgl32.Vec3, colour mgl32.Vec4) {
	s := d.cache.Current()
	d.drawLines(vertices, mgl32.Ident4(), s.View, s.Projection, colour)
}

func (d *Device) DrawScreenLines(vertices []mgl32.Vec2, colour mgl32.Vec4) {
	flat := make([]mgl32.Vec3, len(vertices))
	for i, v := range vertices {
		flat[i] = v.Vec3(0)
	}
	d.drawLines(flat, mgl32.Ident4(), mgl32.Ident4(), mgl32.Ident4(), colour)
}

func (d *Device) drawLines(vertices []mgl32.Vec3, world, view, proj mgl32.Mat4, colour mgl32.Vec4) {
	if len(vertices) < 2 {
		return
	}
	d.bindProgram(world, view, proj, colour, mgl32.Vec4{1, 1, 1, 1})
	gl.BindVertexArray(d.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*3*4, gl.Ptr(&vertices[0]), gl.STREAM_DRAW)
	gl.DrawArrays(gl.LINES, 0, int32(len(vertices)))
	gl.BindVertexArray(0)
}

func (d *Device) bindProgram(world, view, proj mgl32.Mat4, colour, light mgl32.Vec4) {
	d.program.Use()
	gl.UniformMatrix4fv(d.program.Uniform("uWorld"), 1, false, &world[0])
	gl.UniformMatrix4fv(d.program.Uniform("uView"), 1, false, &view[0])
	gl.UniformMatrix4fv(d.program.Uniform("uProjection"), 1, false, &proj[0])
	gl.Uniform4fv(d.program.Uniform("uClip"), maxClipPlanes, &d.clip[0][0])
	gl.Uniform4fv(d.program.Uniform("uColour"), 1, &colour[0])
	gl.Uniform4fv(d.program.Uniform("uLight"), 1, &light[0])
	alpha := int32(0)
	if d.cache.Current().AlphaTest {
		alpha = 1
	}
	gl.Uniform1i(d.program.Uniform("uAlphaTest"), alpha)
}

// lightFactor approximates the bound containers with a flat term.
func (d *Device) lightFactor(s *renderer.State) mgl32.Vec4 {
	if !s.Material.Shaded || s.Lights == nil {
		return mgl32.Vec4{1, 1, 1, 1}
	}
	f := s.Lights.Ambient
	if sun := s.Lights.Sun(); sun != nil {
		f = f.Add(sun.Colour.Mul(0.5))
	}
	f[3] = 1
	return f
}

func (d *Device) CreateOcclusionQuery() (renderer.QueryID, bool) {
	if !d.caps.OcclusionQueries {
		return 0, false
	}
	var id uint32
	gl.GenQueries(1, &id)
	if id == 0 {
		return 0, false
	}
	d.queries[renderer.QueryID(id)] = true
	return renderer.QueryID(id), true
}

func (d *Device) DestroyOcclusionQuery(id renderer.QueryID) {
	if !d.queries[id] {
		return
	}
	raw := uint32(id)
	gl.DeleteQueries(1, &raw)
	delete(d.queries, id)
}

func (d *Device) BeginQuery(id renderer.QueryID) { gl.BeginQuery(gl.SAMPLES_PASSED, uint32(id)) }

func (d *Device) EndQuery(id renderer.QueryID) { gl.EndQuery(gl.SAMPLES_PASSED) }

func (d *Device) QueryResult(id renderer.QueryID, wait bool) (bool, int) {
	if !wait {
		var ready uint32
		gl.GetQueryObjectuiv(uint32(id), gl.QUERY_RESULT_AVAILABLE, &ready)
		if ready == gl.FALSE {
			return false, 0
		}
	}
	var samples uint32
	gl.GetQueryObjectuiv(uint32(id), gl.QUERY_RESULT, &samples)
	return true, int(samples)
}

// applyAll pushes the cached state to GL after a pop.
func (d *Device) applyAll() {
	s := d.cache.Current()
	applyFill(s.Fill)
	applyCull(s.Cull)
	toggle(gl.DEPTH_TEST, s.DepthTest)
	gl.DepthMask(s.DepthWrite)
	gl.DepthFunc(compareFunc(s.DepthFunc))
	d.applyColorMask()
	applyClipMask(s.ClipPlanes)
	toggle(gl.STENCIL_TEST, s.Stencil.Enable)
	gl.StencilFunc(compareFunc(s.Stencil.Func), int32(s.Stencil.Ref), s.Stencil.Mask)
	gl.StencilOp(stencilOp(s.Stencil.Fail), stencilOp(s.Stencil.ZFail), stencilOp(s.Stencil.Pass))
	gl.DepthRange(float64(s.DepthRange[0]), float64(s.DepthRange[1]))
	applyWinding(s.Mirrored)
}

func (d *Device) applyColorMask() {
	s := d.cache.Current()
	m := s.ColorWrite
	if s.DepthOnly {
		m = renderer.ColorWriteNone
	}
	gl.ColorMask(m&renderer.ColorWriteRed != 0, m&renderer.ColorWriteGreen != 0,
		m&renderer.ColorWriteBlue != 0, m&renderer.ColorWriteAlpha != 0)
}

func applyFill(m renderer.FillMode) {
	if m == renderer.FillWireframe {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
	} else {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
	}
}

func applyCull(m renderer.CullMode) {
	switch m {
	case renderer.CullBack:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	case renderer.CullFront:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.FRONT)
	default:
		gl.Disable(gl.CULL_FACE)
	}
}

// Mirrored views flip triangle winding.
func applyWinding(mirrored bool) {
	if mirrored {
		gl.FrontFace(gl.CW)
	} else {
		gl.FrontFace(gl.CCW)
	}
}

func applyClipMask(mask uint32) {
	for i := 0; i < maxClipPlanes; i++ {
		toggle(gl.CLIP_DISTANCE0+uint32(i), mask&(1<<i) != 0)
	}
}

func toggle(capability uint32, enable bool) {
	if enable {
		gl.Enable(capability)
	} else {
		gl.Disable(capability)
	}
}

func compareFunc(fn renderer.CompareFunc) uint32 {
	switch fn {
	case renderer.CmpNever:
		return gl.NEVER
	case renderer.CmpLess:
		return gl.LESS
	case renderer.CmpEqual:
		return gl.EQUAL
	case renderer.CmpLessEqual:
		return gl.LEQUAL
	case renderer.CmpGreater:
		return gl.GREATER
	case renderer.CmpNotEqual:
		return gl.NOTEQUAL
	case renderer.CmpGreaterEqual:
		return gl.GEQUAL
	default:
		return gl.ALWAYS
	}
}

func stencilOp(op renderer.StencilOp) uint32 {
	switch op {
	case renderer.StencilZero:
		return gl.ZERO
	case renderer.StencilReplace:
		return gl.REPLACE
	case renderer.StencilIncr:
		return gl.INCR
	case renderer.StencilDecr:
		return gl.DECR
	case renderer.StencilInvert:
		return gl.INVERT
	default:
		return gl.KEEP
	}
}

var _ renderer.Device = (*Device)(nil)
