package renderer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-vis/internal/engine/lighting"
)

// Field names one render state that can be saved with PushState.
type Field uint8

const (
	FieldFill Field = iota
	FieldCull
	FieldDepthTest
	FieldDepthWrite
	FieldDepthFunc
	FieldAlphaTest
	FieldColorWrite
	FieldClipPlanes
	FieldStencil
	FieldDepthRange
	FieldDepthOnly
)

var fieldNames = [...]string{
	FieldFill:       "fill",
	FieldCull:       "cull",
	FieldDepthTest:  "depth-test",
	FieldDepthWrite: "depth-write",
	FieldDepthFunc:  "depth-func",
	FieldAlphaTest:  "alpha-test",
	FieldColorWrite: "color-write",
	FieldClipPlanes: "clip-planes",
	FieldStencil:    "stencil",
	FieldDepthRange: "depth-range",
	FieldDepthOnly:  "depth-only",
}

func (f Field) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// State is everything Push saves and Pop restores.
type State struct {
	Fill       FillMode
	Cull       CullMode
	DepthTest  bool
	DepthWrite bool
	DepthFunc  CompareFunc
	AlphaTest  bool
	ColorWrite ColorMask
	ClipPlanes uint32
	Stencil    StencilState
	DepthRange [2]float32
	DepthOnly  bool

	World      mgl32.Mat4
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Mirrored   bool

	Material       Material
	Lights         *lighting.Container
	SpecularLights *lighting.Container
}

// DefaultState is the state of a freshly created device.
func DefaultState() State {
	return State{
		Fill:       FillSolid,
		Cull:       CullBack,
		DepthTest:  true,
		DepthWrite: true,
		DepthFunc:  CmpLessEqual,
		ColorWrite: ColorWriteRGB,
		Stencil: StencilState{
			Func:  CmpAlways,
			Mask:  0xff,
			Fail:  StencilKeep,
			ZFail: StencilKeep,
			Pass:  StencilKeep,
		},
		DepthRange: [2]float32{0, 1},
		World:      mgl32.Ident4(),
		View:       mgl32.Ident4(),
		Projection: mgl32.Ident4(),
		Material:   UntexturedMaterial,
	}
}

// copyField copies one field from src into dst.
func copyField(dst *State, src *State, f Field) {
	switch f {
	case FieldFill:
		dst.Fill = src.Fill
	case FieldCull:
		dst.Cull = src.Cull
	case FieldDepthTest:
		dst.DepthTest = src.DepthTest
	case FieldDepthWrite:
		dst.DepthWrite = src.DepthWrite
	case FieldDepthFunc:
		dst.DepthFunc = src.DepthFunc
	case FieldAlphaTest:
		dst.AlphaTest = src.AlphaTest
	case FieldColorWrite:
		dst.ColorWrite = src.ColorWrite
	case FieldClipPlanes:
		dst.ClipPlanes = src.ClipPlanes
	case FieldStencil:
		dst.Stencil = src.Stencil
	case FieldDepthRange:
		dst.DepthRange = src.DepthRange
	case FieldDepthOnly:
		dst.DepthOnly = src.DepthOnly
	default:
		panic(fmt.Sprintf("renderer: unknown state field %d", f))
	}
}

type savedField struct {
	field Field
	value State
}

// StateCache tracks the current render state and the push/pop stacks.
// Devices embed it and apply whatever it reports as changed.
type StateCache struct {
	cur    State
	frames []State
	fields []savedField

	pushes, pops         int
	fieldPush, fieldPops int
}

// NewStateCache returns a cache holding DefaultState.
func NewStateCache() *StateCache {
	return &StateCache{cur: DefaultState()}
}

// Current returns the live state. Callers may modify it in place.
func (c *StateCache) Current() *State {
	return &c.cur
}

// Push saves the complete state.
func (c *StateCache) Push() {
	c.frames = append(c.frames, c.cur)
	c.pushes++
}

// Pop restores the state saved by the matching Push.
func (c *StateCache) Pop() {
	if len(c.frames) == 0 {
		panic("renderer: Pop without matching Push")
	}
	last := len(c.frames) - 1
	c.cur = c.frames[last]
	c.frames = c.frames[:last]
	c.pops++
}

// PushField saves a single field.
func (c *StateCache) PushField(f Field) {
	c.fields = append(c.fields, savedField{field: f, value: c.cur})
	c.fieldPush++
}

// PopField restores the field saved by the matching PushField and returns it.
func (c *StateCache) PopField() Field {
	if len(c.fields) == 0 {
		panic("renderer: PopState without matching PushState")
	}
	last := len(c.fields) - 1
	saved := c.fields[last]
	c.fields = c.fields[:last]
	copyField(&c.cur, &saved.value, saved.field)
	c.fieldPops++
	return saved.field
}

// Depth returns the number of outstanding full and single-field pushes.
func (c *StateCache) Depth() (frames, fields int) {
	return len(c.frames), len(c.fields)
}

// Counters returns lifetime push and pop counts.
func (c *StateCache) Counters() (pushes, pops, fieldPushes, fieldPops int) {
	return c.pushes, c.pops, c.fieldPush, c.fieldPops
}
