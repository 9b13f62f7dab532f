package renderer

import "github.com/go-gl/mathgl/mgl32"

// FillMode selects solid or wireframe rasterisation.
type FillMode uint8

const (
	FillSolid FillMode = iota
	FillWireframe
)

// CullMode selects which triangle faces are discarded.
type CullMode uint8

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// CompareFunc is a depth or stencil comparison.
type CompareFunc uint8

const (
	CmpNever CompareFunc = iota
	CmpLess
	CmpEqual
	CmpLessEqual
	CmpGreater
	CmpNotEqual
	CmpGreaterEqual
	CmpAlways
)

// StencilOp is the action taken on the stencil buffer.
type StencilOp uint8

const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilReplace
	StencilIncr
	StencilDecr
	StencilInvert
)

// ColorMask selects the colour channels that are written.
type ColorMask uint8

const (
	ColorWriteRed ColorMask = 1 << iota
	ColorWriteGreen
	ColorWriteBlue
	ColorWriteAlpha

	ColorWriteNone ColorMask = 0
	ColorWriteRGB            = ColorWriteRed | ColorWriteGreen | ColorWriteBlue
	ColorWriteAll            = ColorWriteRGB | ColorWriteAlpha
)

// StencilState is the complete stencil configuration.
type StencilState struct {
	Enable bool
	Func   CompareFunc
	Ref    int
	Mask   uint32
	Fail   StencilOp
	ZFail  StencilOp
	Pass   StencilOp
}

// Material is the minimal surface description the visibility code binds.
type Material struct {
	Colour       mgl32.Vec4
	VertexColour bool // Untextured, colour from the vertex stream
	Shaded       bool // Lit by the bound light containers
}

// UntexturedMaterial draws plain geometry with no texture or lighting.
var UntexturedMaterial = Material{Colour: mgl32.Vec4{1, 1, 1, 1}, VertexColour: true}

// Caps describes device capabilities relevant to visibility.
type Caps struct {
	Name              string
	DeviceIndex       int
	MaxUserClipPlanes int
	// ShaderModel is 0 on fixed-function hardware.
	ShaderModel      int
	OcclusionQueries bool
}

// QueryID identifies a device occlusion query object. Zero is never valid.
type QueryID uint32
