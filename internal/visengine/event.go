package visengine

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-vis/internal/occlusion"
	"github.com/Faultbox/midgard-vis/pkg/geom"
)

// Command tags an Event.
type Command uint8

const (
	CmdQueryBegin Command = iota
	CmdQueryEnd
	CmdFlushDepth
	CmdInstanceDrawDepth
	CmdInstanceVisible
	CmdOcclusionQueryBegin
	CmdOcclusionQueryEnd
	CmdOcclusionQueryGetResult
	CmdOcclusionQueryDrawTestDepth
	CmdViewParametersChanged
	CmdStencilMask
	CmdDrawLine2D
	CmdDrawLine3D
)

var commandNames = [...]string{
	CmdQueryBegin:                  "QUERY_BEGIN",
	CmdQueryEnd:                    "QUERY_END",
	CmdFlushDepth:                  "FLUSH_DEPTH",
	CmdInstanceDrawDepth:           "INSTANCE_DRAW_DEPTH",
	CmdInstanceVisible:             "INSTANCE_VISIBLE",
	CmdOcclusionQueryBegin:         "OCCLUSION_QUERY_BEGIN",
	CmdOcclusionQueryEnd:           "OCCLUSION_QUERY_END",
	CmdOcclusionQueryGetResult:     "OCCLUSION_QUERY_GET_RESULT",
	CmdOcclusionQueryDrawTestDepth: "OCCLUSION_QUERY_DRAW_TEST_DEPTH",
	CmdViewParametersChanged:       "VIEW_PARAMETERS_CHANGED",
	CmdStencilMask:                 "STENCIL_MASK",
	CmdDrawLine2D:                  "DRAW_LINE_2D",
	CmdDrawLine3D:                  "DRAW_LINE_3D",
}

func (c Command) String() string {
	if int(c) < len(commandNames) {
		return commandNames[c]
	}
	return fmt.Sprintf("Command(%d)", uint8(c))
}

// Event is one callback delivered to a Commander during a query.
type Event interface {
	Command() Command
}

// Instance is an object as seen from the current viewer.
type Instance struct {
	Node           NodeID
	ObjectToCamera mgl32.Mat4
}

// Viewer describes the view a following run of events is drawn from.
type Viewer struct {
	CameraToWorld mgl32.Mat4
	Mirrored      bool
	// FrustumPlanes are in camera space. A seventh plane, when present,
	// is a user clip plane for views through a mirror.
	FrustumPlanes []geom.Plane
}

// FrustumPlaneCount returns len(FrustumPlanes).
func (v Viewer) FrustumPlaneCount() int { return len(v.FrustumPlanes) }

type (
	QueryBegin struct{}
	QueryEnd   struct{}
	FlushDepth struct{}

	InstanceDrawDepth struct{ Instance Instance }
	InstanceVisible   struct{ Instance Instance }

	OcclusionQueryBegin         struct{ Query *occlusion.Query }
	OcclusionQueryEnd           struct{ Query *occlusion.Query }
	OcclusionQueryGetResult     struct{ Query *occlusion.Query }
	OcclusionQueryDrawTestDepth struct{ Query *occlusion.Query }

	ViewParametersChanged struct{ Viewer Viewer }

	// StencilMask asks for a portal's shape to be written into the stencil
	// buffer, moving the reference from Test to Write.
	StencilMask struct {
		Instance Instance
		Test     int
		Write    int
	}

	// DrawLine2D is in normalised device coordinates.
	DrawLine2D struct {
		A, B   mgl32.Vec2
		Colour mgl32.Vec4
	}

	// DrawLine3D is in world space.
	DrawLine3D struct {
		A, B   mgl32.Vec3
		Colour mgl32.Vec4
	}
)

func (QueryBegin) Command() Command                  { return CmdQueryBegin }
func (QueryEnd) Command() Command                    { return CmdQueryEnd }
func (FlushDepth) Command() Command                  { return CmdFlushDepth }
func (InstanceDrawDepth) Command() Command           { return CmdInstanceDrawDepth }
func (InstanceVisible) Command() Command             { return CmdInstanceVisible }
func (OcclusionQueryBegin) Command() Command         { return CmdOcclusionQueryBegin }
func (OcclusionQueryEnd) Command() Command           { return CmdOcclusionQueryEnd }
func (OcclusionQueryGetResult) Command() Command     { return CmdOcclusionQueryGetResult }
func (OcclusionQueryDrawTestDepth) Command() Command { return CmdOcclusionQueryDrawTestDepth }
func (ViewParametersChanged) Command() Command       { return CmdViewParametersChanged }
func (StencilMask) Command() Command                 { return CmdStencilMask }
func (DrawLine2D) Command() Command                  { return CmdDrawLine2D }
func (DrawLine3D) Command() Command                  { return CmdDrawLine3D }

// Commander receives the events of a query in order.
type Commander interface {
	Command(e Event)
}

// CommanderFunc adapts a function to Commander.
type CommanderFunc func(e Event)

func (f CommanderFunc) Command(e Event) { f(e) }

// Services are the host hooks the library calls.
type Services interface {
	// Error reports an internal library error.
	Error(msg string)
	// EnterMutex and LeaveMutex bracket library work. Hosts assert the
	// calling thread here rather than locking.
	EnterMutex()
	LeaveMutex()
	AllocateQueryObject(index int) bool
	ReleaseQueryObject(index int)
}
