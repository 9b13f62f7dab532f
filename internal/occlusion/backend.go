// Package occlusion tests proxy geometry against already drawn occluders,
// either with device occlusion queries or with a CPU depth buffer.
package occlusion

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-vis/internal/engine/renderer"
	"github.com/Faultbox/midgard-vis/internal/logger"
	"github.com/Faultbox/midgard-vis/pkg/geom"
)

// Backend owns a pool of query slots and answers occlusion tests.
// Failures are reported as booleans; a Backend never panics on device
// trouble.
type Backend interface {
	// Software reports whether results come from the CPU rasteriser.
	Software() bool
	// Allocate creates the resource for slot index. False means the caller
	// treats that slot as always visible.
	Allocate(index int) bool
	// Release destroys slot index. Empty slots are ignored.
	Release(index int)
	// BeginFrame sets the projection for CPU tests and clears occluders.
	BeginFrame(projection mgl32.Mat4)
	// AddOccluder records a box already drawn into the depth buffer.
	AddOccluder(box geom.AABB, toCamera mgl32.Mat4)
	Begin(q *Query)
	End(q *Query)
	// Result reads the visible pixel count. With wait false it never
	// blocks and may report the result as unavailable.
	Result(q *Query, wait bool) (available bool, pixels int)
	// Close releases every slot.
	Close() error
}

// Reason explains a backend choice.
type Reason string

const (
	ReasonHardware     Reason = "hardware queries available"
	ReasonForced       Reason = "software forced by configuration"
	ReasonUnsupported  Reason = "device has no occlusion queries"
	ReasonFixedFunc    Reason = "fixed-function device"
	ReasonTrialFailed  Reason = "trial query creation failed"
	ReasonDeviceFailed Reason = "device stopped creating queries"
)

// Select picks hardware queries when the device supports them, is not
// fixed-function, can create a trial query and software is not forced.
// Anything else falls back to Software.
func Select(dev renderer.Device, forceSoftware bool) (Backend, Reason) {
	log := logger.Named("occlusion")
	reason := probe(dev, forceSoftware)
	caps := dev.Caps()
	if reason == ReasonHardware {
		log.Info("using hardware occlusion", zap.String("device", caps.Name))
		return NewHardware(dev), reason
	}
	log.Info("using software occlusion",
		zap.String("device", caps.Name),
		zap.String("reason", string(reason)),
	)
	return NewSoftware(), reason
}

func probe(dev renderer.Device, forceSoftware bool) Reason {
	caps := dev.Caps()
	switch {
	case forceSoftware:
		return ReasonForced
	case !caps.OcclusionQueries:
		return ReasonUnsupported
	case caps.ShaderModel == 0:
		return ReasonFixedFunc
	}
	id, ok := dev.CreateOcclusionQuery()
	if !ok {
		return ReasonTrialFailed
	}
	dev.DestroyOcclusionQuery(id)
	return ReasonHardware
}
