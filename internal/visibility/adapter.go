// Package visibility connects the visibility library to the renderer. It
// owns the occlusion backend and the Commander that turns library events
// into draw calls, and must only be used from the render thread.
package visibility

import (
	"errors"
	"runtime"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-vis/internal/config"
	"github.com/Faultbox/midgard-vis/internal/engine/debug"
	"github.com/Faultbox/midgard-vis/internal/engine/renderer"
	"github.com/Faultbox/midgard-vis/internal/logger"
	"github.com/Faultbox/midgard-vis/internal/occlusion"
	"github.com/Faultbox/midgard-vis/internal/visengine"
	"github.com/Faultbox/midgard-vis/internal/world"
	"github.com/Faultbox/midgard-vis/pkg/geom"
)

// ErrNotInitialised is returned by Fini without a matching Init.
var ErrNotInitialised = errors.New("visibility: not initialised")

// Deps are the host services the adapter draws with.
type Deps struct {
	Device renderer.Device
	// World may be nil, in which case flushes only reset chunk state.
	World world.World
	// Lines collects debug lines. A fresh helper is used when nil.
	Lines *debug.LineHelper
}

// Adapter is the process-wide bridge between the visibility library and
// the renderer.
type Adapter struct {
	log   *zap.Logger
	guard threadGuard

	flags   Flags
	dev     renderer.Device
	world   world.World
	lines   *debug.LineHelper
	lib     *visengine.Library
	backend occlusion.Backend
	reason  occlusion.Reason

	softwareMode     bool
	clipPlaneSupport bool
	testIndices      []uint16
	terrainOverride  func()

	items     *Registry[world.DrawItem]
	portals   *Registry[*world.Portal]
	commander *Commander
	updates   <-chan *config.Config
}

var instance *Adapter

// Init creates the adapter for the device in deps and binds it to the
// calling goroutine's OS thread. Calling Init twice without Fini panics.
func Init(flags Flags, deps Deps) *Adapter {
	if instance != nil {
		panic("visibility: Init called twice")
	}
	if deps.Device == nil {
		panic("visibility: Init without a device")
	}

	runtime.LockOSThread()
	a := &Adapter{
		log:     logger.Named("visibility"),
		flags:   flags,
		dev:     deps.Device,
		world:   deps.World,
		lines:   deps.Lines,
		items:   NewRegistry[world.DrawItem](),
		portals: NewRegistry[*world.Portal](),
	}
	a.guard.bind()
	if a.lines == nil {
		a.lines = debug.NewLineHelper()
	}

	caps := a.dev.Caps()
	a.clipPlaneSupport = caps.MaxUserClipPlanes > 0
	a.backend, a.reason = occlusion.Select(a.dev, flags.ForceSoftware)
	a.softwareMode = a.backend.Software()
	a.testIndices = geom.BoxIndexBuffer(occlusion.MaxTestBoxes)
	a.lib = visengine.New(modeOf(a.softwareMode), a)
	a.commander = newCommander(a)
	instance = a

	state := "Off"
	if flags.Enabled {
		state = "On"
	}
	a.log.Info("visibility: "+state,
		zap.Bool("software", a.softwareMode),
		zap.String("reason", string(a.reason)),
		zap.Bool("clipPlanes", a.clipPlaneSupport))
	return a
}

// Instance returns the initialised adapter, or nil.
func Instance() *Adapter { return instance }

// Fini releases every query object and unbinds the render thread. It
// must run before the device is destroyed.
func Fini() error {
	a := instance
	if a == nil {
		return ErrNotInitialised
	}
	a.guard.check("Fini")
	if a.commander.active {
		panic("visibility: Fini inside a query")
	}

	var err error
	a.lib.Close()
	err = multierr.Append(err, a.backend.Close())
	a.lines.Purge(a.dev)

	instance = nil
	a.guard.release()
	runtime.UnlockOSThread()
	a.log.Info("visibility: shut down")
	return err
}

func modeOf(software bool) visengine.Mode {
	if software {
		return visengine.ModeSoftware
	}
	return visengine.ModeHardware
}

// Library returns the visibility library the adapter feeds.
func (a *Adapter) Library() *visengine.Library { return a.lib }

// Items maps object nodes to the draw items they stand for.
func (a *Adapter) Items() *Registry[world.DrawItem] { return a.items }

// Portals maps stencil portal nodes to their stencil models.
func (a *Adapter) Portals() *Registry[*world.Portal] { return a.portals }

// Commander returns the event sink for ResolveVisibility.
func (a *Adapter) Commander() *Commander { return a.commander }

// Lines returns the debug line collector.
func (a *Adapter) Lines() *debug.LineHelper { return a.lines }

// SoftwareMode reports whether occlusion runs on the CPU.
func (a *Adapter) SoftwareMode() bool { return a.softwareMode }

// SelectionReason explains the current backend choice.
func (a *Adapter) SelectionReason() occlusion.Reason { return a.reason }

// ClipPlaneSupported reports whether mirror views get a user clip plane.
func (a *Adapter) ClipPlaneSupported() bool { return a.clipPlaneSupport }

// SetTerrainOverride replaces terrain drawing during flushes. Nil
// restores the camera space's terrain.
func (a *Adapter) SetTerrainOverride(fn func()) { a.terrainOverride = fn }

// SetConfigSource makes Tick apply the visibility section of configs
// arriving on ch.
func (a *Adapter) SetConfigSource(ch <-chan *config.Config) { a.updates = ch }

// ApplyConfig replaces every flag with the config values.
func (a *Adapter) ApplyConfig(c config.VisibilityConfig) {
	a.flags = FlagsFromConfig(c)
	a.log.Info("visibility flags updated", zap.Any("flags", a.flags))
}

// Tick starts a frame: pending config and backend changes are applied,
// statistics reset and the repeat cache cleared.
func (a *Adapter) Tick() {
	a.guard.check("Tick")
	if a.commander.active {
		panic("visibility: Tick inside a query")
	}
	if a.updates != nil {
		select {
		case cfg := <-a.updates:
			if cfg != nil {
				a.ApplyConfig(cfg.Visibility)
				logger.SetLevel(cfg.Logging.Level)
			}
		default:
		}
	}
	a.reselect()
	a.lib.ResetStatistics()
	a.commander.cached = a.commander.cached[:0]
}

type degradable interface {
	Degraded() bool
}

// reselect swaps the backend when the force-software flag changed or the
// device stopped creating queries.
func (a *Adapter) reselect() {
	switch {
	case a.flags.ForceSoftware && !a.softwareMode:
		a.swapBackend(occlusion.NewSoftware(), occlusion.ReasonForced)
	case !a.flags.ForceSoftware && a.reason == occlusion.ReasonForced:
		b, reason := occlusion.Select(a.dev, false)
		a.swapBackend(b, reason)
	default:
		if d, ok := a.backend.(degradable); ok && d.Degraded() {
			a.swapBackend(occlusion.NewSoftware(), occlusion.ReasonDeviceFailed)
		}
	}
}

func (a *Adapter) swapBackend(b occlusion.Backend, reason occlusion.Reason) {
	if b.Software() && a.softwareMode {
		// Already on the CPU; keep the slots we have.
		_ = b.Close()
		a.reason = reason
		return
	}
	// Slots are released through the old backend first.
	a.lib.SetMode(modeOf(b.Software()))
	if err := a.backend.Close(); err != nil {
		a.log.Warn("closing occlusion backend", zap.Error(err))
	}
	a.backend = b
	a.reason = reason
	a.softwareMode = b.Software()
	a.log.Info("occlusion backend changed",
		zap.Bool("software", a.softwareMode),
		zap.String("reason", string(reason)))
}

// Enabled reports whether the host should resolve visibility at all.
func (a *Adapter) Enabled() bool { return a.flags.Enabled }

// Resolve runs one query from cam through the commander. It reports
// false and draws nothing when visibility is disabled.
func (a *Adapter) Resolve(cam *visengine.Camera) bool {
	a.guard.check("Resolve")
	if !a.flags.Enabled {
		return false
	}
	cam.SetProperties(a.flags.Properties())
	cam.SetLineFlags(a.flags.LineFlags())
	cam.SetProjection(a.dev.State().Projection)
	cam.ResolveVisibility(a.commander)
	return true
}

// Repeat redraws the last query's visible set, for passes such as a
// wireframe overlay that reuse the result.
func (a *Adapter) Repeat() { a.commander.repeat() }

// FinishFoliage draws the foliage queue when trees are not flushed as
// occluders. Such trees are always treated as visible.
func (a *Adapter) FinishFoliage() {
	a.guard.check("FinishFoliage")
	if a.flags.FlushTrees || a.world == nil {
		return
	}
	if f := a.world.Foliage(); f != nil {
		f.DrawAll(a.dev)
	}
}

// MinimiseMemoryUsage drops cached library data. It must not be called
// during a query.
func (a *Adapter) MinimiseMemoryUsage() {
	a.guard.check("MinimiseMemoryUsage")
	if a.commander.active {
		panic("visibility: MinimiseMemoryUsage inside a query")
	}
	a.lib.MinimizeMemoryUsage()
}

// Statistics returns the library counters for the current frame.
func (a *Adapter) Statistics() []visengine.Statistic { return a.lib.Statistics() }

// Statistic returns one counter by name.
func (a *Adapter) Statistic(name string) (float32, bool) { return a.lib.Statistic(name) }

// Services

func (a *Adapter) Error(msg string) {
	a.log.Error("visibility library error", zap.String("msg", msg))
}

func (a *Adapter) EnterMutex() { a.guard.check("EnterMutex") }

func (a *Adapter) LeaveMutex() { a.guard.check("LeaveMutex") }

func (a *Adapter) AllocateQueryObject(index int) bool {
	return a.backend.Allocate(index)
}

func (a *Adapter) ReleaseQueryObject(index int) {
	a.backend.Release(index)
}

// Flags take effect at the next QueryBegin; ForceSoftware at the next
// Tick.

func (a *Adapter) Flags() Flags { return a.flags }

func (a *Adapter) SetFlags(f Flags) { a.flags = f }

func (a *Adapter) SetEnabled(on bool) { a.flags.Enabled = on }

func (a *Adapter) OcclusionCulling() bool { return a.flags.OcclusionCulling }

func (a *Adapter) SetOcclusionCulling(on bool) { a.flags.OcclusionCulling = on }

func (a *Adapter) ForceSoftware() bool { return a.flags.ForceSoftware }

func (a *Adapter) SetForceSoftware(on bool) { a.flags.ForceSoftware = on }

func (a *Adapter) FlushTrees() bool { return a.flags.FlushTrees }

func (a *Adapter) SetFlushTrees(on bool) { a.flags.FlushTrees = on }

func (a *Adapter) DepthOnlyPass() bool { return a.flags.DepthOnlyPass }

func (a *Adapter) SetDepthOnlyPass(on bool) { a.flags.DepthOnlyPass = on }

func (a *Adapter) LatentQueries() bool { return a.flags.LatentQueries }

func (a *Adapter) SetLatentQueries(on bool) { a.flags.LatentQueries = on }

func (a *Adapter) WireframeTerrain() bool { return a.flags.WireframeTerrain }

func (a *Adapter) SetWireframeTerrain(on bool) { a.flags.WireframeTerrain = on }

func (a *Adapter) DrawTestModels() bool { return a.flags.DrawTestModels }

func (a *Adapter) SetDrawTestModels(on bool) { a.flags.DrawTestModels = on }

func (a *Adapter) DrawWriteModels() bool { return a.flags.DrawWriteModels }

func (a *Adapter) SetDrawWriteModels(on bool) { a.flags.DrawWriteModels = on }

func (a *Adapter) DrawObjectBounds() bool { return a.flags.DrawObjectBounds }

func (a *Adapter) SetDrawObjectBounds(on bool) { a.flags.DrawObjectBounds = on }

func (a *Adapter) DrawVoxels() bool { return a.flags.DrawVoxels }

func (a *Adapter) SetDrawVoxels(on bool) { a.flags.DrawVoxels = on }

func (a *Adapter) DrawSilhouettes() bool { return a.flags.DrawSilhouettes }

func (a *Adapter) SetDrawSilhouettes(on bool) { a.flags.DrawSilhouettes = on }

func (a *Adapter) DrawQueries() bool { return a.flags.DrawQueries }

func (a *Adapter) SetDrawQueries(on bool) { a.flags.DrawQueries = on }
