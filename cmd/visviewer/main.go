// visviewer renders the synthetic chunk world through the visibility
// commander in an SDL2 window.
//
// Keys: O toggles occlusion culling, S forces software occlusion, B draws
// object bounds, W overlays the visible set in wireframe, P dumps the
// stencil buffer, K saves the current flags to the config file, Space
// pauses the orbit, Escape quits. Drag to orbit, wheel to zoom.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-vis/internal/config"
	"github.com/Faultbox/midgard-vis/internal/engine/camera"
	"github.com/Faultbox/midgard-vis/internal/engine/debug"
	"github.com/Faultbox/midgard-vis/internal/engine/framebuffer"
	"github.com/Faultbox/midgard-vis/internal/engine/input"
	"github.com/Faultbox/midgard-vis/internal/engine/renderer"
	"github.com/Faultbox/midgard-vis/internal/engine/renderer/gldevice"
	"github.com/Faultbox/midgard-vis/internal/engine/scene"
	"github.com/Faultbox/midgard-vis/internal/engine/window"
	"github.com/Faultbox/midgard-vis/internal/logger"
	"github.com/Faultbox/midgard-vis/internal/visengine"
	"github.com/Faultbox/midgard-vis/internal/visibility"
)

const windowTitle = "Midgard Visibility Viewer"

// Viewer holds the window, device and visibility state of one session.
type Viewer struct {
	cfg     *config.Config
	cfgPath string
	win     *window.Window
	dev     *gldevice.Device
	fb      *framebuffer.Framebuffer
	in      *input.Input
	scene   *scene.Scene
	vis     *visibility.Adapter
	orbit   *camera.OrbitCamera
	cam     *visengine.Camera
	dump    *debug.StencilDump
	watcher *config.Watcher

	overlay  bool
	autoSpin bool
	width    int
	height   int
	log      *zap.Logger
}

func main() {
	config.ParseFlags()

	cfg, path, err := config.LoadWithPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Midgard Visibility Viewer ===")

	v, err := newViewer(cfg, path)
	if err != nil {
		logger.Error("failed to start viewer", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	defer v.Close()

	v.Run()
}

func newViewer(cfg *config.Config, configPath string) (*Viewer, error) {
	v := &Viewer{
		cfg:      cfg,
		cfgPath:  configPath,
		in:       input.New(),
		orbit:    camera.NewOrbitCamera(),
		dump:     debug.NewStencilDump(".", "stencil"),
		autoSpin: true,
		log:      logger.Named("viewer"),
	}

	var err error
	v.scene, err = scene.New(cfg.Scene)
	if err != nil {
		return nil, fmt.Errorf("building scene: %w", err)
	}

	v.win, err = window.New(window.Config{
		Title:      windowTitle,
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("creating window: %w", err)
	}

	v.dev, err = gldevice.New()
	if err != nil {
		v.win.Close()
		return nil, fmt.Errorf("creating device: %w", err)
	}

	v.width, v.height = v.win.Size()
	v.fb, err = framebuffer.New(int32(v.width), int32(v.height))
	if err != nil {
		v.dev.Close()
		v.win.Close()
		return nil, err
	}
	v.updateProjection()

	v.vis = visibility.Init(visibility.FlagsFromConfig(cfg.Visibility), visibility.Deps{
		Device: v.dev,
		World:  v.scene.World,
	})
	if err := v.scene.Register(v.vis); err != nil {
		v.Close()
		return nil, fmt.Errorf("registering scene: %w", err)
	}
	v.scene.FrameCamera(v.orbit)
	v.cam = v.vis.Library().NewCamera()

	if configPath != "" {
		v.watcher, err = config.Watch(configPath)
		if err != nil {
			v.log.Warn("config hot reload disabled", zap.Error(err))
		} else {
			v.vis.SetConfigSource(v.watcher.Updates())
		}
	}
	return v, nil
}

// Run drives the frame loop until the window closes.
func (v *Viewer) Run() {
	lastTitle := time.Now()
	frames := 0
	for {
		if v.in.Update() {
			return
		}
		v.handleInput()
		v.frame()
		v.win.SwapBuffers()

		frames++
		if since := time.Since(lastTitle); since >= time.Second {
			v.updateTitle(float64(frames) / since.Seconds())
			frames = 0
			lastTitle = time.Now()
		}
	}
}

func (v *Viewer) handleInput() {
	for _, e := range v.in.Events() {
		switch e.Type {
		case input.EventWindowResize:
			v.width, v.height = v.win.Size()
			v.fb.Resize(int32(v.width), int32(v.height))
			v.updateProjection()
		case input.EventMouseDrag:
			v.autoSpin = false
			v.orbit.HandleDrag(e.DX, e.DY)
		case input.EventMouseWheel:
			v.orbit.HandleZoom(e.DY)
		case input.EventKeyDown:
			v.handleKey(e.Key)
		}
	}
}

func (v *Viewer) handleKey(key sdl.Scancode) {
	switch key {
	case sdl.SCANCODE_O:
		v.vis.SetOcclusionCulling(!v.vis.OcclusionCulling())
		v.log.Info("occlusion culling", zap.Bool("on", v.vis.OcclusionCulling()))
	case sdl.SCANCODE_S:
		v.vis.SetForceSoftware(!v.vis.ForceSoftware())
		v.log.Info("force software occlusion", zap.Bool("on", v.vis.ForceSoftware()))
	case sdl.SCANCODE_B:
		v.vis.SetDrawObjectBounds(!v.vis.DrawObjectBounds())
	case sdl.SCANCODE_W:
		v.overlay = !v.overlay
	case sdl.SCANCODE_SPACE:
		v.autoSpin = !v.autoSpin
	case sdl.SCANCODE_P:
		v.dumpStencil()
	case sdl.SCANCODE_K:
		v.saveFlags()
	}
}

func (v *Viewer) frame() {
	v.fb.Bind()
	v.dev.BeginFrame()

	v.vis.Tick()
	v.cam.SetCameraToWorld(v.orbit.CameraToWorld())
	if v.vis.Resolve(v.cam) {
		v.vis.FinishFoliage()
		if v.overlay {
			v.dev.PushState(renderer.FieldFill)
			v.dev.SetFillMode(renderer.FillWireframe)
			v.vis.Repeat()
			v.dev.PopState()
		}
	}

	v.fb.Unbind()
	v.dev.Resize(v.width, v.height)
	v.fb.BlitToScreen(int32(v.width), int32(v.height))

	if v.autoSpin {
		v.orbit.Orbit(v.cfg.Scene.OrbitSpeed)
	}
}

func (v *Viewer) dumpStencil() {
	w, h := v.fb.Size()
	name, err := v.dump.Save(v.fb.ReadStencil(), int(w), int(h))
	if err != nil {
		v.log.Error("stencil dump failed", zap.Error(err))
		return
	}
	v.log.Info("stencil dumped", zap.String("file", name))
}

// saveFlags writes the current toggles back to the config file the viewer
// was started with, or to the user config directory.
func (v *Viewer) saveFlags() {
	v.cfg.Visibility = v.vis.Flags().Config()
	path := v.cfgPath
	var err error
	if path != "" {
		err = v.cfg.SaveTo(path)
	} else {
		path, err = v.cfg.Save()
	}
	if err != nil {
		v.log.Error("saving config failed", zap.Error(err))
		return
	}
	v.log.Info("config saved", zap.String("path", path))
}

func (v *Viewer) updateProjection() {
	g := v.cfg.Graphics
	v.dev.SetProjection(camera.Projection(g.FOV, v.width, v.height, g.Near, g.Far))
}

func (v *Viewer) updateTitle(fps float64) {
	mode := "hardware"
	if v.vis.SoftwareMode() {
		mode = "software"
	}
	visible, _ := v.vis.Statistic(visengine.StatVisible)
	v.win.SetTitle(fmt.Sprintf("%s - %.0f fps - %s - %d visible", windowTitle, fps, mode, int(visible)))
}

// Close tears down in reverse order. Visibility must go before the device.
func (v *Viewer) Close() {
	if v.watcher != nil {
		if err := v.watcher.Close(); err != nil {
			v.log.Warn("closing config watcher", zap.Error(err))
		}
	}
	if visibility.Instance() != nil {
		if err := visibility.Fini(); err != nil {
			v.log.Warn("visibility shutdown", zap.Error(err))
		}
	}
	if v.fb != nil {
		v.fb.Destroy()
	}
	if v.dev != nil {
		v.dev.Close()
	}
	if v.win != nil {
		v.win.Close()
	}
}
