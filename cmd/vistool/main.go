// vistool runs the visibility commander headless against a recording
// device and logs what each frame resolves to.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Faultbox/midgard-vis/internal/config"
	"github.com/Faultbox/midgard-vis/internal/engine/camera"
	"github.com/Faultbox/midgard-vis/internal/engine/renderer"
	"github.com/Faultbox/midgard-vis/internal/engine/renderer/capture"
	"github.com/Faultbox/midgard-vis/internal/engine/scene"
	"github.com/Faultbox/midgard-vis/internal/logger"
	"github.com/Faultbox/midgard-vis/internal/visengine"
	"github.com/Faultbox/midgard-vis/internal/visibility"
)

var (
	flagFrames  = flag.Int("frames", 120, "Number of frames to resolve")
	flagRepeat  = flag.Bool("repeat", false, "Replay each visible set as a wireframe overlay")
	flagLatency = flag.Int("latency", 1, "Frames before a query result is available")
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Midgard Visibility Tool ===")

	if err := run(cfg); err != nil {
		logger.Error("vistool failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	s, err := scene.New(cfg.Scene)
	if err != nil {
		return fmt.Errorf("building scene: %w", err)
	}
	cells, objects, portals := s.Counts()
	logger.Info("scene built",
		zap.Int("cells", cells),
		zap.Int("objects", objects),
		zap.Int("portals", portals))

	dev := capture.New(capture.HardwareCaps())
	dev.Latency = *flagLatency
	g := cfg.Graphics
	dev.SetProjection(camera.Projection(g.FOV, g.Width, g.Height, g.Near, g.Far))

	a := visibility.Init(visibility.FlagsFromConfig(cfg.Visibility), visibility.Deps{Device: dev, World: s.World})
	defer func() {
		if err := visibility.Fini(); err != nil {
			logger.Warn("visibility shutdown", zap.Error(err))
		}
	}()
	if err := s.Register(a); err != nil {
		return fmt.Errorf("registering scene: %w", err)
	}

	orbit := camera.NewOrbitCamera()
	s.FrameCamera(orbit)
	cam := a.Library().NewCamera()

	var totalDraws, totalVisible int
	for frame := 0; frame < *flagFrames; frame++ {
		dev.Reset()
		a.Tick()
		cam.SetCameraToWorld(orbit.CameraToWorld())
		cached := 0
		if a.Resolve(cam) {
			a.FinishFoliage()
			cached = a.Commander().Cached()
			if *flagRepeat {
				dev.PushState(renderer.FieldFill)
				dev.SetFillMode(renderer.FillWireframe)
				a.Repeat()
				dev.PopState()
			}
		}

		draws := dev.Count(capture.OpDraw)
		visible, _ := a.Statistic(visengine.StatVisible)
		totalDraws += draws
		totalVisible += int(visible)
		logger.Debug("frame",
			zap.Int("frame", frame),
			zap.Int("draws", draws),
			zap.Int("cached", cached),
			zap.Bool("software", a.SoftwareMode()),
			statFields(a.Statistics()))

		if frames, fields := dev.Balance(); frames != 0 || fields != 0 {
			return fmt.Errorf("frame %d left %d state frames and %d fields pushed", frame, frames, fields)
		}
		orbit.Orbit(cfg.Scene.OrbitSpeed)
	}

	if *flagFrames > 0 {
		logger.Info("run complete",
			zap.Int("frames", *flagFrames),
			zap.Float64("avgDraws", float64(totalDraws)/float64(*flagFrames)),
			zap.Float64("avgVisible", float64(totalVisible)/float64(*flagFrames)),
			zap.Int("liveQueries", dev.LiveQueries()))
	}
	return nil
}

func statFields(stats []visengine.Statistic) zap.Field {
	return zap.Object("stats", statList(stats))
}

// statList logs library counters as one nested object.
type statList []visengine.Statistic

func (l statList) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for _, s := range l {
		enc.AddFloat32(s.Name, s.Value)
	}
	return nil
}
