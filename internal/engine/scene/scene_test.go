package scene

import (
	"testing"

	"github.com/Faultbox/midgard-vis/internal/config"
	"github.com/Faultbox/midgard-vis/internal/engine/camera"
	"github.com/Faultbox/midgard-vis/internal/engine/renderer/capture"
	"github.com/Faultbox/midgard-vis/internal/visengine"
	"github.com/Faultbox/midgard-vis/internal/visibility"
)

func smallConfig() config.SceneConfig {
	cfg := config.Default().Scene
	cfg.GridSize = 2
	cfg.Buildings = 2
	cfg.Props = 3
	cfg.Trees = 1
	return cfg
}

func TestNewCounts(t *testing.T) {
	tests := []struct {
		name     string
		interior bool
		mirror   bool
		cells    int
		portals  int
	}{
		// 2x2 grid: 4 cells joined by 4 plain portals.
		{"grid only", false, false, 4, 4},
		{"interior", true, false, 5, 5},
		{"mirror", false, true, 4, 5},
		{"both", true, true, 5, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig()
			cfg.Interior, cfg.Mirror = tt.interior, tt.mirror
			s, err := New(cfg)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			cells, objects, portals := s.Counts()
			if cells != tt.cells || portals != tt.portals {
				t.Errorf("cells, portals = %d, %d; want %d, %d", cells, portals, tt.cells, tt.portals)
			}
			want := 4 * (cfg.Buildings + cfg.Props + cfg.Trees)
			if tt.interior {
				want += 3
			}
			if objects != want {
				t.Errorf("objects = %d, want %d", objects, want)
			}
		})
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.GridSize = 0
	if _, err := New(cfg); err == nil {
		t.Error("expected error for empty grid")
	}
	cfg = smallConfig()
	cfg.ChunkSize = -1
	if _, err := New(cfg); err == nil {
		t.Error("expected error for negative chunk size")
	}
}

func TestNewIsDeterministic(t *testing.T) {
	a, _ := New(smallConfig())
	b, _ := New(smallConfig())
	for i := range a.objects {
		if a.objects[i].bounds != b.objects[i].bounds {
			t.Fatalf("object %d differs between runs with the same seed", i)
		}
	}

	cfg := smallConfig()
	cfg.Seed++
	c, _ := New(cfg)
	same := true
	for i := range a.objects {
		if a.objects[i].bounds != c.objects[i].bounds {
			same = false
		}
	}
	if same {
		t.Error("different seeds gave the same layout")
	}
}

func TestRegisterAndResolve(t *testing.T) {
	cfg := smallConfig()
	cfg.Interior, cfg.Mirror = true, true
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dev := capture.New(capture.HardwareCaps())
	dev.SetProjection(camera.Projection(60, 1280, 720, 0.5, 2000))
	a := visibility.Init(visibility.DefaultFlags(), visibility.Deps{Device: dev, World: s.World})
	defer func() {
		if err := visibility.Fini(); err != nil {
			t.Errorf("Fini: %v", err)
		}
	}()
	if err := s.Register(a); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, objects, _ := s.Counts()
	if got := a.Items().Len(); got != objects {
		t.Errorf("items registered = %d, want %d", got, objects)
	}
	if a.Portals().Len() != 1 {
		t.Errorf("stencil portals = %d, want 1", a.Portals().Len())
	}

	orbit := camera.NewOrbitCamera()
	s.FrameCamera(orbit)
	cam := a.Library().NewCamera()
	for frame := 0; frame < 3; frame++ {
		a.Tick()
		cam.SetCameraToWorld(orbit.CameraToWorld())
		if !a.Resolve(cam) {
			t.Fatal("Resolve reported disabled")
		}
		a.FinishFoliage()
		if v, _ := a.Statistic(visengine.StatVisible); v == 0 {
			t.Errorf("frame %d: nothing visible", frame)
		}
		if frames, fields := dev.Balance(); frames != 0 || fields != 0 {
			t.Fatalf("frame %d: unbalanced state stack %d/%d", frame, frames, fields)
		}
		orbit.Orbit(cfg.OrbitSpeed)
	}
}
