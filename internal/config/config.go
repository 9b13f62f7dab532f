// Package config handles configuration loading and management.
package config

// Config holds all settings.
type Config struct {
	Graphics   GraphicsConfig   `yaml:"graphics"`
	Visibility VisibilityConfig `yaml:"visibility"`
	Scene      SceneConfig      `yaml:"scene"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// GraphicsConfig holds display and projection settings.
type GraphicsConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Fullscreen bool    `yaml:"fullscreen"`
	VSync      bool    `yaml:"vsync"`
	FOV        float32 `yaml:"fov"` // Vertical field of view in degrees
	Near       float32 `yaml:"near"`
	Far        float32 `yaml:"far"`
}

// VisibilityConfig holds the visibility runtime flags.
type VisibilityConfig struct {
	Enabled                bool `yaml:"enabled"`
	EnableOcclusionCulling bool `yaml:"enable_occlusion_culling"`
	ForceSoftwareOcclusion bool `yaml:"force_software_occlusion"`
	FlushTrees             bool `yaml:"flush_trees"`
	DepthOnlyPass          bool `yaml:"depth_only_pass"`
	LatentQueries          bool `yaml:"latent_queries"`
	WireframeTerrain       bool `yaml:"wireframe_terrain"`

	DrawTestModels   bool `yaml:"draw_test_models"`
	DrawWriteModels  bool `yaml:"draw_write_models"`
	DrawObjectBounds bool `yaml:"draw_object_bounds"`
	DrawVoxels       bool `yaml:"draw_voxels"`
	DrawSilhouettes  bool `yaml:"draw_silhouettes"`
	DrawQueries      bool `yaml:"draw_queries"`
}

// SceneConfig sizes the synthetic test world.
type SceneConfig struct {
	GridSize   int     `yaml:"grid_size"`  // Chunks per side
	ChunkSize  float32 `yaml:"chunk_size"` // World units per chunk
	Buildings  int     `yaml:"buildings"`  // Occluders per chunk
	Props      int     `yaml:"props"`      // Small objects per chunk
	Trees      int     `yaml:"trees"`      // Trees per chunk
	Interior   bool    `yaml:"interior"`   // Add a stencil-portal interior
	Mirror     bool    `yaml:"mirror"`     // Add a mirror portal
	Seed       int64   `yaml:"seed"`
	OrbitSpeed float32 `yaml:"orbit_speed"` // Radians per frame
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// DefaultVisibility returns production visibility settings.
func DefaultVisibility() VisibilityConfig {
	return VisibilityConfig{
		Enabled:                true,
		EnableOcclusionCulling: true,
		FlushTrees:             true,
		DepthOnlyPass:          true,
		LatentQueries:          true,
	}
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:  1280,
			Height: 720,
			VSync:  true,
			FOV:    60,
			Near:   0.5,
			Far:    2000,
		},
		Visibility: DefaultVisibility(),
		Scene: SceneConfig{
			GridSize:   4,
			ChunkSize:  100,
			Buildings:  3,
			Props:      12,
			Trees:      6,
			Interior:   true,
			Mirror:     true,
			Seed:       1,
			OrbitSpeed: 0.01,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
