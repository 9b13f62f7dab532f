package visibility

import (
	"github.com/Faultbox/midgard-vis/internal/config"
	"github.com/Faultbox/midgard-vis/internal/visengine"
)

// Flags are the runtime switches consulted once per query.
type Flags struct {
	Enabled          bool
	OcclusionCulling bool
	ForceSoftware    bool
	FlushTrees       bool
	DepthOnlyPass    bool
	LatentQueries    bool
	WireframeTerrain bool

	DrawTestModels   bool
	DrawWriteModels  bool
	DrawObjectBounds bool
	DrawVoxels       bool
	DrawSilhouettes  bool
	DrawQueries      bool
}

// DefaultFlags returns the production defaults.
func DefaultFlags() Flags {
	return FlagsFromConfig(config.DefaultVisibility())
}

// FlagsFromConfig maps the visibility config section onto Flags.
func FlagsFromConfig(c config.VisibilityConfig) Flags {
	return Flags{
		Enabled:          c.Enabled,
		OcclusionCulling: c.EnableOcclusionCulling,
		ForceSoftware:    c.ForceSoftwareOcclusion,
		FlushTrees:       c.FlushTrees,
		DepthOnlyPass:    c.DepthOnlyPass,
		LatentQueries:    c.LatentQueries,
		WireframeTerrain: c.WireframeTerrain,
		DrawTestModels:   c.DrawTestModels,
		DrawWriteModels:  c.DrawWriteModels,
		DrawObjectBounds: c.DrawObjectBounds,
		DrawVoxels:       c.DrawVoxels,
		DrawSilhouettes:  c.DrawSilhouettes,
		DrawQueries:      c.DrawQueries,
	}
}

// Config returns the flags as a config section, for persisting toggles.
func (f Flags) Config() config.VisibilityConfig {
	return config.VisibilityConfig{
		Enabled:                f.Enabled,
		EnableOcclusionCulling: f.OcclusionCulling,
		ForceSoftwareOcclusion: f.ForceSoftware,
		FlushTrees:             f.FlushTrees,
		DepthOnlyPass:          f.DepthOnlyPass,
		LatentQueries:          f.LatentQueries,
		WireframeTerrain:       f.WireframeTerrain,
		DrawTestModels:         f.DrawTestModels,
		DrawWriteModels:        f.DrawWriteModels,
		DrawObjectBounds:       f.DrawObjectBounds,
		DrawVoxels:             f.DrawVoxels,
		DrawSilhouettes:        f.DrawSilhouettes,
		DrawQueries:            f.DrawQueries,
	}
}

// LineFlags returns the debug line selection.
func (f Flags) LineFlags() visengine.LineFlags {
	var l visengine.LineFlags
	set := func(on bool, bit visengine.LineFlags) {
		if on {
			l |= bit
		}
	}
	set(f.DrawTestModels, visengine.LineTestModels)
	set(f.DrawWriteModels, visengine.LineWriteModels)
	set(f.DrawObjectBounds, visengine.LineObjectBounds)
	set(f.DrawVoxels, visengine.LineVoxels)
	set(f.DrawSilhouettes, visengine.LineSilhouettes)
	set(f.DrawQueries, visengine.LineQueries)
	return l
}

// Properties returns the camera properties for a query. Without
// occlusion culling the camera still runs a depth pass.
func (f Flags) Properties() visengine.Properties {
	p := visengine.ViewFrustumCulling
	if f.OcclusionCulling {
		p |= visengine.OcclusionCulling
	} else {
		p |= visengine.DepthPass
	}
	if f.LatentQueries {
		p |= visengine.LatentQueries
	}
	return p
}
