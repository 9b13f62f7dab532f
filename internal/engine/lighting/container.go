package lighting

import "github.com/go-gl/mathgl/mgl32"

// MaxPointLights is the maximum number of point lights a container forwards
// to shaders.
const MaxPointLights = 32

// PointLight is a point light source.
type PointLight struct {
	Position  mgl32.Vec3
	Colour    mgl32.Vec3
	Range     float32
	Intensity float32
}

// Container holds the lights affecting a draw call.
type Container struct {
	Ambient      mgl32.Vec4
	Directionals []Directional
	Points       []PointLight
}

// NewContainer creates an empty container with the given ambient colour.
func NewContainer(ambient mgl32.Vec4) *Container {
	return &Container{Ambient: ambient}
}

// AddDirectional appends a directional light.
func (c *Container) AddDirectional(d *Directional) {
	if d == nil {
		return
	}
	c.Directionals = append(c.Directionals, *d)
}

// AddPoint appends a point light, dropping lights beyond MaxPointLights.
func (c *Container) AddPoint(p PointLight) bool {
	if len(c.Points) >= MaxPointLights {
		return false
	}
	c.Points = append(c.Points, p)
	return true
}

// Reset clears all lights and sets a new ambient colour, keeping capacity.
func (c *Container) Reset(ambient mgl32.Vec4) {
	c.Ambient = ambient
	c.Directionals = c.Directionals[:0]
	c.Points = c.Points[:0]
}

// Sun returns the first directional light, or nil.
func (c *Container) Sun() *Directional {
	if c == nil || len(c.Directionals) == 0 {
		return nil
	}
	return &c.Directionals[0]
}
