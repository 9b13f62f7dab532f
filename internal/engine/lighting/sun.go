// Package lighting provides light containers handed to the renderer.
package lighting

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// SunDirection converts longitude/latitude angles in degrees to a light
// direction vector. Longitude rotates around Y (0-360), latitude is the
// elevation from the horizon (0-90). The result points towards the sun.
func SunDirection(longitude, latitude float32) mgl32.Vec3 {
	lon := mgl32.DegToRad(longitude)
	lat := mgl32.DegToRad(latitude)

	return mgl32.Vec3{
		math32.Cos(lat) * math32.Sin(lon),
		math32.Sin(lat),
		math32.Cos(lat) * math32.Cos(lon),
	}
}

// Directional is a light infinitely far away, such as the sun.
type Directional struct {
	Direction mgl32.Vec3 // Towards the light
	Colour    mgl32.Vec4
}

// NewSun builds the directional light for a sun at the given angles.
func NewSun(longitude, latitude float32, colour mgl32.Vec4) *Directional {
	return &Directional{
		Direction: SunDirection(longitude, latitude),
		Colour:    colour,
	}
}
