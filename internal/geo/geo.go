// Package geo holds the proximity math and position sources of the rallye.
package geo

import (
	"math"

	"github.com/playperu/rallye/internal/rallye"
)

const (
	EarthRadiusMeters = 6371000.0

	// Local Earth approximations used for simulated steps.
	metersPerDegreeLat = 111320.0
	equatorMeters      = 40075000.0
)

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b rallye.Position) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// IsWithin reports whether pos lies inside the POI's geofence. A missing
// POI, POI coordinate or position is never within.
func IsWithin(poi *rallye.POI, pos *rallye.Position) bool {
	if poi == nil || poi.Coordinate == nil || pos == nil {
		return false
	}
	return Distance(*poi.Coordinate, *pos) <= poi.Radius()
}

type Direction int

const (
	North Direction = iota
	South
	West
	East
)

// ParseDirection maps WASD and arrow-style names to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "w", "up", "n", "north":
		return North, true
	case "s", "down", "south":
		return South, true
	case "a", "left", "west":
		return West, true
	case "d", "right", "e", "east":
		return East, true
	}
	return 0, false
}

// Step displaces pos by meters in direction d. The longitude delta is
// scaled by the latitude so a step covers the same ground in every direction.
func Step(pos rallye.Position, d Direction, meters float64) rallye.Position {
	latStep := meters / metersPerDegreeLat
	lonStep := meters / (equatorMeters * math.Cos(radians(pos.Lat)) / 360)

	switch d {
	case North:
		pos.Lat += latStep
	case South:
		pos.Lat -= latStep
	case West:
		pos.Lon -= lonStep
	case East:
		pos.Lon += lonStep
	}
	return pos
}

// PanPath returns frames interpolated from one view center to another,
// ending exactly at to. Used to re-center a map without a hard jump.
func PanPath(from, to rallye.Position, frames int) []rallye.Position {
	if frames < 1 {
		frames = 1
	}
	path := make([]rallye.Position, frames)
	for i := 1; i <= frames; i++ {
		t := easeInOut(float64(i) / float64(frames))
		path[i-1] = rallye.Position{
			Lat: from.Lat + (to.Lat-from.Lat)*t,
			Lon: from.Lon + (to.Lon-from.Lon)*t,
		}
	}
	path[frames-1] = to
	return path
}

func easeInOut(t float64) float64 {
	return t * t * (3 - 2*t)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
