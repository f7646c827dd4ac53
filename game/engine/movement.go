package engine

import (
	"fmt"
	"strings"
)

// Direction offsets in tiles, as (dLat, dLng)
var directions = map[string][2]int{
	"north": {1, 0},
	"south": {-1, 0},
	"east":  {0, 1},
	"west":  {0, -1},
	"up":    {1, 0},
	"down":  {-1, 0},
	"right": {0, 1},
	"left":  {0, -1},
}

// Directions lists the canonical movement directions
func Directions() []string {
	return []string{"north", "south", "east", "west"}
}

// Offset returns the point one tile away from p in direction
func Offset(p LatLng, direction string, tileWidth float64) (LatLng, error) {
	d, ok := directions[strings.ToLower(strings.TrimSpace(direction))]
	if !ok {
		return p, fmt.Errorf("%w: %q", ErrUnknownDirection, direction)
	}
	return LatLng{
		Lat: p.Lat + float64(d[0])*tileWidth,
		Lng: p.Lng + float64(d[1])*tileWidth,
	}, nil
}

// Step moves the player one tile in a cardinal direction. An unrecognized
// direction or a step off the globe aborts without touching any state.
func (w *World) Step(direction string) error {
	if w.state != Active {
		return ErrNotStarted
	}
	to, err := Offset(w.location, direction, w.config.TileWidth)
	if err != nil {
		return err
	}
	return w.Move(to)
}
