package world

import "fmt"

// Terrain is the kind of ground a tile has.
type Terrain uint8

const (
	TerrainNone Terrain = iota
	TerrainRock
	TerrainCave
)

func (t Terrain) Passable() bool { return t == TerrainCave }

func (t Terrain) String() string {
	switch t {
	case TerrainRock:
		return "ROCK"
	case TerrainCave:
		return "CAVE"
	default:
		return fmt.Sprintf("Terrain(%d)", int(t))
	}
}
