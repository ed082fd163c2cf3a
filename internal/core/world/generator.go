package world

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Generator produces the terrain of a width×height grid in row-major order.
// Every entry must be set.
type Generator interface {
	Generate(width, height int) []Terrain
}

// BorderGenerator walls the edge with rock and leaves the interior open.
type BorderGenerator struct{}

func (BorderGenerator) Generate(width, height int) []Terrain {
	out := make([]Terrain, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if isBorder(x, y, width, height) {
				out[y*width+x] = TerrainRock
			} else {
				out[y*width+x] = TerrainCave
			}
		}
	}
	return out
}

// CellularGenerator carves caves with a cellular automaton. The initial
// fill comes from hashing (seed, x, y), so a seed always yields the same map.
type CellularGenerator struct {
	Seed        uint64
	FillPercent int // chance of rock in the initial noise, 0-100
	Passes      int // smoothing iterations
}

func (g CellularGenerator) Generate(width, height int) []Terrain {
	rock := make([]bool, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			rock[y*width+x] = isBorder(x, y, width, height) ||
				int(g.noise(x, y)%100) < g.FillPercent
		}
	}

	next := make([]bool, len(rock))
	for pass := 0; pass < g.Passes; pass++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				n := rockNeighbours(rock, x, y, width, height)
				switch {
				case isBorder(x, y, width, height):
					next[y*width+x] = true
				case n > 4:
					next[y*width+x] = true
				case n < 4:
					next[y*width+x] = false
				default:
					next[y*width+x] = rock[y*width+x]
				}
			}
		}
		rock, next = next, rock
	}

	out := make([]Terrain, len(rock))
	for i, r := range rock {
		if r {
			out[i] = TerrainRock
		} else {
			out[i] = TerrainCave
		}
	}
	return out
}

func (g CellularGenerator) noise(x, y int) uint64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], g.Seed)
	binary.LittleEndian.PutUint64(buf[8:], uint64(int64(x)))
	binary.LittleEndian.PutUint64(buf[16:], uint64(int64(y)))
	return xxhash.Sum64(buf[:])
}

// rockNeighbours counts rock in the 8-neighbourhood; outside counts as rock.
func rockNeighbours(rock []bool, x, y, width, height int) int {
	n := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if nx < 0 || ny < 0 || nx >= width || ny >= height || rock[ny*width+nx] {
				n++
			}
		}
	}
	return n
}

func isBorder(x, y, width, height int) bool {
	return x == 0 || y == 0 || x == width-1 || y == height-1
}

// NewGenerator picks a generator by name ("border" or "cellular").
func NewGenerator(name string, seed uint64, fillPercent, passes int) (Generator, error) {
	switch name {
	case "", "border":
		return BorderGenerator{}, nil
	case "cellular":
		return CellularGenerator{Seed: seed, FillPercent: fillPercent, Passes: passes}, nil
	}
	return nil, fmt.Errorf("unknown world generator %q", name)
}
