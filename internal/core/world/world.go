package world

import (
	"errors"
	"fmt"

	"github.com/infectnet/server/internal/core/ecs"
)

var (
	ErrOutOfBounds   = errors.New("position outside the world")
	ErrOccupied      = errors.New("tile already occupied")
	ErrAlreadyPlaced = errors.New("entity already placed")
	ErrNotPlaced     = errors.New("entity not placed")
)

// Tile is one grid cell: a terrain kind and at most one occupant.
type Tile struct {
	Terrain  Terrain
	occupant *ecs.Entity
}

func (t *Tile) Occupant() *ecs.Entity { return t.occupant }
func (t *Tile) Free() bool            { return t.occupant == nil }

// World is a fixed-size grid of tiles with a reverse index from entity to
// tile. Every placement change updates the grid, the index and the entity's
// Position component together.
// Single-goroutine access only (game loop).
type World struct {
	width, height int
	tiles         []Tile
	index         map[*ecs.Entity]ecs.Point
}

// New builds a world whose terrain comes from gen. Fails unless the
// generator fills every tile.
func New(width, height int, gen Generator) (*World, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("world size %dx%d must be positive", width, height)
	}
	terrain := gen.Generate(width, height)
	if len(terrain) != width*height {
		return nil, fmt.Errorf("generator produced %d tiles, want %d", len(terrain), width*height)
	}
	w := &World{
		width:  width,
		height: height,
		tiles:  make([]Tile, width*height),
		index:  make(map[*ecs.Entity]ecs.Point, 256),
	}
	for i, kind := range terrain {
		if kind == TerrainNone {
			return nil, fmt.Errorf("generator left tile (%d,%d) empty", i%width, i/width)
		}
		w.tiles[i].Terrain = kind
	}
	return w, nil
}

func (w *World) Width() int  { return w.width }
func (w *World) Height() int { return w.height }

func (w *World) InBounds(p ecs.Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < w.width && p.Y < w.height
}

func (w *World) TileAt(p ecs.Point) (*Tile, error) {
	if !w.InBounds(p) {
		return nil, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, p.X, p.Y)
	}
	return &w.tiles[p.Y*w.width+p.X], nil
}

// Passable reports whether p is inside the world on walkable terrain.
func (w *World) Passable(p ecs.Point) bool {
	t, err := w.TileAt(p)
	return err == nil && t.Terrain.Passable()
}

// Occupant returns the entity on p, or nil.
func (w *World) Occupant(p ecs.Point) *ecs.Entity {
	t, err := w.TileAt(p)
	if err != nil {
		return nil
	}
	return t.occupant
}

// PositionOf returns the tile an entity stands on.
func (w *World) PositionOf(e *ecs.Entity) (ecs.Point, bool) {
	p, ok := w.index[e]
	return p, ok
}

// Place puts e on p. On failure nothing changes.
func (w *World) Place(e *ecs.Entity, p ecs.Point) error {
	t, err := w.TileAt(p)
	if err != nil {
		return err
	}
	if _, placed := w.index[e]; placed {
		return ErrAlreadyPlaced
	}
	if t.occupant != nil {
		return fmt.Errorf("%w: (%d,%d)", ErrOccupied, p.X, p.Y)
	}
	t.occupant = e
	w.index[e] = p
	if e.Position != nil {
		e.Position.At = p
		e.Position.Placed = true
	}
	return nil
}

// Remove takes e off the grid. No-op when e is not placed.
func (w *World) Remove(e *ecs.Entity) {
	p, ok := w.index[e]
	if !ok {
		return
	}
	w.tiles[p.Y*w.width+p.X].occupant = nil
	delete(w.index, e)
	if e.Position != nil {
		e.Position.Placed = false
	}
}

// Move relocates a placed entity. On failure nothing changes.
func (w *World) Move(e *ecs.Entity, to ecs.Point) error {
	from, ok := w.index[e]
	if !ok {
		return ErrNotPlaced
	}
	if from == to {
		return nil
	}
	t, err := w.TileAt(to)
	if err != nil {
		return err
	}
	if t.occupant != nil {
		return fmt.Errorf("%w: (%d,%d)", ErrOccupied, to.X, to.Y)
	}
	w.tiles[from.Y*w.width+from.X].occupant = nil
	t.occupant = e
	w.index[e] = to
	if e.Position != nil {
		e.Position.At = to
	}
	return nil
}

// Placed returns the number of entities on the grid.
func (w *World) Placed() int { return len(w.index) }

// VisibleEntities returns every placed entity within from's sight radius
// (Chebyshev), excluding from itself, in row-major order. An unplaced
// viewer sees nothing.
func (w *World) VisibleEntities(from *ecs.Entity) []*ecs.Entity {
	center, ok := w.index[from]
	if !ok {
		return nil
	}
	return w.EntitiesWithin(center, from.Sight(), from)
}

// EntitiesWithin scans the square of the given radius around center.
func (w *World) EntitiesWithin(center ecs.Point, radius int, exclude *ecs.Entity) []*ecs.Entity {
	if radius < 0 {
		return nil
	}
	minX, maxX := clamp(center.X-radius, 0, w.width-1), clamp(center.X+radius, 0, w.width-1)
	minY, maxY := clamp(center.Y-radius, 0, w.height-1), clamp(center.Y+radius, 0, w.height-1)
	var out []*ecs.Entity
	for y := minY; y <= maxY; y++ {
		row := w.tiles[y*w.width : (y+1)*w.width]
		for x := minX; x <= maxX; x++ {
			if occ := row[x].occupant; occ != nil && occ != exclude {
				out = append(out, occ)
			}
		}
	}
	return out
}

// FreeTileNear searches rings of growing radius around center for a free,
// passable tile. Ring 0 is center itself.
func (w *World) FreeTileNear(center ecs.Point, maxRadius int) (ecs.Point, bool) {
	for r := 0; r <= maxRadius; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if max(abs(dx), abs(dy)) != r {
					continue // interior already visited
				}
				p := center.Add(dx, dy)
				if w.Passable(p) && w.Occupant(p) == nil {
					return p, true
				}
			}
		}
	}
	return ecs.Point{}, false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
