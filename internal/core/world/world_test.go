package world

import (
	"testing"

	"github.com/infectnet/server/internal/core/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openGenerator makes every tile cave.
type openGenerator struct{}

func (openGenerator) Generate(width, height int) []Terrain {
	out := make([]Terrain, width*height)
	for i := range out {
		out[i] = TerrainCave
	}
	return out
}

type holeyGenerator struct{}

func (holeyGenerator) Generate(width, height int) []Terrain {
	return make([]Terrain, width*height)
}

func newWorld(t *testing.T, w, h int) *World {
	t.Helper()
	wd, err := New(w, h, openGenerator{})
	require.NoError(t, err)
	return wd
}

var worm = ecs.NewType("Worm", ecs.CategoryWorker, nil, ecs.Template{Health: 15, Sight: 2, Visible: true})

func TestNewRejectsIncompleteTerrain(t *testing.T) {
	_, err := New(4, 4, holeyGenerator{})
	assert.Error(t, err)
	_, err = New(0, 4, openGenerator{})
	assert.Error(t, err)
}

func TestTileAtBounds(t *testing.T) {
	w := newWorld(t, 4, 3)
	_, err := w.TileAt(ecs.Point{X: 3, Y: 2})
	assert.NoError(t, err)
	for _, p := range []ecs.Point{{X: -1}, {Y: -1}, {X: 4}, {Y: 3}} {
		_, err := w.TileAt(p)
		assert.ErrorIs(t, err, ErrOutOfBounds, "%v", p)
	}
}

func TestPlaceUpdatesGridIndexAndPosition(t *testing.T) {
	w := newWorld(t, 8, 8)
	e := worm.CreateEntity()
	at := ecs.Point{X: 2, Y: 5}

	require.NoError(t, w.Place(e, at))
	assert.Same(t, e, w.Occupant(at))
	got, ok := w.PositionOf(e)
	require.True(t, ok)
	assert.Equal(t, at, got)
	assert.True(t, e.Position.Placed)
	assert.Equal(t, at, e.Position.At)

	assert.ErrorIs(t, w.Place(e, ecs.Point{X: 3, Y: 3}), ErrAlreadyPlaced)
}

func TestPlaceOnOccupiedTileChangesNothing(t *testing.T) {
	w := newWorld(t, 8, 8)
	first, second := worm.CreateEntity(), worm.CreateEntity()
	at := ecs.Point{X: 1, Y: 1}
	require.NoError(t, w.Place(first, at))

	err := w.Place(second, at)
	assert.ErrorIs(t, err, ErrOccupied)
	assert.Same(t, first, w.Occupant(at))
	_, placed := w.PositionOf(second)
	assert.False(t, placed)
	assert.False(t, second.Position.Placed)
	assert.Equal(t, 1, w.Placed())

	assert.ErrorIs(t, w.Place(second, ecs.Point{X: 9, Y: 9}), ErrOutOfBounds)
	assert.Equal(t, 1, w.Placed())
}

func TestRemoveAndMove(t *testing.T) {
	w := newWorld(t, 8, 8)
	a, b := worm.CreateEntity(), worm.CreateEntity()
	require.NoError(t, w.Place(a, ecs.Point{X: 1, Y: 1}))
	require.NoError(t, w.Place(b, ecs.Point{X: 2, Y: 1}))

	assert.ErrorIs(t, w.Move(a, ecs.Point{X: 2, Y: 1}), ErrOccupied)
	pos, _ := w.PositionOf(a)
	assert.Equal(t, ecs.Point{X: 1, Y: 1}, pos)

	require.NoError(t, w.Move(a, ecs.Point{X: 1, Y: 2}))
	assert.Nil(t, w.Occupant(ecs.Point{X: 1, Y: 1}))
	assert.Same(t, a, w.Occupant(ecs.Point{X: 1, Y: 2}))
	assert.Equal(t, ecs.Point{X: 1, Y: 2}, a.Position.At)

	w.Remove(a)
	w.Remove(a)
	assert.Nil(t, w.Occupant(ecs.Point{X: 1, Y: 2}))
	assert.False(t, a.Position.Placed)
	assert.ErrorIs(t, w.Move(a, ecs.Point{X: 3, Y: 3}), ErrNotPlaced)
	assert.Equal(t, 1, w.Placed())
}

func TestVisibleEntitiesRowMajorWithinSight(t *testing.T) {
	w := newWorld(t, 10, 10)
	viewer := worm.CreateEntity()
	require.NoError(t, w.Place(viewer, ecs.Point{X: 5, Y: 5}))

	near1, near2, far := worm.CreateEntity(), worm.CreateEntity(), worm.CreateEntity()
	require.NoError(t, w.Place(near2, ecs.Point{X: 7, Y: 7}))
	require.NoError(t, w.Place(near1, ecs.Point{X: 4, Y: 3}))
	require.NoError(t, w.Place(far, ecs.Point{X: 8, Y: 5}))

	assert.Equal(t, []*ecs.Entity{near1, near2}, w.VisibleEntities(viewer))
	assert.Empty(t, w.VisibleEntities(worm.CreateEntity()), "unplaced viewer")
}

func TestFreeTileNearSpirals(t *testing.T) {
	w := newWorld(t, 5, 5)
	center := ecs.Point{X: 2, Y: 2}
	p, ok := w.FreeTileNear(center, 2)
	require.True(t, ok)
	assert.Equal(t, center, p)

	require.NoError(t, w.Place(worm.CreateEntity(), center))
	p, ok = w.FreeTileNear(center, 2)
	require.True(t, ok)
	assert.Equal(t, 1, p.Chebyshev(center))

	_, ok = w.FreeTileNear(center, 0)
	assert.False(t, ok)
}

func TestBorderGenerator(t *testing.T) {
	w, err := New(5, 4, BorderGenerator{})
	require.NoError(t, err)
	assert.False(t, w.Passable(ecs.Point{X: 0, Y: 2}))
	assert.False(t, w.Passable(ecs.Point{X: 4, Y: 3}))
	assert.True(t, w.Passable(ecs.Point{X: 1, Y: 1}))
	assert.False(t, w.Passable(ecs.Point{X: 5, Y: 1}))
}

func TestCellularGeneratorIsDeterministic(t *testing.T) {
	g := CellularGenerator{Seed: 42, FillPercent: 45, Passes: 4}
	a := g.Generate(32, 24)
	b := g.Generate(32, 24)
	assert.Equal(t, a, b)
	for x := 0; x < 32; x++ {
		assert.Equal(t, TerrainRock, a[x], "top border")
	}
	assert.NotEqual(t, a, CellularGenerator{Seed: 43, FillPercent: 45, Passes: 4}.Generate(32, 24))
}

func TestNewGenerator(t *testing.T) {
	g, err := NewGenerator("", 0, 0, 0)
	require.NoError(t, err)
	assert.IsType(t, BorderGenerator{}, g)
	g, err = NewGenerator("cellular", 7, 40, 3)
	require.NoError(t, err)
	assert.Equal(t, CellularGenerator{Seed: 7, FillPercent: 40, Passes: 3}, g)
	_, err = NewGenerator("maze", 0, 0, 0)
	assert.Error(t, err)
}

func TestNestCustomizerRespectsMargin(t *testing.T) {
	w := newWorld(t, 12, 12)
	c := NewNestCustomizer(w, 3, 1)
	for i := 0; i < 20; i++ {
		p, ok := c.RandomNestPosition()
		require.True(t, ok)
		assert.True(t, p.X >= 3 && p.X < 9 && p.Y >= 3 && p.Y < 9, "%v", p)
		require.NoError(t, w.Place(worm.CreateEntity(), p))
	}
}

func TestNestCustomizerFullMap(t *testing.T) {
	w := newWorld(t, 3, 3)
	c := NewNestCustomizer(w, 1, 1)
	p, ok := c.RandomNestPosition()
	require.True(t, ok)
	assert.Equal(t, ecs.Point{X: 1, Y: 1}, p)
	require.NoError(t, w.Place(worm.CreateEntity(), p))
	_, ok = c.RandomNestPosition()
	assert.False(t, ok)

	_, ok = NewNestCustomizer(w, 2, 1).RandomNestPosition()
	assert.False(t, ok)
}
