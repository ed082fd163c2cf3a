package world

import (
	"math/rand"
	"sync"

	"github.com/infectnet/server/internal/core/ecs"
)

// NestCustomizer chooses where new players' nests go.
type NestCustomizer struct {
	world    *World
	margin   int
	attempts int

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

func NewNestCustomizer(w *World, margin int, seed int64) *NestCustomizer {
	return &NestCustomizer{
		world:    w,
		margin:   margin,
		attempts: 64,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// RandomNestPosition returns a free, passable tile at least margin tiles
// away from the edge. Random probes first, then a full scan so a crowded
// map still yields a tile when one exists. Game loop goroutine only.
func (c *NestCustomizer) RandomNestPosition() (ecs.Point, bool) {
	w := c.world
	spanX, spanY := w.width-2*c.margin, w.height-2*c.margin
	if spanX <= 0 || spanY <= 0 {
		return ecs.Point{}, false
	}

	c.mu.Lock()
	for i := 0; i < c.attempts; i++ {
		p := ecs.Point{X: c.margin + c.rng.Intn(spanX), Y: c.margin + c.rng.Intn(spanY)}
		if w.Passable(p) && w.Occupant(p) == nil {
			c.mu.Unlock()
			return p, true
		}
	}
	c.mu.Unlock()

	for y := c.margin; y < c.margin+spanY; y++ {
		for x := c.margin; x < c.margin+spanX; x++ {
			p := ecs.Point{X: x, Y: y}
			if w.Passable(p) && w.Occupant(p) == nil {
				return p, true
			}
		}
	}
	return ecs.Point{}, false
}
