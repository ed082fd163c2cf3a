package ecs

import "github.com/infectnet/server/internal/core/player"

// Point is a tile coordinate.
type Point struct {
	X, Y int
}

// Chebyshev returns the king-move distance between two points.
func (p Point) Chebyshev(o Point) int {
	dx, dy := abs(p.X-o.X), abs(p.Y-o.Y)
	if dx > dy {
		return dx
	}
	return dy
}

func (p Point) Add(dx, dy int) Point { return Point{X: p.X + dx, Y: p.Y + dy} }

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Owner records which player controls an entity. Player is nil until the
// creating system assigns it.
type Owner struct {
	Player *player.Player
}

// Health is current/maximum hit points. Destruction at zero is a system's
// decision, not the model's.
type Health struct {
	Current int
	Max     int
}

// Damage subtracts amount, clamping at zero, and returns what is left.
func (h *Health) Damage(amount int) int {
	if amount < 0 {
		amount = 0
	}
	h.Current -= amount
	if h.Current < 0 {
		h.Current = 0
	}
	return h.Current
}

// Position mirrors the entity's tile. Only the world writes it.
type Position struct {
	At     Point
	Placed bool
}

// Inventory is a bounded counter keyed by resource name.
type Inventory struct {
	Capacity int
	items    map[string]int
	total    int
}

func NewInventory(capacity int) *Inventory {
	return &Inventory{Capacity: capacity, items: make(map[string]int)}
}

// Add stores up to amount units and returns how many fit.
func (inv *Inventory) Add(name string, amount int) int {
	if amount <= 0 {
		return 0
	}
	if free := inv.Free(); amount > free {
		amount = free
	}
	inv.items[name] += amount
	inv.total += amount
	return amount
}

// Take removes up to amount units and returns how many were taken.
func (inv *Inventory) Take(name string, amount int) int {
	have := inv.items[name]
	if amount > have {
		amount = have
	}
	if amount <= 0 {
		return 0
	}
	inv.items[name] = have - amount
	if inv.items[name] == 0 {
		delete(inv.items, name)
	}
	inv.total -= amount
	return amount
}

func (inv *Inventory) Count(name string) int { return inv.items[name] }
func (inv *Inventory) Total() int            { return inv.total }
func (inv *Inventory) Free() int             { return inv.Capacity - inv.total }

// View is what observers are told about an entity.
type View struct {
	Sprite string
	Hidden bool
}

// NothingVisible is the shared view of entities other players cannot see.
var NothingVisible = &View{Hidden: true}
