package ecs

import (
	"sort"

	"github.com/infectnet/server/internal/core/player"
)

// Manager is the entity directory of one simulation. It owns id allocation.
// Single-goroutine access only (game loop).
type Manager struct {
	pool         *EntityPool
	entities     map[EntityID]*Entity
	destroyQueue []*Entity
}

func NewManager() *Manager {
	return &Manager{
		pool:         NewEntityPool(),
		entities:     make(map[EntityID]*Entity, 256),
		destroyQueue: make([]*Entity, 0, 16),
	}
}

// Add assigns e an id and makes it part of the simulation. Adding an entity
// twice returns its existing id.
func (m *Manager) Add(e *Entity) EntityID {
	if !e.id.IsZero() && m.entities[e.id] == e {
		return e.id
	}
	e.id = m.pool.Create()
	m.entities[e.id] = e
	return e.id
}

func (m *Manager) Get(id EntityID) (*Entity, bool) {
	if !m.pool.Alive(id) {
		return nil, false
	}
	e, ok := m.entities[id]
	return e, ok
}

// Destroy drops e from the directory. The caller removes it from the world.
func (m *Manager) Destroy(e *Entity) {
	if m.entities[e.id] != e {
		return
	}
	delete(m.entities, e.id)
	m.pool.Destroy(e.id)
}

// MarkForDestruction queues e for removal at the next FlushDestroyed, so
// listeners later in the same dispatch still resolve it.
func (m *Manager) MarkForDestruction(e *Entity) {
	m.destroyQueue = append(m.destroyQueue, e)
}

// FlushDestroyed destroys every queued entity and returns them so the
// caller can take them off the grid.
func (m *Manager) FlushDestroyed() []*Entity {
	if len(m.destroyQueue) == 0 {
		return nil
	}
	out := make([]*Entity, 0, len(m.destroyQueue))
	for _, e := range m.destroyQueue {
		if m.entities[e.id] != e {
			continue // already gone
		}
		m.Destroy(e)
		out = append(out, e)
	}
	m.destroyQueue = m.destroyQueue[:0]
	return out
}

func (m *Manager) Len() int { return len(m.entities) }

// Each calls fn for every entity in id order until fn returns false.
func (m *Manager) Each(fn func(e *Entity) bool) {
	for _, e := range m.All() {
		if !fn(e) {
			return
		}
	}
}

// All returns every entity ordered by id.
func (m *Manager) All() []*Entity {
	out := make([]*Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	sortByID(out)
	return out
}

// OwnedBy returns the entities controlled by p, ordered by id.
func (m *Manager) OwnedBy(p *player.Player) []*Entity {
	var out []*Entity
	for _, e := range m.entities {
		if e.Owner != nil && e.Owner.Player == p {
			out = append(out, e)
		}
	}
	sortByID(out)
	return out
}

// FirstOwned returns the lowest-id entity of type t owned by p.
func (m *Manager) FirstOwned(p *player.Player, t *Type) (*Entity, bool) {
	for _, e := range m.OwnedBy(p) {
		if e.typ.Is(t) {
			return e, true
		}
	}
	return nil, false
}

func sortByID(es []*Entity) {
	sort.Slice(es, func(i, j int) bool { return es[i].id < es[j].id })
}
