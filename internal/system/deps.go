package system

import (
	"github.com/infectnet/server/internal/core/ecs"
	"github.com/infectnet/server/internal/core/intent"
	"github.com/infectnet/server/internal/core/world"
	"go.uber.org/zap"
)

// Deps holds the simulation state shared by all content systems.
type Deps struct {
	Types    *ecs.TypeRegistry
	Entities *ecs.Manager
	World    *world.World
	Nests    *world.NestCustomizer
	Requests *intent.RequestQueue
	Log      *zap.Logger

	NestType    *ecs.Type // entity placed for every new player
	Currency    string    // storage resource spawn costs are paid in
	SpawnRadius int       // how far from the nest a spawn may land
}

// owns reports whether e is controlled by the issuer of an action.
func owns(e *ecs.Entity, a intent.Action) bool {
	return e.Owner != nil && e.Owner.Player != nil && e.Owner.Player == a.Issuer()
}

// resolve returns the live entity for id, or nil.
func (d *Deps) resolve(id ecs.EntityID) *ecs.Entity {
	e, ok := d.Entities.Get(id)
	if !ok {
		return nil
	}
	return e
}

// current reports whether e is still part of the simulation.
func (d *Deps) current(e *ecs.Entity) bool {
	got, ok := d.Entities.Get(e.ID())
	return ok && got == e
}
