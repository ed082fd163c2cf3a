package system

import (
	"fmt"

	"github.com/infectnet/server/internal/core/ecs"
	"github.com/infectnet/server/internal/core/intent"
	"github.com/infectnet/server/internal/core/player"
	coresys "github.com/infectnet/server/internal/core/system"
	"go.uber.org/zap"
)

// CreationSystem carries out creation requests: pays the spawn cost,
// instantiates the type and places it next to the owner's nest.
type CreationSystem struct {
	coresys.RequestOnly
	deps *Deps
}

func NewCreationSystem(deps *Deps) *CreationSystem {
	return &CreationSystem{deps: deps}
}

func (s *CreationSystem) RegisterRequestListeners(q *intent.RequestQueue) {
	q.AddListener(intent.KindCreateEntity, s.onCreate)
}

func (s *CreationSystem) onCreate(r intent.Request) error {
	req := r.(intent.CreateEntityRequest)
	log := s.deps.Log.With(zap.String("type", req.Type.Name()))
	if req.Owner != nil {
		log = log.With(zap.String("player", req.Owner.Username()))
	}

	at, ok := s.spawnPoint(req.Owner)
	if !ok {
		log.Debug("no free tile for new entity")
		return nil
	}

	cost := req.Type.Template().Cost
	if cost > 0 {
		if req.Owner == nil || !req.Owner.Storage().Take(s.deps.Currency, cost) {
			log.Debug("cannot afford spawn", zap.Int("cost", cost))
			return nil
		}
	}

	e := req.Type.CreateEntity()
	if e.Owner != nil {
		e.Owner.Player = req.Owner
	}
	if err := s.deps.World.Place(e, at); err != nil {
		if cost > 0 {
			req.Owner.Storage().Add(s.deps.Currency, cost)
		}
		return fmt.Errorf("place %s: %w", req.Type.Name(), err)
	}
	id := s.deps.Entities.Add(e)
	log.Debug("entity created", zap.Uint64("id", uint64(id)), zap.Int("x", at.X), zap.Int("y", at.Y))
	return nil
}

// spawnPoint finds a free passable tile around the owner's nest, or any
// nest-eligible tile when the owner has none.
func (s *CreationSystem) spawnPoint(owner *player.Player) (ecs.Point, bool) {
	if owner != nil && s.deps.NestType != nil {
		if nest, ok := s.deps.Entities.FirstOwned(owner, s.deps.NestType); ok {
			if center, placed := s.deps.World.PositionOf(nest); placed {
				return s.deps.World.FreeTileNear(center, s.deps.SpawnRadius)
			}
		}
	}
	return s.deps.Nests.RandomNestPosition()
}
