package system

import (
	"errors"

	"github.com/infectnet/server/internal/core/ecs"
	"github.com/infectnet/server/internal/core/intent"
	coresys "github.com/infectnet/server/internal/core/system"
	"github.com/infectnet/server/internal/core/world"
	"go.uber.org/zap"
)

// MovementSystem turns move actions into one-tile moves. The action side
// checks ownership and terrain; the request side re-checks the tile is
// still free, since an earlier request may have taken it.
type MovementSystem struct {
	deps *Deps
}

func NewMovementSystem(deps *Deps) *MovementSystem {
	return &MovementSystem{deps: deps}
}

var _ coresys.Processor = (*MovementSystem)(nil)

func (s *MovementSystem) RegisterActionListeners(q *intent.ActionQueue) {
	q.AddListener(intent.KindMove, s.onMove)
}

func (s *MovementSystem) RegisterRequestListeners(q *intent.RequestQueue) {
	q.AddListener(intent.KindMoveEntity, s.onMoveEntity)
}

func mobile(t *ecs.Type) bool {
	c := t.Category()
	return c == ecs.CategoryWorker || c == ecs.CategoryFighter
}

func (s *MovementSystem) onMove(a intent.Action) error {
	act := a.(intent.MoveAction)
	e := s.deps.resolve(act.Entity)
	if e == nil || !owns(e, a) || !mobile(e.Type()) {
		return nil
	}
	if act.DX < -1 || act.DX > 1 || act.DY < -1 || act.DY > 1 || (act.DX == 0 && act.DY == 0) {
		return nil
	}
	from, placed := s.deps.World.PositionOf(e)
	if !placed {
		return nil
	}
	to := from.Add(act.DX, act.DY)
	if !s.deps.World.Passable(to) || s.deps.World.Occupant(to) != nil {
		return nil
	}
	s.deps.Requests.Add(intent.MoveEntityRequest{Entity: e, To: to})
	return nil
}

func (s *MovementSystem) onMoveEntity(r intent.Request) error {
	req := r.(intent.MoveEntityRequest)
	if !s.deps.current(req.Entity) {
		return nil
	}
	if err := s.deps.World.Move(req.Entity, req.To); err != nil {
		if errors.Is(err, world.ErrOccupied) {
			s.deps.Log.Debug("move lost the race for a tile", zap.Uint64("id", uint64(req.Entity.ID())))
			return nil
		}
		return err
	}
	return nil
}
