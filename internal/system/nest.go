package system

import (
	"github.com/infectnet/server/internal/core/intent"
	coresys "github.com/infectnet/server/internal/core/system"
	"go.uber.org/zap"
)

// NestSystem gives each new player their nest.
type NestSystem struct {
	coresys.RequestOnly
	deps *Deps
}

func NewNestSystem(deps *Deps) *NestSystem {
	return &NestSystem{deps: deps}
}

func (s *NestSystem) RegisterRequestListeners(q *intent.RequestQueue) {
	q.AddListener(intent.KindEstablishNest, s.onEstablish)
}

func (s *NestSystem) onEstablish(r intent.Request) error {
	req := r.(intent.EstablishNestRequest)
	if s.deps.NestType == nil || req.Owner == nil {
		return nil
	}
	if _, exists := s.deps.Entities.FirstOwned(req.Owner, s.deps.NestType); exists {
		return nil
	}

	at, ok := s.deps.Nests.RandomNestPosition()
	if !ok {
		s.deps.Log.Warn("no room for nest", zap.String("player", req.Owner.Username()))
		return nil
	}
	nest := s.deps.NestType.CreateEntity()
	if nest.Owner != nil {
		nest.Owner.Player = req.Owner
	}
	if err := s.deps.World.Place(nest, at); err != nil {
		return err
	}
	s.deps.Entities.Add(nest)
	s.deps.Log.Info("nest established",
		zap.String("player", req.Owner.Username()),
		zap.Int("x", at.X),
		zap.Int("y", at.Y),
	)
	return nil
}
