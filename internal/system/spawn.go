package system

import (
	"github.com/infectnet/server/internal/core/ecs"
	"github.com/infectnet/server/internal/core/intent"
	coresys "github.com/infectnet/server/internal/core/system"
	"go.uber.org/zap"
)

// DefaultSpawnable are the categories scripts may spawn unless configured
// otherwise.
var DefaultSpawnable = []ecs.Category{ecs.CategoryWorker, ecs.CategoryFighter}

// SpawnSystem validates spawn actions and turns them into creation
// requests. Unknown types and disallowed categories are dropped.
type SpawnSystem struct {
	coresys.ActionOnly
	deps    *Deps
	allowed map[ecs.Category]bool
}

func NewSpawnSystem(deps *Deps, allowed []ecs.Category) *SpawnSystem {
	if len(allowed) == 0 {
		allowed = DefaultSpawnable
	}
	s := &SpawnSystem{deps: deps, allowed: make(map[ecs.Category]bool, len(allowed))}
	for _, c := range allowed {
		s.allowed[c] = true
	}
	return s
}

func (s *SpawnSystem) RegisterActionListeners(q *intent.ActionQueue) {
	q.AddListener(intent.KindSpawn, s.onSpawn)
}

func (s *SpawnSystem) onSpawn(a intent.Action) error {
	act := a.(intent.SpawnAction)
	t, ok := s.deps.Types.TypeByName(act.TypeName)
	if !ok {
		s.deps.Log.Debug("spawn of unknown type ignored",
			zap.String("player", act.Player.Username()),
			zap.String("type", act.TypeName),
		)
		return nil
	}
	if !s.allowed[t.Category()] {
		s.deps.Log.Debug("spawn of disallowed category ignored",
			zap.String("player", act.Player.Username()),
			zap.String("type", t.Name()),
			zap.Stringer("category", t.Category()),
		)
		return nil
	}
	s.deps.Requests.Add(intent.CreateEntityRequest{Owner: act.Player, Type: t})
	return nil
}
