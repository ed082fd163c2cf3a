package system

import (
	"github.com/infectnet/server/internal/core/intent"
	coresys "github.com/infectnet/server/internal/core/system"
	"go.uber.org/zap"
)

// CombatSystem resolves attacks between adjacent entities. An entity whose
// health reaches zero is queued for destruction.
type CombatSystem struct {
	deps *Deps
}

func NewCombatSystem(deps *Deps) *CombatSystem {
	return &CombatSystem{deps: deps}
}

var _ coresys.Processor = (*CombatSystem)(nil)

func (s *CombatSystem) RegisterActionListeners(q *intent.ActionQueue) {
	q.AddListener(intent.KindAttack, s.onAttack)
}

func (s *CombatSystem) RegisterRequestListeners(q *intent.RequestQueue) {
	q.AddListener(intent.KindDamage, s.onDamage)
}

func (s *CombatSystem) onAttack(a intent.Action) error {
	act := a.(intent.AttackAction)
	attacker := s.deps.resolve(act.Attacker)
	target := s.deps.resolve(act.Target)
	if attacker == nil || target == nil || attacker == target || !owns(attacker, a) {
		return nil
	}
	power := attacker.Type().Template().Attack
	if power <= 0 || target.Health == nil || !attacker.Alive() {
		return nil
	}
	from, ok1 := s.deps.World.PositionOf(attacker)
	to, ok2 := s.deps.World.PositionOf(target)
	if !ok1 || !ok2 || from.Chebyshev(to) > 1 {
		return nil
	}
	s.deps.Requests.Add(intent.DamageRequest{Source: attacker, Target: target, Amount: power})
	return nil
}

func (s *CombatSystem) onDamage(r intent.Request) error {
	req := r.(intent.DamageRequest)
	t := req.Target
	if !s.deps.current(t) || !t.Alive() || !req.Source.Alive() {
		return nil
	}
	if left := t.Health.Damage(req.Amount); left > 0 {
		return nil
	}
	s.deps.Entities.MarkForDestruction(t)
	s.deps.Log.Debug("entity destroyed",
		zap.Uint64("id", uint64(t.ID())),
		zap.String("type", t.Type().Name()),
		zap.Uint64("by", uint64(req.Source.ID())),
	)
	return nil
}
