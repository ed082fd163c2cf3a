// Package intent defines the items that travel through the action and
// request queues.
//
// Actions are what player scripts ask for. Processor systems validate them
// and turn accepted ones into requests, which are the only items allowed to
// mutate the world.
package intent

import (
	"github.com/infectnet/server/internal/core/ecs"
	"github.com/infectnet/server/internal/core/player"
	"github.com/infectnet/server/internal/core/queue"
)

// Action kinds.
const (
	KindSpawn queue.Kind = iota + 1
	KindMove
	KindAttack
)

// Request kinds. Numbered apart from actions so a misrouted item is
// obvious in logs.
const (
	KindCreateEntity queue.Kind = iota + 100
	KindEstablishNest
	KindMoveEntity
	KindDamage
)

// Action is a player-issued intent.
type Action interface {
	queue.Item
	Issuer() *player.Player
}

// Request is a validated world mutation.
type Request interface {
	queue.Item
}

type SpawnAction struct {
	Player   *player.Player
	TypeName string
}

func (SpawnAction) Kind() queue.Kind         { return KindSpawn }
func (a SpawnAction) Issuer() *player.Player { return a.Player }

// MoveAction asks to move one owned entity by one tile.
type MoveAction struct {
	Player *player.Player
	Entity ecs.EntityID
	DX, DY int
}

func (MoveAction) Kind() queue.Kind         { return KindMove }
func (a MoveAction) Issuer() *player.Player { return a.Player }

type AttackAction struct {
	Player   *player.Player
	Attacker ecs.EntityID
	Target   ecs.EntityID
}

func (AttackAction) Kind() queue.Kind         { return KindAttack }
func (a AttackAction) Issuer() *player.Player { return a.Player }

// CreateEntityRequest asks for a new entity of Type owned by Owner.
type CreateEntityRequest struct {
	Owner *player.Player
	Type  *ecs.Type
}

func (CreateEntityRequest) Kind() queue.Kind { return KindCreateEntity }

// EstablishNestRequest places a new player's nest.
type EstablishNestRequest struct {
	Owner *player.Player
}

func (EstablishNestRequest) Kind() queue.Kind { return KindEstablishNest }

type MoveEntityRequest struct {
	Entity *ecs.Entity
	To     ecs.Point
}

func (MoveEntityRequest) Kind() queue.Kind { return KindMoveEntity }

type DamageRequest struct {
	Source *ecs.Entity
	Target *ecs.Entity
	Amount int
}

func (DamageRequest) Kind() queue.Kind { return KindDamage }

// ActionQueue and RequestQueue are the two queues a tick drains.
type (
	ActionQueue  = queue.Queue[Action]
	RequestQueue = queue.Queue[Request]
)
