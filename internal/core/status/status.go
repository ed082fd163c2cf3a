// Package status builds the per-player snapshot published after each tick.
package status

import (
	"github.com/infectnet/server/internal/core/ecs"
	"github.com/infectnet/server/internal/core/player"
)

// EntityView is the observable part of one entity.
type EntityView struct {
	ID        uint64 `json:"id"`
	Type      string `json:"type"`
	Category  string `json:"category"`
	Sprite    string `json:"sprite,omitempty"`
	Owner     string `json:"owner,omitempty"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Health    int    `json:"health,omitempty"`
	MaxHealth int    `json:"max_health,omitempty"`
}

// Message is one recipient's state at the end of a tick.
type Message struct {
	Tick      uint64         `json:"tick"`
	Recipient string         `json:"recipient"`
	Entities  []EntityView   `json:"entities"`
	Resources map[string]int `json:"resources,omitempty"`
}

// Consumer receives status messages on the tick goroutine. Implementations
// hand off to their own transport and must return quickly.
type Consumer interface {
	Consume(p *player.Player, m Message)
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(p *player.Player, m Message)

func (f ConsumerFunc) Consume(p *player.Player, m Message) { f(p, m) }

// Fanout delivers every message to each consumer in order.
type Fanout []Consumer

func (f Fanout) Consume(p *player.Player, m Message) {
	for _, c := range f {
		c.Consume(p, m)
	}
}

func viewOf(e *ecs.Entity) EntityView {
	v := EntityView{
		ID:       uint64(e.ID()),
		Type:     e.Type().Name(),
		Category: e.Type().Category().String(),
	}
	if e.View != nil {
		v.Sprite = e.View.Sprite
	}
	if e.Owner != nil && e.Owner.Player != nil {
		v.Owner = e.Owner.Player.Username()
	}
	if e.Position != nil {
		v.X, v.Y = e.Position.At.X, e.Position.At.Y
	}
	if e.Health != nil {
		v.Health, v.MaxHealth = e.Health.Current, e.Health.Max
	}
	return v
}
