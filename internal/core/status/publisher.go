package status

import (
	"sort"

	"github.com/infectnet/server/internal/core/ecs"
	"github.com/infectnet/server/internal/core/player"
	"github.com/infectnet/server/internal/core/world"
	"go.uber.org/zap"
)

// Publisher computes each recipient's view. It only reads simulation
// state and runs on the tick goroutine.
type Publisher struct {
	players    *player.Service
	entities   *ecs.Manager
	world      *world.World
	unobserved bool
	log        *zap.Logger
}

// NewPublisher builds a publisher. With publishUnobserved every player is
// a recipient, otherwise only observed ones.
func NewPublisher(players *player.Service, entities *ecs.Manager, w *world.World, publishUnobserved bool, log *zap.Logger) *Publisher {
	return &Publisher{
		players:    players,
		entities:   entities,
		world:      w,
		unobserved: publishUnobserved,
		log:        log,
	}
}

// Publish sends one message per recipient with resolvable state and
// returns how many were sent.
func (p *Publisher) Publish(tick uint64, c Consumer) int {
	var recipients []*player.Player
	if p.unobserved {
		recipients = p.players.All()
	} else {
		recipients = p.players.Observed()
	}

	sent := 0
	for _, r := range recipients {
		msg, ok := p.Snapshot(tick, r)
		if !ok {
			p.log.Debug("recipient has no state", zap.String("player", r.Username()))
			continue
		}
		c.Consume(r, msg)
		sent++
	}
	return sent
}

// Snapshot returns what r can see: all of r's entities plus every visible
// entity within their sight. Reports false when r owns nothing.
func (p *Publisher) Snapshot(tick uint64, r *player.Player) (Message, bool) {
	own := p.entities.OwnedBy(r)
	if len(own) == 0 {
		return Message{}, false
	}

	seen := make(map[*ecs.Entity]struct{}, len(own)*4)
	views := make([]*ecs.Entity, 0, len(own)*4)
	for _, e := range own {
		seen[e] = struct{}{}
		views = append(views, e)
	}
	for _, e := range own {
		for _, o := range p.world.VisibleEntities(e) {
			if _, dup := seen[o]; dup {
				continue
			}
			seen[o] = struct{}{}
			if o.View == nil || o.View.Hidden {
				continue
			}
			views = append(views, o)
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID() < views[j].ID() })

	msg := Message{
		Tick:      tick,
		Recipient: r.Username(),
		Entities:  make([]EntityView, len(views)),
		Resources: r.Storage().Snapshot(),
	}
	for i, e := range views {
		msg.Entities[i] = viewOf(e)
	}
	return msg, true
}
