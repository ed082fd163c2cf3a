package system

import (
	"fmt"

	"github.com/infectnet/server/internal/core/intent"
)

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseScripts  Phase = iota // 0: run every runnable player script
	PhaseActions               // 1: drain the action queue
	PhaseRequests              // 2: drain the request queue
	PhaseCleanup               // 3: destroy queued entities
	PhasePublish               // 4: hand status to the consumer
)

func (p Phase) String() string {
	switch p {
	case PhaseScripts:
		return "scripts"
	case PhaseActions:
		return "actions"
	case PhaseRequests:
		return "requests"
	case PhaseCleanup:
		return "cleanup"
	case PhasePublish:
		return "publish"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Processor is a pluggable unit of game rules. It registers listeners on
// the action queue (validate intents, enqueue requests) and on the request
// queue (mutate the world).
type Processor interface {
	RegisterActionListeners(q *intent.ActionQueue)
	RegisterRequestListeners(q *intent.RequestQueue)
}

// ActionOnly can be embedded by processors with no request listeners.
type ActionOnly struct{}

func (ActionOnly) RegisterRequestListeners(*intent.RequestQueue) {}

// RequestOnly can be embedded by processors with no action listeners.
type RequestOnly struct{}

func (RequestOnly) RegisterActionListeners(*intent.ActionQueue) {}

// RegisterAll wires every processor into both queues, in order.
func RegisterAll(actions *intent.ActionQueue, requests *intent.RequestQueue, ps ...Processor) {
	for _, p := range ps {
		p.RegisterActionListeners(actions)
		p.RegisterRequestListeners(requests)
	}
}
