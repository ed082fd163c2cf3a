package system

import (
	"context"
	"errors"
	"testing"

	"github.com/infectnet/server/internal/core/intent"
	"github.com/infectnet/server/internal/core/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunnerOrdersByPhaseThenRegistration(t *testing.T) {
	r := NewRunner()
	var order []string
	add := func(p Phase, name string) {
		r.Register(p, name, func(context.Context) { order = append(order, name) })
	}
	add(PhasePublish, "publish")
	add(PhaseScripts, "scripts")
	add(PhaseRequests, "requests")
	add(PhaseActions, "actions-1")
	add(PhaseActions, "actions-2")

	require.NoError(t, r.Tick(context.Background()))
	assert.Equal(t, []string{"scripts", "actions-1", "actions-2", "requests", "publish"}, order)
}

func TestRunnerStopsWhenCancelled(t *testing.T) {
	r := NewRunner()
	ctx, cancel := context.WithCancel(context.Background())
	var ran []Phase
	r.Register(PhaseScripts, "scripts", func(context.Context) {
		ran = append(ran, PhaseScripts)
		cancel()
	})
	r.Register(PhasePublish, "publish", func(context.Context) { ran = append(ran, PhasePublish) })

	err := r.Tick(ctx)
	var ie *InterruptedError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, PhasePublish, ie.Phase)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []Phase{PhaseScripts}, ran)
}

type countingProcessor struct {
	ActionOnly
	seen *int
}

func (p countingProcessor) RegisterActionListeners(q *intent.ActionQueue) {
	q.AddListener(intent.KindSpawn, func(intent.Action) error {
		*p.seen++
		return nil
	})
}

func TestRegisterAll(t *testing.T) {
	actions := queue.New[intent.Action]("actions", zap.NewNop())
	requests := queue.New[intent.Request]("requests", zap.NewNop())
	var seen int
	RegisterAll(actions, requests, countingProcessor{seen: &seen}, countingProcessor{seen: &seen})

	actions.Add(intent.SpawnAction{TypeName: "Worm"})
	actions.ProcessAll()
	assert.Equal(t, 2, seen)
	assert.Equal(t, "requests", PhaseRequests.String())
}
