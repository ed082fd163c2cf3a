package scripting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/infectnet/server/internal/core/ecs"
	"github.com/infectnet/server/internal/core/intent"
	"github.com/infectnet/server/internal/core/player"
	"github.com/infectnet/server/internal/core/script"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

var (
	ErrBudgetExceeded = errors.New("script exceeded its time budget")
	ErrActionLimit    = errors.New("script exceeded its action limit")
	ErrForeignUnit    = errors.New("unit was not compiled by the lua compiler")
)

// View is the read-only slice of the simulation a script can query.
// Called on the tick goroutine only.
type View interface {
	Tick() uint64
	Entity(id ecs.EntityID) (*ecs.Entity, bool)
	OwnedBy(p *player.Player) []*ecs.Entity
	VisibleFrom(e *ecs.Entity) []*ecs.Entity
}

// ExecutorConfig bounds each run.
type ExecutorConfig struct {
	Budget     time.Duration
	MaxActions int
	Limits     Limits
}

// Executor runs each unit in a fresh sandboxed state. Emitted actions are
// buffered for the run and handed to emit only when the run succeeds.
type Executor struct {
	cfg  ExecutorConfig
	view View
	emit func(intent.Action)
	log  *zap.Logger
}

func NewExecutor(cfg ExecutorConfig, view View, emit func(intent.Action), log *zap.Logger) *Executor {
	return &Executor{cfg: cfg, view: view, emit: emit, log: log}
}

// run carries the per-execution state the API functions close over.
type run struct {
	ex      *Executor
	player  *player.Player
	actions []intent.Action

	// set once the limit is hit; a pcall catching the error does not clear it
	overLimit bool
}

func (e *Executor) Execute(ctx context.Context, u script.Unit, p *player.Player) (err error) {
	lu, ok := u.(*unit)
	if !ok || lu == nil {
		return ErrForeignUnit
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	L, err := newSandbox(e.cfg.Limits)
	if err != nil {
		return err
	}
	defer L.Close()

	runCtx := ctx
	if e.cfg.Budget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.Budget)
		defer cancel()
	}
	L.SetContext(runCtx)

	r := &run{ex: e, player: p}
	r.install(L)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("script panic: %v", rec)
		}
	}()

	callErr := L.CallByParam(lua.P{
		Fn:      L.NewFunctionFromProto(lu.proto),
		NRet:    0,
		Protect: true,
	})
	if callErr != nil {
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			return fmt.Errorf("%w (%s)", ErrBudgetExceeded, e.cfg.Budget)
		case r.overLimit:
			return fmt.Errorf("%w (%d)", ErrActionLimit, e.cfg.MaxActions)
		}
		return fmt.Errorf("run script: %w", callErr)
	}
	if r.overLimit {
		return fmt.Errorf("%w (%d)", ErrActionLimit, e.cfg.MaxActions)
	}

	for _, a := range r.actions {
		e.emit(a)
	}
	return nil
}

func (r *run) install(L *lua.LState) {
	L.SetGlobal("tick", lua.LNumber(r.ex.view.Tick()))
	L.SetGlobal("player", lua.LString(r.player.Username()))
	L.SetGlobal("spawn", L.NewFunction(r.spawn))
	L.SetGlobal("move", L.NewFunction(r.move))
	L.SetGlobal("attack", L.NewFunction(r.attack))
	L.SetGlobal("entities", L.NewFunction(r.entities))
	L.SetGlobal("nearby", L.NewFunction(r.nearby))
	L.SetGlobal("resource", L.NewFunction(r.resource))
	L.SetGlobal("log", L.NewFunction(r.logMessage))
}

func (r *run) push(L *lua.LState, a intent.Action) {
	if limit := r.ex.cfg.MaxActions; limit > 0 && (r.overLimit || len(r.actions) >= limit) {
		r.overLimit = true
		L.RaiseError("action limit of %d reached", limit)
	}
	r.actions = append(r.actions, a)
}

// spawn(type_name)
func (r *run) spawn(L *lua.LState) int {
	r.push(L, intent.SpawnAction{Player: r.player, TypeName: L.CheckString(1)})
	return 0
}

// move(id, dx, dy)
func (r *run) move(L *lua.LState) int {
	r.push(L, intent.MoveAction{
		Player: r.player,
		Entity: ecs.EntityID(L.CheckNumber(1)),
		DX:     L.CheckInt(2),
		DY:     L.CheckInt(3),
	})
	return 0
}

// attack(id, target_id)
func (r *run) attack(L *lua.LState) int {
	r.push(L, intent.AttackAction{
		Player:   r.player,
		Attacker: ecs.EntityID(L.CheckNumber(1)),
		Target:   ecs.EntityID(L.CheckNumber(2)),
	})
	return 0
}

// entities() returns the caller's own entities.
func (r *run) entities(L *lua.LState) int {
	L.Push(r.entityList(L, r.ex.view.OwnedBy(r.player)))
	return 1
}

// nearby(id) returns what one of the caller's entities can see.
func (r *run) nearby(L *lua.LState) int {
	id := ecs.EntityID(L.CheckNumber(1))
	e, ok := r.ex.view.Entity(id)
	if !ok || e.Owner == nil || e.Owner.Player != r.player {
		L.Push(L.NewTable())
		return 1
	}
	var seen []*ecs.Entity
	for _, o := range r.ex.view.VisibleFrom(e) {
		if o.View != ecs.NothingVisible {
			seen = append(seen, o)
		}
	}
	L.Push(r.entityList(L, seen))
	return 1
}

// resource(name) returns the caller's stored amount.
func (r *run) resource(L *lua.LState) int {
	L.Push(lua.LNumber(r.player.Storage().Get(L.CheckString(1))))
	return 1
}

func (r *run) logMessage(L *lua.LState) int {
	r.ex.log.Debug("script log",
		zap.String("player", r.player.Username()),
		zap.String("msg", L.CheckString(1)),
	)
	return 0
}

func (r *run) entityList(L *lua.LState, es []*ecs.Entity) *lua.LTable {
	t := L.CreateTable(len(es), 0)
	for _, e := range es {
		row := L.CreateTable(0, 8)
		row.RawSetString("id", lua.LNumber(e.ID()))
		row.RawSetString("type", lua.LString(e.Type().Name()))
		row.RawSetString("category", lua.LString(e.Type().Category().String()))
		if e.Position != nil && e.Position.Placed {
			row.RawSetString("x", lua.LNumber(e.Position.At.X))
			row.RawSetString("y", lua.LNumber(e.Position.At.Y))
		}
		if e.Health != nil {
			row.RawSetString("health", lua.LNumber(e.Health.Current))
			row.RawSetString("max_health", lua.LNumber(e.Health.Max))
		}
		if e.Owner != nil && e.Owner.Player != nil {
			row.RawSetString("owner", lua.LString(e.Owner.Player.Username()))
		}
		t.Append(row)
	}
	return t
}
