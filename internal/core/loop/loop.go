// Package loop drives the simulation: one goroutine runs ticks back to back
// with a minimum period between tick starts.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/infectnet/server/internal/core/intent"
	"github.com/infectnet/server/internal/core/script"
	"github.com/infectnet/server/internal/core/status"
	"github.com/infectnet/server/internal/core/system"
	"go.uber.org/zap"
)

var (
	ErrNilConsumer      = errors.New("status consumer is nil")
	ErrNoStatusConsumer = errors.New("no status consumer set")
	ErrNegativeDuration = errors.New("tick duration is negative")
	ErrRunning          = errors.New("game loop is not idle")
)

// DefaultShutdownGrace is the smallest wait StopAndWait uses, so a zero
// tick period still gets a bounded grace window.
const DefaultShutdownGrace = 50 * time.Millisecond

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStoppingGraceful
	StateStoppingForced
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStoppingGraceful:
		return "stopping-graceful"
	case StateStoppingForced:
		return "stopping-forced"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Publisher is the end-of-tick status step.
type Publisher interface {
	Publish(tick uint64, c status.Consumer) int
}

// Stats describes one finished tick.
type Stats struct {
	Tick      uint64
	Started   time.Time
	Elapsed   time.Duration
	Wait      time.Duration
	Scripts   int
	Failed    int
	Actions   int
	Requests  int
	Published int
}

// Deps are the collaborators a tick drives.
type Deps struct {
	Codes     *script.Repository
	Executor  script.Executor
	Actions   *intent.ActionQueue
	Requests  *intent.RequestQueue
	Publisher Publisher

	// Cleanup runs after the request phase, before publishing.
	Cleanup func()
	// OnTick, if set, receives every tick's stats on the loop goroutine.
	OnTick func(Stats)
	// MinShutdownGrace overrides DefaultShutdownGrace.
	MinShutdownGrace time.Duration
}

// GameLoop is the tick scheduler. Control methods are safe from any
// goroutine; ticks only ever run on the loop's own goroutine.
type GameLoop struct {
	deps   Deps
	log    *zap.Logger
	runner *system.Runner

	mu       sync.Mutex
	state    State
	desired  time.Duration
	consumer status.Consumer
	stop     chan struct{} // closed to ask the goroutine to exit
	cancel   context.CancelFunc
	done     chan struct{} // closed when the goroutine exits

	tick atomic.Uint64

	// per-tick scratch, loop goroutine only
	cur     Stats
	curCons status.Consumer
}

func New(deps Deps, log *zap.Logger) *GameLoop {
	if deps.MinShutdownGrace <= 0 {
		deps.MinShutdownGrace = DefaultShutdownGrace
	}
	l := &GameLoop{
		deps:   deps,
		log:    log,
		runner: system.NewRunner(),
	}
	l.runner.Register(system.PhaseScripts, "scripts", l.runScripts)
	l.runner.Register(system.PhaseActions, "actions", func(context.Context) {
		l.cur.Actions = deps.Actions.ProcessAll()
	})
	l.runner.Register(system.PhaseRequests, "requests", func(context.Context) {
		l.cur.Requests = deps.Requests.ProcessAll()
	})
	if deps.Cleanup != nil {
		l.runner.Register(system.PhaseCleanup, "cleanup", func(context.Context) {
			deps.Cleanup()
		})
	}
	l.runner.Register(system.PhasePublish, "publish", func(context.Context) {
		l.cur.Published = deps.Publisher.Publish(l.cur.Tick, l.curCons)
	})
	return l
}

// SetStatusConsumer sets the sink for published status.
func (l *GameLoop) SetStatusConsumer(c status.Consumer) error {
	if c == nil {
		return ErrNilConsumer
	}
	l.mu.Lock()
	l.consumer = c
	l.mu.Unlock()
	return nil
}

// SetDesiredTickDuration changes the minimum tick period. Idle only.
func (l *GameLoop) SetDesiredTickDuration(d time.Duration) error {
	if d < 0 {
		return ErrNegativeDuration
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateIdle {
		return ErrRunning
	}
	l.desired = d
	return nil
}

func (l *GameLoop) DesiredTickDuration() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.desired
}

// Start launches the loop goroutine with the first tick due immediately.
// It is a no-op while running.
func (l *GameLoop) Start(d time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateRunning:
		return nil
	case StateStoppingGraceful, StateStoppingForced:
		return ErrRunning
	}
	if l.consumer == nil {
		return ErrNoStatusConsumer
	}
	if d < 0 {
		return ErrNegativeDuration
	}

	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan struct{})
	done := make(chan struct{})
	prev := l.done

	l.desired = d
	l.stop, l.cancel, l.done = stop, cancel, done
	l.state = StateRunning

	go l.run(ctx, cancel, stop, done, prev, d)
	l.log.Info("game loop started", zap.Duration("tick", d))
	return nil
}

// Stop asks the loop to exit after the tick in progress and returns at
// once. The loop reports Idle immediately.
func (l *GameLoop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateRunning {
		return
	}
	l.closeStopLocked()
	l.state = StateIdle
	l.log.Info("game loop stop requested")
}

// StopAndWait asks the loop to exit and waits up to three tick periods.
// When that expires the tick in progress is cancelled and it waits one
// period more. Cancelling ctx counts as an interruption: the tick is
// cancelled and false returned. Returns whether the goroutine is
// confirmed gone.
func (l *GameLoop) StopAndWait(ctx context.Context) bool {
	l.mu.Lock()
	done, cancel := l.done, l.cancel
	if done == nil {
		l.mu.Unlock()
		return true
	}
	l.closeStopLocked()
	l.state = StateStoppingGraceful
	grace := max(3*l.desired, l.deps.MinShutdownGrace)
	extra := max(l.desired, l.deps.MinShutdownGrace)
	l.mu.Unlock()

	finished, interrupted := wait(ctx, done, grace)
	if !finished && !interrupted {
		l.setState(StateStoppingForced)
		l.log.Warn("game loop did not stop in time, cancelling tick", zap.Duration("grace", grace))
		cancel()
		finished, interrupted = wait(ctx, done, extra)
	}
	if interrupted {
		cancel()
		l.log.Warn("stop interrupted, tick cancelled")
	}

	l.setState(StateIdle)
	if finished {
		l.log.Info("game loop stopped", zap.Uint64("ticks", l.tick.Load()))
	}
	return finished && !interrupted
}

func (l *GameLoop) IsRunning() bool { return l.State() == StateRunning }

func (l *GameLoop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Tick returns the number of ticks started so far.
func (l *GameLoop) Tick() uint64 { return l.tick.Load() }

func (l *GameLoop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *GameLoop) closeStopLocked() {
	if l.stop != nil {
		close(l.stop)
		l.stop = nil
	}
}

// wait blocks until done closes, d elapses or ctx ends.
func wait(ctx context.Context, done <-chan struct{}, d time.Duration) (finished, interrupted bool) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-done:
		return true, false
	case <-ctx.Done():
		return false, true
	case <-t.C:
		return false, false
	}
}

func (l *GameLoop) run(ctx context.Context, cancel context.CancelFunc, stop <-chan struct{}, done chan<- struct{}, prev <-chan struct{}, d time.Duration) {
	defer close(done)
	defer cancel()

	if prev != nil {
		<-prev // previous run still finishing its last tick
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		select {
		case <-stop:
			return
		default:
		}

		start := time.Now()
		l.runTick(ctx, start)
		elapsed := time.Since(start)

		next := d - elapsed
		if next < 0 {
			next = 0 // overran: no catch-up, no sleep
		}
		l.cur.Elapsed, l.cur.Wait = elapsed, next
		l.report(l.cur)
		timer.Reset(next)
	}
}

func (l *GameLoop) runTick(ctx context.Context, start time.Time) {
	l.mu.Lock()
	l.curCons = l.consumer
	l.mu.Unlock()

	l.cur = Stats{Tick: l.tick.Add(1), Started: start}
	if err := l.runner.Tick(ctx); err != nil {
		l.log.Info("tick interrupted", zap.Uint64("tick", l.cur.Tick), zap.Error(err))
	}
}

// runScripts executes every runnable code in username order. A failing
// script is logged against its owner and the rest still run.
func (l *GameLoop) runScripts(ctx context.Context) {
	for _, code := range l.deps.Codes.AllCodes() {
		if ctx.Err() != nil {
			return
		}
		if !code.IsRunnable() {
			continue
		}
		l.cur.Scripts++
		if err := l.safeExecute(ctx, code); err != nil {
			l.cur.Failed++
			l.log.Warn("script failed",
				zap.String("player", code.Owner().Username()),
				zap.Uint64("tick", l.cur.Tick),
				zap.Error(err),
			)
		}
	}
}

func (l *GameLoop) safeExecute(ctx context.Context, code *script.Code) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("executor panic: %v", rec)
		}
	}()
	return l.deps.Executor.Execute(ctx, code.Unit(), code.Owner())
}

func (l *GameLoop) report(s Stats) {
	l.log.Debug("tick",
		zap.Uint64("tick", s.Tick),
		zap.Duration("elapsed", s.Elapsed),
		zap.Duration("wait", s.Wait),
		zap.Int("scripts", s.Scripts),
		zap.Int("failed", s.Failed),
		zap.Int("actions", s.Actions),
		zap.Int("requests", s.Requests),
		zap.Int("published", s.Published),
	)
	if l.deps.OnTick != nil {
		l.deps.OnTick(s)
	}
}
