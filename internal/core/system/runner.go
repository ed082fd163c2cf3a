package system

import (
	"context"
	"fmt"
	"sort"
)

// Step is one piece of work the Runner executes in its phase.
type Step func(ctx context.Context)

type entry struct {
	phase Phase
	name  string
	run   Step
}

// Runner executes steps in phase order each tick. Steps of one phase run
// in registration order.
type Runner struct {
	steps  []entry
	sorted bool
}

func NewRunner() *Runner {
	return &Runner{
		steps: make([]entry, 0, 8),
	}
}

func (r *Runner) Register(phase Phase, name string, s Step) {
	r.steps = append(r.steps, entry{phase: phase, name: name, run: s})
	r.sorted = false
}

// InterruptedError reports the step a cancelled tick stopped before.
type InterruptedError struct {
	Phase Phase
	Step  string
	Err   error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("tick interrupted before %s/%s: %v", e.Phase, e.Step, e.Err)
}

func (e *InterruptedError) Unwrap() error { return e.Err }

// Tick runs every step. ctx is checked before each one; once it is done
// the remaining steps are skipped.
func (r *Runner) Tick(ctx context.Context) error {
	r.ensureSorted()
	for _, s := range r.steps {
		if err := ctx.Err(); err != nil {
			return &InterruptedError{Phase: s.phase, Step: s.name, Err: err}
		}
		s.run(ctx)
	}
	return nil
}

func (r *Runner) Len() int { return len(r.steps) }

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.steps, func(i, j int) bool {
			return r.steps[i].phase < r.steps[j].phase
		})
		r.sorted = true
	}
}
