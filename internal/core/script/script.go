// Package script holds the engine-neutral side of player code: compiler and
// executor contracts, compiled units and the per-player code repository.
package script

import (
	"context"
	"fmt"

	"github.com/infectnet/server/internal/core/player"
)

// CompilationError locates one problem in a submitted source. Line and
// Column are 1-based; Column is 0 when the compiler only knows the line.
type CompilationError struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

func (e CompilationError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Unit is the runnable form of a source, produced by a Compiler and only
// meaningful to the matching Executor.
type Unit interface {
	Language() string
}

// Compiler turns source into a Unit. A non-empty error list means the
// source is not runnable; the Unit is nil then.
type Compiler interface {
	Compile(source string) (Unit, []CompilationError)
}

// Executor runs a Unit once on behalf of a player. Side effects happen only
// through the actions it emits. It must honour ctx cancellation and bound
// the run's resource use on its own.
type Executor interface {
	Execute(ctx context.Context, unit Unit, p *player.Player) error
}
