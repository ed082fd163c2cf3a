package scripting

import (
	"errors"
	"strings"

	"github.com/infectnet/server/internal/core/script"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

const chunkName = "player"

// Compiler turns Lua source into shared function protos.
//
// The gopher-lua parser stops at the first syntax error. To report more
// than one, the offending line is blanked and the source parsed again,
// up to MaxErrors times. Blanking a block header leaves its terminator
// dangling, so after a mask an error at a terminator or at end of input
// is masked in turn without being reported.
type Compiler struct {
	MaxErrors int
}

func NewCompiler(maxErrors int) *Compiler {
	if maxErrors <= 0 {
		maxErrors = 1
	}
	return &Compiler{MaxErrors: maxErrors}
}

func (c *Compiler) Compile(source string) (script.Unit, []script.CompilationError) {
	lines := strings.Split(source, "\n")
	var errs []script.CompilationError

	for len(errs) < c.MaxErrors {
		chunk, err := parse.Parse(strings.NewReader(strings.Join(lines, "\n")), chunkName)
		if err == nil {
			if len(errs) > 0 {
				return nil, errs
			}
			proto, err := lua.Compile(chunk, chunkName)
			if err != nil {
				return nil, []script.CompilationError{fromCompileError(err)}
			}
			return &unit{proto: proto}, nil
		}

		ce := fromSyntaxError(err, len(lines))
		if len(errs) == 0 || !maskArtifact(err) {
			errs = append(errs, ce)
		}
		idx := ce.Line - 1
		if idx < 0 || idx >= len(lines) || strings.TrimSpace(lines[idx]) == "" {
			break // nothing left to mask
		}
		lines[idx] = ""
	}
	return nil, errs
}

// block terminators a blanked header leaves behind
var terminators = map[string]bool{"end": true, "until": true, "else": true, "elseif": true}

func maskArtifact(err error) bool {
	var pe *parse.Error
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Pos.Line == parse.EOF || terminators[pe.Token]
}

func fromSyntaxError(err error, lastLine int) script.CompilationError {
	var pe *parse.Error
	if !errors.As(err, &pe) {
		return script.CompilationError{Line: 1, Message: err.Error()}
	}
	ce := script.CompilationError{
		Line:    pe.Pos.Line,
		Column:  pe.Pos.Column,
		Message: pe.Message,
	}
	if pe.Pos.Line == parse.EOF {
		ce.Line, ce.Column = lastLine, 0
		ce.Message += " at end of input"
	} else if pe.Token != "" {
		ce.Message += " near '" + pe.Token + "'"
	}
	return ce
}

func fromCompileError(err error) script.CompilationError {
	var ce *lua.CompileError
	if errors.As(err, &ce) {
		return script.CompilationError{Line: ce.Line, Message: ce.Message}
	}
	return script.CompilationError{Line: 1, Message: err.Error()}
}
