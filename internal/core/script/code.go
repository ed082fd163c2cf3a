package script

import (
	"encoding/hex"

	"github.com/infectnet/server/internal/core/player"
	"golang.org/x/crypto/blake2b"
)

// Code is one player's latest submission. It is replaced wholesale on
// upload and never modified afterwards.
type Code struct {
	owner  *player.Player
	source string
	unit   Unit
	errs   []CompilationError
	digest string
}

// NewCode records a compile result. unit is dropped when errs is non-empty.
func NewCode(owner *player.Player, source string, unit Unit, errs []CompilationError) *Code {
	if len(errs) > 0 {
		unit = nil
	}
	return &Code{
		owner:  owner,
		source: source,
		unit:   unit,
		errs:   errs,
		digest: Digest(source),
	}
}

func (c *Code) Owner() *player.Player { return c.owner }
func (c *Code) Source() string        { return c.source }
func (c *Code) Unit() Unit            { return c.unit }
func (c *Code) Digest() string        { return c.digest }

// Errors returns the compile errors of this submission.
func (c *Code) Errors() []CompilationError {
	out := make([]CompilationError, len(c.errs))
	copy(out, c.errs)
	return out
}

// IsRunnable reports whether the source compiled.
func (c *Code) IsRunnable() bool { return c.unit != nil }

// Digest is the hex BLAKE2b-256 of a source text.
func Digest(source string) string {
	sum := blake2b.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}
