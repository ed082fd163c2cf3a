package player

import "sync/atomic"

// Player is a participant whose code runs every tick. Players live for the
// lifetime of the process.
type Player struct {
	username string
	key      string // case-folded username, directory key
	observed atomic.Bool
	storage  *Storage
}

func newPlayer(username, key string) *Player {
	return &Player{
		username: username,
		key:      key,
		storage:  NewStorage(),
	}
}

func (p *Player) Username() string  { return p.username }
func (p *Player) Observed() bool    { return p.observed.Load() }
func (p *Player) Storage() *Storage { return p.storage }
func (p *Player) String() string    { return p.username }
