package script

import (
	"context"
	"sort"
	"sync"

	"github.com/infectnet/server/internal/core/player"
)

// Repository maps each player to their current Code. Uploads arrive from
// control-plane goroutines while the tick reads AllCodes.
type Repository struct {
	mu    sync.RWMutex
	codes map[*player.Player]*Code
}

func NewRepository() *Repository {
	return &Repository{codes: make(map[*player.Player]*Code)}
}

// Upsert replaces the player's entry.
func (r *Repository) Upsert(c *Code) {
	r.mu.Lock()
	r.codes[c.owner] = c
	r.mu.Unlock()
}

func (r *Repository) CodeForPlayer(p *player.Player) (*Code, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codes[p]
	return c, ok
}

// AllCodes returns a snapshot ordered by username.
func (r *Repository) AllCodes() []*Code {
	r.mu.RLock()
	out := make([]*Code, 0, len(r.codes))
	for _, c := range r.codes {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].owner.Username() < out[j].owner.Username()
	})
	return out
}

func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.codes)
}

// Archive stores submitted sources outside the process.
type Archive interface {
	Save(ctx context.Context, username, source string) error
	LoadAll(ctx context.Context) (map[string]string, error)
}
