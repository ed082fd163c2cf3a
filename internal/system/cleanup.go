package system

// CleanupSystem flushes the deferred entity destruction queue at tick end
// and takes the destroyed entities off the grid.
type CleanupSystem struct {
	deps *Deps
}

func NewCleanupSystem(deps *Deps) *CleanupSystem {
	return &CleanupSystem{deps: deps}
}

// Flush runs in the cleanup phase.
func (s *CleanupSystem) Flush() {
	for _, e := range s.deps.Entities.FlushDestroyed() {
		s.deps.World.Remove(e)
	}
}
