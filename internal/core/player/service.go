package player

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrInvalidName = errors.New("invalid player name")
	ErrExists      = errors.New("player already exists")
)

// Initializer runs once for every newly created player, before the player
// becomes visible in the directory. It must not call back into the Service.
type Initializer func(p *Player) error

// Service is the player directory. Safe for concurrent use: lookups and
// creation come from the control plane while the tick goroutine iterates.
type Service struct {
	mu      sync.RWMutex
	byKey   map[string]*Player
	initFns []Initializer
	log     *zap.Logger
}

func NewService(log *zap.Logger) *Service {
	return &Service{
		byKey: make(map[string]*Player),
		log:   log,
	}
}

// AddInitializer appends a hook run on every Create. Call during wiring only.
func (s *Service) AddInitializer(fn Initializer) {
	s.initFns = append(s.initFns, fn)
}

// ByUsername looks a player up case-insensitively.
func (s *Service) ByUsername(name string) (*Player, bool) {
	_, key, err := NormalizeName(name)
	if err != nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byKey[key]
	return p, ok
}

// Create registers a new player and runs the initializers.
func (s *Service) Create(name string) (*Player, error) {
	display, key, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, display)
	}
	p := newPlayer(display, key)
	for _, fn := range s.initFns {
		if err := fn(p); err != nil {
			return nil, fmt.Errorf("initialize player %s: %w", display, err)
		}
	}
	s.byKey[key] = p
	s.log.Info("player created", zap.String("player", display))
	return p, nil
}

// GetOrCreate returns the existing player or creates it.
func (s *Service) GetOrCreate(name string) (*Player, error) {
	if p, ok := s.ByUsername(name); ok {
		return p, nil
	}
	p, err := s.Create(name)
	if errors.Is(err, ErrExists) {
		// lost a race with another creator
		if existing, ok := s.ByUsername(name); ok {
			return existing, nil
		}
	}
	return p, err
}

// All returns every player sorted by username.
func (s *Service) All() []*Player {
	s.mu.RLock()
	out := make([]*Player, 0, len(s.byKey))
	for _, p := range s.byKey {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// Observed returns the observed players sorted by username.
func (s *Service) Observed() []*Player {
	all := s.All()
	out := all[:0]
	for _, p := range all {
		if p.Observed() {
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

func (s *Service) SetObserved(p *Player) {
	if !p.observed.Swap(true) {
		s.log.Debug("player observed", zap.String("player", p.username))
	}
}

func (s *Service) ClearObserved(p *Player) {
	if p.observed.Swap(false) {
		s.log.Debug("player no longer observed", zap.String("player", p.username))
	}
}
