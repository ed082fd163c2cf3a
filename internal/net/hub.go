// Package net delivers per-tick status messages to websocket clients.
package net

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/infectnet/server/internal/core/player"
	"github.com/infectnet/server/internal/core/status"
	"go.uber.org/zap"
)

var ErrHubClosed = errors.New("status hub closed")

// Directory resolves the player a connection asks to watch and tracks
// whether anyone is watching.
type Directory interface {
	ByUsername(name string) (*player.Player, bool)
	SetObserved(p *player.Player)
	ClearObserved(p *player.Player)
}

type Options struct {
	SendBuffer   int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

// Hub accepts status connections and fans published messages out to the
// sessions bound to each player. It implements status.Consumer.
type Hub struct {
	players  Directory
	upgrader websocket.Upgrader
	opts     Options
	log      *zap.Logger

	mu       sync.RWMutex
	sessions map[*player.Player]map[string]*Session
	closed   bool
}

var _ status.Consumer = (*Hub)(nil)

func NewHub(players Directory, opts Options, log *zap.Logger) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 16
	}
	return &Hub{
		players: players,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		opts:     opts,
		log:      log,
		sessions: make(map[*player.Player]map[string]*Session),
	}
}

// Handler upgrades GET /status?player=<name>. Unknown players are refused
// before the upgrade.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.URL.Query().Get("player"))
		if name == "" {
			http.Error(w, "missing player", http.StatusBadRequest)
			return
		}
		p, ok := h.players.ByUsername(name)
		if !ok {
			http.Error(w, "unknown player", http.StatusNotFound)
			return
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Debug("status upgrade failed", zap.Error(err))
			return
		}
		s := newSession(conn, uuid.NewString(), p, h.opts, h.log)
		if err := h.attach(s); err != nil {
			s.Close()
			return
		}
		s.log.Info("status session opened", zap.String("remote", r.RemoteAddr))

		s.serve()

		h.detach(s)
		s.log.Info("status session closed", zap.Uint64("dropped", s.Dropped()))
	}
}

func (h *Hub) attach(s *Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	set, ok := h.sessions[s.Player]
	if !ok {
		set = make(map[string]*Session)
		h.sessions[s.Player] = set
	}
	set[s.ID] = s
	if len(set) == 1 {
		h.players.SetObserved(s.Player)
	}
	return nil
}

func (h *Hub) detach(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.sessions[s.Player]
	if !ok {
		return
	}
	if _, ok := set[s.ID]; !ok {
		return
	}
	delete(set, s.ID)
	if len(set) == 0 {
		delete(h.sessions, s.Player)
		h.players.ClearObserved(s.Player)
	}
}

// Consume encodes m once and queues it on every session watching p.
// Never blocks the tick: a session whose queue is full misses the message.
func (h *Hub) Consume(p *player.Player, m status.Message) {
	targets := h.sessionsOf(p)
	if len(targets) == 0 {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		h.log.Error("encode status failed", zap.String("player", p.Username()), zap.Error(err))
		return
	}
	for _, s := range targets {
		if !s.Send(data) && !s.IsClosed() {
			s.log.Debug("status message dropped", zap.Uint64("tick", m.Tick))
		}
	}
}

func (h *Hub) sessionsOf(p *player.Player) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.sessions[p]
	out := make([]*Session, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	return out
}

// Sessions returns how many connections watch p.
func (h *Hub) Sessions(p *player.Player) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[p])
}

// Len returns the number of open sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.sessions {
		n += len(set)
	}
	return n
}

// Close refuses new sessions and closes the open ones. Hijacked connections
// are not closed by http.Server.Shutdown, so call this during shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*Session
	for _, set := range h.sessions {
		for _, s := range set {
			all = append(all, s)
		}
	}
	h.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
