package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/infectnet/server/internal/core/player"
	"go.uber.org/zap"
)

const maxInboundMessage = 4 << 10

// Session is one websocket connection watching a player. The hub pushes
// encoded status messages through Send; a dedicated goroutine writes them.
type Session struct {
	ID     string
	Player *player.Player
	conn   *websocket.Conn

	OutQueue chan []byte

	writeTimeout time.Duration
	readTimeout  time.Duration

	dropped   atomic.Uint64
	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	log *zap.Logger
}

func newSession(conn *websocket.Conn, id string, p *player.Player, opts Options, log *zap.Logger) *Session {
	return &Session{
		ID:           id,
		Player:       p,
		conn:         conn,
		OutQueue:     make(chan []byte, opts.SendBuffer),
		writeTimeout: opts.WriteTimeout,
		readTimeout:  opts.ReadTimeout,
		closeCh:      make(chan struct{}),
		log:          log.With(zap.String("session", id), zap.String("player", p.Username())),
	}
}

// Send queues data for the writer without blocking. Returns false when the
// session is closed or its queue is full; a full queue drops the message.
func (s *Session) Send(data []byte) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.OutQueue <- data:
		return true
	case <-s.closeCh:
		return false
	default:
		s.dropped.Add(1)
		return false
	}
}

// Dropped returns how many messages were discarded because the queue was full.
func (s *Session) Dropped() uint64 { return s.dropped.Load() }

func (s *Session) IsClosed() bool { return s.closed.Load() }

// Close shuts the connection down. Safe to call from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		s.conn.Close()
	})
}

// serve runs the writer in its own goroutine and the reader on the caller's
// goroutine. It returns once the connection is gone.
func (s *Session) serve() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop()
	}()
	s.readLoop()
	<-done
}

// readLoop discards client frames. It exists to notice disconnects and to
// answer pings; the status channel is one-way.
func (s *Session) readLoop() {
	defer s.Close()

	s.conn.SetReadLimit(maxInboundMessage)
	s.extendRead()
	s.conn.SetPongHandler(func(string) error {
		s.extendRead()
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("status session read failed", zap.Error(err))
			}
			return
		}
		s.extendRead()
	}
}

func (s *Session) writeLoop() {
	defer s.Close()

	var ping <-chan time.Time
	if s.readTimeout > 0 {
		t := time.NewTicker(s.readTimeout * 9 / 10)
		defer t.Stop()
		ping = t.C
	}
	for {
		select {
		case data := <-s.OutQueue:
			s.setWriteDeadline()
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !s.closed.Load() {
					s.log.Debug("status session write failed", zap.Error(err))
				}
				return
			}
		case <-ping:
			deadline := time.Now().Add(time.Second)
			if s.writeTimeout > 0 {
				deadline = time.Now().Add(s.writeTimeout)
			}
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) extendRead() {
	if s.readTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}
}

func (s *Session) setWriteDeadline() {
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
}
