package net

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/infectnet/server/internal/core/player"
	"github.com/infectnet/server/internal/core/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) (*Hub, *player.Service, string) {
	t.Helper()
	players := player.NewService(zap.NewNop())
	hub := NewHub(players, Options{SendBuffer: 4, WriteTimeout: time.Second, ReadTimeout: 5 * time.Second}, zap.NewNop())
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, players, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHubRejectsUnknownPlayer(t *testing.T) {
	_, _, url := newTestHub(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?player=nobody", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHubDeliversStatusAndTracksObservation(t *testing.T) {
	hub, players, url := newTestHub(t)
	alice, err := players.Create("alice")
	require.NoError(t, err)
	bob, err := players.Create("bob")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?player=Alice", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.Sessions(alice) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, alice.Observed())
	assert.False(t, bob.Observed())

	hub.Consume(bob, status.Message{Tick: 1, Recipient: "bob"})
	hub.Consume(alice, status.Message{
		Tick:      7,
		Recipient: "alice",
		Entities:  []status.EntityView{{ID: 3, Type: "Worm", Category: "WORKER", X: 4, Y: 5}},
	})

	var got status.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, uint64(7), got.Tick)
	assert.Equal(t, "alice", got.Recipient)
	require.Len(t, got.Entities, 1)
	assert.Equal(t, "Worm", got.Entities[0].Type)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, alice.Observed())
}

func TestHubKeepsObservedUntilLastSessionLeaves(t *testing.T) {
	hub, players, url := newTestHub(t)
	alice, err := players.Create("alice")
	require.NoError(t, err)

	first, _, err := websocket.DefaultDialer.Dial(url+"?player=alice", nil)
	require.NoError(t, err)
	second, _, err := websocket.DefaultDialer.Dial(url+"?player=alice", nil)
	require.NoError(t, err)
	defer second.Close()
	require.Eventually(t, func() bool { return hub.Sessions(alice) == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return hub.Sessions(alice) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, alice.Observed())
}

func TestHubCloseDisconnectsSessions(t *testing.T) {
	hub, players, url := newTestHub(t)
	_, err := players.Create("alice")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?player=alice", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	require.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestSessionSendDropsWhenFull(t *testing.T) {
	s := &Session{
		OutQueue: make(chan []byte, 1),
		closeCh:  make(chan struct{}),
	}

	assert.True(t, s.Send([]byte("a")))
	assert.False(t, s.Send([]byte("b")))
	assert.Equal(t, uint64(1), s.Dropped())

	<-s.OutQueue
	assert.True(t, s.Send([]byte("c")))
}
