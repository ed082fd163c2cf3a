package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/infectnet/server/internal/config"
	"github.com/infectnet/server/internal/core/ecs"
	"github.com/infectnet/server/internal/core/player"
	"github.com/infectnet/server/internal/core/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const spawnOneWorm = `
local has = false
for _, e in ipairs(entities()) do
  if e.type == "Worm" then has = true end
end
if not has then spawn("Worm") end
`

type capture struct {
	mu   sync.Mutex
	last map[string]status.Message
}

func (c *capture) Consume(p *player.Player, m status.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		c.last = make(map[string]status.Message)
	}
	c.last[p.Username()] = m
}

func (c *capture) has(name, typ string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range c.last[name].Entities {
		if v.Type == typ && v.Owner == name {
			return true
		}
	}
	return false
}

func (c *capture) tick(name string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last[name].Tick
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.World.Width = 24
	cfg.World.Height = 24
	cfg.World.Generator = "border"
	cfg.World.NestMargin = 3
	cfg.Engine.TickRate = 5 * time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T, deps Deps) (*Engine, *capture) {
	t.Helper()
	e, err := New(testConfig(), deps)
	require.NoError(t, err)
	c := &capture{}
	require.NoError(t, e.SetStatusConsumer(c))
	t.Cleanup(func() { e.StopBlocking(context.Background()) })
	return e, c
}

func ownedOfType(e *Engine, p *player.Player, name string) []*ecs.Entity {
	var out []*ecs.Entity
	for _, ent := range e.entities.OwnedBy(p) {
		if ent.Type().Name() == name {
			out = append(out, ent)
		}
	}
	return out
}

func TestNewCreatesEnvironmentPlayer(t *testing.T) {
	e, _ := newTestEngine(t, Deps{})

	env, ok := e.Environment()
	require.True(t, ok)
	assert.Equal(t, "Environment", env.Username())
	got, ok := e.Players().ByUsername("environment")
	require.True(t, ok)
	assert.Same(t, env, got)
}

func TestNewRejectsUnknownNestType(t *testing.T) {
	cfg := testConfig()
	cfg.Content.NestType = "Hive"
	_, err := New(cfg, Deps{})
	assert.ErrorContains(t, err, "Hive")
}

func TestUploadedScriptSpawnsWorm(t *testing.T) {
	e, c := newTestEngine(t, Deps{})

	alice, err := e.CreateOrGetPlayer("alice")
	require.NoError(t, err)
	assert.Equal(t, 50, alice.Storage().Get("Bit"))

	errs := e.CompileAndUpload(alice, spawnOneWorm)
	require.Empty(t, errs)

	require.NoError(t, e.Start(5*time.Millisecond))
	require.Eventually(t, func() bool { return c.has("alice", "Worm") }, 2*time.Second, 5*time.Millisecond)
	// a few more ticks; the script must not spawn again
	seen := c.tick("alice")
	require.Eventually(t, func() bool { return c.tick("alice") > seen+3 }, 2*time.Second, 5*time.Millisecond)
	require.True(t, e.StopBlocking(context.Background()))

	worms := ownedOfType(e, alice, "Worm")
	require.Len(t, worms, 1)
	assert.True(t, worms[0].Position.Placed)
	assert.Same(t, alice, worms[0].Owner.Player)
	assert.Len(t, ownedOfType(e, alice, "Nest"), 1)
	assert.Equal(t, 40, alice.Storage().Get("Bit"))
}

func TestFailingScriptDoesNotStopOthers(t *testing.T) {
	e, c := newTestEngine(t, Deps{})

	alice, err := e.CreateOrGetPlayer("alice")
	require.NoError(t, err)
	bob, err := e.CreateOrGetPlayer("bob")
	require.NoError(t, err)

	require.Empty(t, e.CompileAndUpload(bob, `spawn("Worm") error("boom")`))
	require.Empty(t, e.CompileAndUpload(alice, spawnOneWorm))

	require.NoError(t, e.Start(5*time.Millisecond))
	require.Eventually(t, func() bool { return c.has("alice", "Worm") }, 2*time.Second, 5*time.Millisecond)
	require.True(t, e.StopBlocking(context.Background()))

	assert.Empty(t, ownedOfType(e, bob, "Worm"))
	assert.Equal(t, 50, bob.Storage().Get("Bit"))
	assert.True(t, e.loop.Tick() > 0)
}

func TestFailedCompileKeepsSource(t *testing.T) {
	e, _ := newTestEngine(t, Deps{})
	alice, err := e.CreateOrGetPlayer("alice")
	require.NoError(t, err)

	_, ok := e.SourceCode(alice)
	assert.False(t, ok)

	src := "x = = 1"
	errs := e.CompileAndUpload(alice, src)
	require.NotEmpty(t, errs)
	assert.Equal(t, 1, errs[0].Line)

	got, ok := e.SourceCode(alice)
	require.True(t, ok)
	assert.Equal(t, src, got)

	code, ok := e.codes.CodeForPlayer(alice)
	require.True(t, ok)
	assert.False(t, code.IsRunnable())
}

func TestCreateOrGetPlayer(t *testing.T) {
	e, _ := newTestEngine(t, Deps{})

	a, err := e.CreateOrGetPlayer("alice")
	require.NoError(t, err)
	b, err := e.CreateOrGetPlayer("ALICE")
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = e.CreateOrGetPlayer("")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = e.CreateOrGetPlayer("no spaces allowed")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestObservedIsDelegated(t *testing.T) {
	e, _ := newTestEngine(t, Deps{})
	alice, err := e.CreateOrGetPlayer("alice")
	require.NoError(t, err)

	e.SetObserved(alice)
	assert.True(t, alice.Observed())
	e.ClearObserved(alice)
	assert.False(t, alice.Observed())
}

func TestStartNeedsConsumerAndStopAsync(t *testing.T) {
	e, err := New(testConfig(), Deps{Log: zap.NewNop()})
	require.NoError(t, err)
	assert.Error(t, e.Start(time.Millisecond))

	require.NoError(t, e.SetStatusConsumer(&capture{}))
	require.NoError(t, e.Start(time.Millisecond))
	assert.True(t, e.IsRunning())
	assert.True(t, e.StopAsync())
	assert.False(t, e.IsRunning())
	assert.True(t, e.StopBlocking(context.Background()))
}

type memArchive struct {
	mu      sync.Mutex
	players []string
	codes   map[string]string
}

func (m *memArchive) Save(_ context.Context, username, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codes == nil {
		m.codes = make(map[string]string)
	}
	m.codes[username] = source
	return nil
}

func (m *memArchive) LoadAll(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.codes))
	for k, v := range m.codes {
		out[k] = v
	}
	return out, nil
}

type memPlayers struct{ *memArchive }

func (m memPlayers) Save(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players = append(m.players, username)
	return nil
}

func (m memPlayers) LoadAll(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.players...), nil
}

func TestArchiveRoundTripThroughRestore(t *testing.T) {
	archive := &memArchive{}
	first, _ := newTestEngine(t, Deps{Codes: archive, Players: memPlayers{archive}})

	alice, err := first.CreateOrGetPlayer("alice")
	require.NoError(t, err)
	_, err = first.CreateOrGetPlayer("carol")
	require.NoError(t, err)
	first.CompileAndUpload(alice, spawnOneWorm)

	second, _ := newTestEngine(t, Deps{Codes: archive, Players: memPlayers{archive}})
	require.NoError(t, second.Restore(context.Background()))

	restored, ok := second.Players().ByUsername("alice")
	require.True(t, ok)
	src, ok := second.SourceCode(restored)
	require.True(t, ok)
	assert.Equal(t, spawnOneWorm, src)
	_, ok = second.Players().ByUsername("carol")
	assert.True(t, ok)
}
