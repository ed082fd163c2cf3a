// Package engine assembles the simulation and exposes the operations the
// transport layer drives it with.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/infectnet/server/internal/config"
	"github.com/infectnet/server/internal/core/ecs"
	"github.com/infectnet/server/internal/core/intent"
	"github.com/infectnet/server/internal/core/loop"
	"github.com/infectnet/server/internal/core/player"
	"github.com/infectnet/server/internal/core/queue"
	"github.com/infectnet/server/internal/core/script"
	"github.com/infectnet/server/internal/core/status"
	coresys "github.com/infectnet/server/internal/core/system"
	"github.com/infectnet/server/internal/core/world"
	"github.com/infectnet/server/internal/data"
	"github.com/infectnet/server/internal/scripting"
	"github.com/infectnet/server/internal/system"
	"go.uber.org/zap"
)

// ErrInvalidArgument wraps every rejection of caller input.
var ErrInvalidArgument = errors.New("invalid argument")

const archiveTimeout = 5 * time.Second

// PlayerArchive keeps the names of created players across restarts.
type PlayerArchive interface {
	Save(ctx context.Context, username string) error
	LoadAll(ctx context.Context) ([]string, error)
}

// Deps are the optional collaborators of an Engine.
type Deps struct {
	Log      *zap.Logger
	Codes    script.Archive // nil disables source archiving
	Players  PlayerArchive  // nil disables player archiving
	OnTick   func(loop.Stats)
	Compiler script.Compiler // nil uses the lua compiler
}

// Engine owns one world and everything that acts on it.
type Engine struct {
	cfg *config.Config
	log *zap.Logger

	types     *ecs.TypeRegistry
	entities  *ecs.Manager
	world     *world.World
	players   *player.Service
	actions   *intent.ActionQueue
	requests  *intent.RequestQueue
	codes     *script.Repository
	compiler  script.Compiler
	executor  *scripting.Executor
	publisher *status.Publisher
	loop      *loop.GameLoop
	cleanup   *system.CleanupSystem

	codeArchive   script.Archive
	playerArchive PlayerArchive

	environment *player.Player
}

// New builds the engine from cfg. Nothing runs until Start.
func New(cfg *config.Config, deps Deps) (*Engine, error) {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		cfg:           cfg,
		log:           log,
		types:         ecs.NewTypeRegistry(),
		entities:      ecs.NewManager(),
		codes:         script.NewRepository(),
		compiler:      deps.Compiler,
		codeArchive:   deps.Codes,
		playerArchive: deps.Players,
	}

	n, err := data.LoadTypes(cfg.Content.TypesFile, e.types)
	if err != nil {
		return nil, fmt.Errorf("load types: %w", err)
	}
	log.Info("types loaded", zap.Int("count", n))

	var nestType *ecs.Type
	if cfg.Content.NestType != "" {
		t, ok := e.types.TypeByName(cfg.Content.NestType)
		if !ok {
			return nil, fmt.Errorf("nest type %q is not in the catalog", cfg.Content.NestType)
		}
		nestType = t
	}

	wc := cfg.World
	gen, err := world.NewGenerator(wc.Generator, wc.Seed, wc.FillPercent, wc.Passes)
	if err != nil {
		return nil, err
	}
	if e.world, err = world.New(wc.Width, wc.Height, gen); err != nil {
		return nil, fmt.Errorf("generate world: %w", err)
	}
	log.Info("world generated",
		zap.Int("width", wc.Width),
		zap.Int("height", wc.Height),
		zap.String("generator", wc.Generator),
	)

	e.players = player.NewService(log.Named("players"))
	e.actions = queue.New[intent.Action]("actions", log)
	e.requests = queue.New[intent.Request]("requests", log)

	sysDeps := &system.Deps{
		Types:       e.types,
		Entities:    e.entities,
		World:       e.world,
		Nests:       world.NewNestCustomizer(e.world, wc.NestMargin, int64(wc.Seed)),
		Requests:    e.requests,
		Log:         log.Named("system"),
		NestType:    nestType,
		Currency:    cfg.Content.Currency,
		SpawnRadius: wc.SpawnRadius,
	}
	e.cleanup = system.NewCleanupSystem(sysDeps)
	coresys.RegisterAll(e.actions, e.requests,
		system.NewSpawnSystem(sysDeps, cfg.Content.SpawnCategories),
		system.NewCreationSystem(sysDeps),
		system.NewNestSystem(sysDeps),
		system.NewMovementSystem(sysDeps),
		system.NewCombatSystem(sysDeps),
	)

	sc := cfg.Script
	if e.compiler == nil {
		e.compiler = scripting.NewCompiler(sc.MaxCompileErrors)
	}
	e.executor = scripting.NewExecutor(scripting.ExecutorConfig{
		Budget:     sc.Budget,
		MaxActions: sc.MaxActions,
		Limits: scripting.Limits{
			CallStackSize:   sc.CallStackSize,
			RegistrySize:    sc.RegistrySize,
			RegistryMaxSize: sc.RegistryMaxSize,
			MaxStringLen:    sc.MaxStringLen,
		},
	}, simView{e}, e.actions.Add, log.Named("script"))

	e.publisher = status.NewPublisher(e.players, e.entities, e.world, cfg.Status.PublishUnobserved, log.Named("status"))
	e.loop = loop.New(loop.Deps{
		Codes:            e.codes,
		Executor:         e.executor,
		Actions:          e.actions,
		Requests:         e.requests,
		Publisher:        e.publisher,
		Cleanup:          e.cleanup.Flush,
		OnTick:           deps.OnTick,
		MinShutdownGrace: cfg.Engine.ShutdownGrace,
	}, log.Named("loop"))
	if err := e.loop.SetDesiredTickDuration(cfg.Engine.TickRate); err != nil {
		return nil, err
	}

	e.players.AddInitializer(e.initPlayer)
	if name := cfg.Content.EnvironmentOwner; name != "" {
		if e.environment, err = e.players.Create(name); err != nil {
			return nil, fmt.Errorf("create environment player: %w", err)
		}
	}
	return e, nil
}

// initPlayer seeds a new player's storage and asks for their nest. The nest
// is placed by the request phase of the next tick.
func (e *Engine) initPlayer(p *player.Player) error {
	if e.cfg.Content.Currency != "" {
		p.Storage().Set(e.cfg.Content.Currency, e.cfg.Content.StartingAmount)
	}
	e.requests.Add(intent.EstablishNestRequest{Owner: p})
	return nil
}

// SetStatusConsumer must be called before the first Start.
func (e *Engine) SetStatusConsumer(c status.Consumer) error {
	return e.loop.SetStatusConsumer(c)
}

// Start runs the loop with period d. A no-op while running.
func (e *Engine) Start(d time.Duration) error {
	return e.loop.Start(d)
}

// StopBlocking stops the loop and waits for it. Reports whether the loop
// goroutine is confirmed gone.
func (e *Engine) StopBlocking(ctx context.Context) bool {
	return e.loop.StopAndWait(ctx)
}

// StopAsync requests a stop and returns at once. Always true.
func (e *Engine) StopAsync() bool {
	e.loop.Stop()
	return true
}

func (e *Engine) IsRunning() bool   { return e.loop.IsRunning() }
func (e *Engine) State() loop.State { return e.loop.State() }
func (e *Engine) Tick() uint64      { return e.loop.Tick() }

// CompileAndUpload compiles src for p and stores it whether or not it
// compiled. An empty result means the code will run from the next tick.
func (e *Engine) CompileAndUpload(p *player.Player, src string) []script.CompilationError {
	errs := e.upload(p, src)
	if e.codeArchive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := e.codeArchive.Save(ctx, p.Username(), src); err != nil {
			e.log.Warn("archive code failed", zap.String("player", p.Username()), zap.Error(err))
		}
	}
	return errs
}

func (e *Engine) upload(p *player.Player, src string) []script.CompilationError {
	unit, errs := e.compiler.Compile(src)
	code := script.NewCode(p, src, unit, errs)
	e.codes.Upsert(code)

	errs = code.Errors()
	e.log.Info("code uploaded",
		zap.String("player", p.Username()),
		zap.Int("errors", len(errs)),
		zap.String("digest", code.Digest()),
	)
	return errs
}

// SourceCode returns the last source uploaded for p.
func (e *Engine) SourceCode(p *player.Player) (string, bool) {
	code, ok := e.codes.CodeForPlayer(p)
	if !ok {
		return "", false
	}
	return code.Source(), true
}

// CreateOrGetPlayer returns the named player, creating it if needed.
func (e *Engine) CreateOrGetPlayer(name string) (*player.Player, error) {
	existing, ok := e.players.ByUsername(name)
	if ok {
		return existing, nil
	}
	p, err := e.players.GetOrCreate(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if e.playerArchive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := e.playerArchive.Save(ctx, p.Username()); err != nil {
			e.log.Warn("archive player failed", zap.String("player", p.Username()), zap.Error(err))
		}
	}
	return p, nil
}

func (e *Engine) SetObserved(p *player.Player)   { e.players.SetObserved(p) }
func (e *Engine) ClearObserved(p *player.Player) { e.players.ClearObserved(p) }

// FindPlayer looks a player up without creating it.
func (e *Engine) FindPlayer(name string) (*player.Player, bool) {
	return e.players.ByUsername(name)
}

// Players exposes the directory for transports that bind connections to
// players.
func (e *Engine) Players() *player.Service { return e.players }

// Environment returns the player that owns unclaimed entities, if configured.
func (e *Engine) Environment() (*player.Player, bool) {
	return e.environment, e.environment != nil
}

// Restore recreates archived players, then recompiles their archived
// sources. Call before Start.
func (e *Engine) Restore(ctx context.Context) error {
	restored := 0
	if e.playerArchive != nil {
		names, err := e.playerArchive.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("load players: %w", err)
		}
		for _, name := range names {
			if _, err := e.players.GetOrCreate(name); err != nil {
				e.log.Warn("skip archived player", zap.String("player", name), zap.Error(err))
				continue
			}
			restored++
		}
	}

	uploaded := 0
	if e.codeArchive != nil {
		sources, err := e.codeArchive.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("load codes: %w", err)
		}
		for name, src := range sources {
			p, err := e.players.GetOrCreate(name)
			if err != nil {
				e.log.Warn("skip archived code", zap.String("player", name), zap.Error(err))
				continue
			}
			e.upload(p, src)
			uploaded++
		}
	}
	e.log.Info("archive restored", zap.Int("players", restored), zap.Int("codes", uploaded))
	return nil
}

// simView is the executor's read access to the simulation.
type simView struct{ e *Engine }

func (v simView) Tick() uint64                               { return v.e.loop.Tick() }
func (v simView) Entity(id ecs.EntityID) (*ecs.Entity, bool) { return v.e.entities.Get(id) }
func (v simView) OwnedBy(p *player.Player) []*ecs.Entity     { return v.e.entities.OwnedBy(p) }
func (v simView) VisibleFrom(ent *ecs.Entity) []*ecs.Entity  { return v.e.world.VisibleEntities(ent) }
