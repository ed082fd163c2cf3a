package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/infectnet/server/internal/core/ecs"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Engine   EngineConfig   `toml:"engine"`
	World    WorldConfig    `toml:"world"`
	Script   ScriptConfig   `toml:"script"`
	Content  ContentConfig  `toml:"content"`
	Status   StatusConfig   `toml:"status"`
	Database DatabaseConfig `toml:"database"`
	HTTP     HTTPConfig     `toml:"http"`
	Logging  LoggingConfig  `toml:"logging"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	StartTime int64  // set at boot, not from config
}

type EngineConfig struct {
	TickRate      time.Duration `toml:"tick_rate"`
	ShutdownGrace time.Duration `toml:"shutdown_grace"` // floor for StopAndWait's wait
	AutoStart     bool          `toml:"auto_start"`
}

type WorldConfig struct {
	Width       int    `toml:"width"`
	Height      int    `toml:"height"`
	Generator   string `toml:"generator"` // "border" or "cellular"
	Seed        uint64 `toml:"seed"`
	FillPercent int    `toml:"fill_percent"`
	Passes      int    `toml:"passes"`
	NestMargin  int    `toml:"nest_margin"`
	SpawnRadius int    `toml:"spawn_radius"`
}

type ScriptConfig struct {
	Budget           time.Duration `toml:"budget"` // wall-clock limit per script per tick
	MaxActions       int           `toml:"max_actions"`
	CallStackSize    int           `toml:"call_stack_size"`
	RegistrySize     int           `toml:"registry_size"`
	RegistryMaxSize  int           `toml:"registry_max_size"`
	MaxStringLen     int           `toml:"max_string_len"`
	MaxCompileErrors int           `toml:"max_compile_errors"`
}

type ContentConfig struct {
	TypesFile        string         `toml:"types_file"` // empty = built-in catalog
	NestType         string         `toml:"nest_type"`
	Currency         string         `toml:"currency"`
	StartingAmount   int            `toml:"starting_amount"`
	SpawnCategories  []ecs.Category `toml:"spawn_categories"`
	EnvironmentOwner string         `toml:"environment_owner"`
}

type StatusConfig struct {
	PublishUnobserved bool   `toml:"publish_unobserved"`
	RecordDir         string `toml:"record_dir"` // empty = no recording
	SessionBuffer     int    `toml:"session_buffer"`
}

type DatabaseConfig struct {
	Driver          string        `toml:"driver"` // "postgres", "sqlite" or "" for none
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type HTTPConfig struct {
	BindAddress  string        `toml:"bind_address"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.TickRate < 0 {
		errs = append(errs, errors.New("engine.tick_rate must not be negative"))
	}
	if c.Engine.ShutdownGrace < 0 {
		errs = append(errs, errors.New("engine.shutdown_grace must not be negative"))
	}
	if c.World.Width <= 0 || c.World.Height <= 0 {
		errs = append(errs, fmt.Errorf("world size %dx%d must be positive", c.World.Width, c.World.Height))
	}
	if c.World.FillPercent < 0 || c.World.FillPercent > 100 {
		errs = append(errs, errors.New("world.fill_percent must be within 0-100"))
	}
	if 2*c.World.NestMargin >= min(c.World.Width, c.World.Height) && c.World.Width > 0 && c.World.Height > 0 {
		errs = append(errs, errors.New("world.nest_margin leaves no room for nests"))
	}
	if c.Script.Budget < 0 {
		errs = append(errs, errors.New("script.budget must not be negative"))
	}
	if c.Content.StartingAmount < 0 {
		errs = append(errs, errors.New("content.starting_amount must not be negative"))
	}
	switch c.Database.Driver {
	case "", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}
	return errors.Join(errs...)
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "InfectNet",
		},
		Engine: EngineConfig{
			TickRate:      500 * time.Millisecond,
			ShutdownGrace: 100 * time.Millisecond,
			AutoStart:     true,
		},
		World: WorldConfig{
			Width:       64,
			Height:      64,
			Generator:   "border",
			Seed:        1,
			FillPercent: 45,
			Passes:      4,
			NestMargin:  4,
			SpawnRadius: 3,
		},
		Script: ScriptConfig{
			Budget:           50 * time.Millisecond,
			MaxActions:       64,
			CallStackSize:    128,
			RegistrySize:     1024 * 4,
			RegistryMaxSize:  1024 * 64,
			MaxStringLen:     1 << 16,
			MaxCompileErrors: 16,
		},
		Content: ContentConfig{
			NestType:         "Nest",
			Currency:         "Bit",
			StartingAmount:   50,
			SpawnCategories:  []ecs.Category{ecs.CategoryWorker, ecs.CategoryFighter},
			EnvironmentOwner: "Environment",
		},
		Status: StatusConfig{
			PublishUnobserved: true,
			SessionBuffer:     16,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		HTTP: HTTPConfig{
			BindAddress:  "0.0.0.0:8080",
			WriteTimeout: 10 * time.Second,
			ReadTimeout:  60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
