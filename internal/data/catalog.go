package data

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/infectnet/server/internal/core/ecs"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed types.yaml
var builtinTypes []byte

//go:embed types.schema.json
var typesSchema []byte

// TypeEntry is one type as written in the catalog.
type TypeEntry struct {
	Name      string       `yaml:"name"`
	Category  ecs.Category `yaml:"category"`
	Parent    string       `yaml:"parent"`
	Health    int          `yaml:"health"`
	Inventory int          `yaml:"inventory"`
	Attack    int          `yaml:"attack"`
	Sight     int          `yaml:"sight"`
	Cost      int          `yaml:"cost"`
	Owned     bool         `yaml:"owned"`
	Visible   *bool        `yaml:"visible"` // nil = visible
	Sprite    string       `yaml:"sprite"`
}

type typeListFile struct {
	Types []TypeEntry `yaml:"types"`
}

var ErrParentCycle = errors.New("parent cycle")

// LoadTypes reads a catalog from path, or the built-in one when path is
// empty, and registers every type into reg.
func LoadTypes(path string, reg *ecs.TypeRegistry) (int, error) {
	doc := builtinTypes
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("read types: %w", err)
		}
		doc = data
	}
	entries, err := ParseTypes(doc)
	if err != nil {
		return 0, fmt.Errorf("parse types: %w", err)
	}
	return len(entries), RegisterTypes(entries, reg)
}

// ParseTypes validates a YAML catalog against the schema and decodes it.
func ParseTypes(doc []byte) ([]TypeEntry, error) {
	if err := validateSchema(doc); err != nil {
		return nil, err
	}
	var f typeListFile
	if err := yaml.Unmarshal(doc, &f); err != nil {
		return nil, err
	}
	return f.Types, nil
}

func validateSchema(doc []byte) error {
	var raw any
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return err
	}
	// round-trip through JSON so the validator sees JSON value kinds
	js, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("catalog is not JSON-representable: %w", err)
	}
	var v any
	if err := json.Unmarshal(js, &v); err != nil {
		return err
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("types.schema.json", bytes.NewReader(typesSchema)); err != nil {
		return err
	}
	schema, err := c.Compile("types.schema.json")
	if err != nil {
		return err
	}
	return schema.Validate(v)
}

// RegisterTypes registers entries parents-first. Unknown parents and
// cycles fail before anything is registered.
func RegisterTypes(entries []TypeEntry, reg *ecs.TypeRegistry) error {
	byName := make(map[string]*TypeEntry, len(entries))
	for i := range entries {
		e := &entries[i]
		if _, dup := byName[e.Name]; dup {
			return &ecs.NameAlreadyRegisteredError{Name: e.Name}
		}
		byName[e.Name] = e
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(entries))
	order := make([]*TypeEntry, 0, len(entries))
	var visit func(e *TypeEntry) error
	visit = func(e *TypeEntry) error {
		switch state[e.Name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w through %q", ErrParentCycle, e.Name)
		}
		state[e.Name] = visiting
		if e.Parent != "" {
			p, ok := byName[e.Parent]
			if !ok {
				if _, external := reg.TypeByName(e.Parent); !external {
					return fmt.Errorf("type %q: %w %q", e.Name, ecs.ErrUnknownParent, e.Parent)
				}
			} else if err := visit(p); err != nil {
				return err
			}
		}
		state[e.Name] = done
		order = append(order, e)
		return nil
	}
	for i := range entries {
		if err := visit(&entries[i]); err != nil {
			return err
		}
	}

	for _, e := range order {
		var parent *ecs.Type
		if e.Parent != "" {
			parent, _ = reg.TypeByName(e.Parent)
		}
		visible := e.Visible == nil || *e.Visible
		t := ecs.NewType(e.Name, e.Category, parent, ecs.Template{
			Health:    e.Health,
			Inventory: e.Inventory,
			Attack:    e.Attack,
			Sight:     e.Sight,
			Cost:      e.Cost,
			Owned:     e.Owned,
			Visible:   visible,
			Sprite:    e.Sprite,
		})
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("register %q: %w", e.Name, err)
		}
	}
	return nil
}
