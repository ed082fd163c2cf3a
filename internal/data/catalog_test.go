package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/infectnet/server/internal/core/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinCatalog(t *testing.T) {
	reg := ecs.NewTypeRegistry()
	n, err := LoadTypes("", reg)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	worm, ok := reg.TypeByName("Worm")
	require.True(t, ok)
	assert.Equal(t, ecs.CategoryWorker, worm.Category())
	e := worm.CreateEntity()
	assert.Equal(t, 15, e.Health.Max)
	assert.Equal(t, 20, e.Inventory.Capacity)
	assert.Same(t, ecs.NothingVisible, e.View)

	warrior, _ := reg.TypeByName("Warrior")
	soldier, _ := reg.TypeByName("Soldier")
	assert.True(t, warrior.IsDescendantOf(soldier))
	assert.Equal(t, "warrior", warrior.Template().Sprite)

	nest, _ := reg.TypeByName("Nest")
	assert.Equal(t, "Nest", nest.CreateEntity().View.Sprite)
}

func TestParentsMayAppearAfterChildren(t *testing.T) {
	doc := []byte(`
types:
  - name: Elite
    category: FIGHTER
    parent: Guard
  - name: Guard
    category: FIGHTER
    parent: Base
  - name: Base
    category: FIGHTER
`)
	entries, err := ParseTypes(doc)
	require.NoError(t, err)
	reg := ecs.NewTypeRegistry()
	require.NoError(t, RegisterTypes(entries, reg))
	elite, _ := reg.TypeByName("Elite")
	base, _ := reg.TypeByName("Base")
	assert.True(t, elite.IsDescendantOf(base))
	assert.Equal(t, 2, elite.Depth())
}

func TestRejectsBrokenCatalogs(t *testing.T) {
	cases := map[string]string{
		"cycle": `
types:
  - {name: A, category: WORKER, parent: B}
  - {name: B, category: WORKER, parent: A}`,
		"unknown parent": `
types:
  - {name: A, category: WORKER, parent: Ghost}`,
		"duplicate": `
types:
  - {name: A, category: WORKER}
  - {name: A, category: FIGHTER}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			entries, err := ParseTypes([]byte(doc))
			require.NoError(t, err)
			reg := ecs.NewTypeRegistry()
			assert.Error(t, RegisterTypes(entries, reg))
			assert.Zero(t, reg.Len(), "nothing registered on failure")
		})
	}
}

func TestSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"negative health": "types:\n  - {name: A, category: WORKER, health: -1}\n",
		"bad category":    "types:\n  - {name: A, category: DRAGON}\n",
		"unknown field":   "types:\n  - {name: A, category: WORKER, wings: 2}\n",
		"missing name":    "types:\n  - {category: WORKER}\n",
		"empty":           "types: []\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTypes([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadTypesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.yaml")
	require.NoError(t, os.WriteFile(path, []byte("types:\n  - {name: Slime, category: WORKER, health: 3, owned: true}\n"), 0o644))
	reg := ecs.NewTypeRegistry()
	n, err := LoadTypes(path, reg)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := reg.TypeByName("Slime")
	assert.True(t, ok)
}
