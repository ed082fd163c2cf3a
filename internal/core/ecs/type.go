package ecs

// Template is the fixed default component set of a Type.
type Template struct {
	Health    int    // 0 = no health component
	Inventory int    // capacity, 0 = no inventory
	Attack    int    // damage dealt per attack
	Sight     int    // visibility radius in tiles
	Cost      int    // spawn cost paid from the owner's storage
	Owned     bool   // carries an owner component
	Visible   bool   // false = NothingVisible view
	Sprite    string // view sprite, defaults to the type name
}

// Type is the immutable class of a simulated object. Parent is a lookup
// relation forming a tree; it never owns the parent.
type Type struct {
	name     string
	category Category
	parent   *Type
	tmpl     Template
}

func NewType(name string, category Category, parent *Type, tmpl Template) *Type {
	if tmpl.Sprite == "" {
		tmpl.Sprite = name
	}
	return &Type{name: name, category: category, parent: parent, tmpl: tmpl}
}

func (t *Type) Name() string          { return t.name }
func (t *Type) Category() Category    { return t.category }
func (t *Type) Template() Template    { return t.tmpl }
func (t *Type) Parent() (*Type, bool) { return t.parent, t.parent != nil }

// CreateEntity builds a fresh entity carrying this type's default
// components. It touches no shared state; the entity has no id until a
// Manager adds it.
func (t *Type) CreateEntity() *Entity {
	e := &Entity{
		typ:      t,
		Position: &Position{},
	}
	if t.tmpl.Owned {
		e.Owner = &Owner{}
	}
	if t.tmpl.Health > 0 {
		e.Health = &Health{Current: t.tmpl.Health, Max: t.tmpl.Health}
	}
	if t.tmpl.Inventory > 0 {
		e.Inventory = NewInventory(t.tmpl.Inventory)
	}
	if t.tmpl.Visible {
		e.View = &View{Sprite: t.tmpl.Sprite}
	} else {
		e.View = NothingVisible
	}
	return e
}

// IsDescendantOf reports whether base is a strict ancestor of t. A type is
// not its own descendant.
func (t *Type) IsDescendantOf(base *Type) bool {
	if base == nil {
		return false
	}
	for p := t.parent; p != nil; p = p.parent {
		if p == base {
			return true
		}
	}
	return false
}

// Is reports whether t is base or descends from it.
func (t *Type) Is(base *Type) bool {
	return t == base || t.IsDescendantOf(base)
}

// Depth is the number of ancestors.
func (t *Type) Depth() int {
	n := 0
	for p := t.parent; p != nil; p = p.parent {
		n++
	}
	return n
}
