package ecs

import (
	"fmt"
	"strings"
)

// Category is the broad kind of a Type.
type Category uint8

const (
	CategoryUnknown Category = iota
	CategoryWorker
	CategoryFighter
	CategoryResource
	CategoryStructure
)

func (c Category) String() string {
	switch c {
	case CategoryWorker:
		return "WORKER"
	case CategoryFighter:
		return "FIGHTER"
	case CategoryResource:
		return "RESOURCE"
	case CategoryStructure:
		return "STRUCTURE"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// ParseCategory accepts the names produced by String, case-insensitively.
func ParseCategory(s string) (Category, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WORKER":
		return CategoryWorker, nil
	case "FIGHTER":
		return CategoryFighter, nil
	case "RESOURCE":
		return CategoryResource, nil
	case "STRUCTURE":
		return CategoryStructure, nil
	}
	return CategoryUnknown, fmt.Errorf("unknown category %q", s)
}

func (c Category) MarshalText() ([]byte, error) {
	if c == CategoryUnknown {
		return nil, fmt.Errorf("cannot marshal unknown category")
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
