// Package scripting runs player code on gopher-lua.
package scripting

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

const language = "lua"

// Limits bound what one script run may consume.
type Limits struct {
	CallStackSize   int
	RegistrySize    int
	RegistryMaxSize int
	MaxStringLen    int // cap on string.rep results
}

// unit is a compiled chunk. Protos are immutable and shared between
// states.
type unit struct {
	proto *lua.FunctionProto
}

func (*unit) Language() string { return language }

// globals removed from the base library: file and chunk loaders plus
// anything that reaches outside the state.
var blockedGlobals = []string{
	"dofile", "loadfile", "load", "loadstring", "require", "module",
	"collectgarbage", "getfenv", "setfenv", "newproxy", "_printregs", "print",
}

// newSandbox builds a state with only base, table, string and math opened.
func newSandbox(lim Limits) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		CallStackSize:       lim.CallStackSize,
		RegistrySize:        lim.RegistrySize,
		RegistryMaxSize:     lim.RegistryMaxSize,
		IncludeGoStackTrace: false,
	})

	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("open lua lib %q: %w", lib.name, err)
		}
	}

	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	if strTbl, ok := L.GetGlobal("string").(*lua.LTable); ok && lim.MaxStringLen > 0 {
		strTbl.RawSetString("rep", L.NewFunction(boundedRep(lim.MaxStringLen)))
	}
	return L, nil
}

func boundedRep(maxLen int) lua.LGFunction {
	return func(L *lua.LState) int {
		s := L.CheckString(1)
		n := L.CheckInt(2)
		if n <= 0 || s == "" {
			L.Push(lua.LString(""))
			return 1
		}
		if len(s) > maxLen/n {
			L.RaiseError("string.rep result exceeds %d bytes", maxLen)
			return 0
		}
		L.Push(lua.LString(strings.Repeat(s, n)))
		return 1
	}
}
