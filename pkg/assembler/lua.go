package assembler

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/zxspectrum/toolkit/pkg/expr"
)

// runLua executes one LUA...ENDLUA block's body as a Lua script, giving it
// just enough of the assembler's state to be useful for the things
// sjasmplus programs actually reach for Lua to do: computing a DEFL value
// procedurally, reading a symbol already in scope, and emitting a run of
// bytes the source couldn't express as a literal DB list. Each LUA block
// gets its own *lua.LState; nothing persists across blocks, matching
// sjasmplus's own stateless LUA scoping.
func (a *Assembler) runLua(line *Line, body []rawLine) error {
	if !a.conditionalActive() {
		return nil
	}

	var src strings.Builder
	for _, rl := range body {
		src.WriteString(rl.Text)
		src.WriteByte('\n')
	}

	L := lua.NewState()
	defer L.Close()

	var scriptErr error

	L.SetGlobal("defl", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		value := int32(L.CheckNumber(2))
		qualified := a.symtab.QualifyLabel(name)
		if _, err := a.symtab.Define(qualified, value, expr.SymDefl, line.Number, line.File); err != nil {
			scriptErr = err
			L.RaiseError("%v", err)
		}
		return 0
	}))

	L.SetGlobal("val", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		qualified := a.symtab.QualifyReference(name)
		value, undefined, ok := a.symtab.Lookup(qualified)
		if !ok || undefined {
			a.undefinedCount++
			L.Push(lua.LNumber(0))
			return 1
		}
		L.Push(lua.LNumber(value))
		return 1
	}))

	L.SetGlobal("db", L.NewFunction(func(L *lua.LState) int {
		a.emit([]byte{byte(int64(L.CheckNumber(1)))})
		return 0
	}))

	L.SetGlobal("addr", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(a.currentAddress))
		return 1
	}))

	if err := L.DoString(src.String()); err != nil {
		if scriptErr != nil {
			return scriptErr
		}
		return fmt.Errorf("LUA block: %w", err)
	}
	return scriptErr
}
