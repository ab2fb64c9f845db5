package config

import (
	lua "github.com/yuin/gopher-lua"
)

// sandboxLuaVM removes every global that reaches outside the VM:
// system commands and environment (os), files (io), code loading
// (require, dofile, loadfile, load, loadstring, module), the debug library,
// and the raw/environment functions that could bypass read-only tables.
//
// string, table and math stay, as do type, tostring, tonumber, pairs,
// ipairs, next, select, error, assert and pcall.
func sandboxLuaVM(L *lua.LState) {
	for _, name := range []string{
		"os", "io", "debug", "package",
		"require", "module", "dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal", "setfenv", "getfenv",
		"collectgarbage", "newproxy",
	} {
		L.SetGlobal(name, lua.LNil)
	}
}

// newSandboxedVM creates a new Lua VM with sandboxing applied and a bounded
// call stack.
func newSandboxedVM() *lua.LState {
	L := lua.NewState(lua.Options{
		CallStackSize: luaCallStackSize,
		RegistrySize:  luaRegistrySize,
	})
	sandboxLuaVM(L)
	return L
}
