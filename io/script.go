package io

import (
	"iter"
	"maps"

	lua "github.com/yuin/gopher-lua"
)

// Script is a peripheral written in Lua. The script must define a global
// tick(n) function, called every step with the tick count since reset.
// The script may call:
//
//	irq() nmi() dma() vsync()      raise an interrupt
//	peek(addr) poke(addr, value)   byte access
//	peekw(addr) pokew(addr, value) word access
//
// An optional global reset() function is called on every reset.
type Script struct {
	Verbose bool   // If set, print() in the script writes to stdout.
	Source  string // Lua source of the script.
	File    string // Name of the script, for diagnostics.

	state   *lua.LState
	machine Machine
	ticks   int
}

var _ Device = (*Script)(nil)

func (sc *Script) Name() string {
	if len(sc.File) != 0 {
		return sc.File
	}
	return "script"
}

// Defines returns an iter of defines for the device.
func (sc *Script) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{})
}

// Close releases the Lua interpreter.
func (sc *Script) Close() {
	if sc.state != nil {
		sc.state.Close()
		sc.state = nil
	}
}

// load creates a fresh interpreter and runs the script body.
func (sc *Script) load() (err error) {
	sc.Close()

	L := lua.NewState()

	trigger := func(fn func(m Machine)) lua.LGFunction {
		return func(L *lua.LState) int {
			fn(sc.machine)
			return 0
		}
	}

	L.SetGlobal("irq", L.NewFunction(trigger(Machine.TriggerIRQ)))
	L.SetGlobal("nmi", L.NewFunction(trigger(Machine.TriggerNMI)))
	L.SetGlobal("dma", L.NewFunction(trigger(Machine.TriggerDMA)))
	L.SetGlobal("vsync", L.NewFunction(trigger(Machine.TriggerVsync)))

	L.SetGlobal("peek", L.NewFunction(func(L *lua.LState) int {
		addr := uint16(L.CheckInt(1))
		L.Push(lua.LNumber(sc.machine.ReadByte(addr)))
		return 1
	}))
	L.SetGlobal("poke", L.NewFunction(func(L *lua.LState) int {
		addr := uint16(L.CheckInt(1))
		sc.machine.WriteByte(addr, uint8(L.CheckInt(2)))
		return 0
	}))
	L.SetGlobal("peekw", L.NewFunction(func(L *lua.LState) int {
		addr := uint16(L.CheckInt(1))
		L.Push(lua.LNumber(sc.machine.ReadWord(addr)))
		return 1
	}))
	L.SetGlobal("pokew", L.NewFunction(func(L *lua.LState) int {
		addr := uint16(L.CheckInt(1))
		sc.machine.WriteWord(addr, uint16(L.CheckInt(2)))
		return 0
	}))

	if !sc.Verbose {
		L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int { return 0 }))
	}

	err = L.DoString(sc.Source)
	if err != nil {
		L.Close()
		return &ErrScript{Name: sc.Name(), Err: err}
	}

	if L.GetGlobal("tick").Type() != lua.LTFunction {
		L.Close()
		return &ErrScript{Name: sc.Name(), Err: ErrScriptNoTick}
	}

	sc.state = L

	return
}

// call invokes a global function, if defined.
func (sc *Script) call(name string, args ...lua.LValue) (err error) {
	fn := sc.state.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return
	}

	err = sc.state.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...)
	if err != nil {
		err = &ErrScript{Name: sc.Name(), Err: err}
	}

	return
}

// Reset reloads the script and calls its reset() function.
func (sc *Script) Reset(m Machine) (err error) {
	sc.machine = m
	sc.ticks = 0

	err = sc.load()
	if err != nil {
		return
	}

	return sc.call("reset")
}

func (sc *Script) Tick(m Machine) (err error) {
	if sc.state == nil {
		err = sc.Reset(m)
		if err != nil {
			return
		}
	}

	sc.machine = m
	sc.ticks++

	return sc.call("tick", lua.LNumber(sc.ticks))
}
