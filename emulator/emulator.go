// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"context"
	"fmt"
	"iter"
	"log"
	"maps"
	"slices"

	"github.com/ezrec/fantasy16/cpu"
	"github.com/ezrec/fantasy16/internal"
	"github.com/ezrec/fantasy16/io"
)

const (
	VSYNC_PERIOD = 16384 // Default ticks per video frame.
	CANCEL_CHECK = 1024  // Ticks between context checks in Run.
)

var _emulator_defines = map[string]string{
	"BANK_SIZE": fmt.Sprintf("0x%05X", cpu.BANK1_BASE-cpu.BANK0_BASE),
}

// Emulator state. CPU + peripherals.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the currently loaded program.

	Rom     io.Rom     // Boot image.
	Vsync   io.Vsync   // Video frame interrupt.
	Timer   io.Timer   // Periodic IRQ.
	Console io.Console // Byte stream terminal.

	Devices []io.Device // Additional peripherals, ticked after the built-in ones.
}

// NewEmulator creates a new emulator.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Cpu:     cpu.NewCpu(),
		Program: &cpu.Program{Start: -1},
	}

	emu.Vsync.Period = VSYNC_PERIOD

	return
}

// devices returns all of the attached peripherals.
func (emu *Emulator) devices() []io.Device {
	return slices.Concat([]io.Device{
		&emu.Rom,
		&emu.Vsync,
		&emu.Timer,
		&emu.Console,
	}, emu.Devices)
}

// Attach adds a peripheral.
func (emu *Emulator) Attach(dev io.Device) {
	emu.Devices = append(emu.Devices, dev)
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	seqs := []iter.Seq2[string, string]{
		maps.All(_emulator_defines),
		emu.Cpu.Defines(),
	}
	for _, dev := range emu.devices() {
		seqs = append(seqs, dev.Defines())
	}
	return internal.IterSeq2Concat(seqs...)
}

// Load a program as the boot image.
func (emu *Emulator) Load(prog *cpu.Program) {
	emu.Program = prog
	emu.Rom.Data = prog.Image()
}

// LoadImage loads a binary image, with or without a footer map, as the
// boot image.
func (emu *Emulator) LoadImage(bin []byte) (err error) {
	prog, mapped, err := cpu.ParseImage(bin)
	if err != nil {
		return
	}

	if emu.Verbose {
		log.Printf("emulator: %d chunks (mapped %v)", len(prog.Chunks), mapped)
	}

	emu.Load(prog)

	return
}

// Reset clears memory, resets the peripherals, and then the CPU. If the
// reset vector is unset, execution begins at the program's .start.
func (emu *Emulator) Reset() (err error) {
	clear(emu.Cpu.Memory())

	for _, dev := range emu.devices() {
		err = dev.Reset(emu.Cpu)
		if err != nil {
			return &ErrDevice{Name: dev.Name(), Err: err}
		}
	}

	emu.Cpu.Reset()
	if emu.Program.Start > 0 && emu.Cpu.ReadWord(cpu.VEC_RESET) == 0 {
		emu.Cpu.PC = uint16(emu.Program.Start)
	}

	if emu.Verbose {
		log.Printf("emulator: reset, pc $%04X", emu.Cpu.PC)
	}

	return
}

// Ticks returns the total ticks since a reset.
func (emu *Emulator) Ticks() int {
	return emu.Cpu.Ticks
}

// LineNo returns the current line number for the executing opcode.
func (emu *Emulator) LineNo() int {
	dbg := emu.Program.Debug(emu.Cpu.PC)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.LineNo
}

// Tick performs a single CPU step, then ticks the peripherals. done is
// set once the CPU has halted.
func (emu *Emulator) Tick() (done bool, err error) {
	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	if emu.Cpu.Halted() {
		done = true
		return
	}

	addr := emu.Cpu.PC
	lineno := emu.LineNo()
	defer func() {
		if err != nil {
			err = &ErrRuntime{Addr: addr, LineNo: lineno, Err: err}
		}
	}()

	err = emu.Cpu.Step()
	if err != nil {
		return
	}

	for _, dev := range emu.devices() {
		err = dev.Tick(emu.Cpu)
		if err != nil {
			err = &ErrDevice{Name: dev.Name(), Err: err}
			return
		}
	}

	done = emu.Cpu.Halted()

	return
}

// Run ticks the emulator until the CPU halts, an error occurs, or the
// context is cancelled. A positive limit bounds the number of ticks.
func (emu *Emulator) Run(ctx context.Context, limit int) (ticks int, err error) {
	for done := false; !done; {
		if limit > 0 && ticks >= limit {
			err = ErrTickLimit
			return
		}

		if (ticks % CANCEL_CHECK) == 0 {
			err = ctx.Err()
			if err != nil {
				return
			}
		}

		done, err = emu.Tick()
		if err != nil {
			return
		}
		ticks++
	}

	return
}
