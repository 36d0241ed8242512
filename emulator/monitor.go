package emulator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/ezrec/fantasy16/cpu"
	"github.com/ezrec/fantasy16/translate"
)

const (
	MONITOR_PROMPT    = "f16> "
	MONITOR_DIS_COUNT = 8  // Default instruction count for 'dis'.
	MONITOR_MEM_COUNT = 64 // Default byte count for 'mem'.
	MONITOR_MEM_ROW   = 16
)

// Monitor is an interactive debugger for the emulator.
type Monitor struct {
	Emulator *Emulator
	Limit    int // Tick limit for 'run' without an argument.

	output   io.Writer
	readLine func() (string, error)
}

// NewMonitor creates a monitor with line editing, reading commands from
// and writing responses to rw. rw is expected to be a terminal in raw mode.
func NewMonitor(emu *Emulator, rw io.ReadWriter) (mon *Monitor) {
	terminal := term.NewTerminal(rw, MONITOR_PROMPT)
	mon = &Monitor{
		Emulator: emu,
		output:   terminal,
		readLine: terminal.ReadLine,
	}

	return
}

// NewLineMonitor creates a monitor without line editing, for scripted
// input.
func NewLineMonitor(emu *Emulator, r io.Reader, w io.Writer) (mon *Monitor) {
	scanner := bufio.NewScanner(r)
	mon = &Monitor{
		Emulator: emu,
		output:   w,
		readLine: func() (line string, err error) {
			if !scanner.Scan() {
				err = scanner.Err()
				if err == nil {
					err = io.EOF
				}
				return
			}
			line = scanner.Text()
			return
		},
	}

	return
}

// Run reads and executes commands until 'quit' or end of input.
func (mon *Monitor) Run(ctx context.Context) (err error) {
	for {
		err = ctx.Err()
		if err != nil {
			return
		}

		var line string
		line, err = mon.readLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return
		}

		quit, cmdErr := mon.Exec(ctx, line)
		if cmdErr != nil {
			mon.printf("%v\n", cmdErr)
		}
		if quit {
			return
		}
	}
}

func (mon *Monitor) printf(format string, args ...any) {
	translate.Fprintf(mon.output, format, args...)
}

// parseValue parses a $hex, 0x hex, %binary or decimal value.
func parseValue(word string) (value uint16, err error) {
	switch {
	case strings.HasPrefix(word, "$"):
		word = "0x" + word[1:]
	case strings.HasPrefix(word, "%"):
		word = "0b" + word[1:]
	}

	v, err := strconv.ParseUint(word, 0, 16)
	if err != nil {
		err = errors.Join(ErrCommandArgument, err)
		return
	}

	value = uint16(v)
	return
}

// args parses the numeric arguments of a command, with defaults.
func args(words []string, defaults ...uint16) (values []uint16, err error) {
	if len(words) > len(defaults) {
		err = ErrCommandArgument
		return
	}

	values = defaults
	for n, word := range words {
		values[n], err = parseValue(word)
		if err != nil {
			return
		}
	}

	return
}

// noLabel is the label lookup for monitor disassembly.
func noLabel(addr uint16) (string, bool) {
	return "", false
}

// disassemble prints count instructions starting at addr.
func (mon *Monitor) disassemble(addr uint16, count int) {
	machine := mon.Emulator.Cpu
	for range count {
		code := machine.CodeAt(addr)
		marker := " "
		if addr == machine.PC {
			marker = ">"
		}
		mon.printf("%v%04X: %-28v ; %04X\n", marker, addr, code.Assembly(noLabel), code.Words())
		addr += uint16(code.Len())
	}
}

// dump prints count bytes of memory starting at addr.
func (mon *Monitor) dump(addr uint16, count int) {
	for row := 0; row < count; row += MONITOR_MEM_ROW {
		text := fmt.Sprintf("%04X:", addr+uint16(row))
		for n := row; n < min(row+MONITOR_MEM_ROW, count); n++ {
			text += fmt.Sprintf(" %02X", mon.Emulator.Cpu.ReadByte(addr+uint16(n)))
		}
		mon.printf("%v\n", text)
	}
}

// Exec executes a single monitor command.
func (mon *Monitor) Exec(ctx context.Context, line string) (quit bool, err error) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return
	}

	emu := mon.Emulator
	cmd, words := strings.ToLower(words[0]), words[1:]

	var values []uint16
	switch cmd {
	case "help", "?":
		mon.printf("step [n] | run [n] | regs | mem addr [len] | poke addr val | pokew addr val\n")
		mon.printf("irq | nmi | dma | vsync | reset | dis [addr [n]] | quit\n")
	case "quit", "exit", "q":
		quit = true
	case "step", "s":
		values, err = args(words, 1)
		if err != nil {
			return
		}
		for range values[0] {
			var done bool
			done, err = emu.Tick()
			if err != nil || done {
				break
			}
		}
		mon.disassemble(emu.Cpu.PC, 1)
	case "run", "r":
		limit := mon.Limit
		switch len(words) {
		case 0:
		case 1:
			limit, err = strconv.Atoi(words[0])
			if err != nil {
				err = errors.Join(ErrCommandArgument, err)
				return
			}
		default:
			err = ErrCommandArgument
			return
		}
		var ticks int
		ticks, err = emu.Run(ctx, limit)
		mon.printf("%d ticks\n", ticks)
	case "regs":
		mon.printf("%v", emu.Cpu.String())
	case "mem", "m":
		if len(words) == 0 {
			err = ErrCommandArgument
			return
		}
		values, err = args(words, 0, MONITOR_MEM_COUNT)
		if err != nil {
			return
		}
		mon.dump(values[0], int(values[1]))
	case "poke", "pokew":
		if len(words) != 2 {
			err = ErrCommandArgument
			return
		}
		values, err = args(words, 0, 0)
		if err != nil {
			return
		}
		if cmd == "poke" {
			if values[1] > 0xFF {
				err = ErrCommandArgument
				return
			}
			emu.Cpu.WriteByte(values[0], uint8(values[1]))
		} else {
			emu.Cpu.WriteWord(values[0], values[1])
		}
	case "irq":
		emu.Cpu.TriggerIRQ()
	case "nmi":
		emu.Cpu.TriggerNMI()
	case "dma":
		emu.Cpu.TriggerDMA()
	case "vsync":
		emu.Cpu.TriggerVsync()
	case "reset":
		err = emu.Reset()
	case "dis", "d":
		values, err = args(words, emu.Cpu.PC, MONITOR_DIS_COUNT)
		if err != nil {
			return
		}
		mon.disassemble(values[0], int(values[1]))
	default:
		err = ErrCommandUnknown
	}

	if err == nil && !quit && cmd != "help" && cmd != "?" {
		mon.printf("%v", statusLine(emu.Cpu))
	}

	return
}

// statusLine summarizes the CPU state after a command.
func statusLine(machine *cpu.Cpu) string {
	state := "run"
	if machine.Halted() {
		state = "halt"
	}
	return fmt.Sprintf("pc=%04X sp=%04X flags=%v int=%02X %v\n", machine.PC, machine.SP, cpu.FlagString(machine.Flags), machine.Interrupts(), state)
}
