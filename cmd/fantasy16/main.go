// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/ezrec/fantasy16/cpu"
	"github.com/ezrec/fantasy16/emulator"
	"github.com/ezrec/fantasy16/internal"
	"github.com/ezrec/fantasy16/io"
)

// defineList collects repeated -D NAME=VALUE flags.
type defineList map[string]string

func (dl defineList) String() string {
	var text []string
	for name, value := range internal.IterSeq2Sorted(maps.All(dl)) {
		text = append(text, name+"="+value)
	}
	return strings.Join(text, ",")
}

func (dl defineList) Set(text string) error {
	name, value, ok := strings.Cut(text, "=")
	if !ok || len(name) == 0 {
		return fmt.Errorf("%v: expected NAME=VALUE", text)
	}
	dl[name] = value
	return nil
}

// console joins stdin and stdout for the monitor's line editor.
type console struct {
	in  *os.File
	out *os.File
}

func (c console) Read(data []byte) (int, error) {
	return c.in.Read(data)
}

func (c console) Write(data []byte) (int, error) {
	return c.out.Write(data)
}

// isSource returns true if the file name looks like assembly source.
func isSource(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".s", ".asm":
		return true
	}
	return false
}

// assemble parses a source file, with the emulator defines and the -D
// defines predefined.
func assemble(name string, emu *emulator.Emulator, defines defineList, verbose bool, debugParse bool) (prog *cpu.Program, err error) {
	inf, err := os.Open(name)
	if err != nil {
		return
	}
	defer inf.Close()

	asm := &cpu.Assembler{Verbose: verbose, File: name}
	for equ, value := range internal.IterSeq2Sorted(emu.Defines()) {
		asm.Predefine(equ, value)
	}
	for equ, value := range defines {
		asm.Predefine(equ, value)
	}

	prog, err = asm.Parse(inf)
	if debugParse {
		asm.DebugParse(os.Stderr)
	}

	return
}

// writeOutput writes data to a file, or stdout for "-".
func writeOutput(name string, data []byte) (err error) {
	if name == "-" {
		_, err = os.Stdout.Write(data)
		return
	}

	return os.WriteFile(name, data, 0o644)
}

func main() {
	var source string
	var disasm string
	var execute string
	var output string
	var script string
	var linear bool
	var monitor bool
	var debugParse bool
	var listDefines bool
	var verbose bool
	var vsync int
	var timer int
	var limit int
	defines := defineList{}

	flag.StringVar(&source, "a", "", "Assembly source to assemble")
	flag.StringVar(&disasm, "d", "", "Binary image to disassemble")
	flag.StringVar(&execute, "x", "", "Binary image or assembly source to execute")
	flag.StringVar(&output, "o", "-", "Output of -a or -d")
	flag.StringVar(&script, "script", "", "Lua peripheral script to attach when executing")
	flag.BoolVar(&linear, "linear", false, "Disassemble images without a footer map from address 0")
	flag.BoolVar(&monitor, "m", false, "Execute under the interactive monitor")
	flag.BoolVar(&debugParse, "debug-parse", false, "Dump the parsed labels and lines to stderr")
	flag.BoolVar(&listDefines, "defines", false, "List the predefined assembler equates")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")
	flag.IntVar(&vsync, "vsync", emulator.VSYNC_PERIOD, "Ticks per video frame")
	flag.IntVar(&timer, "timer", 0, "Ticks between timer IRQs, 0 to disable")
	flag.IntVar(&limit, "limit", 0, "Maximum ticks to execute, 0 for no limit")
	flag.Var(defines, "D", "Predefine an equate, NAME=VALUE (repeatable)")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	emu := emulator.NewEmulator()
	emu.Verbose = verbose
	emu.Vsync.Period = vsync
	emu.Timer.Period = timer

	if listDefines {
		for name, value := range internal.IterSeq2Sorted(emu.Defines()) {
			fmt.Printf("%-16v %v\n", name, value)
		}
	}

	// Assemble a new image.
	if len(source) != 0 {
		prog, err := assemble(source, emu, defines, verbose, debugParse)
		if err != nil {
			log.Fatalf("%v: %v", source, err)
		}

		bin, err := prog.Binary()
		if err != nil {
			log.Fatalf("%v: %v", source, err)
		}

		err = writeOutput(output, bin)
		if err != nil {
			log.Fatalf("%v: %v", output, err)
		}
	}

	// Disassemble an image.
	if len(disasm) != 0 {
		bin, err := os.ReadFile(disasm)
		if err != nil {
			log.Fatalf("%v: %v", disasm, err)
		}

		dis := &cpu.Disassembler{Verbose: verbose, Linear: linear}
		text, err := dis.Disassemble(bin)
		if err != nil {
			log.Fatalf("%v: %v", disasm, err)
		}

		err = writeOutput(output, []byte(text))
		if err != nil {
			log.Fatalf("%v: %v", output, err)
		}
	}

	if len(execute) == 0 {
		return
	}

	if len(script) != 0 {
		body, err := os.ReadFile(script)
		if err != nil {
			log.Fatalf("%v: %v", script, err)
		}
		sc := &io.Script{Verbose: verbose, File: script, Source: string(body)}
		defer sc.Close()
		emu.Attach(sc)
	}

	if isSource(execute) {
		prog, err := assemble(execute, emu, defines, verbose, debugParse)
		if err != nil {
			log.Fatalf("%v: %v", execute, err)
		}
		emu.Load(prog)
	} else {
		bin, err := os.ReadFile(execute)
		if err != nil {
			log.Fatalf("%v: %v", execute, err)
		}
		err = emu.LoadImage(bin)
		if err != nil {
			log.Fatalf("%v: %v", execute, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if !monitor {
		emu.Console.Input = os.Stdin
		emu.Console.Output = os.Stdout

		err := emu.Reset()
		if err != nil {
			log.Fatalf("%v: %v", execute, err)
		}

		ticks, err := emu.Run(ctx, limit)
		if verbose {
			log.Printf("%v: %d ticks", execute, ticks)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("%v: %v", execute, err)
		}
		return
	}

	err := emu.Reset()
	if err != nil {
		log.Fatalf("%v: %v", execute, err)
	}

	var mon *emulator.Monitor
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			log.Fatalf("%v: %v", os.Args[0], err)
		}
		defer term.Restore(fd, state)

		mon = emulator.NewMonitor(emu, console{in: os.Stdin, out: os.Stdout})
	} else {
		mon = emulator.NewLineMonitor(emu, os.Stdin, os.Stdout)
	}
	mon.Limit = limit

	err = mon.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("%v: %v", execute, err)
	}
}
