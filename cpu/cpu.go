package cpu

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"
)

// Cpu is the simulation context for the fantasy16 processor.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	R     [8]uint16 // General purpose registers.
	SP    uint16    // Stack pointer.
	PC    uint16    // Program counter.
	Flags uint16    // Flag register.

	Ticks int // Instructions executed.

	memory [MEMORY_SIZE]byte

	bank      uint16
	videoCtrl uint16
	vsyncStat uint16
	cpuCtrl   uint16
	dmaCtrl   uint16
	intCtrl   uint16
	dmaSrc    uint16
	dmaDst    uint16
	dmaLen    uint16

	fault error // Fault raised by an I/O register side effect.
}

// NewCpu creates a new CPU, reset and ready to run.
func NewCpu() (cpu *Cpu) {
	cpu = &Cpu{}
	cpu.Reset()

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	for n, val := range cpu.R {
		text += fmt.Sprintf("   r%d: %04X\n", n, val)
	}
	text += fmt.Sprintf("   sp: %04X\n", cpu.SP)
	text += fmt.Sprintf("   pc: %04X\n", cpu.PC)
	text += fmt.Sprintf("flags: %v\n", FlagString(cpu.Flags))
	text += fmt.Sprintf(" bank: %d\n", cpu.bank)
	text += fmt.Sprintf("  int: %02X\n", cpu.intCtrl)

	return
}

// FlagString returns a flag register as a mnemonic string.
func FlagString(flags uint16) (text string) {
	names := []struct {
		Flag uint16
		Name byte
	}{
		{FLAG_I, 'I'},
		{FLAG_X, 'X'},
		{FLAG_V, 'V'},
		{FLAG_Z, 'Z'},
		{FLAG_C, 'C'},
		{FLAG_N, 'N'},
	}
	for _, name := range names {
		if (flags & name.Flag) != 0 {
			text += string(name.Name)
		} else {
			text += "-"
		}
	}
	return
}

// Reset the CPU state.
// - Clears the registers and flags.
// - Selects Bank0 and clears the control registers.
// - Loads the program counter from the reset vector.
//
// Memory contents are preserved.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.R[:])
	cpu.Flags = 0
	cpu.SP = SP_MAX
	cpu.bank = 0
	cpu.cpuCtrl = 0
	cpu.intCtrl = IM_NMI
	cpu.fault = nil
	cpu.PC = cpu.ReadWord(VEC_RESET)
}

// Halted returns true if the halt bit of CPU_CTRL is set.
func (cpu *Cpu) Halted() bool {
	return (cpu.cpuCtrl & CPU_HLT) != 0
}

// Halt sets the halt bit of CPU_CTRL.
func (cpu *Cpu) Halt() {
	cpu.cpuCtrl |= CPU_HLT
}

// CodeAt decodes the instruction at a logical address, without side
// effects on the program counter.
func (cpu *Cpu) CodeAt(addr uint16) (code Code) {
	code.Word = cpu.ReadWord(addr)

	for n := range code.ImmediateNeed() {
		code.Immediates = append(code.Immediates, cpu.ReadWord(addr+2+uint16(2*n)))
	}

	return
}

// FetchCode reads the instruction at the program counter, and advances
// the program counter past it and its extension words.
func (cpu *Cpu) FetchCode() (code Code) {
	code = cpu.CodeAt(cpu.PC)
	cpu.PC += uint16(code.Len())

	return
}

// Step executes a single CPU cycle: either an interrupt entry, or one
// instruction.
func (cpu *Cpu) Step() (err error) {
	if cpu.fault != nil {
		err = cpu.fault
		cpu.fault = nil
		return
	}

	if cpu.Halted() {
		return
	}

	if (cpu.Flags & FLAG_I) == 0 {
		var taken bool
		taken, err = cpu.checkInterrupts()
		if taken || err != nil {
			return
		}
	}

	pc := cpu.PC
	code := cpu.FetchCode()
	if cpu.Verbose {
		log.Printf("%04X: %v", pc, code)
	}

	err = cpu.Execute(code)
	if err != nil {
		return
	}

	if cpu.fault != nil {
		err = cpu.fault
		cpu.fault = nil
		return
	}

	cpu.Ticks++

	return
}

// load returns the value of an operand.
func (cpu *Cpu) load(op Operand) uint16 {
	switch op.Mode {
	case MODE_REG:
		return cpu.R[op.Reg]
	case MODE_IND:
		return cpu.ReadWord(cpu.R[op.Reg])
	case MODE_ABS:
		return cpu.ReadWord(op.Value)
	default:
		return op.Value
	}
}

// store updates the target of an operand. Stores to an immediate are
// discarded.
func (cpu *Cpu) store(op Operand, value uint16) {
	switch op.Mode {
	case MODE_REG:
		cpu.R[op.Reg] = value
	case MODE_IND:
		cpu.WriteWord(cpu.R[op.Reg], value)
	case MODE_ABS:
		cpu.WriteWord(op.Value, value)
	}
}

// storeHigh places the high half of a wide result in the register
// following a register destination.
func (cpu *Cpu) storeHigh(op Operand, value uint16) {
	if op.Mode == MODE_REG && op.Reg < 7 {
		cpu.R[op.Reg+1] = value
	}
}

// target returns a jump destination.
func (cpu *Cpu) target(op Operand) uint16 {
	if op.Mode.NeedsImmediate() {
		return op.Value
	}
	return cpu.load(op)
}

// setFlags updates N, Z, C, V and clears X for a result.
// Logical results only update Z.
func (cpu *Cpu) setFlags(result int, src, dst uint16, sub bool, logic bool) {
	cpu.Flags &^= FLAG_N | FLAG_Z | FLAG_C | FLAG_V | FLAG_X

	stored := uint16(result)
	if stored == 0 {
		cpu.Flags |= FLAG_Z
	}
	if logic {
		return
	}

	if (stored & 0x8000) != 0 {
		cpu.Flags |= FLAG_N
	}

	signSrc := src & 0x8000
	signDst := dst & 0x8000
	signOut := stored & 0x8000
	if sub {
		if dst < src {
			cpu.Flags |= FLAG_C
		}
		if signDst != signSrc && signDst != signOut {
			cpu.Flags |= FLAG_V
		}
	} else {
		if result > 0xFFFF {
			cpu.Flags |= FLAG_C
		}
		if signDst == signSrc && signDst != signOut {
			cpu.Flags |= FLAG_V
		}
	}
}

// setShiftFlags updates the flags after a shift or rotate.
func (cpu *Cpu) setShiftFlags(value uint16, out bool) {
	cpu.setFlags(int(value), 0, value, false, true)
	if out {
		cpu.Flags |= FLAG_C | FLAG_X
	}
}

// Execute executes a single decoded instruction. The program counter must
// already point past the instruction.
func (cpu *Cpu) Execute(code Code) (err error) {
	defer func() {
		if err != nil && !errors.Is(err, ErrOpcode{}) {
			err = errors.Join(ErrOpcode(code), err)
		}
	}()

	src := code.Src()
	dst := code.Dst()

	switch code.Op() {
	case OP_NOP:
	case OP_MOV:
		cpu.store(dst, cpu.load(src))
	case OP_ADD:
		s, d := cpu.load(src), cpu.load(dst)
		result := int(d) + int(s)
		cpu.store(dst, uint16(result))
		cpu.setFlags(result, s, d, false, false)
	case OP_SUB:
		s, d := cpu.load(src), cpu.load(dst)
		result := int(d) - int(s)
		cpu.store(dst, uint16(result))
		cpu.setFlags(result, s, d, true, false)
	case OP_CMP:
		s, d := cpu.load(src), cpu.load(dst)
		cpu.setFlags(int(d)-int(s), s, d, true, false)
	case OP_INC:
		d := cpu.load(dst)
		result := int(d) + 1
		cpu.store(dst, uint16(result))
		cpu.setFlags(result, 1, d, false, false)
	case OP_DEC:
		d := cpu.load(dst)
		result := int(d) - 1
		cpu.store(dst, uint16(result))
		cpu.setFlags(result, 1, d, true, false)
	case OP_NEG:
		d := cpu.load(dst)
		result := -d
		cpu.store(dst, result)
		cpu.setFlags(int(result), 0, d, true, false)
		if d != 0 {
			cpu.Flags |= FLAG_C
		}
	case OP_NOT:
		d := cpu.load(dst)
		result := ^d
		cpu.store(dst, result)
		cpu.setFlags(int(result), 0, d, false, true)
	case OP_TST:
		s, d := cpu.load(src), cpu.load(dst)
		cpu.setFlags(int(d&s), s, d, false, true)
	case OP_AND, OP_OR, OP_XOR:
		s, d := cpu.load(src), cpu.load(dst)
		var result uint16
		switch code.Op() {
		case OP_AND:
			result = d & s
		case OP_OR:
			result = d | s
		default:
			result = d ^ s
		}
		cpu.store(dst, result)
		cpu.setFlags(int(result), s, d, false, true)
	case OP_JMP:
		cpu.PC = cpu.target(dst)
	case OP_CALL:
		err = cpu.push(cpu.PC)
		if err != nil {
			return
		}
		cpu.PC = cpu.target(dst)
	case OP_RET:
		cpu.PC, err = cpu.pop()
	case OP_RETI:
		cpu.Flags, err = cpu.pop()
		if err != nil {
			return
		}
		cpu.PC, err = cpu.pop()
	case OP_PUSH:
		err = cpu.push(cpu.load(src))
	case OP_POP:
		var value uint16
		value, err = cpu.pop()
		if err != nil {
			return
		}
		cpu.store(dst, value)
	case OP_MULU:
		s, d := cpu.load(src), cpu.load(dst)
		result := uint32(d) * uint32(s)
		cpu.store(dst, uint16(result))
		cpu.storeHigh(dst, uint16(result>>16))
		cpu.setFlags(int(int32(result)), s, d, false, false)
		if result > 0xFFFF {
			cpu.Flags |= FLAG_X
		}
	case OP_MUL:
		s, d := cpu.load(src), cpu.load(dst)
		result := int32(int16(d)) * int32(int16(s))
		cpu.store(dst, uint16(result))
		cpu.storeHigh(dst, uint16(result>>16))
		cpu.setFlags(int(result), s, d, false, false)
	case OP_DIVU:
		s, d := cpu.load(src), cpu.load(dst)
		if s == 0 {
			cpu.Flags |= FLAG_X
			break
		}
		quotient := d / s
		cpu.store(dst, quotient)
		cpu.storeHigh(dst, d%s)
		cpu.setFlags(int(quotient), s, d, false, false)
	case OP_DIV:
		s, d := cpu.load(src), cpu.load(dst)
		if s == 0 {
			cpu.Flags |= FLAG_X
			break
		}
		quotient := int(int16(d)) / int(int16(s))
		remainder := int(int16(d)) % int(int16(s))
		cpu.store(dst, uint16(quotient))
		cpu.storeHigh(dst, uint16(remainder))
		cpu.setFlags(quotient, s, d, false, false)
	case OP_ROL:
		d := cpu.load(dst)
		result := (d << 1) | (d >> 15)
		cpu.store(dst, result)
		cpu.setShiftFlags(result, (d&0x8000) != 0)
	case OP_ROR:
		d := cpu.load(dst)
		result := (d >> 1) | (d << 15)
		cpu.store(dst, result)
		cpu.setShiftFlags(result, (d&1) != 0)
	case OP_SHL:
		d := cpu.load(dst)
		result := d << 1
		cpu.store(dst, result)
		cpu.setShiftFlags(result, (d&0x8000) != 0)
	case OP_SHR:
		d := cpu.load(dst)
		result := d >> 1
		cpu.store(dst, result)
		cpu.setShiftFlags(result, (d&1) != 0)
	case OP_BTST:
		bit := cpu.load(src) & 15
		if (cpu.load(dst) & (1 << bit)) == 0 {
			cpu.Flags |= FLAG_Z
		} else {
			cpu.Flags &^= FLAG_Z
		}
	case OP_BSET:
		bit := cpu.load(src) & 15
		cpu.store(dst, cpu.load(dst)|(1<<bit))
	case OP_BCLR:
		bit := cpu.load(src) & 15
		cpu.store(dst, cpu.load(dst)&^(1<<bit))
	case OP_JCOND:
		if code.Cond().Holds(cpu.Flags) {
			cpu.PC = code.Target()
		}
	default:
		err = ErrOpcode(code)
	}

	return
}
