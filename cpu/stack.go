package cpu

import (
	"errors"
)

// push writes a word below the stack pointer. Running past SP_MIN halts
// the CPU.
func (cpu *Cpu) push(value uint16) (err error) {
	cpu.SP -= 2
	if cpu.SP < SP_MIN {
		cpu.Halt()
		err = errors.Join(ErrStackUnderflow, ErrHalted)
		return
	}

	cpu.WriteWord(cpu.SP, value)
	return
}

// pop reads the word at the stack pointer. Popping past the top of the
// stack halts the CPU.
func (cpu *Cpu) pop() (value uint16, err error) {
	value = cpu.ReadWord(cpu.SP)
	cpu.SP += 2
	if int(cpu.SP) > SP_MAX+2 {
		cpu.Halt()
		err = errors.Join(ErrStackOverflow, ErrHalted)
		return
	}

	return
}

// Peek returns the word at the top of the stack, if the stack is not empty.
func (cpu *Cpu) Peek() (value uint16, ok bool) {
	if cpu.SP >= SP_MAX || cpu.SP < SP_MIN {
		return
	}

	return cpu.ReadWord(cpu.SP), true
}
