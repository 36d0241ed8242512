// Package cpu implements the processor, assembler and disassembler for the
// fantasy16 machine.
//
// The CPU has eight 16-bit general-purpose registers (R0-R7), a stack pointer,
// a program counter and a flags register. Memory is 128 KiB split into two
// 64 KiB banks; logical addresses below IO_BASE are mapped through the bank
// select register, while the 512 byte I/O window at IO_BASE is always taken
// from Bank0 and hosts the memory-mapped control registers and the interrupt
// vector table.
//
// The assembler translates source text into a packed binary image followed by
// a footer map describing the chunks and typed data ranges of the image. The
// disassembler inverts that translation; disassembling an image and assembling
// the result yields the original bytes.
package cpu
