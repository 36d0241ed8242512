// Package io provides the peripherals clocked alongside the CPU.
package io

import (
	"iter"
)

// Machine is the view of the CPU that a peripheral is attached to.
type Machine interface {
	ReadByte(addr uint16) uint8
	WriteByte(addr uint16, value uint8)
	ReadWord(addr uint16) uint16
	WriteWord(addr uint16, value uint16)

	// Memory returns the physical store, bypassing the I/O registers.
	Memory() []byte

	TriggerIRQ()
	TriggerDMA()
	TriggerVsync()
	TriggerNMI()
}

// Device is a peripheral, ticked once per CPU step.
type Device interface {
	Name() string                       // Name of the device.
	Defines() iter.Seq2[string, string] // Assembler defines for the device.
	Reset(m Machine) error              // Reset the device state.
	Tick(m Machine) error               // Advance the device one step.
}
