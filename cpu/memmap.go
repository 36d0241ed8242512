package cpu

import (
	"fmt"
)

// Memory map.
const (
	MEMORY_SIZE = 0x20000 // Physical memory, two 64 KiB banks.
	BANK0_BASE  = 0x00000 // Physical offset of Bank0.
	BANK1_BASE  = 0x10000 // Physical offset of Bank1.
	IO_BASE     = 0xFE00  // First logical address of the I/O window.
	SP_MIN      = 0xEC00  // Lowest valid stack pointer.
	SP_MAX      = 0xFBFF  // Stack pointer after reset.
)

// Memory mapped I/O registers.
const (
	IO_BANK_REG   = uint16(0xFE00) // Bank select, 1 bit.
	IO_VIDEO_CTRL = uint16(0xFE01) // Video control.
	IO_VSYNC_STAT = uint16(0xFE02) // Vsync status.
	IO_DMA_SRC    = uint16(0xFE04) // DMA source, big-endian.
	IO_DMA_DST    = uint16(0xFE06) // DMA destination, big-endian.
	IO_DMA_LEN    = uint16(0xFE08) // DMA length, big-endian.
	IO_CPU_CTRL   = uint16(0xFE0A) // CPU control.
	IO_DMA_CTRL   = uint16(0xFE0C) // DMA control.
	IO_INT_CTRL   = uint16(0xFF0B) // Interrupt mask (low nibble) and status (high nibble).
)

// CPU_CTRL bits.
const (
	CPU_HLT = uint16(1 << 0)
	CPU_DBG = uint16(1 << 1)
	CPU_RST = uint16(1 << 2)
)

// DMA_CTRL bits.
const (
	DMA_BUSY = uint16(1 << 0)
	DMA_STRT = uint16(1 << 1)
)

// INT_CTRL bits.
const (
	IM_IRQ   = uint16(1 << 0)
	IM_DMA   = uint16(1 << 1)
	IM_VSYNC = uint16(1 << 2)
	IM_NMI   = uint16(1 << 3) // Always set.
	IS_IRQ   = uint16(1 << 4)
	IS_DMA   = uint16(1 << 5)
	IS_VSYNC = uint16(1 << 6)
	IS_NMI   = uint16(1 << 7)
)

// Interrupt vectors. Each holds the big-endian entry point of its handler.
const (
	VEC_RESET = uint16(0xFFE0)
	VEC_NMI   = uint16(0xFFE2)
	VEC_IRQ   = uint16(0xFFE4)
	VEC_DMA   = uint16(0xFFE6)
	VEC_VSYNC = uint16(0xFFE8)
	VEC_DEBUG = uint16(0xFFEA)
)

// Flag register bits.
const (
	FLAG_N = uint16(1 << 0) // Negative
	FLAG_C = uint16(1 << 1) // Carry
	FLAG_Z = uint16(1 << 2) // Zero
	FLAG_V = uint16(1 << 3) // Overflow
	FLAG_X = uint16(1 << 4) // Extended: multiply overflow, divide by zero
	FLAG_I = uint16(1 << 7) // Interrupts disabled
)

func hex16(value uint16) string {
	return fmt.Sprintf("0x%04X", value)
}

var _cpu_defines = map[string]string{
	"IO_BASE": hex16(IO_BASE),
	"SP_MIN":  hex16(SP_MIN),
	"SP_MAX":  hex16(SP_MAX),

	"BANK_REG":   hex16(IO_BANK_REG),
	"VIDEO_CTRL": hex16(IO_VIDEO_CTRL),
	"VSYNC_STAT": hex16(IO_VSYNC_STAT),
	"DMA_SRC":    hex16(IO_DMA_SRC),
	"DMA_DST":    hex16(IO_DMA_DST),
	"DMA_LEN":    hex16(IO_DMA_LEN),
	"CPU_CTRL":   hex16(IO_CPU_CTRL),
	"DMA_CTRL":   hex16(IO_DMA_CTRL),
	"INT_CTRL":   hex16(IO_INT_CTRL),

	"CPU_HLT":  hex16(CPU_HLT),
	"CPU_DBG":  hex16(CPU_DBG),
	"CPU_RST":  hex16(CPU_RST),
	"DMA_BUSY": hex16(DMA_BUSY),
	"DMA_STRT": hex16(DMA_STRT),

	"IM_IRQ":   hex16(IM_IRQ),
	"IM_DMA":   hex16(IM_DMA),
	"IM_VSYNC": hex16(IM_VSYNC),
	"IM_NMI":   hex16(IM_NMI),
	"IS_IRQ":   hex16(IS_IRQ),
	"IS_DMA":   hex16(IS_DMA),
	"IS_VSYNC": hex16(IS_VSYNC),
	"IS_NMI":   hex16(IS_NMI),

	"VEC_RESET": hex16(VEC_RESET),
	"VEC_NMI":   hex16(VEC_NMI),
	"VEC_IRQ":   hex16(VEC_IRQ),
	"VEC_DMA":   hex16(VEC_DMA),
	"VEC_VSYNC": hex16(VEC_VSYNC),
	"VEC_DEBUG": hex16(VEC_DEBUG),

	"FLAG_N": hex16(FLAG_N),
	"FLAG_C": hex16(FLAG_C),
	"FLAG_Z": hex16(FLAG_Z),
	"FLAG_V": hex16(FLAG_V),
	"FLAG_X": hex16(FLAG_X),
	"FLAG_I": hex16(FLAG_I),
}
