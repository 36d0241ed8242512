package cpu

import (
	"log"
)

// Physical translates a logical address to its offset in physical memory.
func (cpu *Cpu) Physical(addr uint16) int {
	if addr >= IO_BASE || cpu.bank == 0 {
		return BANK0_BASE + int(addr)
	}
	return BANK1_BASE + int(addr)
}

// Memory returns the physical memory store.
func (cpu *Cpu) Memory() []byte {
	return cpu.memory[:]
}

// Bank returns the bank select register.
func (cpu *Cpu) Bank() uint16 {
	return cpu.bank
}

// ReadByte reads a byte at a logical address.
func (cpu *Cpu) ReadByte(addr uint16) uint8 {
	if addr >= IO_BASE {
		if value, ok := cpu.ioRead(addr); ok {
			return uint8(value)
		}
	}
	return cpu.memory[cpu.Physical(addr)]
}

// WriteByte writes a byte at a logical address. The byte always lands in
// the backing store; I/O registers additionally see the write.
func (cpu *Cpu) WriteByte(addr uint16, value uint8) {
	cpu.memory[cpu.Physical(addr)] = value
	if addr >= IO_BASE {
		cpu.ioWriteByte(addr, value)
	}
}

// ReadWord reads a big-endian word at a logical address.
func (cpu *Cpu) ReadWord(addr uint16) uint16 {
	if addr >= IO_BASE {
		if value, ok := cpu.ioReadWord(addr); ok {
			return value
		}
	}
	return (uint16(cpu.ReadByte(addr)) << 8) | uint16(cpu.ReadByte(addr+1))
}

// WriteWord writes a big-endian word at a logical address.
func (cpu *Cpu) WriteWord(addr uint16, value uint16) {
	if addr >= IO_BASE && cpu.ioWriteWord(addr, value) {
		return
	}
	cpu.WriteByte(addr, uint8(value>>8))
	cpu.WriteByte(addr+1, uint8(value))
}

// ioRead returns the byte view of an I/O register.
func (cpu *Cpu) ioRead(addr uint16) (value uint16, ok bool) {
	ok = true
	switch addr {
	case IO_BANK_REG:
		value = cpu.bank
	case IO_VIDEO_CTRL:
		value = cpu.videoCtrl
	case IO_VSYNC_STAT:
		value = cpu.vsyncStat
	case IO_CPU_CTRL:
		value = cpu.cpuCtrl
	case IO_DMA_CTRL:
		value = cpu.dmaCtrl
	case IO_INT_CTRL:
		value = cpu.intCtrl
	case IO_DMA_SRC:
		value = cpu.dmaSrc >> 8
	case IO_DMA_SRC + 1:
		value = cpu.dmaSrc & 0xFF
	case IO_DMA_DST:
		value = cpu.dmaDst >> 8
	case IO_DMA_DST + 1:
		value = cpu.dmaDst & 0xFF
	case IO_DMA_LEN:
		value = cpu.dmaLen >> 8
	case IO_DMA_LEN + 1:
		value = cpu.dmaLen & 0xFF
	default:
		ok = false
	}
	return
}

// ioReadWord returns the word view of an I/O register.
func (cpu *Cpu) ioReadWord(addr uint16) (value uint16, ok bool) {
	switch addr {
	case IO_DMA_SRC:
		return cpu.dmaSrc, true
	case IO_DMA_DST:
		return cpu.dmaDst, true
	case IO_DMA_LEN:
		return cpu.dmaLen, true
	case IO_BANK_REG, IO_VIDEO_CTRL, IO_VSYNC_STAT, IO_CPU_CTRL, IO_DMA_CTRL, IO_INT_CTRL:
		return cpu.ioRead(addr)
	}
	return
}

// ioWriteByte applies a byte write to an I/O register.
func (cpu *Cpu) ioWriteByte(addr uint16, value uint8) {
	v := uint16(value)
	switch addr {
	case IO_DMA_SRC:
		cpu.dmaSrc = (cpu.dmaSrc & 0x00FF) | (v << 8)
	case IO_DMA_SRC + 1:
		cpu.dmaSrc = (cpu.dmaSrc & 0xFF00) | v
	case IO_DMA_DST:
		cpu.dmaDst = (cpu.dmaDst & 0x00FF) | (v << 8)
	case IO_DMA_DST + 1:
		cpu.dmaDst = (cpu.dmaDst & 0xFF00) | v
	case IO_DMA_LEN:
		cpu.dmaLen = (cpu.dmaLen & 0x00FF) | (v << 8)
	case IO_DMA_LEN + 1:
		cpu.dmaLen = (cpu.dmaLen & 0xFF00) | v
	default:
		cpu.ioWriteRegister(addr, v)
	}
}

// ioWriteWord applies a word write to an I/O register. Returns false if
// the address is not a register, in which case the write is bytewise.
func (cpu *Cpu) ioWriteWord(addr uint16, value uint16) bool {
	switch addr {
	case IO_DMA_SRC:
		cpu.dmaSrc = value
	case IO_DMA_DST:
		cpu.dmaDst = value
	case IO_DMA_LEN:
		cpu.dmaLen = value
	default:
		return cpu.ioWriteRegister(addr, value)
	}
	return true
}

// ioWriteRegister handles the control registers shared by the byte and
// word write paths.
func (cpu *Cpu) ioWriteRegister(addr uint16, value uint16) bool {
	switch addr {
	case IO_BANK_REG:
		cpu.bank = value & 1
	case IO_VIDEO_CTRL:
		cpu.videoCtrl = value
	case IO_VSYNC_STAT:
		cpu.vsyncStat = value
	case IO_CPU_CTRL:
		cpu.cpuCtrl = value
		cpu.cpuControl()
	case IO_DMA_CTRL:
		cpu.dmaCtrl = value
		if (cpu.dmaCtrl & DMA_STRT) != 0 {
			cpu.startDma()
			cpu.dmaCtrl &^= DMA_STRT
		}
	case IO_INT_CTRL:
		cpu.intCtrl = (cpu.intCtrl & 0xF0) | (value & 0x0F) | IM_NMI
	default:
		return false
	}
	return true
}

// cpuControl acts on the reset and debug bits of CPU_CTRL.
func (cpu *Cpu) cpuControl() {
	if (cpu.cpuCtrl & CPU_RST) != 0 {
		cpu.Reset()
		cpu.cpuCtrl &^= CPU_RST
	}
	if (cpu.cpuCtrl & CPU_DBG) != 0 {
		if cpu.Verbose {
			log.Printf("cpu: debug interrupt")
		}
		err := cpu.interrupt(VEC_DEBUG)
		if err != nil && cpu.fault == nil {
			cpu.fault = err
		}
		cpu.cpuCtrl &^= CPU_DBG
	}
}
