package cpu

import (
	"log"
)

// TriggerIRQ raises the generic interrupt request.
func (cpu *Cpu) TriggerIRQ() {
	cpu.intCtrl |= IS_IRQ
}

// TriggerDMA raises the DMA completion interrupt.
func (cpu *Cpu) TriggerDMA() {
	cpu.intCtrl |= IS_DMA
}

// TriggerVsync raises the video sync interrupt.
func (cpu *Cpu) TriggerVsync() {
	cpu.intCtrl |= IS_VSYNC
}

// TriggerNMI raises the non-maskable interrupt.
func (cpu *Cpu) TriggerNMI() {
	cpu.intCtrl |= IS_NMI
}

// Interrupts returns the INT_CTRL register.
func (cpu *Cpu) Interrupts() uint16 {
	return cpu.intCtrl
}

// interruptOrder is the interrupt priority, highest first.
var interruptOrder = []struct {
	Status uint16
	Mask   uint16
	Vector uint16
}{
	{IS_NMI, IM_NMI, VEC_NMI},
	{IS_IRQ, IM_IRQ, VEC_IRQ},
	{IS_DMA, IM_DMA, VEC_DMA},
	{IS_VSYNC, IM_VSYNC, VEC_VSYNC},
}

// checkInterrupts takes the highest priority interrupt that is both
// pending and enabled. NMI is always enabled.
func (cpu *Cpu) checkInterrupts() (taken bool, err error) {
	for _, irq := range interruptOrder {
		if (cpu.intCtrl & irq.Status) == 0 {
			continue
		}
		if irq.Status != IS_NMI && (cpu.intCtrl&irq.Mask) == 0 {
			continue
		}
		cpu.intCtrl &^= irq.Status
		if cpu.Verbose {
			log.Printf("cpu: interrupt $%04X", irq.Vector)
		}
		err = cpu.interrupt(irq.Vector)
		taken = true
		return
	}

	return
}

// interrupt enters a handler: PC and flags are pushed, interrupts are
// disabled, and PC is loaded from the vector.
func (cpu *Cpu) interrupt(vector uint16) (err error) {
	err = cpu.push(cpu.PC)
	if err != nil {
		return
	}
	err = cpu.push(cpu.Flags)
	if err != nil {
		return
	}

	cpu.Flags |= FLAG_I
	cpu.PC = cpu.ReadWord(vector)

	return
}

// dmaRead reads a DMA source byte from Bank0, or through the I/O window.
func (cpu *Cpu) dmaRead(addr uint16) uint8 {
	if addr >= IO_BASE {
		return cpu.ReadByte(addr)
	}
	return cpu.memory[BANK0_BASE+int(addr)]
}

// startDma copies DMA_LEN bytes from Bank0 DMA_SRC to Bank1 DMA_DST,
// then raises the DMA completion interrupt.
func (cpu *Cpu) startDma() {
	cpu.dmaCtrl |= DMA_BUSY

	if cpu.Verbose {
		log.Printf("cpu: dma $%04X -> $%04X (%d bytes)", cpu.dmaSrc, cpu.dmaDst, cpu.dmaLen)
	}

	for n := range int(cpu.dmaLen) {
		value := cpu.dmaRead(cpu.dmaSrc + uint16(n))
		cpu.memory[BANK1_BASE+int(cpu.dmaDst+uint16(n))] = value
	}

	cpu.dmaLen = 0
	cpu.dmaCtrl &^= DMA_BUSY
	cpu.TriggerDMA()
}
