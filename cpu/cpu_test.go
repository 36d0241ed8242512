package cpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCpu(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.Equal(uint16(SP_MAX), cpu.SP)
	assert.Equal(uint16(0), cpu.PC)
	assert.Equal(uint16(0), cpu.Flags)
	assert.Equal(IM_NMI, cpu.Interrupts())
	assert.False(cpu.Halted())
	assert.Contains(cpu.String(), "   r7: 0000\n")
	assert.Contains(cpu.String(), "flags: ------\n")

	defines := map[string]string{}
	for key, value := range cpu.Defines() {
		defines[key] = value
	}
	assert.Equal("0xFE00", defines["IO_BASE"])
	assert.Equal("0xFF0B", defines["INT_CTRL"])
	assert.Equal("0xFFE0", defines["VEC_RESET"])
}

func TestFlagString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("------", FlagString(0))
	assert.Equal("IXVZCN", FlagString(FLAG_I|FLAG_X|FLAG_V|FLAG_Z|FLAG_C|FLAG_N))
	assert.Equal("---Z--", FlagString(FLAG_Z))
}

func TestCpu_Memory(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()

	// Big-endian words.
	cpu.WriteWord(0x2000, 0x1234)
	assert.Equal(uint8(0x12), cpu.Memory()[0x2000])
	assert.Equal(uint8(0x34), cpu.Memory()[0x2001])
	assert.Equal(uint16(0x1234), cpu.ReadWord(0x2000))

	// Banking.
	cpu.WriteByte(IO_BANK_REG, 0xFF)
	assert.Equal(uint16(1), cpu.Bank())
	cpu.WriteByte(0x1234, 0xAA)
	assert.Equal(uint8(0xAA), cpu.Memory()[BANK1_BASE+0x1234])
	assert.Equal(uint8(0x00), cpu.Memory()[BANK0_BASE+0x1234])
	assert.Equal(0x11234, cpu.Physical(0x1234))

	// The I/O window is always Bank0.
	cpu.WriteByte(0xFF00, 0x55)
	assert.Equal(uint8(0x55), cpu.Memory()[BANK0_BASE+0xFF00])
	assert.Equal(0xFF00, cpu.Physical(0xFF00))
	assert.Equal(0xFDFF+BANK1_BASE, cpu.Physical(0xFDFF))

	cpu.WriteWord(IO_BANK_REG, 0)
	assert.Equal(uint16(0), cpu.Bank())
	assert.Equal(uint8(0x00), cpu.ReadByte(0x1234))
	assert.Equal(uint8(0x55), cpu.ReadByte(0xFF00))
}

func TestCpu_Registers(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()

	// DMA registers at byte and word granularity.
	cpu.WriteByte(IO_DMA_SRC, 0x12)
	cpu.WriteByte(IO_DMA_SRC+1, 0x34)
	assert.Equal(uint16(0x1234), cpu.ReadWord(IO_DMA_SRC))
	cpu.WriteWord(IO_DMA_DST, 0xABCD)
	assert.Equal(uint8(0xAB), cpu.ReadByte(IO_DMA_DST))
	assert.Equal(uint8(0xCD), cpu.ReadByte(IO_DMA_DST+1))

	// NMI mask can not be cleared, status is not writable.
	cpu.WriteByte(IO_INT_CTRL, 0xF0)
	assert.Equal(IM_NMI, cpu.Interrupts())
	cpu.WriteByte(IO_INT_CTRL, uint8(IM_IRQ|IM_VSYNC))
	assert.Equal(IM_NMI|IM_IRQ|IM_VSYNC, cpu.Interrupts())
	assert.Equal(uint8(IM_NMI|IM_IRQ|IM_VSYNC), cpu.ReadByte(IO_INT_CTRL))

	// Video registers are plain state.
	cpu.WriteByte(IO_VIDEO_CTRL, 0x81)
	cpu.WriteWord(IO_VSYNC_STAT, 0x0042)
	assert.Equal(uint8(0x81), cpu.ReadByte(IO_VIDEO_CTRL))
	assert.Equal(uint16(0x0042), cpu.ReadWord(IO_VSYNC_STAT))
}

func TestCpu_Dma(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	copy(cpu.Memory()[0x3000:], "abc")

	cpu.WriteWord(IO_DMA_SRC, 0x3000)
	cpu.WriteWord(IO_DMA_DST, 0x0100)
	cpu.WriteWord(IO_DMA_LEN, 3)
	cpu.WriteWord(IO_DMA_CTRL, DMA_STRT)

	assert.Equal([]byte("abc"), cpu.Memory()[BANK1_BASE+0x0100:BANK1_BASE+0x0103])
	assert.Equal(uint16(0), cpu.ReadWord(IO_DMA_LEN))
	assert.Equal(uint8(0), cpu.ReadByte(IO_DMA_CTRL))
	assert.Equal(IS_DMA, cpu.Interrupts()&IS_DMA)

	// Destination wraps at 16 bits.
	cpu.WriteWord(IO_DMA_DST, 0xFFFF)
	cpu.WriteWord(IO_DMA_LEN, 2)
	cpu.WriteByte(IO_DMA_CTRL, uint8(DMA_STRT))
	assert.Equal(uint8('a'), cpu.Memory()[BANK1_BASE+0xFFFF])
	assert.Equal(uint8('b'), cpu.Memory()[BANK1_BASE+0x0000])
}

func TestCpu_Control(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.WriteWord(VEC_RESET, 0x0200)
	cpu.WriteWord(VEC_DEBUG, 0x4000)

	cpu.PC = 0x0100
	cpu.WriteWord(IO_CPU_CTRL, CPU_DBG)
	assert.Equal(uint16(0x4000), cpu.PC)
	assert.Equal(FLAG_I, cpu.Flags&FLAG_I)
	assert.Equal(uint16(SP_MAX-4), cpu.SP)
	assert.Equal(uint16(0), cpu.ReadWord(IO_CPU_CTRL))
	assert.NoError(cpu.Step())

	cpu.R[3] = 0x1234
	cpu.WriteWord(IO_BANK_REG, 1)
	cpu.WriteWord(IO_CPU_CTRL, CPU_RST)
	assert.Equal(uint16(0x0200), cpu.PC)
	assert.Equal(uint16(0), cpu.R[3])
	assert.Equal(uint16(0), cpu.Bank())
	assert.Equal(uint16(SP_MAX), cpu.SP)
	assert.Equal(uint16(0), cpu.ReadWord(IO_CPU_CTRL))

	// A debug interrupt with a full stack faults on the next step.
	cpu.SP = SP_MIN
	cpu.WriteWord(IO_CPU_CTRL, CPU_DBG)
	assert.True(cpu.Halted())
	err := cpu.Step()
	assert.ErrorIs(err, ErrStackUnderflow)
	assert.ErrorIs(err, ErrHalted)
	assert.NoError(cpu.Step())

	cpu.WriteWord(IO_CPU_CTRL, CPU_HLT)
	assert.True(cpu.Halted())
}

func TestCpu_Flags(t *testing.T) {
	table := [...]struct {
		name   string
		op     CodeOp
		src    uint16
		dst    uint16
		result uint16
		flags  uint16
	}{
		{"add-overflow", OP_ADD, 0x0001, 0x7FFF, 0x8000, FLAG_N | FLAG_V},
		{"add-carry", OP_ADD, 0x0001, 0xFFFF, 0x0000, FLAG_Z | FLAG_C},
		{"add-neg-overflow", OP_ADD, 0x8000, 0x8000, 0x0000, FLAG_Z | FLAG_C | FLAG_V},
		{"sub-borrow", OP_SUB, 0x0002, 0x0001, 0xFFFF, FLAG_N | FLAG_C},
		{"sub-zero", OP_SUB, 0x1234, 0x1234, 0x0000, FLAG_Z},
		{"sub-overflow", OP_SUB, 0x0001, 0x8000, 0x7FFF, FLAG_V},
		{"and", OP_AND, 0x0F0F, 0x8F00, 0x0F00, 0},
		{"and-zero", OP_AND, 0x00F0, 0x0F00, 0x0000, FLAG_Z},
		{"or-no-n", OP_OR, 0x8000, 0x0001, 0x8001, 0},
		{"xor", OP_XOR, 0xFFFF, 0xFFFF, 0x0000, FLAG_Z},
		{"mov", OP_MOV, 0xBEEF, 0x0000, 0xBEEF, 0},
	}

	for _, entry := range table {
		t.Run(entry.name, func(t *testing.T) {
			assert := assert.New(t)

			cpu := NewCpu()
			cpu.R[0] = entry.dst
			assert.NoError(cpu.Execute(MakeCode(entry.op, false, Imm(entry.src), Reg(0))))
			assert.Equal(entry.result, cpu.R[0])
			assert.Equal(entry.flags, cpu.Flags, FlagString(cpu.Flags))
		})
	}
}

func TestCpu_Unary(t *testing.T) {
	table := [...]struct {
		name   string
		op     CodeOp
		dst    uint16
		result uint16
		flags  uint16
	}{
		{"neg-zero", OP_NEG, 0x0000, 0x0000, FLAG_Z},
		{"neg", OP_NEG, 0x0005, 0xFFFB, FLAG_N | FLAG_C},
		{"neg-min", OP_NEG, 0x8000, 0x8000, FLAG_N | FLAG_C},
		{"inc", OP_INC, 0x7FFF, 0x8000, FLAG_N | FLAG_V},
		{"inc-wrap", OP_INC, 0xFFFF, 0x0000, FLAG_Z | FLAG_C},
		{"dec", OP_DEC, 0x0001, 0x0000, FLAG_Z},
		{"dec-wrap", OP_DEC, 0x0000, 0xFFFF, FLAG_N | FLAG_C},
		{"not", OP_NOT, 0x00FF, 0xFF00, 0},
		{"shl", OP_SHL, 0x8001, 0x0002, FLAG_C | FLAG_X},
		{"shr", OP_SHR, 0x0001, 0x0000, FLAG_Z | FLAG_C | FLAG_X},
		{"shr-no-carry", OP_SHR, 0x0002, 0x0001, 0},
		{"rol", OP_ROL, 0x8000, 0x0001, FLAG_C | FLAG_X},
		{"ror", OP_ROR, 0x0001, 0x8000, FLAG_C | FLAG_X},
	}

	for _, entry := range table {
		t.Run(entry.name, func(t *testing.T) {
			assert := assert.New(t)

			cpu := NewCpu()
			cpu.R[2] = entry.dst
			assert.NoError(cpu.Execute(MakeCode(entry.op, false, Operand{}, Reg(2))))
			assert.Equal(entry.result, cpu.R[2])
			assert.Equal(entry.flags, cpu.Flags, FlagString(cpu.Flags))
		})
	}
}

func TestCpu_MulDiv(t *testing.T) {
	table := [...]struct {
		name  string
		op    CodeOp
		src   uint16
		dst   uint16
		low   uint16
		high  uint16
		xflag bool
	}{
		{"mulu", OP_MULU, 0x2000, 0x1000, 0x0000, 0x0200, true},
		{"mulu-small", OP_MULU, 0x0003, 0x0004, 0x000C, 0x0000, false},
		{"mul", OP_MUL, 0x0003, 0xFFFE, 0xFFFA, 0xFFFF, false},
		{"mul-min", OP_MUL, 0x8000, 0x8000, 0x0000, 0x4000, false},
		{"mul-mixed", OP_MUL, 0x8000, 0x7FFF, 0x8000, 0xC000, false},
		{"divu", OP_DIVU, 0x0002, 0x0007, 0x0003, 0x0001, false},
		{"div", OP_DIV, 0x0002, 0xFFF9, 0xFFFD, 0xFFFF, false},
		{"divu-zero", OP_DIVU, 0x0000, 0x0007, 0x0007, 0x5555, true},
		{"div-zero", OP_DIV, 0x0000, 0x0007, 0x0007, 0x5555, true},
	}

	for _, entry := range table {
		t.Run(entry.name, func(t *testing.T) {
			assert := assert.New(t)

			cpu := NewCpu()
			cpu.R[0] = entry.dst
			cpu.R[1] = 0x5555
			assert.NoError(cpu.Execute(MakeCode(entry.op, false, Imm(entry.src), Reg(0))))
			assert.Equal(entry.low, cpu.R[0])
			assert.Equal(entry.high, cpu.R[1])
			assert.Equal(entry.xflag, (cpu.Flags&FLAG_X) != 0)
		})
	}
}

func TestCpu_MulHighR7(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.R[7] = 0x1000
	cpu.R[0] = 0x5555
	assert.NoError(cpu.Execute(MakeCode(OP_MULU, false, Imm(0x2000), Reg(7))))
	assert.Equal(uint16(0x0000), cpu.R[7])
	assert.Equal(uint16(0x5555), cpu.R[0])

	// Memory destinations only receive the low word.
	cpu.WriteWord(0x2000, 0x0100)
	assert.NoError(cpu.Execute(MakeCode(OP_MULU, false, Imm(0x0100), Abs(0x2000))))
	assert.Equal(uint16(0x0000), cpu.ReadWord(0x2000))
	assert.Equal(uint16(0x0000), cpu.ReadWord(0x2002))
}

func TestCpu_Bits(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.R[0] = 0x0008
	assert.NoError(cpu.Execute(MakeCode(OP_BTST, false, Imm(3), Reg(0))))
	assert.Equal(uint16(0), cpu.Flags&FLAG_Z)
	assert.NoError(cpu.Execute(MakeCode(OP_BTST, false, Imm(4), Reg(0))))
	assert.Equal(FLAG_Z, cpu.Flags&FLAG_Z)

	// Only the low four bits select the bit.
	assert.NoError(cpu.Execute(MakeCode(OP_BSET, false, Imm(0x1F), Reg(0))))
	assert.Equal(uint16(0x8008), cpu.R[0])
	assert.NoError(cpu.Execute(MakeCode(OP_BCLR, false, Imm(3), Reg(0))))
	assert.Equal(uint16(0x8000), cpu.R[0])
}

func TestCpu_Addressing(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.R[1] = 0x2000
	cpu.WriteWord(0x2000, 0x1111)
	cpu.WriteWord(0x3000, 0x2222)

	assert.NoError(cpu.Execute(MakeCode(OP_MOV, false, Ind(1), Reg(2))))
	assert.Equal(uint16(0x1111), cpu.R[2])
	assert.NoError(cpu.Execute(MakeCode(OP_ADD, false, Abs(0x3000), Ind(1))))
	assert.Equal(uint16(0x3333), cpu.ReadWord(0x2000))
	assert.NoError(cpu.Execute(MakeCode(OP_MOV, false, Reg(2), Abs(0x3000))))
	assert.Equal(uint16(0x1111), cpu.ReadWord(0x3000))

	// Stores to an immediate are discarded.
	assert.NoError(cpu.Execute(MakeCode(OP_MOV, false, Reg(2), Imm(0x4000))))
	assert.Equal(uint16(0), cpu.ReadWord(0x4000))

	// Size is only a hint; transfers are always words.
	assert.NoError(cpu.Execute(MakeCode(OP_MOV, true, Imm(0x12), Abs(0x4000))))
	assert.Equal(uint16(0x0012), cpu.ReadWord(0x4000))
}

func TestCpu_Jumps(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.PC = 0x0104
	assert.NoError(cpu.Execute(MakeCode(OP_CALL, false, Operand{}, Abs(0x0200))))
	assert.Equal(uint16(0x0200), cpu.PC)
	assert.Equal(uint16(SP_MAX-2), cpu.SP)
	value, ok := cpu.Peek()
	assert.True(ok)
	assert.Equal(uint16(0x0104), value)

	assert.NoError(cpu.Execute(MakeCode(OP_RET, false, Operand{}, Operand{})))
	assert.Equal(uint16(0x0104), cpu.PC)
	assert.Equal(uint16(SP_MAX), cpu.SP)

	cpu.R[4] = 0x0300
	assert.NoError(cpu.Execute(MakeCode(OP_JMP, false, Operand{}, Reg(4))))
	assert.Equal(uint16(0x0300), cpu.PC)

	cpu.Flags = FLAG_Z
	assert.NoError(cpu.Execute(MakeCodeJcond(COND_NE, 0x0400)))
	assert.Equal(uint16(0x0300), cpu.PC)
	assert.NoError(cpu.Execute(MakeCodeJcond(COND_EQ, 0x0400)))
	assert.Equal(uint16(0x0400), cpu.PC)
}

func TestCpu_Program(t *testing.T) {
	assert := assert.New(t)

	// CALL pushes the address after its extension word.
	cpu := NewCpu()
	words := []uint16{}
	words = append(words, MakeCode(OP_CALL, false, Operand{}, Abs(0x0010)).Words()...)
	words = append(words, MakeCode(OP_MOV, false, Imm(1), Abs(IO_CPU_CTRL)).Words()...)
	for n, word := range words {
		cpu.WriteWord(uint16(2*n), word)
	}
	cpu.WriteWord(0x0010, MakeCode(OP_RET, false, Operand{}, Operand{}).Word)

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x0010), cpu.PC)
	value, _ := cpu.Peek()
	assert.Equal(uint16(0x0004), value)
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x0004), cpu.PC)
	assert.NoError(cpu.Step())
	assert.True(cpu.Halted())
	assert.Equal(3, cpu.Ticks)

	// Halted steps are a no-op.
	assert.NoError(cpu.Step())
	assert.Equal(3, cpu.Ticks)
}

func TestCodeCond_Holds(t *testing.T) {
	table := [...]struct {
		cond  CodeCond
		flags uint16
		holds bool
	}{
		{COND_AL, 0, true},
		{COND_EQ, FLAG_Z, true},
		{COND_EQ, 0, false},
		{COND_NE, 0, true},
		{COND_CS, FLAG_C, true},
		{COND_CC, FLAG_C, false},
		{COND_MI, FLAG_N, true},
		{COND_PL, FLAG_N, false},
		{COND_VS, FLAG_V, true},
		{COND_VC, FLAG_V, false},
		{COND_GT, 0, true},
		{COND_GT, FLAG_N | FLAG_V, true},
		{COND_GT, FLAG_Z, false},
		{COND_GT, FLAG_N, false},
		{COND_GE, FLAG_N | FLAG_V, true},
		{COND_GE, FLAG_V, false},
		{COND_LT, FLAG_N, true},
		{COND_LT, 0, false},
		{COND_LE, FLAG_Z, true},
		{COND_LE, FLAG_V, true},
		{COND_LE, 0, false},
		{COND_HI, 0, true},
		{COND_HI, FLAG_C, false},
		{COND_HI, FLAG_Z, false},
		{COND_HS, 0, true},
		{COND_HS, FLAG_C, false},
		{COND_LO, FLAG_C, true},
		{COND_LO, FLAG_Z, true},
		{COND_LO, 0, false},
	}

	for _, entry := range table {
		t.Run(entry.cond.String(), func(t *testing.T) {
			assert.Equal(t, entry.holds, entry.cond.Holds(entry.flags), FlagString(entry.flags))
		})
	}
}

func TestCpu_Interrupts(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.WriteWord(VEC_NMI, 0x1000)
	cpu.WriteWord(VEC_IRQ, 0x2000)
	cpu.WriteWord(VEC_DMA, 0x3000)
	cpu.WriteWord(VEC_VSYNC, 0x4000)
	cpu.WriteByte(IO_INT_CTRL, uint8(IM_IRQ|IM_DMA|IM_VSYNC))

	cpu.TriggerVsync()
	cpu.TriggerDMA()
	cpu.TriggerIRQ()
	cpu.TriggerNMI()

	for _, expected := range []struct {
		pc     uint16
		status uint16
	}{
		{0x1000, IS_NMI},
		{0x2000, IS_IRQ},
		{0x3000, IS_DMA},
		{0x4000, IS_VSYNC},
	} {
		cpu.PC = 0x0100
		cpu.SP = SP_MAX
		cpu.Flags = FLAG_C
		assert.NoError(cpu.Step())
		assert.Equal(expected.pc, cpu.PC)
		assert.Equal(uint16(0), cpu.Interrupts()&expected.status)
		assert.Equal(FLAG_I|FLAG_C, cpu.Flags)
		assert.Equal(uint16(SP_MAX-4), cpu.SP)
		assert.Equal(uint16(FLAG_C), cpu.ReadWord(cpu.SP))
		assert.Equal(uint16(0x0100), cpu.ReadWord(cpu.SP+2))

		// RETI restores the flags, then the program counter.
		assert.NoError(cpu.Execute(MakeCode(OP_RETI, false, Operand{}, Operand{})))
		assert.Equal(uint16(0x0100), cpu.PC)
		assert.Equal(FLAG_C, cpu.Flags)
		assert.Equal(uint16(SP_MAX), cpu.SP)
	}

	// Interrupt entry does not count as an instruction.
	assert.Equal(0, cpu.Ticks)
}

func TestCpu_InterruptMasked(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.WriteWord(0x0000, MakeCode(OP_NOP, false, Operand{}, Operand{}).Word)
	cpu.WriteWord(0x0002, MakeCode(OP_NOP, false, Operand{}, Operand{}).Word)
	cpu.WriteWord(VEC_NMI, 0x1000)

	// Masked IRQ stays pending.
	cpu.TriggerIRQ()
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x0002), cpu.PC)
	assert.Equal(IS_IRQ, cpu.Interrupts()&IS_IRQ)

	// The I flag holds off even NMI.
	cpu.Flags = FLAG_I
	cpu.TriggerNMI()
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x0004), cpu.PC)
	assert.Equal(IS_NMI, cpu.Interrupts()&IS_NMI)

	cpu.Flags = 0
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x1000), cpu.PC)
}

func TestCpu_BadOpcode(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	code := Code{Word: uint16(OP_RSVD) << 11}
	cpu.WriteWord(0x0000, code.Word)

	err := cpu.Step()
	assert.ErrorIs(err, ErrOpcode{})
	var eo ErrOpcode
	assert.True(errors.As(err, &eo))
	assert.Equal(code.Word, eo.Word)
	assert.Contains(err.Error(), "OP_0F")

	// Stack faults carry the opcode and the fault.
	cpu = NewCpu()
	cpu.SP = SP_MIN
	err = cpu.Execute(MakeCode(OP_PUSH, false, Reg(0), Operand{}))
	assert.ErrorIs(err, ErrOpcode{})
	assert.ErrorIs(err, ErrStackUnderflow)
	assert.True(cpu.Halted())
}
