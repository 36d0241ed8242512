package cpu

import (
	"fmt"
	"strings"
)

// CodeOp is an instruction opcode.
type CodeOp int

//go:generate go tool stringer -linecomment -type=CodeOp
const (
	OP_NOP   = CodeOp(0x00) // NOP
	OP_MOV   = CodeOp(0x01) // MOV
	OP_ADD   = CodeOp(0x02) // ADD
	OP_SUB   = CodeOp(0x03) // SUB
	OP_INC   = CodeOp(0x04) // INC
	OP_DEC   = CodeOp(0x05) // DEC
	OP_NEG   = CodeOp(0x06) // NEG
	OP_JMP   = CodeOp(0x07) // JMP
	OP_CMP   = CodeOp(0x08) // CMP
	OP_TST   = CodeOp(0x09) // TST
	OP_AND   = CodeOp(0x0A) // AND
	OP_OR    = CodeOp(0x0B) // OR
	OP_XOR   = CodeOp(0x0C) // XOR
	OP_NOT   = CodeOp(0x0D) // NOT
	OP_RETI  = CodeOp(0x0E) // RETI
	OP_RSVD  = CodeOp(0x0F) // OP_0F
	OP_MULU  = CodeOp(0x10) // MULU
	OP_DIVU  = CodeOp(0x11) // DIVU
	OP_PUSH  = CodeOp(0x12) // PUSH
	OP_POP   = CodeOp(0x13) // POP
	OP_CALL  = CodeOp(0x14) // CALL
	OP_RET   = CodeOp(0x15) // RET
	OP_MUL   = CodeOp(0x16) // MUL
	OP_DIV   = CodeOp(0x17) // DIV
	OP_ROL   = CodeOp(0x18) // ROL
	OP_ROR   = CodeOp(0x19) // ROR
	OP_SHL   = CodeOp(0x1A) // SHL
	OP_SHR   = CodeOp(0x1B) // SHR
	OP_BTST  = CodeOp(0x1C) // BTST
	OP_BSET  = CodeOp(0x1D) // BSET
	OP_BCLR  = CodeOp(0x1E) // BCLR
	OP_JCOND = CodeOp(0x1F) // JCOND
)

// CodeMode is an operand addressing mode.
type CodeMode int

//go:generate go tool stringer -linecomment -type=CodeMode
const (
	MODE_REG = CodeMode(0) // reg
	MODE_IND = CodeMode(1) // ind
	MODE_ABS = CodeMode(2) // abs
	MODE_IMM = CodeMode(3) // imm
)

// NeedsImmediate returns true if the mode consumes an extension word.
func (mode CodeMode) NeedsImmediate() bool {
	return mode == MODE_ABS || mode == MODE_IMM
}

// CodeCond is a JCOND condition code.
type CodeCond int

//go:generate go tool stringer -linecomment -type=CodeCond
const (
	COND_AL = CodeCond(0x0) // AL
	COND_EQ = CodeCond(0x1) // EQ
	COND_NE = CodeCond(0x2) // NE
	COND_CS = CodeCond(0x3) // CS
	COND_CC = CodeCond(0x4) // CC
	COND_MI = CodeCond(0x5) // MI
	COND_PL = CodeCond(0x6) // PL
	COND_VS = CodeCond(0x7) // VS
	COND_VC = CodeCond(0x8) // VC
	COND_GT = CodeCond(0x9) // GT
	COND_GE = CodeCond(0xA) // GE
	COND_LT = CodeCond(0xB) // LT
	COND_LE = CodeCond(0xC) // LE
	COND_HI = CodeCond(0xD) // HI
	COND_HS = CodeCond(0xE) // HS
	COND_LO = CodeCond(0xF) // LO
)

// Holds returns true if the condition is satisfied by the flags.
func (cond CodeCond) Holds(flags uint16) bool {
	n := (flags & FLAG_N) != 0
	c := (flags & FLAG_C) != 0
	z := (flags & FLAG_Z) != 0
	v := (flags & FLAG_V) != 0

	switch cond {
	case COND_AL:
		return true
	case COND_EQ:
		return z
	case COND_NE:
		return !z
	case COND_CS:
		return c
	case COND_CC:
		return !c
	case COND_MI:
		return n
	case COND_PL:
		return !n
	case COND_VS:
		return v
	case COND_VC:
		return !v
	case COND_GT:
		return !z && n == v
	case COND_GE:
		return n == v
	case COND_LT:
		return n != v
	case COND_LE:
		return z || n != v
	case COND_HI:
		return !c && !z
	case COND_HS:
		return !c
	case COND_LO:
		return c || z
	}

	return false
}

// Operand counts, indexed by opcode.
var operandCount = [32]int{
	OP_NOP: 0, OP_RET: 0, OP_RETI: 0,
	OP_MOV: 2, OP_ADD: 2, OP_SUB: 2, OP_CMP: 2, OP_TST: 2,
	OP_AND: 2, OP_OR: 2, OP_XOR: 2,
	OP_MULU: 2, OP_DIVU: 2, OP_MUL: 2, OP_DIV: 2,
	OP_BTST: 2, OP_BSET: 2, OP_BCLR: 2, OP_JCOND: 2,
	OP_INC: 1, OP_DEC: 1, OP_NEG: 1, OP_NOT: 1,
	OP_ROL: 1, OP_ROR: 1, OP_SHL: 1, OP_SHR: 1,
	OP_PUSH: 1, OP_POP: 1, OP_JMP: 1, OP_CALL: 1,
	OP_RSVD: 0,
}

// Operands returns the number of assembly operands the opcode takes.
func (op CodeOp) Operands() int {
	return operandCount[op&0x1F]
}

// Sizeful returns true if the opcode honours a .B size suffix.
func (op CodeOp) Sizeful() bool {
	switch op {
	case OP_NOP, OP_JMP, OP_CALL, OP_RET, OP_RETI, OP_JCOND, OP_RSVD:
		return false
	}
	return true
}

// opcodeByName maps mnemonics to opcodes.
var opcodeByName = func() map[string]CodeOp {
	names := map[string]CodeOp{}
	for op := OP_NOP; op <= OP_JCOND; op++ {
		if op == OP_RSVD {
			continue
		}
		names[op.String()] = op
	}
	return names
}()

// condByName maps condition mnemonics to condition codes.
var condByName = func() map[string]CodeCond {
	names := map[string]CodeCond{}
	for cond := COND_AL; cond <= COND_LO; cond++ {
		names[cond.String()] = cond
	}
	return names
}()

// LookupOpcode returns the opcode for a mnemonic, ignoring case.
func LookupOpcode(name string) (op CodeOp, ok bool) {
	op, ok = opcodeByName[strings.ToUpper(name)]
	return
}

// LookupCond returns the condition code for a name, ignoring case.
func LookupCond(name string) (cond CodeCond, ok bool) {
	cond, ok = condByName[strings.ToUpper(name)]
	return
}

// Operand is a decoded instruction operand.
type Operand struct {
	Mode  CodeMode
	Reg   int    // Register, for MODE_REG and MODE_IND.
	Value uint16 // Extension word, for MODE_ABS and MODE_IMM.
}

// Reg returns a register operand.
func Reg(reg int) Operand {
	return Operand{Mode: MODE_REG, Reg: reg}
}

// Ind returns a register indirect operand.
func Ind(reg int) Operand {
	return Operand{Mode: MODE_IND, Reg: reg}
}

// Abs returns an absolute address operand.
func Abs(addr uint16) Operand {
	return Operand{Mode: MODE_ABS, Value: addr}
}

// Imm returns an immediate operand.
func Imm(value uint16) Operand {
	return Operand{Mode: MODE_IMM, Value: value}
}

// Code represents a single instruction word with its extension words.
type Code struct {
	Word       uint16
	Immediates []uint16
}

// MakeCode creates an instruction. Extension words are appended for the
// source and then the destination operand.
func MakeCode(op CodeOp, byteSize bool, src, dst Operand) Code {
	size := uint16(1)
	if byteSize {
		size = 0
	}

	var imms []uint16
	srcReg := uint16(src.Reg) & 7
	if src.Mode.NeedsImmediate() {
		srcReg = 0
		imms = append(imms, src.Value)
	}
	dstReg := uint16(dst.Reg) & 7
	if dst.Mode.NeedsImmediate() {
		dstReg = 0
		imms = append(imms, dst.Value)
	}

	return Code{
		Word: (uint16(op&0x1F) << 11) | (size << 10) |
			(uint16(src.Mode&3) << 8) | (srcReg << 5) |
			(uint16(dst.Mode&3) << 3) | dstReg,
		Immediates: imms,
	}
}

// MakeCodeJcond creates a conditional jump. The high bit of the condition
// occupies the size field, the low bits the source register field.
func MakeCodeJcond(cond CodeCond, target uint16) Code {
	size := (uint16(cond) >> 3) & 1
	return Code{
		Word: (uint16(OP_JCOND) << 11) | (size << 10) |
			(uint16(MODE_IMM) << 8) | ((uint16(cond) & 7) << 5) |
			(uint16(MODE_ABS) << 3),
		Immediates: []uint16{target},
	}
}

// Op returns the opcode field.
func (code Code) Op() CodeOp {
	return CodeOp((code.Word >> 11) & 0x1F)
}

// Size returns the size field: 0 for byte, 1 for word.
func (code Code) Size() int {
	return int((code.Word >> 10) & 1)
}

// SrcMode returns the source mode field.
func (code Code) SrcMode() CodeMode {
	return CodeMode((code.Word >> 8) & 3)
}

// SrcReg returns the source register field.
func (code Code) SrcReg() int {
	return int((code.Word >> 5) & 7)
}

// DstMode returns the destination mode field.
func (code Code) DstMode() CodeMode {
	return CodeMode((code.Word >> 3) & 3)
}

// DstReg returns the destination register field.
func (code Code) DstReg() int {
	return int(code.Word & 7)
}

// Cond returns the JCOND condition code.
func (code Code) Cond() CodeCond {
	return CodeCond((code.Size() << 3) | code.SrcReg())
}

// ImmediateNeed returns the number of extension words following the
// instruction word. JCOND always carries exactly one, its target.
func (code Code) ImmediateNeed() int {
	if code.Op() == OP_JCOND {
		return 1
	}

	need := 0
	if code.SrcMode().NeedsImmediate() {
		need++
	}
	if code.DstMode().NeedsImmediate() {
		need++
	}
	return need
}

// Src returns the decoded source operand.
func (code Code) Src() (op Operand) {
	op = Operand{Mode: code.SrcMode(), Reg: code.SrcReg()}
	if code.Op() != OP_JCOND && op.Mode.NeedsImmediate() && len(code.Immediates) > 0 {
		op.Value = code.Immediates[0]
	}
	return
}

// Dst returns the decoded destination operand.
func (code Code) Dst() (op Operand) {
	op = Operand{Mode: code.DstMode(), Reg: code.DstReg()}
	if !op.Mode.NeedsImmediate() && code.Op() != OP_JCOND {
		return
	}
	index := 0
	if code.Op() != OP_JCOND && code.SrcMode().NeedsImmediate() {
		index = 1
	}
	if index < len(code.Immediates) {
		op.Value = code.Immediates[index]
	}
	return
}

// Target returns the JCOND jump target.
func (code Code) Target() uint16 {
	if len(code.Immediates) == 0 {
		return 0
	}
	return code.Immediates[0]
}

// Len returns the encoded length in bytes.
func (code Code) Len() int {
	return 2 + 2*code.ImmediateNeed()
}

// Words returns the instruction word followed by its extension words.
func (code Code) Words() []uint16 {
	return append([]uint16{code.Word}, code.Immediates...)
}

// Canonical returns true if the assembler emits exactly this encoding for
// the instruction's textual form.
func (code Code) Canonical() bool {
	op := code.Op()
	if op == OP_RSVD {
		return false
	}
	if len(code.Immediates) != code.ImmediateNeed() {
		return false
	}

	src := code.Src()
	dst := code.Dst()

	if op == OP_JCOND {
		return src.Mode == MODE_IMM && dst.Mode == MODE_ABS && dst.Reg == 0
	}

	// Extension modes never carry a register number.
	if src.Mode.NeedsImmediate() && src.Reg != 0 {
		return false
	}
	if dst.Mode.NeedsImmediate() && dst.Reg != 0 {
		return false
	}

	if !op.Sizeful() && code.Size() != 1 {
		return false
	}

	none := Operand{}
	switch op {
	case OP_NOP, OP_RET, OP_RETI:
		return src == none && dst == none
	case OP_JMP, OP_CALL:
		return src == none && dst.Mode != MODE_IMM
	case OP_PUSH:
		if dst != none {
			return false
		}
	default:
		if op.Operands() == 1 && src != none {
			return false
		}
	}

	if code.Size() == 0 {
		if src.Mode == MODE_IMM && src.Value > 0xFF {
			return false
		}
		if dst.Mode == MODE_IMM && dst.Value > 0xFF {
			return false
		}
	}

	return true
}

// Format returns the assembly text of the operand. Absolute addresses
// are passed through label, which may return a symbolic name.
func (op Operand) Format(byteSize bool, label func(addr uint16) (string, bool)) string {
	switch op.Mode {
	case MODE_REG:
		return fmt.Sprintf("R%d", op.Reg)
	case MODE_IND:
		return fmt.Sprintf("[R%d]", op.Reg)
	case MODE_ABS:
		if label != nil {
			if name, ok := label(op.Value); ok {
				return name
			}
		}
		return fmt.Sprintf("$%04X", op.Value)
	default:
		if byteSize {
			return fmt.Sprintf("0x%02X", op.Value)
		}
		return fmt.Sprintf("0x%04X", op.Value)
	}
}

// Mnemonic returns the opcode name with its size suffix, if any.
func (code Code) Mnemonic() string {
	op := code.Op()
	if op.Sizeful() && code.Size() == 0 {
		return op.String() + ".B"
	}
	return op.String()
}

// Operands returns the assembly text of the operands, as the assembler
// expects them for this opcode.
func (code Code) Operands(label func(addr uint16) (string, bool)) (text []string) {
	byteSize := code.Op().Sizeful() && code.Size() == 0
	src := code.Src()
	dst := code.Dst()

	switch code.Op() {
	case OP_NOP, OP_RET, OP_RETI, OP_RSVD:
	case OP_JCOND:
		target := Abs(code.Target())
		text = append(text, code.Cond().String(), target.Format(false, label))
	case OP_PUSH:
		text = append(text, src.Format(byteSize, label))
	case OP_JMP, OP_CALL:
		if src.Mode == MODE_REG && src.Reg == 0 {
			text = append(text, dst.Format(false, label))
		} else {
			text = append(text, src.Format(false, label), dst.Format(false, label))
		}
	default:
		if code.Op().Operands() == 2 {
			text = append(text, src.Format(byteSize, label))
		}
		text = append(text, dst.Format(byteSize, label))
	}

	return
}

// Assembly returns the assembly language text of the instruction.
func (code Code) Assembly(label func(addr uint16) (string, bool)) string {
	text := code.Mnemonic()
	ops := code.Operands(label)
	if len(ops) > 0 {
		text += " " + strings.Join(ops, ", ")
	}
	return text
}

// String returns the assembly language representation of this instruction.
func (code Code) String() string {
	return code.Assembly(nil)
}
