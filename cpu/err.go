package cpu

import (
	"errors"

	"github.com/ezrec/fantasy16/translate"
)

var f = translate.From

var (
	// Cpu errors
	ErrHalted         = errors.New(f("cpu halted"))
	ErrStackUnderflow = errors.New(f("stack underflow"))
	ErrStackOverflow  = errors.New(f("stack overflow"))

	// Assembler parse errors
	ErrDirectiveInvalid   = errors.New(f("directive invalid"))
	ErrDirectiveColon     = errors.New(f("directive must not end with ':'"))
	ErrDirectiveSyntax    = errors.New(f("directive syntax"))
	ErrLabelInvalid       = errors.New(f("label invalid"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrStartDuplicate     = errors.New(f("only one .start is allowed"))
	ErrStartAfterOrg      = errors.New(f(".start is not allowed after .org"))
	ErrDataDuplicate      = errors.New(f("only one .data section is allowed"))
	ErrEndDuplicate       = errors.New(f("only one .end is allowed"))
	ErrEndMissing         = errors.New(f("program must end with .end"))
	ErrContentAfterEnd    = errors.New(f("content after .end"))
	ErrEquateSyntax       = errors.New(f(".equ syntax"))
	ErrEquateDuplicate    = errors.New(f(".equ duplicated"))
	ErrImmediateSyntax    = errors.New(f("invalid immediate syntax, use 0x..., %%... or decimal"))
	ErrAsciiInvalid       = errors.New(f(".ascii text must not contain CR or LF"))
	ErrAddressInvalid     = errors.New(f("address invalid, use $HEX or a label"))
	ErrAddressOverflow    = errors.New(f("address beyond $FFFF"))
	ErrOpcodeInvalid      = errors.New(f("opcode invalid"))
	ErrOperandInvalid     = errors.New(f("operand invalid"))
	ErrRegisterInvalid    = errors.New(f("register invalid"))
	ErrInstructionInvalid = errors.New(f("instruction invalid"))

	// Assembler encode errors
	ErrOperandCount     = errors.New(f("operand count mismatch"))
	ErrImmediateRange   = errors.New(f("immediate too large for .B"))
	ErrValueRange       = errors.New(f("value out of range"))
	ErrConditionInvalid = errors.New(f("condition invalid"))
	ErrTargetInvalid    = errors.New(f("target invalid"))
	ErrChunkOverlap     = errors.New(f("code or data overlaps earlier output"))
	ErrFooterOverflow   = errors.New(f("footer map full"))

	// Disassembler errors
	ErrFooterOverrun = errors.New(f("footer chunk overruns image"))
	ErrImageTooLarge = errors.New(f("image larger than 64 KiB"))
)

// ErrLabelMissing is an undefined label reference.
type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

// ErrOpcode is an instruction the CPU cannot execute.
type ErrOpcode Code

func (eo ErrOpcode) Error() string {
	return f("bad opcode 0x%04x %v", eo.Word, CodeOp((eo.Word>>11)&0x1F).String())
}

func (eo ErrOpcode) Is(err error) (ok bool) {
	_, ok = err.(ErrOpcode)
	return
}

// ErrSyntax locates an assembler error in its source.
type ErrSyntax struct {
	File   string
	LineNo int
	Addr   int // -1 if not known
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	if err.Addr < 0 {
		return f("%v:%d '%v' %v", err.File, err.LineNo, err.Line, err.Err)
	}
	return f("%v:%d $%04X '%v' %v", err.File, err.LineNo, err.Addr, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

// ErrParseNumber is a malformed numeric literal.
type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

// ErrParseExpression is a compile-time expression that did not produce an integer.
type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}
