package cpu

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip disassembles an image, reassembles the text, and checks that
// the result is identical to the image.
func roundTrip(t *testing.T, bin []byte) (text string) {
	dis := &Disassembler{}
	text, err := dis.Disassemble(bin)
	require.NoError(t, err)

	asm := &Assembler{File: t.Name()}
	prog, err := asm.Parse(strings.NewReader(text))
	require.NoError(t, err, text)

	again, err := prog.Binary()
	require.NoError(t, err)
	assert.Equal(t, bin, again, text)

	return
}

func assembleBinary(t *testing.T, lines ...string) []byte {
	bin, err := assemble(t, lines...).Binary()
	require.NoError(t, err)
	return bin
}

func TestDisassembler(t *testing.T) {
	assert := assert.New(t)

	text := roundTrip(t, nil)
	assert.Equal(strings.Repeat(" ", DISASM_CODE_COLUMN)+".end\n", text)
}

func TestDisassembler_Branch(t *testing.T) {
	assert := assert.New(t)

	text := roundTrip(t, assembleBinary(t, branchSource...))

	assert.Contains(text, "L_0000:\n")
	assert.Contains(text, "L_0008:\n")
	assert.Contains(text, "MOV 0x0001, R0")
	assert.Contains(text, "CMP R0, 0x0000")
	assert.Contains(text, "JCOND EQ, L_0008")
	assert.Contains(text, "JMP L_0000")
	assert.Contains(text, "; $0000 : 0x0F00 0x0001")
	assert.Contains(text, "; $0008 : 0x0400")
	assert.NotContains(text, ".org")
	assert.NotContains(text, ".data")
	assert.True(strings.HasSuffix(text, ".end\n"))
}

func TestDisassembler_Data(t *testing.T) {
	assert := assert.New(t)

	text := roundTrip(t, assembleBinary(t,
		"       MOV MSG, R0",
		"       JMP DONE",
		"       .data",
		`MSG:   .ascii "Hi!"`,
		"       .byte 1, 2, 3",
		"       .word MSG",
		"       .org $0100",
		"DONE:  NOP",
		"       .end",
	))

	assert.Contains(text, "MOV D_0008, R0")
	assert.Contains(text, "JMP L_0100")
	assert.Contains(text, "D_0008:\n")
	assert.Contains(text, `.ascii "Hi!"`)
	assert.Contains(text, ".byte 0x01, 0x02, 0x03")
	assert.Contains(text, ".word 0x0008")
	assert.Contains(text, ".org $0100")
	assert.Equal(1, strings.Count(text, ".data"))
	assert.Less(strings.Index(text, ".data"), strings.Index(text, ".ascii"))
}

func TestDisassembler_Org(t *testing.T) {
	assert := assert.New(t)

	text := roundTrip(t, assembleBinary(t,
		".org $0100",
		".org $0200",
		"NOP",
		".org $0300",
		".end",
	))

	org1 := strings.Index(text, ".org $0100")
	org2 := strings.Index(text, ".org $0200")
	nop := strings.Index(text, "NOP")
	org3 := strings.Index(text, ".org $0300")
	assert.True(org1 >= 0 && org1 < org2 && org2 < nop && nop < org3, text)
}

func TestDisassembler_Raw(t *testing.T) {
	assert := assert.New(t)

	text := roundTrip(t, assembleBinary(t,
		"NOP",
		".word 0x0000",
		"MOV.B 0xFF, R0",
		".byte 0x12",
		".end",
	))

	assert.Contains(text, ".word 0x0000")
	assert.Contains(text, "MOV.B 0xFF, R0")
	assert.Contains(text, ".byte 0x12")
	assert.NotContains(text, ".data")
}

func TestDisassembler_Ascii(t *testing.T) {
	assert := assert.New(t)

	bin := assembleBinary(t,
		"       .data",
		`TEXT:  .ascii "a;b"`,
		`       .ascii " say "hi" "`,
		"       .ascii \"tab\there\"",
		"       .end",
	)

	text := roundTrip(t, bin)
	assert.Contains(text, `.ascii "a;b"`)
	assert.Contains(text, `.ascii " say "hi" "`)
	assert.Contains(text, ".ascii \"tab\there\"")
	assert.NotContains(text, ".byte")
}

func TestDisassembler_Legacy(t *testing.T) {
	assert := assert.New(t)

	bin := append(make([]byte, 16), 0x04, 0x00)

	dis := &Disassembler{}
	text, err := dis.Disassemble(bin)
	require.NoError(t, err)
	assert.Contains(text, ".org $0010")
	assert.NotContains(text, ".word 0x0000")

	dis.Linear = true
	linear, err := dis.Disassemble(bin)
	require.NoError(t, err)
	assert.NotContains(linear, ".org")
	assert.Equal(8, strings.Count(linear, ".word 0x0000"))

	// Both forms load the same memory image.
	for _, source := range []string{text, linear} {
		prog, err := (&Assembler{}).Parse(strings.NewReader(source))
		require.NoError(t, err)
		memory := prog.Image()
		assert.Equal(bin, memory[:len(bin)])
		assert.Equal(make([]byte, 0x10000-len(bin)), memory[len(bin):])
	}

	// Short runs of leading zeros are kept.
	dis.Linear = false
	text, err = dis.Disassemble(append(make([]byte, 4), 0x04, 0x00))
	require.NoError(t, err)
	assert.NotContains(text, ".org")
}

func TestDisassembler_Errors(t *testing.T) {
	assert := assert.New(t)

	dis := &Disassembler{}

	_, err := dis.Disassemble(make([]byte, 0x10001))
	assert.ErrorIs(err, ErrImageTooLarge)

	footer, err := EncodeFooter([]Range{{Start: 0, Length: 8, Kind: RANGE_CODE}})
	require.NoError(t, err)
	_, err = dis.Disassemble(append(bytes.Repeat([]byte{0x04, 0x00}, 2), footer...))
	assert.ErrorIs(err, ErrFooterOverrun)
}
