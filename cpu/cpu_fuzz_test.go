package cpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func FuzzRoundTrip(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x04, 0x00})
	f.Add([]byte{0x0F, 0x00, 0x00, 0x01, 0x44, 0x18, 0x00, 0x00, 0xFB, 0x30, 0x00, 0x08, 0x3C, 0x10, 0x00, 0x00, 0x04, 0x00})
	f.Add([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0B, 0x00, 0x01, 0x00, 0x12})
	f.Add([]byte{0xFF, 0xFF, 0x3F, 0xFF, 0x94, 0xBF, 0xFB, 0x30})

	f.Fuzz(func(t *testing.T, data []byte) {
		assert := assert.New(t)

		if len(data) > 0x10000 {
			t.Skip()
		}
		if _, mapped := DecodeFooter(data); mapped {
			t.Skip()
		}

		dis := &Disassembler{}
		text, err := dis.Disassemble(data)
		require.NoError(t, err)

		prog, err := (&Assembler{}).Parse(strings.NewReader(text))
		require.NoError(t, err, text)

		// The first pass keeps the memory contents.
		orig, _, err := ParseImage(data)
		require.NoError(t, err)
		assert.Equal(orig.Image(), prog.Image(), text)

		// Mapped images are reproduced byte for byte.
		b1, err := prog.Binary()
		require.NoError(t, err)

		text, err = dis.Disassemble(b1)
		require.NoError(t, err)

		prog, err = (&Assembler{}).Parse(strings.NewReader(text))
		require.NoError(t, err, text)

		b2, err := prog.Binary()
		require.NoError(t, err)
		assert.Equal(b1, b2, text)
	})
}

func FuzzStep(f *testing.F) {
	f.Add([]byte{0x04, 0x00}, uint16(0))
	f.Add([]byte{0x9C, 0x00, 0x9C, 0x00}, uint16(0))
	f.Add([]byte{0x0F, 0x00, 0x00, 0x01, 0x0E, 0x01, 0xFE, 0x0A}, uint16(0xFFF0))

	f.Fuzz(func(t *testing.T, data []byte, pc uint16) {
		cpu := NewCpu()
		memory := cpu.Memory()
		for n := 0; n < len(memory); n += max(len(data), 1) {
			copy(memory[n:], data)
		}

		cpu.PC = pc
		for range 64 {
			err := cpu.Step()
			if err == nil {
				continue
			}
			assert.True(t,
				errors.Is(err, ErrOpcode{}) ||
					errors.Is(err, ErrStackOverflow) ||
					errors.Is(err, ErrStackUnderflow),
				"%04X: %v", cpu.PC, err)
			break
		}
	})
}
