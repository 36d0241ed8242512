package io

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"maps"
)

// Console registers, in the unassigned part of the I/O window.
const (
	CON_CTRL = uint16(0xFE20) // Console control.
	CON_DATA = uint16(0xFE22) // Console data, low byte.
)

// CON_CTRL bits.
const (
	CON_TX  = uint16(1 << 0) // Transmit the data byte, cleared when done.
	CON_RX  = uint16(1 << 1) // Receive into the data byte, cleared when done.
	CON_EOF = uint16(1 << 2) // Input is exhausted.
	CON_IE  = uint16(1 << 3) // Raise IRQ when a transfer completes.
)

// Console is a byte stream terminal. The program requests transfers
// through CON_CTRL, one byte at a time.
type Console struct {
	Input  io.Reader
	Output io.Writer
}

var _ Device = (*Console)(nil)

func (con *Console) Name() string {
	return "console"
}

// Defines returns an iter of defines for the device.
func (con *Console) Defines() iter.Seq2[string, string] {
	hex := func(value uint16) string { return fmt.Sprintf("0x%04X", value) }
	return maps.All(map[string]string{
		"CON_CTRL": hex(CON_CTRL),
		"CON_DATA": hex(CON_DATA),
		"CON_TX":   hex(CON_TX),
		"CON_RX":   hex(CON_RX),
		"CON_EOF":  hex(CON_EOF),
		"CON_IE":   hex(CON_IE),
	})
}

func (con *Console) Reset(m Machine) error {
	m.WriteWord(CON_CTRL, 0)
	m.WriteWord(CON_DATA, 0)
	return nil
}

func (con *Console) Tick(m Machine) (err error) {
	ctrl := m.ReadWord(CON_CTRL)
	if (ctrl & (CON_TX | CON_RX)) == 0 {
		return
	}

	if (ctrl & CON_TX) != 0 {
		if con.Output != nil {
			_, err = con.Output.Write([]byte{uint8(m.ReadWord(CON_DATA))})
			if err != nil {
				return
			}
		}
		ctrl &^= CON_TX
	}

	if (ctrl & CON_RX) != 0 {
		var one [1]byte
		var n int
		if con.Input != nil {
			n, err = con.Input.Read(one[:])
		}
		switch {
		case n == 1:
			m.WriteWord(CON_DATA, uint16(one[0]))
			err = nil
		case con.Input == nil || errors.Is(err, io.EOF):
			ctrl |= CON_EOF
			err = nil
		case err != nil:
			return
		default:
			// Nothing available yet, try again next tick.
			m.WriteWord(CON_CTRL, ctrl)
			return
		}
		ctrl &^= CON_RX
	}

	m.WriteWord(CON_CTRL, ctrl)
	if (ctrl & CON_IE) != 0 {
		m.TriggerIRQ()
	}

	return
}
