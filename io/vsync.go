package io

import (
	"fmt"
	"iter"
	"maps"

	"github.com/ezrec/fantasy16/cpu"
)

// VIDEO_CTRL bits.
const (
	VIDEO_ENABLE = uint8(1 << 0)
)

// Vsync raises the VSYNC interrupt once per frame while the video output
// is enabled. The frame counter is mirrored into VSYNC_STAT.
type Vsync struct {
	Period int    // Ticks per frame. Zero disables the device.
	Frames uint16 // Frames since reset.

	count int
}

var _ Device = (*Vsync)(nil)

func (vs *Vsync) Name() string {
	return "vsync"
}

// Defines returns an iter of defines for the device.
func (vs *Vsync) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{
		"VIDEO_ENABLE": fmt.Sprintf("0x%04X", VIDEO_ENABLE),
		"VSYNC_PERIOD": fmt.Sprintf("%d", vs.Period),
	})
}

func (vs *Vsync) Reset(m Machine) error {
	vs.Frames = 0
	vs.count = 0
	return nil
}

func (vs *Vsync) Tick(m Machine) error {
	if vs.Period <= 0 || (m.ReadByte(cpu.IO_VIDEO_CTRL)&VIDEO_ENABLE) == 0 {
		return nil
	}

	vs.count++
	if vs.count < vs.Period {
		return nil
	}

	vs.count = 0
	vs.Frames++
	m.WriteWord(cpu.IO_VSYNC_STAT, vs.Frames)
	m.TriggerVsync()

	return nil
}
