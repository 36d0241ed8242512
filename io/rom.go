package io

import (
	"fmt"
	"iter"
	"maps"

	"github.com/ezrec/fantasy16/cpu"
)

// Rom holds a logical memory image, loaded into Bank0 on every reset.
type Rom struct {
	Data []byte
}

var _ Device = (*Rom)(nil)

func (rc *Rom) Name() string {
	return "rom"
}

// Defines returns an iter of defines for the device.
func (rc *Rom) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{
		"ROM_SIZE": fmt.Sprintf("0x%04X", len(rc.Data)),
	})
}

// Reset copies the image into Bank0. The I/O registers do not see the
// copy.
func (rc *Rom) Reset(m Machine) error {
	if len(rc.Data) > 0x10000 {
		return ErrRomTooLarge
	}

	copy(m.Memory()[cpu.BANK0_BASE:], rc.Data)

	return nil
}

func (rc *Rom) Tick(m Machine) error {
	return nil
}
