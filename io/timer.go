package io

import (
	"fmt"
	"iter"
	"maps"
)

// Timer raises the IRQ interrupt every Period ticks.
type Timer struct {
	Period int // Ticks between interrupts. Zero disables the timer.

	count int
}

var _ Device = (*Timer)(nil)

func (tm *Timer) Name() string {
	return "timer"
}

// Defines returns an iter of defines for the device.
func (tm *Timer) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{
		"TIMER_PERIOD": fmt.Sprintf("%d", tm.Period),
	})
}

func (tm *Timer) Reset(m Machine) error {
	tm.count = 0
	return nil
}

func (tm *Timer) Tick(m Machine) error {
	if tm.Period <= 0 {
		return nil
	}

	tm.count++
	if tm.count >= tm.Period {
		tm.count = 0
		m.TriggerIRQ()
	}

	return nil
}
