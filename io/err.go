package io

import (
	"errors"

	"github.com/ezrec/fantasy16/translate"
)

var f = translate.From

var (
	// Device errors
	ErrRomTooLarge  = errors.New(f("rom image larger than 64 KiB"))
	ErrScriptNoTick = errors.New(f("script does not define tick()"))
)

// ErrScript is a failure raised by a Lua peripheral script.
type ErrScript struct {
	Name string
	Err  error
}

func (err *ErrScript) Error() string {
	return f("script %v: %v", err.Name, err.Err)
}

func (err *ErrScript) Unwrap() error {
	return err.Err
}
