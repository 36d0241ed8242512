package emulator

import (
	"errors"

	"github.com/ezrec/fantasy16/translate"
)

var f = translate.From

var (
	// Emulator errors
	ErrTickLimit = errors.New(f("tick limit reached"))

	// Monitor errors
	ErrCommandUnknown  = errors.New(f("unknown command, try 'help'"))
	ErrCommandArgument = errors.New(f("invalid command argument"))
)

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	Addr   uint16
	LineNo int
	Err    error
}

func (err *ErrRuntime) Error() string {
	if err.LineNo == 0 {
		return f("$%04X %v", err.Addr, err.Err)
	}
	return f("line %d $%04X %v", err.LineNo, err.Addr, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}

// ErrDevice is a failure of a peripheral.
type ErrDevice struct {
	Name string
	Err  error
}

func (err *ErrDevice) Error() string {
	return f("device %v: %v", err.Name, err.Err)
}

func (err *ErrDevice) Unwrap() error {
	return err.Err
}
