package controller

import "fmt"

// ConfigError is a fatal configuration problem. Continuing would compute
// wrong schedules silently, so the loop terminates on it.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return e.Msg
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// DeviceError is a recoverable device communication failure. The affected
// action is skipped for the cycle and retried on the next one.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// PersistenceError is a state file read or write failure. Writes are fatal
// (state continuity is a core guarantee); a corrupt file at startup is fatal
// too, while an absent file is not an error at all.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("state file %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
