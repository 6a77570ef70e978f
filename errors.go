package silo

import (
	"errors"
	"fmt"
)

// Sentinel causes carried inside the typed errors below.
var (
	ErrArity        = errors.New("wrong number of arguments")
	ErrIsDirectory  = errors.New("need filename (not directory)")
	ErrNotRegular   = errors.New("not a regular file")
	ErrNoSize       = errors.New("no size specified and file is empty")
	ErrSiloTooSmall = errors.New("silo too small")
)

// ConfigurationError reports a bad path/size specification or a silo that
// cannot be laid out. Bring-up aborts.
type ConfigurationError struct {
	Op   string
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("silo: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("silo: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ResourceError reports a failed truncate/extend or mmap. Bring-up aborts.
type ResourceError struct {
	Op   string
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("silo: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// CorruptFormatError is the recoverable validation failure: the silo is
// reinitialized and validated again.
type CorruptFormatError struct {
	Path   string
	Reason FailureReason
}

func (e *CorruptFormatError) Error() string {
	return fmt.Sprintf("silo: %s not reloaded (reason=%d: %s)", e.Path, int(e.Reason), e.Reason)
}

// FatalFormatError means a freshly reinitialized silo still failed
// validation.
type FatalFormatError struct {
	Path   string
	Reason FailureReason
}

func (e *FatalFormatError) Error() string {
	return fmt.Sprintf("silo: %s invalid after reinitialization (reason=%d: %s)", e.Path, int(e.Reason), e.Reason)
}

func (e *FatalFormatError) Unwrap() error {
	return &CorruptFormatError{Path: e.Path, Reason: e.Reason}
}

// AddressDriftWarning is recorded when the silo could not be mapped at the
// address stored in its signature. It is never returned from Open.
type AddressDriftWarning struct {
	Path string
	Want uintptr
	Got  uintptr
}

func (w *AddressDriftWarning) Error() string {
	return fmt.Sprintf("silo: %s lost to ASLR: recorded %#x, mapped %#x", w.Path, w.Want, w.Got)
}
