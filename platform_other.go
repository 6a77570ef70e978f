//go:build !linux

package silo

import "golang.org/x/sys/unix"

// DefaultASLRController returns the platform's ASLR control.
func DefaultASLRController() ASLRController { return NoASLRControl{} }

// BreakHintProvider returns NoHint; the program break is not usable here.
func BreakHintProvider() HintProvider { return NoHint{} }

// mapFlags never requests a fixed placement: without an exclusive flag a
// MAP_FIXED mapping can replace memory owned by the Go runtime. The target
// is still passed to mmap as a hint.
func mapFlags(bool) int {
	return unix.MAP_SHARED
}

func excludeFromCore([]byte) error { return nil }

func placementRefused(error) bool { return false }
