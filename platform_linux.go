//go:build linux

package silo

import (
	"errors"

	"golang.org/x/sys/unix"
)

// addrNoRandomize is ADDR_NO_RANDOMIZE from <sys/personality.h>.
const addrNoRandomize = 0x0040000

// breakGap is the distance kept below the program break by BreakHint.
const breakGap = 1 << 24

// personalityASLR flips ADDR_NO_RANDOMIZE in the process personality.
type personalityASLR struct{}

func (personalityASLR) DisableASLR() (bool, error) {
	old, _, errno := unix.RawSyscall(unix.SYS_PERSONALITY, 0xffffffff, 0, 0)
	if errno != 0 {
		return false, errno
	}
	if old&addrNoRandomize != 0 {
		return false, nil
	}
	if _, _, errno := unix.RawSyscall(unix.SYS_PERSONALITY, old|addrNoRandomize, 0, 0); errno != 0 {
		return false, errno
	}
	return true, nil
}

// DefaultASLRController returns the platform's ASLR control.
func DefaultASLRController() ASLRController { return personalityASLR{} }

// BreakHint suggests an address 16 MiB below the program break, which tends
// to stay free across runs of the same binary.
type BreakHint struct{}

func (BreakHint) Hint(mediaSize, granularity uint64) uintptr {
	brk, _, errno := unix.RawSyscall(unix.SYS_BRK, 0, 0, 0)
	if errno != 0 || granularity == 0 {
		return 0
	}
	up := uint64(brk)
	if up < breakGap+mediaSize+granularity {
		return 0
	}
	up -= breakGap
	up -= mediaSize
	up &^= granularity - 1
	return uintptr(up)
}

// BreakHintProvider returns BreakHint where the program break is available.
func BreakHintProvider() HintProvider { return BreakHint{} }

// mapFlags asks for an exclusive fixed placement when a target is known.
// Linux has no MAP_NOCORE or MAP_NOSYNC; core exclusion is done with madvise.
func mapFlags(fixed bool) int {
	flags := unix.MAP_SHARED
	if fixed {
		flags |= unix.MAP_FIXED_NOREPLACE
	}
	return flags
}

func excludeFromCore(b []byte) error {
	return unix.Madvise(b, unix.MADV_DONTDUMP)
}

func placementRefused(err error) bool {
	return errors.Is(err, unix.EEXIST)
}
