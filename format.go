package silo

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// RegionKind names one of the regions the format carves out of the silo.
type RegionKind int

const (
	RegionBan1 RegionKind = iota
	RegionBan2
	RegionSeg1
	RegionSeg2
	RegionSpace
	RegionEnd

	numStuff = int(RegionEnd) + 1
)

func (k RegionKind) String() string {
	switch k {
	case RegionBan1:
		return "ban1"
	case RegionBan2:
		return "ban2"
	case RegionSeg1:
		return "seg1"
	case RegionSeg2:
		return "seg2"
	case RegionSpace:
		return "space"
	case RegionEnd:
		return "end"
	}
	return fmt.Sprintf("region(%d)", int(k))
}

// FailureReason is the code returned by Format.Validate. ReasonNone means
// the silo is valid.
type FailureReason int

const (
	ReasonNone FailureReason = 0

	ReasonSignIdent    FailureReason = 1
	ReasonSignUnique   FailureReason = 2
	ReasonSignMapped   FailureReason = 3
	ReasonSignChecksum FailureReason = 4
	ReasonSignOutside  FailureReason = 5

	ReasonIdentString  FailureReason = 12
	ReasonByteOrder    FailureReason = 13
	ReasonIdentSize    FailureReason = 14
	ReasonMajorVersion FailureReason = 15
	ReasonMediaSize    FailureReason = 17
	ReasonGranularity  FailureReason = 18
	ReasonAlignSmall   FailureReason = 19
	ReasonAlignPow2    FailureReason = 20
	ReasonRegions      FailureReason = 21

	// ReasonBanTables and ReasonSegTables are bases; the tens and units
	// digits carry the signature reasons of the first and second copy.
	ReasonBanTables FailureReason = 100
	ReasonSegTables FailureReason = 200
)

func (r FailureReason) String() string {
	switch {
	case r == ReasonNone:
		return "valid"
	case r == ReasonSignIdent:
		return "signature ident mismatch"
	case r == ReasonSignUnique:
		return "signature unique mismatch"
	case r == ReasonSignMapped:
		return "signature mapped at a different address"
	case r == ReasonSignChecksum:
		return "signature checksum mismatch"
	case r == ReasonSignOutside:
		return "signature outside region"
	case r == ReasonIdentString:
		return "ident string mismatch"
	case r == ReasonByteOrder:
		return "byte order mismatch"
	case r == ReasonIdentSize:
		return "ident size mismatch"
	case r == ReasonMajorVersion:
		return "major version mismatch"
	case r == ReasonMediaSize:
		return "media size mismatch"
	case r == ReasonGranularity:
		return "granularity mismatch"
	case r == ReasonAlignSmall:
		return "alignment below pointer size"
	case r == ReasonAlignPow2:
		return "alignment not a power of two"
	case r == ReasonRegions:
		return "region offsets inconsistent"
	case r >= ReasonSegTables && r < ReasonSegTables+100:
		return "no valid segment table"
	case r >= ReasonBanTables && r < ReasonBanTables+100:
		return "no valid ban table"
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Region is the mapped silo as seen by a Format.
type Region struct {
	Data        []byte
	Base        uintptr
	MediaSize   uint64
	Granularity uint64
	Align       uint64
}

// Sync flushes the whole region to the backing file.
func (r *Region) Sync() error {
	return unix.Msync(r.Data, unix.MS_SYNC)
}

// Format checks, rebuilds and measures the silo's internal structure.
// Bring-up only ever calls it from one goroutine.
type Format interface {
	// Validate returns ReasonNone for a loadable silo.
	Validate(r *Region) FailureReason
	// Reinitialize overwrites r with a fresh, empty, valid silo.
	Reinitialize(r *Region) error
	// RegionLength reports the usable bytes of one region of a valid silo.
	RegionLength(r *Region, kind RegionKind) uint64
}
