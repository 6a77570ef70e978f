package silo

import (
	"fmt"
	"math"
)

// MinSegments is the lowest segment count a silo is cut into. Forcibly
// reclaiming one segment never loses more than 1/MinSegments of the content.
const MinSegments = 10

// freeReserveSegments is the free reserve expressed in target segments.
const freeReserveSegments = 10

// Sizing holds the segment parameters derived from the silo dimensions.
type Sizing struct {
	MinNseg uint32
	MaxNseg uint32
	AimNseg uint32

	MinSegl uint64
	MaxSegl uint64
	AimSegl uint64

	FreeReserve uint64
}

// DeriveSizing computes the cleaner metrics from the usable data capacity,
// the capacity of one segment table and the smallest record a segment must
// hold.
func DeriveSizing(usable, table, minRecord uint64) (Sizing, error) {
	var s Sizing
	if minRecord == 0 {
		return s, &ConfigurationError{Op: "derive sizing", Err: fmt.Errorf("%w: minimal record size is zero", ErrSiloTooSmall)}
	}

	s.MinNseg = MinSegments
	s.MaxSegl = usable / uint64(s.MinNseg)

	// The segment table bounds the number of segments, and from that follows
	// the minimum segment length.
	maxNseg := table / uint64(s.MinNseg)
	if maxNseg > math.MaxUint32 {
		maxNseg = math.MaxUint32
	}
	if maxNseg < uint64(s.MinNseg) {
		return s, &ConfigurationError{Op: "derive sizing", Err: fmt.Errorf("%w: segment table of %d bytes holds fewer than %d segments", ErrSiloTooSmall, table, s.MinNseg)}
	}
	s.MinSegl = usable / maxNseg
	for s.MinSegl < minRecord {
		maxNseg /= 2
		if maxNseg < uint64(s.MinNseg) {
			return s, &ConfigurationError{Op: "derive sizing", Err: fmt.Errorf("%w: %d bytes cannot hold %d segments of %d bytes", ErrSiloTooSmall, usable, s.MinNseg, minRecord)}
		}
		s.MinSegl = usable / maxNseg
	}
	s.MaxNseg = uint32(maxNseg)

	// Start at the geometric mean of the two extremes; nothing is known yet
	// about object count, size distribution or TTLs.
	aim := math.Round(math.Exp((math.Log(float64(s.MinNseg)) + math.Log(float64(s.MaxNseg))) / 2))
	s.AimNseg = uint32(aim)
	if s.AimNseg < s.MinNseg {
		s.AimNseg = s.MinNseg
	}
	if s.AimNseg > s.MaxNseg {
		s.AimNseg = s.MaxNseg
	}
	s.AimSegl = usable / uint64(s.AimNseg)

	s.FreeReserve = s.AimSegl * freeReserveSegments
	return s, nil
}
