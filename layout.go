package silo

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/google/uuid"
)

// tableSize is the span reserved for each ban and segment table.
const tableSize = 1 << 20

var tableTags = [...]string{
	RegionBan1: "BAN 1",
	RegionBan2: "BAN 2",
	RegionSeg1: "SEG 1",
	RegionSeg2: "SEG 2",
}

// StandardFormat is the default silo layout:
//
//	0                 SILO signature + Ident
//	granularity       BAN 1 table
//	+1 MiB            BAN 2 table
//	+1 MiB            SEG 1 table
//	+1 MiB            SEG 2 table
//	+1 MiB .. media   object space
//
// Every table starts with its own signature; both copies of a table carry the
// same unique as the Ident so a table left over from an older silo is
// rejected.
type StandardFormat struct{}

// MinMediaSize is the smallest silo StandardFormat can lay out.
func (StandardFormat) MinMediaSize(granularity uint64) uint64 {
	return granularity + 4*tableSize + SignSpace + granularity
}

func identSigner(r *Region) signer {
	return signer{data: r.Data, base: r.Base, off: 0, tag: SiloTag}
}

func tableSigner(r *Region, idn *Ident, kind RegionKind) signer {
	return signer{
		data:   r.Data,
		base:   r.Base,
		off:    idn.Stuff[kind],
		tag:    tableTags[kind],
		unique: idn.Unique,
	}
}

func readIdent(r *Region) (Ident, FailureReason) {
	var idn Ident
	ids := identSigner(r)
	if rc := ids.check(); rc != ReasonNone {
		return idn, rc
	}
	p := ids.payload()
	if err := idn.UnmarshalBinary(p); err != nil {
		return idn, ReasonIdentSize
	}
	return idn, ReasonNone
}

// Reinitialize writes an empty silo with a new identity.
func (f StandardFormat) Reinitialize(r *Region) error {
	if uint64(len(r.Data)) != r.MediaSize {
		return fmt.Errorf("region is %d bytes, media size %d", len(r.Data), r.MediaSize)
	}
	if need := f.MinMediaSize(r.Granularity); r.MediaSize < need {
		return fmt.Errorf("%w: %d bytes, need at least %d", ErrSiloTooSmall, r.MediaSize, need)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Errorf("generate silo id: %w", err)
	}
	idn := Ident{
		Name:         IdentString,
		ByteOrder:    identByteOrder,
		Size:         IdentSize,
		MajorVersion: identMajorVersion,
		Unique:       binary.LittleEndian.Uint32(id[0:4]),
		MediaSize:    r.MediaSize,
		Granularity:  uint32(r.Granularity),
		Align:        uint32(r.Align),
		SiloID:       id,
	}
	idn.Stuff[RegionBan1] = r.Granularity
	for k := RegionBan2; k <= RegionSpace; k++ {
		idn.Stuff[k] = idn.Stuff[k-1] + tableSize
	}
	idn.Stuff[RegionEnd] = r.MediaSize

	clear(r.Data[:r.Granularity])
	for k := RegionBan1; k <= RegionSeg2; k++ {
		tableSigner(r, &idn, k).reset()
	}

	payload, err := idn.MarshalBinary()
	if err != nil {
		return err
	}
	ids := identSigner(r)
	ids.reset()
	if err := ids.append(payload); err != nil {
		return err
	}
	return r.Sync()
}

// Validate checks the identity, the region layout and that at least one
// copy of each table is intact.
func (f StandardFormat) Validate(r *Region) FailureReason {
	idn, rc := readIdent(r)
	if rc != ReasonNone {
		return rc
	}
	switch {
	case idn.Name != IdentString:
		return ReasonIdentString
	case idn.ByteOrder != identByteOrder:
		return ReasonByteOrder
	case idn.Size != IdentSize:
		return ReasonIdentSize
	case idn.MajorVersion != identMajorVersion:
		return ReasonMajorVersion
	case idn.MediaSize != r.MediaSize:
		return ReasonMediaSize
	case uint64(idn.Granularity) != r.Granularity:
		return ReasonGranularity
	case uint64(idn.Align) < uint64(unsafe.Sizeof(uintptr(0))):
		return ReasonAlignSmall
	case idn.Align&(idn.Align-1) != 0:
		return ReasonAlignPow2
	}
	if !regionsSane(&idn) {
		return ReasonRegions
	}

	i := tableSigner(r, &idn, RegionBan1).check()
	j := tableSigner(r, &idn, RegionBan2).check()
	if i != ReasonNone && j != ReasonNone {
		return ReasonBanTables + 10*i + j
	}
	i = tableSigner(r, &idn, RegionSeg1).check()
	j = tableSigner(r, &idn, RegionSeg2).check()
	if i != ReasonNone && j != ReasonNone {
		return ReasonSegTables + 10*i + j
	}
	return ReasonNone
}

func regionsSane(idn *Ident) bool {
	if idn.Stuff[RegionBan1] < SignSpace+IdentSize {
		return false
	}
	for k := RegionBan2; k <= RegionEnd; k++ {
		if idn.Stuff[k] < idn.Stuff[k-1]+SignSpace {
			return false
		}
	}
	if idn.Stuff[RegionEnd] != idn.MediaSize {
		return false
	}
	length := func(k RegionKind) uint64 { return idn.Stuff[k+1] - idn.Stuff[k] }
	return length(RegionBan1) == length(RegionBan2) &&
		length(RegionSeg1) == length(RegionSeg2) &&
		length(RegionSeg1) > 65536
}

// RegionLength returns the usable length of a region, excluding its
// signature. Unknown kinds or an unreadable ident report 0.
func (f StandardFormat) RegionLength(r *Region, kind RegionKind) uint64 {
	if kind < RegionBan1 || kind >= RegionEnd {
		return 0
	}
	idn, rc := readIdent(r)
	if rc != ReasonNone {
		return 0
	}
	l := idn.Stuff[kind+1] - idn.Stuff[kind]
	if idn.Stuff[kind+1] < idn.Stuff[kind] || l < SignSpace {
		return 0
	}
	return l - SignSpace
}
