package silo

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/google/uuid"
)

// Signature layout: 32 bytes (little-endian), followed by Length bytes of
// signed payload and a SHA-256 digest over header+payload.
// 0..7   : ident tag, NUL padded
// 8..11  : uint32 unique
// 12..15 : padding
// 16..23 : uint64 mapped (absolute address of the signature when written)
// 24..31 : uint64 length of signed payload
const (
	SignatureSize = 32
	SignSpace     = SignatureSize + sha256.Size

	// IdentSize is the encoded size of Ident. It is part of the on-disk
	// contract and must not depend on the platform.
	IdentSize = 128

	// ObjectRecordSize is the size of one persisted object index entry
	// inside a segment.
	ObjectRecordSize = 64

	// Alignment of records inside the silo.
	Alignment = 2 * uint64(unsafe.Sizeof(uintptr(0)))

	// SiloTag identifies the signature at offset 0.
	SiloTag = "SILO"
	// IdentString identifies the format of the Ident record.
	IdentString = "Persistent Cache Storage Silo"

	identByteOrder    = 0x12345678
	identMajorVersion = 2
)

// Signature heads every signed structure in the silo.
type Signature struct {
	Ident  [8]byte
	Unique uint32
	Mapped uint64
	Length uint64
}

func newSignature(tag string, unique uint32, mapped uint64) Signature {
	s := Signature{Unique: unique, Mapped: mapped}
	copy(s.Ident[:], tag)
	return s
}

// Tag returns the ident tag without NUL padding.
func (s Signature) Tag() string {
	return string(bytes.TrimRight(s.Ident[:], "\x00"))
}

func (s Signature) put(b []byte) {
	copy(b[0:8], s.Ident[:])
	binary.LittleEndian.PutUint32(b[8:12], s.Unique)
	binary.LittleEndian.PutUint32(b[12:16], 0)
	binary.LittleEndian.PutUint64(b[16:24], s.Mapped)
	binary.LittleEndian.PutUint64(b[24:32], s.Length)
}

// MarshalBinary encodes the signature header.
func (s Signature) MarshalBinary() ([]byte, error) {
	b := make([]byte, SignatureSize)
	s.put(b)
	return b, nil
}

// UnmarshalBinary decodes the first SignatureSize bytes of b.
func (s *Signature) UnmarshalBinary(b []byte) error {
	if len(b) < SignatureSize {
		return fmt.Errorf("signature too small: %d bytes", len(b))
	}
	copy(s.Ident[:], b[0:8])
	s.Unique = binary.LittleEndian.Uint32(b[8:12])
	s.Mapped = binary.LittleEndian.Uint64(b[16:24])
	s.Length = binary.LittleEndian.Uint64(b[24:32])
	return nil
}

// Ident layout: 128 bytes (little-endian), signed by the signature at
// offset 0.
// 0..31    : identification string, NUL padded
// 32..35   : uint32 byte order marker
// 36..39   : uint32 size of this record
// 40..43   : uint32 major version
// 44..47   : uint32 unique
// 48..55   : uint64 media size
// 56..59   : uint32 granularity
// 60..63   : uint32 alignment
// 64..111  : 6 x uint64 region offsets
// 112..127 : silo UUID
type Ident struct {
	Name         string
	ByteOrder    uint32
	Size         uint32
	MajorVersion uint32
	Unique       uint32
	MediaSize    uint64
	Granularity  uint32
	Align        uint32
	Stuff        [numStuff]uint64
	SiloID       uuid.UUID
}

// MarshalBinary encodes the ident record.
func (id Ident) MarshalBinary() ([]byte, error) {
	if len(id.Name) >= 32 {
		return nil, fmt.Errorf("ident name too long: %q", id.Name)
	}
	b := make([]byte, IdentSize)
	copy(b[0:32], id.Name)
	binary.LittleEndian.PutUint32(b[32:36], id.ByteOrder)
	binary.LittleEndian.PutUint32(b[36:40], id.Size)
	binary.LittleEndian.PutUint32(b[40:44], id.MajorVersion)
	binary.LittleEndian.PutUint32(b[44:48], id.Unique)
	binary.LittleEndian.PutUint64(b[48:56], id.MediaSize)
	binary.LittleEndian.PutUint32(b[56:60], id.Granularity)
	binary.LittleEndian.PutUint32(b[60:64], id.Align)
	for i, v := range id.Stuff {
		binary.LittleEndian.PutUint64(b[64+i*8:72+i*8], v)
	}
	copy(b[112:128], id.SiloID[:])
	return b, nil
}

// UnmarshalBinary decodes the first IdentSize bytes of b.
func (id *Ident) UnmarshalBinary(b []byte) error {
	if len(b) < IdentSize {
		return fmt.Errorf("ident too small: %d bytes", len(b))
	}
	id.Name = string(bytes.TrimRight(b[0:32], "\x00"))
	id.ByteOrder = binary.LittleEndian.Uint32(b[32:36])
	id.Size = binary.LittleEndian.Uint32(b[36:40])
	id.MajorVersion = binary.LittleEndian.Uint32(b[40:44])
	id.Unique = binary.LittleEndian.Uint32(b[44:48])
	id.MediaSize = binary.LittleEndian.Uint64(b[48:56])
	id.Granularity = binary.LittleEndian.Uint32(b[56:60])
	id.Align = binary.LittleEndian.Uint32(b[60:64])
	for i := range id.Stuff {
		id.Stuff[i] = binary.LittleEndian.Uint64(b[64+i*8 : 72+i*8])
	}
	copy(id.SiloID[:], b[112:128])
	return nil
}

// checkLayout asserts the portability contract of the on-disk records.
func checkLayout() {
	sig, _ := Signature{}.MarshalBinary()
	if len(sig) != SignatureSize {
		panic(fmt.Sprintf("silo: signature encodes to %d bytes, want %d", len(sig), SignatureSize))
	}
	idn, _ := Ident{}.MarshalBinary()
	if len(idn) != IdentSize {
		panic(fmt.Sprintf("silo: ident encodes to %d bytes, want %d", len(idn), IdentSize))
	}
	if Alignment != 2*uint64(unsafe.Sizeof(unsafe.Pointer(nil))) {
		panic("silo: alignment is not twice the pointer width")
	}
	if ObjectRecordSize%Alignment != 0 {
		panic(fmt.Sprintf("silo: object record size %d not aligned to %d", ObjectRecordSize, Alignment))
	}
}

// signer manipulates one signed structure inside a mapped region.
type signer struct {
	data   []byte
	base   uintptr
	off    uint64
	tag    string
	unique uint32
}

func (s signer) header() (Signature, bool) {
	var sig Signature
	if s.off+SignSpace > uint64(len(s.data)) {
		return sig, false
	}
	if err := sig.UnmarshalBinary(s.data[s.off:]); err != nil {
		return sig, false
	}
	return sig, true
}

// reset writes an empty signature.
func (s signer) reset() {
	sig := newSignature(s.tag, s.unique, uint64(s.base)+s.off)
	sig.put(s.data[s.off:])
	s.seal(0)
}

// append adds payload to the signed data and refreshes the digest.
func (s signer) append(payload []byte) error {
	sig, ok := s.header()
	if !ok {
		return fmt.Errorf("signature %q at %d outside region", s.tag, s.off)
	}
	start := s.off + SignatureSize + sig.Length
	if start+uint64(len(payload))+sha256.Size > uint64(len(s.data)) {
		return fmt.Errorf("signature %q at %d: payload of %d bytes does not fit", s.tag, s.off, len(payload))
	}
	copy(s.data[start:], payload)
	sig.Length += uint64(len(payload))
	sig.put(s.data[s.off:])
	s.seal(sig.Length)
	return nil
}

func (s signer) seal(length uint64) {
	end := s.off + SignatureSize + length
	sum := sha256.Sum256(s.data[s.off:end])
	copy(s.data[end:end+sha256.Size], sum[:])
}

// check verifies the signature and returns ReasonNone when it is intact.
func (s signer) check() FailureReason {
	sig, ok := s.header()
	if !ok {
		return ReasonSignOutside
	}
	switch {
	case sig.Tag() != s.tag:
		return ReasonSignIdent
	case sig.Unique != s.unique:
		return ReasonSignUnique
	case sig.Mapped != uint64(s.base)+s.off:
		return ReasonSignMapped
	}
	end := s.off + SignatureSize + sig.Length
	if sig.Length > uint64(len(s.data)) || end+sha256.Size > uint64(len(s.data)) {
		return ReasonSignOutside
	}
	sum := sha256.Sum256(s.data[s.off:end])
	if !bytes.Equal(sum[:], s.data[end:end+sha256.Size]) {
		return ReasonSignChecksum
	}
	return ReasonNone
}

// payload returns the signed bytes following the header.
func (s signer) payload() []byte {
	sig, _ := s.header()
	start := s.off + SignatureSize
	return s.data[start : start+sig.Length]
}
