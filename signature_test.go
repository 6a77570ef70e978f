package silo

import (
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutAssertions(t *testing.T) {
	assert.NotPanics(t, checkLayout)
	assert.Equal(t, uint64(0), Alignment%8)
	assert.Equal(t, 64, SignSpace)
}

func TestSignatureEncoding(t *testing.T) {
	sig := newSignature(SiloTag, 0xdeadbeef, 0x7f1234560000)
	sig.Length = IdentSize

	b, err := sig.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, SignatureSize)

	assert.Equal(t, []byte("SILO\x00\x00\x00\x00"), b[0:8])
	assert.Equal(t, uint32(0xdeadbeef), binary.LittleEndian.Uint32(b[8:12]))
	assert.Equal(t, uint64(0x7f1234560000), binary.LittleEndian.Uint64(b[16:24]))
	assert.Equal(t, uint64(IdentSize), binary.LittleEndian.Uint64(b[24:32]))

	var got Signature
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, sig, got)
	assert.Equal(t, SiloTag, got.Tag())

	assert.Error(t, got.UnmarshalBinary(b[:SignatureSize-1]))
}

func TestIdentEncoding(t *testing.T) {
	idn := Ident{
		Name:         IdentString,
		ByteOrder:    identByteOrder,
		Size:         IdentSize,
		MajorVersion: identMajorVersion,
		Unique:       42,
		MediaSize:    8 * mib,
		Granularity:  4096,
		Align:        uint32(Alignment),
		Stuff:        [numStuff]uint64{4096, 4096 + mib, 4096 + 2*mib, 4096 + 3*mib, 4096 + 4*mib, 8 * mib},
		SiloID:       uuid.New(),
	}
	b, err := idn.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, IdentSize)
	assert.Equal(t, uint32(identByteOrder), binary.LittleEndian.Uint32(b[32:36]))
	assert.Equal(t, idn.SiloID[:], b[112:128])

	var got Ident
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, idn, got)

	idn.Name = "an identification string far too long"
	_, err = idn.MarshalBinary()
	assert.Error(t, err)
}

func TestSignerCheck(t *testing.T) {
	const base = uintptr(0x7f0000000000)
	data := make([]byte, 4096)
	s := signer{data: data, base: base, off: 1024, tag: "SEG 1", unique: 7}

	s.reset()
	require.NoError(t, s.append([]byte("payload")))
	require.Equal(t, ReasonNone, s.check())
	assert.Equal(t, []byte("payload"), s.payload())

	t.Run("tag", func(t *testing.T) {
		other := s
		other.tag = "SEG 2"
		assert.Equal(t, ReasonSignIdent, other.check())
	})

	t.Run("unique", func(t *testing.T) {
		other := s
		other.unique = 8
		assert.Equal(t, ReasonSignUnique, other.check())
	})

	t.Run("mapped elsewhere", func(t *testing.T) {
		other := s
		other.base = base + 4096
		assert.Equal(t, ReasonSignMapped, other.check())
	})

	t.Run("checksum", func(t *testing.T) {
		buf := append([]byte(nil), data...)
		other := s
		other.data = buf
		buf[1024+SignatureSize] ^= 0xff
		assert.Equal(t, ReasonSignChecksum, other.check())
	})

	t.Run("length outside region", func(t *testing.T) {
		buf := append([]byte(nil), data...)
		other := s
		other.data = buf
		binary.LittleEndian.PutUint64(buf[1024+24:], 1<<40)
		assert.Equal(t, ReasonSignOutside, other.check())
	})

	t.Run("payload does not fit", func(t *testing.T) {
		assert.Error(t, s.append(make([]byte, 4096)))
	})
}
