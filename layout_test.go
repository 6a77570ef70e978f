package silo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const testBase = uintptr(0x7e0000000000)

// newTestRegion returns a page aligned anonymous region, so Region.Sync
// works without a backing file.
func newTestRegion(t *testing.T, size uint64) *Region {
	t.Helper()
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	require.NoError(t, err)
	t.Cleanup(func() { unix.Munmap(data) })
	return &Region{
		Data:        data,
		Base:        testBase,
		MediaSize:   size,
		Granularity: uint64(unix.Getpagesize()),
		Align:       Alignment,
	}
}

func TestStandardFormatFresh(t *testing.T) {
	var f StandardFormat
	r := newTestRegion(t, 8*mib)

	assert.Equal(t, ReasonSignIdent, f.Validate(r), "zeroed region")

	require.NoError(t, f.Reinitialize(r))
	require.Equal(t, ReasonNone, f.Validate(r))
	assert.Equal(t, ReasonNone, f.Validate(r), "validation has no side effects")

	assert.Equal(t, uint64(mib-SignSpace), f.RegionLength(r, RegionSeg1))
	assert.Equal(t, uint64(mib-SignSpace), f.RegionLength(r, RegionBan2))
	assert.Equal(t, 8*mib-r.Granularity-4*mib-SignSpace, f.RegionLength(r, RegionSpace))
	assert.Zero(t, f.RegionLength(r, RegionEnd))

	idn, rc := readIdent(r)
	require.Equal(t, ReasonNone, rc)
	assert.Equal(t, IdentString, idn.Name)
	assert.Equal(t, uint64(8*mib), idn.MediaSize)
	assert.Equal(t, r.Granularity, idn.Stuff[RegionBan1])
	assert.Equal(t, uint32(idn.SiloID[0])|uint32(idn.SiloID[1])<<8|uint32(idn.SiloID[2])<<16|uint32(idn.SiloID[3])<<24, idn.Unique)
}

func TestStandardFormatReinitializeIsRepeatable(t *testing.T) {
	var f StandardFormat
	r := newTestRegion(t, 8*mib)

	require.NoError(t, f.Reinitialize(r))
	first, _ := readIdent(r)
	require.NoError(t, f.Reinitialize(r))
	second, _ := readIdent(r)

	assert.Equal(t, ReasonNone, f.Validate(r))
	assert.NotEqual(t, first.SiloID, second.SiloID)
}

func TestStandardFormatRejects(t *testing.T) {
	var f StandardFormat

	t.Run("moved base address", func(t *testing.T) {
		r := newTestRegion(t, 8*mib)
		require.NoError(t, f.Reinitialize(r))
		moved := *r
		moved.Base += 1 << 30
		assert.Equal(t, ReasonSignMapped, f.Validate(&moved))
	})

	t.Run("ident tampered", func(t *testing.T) {
		r := newTestRegion(t, 8*mib)
		require.NoError(t, f.Reinitialize(r))
		r.Data[SignatureSize+40] ^= 1 // major version
		assert.Equal(t, ReasonSignChecksum, f.Validate(r))
	})

	t.Run("media size", func(t *testing.T) {
		r := newTestRegion(t, 8*mib)
		require.NoError(t, f.Reinitialize(r))
		other := *r
		other.MediaSize = 8*mib - r.Granularity
		assert.Equal(t, ReasonMediaSize, f.Validate(&other))
	})

	t.Run("granularity", func(t *testing.T) {
		r := newTestRegion(t, 8*mib)
		require.NoError(t, f.Reinitialize(r))
		other := *r
		other.Granularity *= 2
		assert.Equal(t, ReasonGranularity, f.Validate(&other))
	})

	t.Run("one ban table lost", func(t *testing.T) {
		r := newTestRegion(t, 8*mib)
		require.NoError(t, f.Reinitialize(r))
		idn, _ := readIdent(r)
		r.Data[idn.Stuff[RegionBan1]+SignatureSize] ^= 0xff
		assert.Equal(t, ReasonNone, f.Validate(r))
	})

	t.Run("both ban tables lost", func(t *testing.T) {
		r := newTestRegion(t, 8*mib)
		require.NoError(t, f.Reinitialize(r))
		idn, _ := readIdent(r)
		r.Data[idn.Stuff[RegionBan1]+SignatureSize] ^= 0xff
		r.Data[idn.Stuff[RegionBan2]] ^= 0xff
		assert.Equal(t, ReasonBanTables+10*ReasonSignChecksum+ReasonSignIdent, f.Validate(r))
	})

	t.Run("both segment tables lost", func(t *testing.T) {
		r := newTestRegion(t, 8*mib)
		require.NoError(t, f.Reinitialize(r))
		idn, _ := readIdent(r)
		r.Data[idn.Stuff[RegionSeg1]+SignatureSize] ^= 0xff
		r.Data[idn.Stuff[RegionSeg2]+SignatureSize] ^= 0xff
		rc := f.Validate(r)
		assert.Equal(t, ReasonSegTables+10*ReasonSignChecksum+ReasonSignChecksum, rc)
		assert.Equal(t, "no valid segment table", rc.String())
	})
}

func TestStandardFormatTooSmall(t *testing.T) {
	var f StandardFormat
	r := newTestRegion(t, 4*mib)
	assert.ErrorIs(t, f.Reinitialize(r), ErrSiloTooSmall)
}
