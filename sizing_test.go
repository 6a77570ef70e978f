package silo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	kib = 1 << 10
	mib = 1 << 20
)

func TestDeriveSizingScenario(t *testing.T) {
	s, err := DeriveSizing(100*mib, 1*mib, 64)
	require.NoError(t, err)

	assert.Equal(t, uint32(10), s.MinNseg)
	assert.Equal(t, uint64(10*mib), s.MaxSegl)
	assert.Equal(t, uint32(104857), s.MaxNseg)
	assert.Equal(t, uint64(1000), s.MinSegl)
	assert.Equal(t, uint32(1024), s.AimNseg)
	assert.Equal(t, uint64(100*kib), s.AimSegl)
	assert.Equal(t, uint64(1000*kib), s.FreeReserve)
}

func TestDeriveSizingHalvesUntilRecordFits(t *testing.T) {
	// 4 MiB over 104851 segments gives 40 byte segments; two halvings are
	// needed before a 128 byte record fits.
	s, err := DeriveSizing(4*mib, mib-SignSpace, 128)
	require.NoError(t, err)
	assert.Equal(t, uint32(104851/4), s.MaxNseg)
	assert.GreaterOrEqual(t, s.MinSegl, uint64(128))
	assert.Less(t, (4*mib)/(uint64(s.MaxNseg)*2), uint64(128), "one halving fewer must not fit")
}

func TestDeriveSizingInvariants(t *testing.T) {
	usables := []uint64{64 * kib, mib, 4*mib - 4160, 100 * mib, 7 * 1 << 30, 1 << 40}
	tables := []uint64{100, 4 * kib, mib - SignSpace, 16 * mib}
	records := []uint64{1, 64, 512, 4 * kib}

	for _, usable := range usables {
		for _, table := range tables {
			for _, rec := range records {
				s, err := DeriveSizing(usable, table, rec)
				if err != nil {
					assert.True(t, errors.Is(err, ErrSiloTooSmall), "usable=%d table=%d rec=%d: %v", usable, table, rec, err)
					continue
				}
				assert.LessOrEqual(t, s.MinNseg, s.AimNseg, "usable=%d table=%d rec=%d", usable, table, rec)
				assert.LessOrEqual(t, s.AimNseg, s.MaxNseg, "usable=%d table=%d rec=%d", usable, table, rec)
				assert.LessOrEqual(t, s.MinSegl, s.AimSegl, "usable=%d table=%d rec=%d", usable, table, rec)
				assert.LessOrEqual(t, s.AimSegl, s.MaxSegl, "usable=%d table=%d rec=%d", usable, table, rec)
				assert.GreaterOrEqual(t, s.MinSegl, rec, "usable=%d table=%d rec=%d", usable, table, rec)
				if s.AimNseg > MinSegments {
					assert.Less(t, s.FreeReserve, usable, "usable=%d table=%d rec=%d", usable, table, rec)
				}
			}
		}
	}
}

func TestDeriveSizingTooSmall(t *testing.T) {
	t.Run("table below min_nseg entries", func(t *testing.T) {
		_, err := DeriveSizing(100*mib, 99, 64)
		var ce *ConfigurationError
		require.ErrorAs(t, err, &ce)
		assert.ErrorIs(t, err, ErrSiloTooSmall)
	})

	t.Run("data too small for one record per segment", func(t *testing.T) {
		_, err := DeriveSizing(639, 100, 64)
		assert.ErrorIs(t, err, ErrSiloTooSmall)
	})

	t.Run("exactly one record per segment", func(t *testing.T) {
		s, err := DeriveSizing(640, 100, 64)
		require.NoError(t, err)
		assert.Equal(t, uint64(64), s.MinSegl)
	})

	t.Run("zero record size", func(t *testing.T) {
		_, err := DeriveSizing(mib, mib, 0)
		assert.ErrorIs(t, err, ErrSiloTooSmall)
	})
}

func TestDeriveSizingDeterministic(t *testing.T) {
	a, err := DeriveSizing(123456789, mib-SignSpace, 64)
	require.NoError(t, err)
	b, err := DeriveSizing(123456789, mib-SignSpace, 64)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
