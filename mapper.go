package silo

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/phuslu/log"
	"golang.org/x/sys/unix"
)

// ASLRController disables address space layout randomization for the
// process, best effort. changed reports whether the setting was flipped.
type ASLRController interface {
	DisableASLR() (changed bool, err error)
}

// NoASLRControl is the ASLRController for platforms without one.
type NoASLRControl struct{}

func (NoASLRControl) DisableASLR() (bool, error) { return false, nil }

// HintProvider suggests where to map a silo that has no recorded address.
// The hint is advisory; 0 means no preference.
type HintProvider interface {
	Hint(mediaSize, granularity uint64) uintptr
}

// NoHint leaves placement to the kernel.
type NoHint struct{}

func (NoHint) Hint(uint64, uint64) uintptr { return 0 }

type mapping struct {
	data []byte
	base uintptr
}

// preferredAddress returns the address recorded by a previous run, or 0 when
// there is none or it is not aligned to granularity.
func preferredAddress(f *os.File, granularity uint64) uintptr {
	buf := make([]byte, SignatureSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return 0
	}
	var sig Signature
	if err := sig.UnmarshalBinary(buf); err != nil || sig.Tag() != SiloTag {
		return 0
	}
	if granularity == 0 || sig.Mapped%granularity != 0 {
		return 0
	}
	return uintptr(sig.Mapped)
}

// mapBacking maps the whole backing file shared and read-write, trying to
// land at the address recorded in the silo's signature. Non-fatal problems
// are returned as warnings.
func mapBacking(logger log.Logger, opts *Options, b *backing) (mapping, []error, error) {
	var warnings []error

	target := preferredAddress(b.file, b.granularity)

	if changed, err := opts.ASLR.DisableASLR(); err != nil {
		logger.Warn().Err(err).Msg("could not disable ASLR")
		warnings = append(warnings, fmt.Errorf("disable ASLR: %w", err))
	} else if changed {
		logger.Info().Msg("disabled ASLR for persistent silo")
	}

	addr := target
	if addr == 0 {
		addr = opts.Hint.Hint(b.size, b.granularity)
	}

	fd := int(b.file.Fd())
	prot := unix.PROT_READ | unix.PROT_WRITE
	ptr, err := unix.MmapPtr(fd, 0, unsafe.Pointer(addr), uintptr(b.size), prot, mapFlags(target != 0))
	if err != nil && target != 0 {
		// An occupied or unusable recorded address only costs the content.
		msg := "recorded address is unusable"
		if placementRefused(err) {
			msg = "recorded address is occupied"
		}
		logger.Warn().Err(err).Str("path", b.path).Str("target", fmt.Sprintf("%#x", target)).Msg(msg)
		addr = 0
		ptr, err = unix.MmapPtr(fd, 0, nil, uintptr(b.size), prot, mapFlags(false))
	}
	if err != nil {
		return mapping{}, warnings, &ResourceError{Op: "mmap", Path: b.path, Err: fmt.Errorf("@%#x: %w", addr, err)}
	}

	m := mapping{
		data: unsafe.Slice((*byte)(ptr), b.size),
		base: uintptr(ptr),
	}
	if err := excludeFromCore(m.data); err != nil {
		logger.Debug().Err(err).Msg("could not exclude silo from core dumps")
	}

	if target != 0 && m.base != target {
		w := &AddressDriftWarning{Path: b.path, Want: target, Got: m.base}
		logger.Warn().Err(w).Msg("persistent silo lost to ASLR")
		warnings = append(warnings, w)
	}
	logger.Debug().Str("path", b.path).Str("base", fmt.Sprintf("%#x", m.base)).Msg("silo mapped")
	return m, warnings, nil
}

func (m mapping) unmap() error {
	if m.data == nil {
		return nil
	}
	return unix.MunmapPtr(unsafe.Pointer(m.base), uintptr(len(m.data)))
}
