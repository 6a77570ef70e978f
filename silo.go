package silo

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/phuslu/log"
)

// Silo is one persistent storage silo after bring-up: the backing file
// mapped at a stable address, validated, and measured.
//
// A Silo is built once by Open and then owned by the storage engine. Base
// and MediaSize never change while it is open.
type Silo struct {
	Sizing

	Path        string // canonical path of the backing file
	MediaSize   uint64 // exact length of the backing file
	Base        uintptr
	Align       uint64
	Granularity uint64

	// Segments is empty after Open; the storage engine fills it.
	Segments []SegmentPointer

	Identity Signature // signature at offset 0
	Ident    Ident     // decoded when the format uses the standard ident

	// Reinitialized is set when the silo was not reloaded and was
	// overwritten with an empty one.
	Reinitialized bool
	// Warnings collects non-fatal problems such as *AddressDriftWarning.
	Warnings []error

	file   *os.File
	m      mapping
	logger log.Logger
}

// OpenArgs brings up a silo from a two element argument list: path and size.
func OpenArgs(args []string, opts Options) (*Silo, error) {
	if len(args) != 2 {
		return nil, &ConfigurationError{Op: "open", Err: fmt.Errorf("%w: got %d, want path and size", ErrArity, len(args))}
	}
	return Open(args[0], args[1], opts)
}

// Open brings up the silo backed by path. size is a byte quantity such as
// "512MiB", a percentage of free space such as "50%", or empty to reuse the
// current file length.
//
// Open must run before the storage engine starts using the silo. Every
// error it returns is fatal for the silo; resources are released before it
// returns.
func Open(path, size string, opts Options) (*Silo, error) {
	checkLayout()
	opts.fill()
	logger := opts.Logger

	logger.Debug().
		Int("signature", SignatureSize).
		Int("ident", IdentSize).
		Int("object", ObjectRecordSize).
		Uint64("align", Alignment).
		Msg("record sizes")

	b, err := openBacking(logger, path, size)
	if err != nil {
		return nil, err
	}
	s := &Silo{
		Path:        b.path,
		MediaSize:   b.size,
		Align:       Alignment,
		Granularity: b.granularity,
		Segments:    []SegmentPointer{},
		file:        b.file,
		logger:      logger,
	}
	if err := s.bringUp(&opts, b); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Silo) bringUp(opts *Options, b *backing) error {
	m, warnings, err := mapBacking(s.logger, opts, b)
	s.Warnings = warnings
	if err != nil {
		return err
	}
	s.m = m
	s.Base = m.base
	for _, w := range warnings {
		if _, ok := w.(*AddressDriftWarning); ok {
			opts.Metrics.addressDrift(s.Path)
		}
	}

	r := s.Region()
	if rc := opts.Format.Validate(r); rc != ReasonNone {
		s.logger.Warn().Err(&CorruptFormatError{Path: s.Path, Reason: rc}).Msg("reinitializing silo")
		if err := opts.Format.Reinitialize(r); err != nil {
			return &ConfigurationError{Op: "reinitialize", Path: s.Path, Err: err}
		}
		s.Reinitialized = true
		opts.Metrics.reinitialized(s.Path)
		if rc := opts.Format.Validate(r); rc != ReasonNone {
			return &FatalFormatError{Path: s.Path, Reason: rc}
		}
	}

	sig, ok := identSigner(r).header()
	if !ok {
		return &FatalFormatError{Path: s.Path, Reason: ReasonSignOutside}
	}
	s.Identity = sig
	if idn, rc := readIdent(r); rc == ReasonNone {
		s.Ident = idn
	}

	sizing, err := DeriveSizing(
		opts.Format.RegionLength(r, RegionSpace),
		opts.Format.RegionLength(r, RegionSeg1),
		opts.MinRecordSize,
	)
	if err != nil {
		var ce *ConfigurationError
		if errors.As(err, &ce) {
			ce.Path = s.Path
		}
		return err
	}
	s.Sizing = sizing

	s.logger.Info().
		Uint32("min_nseg", sizing.MinNseg).
		Uint64("max_segl", sizing.MaxSegl).
		Uint32("max_nseg", sizing.MaxNseg).
		Uint64("min_segl", sizing.MinSegl).
		Uint32("aim_nseg", sizing.AimNseg).
		Uint64("aim_segl", sizing.AimSegl).
		Uint64("free_reserve", sizing.FreeReserve).
		Msg("silo metrics")
	s.logger.Info().
		Str("path", s.Path).
		Str("size", humanize.IBytes(s.MediaSize)).
		Str("base", fmt.Sprintf("%#x", s.Base)).
		Bool("reinitialized", s.Reinitialized).
		Msg("silo ready")

	opts.Metrics.observe(s)
	return nil
}

// Region returns the mapped silo in the form handed to a Format.
func (s *Silo) Region() *Region {
	return &Region{
		Data:        s.m.data,
		Base:        s.m.base,
		MediaSize:   s.MediaSize,
		Granularity: s.Granularity,
		Align:       s.Align,
	}
}

// Data returns the mapped silo.
func (s *Silo) Data() []byte { return s.m.data }

// Fd returns the backing file descriptor.
func (s *Silo) Fd() uintptr { return s.file.Fd() }
