package silo

import (
	"github.com/phuslu/log"
)

// DefaultMinRecordSize is the smallest stored object header; every segment
// must be able to hold at least one.
const DefaultMinRecordSize = 64

// Options configures Open.
//
//   - Logger:        destination for bring-up diagnostics
//   - Format:        validates, rebuilds and measures the silo (default StandardFormat)
//   - ASLR:          best-effort address randomization control (default per platform)
//   - Hint:          placement hint used when no address was recorded (default NoHint)
//   - MinRecordSize: minimal record a segment must hold (0 = DefaultMinRecordSize)
//   - Metrics:       optional Prometheus metrics, nil disables them
//
// Zero values mean "use the default"; see DefaultOptions.
type Options struct {
	Logger        log.Logger
	Format        Format
	ASLR          ASLRController
	Hint          HintProvider
	MinRecordSize uint64
	Metrics       *Metrics
}

// DefaultOptions returns the options Open uses for unset fields.
func DefaultOptions() Options {
	return Options{
		Logger:        NewConsoleLogger(log.InfoLevel),
		Format:        StandardFormat{},
		ASLR:          DefaultASLRController(),
		Hint:          NoHint{},
		MinRecordSize: DefaultMinRecordSize,
	}
}

func (o *Options) fill() {
	def := DefaultOptions()
	if o.Logger.Writer == nil {
		o.Logger = def.Logger
	}
	if o.Format == nil {
		o.Format = def.Format
	}
	if o.ASLR == nil {
		o.ASLR = def.ASLR
	}
	if o.Hint == nil {
		o.Hint = def.Hint
	}
	if o.MinRecordSize == 0 {
		o.MinRecordSize = def.MinRecordSize
	}
}

// NewConsoleLogger returns a plain console logger at the given level.
func NewConsoleLogger(level log.Level) log.Logger {
	return log.Logger{
		Level:  level,
		Caller: 0,
		Writer: &log.ConsoleWriter{
			ColorOutput:    false,
			EndWithMessage: true,
		},
	}
}
