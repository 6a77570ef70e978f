package silo

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/phuslu/log"
)

// Config is the on-disk form of a silo's bring-up settings.
type Config struct {
	Path          string `json:"path"`
	Size          string `json:"size"`
	MinRecordSize uint64 `json:"min_record_size,omitempty"`
	Placement     string `json:"placement,omitempty"` // "none" or "break"
	KeepASLR      bool   `json:"keep_aslr,omitempty"`
	LogLevel      string `json:"log_level,omitempty"`
}

// LoadConfig reads a JSON config file.
func LoadConfig(path string) (Config, error) {
	var c Config
	f, err := os.Open(path)
	if err != nil {
		return c, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// WriteConfig stores c as indented JSON at path.
func WriteConfig(path string, c Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return f.Sync()
}

// Options converts the config into Open options.
func (c Config) Options() (Options, error) {
	opts := DefaultOptions()
	if c.MinRecordSize != 0 {
		opts.MinRecordSize = c.MinRecordSize
	}
	switch c.Placement {
	case "", "none":
	case "break":
		opts.Hint = BreakHintProvider()
	default:
		return opts, &ConfigurationError{Op: "config", Err: fmt.Errorf("unknown placement %q", c.Placement)}
	}
	if c.KeepASLR {
		opts.ASLR = NoASLRControl{}
	}
	if c.LogLevel != "" {
		opts.Logger = NewConsoleLogger(log.ParseLevel(c.LogLevel))
	}
	return opts, nil
}
