package silo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/phuslu/log"
	"golang.org/x/sys/unix"
)

// backing is the opened and sized file behind a silo.
type backing struct {
	file        *os.File
	path        string
	size        uint64
	granularity uint64
}

// openBacking opens or creates the file named by pathSpec and forces its
// length to the size resolved from sizeSpec.
func openBacking(logger log.Logger, pathSpec, sizeSpec string) (*backing, error) {
	if pathSpec == "" {
		return nil, &ConfigurationError{Op: "open", Err: errors.New("empty path")}
	}

	created := false
	st, err := os.Stat(pathSpec)
	switch {
	case err == nil && st.IsDir():
		return nil, &ConfigurationError{Op: "open", Path: pathSpec, Err: ErrIsDirectory}
	case err == nil && !st.Mode().IsRegular():
		return nil, &ConfigurationError{Op: "open", Path: pathSpec, Err: ErrNotRegular}
	case errors.Is(err, fs.ErrNotExist):
		created = true
		if err := os.MkdirAll(filepath.Dir(pathSpec), 0o755); err != nil {
			return nil, &ConfigurationError{Op: "create directory", Path: pathSpec, Err: err}
		}
	case err != nil:
		return nil, &ConfigurationError{Op: "stat", Path: pathSpec, Err: err}
	}

	f, err := os.OpenFile(pathSpec, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, &ConfigurationError{Op: "open", Path: pathSpec, Err: err}
	}
	b, err := sizeBacking(f, pathSpec, sizeSpec)
	if err != nil {
		f.Close()
		if created {
			if rerr := os.Remove(pathSpec); rerr != nil {
				logger.Warn().Err(rerr).Str("path", pathSpec).Msg("could not remove new backing file")
			}
		}
		return nil, err
	}
	logger.Info().
		Str("path", b.path).
		Str("size", humanize.IBytes(b.size)).
		Uint64("granularity", b.granularity).
		Msg("backing store opened")
	return b, nil
}

func sizeBacking(f *os.File, pathSpec, sizeSpec string) (*backing, error) {
	path, err := canonicalPath(pathSpec)
	if err != nil {
		return nil, &ConfigurationError{Op: "resolve", Path: pathSpec, Err: err}
	}

	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return nil, &ResourceError{Op: "fstat", Path: path, Err: err}
	}
	granularity := uint64(unix.Getpagesize())
	if bs := uint64(st.Blksize); bs > granularity {
		granularity = bs
	}

	avail := func() (uint64, error) {
		var sfs unix.Statfs_t
		if err := unix.Fstatfs(int(f.Fd()), &sfs); err != nil {
			return 0, err
		}
		return uint64(sfs.Bavail) * uint64(sfs.Bsize), nil
	}
	size, err := parseSize(sizeSpec, uint64(st.Size), granularity, avail)
	if err != nil {
		return nil, &ConfigurationError{Op: "size", Path: path, Err: err}
	}

	if err := f.Truncate(int64(size)); err != nil {
		return nil, &ResourceError{Op: "truncate", Path: path, Err: err}
	}
	return &backing{file: f, path: path, size: size, granularity: granularity}, nil
}

func canonicalPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// parseSize resolves a size specification:
//
//	""      the current file size
//	"N%"    N percent of free space plus the current file size
//	other   a byte quantity such as "512MiB", "2 GB" or "1048576"
//
// The result is rounded down to granularity.
func parseSize(spec string, current, granularity uint64, avail func() (uint64, error)) (uint64, error) {
	spec = strings.TrimSpace(spec)
	var size uint64
	switch {
	case spec == "":
		if current == 0 {
			return 0, ErrNoSize
		}
		size = current
	case strings.HasSuffix(spec, "%"):
		pct, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(spec, "%")), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size %q: %w", spec, err)
		}
		if pct <= 0 || pct > 100 {
			return 0, fmt.Errorf("invalid size %q: percentage must be in (0, 100]", spec)
		}
		free, err := avail()
		if err != nil {
			return 0, fmt.Errorf("free space: %w", err)
		}
		size = uint64(float64(free+current) * pct / 100)
	default:
		n, err := humanize.ParseBytes(spec)
		if err != nil {
			return 0, fmt.Errorf("invalid size %q: %w", spec, err)
		}
		size = n
	}

	size -= size % granularity
	if size < granularity {
		return 0, fmt.Errorf("size %q too small, need at least %s", spec, humanize.IBytes(granularity))
	}
	return size, nil
}
