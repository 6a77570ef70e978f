package silo

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Sync forces the mapped silo to disk.
func (s *Silo) Sync() error {
	if s.m.data == nil {
		return nil
	}
	if err := unix.Msync(s.m.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync silo %s: %w", s.Path, err)
	}
	return nil
}

// Close unmaps the silo and closes the backing file. Nothing inside the
// mapping may be used afterwards.
func (s *Silo) Close() error {
	var firstErr error
	if err := s.m.unmap(); err != nil {
		firstErr = fmt.Errorf("unmap silo %s: %w", s.Path, err)
	}
	s.m = mapping{}
	if s.file != nil {
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close silo %s: %w", s.Path, err)
		}
		s.file = nil
	}
	return firstErr
}
