// Package silo brings up a persistent storage silo: a fixed-size backing
// file memory-mapped at an address that stays stable across restarts, so
// that a storage engine can keep cached objects and absolute pointers to
// them inside it.
//
// Open resolves and sizes the backing file, maps it (preferring the address
// recorded by the previous run), validates the on-disk format, reinitializes
// it when it cannot be reloaded, and derives the segment parameters the
// engine uses to carve the silo into reclaimable segments.
//
// The library is organised into several files:
//
//	errors.go     – typed errors & warnings
//	options.go    – Options & defaults, console logger
//	config.go     – JSON config file
//	opener.go     – backing file open/size resolution
//	mapper.go     – address-stable mmap, ASLR and placement hooks
//	platform_*.go – per-OS mmap flags, ASLR control, break hint
//	signature.go  – fixed-layout signature & ident records
//	format.go     – Format boundary, Region, failure reasons
//	layout.go     – StandardFormat, the default on-disk layout
//	sizing.go     – segment count/length derivation
//	segment.go    – segment descriptors
//	silo.go       – Open & the Silo handle
//	flush_close.go – sync & close helpers
//	metrics.go    – Prometheus metrics
//
// Open is meant to run once per silo during startup, before any goroutine
// touches the mapping.
package silo
