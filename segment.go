package silo

// SegmentPointer describes one segment of the object space.
//
// Segments are carved out of RegionSpace by the storage engine after
// bring-up; Open always hands out an empty list. Offset and Length are
// relative to the start of the silo so they survive a change of base
// address, unlike the signatures.
type SegmentPointer struct {
	Offset   uint64 // first byte of the segment
	Length   uint64 // bytes, between Sizing.MinSegl and Sizing.MaxSegl
	ObjList  uint64 // offset of the segment's object index
	ObjCount uint32 // entries in the object index
}

// End returns the offset just past the segment.
func (p SegmentPointer) End() uint64 { return p.Offset + p.Length }
