package inode

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hupe1980/vecfs/device"
)

// ErrHole is returned when a byte range is not fully backed by extents.
var ErrHole = errors.New("range not backed by extents")

// Extent is a contiguous data run of an object.
type Extent struct {
	Logical  uint64 `json:"logical"`
	Physical uint64 `json:"physical"`
	Length   uint64 `json:"length"`
}

// End returns the logical offset one past the extent.
func (e Extent) End() uint64 { return e.Logical + e.Length }

// Blocks returns the number of device blocks the extent occupies.
func (e Extent) Blocks() uint64 {
	return (e.Length + device.BlockSize - 1) / device.BlockSize
}

// Capacity returns the bytes the extent's blocks can hold.
func (e Extent) Capacity() uint64 { return e.Blocks() * device.BlockSize }

// Segment is one block-local piece of a byte range.
type Segment struct {
	Block   uint64 // device block id
	Offset  int    // offset within the block
	Len     int    // bytes in this block
	DataOff uint64 // offset relative to the start of the range
}

// Segments maps [off, off+n) onto device blocks in logical order.
// Any uncovered byte yields ErrHole.
func (in *Inode) Segments(off, n uint64) ([]Segment, error) {
	end := off + n
	pos := off
	var segs []Segment

	for _, e := range in.Extents {
		if pos >= end {
			break
		}
		if e.End() <= pos {
			continue
		}
		if e.Logical > pos {
			return nil, fmt.Errorf("%w: inode %d offset %d", ErrHole, in.ID, pos)
		}
		stop := min(e.End(), end)
		for pos < stop {
			rel := pos - e.Logical
			boff := rel % device.BlockSize
			l := min(device.BlockSize-boff, stop-pos)
			segs = append(segs, Segment{
				Block:   e.Physical + rel/device.BlockSize,
				Offset:  int(boff),
				Len:     int(l),
				DataOff: pos - off,
			})
			pos += l
		}
	}
	if pos < end {
		return nil, fmt.Errorf("%w: inode %d offset %d", ErrHole, in.ID, pos)
	}
	return segs, nil
}

// Extend grows the extent list so [off, off+n) is fully covered.
//
// Uncovered bytes first fill the slack of an extent ending exactly where
// they start; the rest goes to blocks from alloc. Blocks that are
// physically adjacent to the preceding run are merged into it. Extend
// returns every block it allocated, also on error, so the caller can
// release them.
func (in *Inode) Extend(off, n uint64, alloc func() (uint64, error)) ([]uint64, error) {
	var allocated []uint64
	for _, gap := range in.gaps(off, off+n) {
		a, b := gap[0], gap[1]

		if i := in.endingAt(a); i >= 0 {
			e := &in.Extents[i]
			if slack := e.Capacity() - e.Length; slack > 0 {
				grow := min(slack, b-a)
				e.Length += grow
				a += grow
			}
		}

		for a < b {
			blk, err := alloc()
			if err != nil {
				return allocated, err
			}
			allocated = append(allocated, blk)
			l := min(device.BlockSize, b-a)

			if i := in.endingAt(a); i >= 0 {
				e := &in.Extents[i]
				if e.Length%device.BlockSize == 0 && e.Physical+e.Blocks() == blk {
					e.Length += l
					a += l
					continue
				}
			}
			in.insert(Extent{Logical: a, Physical: blk, Length: l})
			a += l
		}
	}
	return allocated, nil
}

// Shrink drops data past size and returns the blocks no longer referenced.
// Growing only moves Size; the new tail reads as a hole.
func (in *Inode) Shrink(size uint64) []uint64 {
	var freed []uint64
	kept := in.Extents[:0]
	for _, e := range in.Extents {
		switch {
		case e.Logical >= size:
			freed = append(freed, e.blockIDs(0)...)
		case e.End() > size:
			orig := e
			e.Length = size - e.Logical
			freed = append(freed, orig.blockIDs(e.Blocks())...)
			kept = append(kept, e)
		default:
			kept = append(kept, e)
		}
	}
	in.Extents = kept
	if len(in.Extents) == 0 {
		in.Extents = nil
	}
	in.Size = size
	return freed
}

// DataBlocks returns every device block referenced by the extents.
func (in *Inode) DataBlocks() []uint64 {
	var ids []uint64
	for _, e := range in.Extents {
		ids = append(ids, e.blockIDs(0)...)
	}
	return ids
}

// blockIDs lists the extent's blocks starting at the from-th one.
func (e Extent) blockIDs(from uint64) []uint64 {
	var ids []uint64
	for i := from; i < e.Blocks(); i++ {
		ids = append(ids, e.Physical+i)
	}
	return ids
}

// gaps returns the sub-ranges of [off, end) not covered by any extent.
func (in *Inode) gaps(off, end uint64) [][2]uint64 {
	var out [][2]uint64
	pos := off
	for _, e := range in.Extents {
		if pos >= end {
			break
		}
		if e.End() <= pos {
			continue
		}
		if e.Logical > pos {
			out = append(out, [2]uint64{pos, min(e.Logical, end)})
		}
		pos = max(pos, e.End())
	}
	if pos < end {
		out = append(out, [2]uint64{pos, end})
	}
	return out
}

func (in *Inode) endingAt(off uint64) int {
	for i, e := range in.Extents {
		if e.Length > 0 && e.End() == off {
			return i
		}
	}
	return -1
}

func (in *Inode) insert(e Extent) {
	i := sort.Search(len(in.Extents), func(i int) bool {
		return in.Extents[i].Logical > e.Logical
	})
	in.Extents = append(in.Extents, Extent{})
	copy(in.Extents[i+1:], in.Extents[i:])
	in.Extents[i] = e
}
