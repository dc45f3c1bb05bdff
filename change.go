package vecfs

import (
	"fmt"

	"github.com/hupe1980/vecfs/device"
	"github.com/hupe1980/vecfs/inode"
)

// change is one mutation planned in memory. Nothing touches the device
// until apply; until then rollback undoes the block allocations.
type change struct {
	e         *Engine
	data      []dataWrite
	inodes    [][]byte
	inodeIDs  []uint64
	allocated []uint64
	freed     []uint64
}

type dataWrite struct {
	in  *inode.Inode
	off uint64
	buf []byte
}

func (e *Engine) newChange() *change {
	return &change{e: e}
}

func (c *change) alloc() (uint64, error) {
	id, err := c.e.allocate()
	if err != nil {
		return 0, err
	}
	c.allocated = append(c.allocated, id)
	return id, nil
}

// create allocates the block that becomes a new inode's id.
func (c *change) create(kind inode.Kind) (*inode.Inode, error) {
	id, err := c.alloc()
	if err != nil {
		return nil, err
	}
	return inode.New(id, kind), nil
}

// write maps data at off into in, allocating blocks as needed.
// in must be a planned copy; it is mutated.
func (c *change) write(in *inode.Inode, off uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n := uint64(len(data))
	if err := checkRange(off, n); err != nil {
		return err
	}
	if _, err := in.Extend(off, n, c.alloc); err != nil {
		return err
	}
	in.Size = max(in.Size, off+n)
	c.data = append(c.data, dataWrite{in: in, off: off, buf: data})
	return nil
}

// replace makes data the whole content of in.
func (c *change) replace(in *inode.Inode, data []byte) error {
	if err := c.write(in, 0, data); err != nil {
		return err
	}
	c.truncate(in, uint64(len(data)))
	return nil
}

// truncate sets in's size; blocks past a shorter end are freed on apply.
func (c *change) truncate(in *inode.Inode, size uint64) {
	c.freed = append(c.freed, in.Shrink(size)...)
}

// drop releases every block of in, its own block included.
func (c *change) drop(in *inode.Inode) {
	c.freed = append(c.freed, in.DataBlocks()...)
	c.freed = append(c.freed, in.ID)
}

// put encodes in for writing. Call it after the last change to in; an
// oversized inode fails here, before anything is persisted.
func (c *change) put(in *inode.Inode) error {
	block, err := in.Encode()
	if err != nil {
		return err
	}
	c.inodes = append(c.inodes, block)
	c.inodeIDs = append(c.inodeIDs, in.ID)
	return nil
}

// rollback returns the planned allocations to the space map.
func (c *change) rollback() {
	c.e.release(c.allocated)
	c.allocated = nil
}

// apply persists data blocks, then inodes, then the space map and the
// superblock.
func (c *change) apply() error {
	fresh := make(map[uint64]bool, len(c.allocated))
	for _, id := range c.allocated {
		fresh[id] = true
	}
	for _, w := range c.data {
		if err := c.e.writeRange(w.in, w.off, w.buf, fresh); err != nil {
			return err
		}
	}
	for i, block := range c.inodes {
		if err := c.e.writeBlock(c.inodeIDs[i], block); err != nil {
			return err
		}
	}
	if len(c.allocated) == 0 && len(c.freed) == 0 {
		return nil
	}
	c.e.release(c.freed)
	return c.e.persistSpace()
}

// commit applies c inside a journal bracket. A failure after Begin leaves
// the bracket open on the device so the next mount reports it, and the
// journal stops tracking it as in flight. If the bracket cannot be opened
// the allocations are rolled back.
func (e *Engine) commit(desc string, c *change, after ...func() error) error {
	id, err := e.journal.Begin(desc)
	if err != nil {
		c.rollback()
		return fmt.Errorf("journal begin: %w", err)
	}
	if err := c.apply(); err != nil {
		e.journal.Abandon(id)
		return err
	}
	for _, fn := range after {
		if err := fn(); err != nil {
			e.journal.Abandon(id)
			return err
		}
	}
	if err := e.journal.End(id); err != nil {
		e.journal.Abandon(id)
		return fmt.Errorf("journal end: %w", err)
	}
	return nil
}

// writeRange copies buf into in's blocks at off. Partial blocks are
// read-modify-written unless freshly allocated.
func (e *Engine) writeRange(in *inode.Inode, off uint64, buf []byte, fresh map[uint64]bool) error {
	segs, err := in.Segments(off, uint64(len(buf)))
	if err != nil {
		return err
	}
	block := make([]byte, device.BlockSize)
	for _, s := range segs {
		src := buf[s.DataOff : s.DataOff+uint64(s.Len)]
		if s.Len == device.BlockSize {
			if err := e.writeBlock(s.Block, src); err != nil {
				return err
			}
			delete(fresh, s.Block)
			continue
		}
		if fresh[s.Block] {
			clear(block)
		} else if err := e.dev.ReadBlock(s.Block, block); err != nil {
			return fmt.Errorf("read block %d: %w", s.Block, err)
		}
		copy(block[s.Offset:], src)
		if err := e.writeBlock(s.Block, block); err != nil {
			return err
		}
		delete(fresh, s.Block)
	}
	return nil
}

// readRange returns in's bytes in [off, min(off+n, Size)).
func (e *Engine) readRange(in *inode.Inode, off, n uint64) ([]byte, error) {
	if off >= in.Size || n == 0 {
		return []byte{}, nil
	}
	n = min(n, in.Size-off)
	segs, err := in.Segments(off, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	block := make([]byte, device.BlockSize)
	for _, s := range segs {
		if err := e.dev.ReadBlock(s.Block, block); err != nil {
			return nil, fmt.Errorf("read block %d: %w", s.Block, err)
		}
		copy(out[s.DataOff:], block[s.Offset:s.Offset+s.Len])
	}
	return out, nil
}
