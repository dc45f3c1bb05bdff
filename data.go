package vecfs

import (
	"fmt"
	"math"

	"github.com/hupe1980/vecfs/inode"
)

// MaxFileSize is the largest object size. Offsets and sizes beyond it fail
// with ErrInvalidRange, which keeps off+len from wrapping.
const MaxFileSize = math.MaxInt64

func checkRange(off, n uint64) error {
	if off > MaxFileSize || n > MaxFileSize-off {
		return fmt.Errorf("%w: %d bytes at %d", ErrInvalidRange, n, off)
	}
	return nil
}

// WriteData writes data at byte offset off of object id.
//
// Covered bytes are overwritten in place; the slack of the extent ending
// where new bytes begin is filled before new blocks are allocated. The
// size grows to off+len(data) when that is larger. The inode is encoded
// before anything is persisted: if it would no longer fit in a block the
// call fails with ErrTooLarge and the store is unchanged.
func (e *Engine) WriteData(id, off uint64, data []byte) (err error) {
	done, err := e.enter("write")
	if err != nil {
		return err
	}
	defer done(id, &err)

	in, err := e.readInode(id)
	if err != nil {
		return err
	}
	if in.Kind == inode.KindDirectory {
		return fmt.Errorf("%w: %d", ErrIsDirectory, id)
	}
	if err := checkRange(off, uint64(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	c := e.newChange()
	planned := in.Clone()
	if err := c.write(planned, off, data); err == nil {
		err = c.put(planned)
	}
	if err != nil {
		c.rollback()
		return err
	}
	return e.commit(fmt.Sprintf("write %d bytes at %d to %d", len(data), off, id), c)
}

// ReadData returns up to n bytes of object id starting at off. The range
// is clamped to the object's size; reading at or past the end returns no
// bytes. A byte inside the size that was never written is ErrHole.
func (e *Engine) ReadData(id, off, n uint64) (data []byte, err error) {
	done, err := e.enterRead("read")
	if err != nil {
		return nil, err
	}
	defer done(id, &err)

	in, err := e.readInode(id)
	if err != nil {
		return nil, err
	}
	if in.Kind == inode.KindDirectory {
		return nil, fmt.Errorf("%w: %d", ErrIsDirectory, id)
	}
	return e.readRange(in, off, n)
}

// Truncate sets the size of object id. Shrinking frees whole blocks past
// the new end; growing leaves a hole.
func (e *Engine) Truncate(id, size uint64) (err error) {
	done, err := e.enter("truncate")
	if err != nil {
		return err
	}
	defer done(id, &err)

	if err := checkRange(0, size); err != nil {
		return err
	}

	in, err := e.readInode(id)
	if err != nil {
		return err
	}
	if in.Kind == inode.KindDirectory {
		return fmt.Errorf("%w: %d", ErrIsDirectory, id)
	}
	if size == in.Size {
		return nil
	}

	c := e.newChange()
	planned := in.Clone()
	c.truncate(planned, size)
	if err := c.put(planned); err != nil {
		return err
	}
	return e.commit(fmt.Sprintf("truncate %d to %d", id, size), c)
}
