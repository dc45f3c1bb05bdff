package device

import (
	"errors"
	"fmt"
)

// BlockSize is the size of every block in bytes.
const BlockSize = 4096

var (
	// ErrSizeMismatch is returned when a buffer is not exactly BlockSize bytes.
	ErrSizeMismatch = errors.New("buffer size does not match block size")
	// ErrOutOfBounds is returned when a block id lies beyond the device.
	ErrOutOfBounds = errors.New("block out of bounds")
	// ErrLocked is returned when another process holds the device lock.
	ErrLocked = errors.New("device is locked by another process")
	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("device is closed")
)

// Device is a fixed-size block store.
type Device interface {
	// ReadBlock fills buf with the contents of block id.
	ReadBlock(id uint64, buf []byte) error
	// WriteBlock stores buf as block id.
	WriteBlock(id uint64, buf []byte) error
	// BlockCount reports the current capacity in blocks.
	BlockCount() uint64
	// Sync flushes written blocks to stable storage where supported.
	Sync() error
	// Close releases the device.
	Close() error
}

func checkBuf(buf []byte) error {
	if len(buf) != BlockSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(buf), BlockSize)
	}
	return nil
}

// Zero writes a zeroed block at every id in [start, start+count).
func Zero(dev Device, start, count uint64) error {
	zero := make([]byte, BlockSize)
	for id := start; id < start+count; id++ {
		if err := dev.WriteBlock(id, zero); err != nil {
			return err
		}
	}
	return nil
}
