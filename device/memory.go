package device

import "fmt"

// Memory implements Device using an in-memory byte slice.
// Writes past the end grow the buffer; reads past the end fail.
type Memory struct {
	data   []byte
	closed bool
}

var _ Device = (*Memory)(nil)

// NewMemory creates a zeroed in-memory device of the given block count.
func NewMemory(blocks uint64) *Memory {
	return &Memory{data: make([]byte, blocks*BlockSize)}
}

func (m *Memory) ReadBlock(id uint64, buf []byte) error {
	if err := checkBuf(buf); err != nil {
		return err
	}
	if m.closed {
		return ErrClosed
	}
	if id >= m.BlockCount() {
		return fmt.Errorf("%w: read block %d (count %d)", ErrOutOfBounds, id, m.BlockCount())
	}
	off := id * BlockSize
	copy(buf, m.data[off:off+BlockSize])
	return nil
}

func (m *Memory) WriteBlock(id uint64, buf []byte) error {
	if err := checkBuf(buf); err != nil {
		return err
	}
	if m.closed {
		return ErrClosed
	}
	if end := (id + 1) * BlockSize; end > uint64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[id*BlockSize:], buf)
	return nil
}

func (m *Memory) BlockCount() uint64 {
	return uint64(len(m.data)) / BlockSize
}

func (m *Memory) Sync() error {
	return nil
}

func (m *Memory) Close() error {
	m.closed = true
	return nil
}

// Bytes returns the raw device contents. The slice aliases the device.
func (m *Memory) Bytes() []byte {
	return m.data
}
