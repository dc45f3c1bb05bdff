// Package spacemap implements the block bitmap allocator.
//
// One bit per block: 0 = free, 1 = used. Block i lives in byte i/8 at bit
// i%8 (least significant bit first) of the persisted bitmap region.
package spacemap

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/vecfs/device"
)

// ErrNoSpace is returned when every block below the block count is in use.
var ErrNoSpace = errors.New("no space left on device")

// ErrOutOfRange is returned for block ids at or beyond the block count.
var ErrOutOfRange = errors.New("block id beyond space map")

// BitsPerBlock is the number of block bits one bitmap block holds.
const BitsPerBlock = device.BlockSize * 8

// Map tracks free and used blocks.
//
// blockCount is authoritative: the persisted bitmap may cover more bits than
// blocks (it is rounded up to whole bitmap blocks) but nothing at or past
// blockCount is ever handed out.
type Map struct {
	bits       *bitset.BitSet
	blockCount uint64
}

// New returns an empty map for blockCount blocks.
func New(blockCount uint64) *Map {
	return &Map{
		bits:       bitset.New(uint(blockCount)),
		blockCount: blockCount,
	}
}

// BlocksFor returns the number of bitmap blocks needed for blockCount blocks.
func BlocksFor(blockCount uint64) uint64 {
	bytes := (blockCount + 7) / 8
	return (bytes + device.BlockSize - 1) / device.BlockSize
}

// BlockCount returns the authoritative number of blocks.
func (m *Map) BlockCount() uint64 {
	return m.blockCount
}

// Allocate marks the lowest free block as used and returns its id.
func (m *Map) Allocate() (uint64, error) {
	i, ok := m.bits.NextClear(0)
	if !ok || uint64(i) >= m.blockCount {
		return 0, ErrNoSpace
	}
	m.bits.Set(i)
	return uint64(i), nil
}

// MarkUsed sets the bit for id.
func (m *Map) MarkUsed(id uint64) error {
	if id >= m.blockCount {
		return fmt.Errorf("%w: %d >= %d", ErrOutOfRange, id, m.blockCount)
	}
	m.bits.Set(uint(id))
	return nil
}

// Free clears the bit for id.
func (m *Map) Free(id uint64) error {
	if id >= m.blockCount {
		return fmt.Errorf("%w: %d >= %d", ErrOutOfRange, id, m.blockCount)
	}
	m.bits.Clear(uint(id))
	return nil
}

// IsUsed reports whether id is allocated. Ids past the end report false.
func (m *Map) IsUsed(id uint64) bool {
	if id >= m.blockCount {
		return false
	}
	return m.bits.Test(uint(id))
}

// UsedCount returns the number of allocated blocks.
func (m *Map) UsedCount() uint64 {
	return uint64(m.bits.Count())
}

// FreeCount returns the number of free blocks.
func (m *Map) FreeCount() uint64 {
	return m.blockCount - m.UsedCount()
}

// Encode returns the bitmap as bytes, padded to whole blocks.
func (m *Map) Encode() []byte {
	buf := make([]byte, BlocksFor(m.blockCount)*device.BlockSize)
	for i, ok := m.bits.NextSet(0); ok && uint64(i) < m.blockCount; i, ok = m.bits.NextSet(i + 1) {
		buf[i/8] |= 1 << (i % 8)
	}
	return buf
}

// Save writes the bitmap into consecutive blocks starting at start.
func (m *Map) Save(dev device.Device, start uint64) error {
	buf := m.Encode()
	for i := uint64(0); i < uint64(len(buf))/device.BlockSize; i++ {
		chunk := buf[i*device.BlockSize : (i+1)*device.BlockSize]
		if err := dev.WriteBlock(start+i, chunk); err != nil {
			return fmt.Errorf("save space map block %d: %w", start+i, err)
		}
	}
	return nil
}

// Load reads span bitmap blocks starting at start. Bits at or beyond
// blockCount are ignored even though the region may hold them.
func Load(dev device.Device, start, span, blockCount uint64) (*Map, error) {
	m := New(blockCount)
	buf := make([]byte, device.BlockSize)
	for i := uint64(0); i < span; i++ {
		if err := dev.ReadBlock(start+i, buf); err != nil {
			return nil, fmt.Errorf("load space map block %d: %w", start+i, err)
		}
		base := i * BitsPerBlock
		for j, b := range buf {
			if b == 0 {
				continue
			}
			for bit := uint64(0); bit < 8; bit++ {
				id := base + uint64(j)*8 + bit
				if b&(1<<bit) != 0 && id < blockCount {
					m.bits.Set(uint(id))
				}
			}
		}
	}
	return m, nil
}
