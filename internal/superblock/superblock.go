// Package superblock defines the fixed-location layout descriptor at block 0.
package superblock

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/vecfs/device"
	"github.com/hupe1980/vecfs/internal/hash"
	"github.com/hupe1980/vecfs/internal/spacemap"
)

const (
	// Magic tags every vecfs image.
	Magic = "VECFS"
	// Version is the on-disk format version.
	Version uint32 = 1
	// Location is the block id of the superblock.
	Location uint64 = 0
	// JournalStart is the first block of the journal region.
	JournalStart uint64 = 1
	// JournalBlocks is the fixed size of the journal region.
	JournalBlocks uint64 = 10

	// magic(5) version(4) blockSize(4) + 9 uint64 fields + crc(4)
	encodedSize = 5 + 4 + 4 + 9*8 + 4
)

var (
	ErrInvalidMagic      = errors.New("invalid superblock magic")
	ErrInvalidVersion    = errors.New("unsupported superblock version")
	ErrBlockSizeMismatch = errors.New("superblock block size mismatch")
	ErrChecksumMismatch  = errors.New("superblock checksum mismatch")
	ErrDeviceTooSmall    = errors.New("device too small for layout")
)

// Superblock describes the on-disk layout and free-space count.
type Superblock struct {
	Magic         [5]byte
	Version       uint32
	BlockSize     uint32
	BlockCount    uint64
	RootID        uint64
	FreeBlocks    uint64
	BitmapStart   uint64
	BitmapBlocks  uint64
	JournalStart  uint64
	JournalBlocks uint64
	CatalogID     uint64
}

// New computes the layout for a device of blockCount blocks.
//
// Block 0 holds the superblock, blocks 1..11 the journal and the bitmap
// follows the journal. Root and catalog ids stay 0 until allocated.
func New(blockCount uint64) (*Superblock, error) {
	sb := &Superblock{
		Version:       Version,
		BlockSize:     device.BlockSize,
		BlockCount:    blockCount,
		BitmapStart:   JournalStart + JournalBlocks,
		BitmapBlocks:  spacemap.BlocksFor(blockCount),
		JournalStart:  JournalStart,
		JournalBlocks: JournalBlocks,
	}
	copy(sb.Magic[:], Magic)

	// At least one data block for the root directory.
	if blockCount <= sb.FirstDataBlock() {
		return nil, fmt.Errorf("%w: %d blocks, need more than %d", ErrDeviceTooSmall, blockCount, sb.FirstDataBlock())
	}
	sb.FreeBlocks = blockCount - sb.FirstDataBlock()
	return sb, nil
}

// FirstDataBlock returns the first block not reserved by the layout.
func (sb *Superblock) FirstDataBlock() uint64 {
	return sb.BitmapStart + sb.BitmapBlocks
}

// Reserved lists every block id the layout itself occupies.
func (sb *Superblock) Reserved() []uint64 {
	ids := []uint64{Location}
	for i := uint64(0); i < sb.JournalBlocks; i++ {
		ids = append(ids, sb.JournalStart+i)
	}
	for i := uint64(0); i < sb.BitmapBlocks; i++ {
		ids = append(ids, sb.BitmapStart+i)
	}
	return ids
}

// Encode serializes the superblock into one zero-padded block.
func (sb *Superblock) Encode() []byte {
	buf := make([]byte, 0, encodedSize)
	buf = append(buf, sb.Magic[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, sb.Version)
	buf = binary.LittleEndian.AppendUint32(buf, sb.BlockSize)
	for _, v := range []uint64{
		sb.BlockCount,
		sb.RootID,
		sb.FreeBlocks,
		sb.BitmapStart,
		sb.BitmapBlocks,
		sb.JournalStart,
		sb.JournalBlocks,
		sb.CatalogID,
	} {
		buf = binary.LittleEndian.AppendUint64(buf, v)
	}
	// Reserved slot keeps the record at nine uint64 fields.
	buf = binary.LittleEndian.AppendUint64(buf, 0)
	buf = binary.LittleEndian.AppendUint32(buf, hash.CRC32C(buf))

	block := make([]byte, device.BlockSize)
	copy(block, buf)
	return block
}

// Decode parses and validates a superblock block.
func Decode(block []byte) (*Superblock, error) {
	if len(block) < encodedSize {
		return nil, fmt.Errorf("%w: %d bytes", device.ErrSizeMismatch, len(block))
	}
	sb := &Superblock{
		Version:   binary.LittleEndian.Uint32(block[5:9]),
		BlockSize: binary.LittleEndian.Uint32(block[9:13]),
	}
	copy(sb.Magic[:], block[0:5])
	if err := sb.Validate(); err != nil {
		return nil, err
	}

	crcOff := encodedSize - 4
	if got, want := hash.CRC32C(block[:crcOff]), binary.LittleEndian.Uint32(block[crcOff:encodedSize]); got != want {
		return nil, fmt.Errorf("%w: %08x != %08x", ErrChecksumMismatch, got, want)
	}

	fields := make([]uint64, 8)
	for i := range fields {
		off := 13 + i*8
		fields[i] = binary.LittleEndian.Uint64(block[off : off+8])
	}
	sb.BlockCount = fields[0]
	sb.RootID = fields[1]
	sb.FreeBlocks = fields[2]
	sb.BitmapStart = fields[3]
	sb.BitmapBlocks = fields[4]
	sb.JournalStart = fields[5]
	sb.JournalBlocks = fields[6]
	sb.CatalogID = fields[7]
	return sb, nil
}

// Validate checks the magic, version and block size in that order.
func (sb *Superblock) Validate() error {
	if string(sb.Magic[:]) != Magic {
		return fmt.Errorf("%w: %q", ErrInvalidMagic, sb.Magic[:])
	}
	if sb.Version != Version {
		return fmt.Errorf("%w: %d (expected %d)", ErrInvalidVersion, sb.Version, Version)
	}
	if sb.BlockSize != device.BlockSize {
		return fmt.Errorf("%w: %d (expected %d)", ErrBlockSizeMismatch, sb.BlockSize, device.BlockSize)
	}
	return nil
}

// Read loads the superblock from dev.
func Read(dev device.Device) (*Superblock, error) {
	buf := make([]byte, device.BlockSize)
	if err := dev.ReadBlock(Location, buf); err != nil {
		return nil, fmt.Errorf("read superblock: %w", err)
	}
	return Decode(buf)
}

// Write stores the superblock on dev.
func (sb *Superblock) Write(dev device.Device) error {
	if err := dev.WriteBlock(Location, sb.Encode()); err != nil {
		return fmt.Errorf("write superblock: %w", err)
	}
	return nil
}
