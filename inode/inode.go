package inode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/vecfs/attr"
	"github.com/hupe1980/vecfs/device"
	"github.com/hupe1980/vecfs/internal/hash"
)

const (
	// Magic tags every encoded inode block.
	Magic = "VINO"

	headerSize = 4 + 4 + 4
	// MaxPayload is the largest payload that still fits in one block.
	MaxPayload = device.BlockSize - headerSize
)

var (
	// ErrTooLarge is returned when an inode does not fit in one block.
	ErrTooLarge = errors.New("inode too large")
	// ErrCorrupt is returned when a block does not hold a valid inode.
	ErrCorrupt = errors.New("corrupt inode")
)

// Kind is the object type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindFile
	KindDirectory
	KindSymlink
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "invalid"
	}
}

// Inode is the metadata record of one object. Its ID is the block that
// stores it.
type Inode struct {
	ID      uint64          `json:"id"`
	Kind    Kind            `json:"kind"`
	Size    uint64          `json:"size"`
	Extents []Extent        `json:"extents,omitempty"`
	Attrs   attr.Attributes `json:"attrs,omitempty"`
}

// New returns an empty inode.
func New(id uint64, kind Kind) *Inode {
	return &Inode{ID: id, Kind: kind}
}

// Clone returns a deep copy of in.
func (in *Inode) Clone() *Inode {
	return &Inode{
		ID:      in.ID,
		Kind:    in.Kind,
		Size:    in.Size,
		Extents: slices.Clone(in.Extents),
		Attrs:   in.Attrs.Clone(),
	}
}

// Encode serializes in into one zero-padded block.
func (in *Inode) Encode() ([]byte, error) {
	payload := make([]byte, 0, 64)
	payload = binary.LittleEndian.AppendUint64(payload, in.ID)
	payload = append(payload, byte(in.Kind))
	payload = binary.LittleEndian.AppendUint64(payload, in.Size)

	payload = binary.AppendUvarint(payload, uint64(len(in.Extents)))
	for _, e := range in.Extents {
		payload = binary.LittleEndian.AppendUint64(payload, e.Logical)
		payload = binary.LittleEndian.AppendUint64(payload, e.Physical)
		payload = binary.LittleEndian.AppendUint64(payload, e.Length)
	}

	payload, err := in.Attrs.AppendBinary(payload)
	if err != nil {
		return nil, fmt.Errorf("encode inode %d: %w", in.ID, err)
	}

	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: inode %d needs %d bytes, limit %d", ErrTooLarge, in.ID, len(payload), MaxPayload)
	}

	block := make([]byte, device.BlockSize)
	copy(block[0:4], Magic)
	binary.LittleEndian.PutUint32(block[4:8], hash.CRC32C(payload))
	binary.LittleEndian.PutUint32(block[8:12], uint32(len(payload)))
	copy(block[headerSize:], payload)
	return block, nil
}

// Decode parses an inode block.
func Decode(block []byte) (*Inode, error) {
	if len(block) < headerSize {
		return nil, fmt.Errorf("%w: short block", ErrCorrupt)
	}
	if string(block[0:4]) != Magic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	n := binary.LittleEndian.Uint32(block[8:12])
	if int(n) > len(block)-headerSize {
		return nil, fmt.Errorf("%w: payload length %d", ErrCorrupt, n)
	}
	payload := block[headerSize : headerSize+int(n)]
	if got, want := hash.CRC32C(payload), binary.LittleEndian.Uint32(block[4:8]); got != want {
		return nil, fmt.Errorf("%w: checksum %08x != %08x", ErrCorrupt, got, want)
	}

	if len(payload) < 17 {
		return nil, fmt.Errorf("%w: short payload", ErrCorrupt)
	}
	in := &Inode{
		ID:   binary.LittleEndian.Uint64(payload[0:8]),
		Kind: Kind(payload[8]),
		Size: binary.LittleEndian.Uint64(payload[9:17]),
	}
	data := payload[17:]

	count, w := binary.Uvarint(data)
	if w <= 0 || count > uint64(len(data))/24 {
		return nil, fmt.Errorf("%w: extent count", ErrCorrupt)
	}
	data = data[w:]
	if count > 0 {
		in.Extents = make([]Extent, count)
	}
	for i := range in.Extents {
		if len(data) < 24 {
			return nil, fmt.Errorf("%w: short extent", ErrCorrupt)
		}
		in.Extents[i] = Extent{
			Logical:  binary.LittleEndian.Uint64(data[0:8]),
			Physical: binary.LittleEndian.Uint64(data[8:16]),
			Length:   binary.LittleEndian.Uint64(data[16:24]),
		}
		data = data[24:]
	}

	attrs, rest, err := attr.ParseAttributes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(rest))
	}
	if len(attrs) > 0 {
		in.Attrs = attrs
	}
	return in, nil
}
