// Package journal implements the begin/end marker log that brackets every
// structural mutation.
//
// The journal detects interrupted operations; it carries no redo data.
// Frames live in a fixed region of the device:
//
//	[length uint64 LE][CBOR Op]
//
// A frame never straddles a block. A length of 0 ends the log and a length
// of math.MaxUint64 skips to the next block.
package journal

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/vecfs/codec"
	"github.com/hupe1980/vecfs/device"
)

const (
	lenSize    = 8
	skipMarker = math.MaxUint64
)

var (
	// ErrCorrupt is returned when the region holds an unreadable frame.
	ErrCorrupt = errors.New("corrupt journal")
	// ErrOpTooLarge is returned when one op cannot fit in a block.
	ErrOpTooLarge = errors.New("journal op too large")
	// ErrUnknownOp is returned by End for an id that has no open Begin.
	ErrUnknownOp = errors.New("unknown journal op")
	// ErrRegionTooSmall is returned when open Begins alone fill the region.
	ErrRegionTooSmall = errors.New("journal region too small")
)

// OpType distinguishes begin and end markers.
type OpType uint8

const (
	OpBegin OpType = 1
	OpEnd   OpType = 2
)

func (t OpType) String() string {
	switch t {
	case OpBegin:
		return "begin"
	case OpEnd:
		return "end"
	default:
		return fmt.Sprintf("op(%d)", uint8(t))
	}
}

// Op is one journal record.
type Op struct {
	Type        OpType `cbor:"1,keyasint"`
	ID          uint64 `cbor:"2,keyasint"`
	Description string `cbor:"3,keyasint,omitempty"`
}

// Report is the result of a recovery check.
type Report struct {
	// Dirty is true when at least one Begin has no matching End.
	Dirty bool
	// Pending lists the unmatched Begins in id order.
	Pending []Op
}

// Journal appends markers to the region [start, start+blocks).
// It is not safe for concurrent use.
type Journal struct {
	dev    device.Device
	start  uint64
	blocks uint64

	region []byte
	cursor uint64
	nextID uint64
	open   map[uint64]Op
	resets int

	// failed folds the Begins of operations abandoned in this session into
	// one marker, so wraps re-log a single frame for all of them.
	failed  *Op
	nFailed int
}

// Format zeroes the journal region.
func Format(dev device.Device, start, blocks uint64) error {
	if err := device.Zero(dev, start, blocks); err != nil {
		return fmt.Errorf("format journal: %w", err)
	}
	return nil
}

// Open loads the region and positions the cursor after the last frame.
func Open(dev device.Device, start, blocks uint64) (*Journal, error) {
	j := &Journal{
		dev:    dev,
		start:  start,
		blocks: blocks,
		nextID: 1,
		open:   make(map[uint64]Op),
	}
	region, err := j.readRegion()
	if err != nil {
		return nil, err
	}
	j.region = region

	ops, end, err := scan(region)
	if err != nil {
		return nil, err
	}
	j.cursor = end
	for _, op := range ops {
		j.nextID = max(j.nextID, op.ID+1)
		switch op.Type {
		case OpBegin:
			j.open[op.ID] = op
		case OpEnd:
			delete(j.open, op.ID)
		}
	}
	return j, nil
}

// Begin logs the start of an operation and returns its id.
func (j *Journal) Begin(description string) (uint64, error) {
	op := Op{Type: OpBegin, ID: j.nextID, Description: description}
	if err := j.append(op); err != nil {
		return 0, err
	}
	j.nextID++
	j.open[op.ID] = op
	return op.ID, nil
}

// End logs the completion of the operation id.
func (j *Journal) End(id uint64) error {
	if _, ok := j.open[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownOp, id)
	}
	if err := j.append(Op{Type: OpEnd, ID: id}); err != nil {
		return err
	}
	delete(j.open, id)
	return nil
}

// Abandon marks the open operation id as failed. Its Begin stays on the
// device, so the store reads as dirty on the next check, but it is no
// longer tracked as open: every failure of a session shares one marker
// that wraps carry forward. Unknown ids are ignored.
func (j *Journal) Abandon(id uint64) {
	op, ok := j.open[id]
	if !ok {
		return
	}
	delete(j.open, id)
	j.nFailed++
	if j.failed == nil {
		j.failed = &Op{Type: OpBegin, ID: op.ID}
	}
	j.failed.Description = fmt.Sprintf("%d failed operations, last: %s", j.nFailed, op.Description)
}

// Abandoned returns how many operations Abandon recorded since Open or the
// last Reset.
func (j *Journal) Abandoned() int { return j.nFailed }

// CheckRecovery re-reads the region from the device and reports Begins
// without a matching End.
func (j *Journal) CheckRecovery() (Report, error) {
	region, err := j.readRegion()
	if err != nil {
		return Report{}, err
	}
	ops, _, err := scan(region)
	if err != nil {
		return Report{}, err
	}
	return pending(ops), nil
}

// Reset empties the log and forgets open and abandoned operations.
func (j *Journal) Reset() error {
	clear(j.open)
	j.failed, j.nFailed = nil, 0
	return j.truncate()
}

// Cursor returns the byte offset of the next frame within the region.
func (j *Journal) Cursor() uint64 { return j.cursor }

// Resets returns how often the log wrapped since Open.
func (j *Journal) Resets() int { return j.resets }

// Pending returns the operations begun but not yet ended, in id order.
func (j *Journal) Pending() []Op {
	ops := make([]Op, 0, len(j.open))
	for _, op := range j.open {
		ops = append(ops, op)
	}
	slices.SortFunc(ops, func(a, b Op) int { return cmp.Compare(a.ID, b.ID) })
	return ops
}

func (j *Journal) size() uint64 { return j.blocks * device.BlockSize }

func (j *Journal) append(op Op) error {
	frame, err := encodeFrame(op)
	if err != nil {
		return err
	}

	pos, ok := j.place(uint64(len(frame)))
	if !ok {
		// Wrap: restart the log and carry forward still-open Begins so an
		// interrupted operation stays visible after the reset.
		if err := j.truncate(); err != nil {
			return err
		}
		j.resets++
		carry := j.Pending()
		if j.failed != nil {
			carry = append(carry, *j.failed)
		}
		for _, o := range carry {
			f, err := encodeFrame(o)
			if err != nil {
				return err
			}
			p, ok := j.place(uint64(len(f)))
			if !ok {
				return ErrRegionTooSmall
			}
			if err := j.write(p, f); err != nil {
				return err
			}
		}
		if pos, ok = j.place(uint64(len(frame))); !ok {
			return ErrRegionTooSmall
		}
	}
	return j.write(pos, frame)
}

// place returns where a frame of n bytes goes, writing a skip marker into
// the region buffer when it has to move to the next block. ok is false
// when the frame does not fit before the end of the region.
func (j *Journal) place(n uint64) (uint64, bool) {
	pos := j.cursor
	rem := device.BlockSize - pos%device.BlockSize
	if n > rem {
		if rem >= lenSize {
			binary.LittleEndian.PutUint64(j.region[pos:], skipMarker)
		}
		pos += rem
	}
	if pos+n > j.size() {
		return 0, false
	}
	return pos, true
}

// write stores frame at pos, terminates the log after it and flushes the
// touched blocks.
func (j *Journal) write(pos uint64, frame []byte) error {
	first := j.cursor / device.BlockSize
	copy(j.region[pos:], frame)
	next := pos + uint64(len(frame))

	if rem := device.BlockSize - next%device.BlockSize; rem < lenSize {
		next += rem
	}
	last := pos / device.BlockSize
	if next+lenSize <= j.size() {
		binary.LittleEndian.PutUint64(j.region[next:], 0)
		last = next / device.BlockSize
	}

	j.cursor = next
	return j.flush(first, last)
}

func (j *Journal) truncate() error {
	clear(j.region[:device.BlockSize])
	j.cursor = 0
	return j.flush(0, 0)
}

// flush writes region blocks first..last (inclusive, region-relative).
func (j *Journal) flush(first, last uint64) error {
	for b := first; b <= last && b < j.blocks; b++ {
		off := b * device.BlockSize
		if err := j.dev.WriteBlock(j.start+b, j.region[off:off+device.BlockSize]); err != nil {
			return fmt.Errorf("write journal block %d: %w", j.start+b, err)
		}
	}
	return nil
}

func (j *Journal) readRegion() ([]byte, error) {
	region := make([]byte, j.size())
	for b := uint64(0); b < j.blocks; b++ {
		off := b * device.BlockSize
		if err := j.dev.ReadBlock(j.start+b, region[off:off+device.BlockSize]); err != nil {
			return nil, fmt.Errorf("read journal block %d: %w", j.start+b, err)
		}
	}
	return region, nil
}

func encodeFrame(op Op) ([]byte, error) {
	payload, err := codec.Default.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("encode journal op: %w", err)
	}
	if lenSize+len(payload) > device.BlockSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrOpTooLarge, len(payload))
	}
	frame := make([]byte, lenSize, lenSize+len(payload))
	binary.LittleEndian.PutUint64(frame, uint64(len(payload)))
	return append(frame, payload...), nil
}

// scan decodes frames from the start of region and returns them with the
// offset at which the log ends.
func scan(region []byte) ([]Op, uint64, error) {
	var ops []Op
	size := uint64(len(region))
	pos := uint64(0)
	for pos+lenSize <= size {
		rem := device.BlockSize - pos%device.BlockSize
		if rem < lenSize {
			pos += rem
			continue
		}
		n := binary.LittleEndian.Uint64(region[pos:])
		switch {
		case n == 0:
			return ops, pos, nil
		case n == skipMarker:
			pos += rem
			continue
		case n > rem-lenSize:
			return nil, 0, fmt.Errorf("%w: frame of %d bytes at offset %d", ErrCorrupt, n, pos)
		}
		var op Op
		if err := codec.Default.Unmarshal(region[pos+lenSize:pos+lenSize+n], &op); err != nil {
			return nil, 0, fmt.Errorf("%w: offset %d: %w", ErrCorrupt, pos, err)
		}
		ops = append(ops, op)
		pos += lenSize + n
	}
	return ops, pos, nil
}

func pending(ops []Op) Report {
	open := make(map[uint64]Op)
	for _, op := range ops {
		switch op.Type {
		case OpBegin:
			open[op.ID] = op
		case OpEnd:
			delete(open, op.ID)
		}
	}
	r := Report{Dirty: len(open) > 0}
	for _, op := range open {
		r.Pending = append(r.Pending, op)
	}
	slices.SortFunc(r.Pending, func(a, b Op) int { return cmp.Compare(a.ID, b.ID) })
	return r
}
