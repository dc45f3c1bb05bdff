package journal

import (
	"encoding/binary"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecfs/device"
)

const (
	testStart  = 1
	testBlocks = 10
)

func newJournal(t *testing.T) (*device.Memory, *Journal) {
	t.Helper()
	dev := device.NewMemory(16)
	require.NoError(t, Format(dev, testStart, testBlocks))
	j, err := Open(dev, testStart, testBlocks)
	require.NoError(t, err)
	return dev, j
}

func TestBeginEnd_Clean(t *testing.T) {
	_, j := newJournal(t)

	id, err := j.Begin("create notes.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	require.NoError(t, j.End(id))

	r, err := j.CheckRecovery()
	require.NoError(t, err)
	assert.False(t, r.Dirty)
	assert.Empty(t, r.Pending)
}

func TestUnmatchedBegin_Dirty(t *testing.T) {
	dev, j := newJournal(t)

	a, err := j.Begin("mkdir docs")
	require.NoError(t, err)
	b, err := j.Begin("write 13")
	require.NoError(t, err)
	require.NoError(t, j.End(a))

	r, err := j.CheckRecovery()
	require.NoError(t, err)
	assert.True(t, r.Dirty)
	require.Len(t, r.Pending, 1)
	assert.Equal(t, b, r.Pending[0].ID)
	assert.Equal(t, "write 13", r.Pending[0].Description)

	// A fresh handle sees the same state and continues the id sequence.
	j2, err := Open(dev, testStart, testBlocks)
	require.NoError(t, err)
	assert.Equal(t, j.Cursor(), j2.Cursor())
	assert.Equal(t, []Op{{Type: OpBegin, ID: b, Description: "write 13"}}, j2.Pending())

	c, err := j2.Begin("next")
	require.NoError(t, err)
	assert.Equal(t, b+1, c)
}

func TestEnd_Unknown(t *testing.T) {
	_, j := newJournal(t)
	assert.ErrorIs(t, j.End(42), ErrUnknownOp)
}

func TestFramesNeverStraddleBlocks(t *testing.T) {
	dev, j := newJournal(t)

	desc := strings.Repeat("x", 1000)
	for range 8 {
		id, err := j.Begin(desc)
		require.NoError(t, err)
		require.NoError(t, j.End(id))
	}
	// Four ~1 KiB frames fit per block, so the log has crossed into the
	// second block by now.
	assert.Greater(t, j.Cursor(), uint64(device.BlockSize))

	region, err := j.readRegion()
	require.NoError(t, err)
	ops, end, err := scan(region)
	require.NoError(t, err)
	assert.Len(t, ops, 16)
	assert.Equal(t, j.Cursor(), end)

	// The tail of block 0 carries a skip marker or is too short for one.
	buf := make([]byte, device.BlockSize)
	require.NoError(t, dev.ReadBlock(testStart, buf))
	pos := uint64(0)
	for {
		n := binary.LittleEndian.Uint64(buf[pos:])
		if n == skipMarker {
			break
		}
		require.NotZero(t, n)
		pos += lenSize + n
		if device.BlockSize-pos < lenSize {
			break
		}
	}
}

func TestWrap_ResetsAndRelogsOpenBegins(t *testing.T) {
	_, j := newJournal(t)

	stuck, err := j.Begin("interrupted")
	require.NoError(t, err)

	desc := strings.Repeat("y", 2000)
	for range 40 {
		id, err := j.Begin(desc)
		require.NoError(t, err)
		require.NoError(t, j.End(id))
	}
	assert.Positive(t, j.Resets())
	assert.Less(t, j.Cursor(), uint64(testBlocks*device.BlockSize))

	r, err := j.CheckRecovery()
	require.NoError(t, err)
	assert.True(t, r.Dirty)
	require.Len(t, r.Pending, 1)
	assert.Equal(t, stuck, r.Pending[0].ID)

	require.NoError(t, j.End(stuck))
	r, err = j.CheckRecovery()
	require.NoError(t, err)
	assert.False(t, r.Dirty)
}

func TestAbandon_WrapsCarryOneMarker(t *testing.T) {
	_, j := newJournal(t)

	pad := strings.Repeat("x", 1000)
	var first uint64
	for i := range 100 {
		id, err := j.Begin(fmt.Sprintf("op %03d %s", i, pad))
		require.NoError(t, err)
		if i == 0 {
			first = id
		}
		j.Abandon(id)
	}
	assert.Equal(t, 100, j.Abandoned())
	assert.Empty(t, j.Pending())

	desc := strings.Repeat("y", 2000)
	for range 40 {
		id, err := j.Begin(desc)
		require.NoError(t, err)
		require.NoError(t, j.End(id))
	}
	assert.Positive(t, j.Resets())

	r, err := j.CheckRecovery()
	require.NoError(t, err)
	assert.True(t, r.Dirty)
	require.Len(t, r.Pending, 1)
	assert.Equal(t, first, r.Pending[0].ID)
	assert.True(t, strings.HasPrefix(r.Pending[0].Description, "100 failed operations, last: op 099"))

	require.NoError(t, j.Reset())
	assert.Zero(t, j.Abandoned())
	r, err = j.CheckRecovery()
	require.NoError(t, err)
	assert.False(t, r.Dirty)
}

func TestAbandon_UnknownIgnored(t *testing.T) {
	_, j := newJournal(t)
	j.Abandon(42)
	assert.Zero(t, j.Abandoned())

	id, err := j.Begin("once")
	require.NoError(t, err)
	j.Abandon(id)
	j.Abandon(id)
	assert.Equal(t, 1, j.Abandoned())
	assert.ErrorIs(t, j.End(id), ErrUnknownOp)
}

func TestReset(t *testing.T) {
	dev, j := newJournal(t)
	_, err := j.Begin("left open")
	require.NoError(t, err)

	require.NoError(t, j.Reset())
	assert.Zero(t, j.Cursor())
	assert.Empty(t, j.Pending())

	r, err := j.CheckRecovery()
	require.NoError(t, err)
	assert.False(t, r.Dirty)

	j2, err := Open(dev, testStart, testBlocks)
	require.NoError(t, err)
	assert.Zero(t, j2.Cursor())
}

func TestOpTooLarge(t *testing.T) {
	_, j := newJournal(t)
	_, err := j.Begin(strings.Repeat("z", device.BlockSize))
	assert.ErrorIs(t, err, ErrOpTooLarge)
}

func TestScan_Corrupt(t *testing.T) {
	region := make([]byte, device.BlockSize)
	binary.LittleEndian.PutUint64(region, device.BlockSize)
	_, _, err := scan(region)
	assert.ErrorIs(t, err, ErrCorrupt)

	binary.LittleEndian.PutUint64(region, 3)
	copy(region[8:], []byte{0xFF, 0xFF, 0xFF})
	_, _, err = scan(region)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestOpTypeString(t *testing.T) {
	assert.Equal(t, "begin", OpBegin.String())
	assert.Equal(t, "end", OpEnd.String())
	assert.Equal(t, "op(7)", OpType(7).String())
}
