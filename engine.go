package vecfs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/vecfs/device"
	"github.com/hupe1980/vecfs/inode"
	"github.com/hupe1980/vecfs/internal/catalog"
	"github.com/hupe1980/vecfs/internal/journal"
	"github.com/hupe1980/vecfs/internal/spacemap"
	"github.com/hupe1980/vecfs/internal/superblock"
)

// Kind is the object type.
type Kind = inode.Kind

const (
	KindFile      = inode.KindFile
	KindDirectory = inode.KindDirectory
	KindSymlink   = inode.KindSymlink
)

// DirEntry is one name in a directory.
type DirEntry = inode.DirEntry

// Inode is the metadata record of an object.
type Inode = inode.Inode

// Superblock describes the on-disk layout.
type Superblock = superblock.Superblock

// RecoveryReport lists operations the journal saw begin but never end.
type RecoveryReport = journal.Report

// Engine is a mounted vecfs store.
//
// All methods are safe for concurrent use; they are serialized by one
// mutex. The engine owns the device and closes it in Close.
type Engine struct {
	mu sync.Mutex

	dev      device.Device
	cache    *device.Cached
	sb       *superblock.Superblock
	space    *spacemap.Map
	journal  *journal.Journal
	catalog  *catalog.Catalog
	recovery journal.Report
	opts     options
	closed   bool
}

// Format writes an empty store onto dev and returns it mounted.
//
// Layout: superblock at block 0, the journal at blocks 1..10, the space
// map right after, and the root directory in the first free block.
func Format(dev device.Device, optFns ...Option) (eng *Engine, err error) {
	opts := applyOptions(optFns)
	ctx := context.Background()
	blocks := dev.BlockCount()
	defer func() {
		var root, free uint64
		if eng != nil {
			root, free = eng.sb.RootID, eng.sb.FreeBlocks
		}
		opts.logger.LogMount(ctx, "format", blocks, root, free, err)
	}()

	dev = wrapCache(dev, opts)
	sb, err := superblock.New(blocks)
	if err != nil {
		return nil, err
	}
	if err := journal.Format(dev, sb.JournalStart, sb.JournalBlocks); err != nil {
		return nil, err
	}

	space := spacemap.New(blocks)
	for _, id := range sb.Reserved() {
		if err := space.MarkUsed(id); err != nil {
			return nil, fmt.Errorf("format: %w", err)
		}
	}

	e := newEngine(dev, sb, space, opts)

	c := e.newChange()
	root, err := c.create(inode.KindDirectory)
	if err == nil {
		err = c.put(root)
	}
	if err != nil {
		return nil, fmt.Errorf("format: create root: %w", err)
	}
	e.sb.RootID = root.ID
	if err := c.apply(); err != nil {
		return nil, fmt.Errorf("format: %w", err)
	}

	if e.journal, err = journal.Open(dev, sb.JournalStart, sb.JournalBlocks); err != nil {
		return nil, err
	}
	if err := dev.Sync(); err != nil {
		return nil, fmt.Errorf("format: sync: %w", err)
	}
	return e, nil
}

// Mount opens an existing store on dev.
//
// A dirty journal does not fail the mount; it is logged and available
// through Recovery. No repair is attempted.
func Mount(dev device.Device, optFns ...Option) (eng *Engine, err error) {
	opts := applyOptions(optFns)
	ctx := context.Background()
	defer func() {
		var blocks, root, free uint64
		if eng != nil {
			blocks, root, free = eng.sb.BlockCount, eng.sb.RootID, eng.sb.FreeBlocks
		}
		opts.logger.LogMount(ctx, "mount", blocks, root, free, err)
	}()

	dev = wrapCache(dev, opts)
	sb, err := superblock.Read(dev)
	if err != nil {
		return nil, err
	}
	if sb.BlockCount > dev.BlockCount() {
		return nil, fmt.Errorf("%w: superblock claims %d blocks, device has %d", ErrCorrupt, sb.BlockCount, dev.BlockCount())
	}

	space, err := spacemap.Load(dev, sb.BitmapStart, sb.BitmapBlocks, sb.BlockCount)
	if err != nil {
		return nil, err
	}

	e := newEngine(dev, sb, space, opts)
	if e.journal, err = journal.Open(dev, sb.JournalStart, sb.JournalBlocks); err != nil {
		return nil, err
	}
	if e.recovery, err = e.journal.CheckRecovery(); err != nil {
		return nil, err
	}
	opts.logger.LogRecovery(ctx, e.recovery)

	root, err := e.readInode(sb.RootID)
	if err != nil {
		return nil, fmt.Errorf("mount: root: %w", err)
	}
	if root.Kind != inode.KindDirectory {
		return nil, fmt.Errorf("%w: root %d is a %s", ErrCorrupt, root.ID, root.Kind)
	}
	return e, nil
}

func wrapCache(dev device.Device, opts options) device.Device {
	if opts.cacheBlocks > 0 {
		return device.NewCached(dev, opts.cacheBlocks)
	}
	return dev
}

func newEngine(dev device.Device, sb *superblock.Superblock, space *spacemap.Map, opts options) *Engine {
	e := &Engine{
		dev:   dev,
		sb:    sb,
		space: space,
		opts:  opts,
	}
	if c, ok := dev.(*device.Cached); ok {
		e.cache = c
	}
	e.catalog = catalog.New(&catalogStore{e: e})
	return e
}

// Close syncs and closes the device.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return errors.Join(e.dev.Sync(), e.dev.Close())
}

// Sync flushes the device.
func (e *Engine) Sync() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return e.dev.Sync()
}

// Superblock returns a copy of the current superblock.
func (e *Engine) Superblock() Superblock {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.sb
}

// RootID returns the id of the root directory.
func (e *Engine) RootID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sb.RootID
}

// Recovery returns the journal check made at mount.
func (e *Engine) Recovery() RecoveryReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recovery
}

// AcknowledgeRecovery empties the journal and clears the report returned
// by Recovery. Call it once the interrupted operations have been dealt
// with; until then every mount reports them again. Operations that failed
// in this session are forgotten too.
func (e *Engine) AcknowledgeRecovery() (err error) {
	done, err := e.enter("acknowledge-recovery")
	if err != nil {
		return err
	}
	defer done(0, &err)

	if err := e.journal.Reset(); err != nil {
		return err
	}
	e.recovery = RecoveryReport{}
	return nil
}

// Stats is a point-in-time view of the store.
type Stats struct {
	BlockCount     uint64
	FreeBlocks     uint64
	UsedBlocks     uint64
	CatalogEntries int
	JournalCursor  uint64
	JournalPending int
	JournalFailed  int
	JournalResets  int
	CacheHits      int64
	CacheMisses    int64
}

// Stats returns space, catalog, journal and cache counters.
func (e *Engine) Stats() (Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Stats{}, ErrClosed
	}

	n, err := e.catalog.Len()
	if err != nil {
		return Stats{}, err
	}
	s := Stats{
		BlockCount:     e.sb.BlockCount,
		FreeBlocks:     e.sb.FreeBlocks,
		UsedBlocks:     e.space.UsedCount(),
		CatalogEntries: n,
		JournalCursor:  e.journal.Cursor(),
		JournalPending: len(e.journal.Pending()),
		JournalFailed:  e.journal.Abandoned(),
		JournalResets:  e.journal.Resets(),
	}
	if e.cache != nil {
		s.CacheHits, s.CacheMisses = e.cache.Stats()
	}
	return s, nil
}

// enter takes the lock for a mutation and starts timing it. The returned
// func records metrics and logs; defer it with the final error.
func (e *Engine) enter(op string) (func(id uint64, err *error), error) {
	return e.lock(op, true)
}

// enterRead takes the lock for a read. Reads are neither logged nor
// counted.
func (e *Engine) enterRead(op string) (func(id uint64, err *error), error) {
	return e.lock(op, false)
}

func (e *Engine) lock(op string, observe bool) (func(id uint64, err *error), error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, opError(op, 0, ErrClosed)
	}
	start := time.Now()
	return func(id uint64, errp *error) {
		defer e.mu.Unlock()
		if *errp != nil {
			*errp = opError(op, id, *errp)
		}
		if observe {
			e.opts.metricsCollector.RecordMutation(op, time.Since(start), *errp)
			e.opts.logger.LogMutation(context.Background(), op, id, *errp)
		}
	}, nil
}

// allocate takes one block from the space map.
func (e *Engine) allocate() (uint64, error) {
	return e.space.Allocate()
}

// release returns blocks to the space map without persisting it.
func (e *Engine) release(ids []uint64) {
	for _, id := range ids {
		_ = e.space.Free(id)
	}
}

// persistSpace writes the space map and then the superblock with the
// matching free count.
func (e *Engine) persistSpace() error {
	if err := e.space.Save(e.dev, e.sb.BitmapStart); err != nil {
		return err
	}
	e.sb.FreeBlocks = e.space.FreeCount()
	return e.sb.Write(e.dev)
}

// readInode loads a live inode. Unallocated blocks, blocks that do not
// hold an inode and inodes recorded under another id are ErrNotFound.
func (e *Engine) readInode(id uint64) (*inode.Inode, error) {
	if id == 0 || id >= e.sb.BlockCount || !e.space.IsUsed(id) {
		return nil, fmt.Errorf("%w: object %d", ErrNotFound, id)
	}
	buf := make([]byte, device.BlockSize)
	if err := e.dev.ReadBlock(id, buf); err != nil {
		return nil, err
	}
	in, err := inode.Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: object %d: %w", ErrNotFound, id, err)
	}
	if in.ID != id {
		return nil, fmt.Errorf("%w: object %d holds inode %d", ErrNotFound, id, in.ID)
	}
	return in, nil
}

func (e *Engine) writeBlock(id uint64, block []byte) error {
	if err := e.dev.WriteBlock(id, block); err != nil {
		return fmt.Errorf("write block %d: %w", id, err)
	}
	return nil
}
