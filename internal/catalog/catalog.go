// Package catalog implements the attribute equality index.
//
// The catalog is an append-only list of fixed-size entries
//
//	[key hash u64][value hash u64][object id u64]   (little endian)
//
// stored as the data of one object. It answers "which objects may hold
// key == value"; callers verify candidates against the live inode because
// entries are never removed when an attribute changes.
package catalog

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/vecfs/attr"
)

// EntrySize is the encoded size of one Entry.
const EntrySize = 24

// ErrCorrupt is returned when the backing data is not a whole number of
// entries.
var ErrCorrupt = errors.New("corrupt catalog")

// Entry is one (key, value, object) association.
type Entry struct {
	KeyHash   uint64
	ValueHash uint64
	ID        uint64
}

// EntryFor builds the entry recording that object id has key = v.
func EntryFor(key string, v attr.Value, id uint64) Entry {
	return Entry{KeyHash: attr.KeyHash(key), ValueHash: v.Hash(), ID: id}
}

// Store is the byte storage behind a catalog.
type Store interface {
	// ReadAll returns the whole catalog data. No data is not an error.
	ReadAll() ([]byte, error)
	// Append adds data at the end.
	Append(data []byte) error
	// Replace swaps the whole content for data.
	Replace(data []byte) error
}

type pair struct{ key, value uint64 }

// Catalog indexes entries held in a Store.
//
// The inverted index is built from the store on first lookup and kept in
// step with Append. It is not safe for concurrent use.
type Catalog struct {
	store Store
	index map[pair]*roaring64.Bitmap
	count int
}

// New returns a catalog over store.
func New(store Store) *Catalog {
	return &Catalog{store: store}
}

// Append records entries.
func (c *Catalog) Append(entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := c.store.Append(Encode(entries)); err != nil {
		return fmt.Errorf("append catalog: %w", err)
	}
	if c.index != nil {
		c.add(entries)
	}
	return nil
}

// Entries returns every stored entry in append order.
func (c *Catalog) Entries() ([]Entry, error) {
	data, err := c.store.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Decode(data)
}

// Lookup returns the ids recorded for the given key and value hashes.
// The returned bitmap is a copy owned by the caller.
func (c *Catalog) Lookup(keyHash, valueHash uint64) (*roaring64.Bitmap, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	if bm, ok := c.index[pair{keyHash, valueHash}]; ok {
		return bm.Clone(), nil
	}
	return roaring64.New(), nil
}

// LookupValue is Lookup for a key and value.
func (c *Catalog) LookupValue(key string, v attr.Value) (*roaring64.Bitmap, error) {
	return c.Lookup(attr.KeyHash(key), v.Hash())
}

// Rewrite replaces the stored entries. Duplicates are dropped and the
// result is ordered by id, then key hash, then value hash.
func (c *Catalog) Rewrite(entries []Entry) error {
	entries = slices.Clone(entries)
	slices.SortFunc(entries, compareEntries)
	entries = slices.Compact(entries)

	if err := c.store.Replace(Encode(entries)); err != nil {
		return fmt.Errorf("rewrite catalog: %w", err)
	}
	c.index = nil
	c.count = 0
	return nil
}

// Len returns the number of indexed entries, loading the index if needed.
func (c *Catalog) Len() (int, error) {
	if err := c.load(); err != nil {
		return 0, err
	}
	return c.count, nil
}

func (c *Catalog) load() error {
	if c.index != nil {
		return nil
	}
	entries, err := c.Entries()
	if err != nil {
		return err
	}
	c.index = make(map[pair]*roaring64.Bitmap)
	c.count = 0
	c.add(entries)
	return nil
}

func (c *Catalog) add(entries []Entry) {
	for _, e := range entries {
		p := pair{e.KeyHash, e.ValueHash}
		bm, ok := c.index[p]
		if !ok {
			bm = roaring64.New()
			c.index[p] = bm
		}
		bm.Add(e.ID)
	}
	c.count += len(entries)
}

// Encode serializes entries.
func Encode(entries []Entry) []byte {
	buf := make([]byte, 0, len(entries)*EntrySize)
	for _, e := range entries {
		buf = binary.LittleEndian.AppendUint64(buf, e.KeyHash)
		buf = binary.LittleEndian.AppendUint64(buf, e.ValueHash)
		buf = binary.LittleEndian.AppendUint64(buf, e.ID)
	}
	return buf
}

// Decode parses a catalog's data.
func Decode(data []byte) ([]Entry, error) {
	if len(data)%EntrySize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrCorrupt, len(data), EntrySize)
	}
	entries := make([]Entry, len(data)/EntrySize)
	for i := range entries {
		b := data[i*EntrySize:]
		entries[i] = Entry{
			KeyHash:   binary.LittleEndian.Uint64(b[0:8]),
			ValueHash: binary.LittleEndian.Uint64(b[8:16]),
			ID:        binary.LittleEndian.Uint64(b[16:24]),
		}
	}
	return entries, nil
}

func compareEntries(a, b Entry) int {
	switch {
	case a.ID != b.ID:
		return cmp.Compare(a.ID, b.ID)
	case a.KeyHash != b.KeyHash:
		return cmp.Compare(a.KeyHash, b.KeyHash)
	default:
		return cmp.Compare(a.ValueHash, b.ValueHash)
	}
}
