package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/vecfs/blobstore"
	"github.com/hupe1980/vecfs/codec"
	"github.com/hupe1980/vecfs/device"
	"github.com/hupe1980/vecfs/internal/hash"
)

// ManifestVersion is the manifest format written by Export.
const ManifestVersion = 1

var (
	// ErrChecksumMismatch is returned when a chunk does not match its CRC32C.
	ErrChecksumMismatch = errors.New("backup: chunk checksum mismatch")
	// ErrInvalidManifest is returned for a manifest Import cannot use.
	ErrInvalidManifest = errors.New("backup: invalid manifest")
	// ErrDeviceTooSmall is returned when the target holds fewer blocks than
	// the backup.
	ErrDeviceTooSmall = errors.New("backup: target device too small")
)

// Manifest describes one backup.
type Manifest struct {
	Version     int     `cbor:"1,keyasint"`
	BlockSize   uint64  `cbor:"2,keyasint"`
	BlockCount  uint64  `cbor:"3,keyasint"`
	ChunkBlocks uint64  `cbor:"4,keyasint"`
	Chunks      []Chunk `cbor:"5,keyasint"`
}

// Chunk is one uploaded run of blocks.
type Chunk struct {
	FirstBlock  uint64      `cbor:"1,keyasint"`
	Blocks      uint64      `cbor:"2,keyasint"`
	Compression Compression `cbor:"3,keyasint"`
	RawLen      uint64      `cbor:"4,keyasint"`
	StoredLen   uint64      `cbor:"5,keyasint"`
	CRC32C      uint32      `cbor:"6,keyasint"`
}

// StoredBytes sums the uploaded chunk sizes.
func (m *Manifest) StoredBytes() uint64 {
	var n uint64
	for _, c := range m.Chunks {
		n += c.StoredLen
	}
	return n
}

// ManifestName returns the blob name of a backup's manifest.
func ManifestName(name string) string { return name + "/manifest" }

// ChunkName returns the blob name of a backup's i-th chunk.
func ChunkName(name string, i int) string { return fmt.Sprintf("%s/chunk-%08d", name, i) }

// Export uploads every block of dev to store under name and returns the
// manifest it wrote. The manifest is written last, so a backup without
// one is incomplete.
func Export(ctx context.Context, dev device.Device, store blobstore.Store, name string, optFns ...Option) (*Manifest, error) {
	opts := applyOptions(optFns)
	start := time.Now()

	blocks := dev.BlockCount()
	n := int((blocks + opts.chunkBlocks - 1) / opts.chunkBlocks)
	m := &Manifest{
		Version:     ManifestVersion,
		BlockSize:   device.BlockSize,
		BlockCount:  blocks,
		ChunkBlocks: opts.chunkBlocks,
		Chunks:      make([]Chunk, n),
	}
	limiter := opts.limiter(int(opts.chunkBlocks * device.BlockSize))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	for i := range n {
		g.Go(func() error {
			first := uint64(i) * opts.chunkBlocks
			count := min(opts.chunkBlocks, blocks-first)

			raw, err := readChunk(dev, first, count)
			if err != nil {
				return err
			}
			stored, used, err := compress(raw, opts.compression)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			if err := wait(gctx, limiter, len(stored)); err != nil {
				return err
			}
			if err := store.Put(gctx, ChunkName(name, i), stored); err != nil {
				return fmt.Errorf("upload chunk %d: %w", i, err)
			}

			m.Chunks[i] = Chunk{
				FirstBlock:  first,
				Blocks:      count,
				Compression: used,
				RawLen:      uint64(len(raw)),
				StoredLen:   uint64(len(stored)),
				CRC32C:      hash.CRC32C(raw),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data, err := encodeManifest(opts.manifest, m)
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, ManifestName(name), data); err != nil {
		return nil, fmt.Errorf("upload manifest: %w", err)
	}

	opts.logger.InfoContext(ctx, "backup exported",
		"name", name,
		"blocks", blocks,
		"chunks", n,
		"stored_bytes", m.StoredBytes(),
		"duration", time.Since(start),
	)
	return m, nil
}

// ReadManifest fetches and validates the manifest of backup name.
func ReadManifest(ctx context.Context, store blobstore.Store, name string) (*Manifest, error) {
	data, err := store.Get(ctx, ManifestName(name))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := decodeManifest(data)
	if err != nil {
		return nil, err
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// encodeManifest writes the codec name, a newline and the encoded manifest.
func encodeManifest(c codec.Codec, m *Manifest) ([]byte, error) {
	payload, err := c.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	data := make([]byte, 0, len(c.Name())+1+len(payload))
	data = append(data, c.Name()...)
	data = append(data, '\n')
	return append(data, payload...), nil
}

func decodeManifest(data []byte) (*Manifest, error) {
	name, payload, ok := bytes.Cut(data, []byte{'\n'})
	if !ok {
		return nil, fmt.Errorf("%w: missing codec name", ErrInvalidManifest)
	}
	c, ok := codec.ByName(string(name))
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrInvalidManifest, name)
	}
	var m Manifest
	if err := c.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	switch {
	case m.Version != ManifestVersion:
		return fmt.Errorf("%w: version %d", ErrInvalidManifest, m.Version)
	case m.BlockSize != device.BlockSize:
		return fmt.Errorf("%w: block size %d", ErrInvalidManifest, m.BlockSize)
	}
	var next uint64
	for i, c := range m.Chunks {
		if c.FirstBlock != next || c.Blocks == 0 || c.RawLen != c.Blocks*device.BlockSize {
			return fmt.Errorf("%w: chunk %d out of sequence", ErrInvalidManifest, i)
		}
		next += c.Blocks
	}
	if next != m.BlockCount {
		return fmt.Errorf("%w: chunks cover %d of %d blocks", ErrInvalidManifest, next, m.BlockCount)
	}
	return nil
}

// Import writes backup name from store onto dev. dev must hold at least
// as many blocks as the backup; every chunk is verified before it is
// written.
func Import(ctx context.Context, store blobstore.Store, name string, dev device.Device, optFns ...Option) (*Manifest, error) {
	opts := applyOptions(optFns)
	start := time.Now()

	m, err := ReadManifest(ctx, store, name)
	if err != nil {
		return nil, err
	}
	if dev.BlockCount() < m.BlockCount {
		return nil, fmt.Errorf("%w: %d blocks, backup has %d", ErrDeviceTooSmall, dev.BlockCount(), m.BlockCount)
	}
	// Chunk sizes come from the manifest; the local WithChunkBlocks does
	// not apply to an existing backup.
	var largest uint64
	for _, c := range m.Chunks {
		largest = max(largest, c.StoredLen)
	}
	limiter := opts.limiter(int(largest))

	var writeMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	for i, c := range m.Chunks {
		g.Go(func() error {
			if err := wait(gctx, limiter, int(c.StoredLen)); err != nil {
				return err
			}
			stored, err := store.Get(gctx, ChunkName(name, i))
			if err != nil {
				return fmt.Errorf("download chunk %d: %w", i, err)
			}
			raw, err := decompress(stored, c.Compression, c.RawLen)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			if got := hash.CRC32C(raw); got != c.CRC32C {
				return fmt.Errorf("%w: chunk %d: %08x != %08x", ErrChecksumMismatch, i, got, c.CRC32C)
			}

			writeMu.Lock()
			defer writeMu.Unlock()
			return writeChunk(dev, c.FirstBlock, raw)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := dev.Sync(); err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}

	opts.logger.InfoContext(ctx, "backup imported",
		"name", name,
		"blocks", m.BlockCount,
		"chunks", len(m.Chunks),
		"duration", time.Since(start),
	)
	return m, nil
}

// Remove deletes every blob of backup name, the manifest first.
func Remove(ctx context.Context, store blobstore.Store, name string) error {
	if err := store.Delete(ctx, ManifestName(name)); err != nil {
		return err
	}
	names, err := store.List(ctx, name+"/")
	if err != nil {
		return err
	}
	for _, n := range names {
		if err := store.Delete(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func readChunk(dev device.Device, first, count uint64) ([]byte, error) {
	raw := make([]byte, count*device.BlockSize)
	for j := range count {
		buf := raw[j*device.BlockSize : (j+1)*device.BlockSize]
		if err := dev.ReadBlock(first+j, buf); err != nil {
			return nil, fmt.Errorf("read block %d: %w", first+j, err)
		}
	}
	return raw, nil
}

func writeChunk(dev device.Device, first uint64, raw []byte) error {
	for j := uint64(0); j*device.BlockSize < uint64(len(raw)); j++ {
		buf := raw[j*device.BlockSize : (j+1)*device.BlockSize]
		if err := dev.WriteBlock(first+j, buf); err != nil {
			return fmt.Errorf("write block %d: %w", first+j, err)
		}
	}
	return nil
}

func wait(ctx context.Context, limiter *rate.Limiter, n int) error {
	if limiter == nil || n == 0 {
		return nil
	}
	return limiter.WaitN(ctx, n)
}
