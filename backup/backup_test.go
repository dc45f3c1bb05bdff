package backup

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecfs"
	"github.com/hupe1980/vecfs/blobstore"
	"github.com/hupe1980/vecfs/codec"
	"github.com/hupe1980/vecfs/device"
	"github.com/hupe1980/vecfs/testutil"
)

// newPatterned returns a memory device whose blocks hold random data,
// zeros and a repeating pattern in turn.
func newPatterned(t *testing.T, blocks uint64) *device.Memory {
	t.Helper()
	rng := testutil.NewRNG(7)
	dev := device.NewMemory(blocks)
	pattern := bytes.Repeat([]byte("vecfs"), device.BlockSize/5+1)[:device.BlockSize]
	for id := range blocks {
		switch id % 3 {
		case 0:
			require.NoError(t, dev.WriteBlock(id, rng.Bytes(device.BlockSize)))
		case 1:
			require.NoError(t, dev.WriteBlock(id, pattern))
		}
	}
	return dev
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			src := newPatterned(t, 100)
			store := blobstore.NewMemoryStore()

			m, err := Export(ctx, src, store, "snap", WithCompression(c), WithChunkBlocks(16))
			require.NoError(t, err)
			assert.Equal(t, uint64(100), m.BlockCount)
			require.Len(t, m.Chunks, 7)
			assert.Equal(t, uint64(4), m.Chunks[6].Blocks)
			// Seven chunks and the manifest.
			assert.Equal(t, 8, store.Len())

			dst := device.NewMemory(100)
			got, err := Import(ctx, store, "snap", dst)
			require.NoError(t, err)
			assert.Equal(t, m, got)
			assert.Equal(t, src.Bytes(), dst.Bytes())
		})
	}
}

func TestExportImport_ManifestCodec(t *testing.T) {
	ctx := context.Background()
	src := newPatterned(t, 8)

	for _, c := range []codec.Codec{codec.CBOR{}, codec.JSON{}, codec.GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			store := blobstore.NewMemoryStore()
			m, err := Export(ctx, src, store, "snap", WithManifestCodec(c))
			require.NoError(t, err)

			raw, err := store.Get(ctx, ManifestName("snap"))
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(raw, []byte(c.Name()+"\n")))

			dst := device.NewMemory(8)
			got, err := Import(ctx, store, "snap", dst)
			require.NoError(t, err)
			assert.Equal(t, m, got)
			assert.Equal(t, src.Bytes(), dst.Bytes())
		})
	}
}

func TestExport_Compresses(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	m, err := Export(ctx, device.NewMemory(64), store, "zeros")
	require.NoError(t, err)
	require.Len(t, m.Chunks, 1)
	assert.Equal(t, CompressionZstd, m.Chunks[0].Compression)
	assert.Less(t, m.StoredBytes(), uint64(64*device.BlockSize)/10)
}

func TestExportImport_Engine(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.vfs")

	dev, err := device.CreateFile(path, 2560)
	require.NoError(t, err)
	eng, err := vecfs.Format(dev)
	require.NoError(t, err)

	payload := testutil.NewRNG(3).Bytes(10000)
	id, err := eng.CreateFile(eng.RootID(), "data.bin")
	require.NoError(t, err)
	require.NoError(t, eng.WriteData(id, 0, payload))
	require.NoError(t, eng.Close())

	src, err := device.OpenFile(path)
	require.NoError(t, err)
	store := blobstore.NewLocalStore(t.TempDir())
	_, err = Export(ctx, src, store, "nightly/1", WithConcurrency(2))
	require.NoError(t, err)
	require.NoError(t, src.Close())

	dst := device.NewMemory(2560)
	_, err = Import(ctx, store, "nightly/1", dst)
	require.NoError(t, err)

	restored, err := vecfs.Mount(dst)
	require.NoError(t, err)
	defer restored.Close()

	got, err := restored.Resolve("/data.bin")
	require.NoError(t, err)
	assert.Equal(t, id, got)
	data, err := restored.ReadData(got, 0, uint64(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.False(t, restored.Recovery().Dirty)
}

func TestImport_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing", func(t *testing.T) {
		_, err := Import(ctx, blobstore.NewMemoryStore(), "nope", device.NewMemory(8))
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("DeviceTooSmall", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		_, err := Export(ctx, device.NewMemory(32), store, "snap")
		require.NoError(t, err)

		_, err = Import(ctx, store, "snap", device.NewMemory(16))
		assert.ErrorIs(t, err, ErrDeviceTooSmall)
	})

	t.Run("ChecksumMismatch", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		_, err := Export(ctx, newPatterned(t, 8), store, "snap", WithCompression(CompressionNone))
		require.NoError(t, err)

		chunk, err := store.Get(ctx, ChunkName("snap", 0))
		require.NoError(t, err)
		chunk[100] ^= 0xff
		require.NoError(t, store.Put(ctx, ChunkName("snap", 0), chunk))

		_, err = Import(ctx, store, "snap", device.NewMemory(8))
		assert.ErrorIs(t, err, ErrChecksumMismatch)
	})

	t.Run("InvalidManifest", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		require.NoError(t, store.Put(ctx, ManifestName("snap"), []byte("not cbor")))

		_, err := Import(ctx, store, "snap", device.NewMemory(8))
		assert.ErrorIs(t, err, ErrInvalidManifest)
	})

	t.Run("UnknownCodec", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		require.NoError(t, store.Put(ctx, ManifestName("snap"), []byte("gob\n{}")))

		_, err := Import(ctx, store, "snap", device.NewMemory(8))
		assert.ErrorIs(t, err, ErrInvalidManifest)
	})

	t.Run("Gap", func(t *testing.T) {
		m := &Manifest{
			Version:    ManifestVersion,
			BlockSize:  device.BlockSize,
			BlockCount: 8,
			Chunks: []Chunk{
				{FirstBlock: 0, Blocks: 4, RawLen: 4 * device.BlockSize},
				{FirstBlock: 5, Blocks: 3, RawLen: 3 * device.BlockSize},
			},
		}
		assert.ErrorIs(t, m.validate(), ErrInvalidManifest)
	})
}

func TestExport_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := blobstore.NewMemoryStore()
	_, err := Export(ctx, device.NewMemory(32), store, "snap")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = store.Get(context.Background(), ManifestName("snap"))
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestExport_RateLimit(t *testing.T) {
	// The burst covers five blocks; the sixth waits a fifth of a second.
	store := blobstore.NewMemoryStore()
	start := time.Now()
	_, err := Export(context.Background(), newPatterned(t, 6), store, "snap",
		WithCompression(CompressionNone),
		WithChunkBlocks(1),
		WithConcurrency(1),
		WithRateLimit(device.BlockSize*5),
	)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestImport_RateLimitUsesManifestChunks(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	src := newPatterned(t, 16)
	_, err := Export(ctx, src, store, "snap", WithCompression(CompressionNone), WithChunkBlocks(16))
	require.NoError(t, err)

	// The importer's own chunk size is smaller than the exported chunks.
	dst := device.NewMemory(16)
	_, err = Import(ctx, store, "snap", dst, WithChunkBlocks(1), WithRateLimit(device.BlockSize))
	require.NoError(t, err)
	assert.Equal(t, src.Bytes(), dst.Bytes())
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	_, err := Export(ctx, device.NewMemory(32), store, "a", WithChunkBlocks(8))
	require.NoError(t, err)
	_, err = Export(ctx, device.NewMemory(8), store, "b")
	require.NoError(t, err)

	require.NoError(t, Remove(ctx, store, "a"))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b/chunk-00000000", "b/manifest"}, names)
}

func TestExport_Logs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	_, err := Export(context.Background(), device.NewMemory(8), blobstore.NewMemoryStore(), "snap", WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "backup exported")
	assert.Contains(t, buf.String(), "name=snap")
}
