// Package backup copies a vecfs device to a blobstore.Store and back.
//
// Export reads the device in chunks of DefaultChunkBlocks blocks (see
// WithChunkBlocks), compresses each chunk and uploads it as
// <name>/chunk-NNNNNNNN. The manifest at <name>/manifest lists every chunk
// with its compression, raw length and CRC32C. It starts with the name of
// its codec (CBOR unless WithManifestCodec says otherwise) and a newline. Import verifies each
// chunk against the manifest before writing it back.
//
//	store := blobstore.NewLocalStore("/var/backups/vecfs")
//	m, err := backup.Export(ctx, dev, store, "nightly",
//	    backup.WithCompression(backup.CompressionZstd),
//	    backup.WithConcurrency(8),
//	)
//
//	_, err = backup.Import(ctx, store, "nightly", restored)
//
// The device must not be written while an export runs.
package backup
