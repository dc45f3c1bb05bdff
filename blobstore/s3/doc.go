// Package s3 provides an S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	store, err := s3.NewStoreFromConfig(ctx, "my-bucket", "backups/")
//	manifest, err := backup.Export(ctx, dev, store, "nightly")
//
// Small blobs are written with a single PutObject carrying a CRC32C
// checksum; blobs of at least UploadConfig.PartSize go through the
// multipart uploader. Listing follows continuation tokens.
package s3
