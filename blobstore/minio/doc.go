// Package minio stores backup chunks in a MinIO (or any S3-compatible) bucket.
//
// The caller owns the client; Store only maps blob names to object keys
// below an optional prefix.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	})
//	if err != nil {
//	    return err
//	}
//	store := minioblob.NewStore(client, "vecfs", "backups/")
//	manifest, err := backup.Export(ctx, dev, store, "nightly")
//
// Missing objects are reported as blobstore.ErrNotFound.
package minio
