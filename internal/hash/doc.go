// Package hash provides the hashing primitives used by vecfs.
//
// # CRC32-Castagnoli (CRC32C)
//
// Checksums over on-disk records (superblock, inodes, backup chunks) use
// CRC32C, which Go's hash/crc32 accelerates in hardware on x86 (SSE4.2) and
// ARM (CRC extension).
//
//	checksum := hash.CRC32C(data)
//
// # Identity hashing
//
// Sum64 is the one canonical identity hash. The attribute catalog hashes
// keys and values with it, and nothing else in the engine may hash
// attributes any other way. It is BLAKE3 truncated to the first 8 bytes,
// read little endian, so the result is identical on every architecture and
// every Go version.
//
//	keyHash := hash.Sum64String("title")
package hash
