// Package inode defines the per-object metadata record of vecfs and the
// extent arithmetic that maps file offsets onto device blocks.
//
// An Inode always fits in one block:
//
//	[magic "VINO"][crc32c u32][payload length u32][payload]
//
// The payload carries the id, kind, size, the extent list and the
// attributes in ascending key order. Anything larger fails with
// ErrTooLarge; there are no overflow blocks.
package inode
