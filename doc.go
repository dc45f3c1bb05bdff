// Package vecfs is an embedded block storage engine with a small file
// tree, typed attributes and attribute queries, including cosine
// similarity over vector attributes.
//
// A store lives on a device.Device of 4096-byte blocks. Block 0 holds the
// superblock, the next ten blocks a journal of begin/end markers, followed
// by a bitmap of used blocks. Every object (file, directory, symlink) is
// one inode block whose id is its block number; data lives in extents of
// further blocks.
//
// # Quick Start
//
//	dev := device.NewMemory(2560)
//	eng, _ := vecfs.Format(dev)
//	defer eng.Close()
//
//	id, _ := eng.CreateFile(eng.RootID(), "notes.txt")
//	_ = eng.WriteData(id, 0, []byte("Hello, "))
//	_ = eng.WriteData(id, 7, []byte("World!"))
//	data, _ := eng.ReadData(id, 0, 13) // "Hello, World!"
//
// File-backed stores are created with device.CreateFile and reopened with
// device.OpenFile and Mount:
//
//	dev, _ := device.OpenFile("/var/lib/app/store.vfs")
//	eng, _ := vecfs.Mount(dev, vecfs.WithBlockCache(1024))
//
// # Attributes and Queries
//
// Attributes are typed values (int, float, string, bytes, float32 vector)
// stored inside the inode. Every SetAttribute is also appended to a hash
// catalog so equality queries do not scan:
//
//	_ = eng.SetAttribute(id, "author", attr.String("alice"))
//	_ = eng.SetAttribute(id, "embedding", attr.Vector([]float32{0.9, 0.1}))
//
//	ids, _ := eng.Query(`author == "alice"`)
//	ids, _ = eng.Query(`similarity(embedding, [1, 0]) > 0.8`)
//
// Catalog hits are verified against the live inode, so stale entries left
// by overwrites and removals never show up. CompactCatalog drops them.
//
// # Durability
//
// Each mutation is planned in memory first; an inode that would outgrow
// its block fails with ErrTooLarge before anything is written. Writes are
// then bracketed by journal begin/end markers. A mount that finds an
// unmatched begin reports it through Recovery and the logger; no repair
// is attempted.
//
// # Errors
//
// Failures are returned as *Error carrying the operation and object id.
// The sentinels in this package work with errors.Is:
//
//	if errors.Is(err, vecfs.ErrNoSpace) { ... }
//
// # Observability
//
// See WithLogger and WithMetricsCollector. Both default to no-ops.
package vecfs
