// Package fs abstracts the host file system behind [FileSystem] and [File]
// so devices and local blob stores can run against [FaultyFS] in tests.
//
// [LocalFS] (exported as Default) delegates to package os. [FaultyFS] wraps
// another FileSystem and fails writes once a byte budget is spent or a path
// rule matches:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.SetLimit(device.BlockSize) // the second block write fails
//	dev, err := device.OpenFile(path, device.WithFileSystem(ffs))
//
// File exposes positional I/O only. There is no seek cursor to share, so
// concurrent readers and writers never race between a seek and a transfer.
package fs
