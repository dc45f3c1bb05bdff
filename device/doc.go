// Package device provides the fixed-size block I/O abstraction underneath
// the engine.
//
// A [Device] is an addressable sequence of 4096-byte blocks. It owns no
// semantics beyond reading and writing whole blocks by index and reporting
// its capacity.
//
// # Implementations
//
//   - [File]: a host file. Capacity is the file length in whole blocks.
//     Reads and writes are positional, and the file is held under an
//     exclusive advisory lock for as long as it is open.
//   - [Memory]: an in-memory buffer that grows on write. Used for tests.
//   - [Cached]: a write-through LRU block cache wrapping another Device.
package device
