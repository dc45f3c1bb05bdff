package inode

import (
	"fmt"

	"github.com/hupe1980/vecfs/codec"
)

// DirEntry is one name in a directory.
type DirEntry struct {
	Name string `json:"name" cbor:"1,keyasint"`
	ID   uint64 `json:"id" cbor:"2,keyasint"`
	Kind Kind   `json:"kind" cbor:"3,keyasint"`
}

// EncodeEntries serializes a directory's entry list with codec.Default.
func EncodeEntries(entries []DirEntry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	b, err := codec.Default.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode directory entries: %w", err)
	}
	return b, nil
}

// DecodeEntries parses a directory's data. Empty data is an empty directory.
func DecodeEntries(data []byte) ([]DirEntry, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var entries []DirEntry
	if err := codec.Default.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: directory entries: %w", ErrCorrupt, err)
	}
	return entries, nil
}

// FindEntry returns the index of name in entries, or -1.
func FindEntry(entries []DirEntry, name string) int {
	for i, e := range entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}
