package vecfs

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecfs/device"
	"github.com/hupe1980/vecfs/inode"
	"github.com/hupe1980/vecfs/internal/journal"
	"github.com/hupe1980/vecfs/internal/spacemap"
	"github.com/hupe1980/vecfs/internal/superblock"
)

var (
	// ErrNotFound is returned when an object, name or attribute does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when a directory already holds the name.
	ErrExists = errors.New("file exists")
	// ErrNotDirectory is returned when a directory operation targets another kind.
	ErrNotDirectory = errors.New("not a directory")
	// ErrIsDirectory is returned when a file operation targets a directory.
	ErrIsDirectory = errors.New("is a directory")
	// ErrNotEmpty is returned when removing a directory that still has entries.
	ErrNotEmpty = errors.New("directory not empty")
	// ErrNotSymlink is returned by Readlink for other kinds.
	ErrNotSymlink = errors.New("not a symlink")
	// ErrInvalidName is returned for empty names, names containing '/',
	// "." and "..", and names longer than MaxNameLen.
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidKey is returned for an empty attribute key.
	ErrInvalidKey = errors.New("invalid attribute key")
	// ErrInvalidValue is returned for an attribute value without a kind.
	ErrInvalidValue = errors.New("invalid attribute value")
	// ErrInvalidRange is returned for byte ranges that end past MaxFileSize.
	ErrInvalidRange = errors.New("invalid byte range")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine closed")
	// ErrCorrupt is returned when on-disk structures contradict each other.
	ErrCorrupt = errors.New("corrupt store")
)

// Errors raised by the storage layers, re-exported so callers only need
// this package.
var (
	ErrNoSpace           = spacemap.ErrNoSpace
	ErrTooLarge          = inode.ErrTooLarge
	ErrHole              = inode.ErrHole
	ErrInvalidMagic      = superblock.ErrInvalidMagic
	ErrInvalidVersion    = superblock.ErrInvalidVersion
	ErrBlockSizeMismatch = superblock.ErrBlockSizeMismatch
	ErrChecksumMismatch  = superblock.ErrChecksumMismatch
	ErrDeviceTooSmall    = superblock.ErrDeviceTooSmall
	ErrSizeMismatch      = device.ErrSizeMismatch
	ErrOutOfBounds       = device.ErrOutOfBounds
	ErrLocked            = device.ErrLocked
)

// Error records the operation and object an error happened on.
//
// The underlying error can be accessed via errors.Unwrap, so
// errors.Is(err, vecfs.ErrNoSpace) works through it.
type Error struct {
	Op  string
	ID  uint64
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("vecfs: %s %d: %v", e.Op, e.ID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func opError(op string, id uint64, err error) error {
	if err == nil {
		return nil
	}
	var ve *Error
	if errors.As(err, &ve) {
		return err
	}
	return &Error{Op: op, ID: id, Err: translateError(err)}
}

// translateError folds layer-specific conditions into the public sentinels.
func translateError(err error) error {
	switch {
	case errors.Is(err, inode.ErrCorrupt),
		errors.Is(err, journal.ErrCorrupt),
		errors.Is(err, spacemap.ErrOutOfRange):
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	}
	return err
}
