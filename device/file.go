package device

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/vecfs/internal/fs"
)

// File implements Device on top of a host file.
//
// All transfers use ReadAt/WriteAt, so there is no seek cursor shared
// between calls. The file is locked exclusively while open, which keeps a
// second process from mounting the same image.
type File struct {
	f      fs.File
	blocks uint64
}

var _ Device = (*File)(nil)

type fileOptions struct {
	fsys fs.FileSystem
	lock bool
}

// FileOption configures a File device.
type FileOption func(*fileOptions)

// WithFileSystem sets the file system used to open the image (default fs.Default).
func WithFileSystem(fsys fs.FileSystem) FileOption {
	return func(o *fileOptions) {
		o.fsys = fsys
	}
}

// WithoutLock disables the exclusive advisory lock.
func WithoutLock() FileOption {
	return func(o *fileOptions) {
		o.lock = false
	}
}

func applyFileOptions(optFns []FileOption) fileOptions {
	o := fileOptions{fsys: fs.Default, lock: true}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.fsys == nil {
		o.fsys = fs.Default
	}
	return o
}

// CreateFile creates (or truncates) an image at path sized to blocks.
func CreateFile(path string, blocks uint64, optFns ...FileOption) (*File, error) {
	o := applyFileOptions(optFns)
	f, err := o.fsys.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("disk open error: %w", err)
	}
	if o.lock {
		if err := lockFile(f); err != nil {
			f.Close()
			return nil, err
		}
	}
	if err := f.Truncate(int64(blocks * BlockSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to truncate image file: %w", err)
	}
	return &File{f: f, blocks: blocks}, nil
}

// OpenFile opens an existing image at path.
func OpenFile(path string, optFns ...FileOption) (*File, error) {
	o := applyFileOptions(optFns)
	f, err := o.fsys.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("disk open error: %w", err)
	}
	if o.lock {
		if err := lockFile(f); err != nil {
			f.Close()
			return nil, err
		}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("disk stat error: %w", err)
	}
	return &File{f: f, blocks: uint64(info.Size()) / BlockSize}, nil
}

func (d *File) ReadBlock(id uint64, buf []byte) error {
	if err := checkBuf(buf); err != nil {
		return err
	}
	if d.f == nil {
		return ErrClosed
	}
	n, err := d.f.ReadAt(buf, int64(id*BlockSize))
	if n == BlockSize {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: read block %d (short read %d bytes)", ErrOutOfBounds, id, n)
	}
	return fmt.Errorf("disk read error: %w", err)
}

func (d *File) WriteBlock(id uint64, buf []byte) error {
	if err := checkBuf(buf); err != nil {
		return err
	}
	if d.f == nil {
		return ErrClosed
	}
	if _, err := d.f.WriteAt(buf, int64(id*BlockSize)); err != nil {
		return fmt.Errorf("disk write error: %w", err)
	}
	if id >= d.blocks {
		d.blocks = id + 1
	}
	return nil
}

func (d *File) BlockCount() uint64 {
	return d.blocks
}

func (d *File) Sync() error {
	if d.f == nil {
		return ErrClosed
	}
	if err := syncFile(d.f); err != nil {
		return fmt.Errorf("disk sync error: %w", err)
	}
	return nil
}

// Close unlocks and closes the image. Closing twice returns ErrClosed.
func (d *File) Close() error {
	if d.f == nil {
		return ErrClosed
	}
	f := d.f
	d.f = nil
	_ = unlockFile(f)
	if err := f.Close(); err != nil {
		return fmt.Errorf("disk close error: %w", err)
	}
	return nil
}

// Path returns the image path.
func (d *File) Path() string {
	if d.f == nil {
		return ""
	}
	return d.f.Name()
}
