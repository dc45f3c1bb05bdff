//go:build linux

package device

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/hupe1980/vecfs/internal/fs"
)

// syncFile flushes the image with fdatasync. It skips timestamps but still
// persists a size change, which is all a block image needs. Wrapped files
// (fault injection) keep their own Sync.
func syncFile(f fs.File) error {
	if _, ok := f.(*os.File); !ok {
		return f.Sync()
	}
	for {
		err := unix.Fdatasync(int(f.Fd()))
		if err != unix.EINTR {
			return err
		}
	}
}
