//go:build !linux

package device

import "github.com/hupe1980/vecfs/internal/fs"

func syncFile(f fs.File) error { return f.Sync() }
