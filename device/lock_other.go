//go:build !unix

package device

import "github.com/hupe1980/vecfs/internal/fs"

func lockFile(fs.File) error   { return nil }
func unlockFile(fs.File) error { return nil }
