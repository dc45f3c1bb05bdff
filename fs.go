package vecfs

import (
	"fmt"
	"path"
	"strings"

	"github.com/hupe1980/vecfs/codec"
	"github.com/hupe1980/vecfs/inode"
)

// MaxNameLen is the longest directory entry name in bytes.
const MaxNameLen = 255

func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsRune(name, '/'):
		return fmt.Errorf("%w: %q contains '/'", ErrInvalidName, name)
	case len(name) > MaxNameLen:
		return fmt.Errorf("%w: %d bytes, limit %d", ErrInvalidName, len(name), MaxNameLen)
	}
	return nil
}

// CreateFile adds an empty file called name to directory parent.
//
// An existing name fails with ErrExists unless the engine was opened with
// WithOpenExisting(true) and the entry is a file, in which case its id is
// returned.
func (e *Engine) CreateFile(parent uint64, name string) (id uint64, err error) {
	done, err := e.enter("create")
	if err != nil {
		return 0, err
	}
	defer done(parent, &err)
	return e.create(parent, name, inode.KindFile, nil)
}

// Mkdir adds an empty directory called name to directory parent.
func (e *Engine) Mkdir(parent uint64, name string) (id uint64, err error) {
	done, err := e.enter("mkdir")
	if err != nil {
		return 0, err
	}
	defer done(parent, &err)
	return e.create(parent, name, inode.KindDirectory, nil)
}

// Symlink adds a symbolic link called name holding target. Links are
// stored, never followed.
func (e *Engine) Symlink(parent uint64, name, target string) (id uint64, err error) {
	done, err := e.enter("symlink")
	if err != nil {
		return 0, err
	}
	defer done(parent, &err)
	if target == "" {
		return 0, fmt.Errorf("%w: empty symlink target", ErrInvalidName)
	}
	return e.create(parent, name, inode.KindSymlink, []byte(target))
}

func (e *Engine) create(parent uint64, name string, kind inode.Kind, data []byte) (uint64, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}
	dir, entries, err := e.directory(parent)
	if err != nil {
		return 0, err
	}
	if i := inode.FindEntry(entries, name); i >= 0 {
		existing := entries[i]
		if e.opts.openExisting && kind == inode.KindFile && existing.Kind == inode.KindFile {
			return existing.ID, nil
		}
		return 0, fmt.Errorf("%w: %q in %d", ErrExists, name, parent)
	}

	c := e.newChange()
	child, err := c.create(kind)
	if err != nil {
		return 0, err
	}
	if err := e.planCreate(c, child, data, dir, entries, name); err != nil {
		c.rollback()
		return 0, err
	}
	if err := e.commit(fmt.Sprintf("create %s %q in %d", kind, name, parent), c); err != nil {
		return 0, err
	}
	return child.ID, nil
}

func (e *Engine) planCreate(c *change, child *inode.Inode, data []byte, dir *inode.Inode, entries []inode.DirEntry, name string) error {
	if err := c.write(child, 0, data); err != nil {
		return err
	}
	if err := c.put(child); err != nil {
		return err
	}
	entries = append(entries, inode.DirEntry{Name: name, ID: child.ID, Kind: child.Kind})
	return e.planDirectory(c, dir.Clone(), entries)
}

// planDirectory rewrites dir's data to hold entries.
func (e *Engine) planDirectory(c *change, dir *inode.Inode, entries []inode.DirEntry) error {
	data, err := inode.EncodeEntries(entries)
	if err != nil {
		return err
	}
	if err := c.replace(dir, data); err != nil {
		return err
	}
	return c.put(dir)
}

// directory loads a directory inode and its entries.
func (e *Engine) directory(id uint64) (*inode.Inode, []inode.DirEntry, error) {
	dir, err := e.readInode(id)
	if err != nil {
		return nil, nil, err
	}
	if dir.Kind != inode.KindDirectory {
		return nil, nil, fmt.Errorf("%w: %d is a %s", ErrNotDirectory, id, dir.Kind)
	}
	data, err := e.readRange(dir, 0, dir.Size)
	if err != nil {
		return nil, nil, err
	}
	entries, err := inode.DecodeEntries(data)
	if err != nil {
		return nil, nil, err
	}
	return dir, entries, nil
}

// Readlink returns the target of a symbolic link.
func (e *Engine) Readlink(id uint64) (target string, err error) {
	done, err := e.enterRead("readlink")
	if err != nil {
		return "", err
	}
	defer done(id, &err)

	in, err := e.readInode(id)
	if err != nil {
		return "", err
	}
	if in.Kind != inode.KindSymlink {
		return "", fmt.Errorf("%w: %d is a %s", ErrNotSymlink, id, in.Kind)
	}
	data, err := e.readRange(in, 0, in.Size)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Ls returns the entries of directory dir in insertion order.
func (e *Engine) Ls(dir uint64) (entries []DirEntry, err error) {
	done, err := e.enterRead("ls")
	if err != nil {
		return nil, err
	}
	defer done(dir, &err)

	_, entries, err = e.directory(dir)
	return entries, err
}

// Lookup returns the entry called name in directory dir.
func (e *Engine) Lookup(dir uint64, name string) (entry DirEntry, err error) {
	done, err := e.enterRead("lookup")
	if err != nil {
		return DirEntry{}, err
	}
	defer done(dir, &err)
	return e.lookup(dir, name)
}

func (e *Engine) lookup(dir uint64, name string) (DirEntry, error) {
	_, entries, err := e.directory(dir)
	if err != nil {
		return DirEntry{}, err
	}
	i := inode.FindEntry(entries, name)
	if i < 0 {
		return DirEntry{}, fmt.Errorf("%w: %q in %d", ErrNotFound, name, dir)
	}
	return entries[i], nil
}

// Resolve maps a slash-separated path from the root to an object id.
// Empty components are ignored, so "/" and "" name the root. Symbolic
// links are not followed.
func (e *Engine) Resolve(p string) (id uint64, err error) {
	done, err := e.enterRead("resolve")
	if err != nil {
		return 0, err
	}
	defer done(0, &err)

	id = e.sb.RootID
	for _, name := range strings.Split(p, "/") {
		if name == "" {
			continue
		}
		ent, err := e.lookup(id, name)
		if err != nil {
			return 0, fmt.Errorf("resolve %q: %w", p, err)
		}
		id = ent.ID
	}
	return id, nil
}

// Remove deletes the entry called name from directory parent and frees the
// object's blocks. Directories must be empty. Catalog entries for the
// object become stale and are dropped by queries and CompactCatalog.
func (e *Engine) Remove(parent uint64, name string) (err error) {
	done, err := e.enter("remove")
	if err != nil {
		return err
	}
	defer done(parent, &err)

	dir, entries, err := e.directory(parent)
	if err != nil {
		return err
	}
	i := inode.FindEntry(entries, name)
	if i < 0 {
		return fmt.Errorf("%w: %q in %d", ErrNotFound, name, parent)
	}
	child, err := e.readInode(entries[i].ID)
	if err != nil {
		return err
	}
	if child.Kind == inode.KindDirectory && child.Size > 0 {
		_, sub, err := e.directory(child.ID)
		if err != nil {
			return err
		}
		if len(sub) > 0 {
			return fmt.Errorf("%w: %q has %d entries", ErrNotEmpty, name, len(sub))
		}
	}

	c := e.newChange()
	c.drop(child)
	entries = append(entries[:i], entries[i+1:]...)
	if err := e.planDirectory(c, dir.Clone(), entries); err != nil {
		c.rollback()
		return err
	}
	return e.commit(fmt.Sprintf("remove %q from %d", name, parent), c)
}

// WalkFunc is called by Walk for every reachable object. The root is
// reported first with path "/".
type WalkFunc func(path string, entry DirEntry) error

// Walk visits the tree depth first in entry order. The tree is collected
// under the engine lock and fn runs after it is released, so fn may call
// back into the engine.
func (e *Engine) Walk(fn WalkFunc) (err error) {
	type visit struct {
		path  string
		entry DirEntry
	}
	var visits []visit

	done, err := e.enterRead("walk")
	if err != nil {
		return err
	}
	err = e.walk(func(p string, ent DirEntry) error {
		visits = append(visits, visit{p, ent})
		return nil
	})
	done(0, &err)
	if err != nil {
		return err
	}

	for _, v := range visits {
		if err := fn(v.path, v.entry); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) walk(fn WalkFunc) error {
	root := DirEntry{Name: "/", ID: e.sb.RootID, Kind: inode.KindDirectory}
	if err := fn("/", root); err != nil {
		return err
	}
	return e.walkDir("/", root.ID, fn)
}

func (e *Engine) walkDir(dirPath string, id uint64, fn WalkFunc) error {
	_, entries, err := e.directory(id)
	if err != nil {
		return err
	}
	for _, ent := range entries {
		p := path.Join(dirPath, ent.Name)
		if err := fn(p, ent); err != nil {
			return err
		}
		if ent.Kind == inode.KindDirectory {
			if err := e.walkDir(p, ent.ID, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadInode returns the inode stored at id.
func (e *Engine) ReadInode(id uint64) (in *Inode, err error) {
	done, err := e.enterRead("read-inode")
	if err != nil {
		return nil, err
	}
	defer done(id, &err)
	return e.readInode(id)
}

// Describe renders the inode at id as indented JSON.
func (e *Engine) Describe(id uint64) ([]byte, error) {
	in, err := e.ReadInode(id)
	if err != nil {
		return nil, err
	}
	return codec.GoJSON{}.MarshalIndent(in)
}
