package vecfs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/vecfs/attr"
	"github.com/hupe1980/vecfs/inode"
	"github.com/hupe1980/vecfs/internal/catalog"
	"github.com/hupe1980/vecfs/query"
)

// SetAttribute stores key = v on object id and records it in the catalog.
// Growing the inode past one block fails with ErrTooLarge and leaves the
// object unchanged.
func (e *Engine) SetAttribute(id uint64, key string, v attr.Value) (err error) {
	done, err := e.enter("set-attribute")
	if err != nil {
		return err
	}
	defer done(id, &err)

	if key == "" {
		return ErrInvalidKey
	}
	if v.Kind == attr.KindInvalid {
		return fmt.Errorf("%w: %q", ErrInvalidValue, key)
	}
	in, err := e.readInode(id)
	if err != nil {
		return err
	}

	planned := in.Clone()
	if planned.Attrs == nil {
		planned.Attrs = make(attr.Attributes, 1)
	}
	planned.Attrs[key] = v.Clone()

	c := e.newChange()
	if err := c.put(planned); err != nil {
		return err
	}
	return e.commit(fmt.Sprintf("set %q on %d", key, id), c, func() error {
		return e.catalog.Append(catalog.EntryFor(key, v, id))
	})
}

// GetAttribute returns the value of key on object id.
func (e *Engine) GetAttribute(id uint64, key string) (v attr.Value, err error) {
	done, err := e.enterRead("get-attribute")
	if err != nil {
		return attr.Value{}, err
	}
	defer done(id, &err)

	in, err := e.readInode(id)
	if err != nil {
		return attr.Value{}, err
	}
	v, ok := in.Attrs[key]
	if !ok {
		return attr.Value{}, fmt.Errorf("%w: attribute %q", ErrNotFound, key)
	}
	return v, nil
}

// RemoveAttribute deletes key from object id. The catalog keeps the old
// entry; queries drop it after verification.
func (e *Engine) RemoveAttribute(id uint64, key string) (err error) {
	done, err := e.enter("remove-attribute")
	if err != nil {
		return err
	}
	defer done(id, &err)

	in, err := e.readInode(id)
	if err != nil {
		return err
	}
	if _, ok := in.Attrs[key]; !ok {
		return fmt.Errorf("%w: attribute %q", ErrNotFound, key)
	}

	planned := in.Clone()
	delete(planned.Attrs, key)
	c := e.newChange()
	if err := c.put(planned); err != nil {
		return err
	}
	return e.commit(fmt.Sprintf("remove %q from %d", key, id), c)
}

// Query evaluates a predicate and returns the matching object ids in
// ascending order.
//
//	ids, err := eng.Query(`author == "alice"`)
//	ids, err := eng.Query(`similarity(embedding, [0.9, 0.1]) > 0.8`)
//
// Equality is answered from the catalog and verified against the live
// inodes; every other predicate scans the tree.
func (e *Engine) Query(input string) (ids []uint64, err error) {
	start := time.Now()
	kind := "invalid"
	indexed := false
	defer func() {
		e.opts.metricsCollector.RecordQuery(kind, len(ids), time.Since(start), err)
		e.opts.logger.LogQuery(context.Background(), input, indexed, len(ids), err)
	}()

	q, err := query.Parse(input)
	if err != nil {
		return nil, opError("query", 0, err)
	}
	kind, indexed = q.Kind.String(), q.Indexed()

	done, err := e.enterRead("query")
	if err != nil {
		return nil, err
	}
	defer done(0, &err)
	return query.Execute(&querySource{e: e}, q)
}

// CompactCatalog rewrites the catalog from the live tree, dropping
// entries for removed objects and overwritten values. It returns the
// number of entries dropped.
func (e *Engine) CompactCatalog() (dropped int, err error) {
	done, err := e.enter("compact-catalog")
	if err != nil {
		return 0, err
	}
	defer done(e.sb.CatalogID, &err)

	before, err := e.catalog.Len()
	if err != nil {
		return 0, err
	}

	var live []catalog.Entry
	err = e.walk(func(_ string, ent DirEntry) error {
		in, err := e.readInode(ent.ID)
		if err != nil {
			return err
		}
		for _, k := range in.Attrs.Keys() {
			live = append(live, catalog.EntryFor(k, in.Attrs[k], in.ID))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	err = e.commit("compact catalog", e.newChange(), func() error {
		return e.catalog.Rewrite(live)
	})
	if err != nil {
		return 0, err
	}
	after, err := e.catalog.Len()
	if err != nil {
		return 0, err
	}
	return before - after, nil
}

// querySource runs queries against the engine. Callers hold e.mu.
type querySource struct {
	e *Engine
}

func (s *querySource) Candidates(key string, v attr.Value) (*roaring64.Bitmap, error) {
	return s.e.catalog.LookupValue(key, v)
}

func (s *querySource) Attributes(id uint64) (attr.Attributes, bool, error) {
	if id == s.e.sb.CatalogID {
		return nil, false, nil
	}
	in, err := s.e.readInode(id)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return in.Attrs, true, nil
}

func (s *querySource) Scan(fn func(id uint64, attrs attr.Attributes) error) error {
	return s.e.walk(func(_ string, ent DirEntry) error {
		in, err := s.e.readInode(ent.ID)
		if err != nil {
			return err
		}
		return fn(in.ID, in.Attrs)
	})
}

// catalogStore keeps the catalog in a file object that is not linked into
// the tree. The object is created by the first append. Callers hold e.mu
// and an open journal bracket.
type catalogStore struct {
	e *Engine
}

func (s *catalogStore) ReadAll() ([]byte, error) {
	if s.e.sb.CatalogID == 0 {
		return nil, nil
	}
	in, err := s.e.readInode(s.e.sb.CatalogID)
	if err != nil {
		return nil, fmt.Errorf("catalog object: %w", err)
	}
	return s.e.readRange(in, 0, in.Size)
}

func (s *catalogStore) Append(data []byte) error {
	return s.update(func(c *change, in *inode.Inode) error {
		return c.write(in, in.Size, data)
	})
}

func (s *catalogStore) Replace(data []byte) error {
	if s.e.sb.CatalogID == 0 && len(data) == 0 {
		return nil
	}
	return s.update(func(c *change, in *inode.Inode) error {
		return c.replace(in, data)
	})
}

func (s *catalogStore) update(fn func(c *change, in *inode.Inode) error) error {
	e := s.e
	c := e.newChange()

	var in *inode.Inode
	if e.sb.CatalogID == 0 {
		created, err := c.create(inode.KindFile)
		if err != nil {
			return err
		}
		in = created
	} else {
		cur, err := e.readInode(e.sb.CatalogID)
		if err != nil {
			return fmt.Errorf("catalog object: %w", err)
		}
		in = cur.Clone()
	}

	err := fn(c, in)
	if err == nil {
		err = c.put(in)
	}
	if err != nil {
		c.rollback()
		return err
	}

	prev := e.sb.CatalogID
	e.sb.CatalogID = in.ID
	if err := c.apply(); err != nil {
		e.sb.CatalogID = prev
		return err
	}
	return nil
}
