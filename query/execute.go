package query

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/vecfs/attr"
)

// Source is the object store a query runs against.
type Source interface {
	// Candidates returns the ids the catalog records for key == v. The set
	// may contain stale ids.
	Candidates(key string, v attr.Value) (*roaring64.Bitmap, error)
	// Attributes returns the live attributes of id. ok is false when id no
	// longer names a live object.
	Attributes(id uint64) (attrs attr.Attributes, ok bool, err error)
	// Scan calls fn for every live object.
	Scan(fn func(id uint64, attrs attr.Attributes) error) error
}

// Execute runs q against src and returns the matching ids in ascending
// order.
func Execute(src Source, q *Query) ([]uint64, error) {
	matches := roaring64.New()

	if q.Indexed() {
		candidates, err := src.Candidates(q.Key, q.Value)
		if err != nil {
			return nil, fmt.Errorf("catalog lookup: %w", err)
		}
		it := candidates.Iterator()
		for it.HasNext() {
			id := it.Next()
			attrs, ok, err := src.Attributes(id)
			if err != nil {
				return nil, fmt.Errorf("verify %d: %w", id, err)
			}
			if ok && q.Matches(attrs) {
				matches.Add(id)
			}
		}
		return matches.ToArray(), nil
	}

	err := src.Scan(func(id uint64, attrs attr.Attributes) error {
		if q.Matches(attrs) {
			matches.Add(id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return matches.ToArray(), nil
}
