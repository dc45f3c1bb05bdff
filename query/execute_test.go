package query

import (
	"errors"
	"testing"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecfs/attr"
	"github.com/hupe1980/vecfs/testutil"
)

// fakeSource serves attributes from a map and a catalog that may be stale.
type fakeSource struct {
	live    map[uint64]attr.Attributes
	catalog map[string]*roaring64.Bitmap
	scans   int
	err     error
}

func (s *fakeSource) Candidates(key string, v attr.Value) (*roaring64.Bitmap, error) {
	if s.err != nil {
		return nil, s.err
	}
	if bm, ok := s.catalog[key+"="+v.String()]; ok {
		return bm.Clone(), nil
	}
	return roaring64.New(), nil
}

func (s *fakeSource) Attributes(id uint64) (attr.Attributes, bool, error) {
	a, ok := s.live[id]
	return a, ok, nil
}

func (s *fakeSource) Scan(fn func(uint64, attr.Attributes) error) error {
	s.scans++
	if s.err != nil {
		return s.err
	}
	for id, a := range s.live {
		if err := fn(id, a); err != nil {
			return err
		}
	}
	return nil
}

func TestExecute_EqualityUsesCatalogAndVerifies(t *testing.T) {
	src := &fakeSource{
		live: map[uint64]attr.Attributes{
			13: {"title": attr.String("notes")},
			14: {"title": attr.String("todo")}, // was "notes", catalog is stale
			16: {"title": attr.String("notes")},
		},
		catalog: map[string]*roaring64.Bitmap{
			`title="notes"`: roaring64.BitmapOf(16, 13, 14, 15), // 15 was removed
		},
	}
	q, err := Parse(`title == notes`)
	require.NoError(t, err)

	ids, err := Execute(src, q)
	require.NoError(t, err)
	assert.Equal(t, []uint64{13, 16}, ids)
	assert.Zero(t, src.scans)
}

func TestExecute_OrderingScans(t *testing.T) {
	src := &fakeSource{live: map[uint64]attr.Attributes{
		20: {"year": attr.Int(2024)},
		13: {"year": attr.Float(2019.5)},
		15: {"year": attr.String("2030")},
		17: {},
	}}

	tests := []struct {
		q    string
		want []uint64
	}{
		{`year > 2020`, []uint64{20}},
		{`year < 2020`, []uint64{13}},
		{`year >= 2019.5`, []uint64{13, 20}},
		{`year <= 2024`, []uint64{13, 20}},
		{`year != 2024`, []uint64{13, 15}},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			q, err := Parse(tt.q)
			require.NoError(t, err)
			ids, err := Execute(src, q)
			require.NoError(t, err)
			if len(tt.want) == 0 {
				assert.Empty(t, ids)
				return
			}
			assert.Equal(t, tt.want, ids)
		})
	}
	assert.Equal(t, len(tests), src.scans)
}

func TestExecute_Similarity(t *testing.T) {
	rng := testutil.NewRNG(42)
	vectors := rng.UniformRangeVectors(50, 8)
	live := make(map[uint64]attr.Attributes, len(vectors)+2)
	for i, v := range vectors {
		live[uint64(100+i)] = attr.Attributes{"emb": attr.Vector(v)}
	}
	live[1] = attr.Attributes{"emb": attr.Vector(make([]float32, 8))} // zero norm
	live[2] = attr.Attributes{"emb": attr.Vector([]float32{1, 2})}    // wrong dim
	src := &fakeSource{live: live}

	query := vectors[7]
	q := &Query{Kind: KindSimilarity, Key: "emb", Operator: OpGreaterThan, Vector: query, Threshold: 0.3}
	ids, err := Execute(src, q)
	require.NoError(t, err)

	var want []uint64
	for _, m := range testutil.BruteForceCosine(vectors, query, 0.3) {
		want = append(want, uint64(100+m.Index))
	}
	assert.ElementsMatch(t, want, ids)
	assert.Contains(t, ids, uint64(107))
	assert.IsIncreasing(t, ids)
}

func TestExecute_SourceErrors(t *testing.T) {
	boom := errors.New("io")
	src := &fakeSource{err: boom}

	q, err := Parse(`a == 1`)
	require.NoError(t, err)
	_, err = Execute(src, q)
	assert.ErrorIs(t, err, boom)

	q, err = Parse(`a > 1`)
	require.NoError(t, err)
	_, err = Execute(src, q)
	assert.ErrorIs(t, err, boom)
}

func TestMatches(t *testing.T) {
	attrs := attr.Attributes{
		"n":   attr.Int(3),
		"s":   attr.String("b"),
		"emb": attr.Vector([]float32{1, 0}),
		"raw": attr.Bytes([]byte{1}),
	}
	tests := []struct {
		q    string
		want bool
	}{
		{`n == 3.0`, true},
		{`n > 2`, true},
		{`s > a`, true},
		{`s < "a"`, false},
		{`raw > 0`, false},
		{`missing != 1`, false},
		{`similarity(emb, [1, 0]) > 0.99`, true},
		{`similarity(emb, [0, 1]) > 0.5`, false},
		{`similarity(emb, [0, 1]) < 0.5`, true},
		{`similarity(n, [1, 0]) > 0`, false},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			q, err := Parse(tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Matches(attrs))
		})
	}
}
