package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecfs/attr"
)

func TestParse_Compare(t *testing.T) {
	tests := []struct {
		in    string
		key   string
		op    Operator
		value attr.Value
	}{
		{`title == "Q3 report"`, "title", OpEqual, attr.String("Q3 report")},
		{`year==2024`, "year", OpEqual, attr.Int(2024)},
		{`score > 0.5`, "score", OpGreaterThan, attr.Float(0.5)},
		{`score < -1e3`, "score", OpLessThan, attr.Float(-1000)},
		{`lang != en`, "lang", OpNotEqual, attr.String("en")},
		{`size >= 10`, "size", OpGreaterEqual, attr.Int(10)},
		{`size <= 10`, "size", OpLessEqual, attr.Int(10)},
		{`emb == [1, 2.5]`, "emb", OpEqual, attr.Vector([]float32{1, 2.5})},
		{`  doc.type  ==  pdf  `, "doc.type", OpEqual, attr.String("pdf")},
		{`note == "say \"hi\""`, "note", OpEqual, attr.String(`say "hi"`)},
		{`similarity == 3`, "similarity", OpEqual, attr.Int(3)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			q, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, KindCompare, q.Kind)
			assert.Equal(t, tt.key, q.Key)
			assert.Equal(t, tt.op, q.Operator)
			assert.Equal(t, tt.value.Kind, q.Value.Kind)
			assert.True(t, attr.Equal(tt.value, q.Value), "got %v", q.Value)
		})
	}
}

func TestParse_Similarity(t *testing.T) {
	q, err := Parse(`similarity(embedding, [0.9, 0.1]) > 0.8`)
	require.NoError(t, err)
	assert.Equal(t, KindSimilarity, q.Kind)
	assert.Equal(t, "embedding", q.Key)
	assert.Equal(t, []float32{0.9, 0.1}, q.Vector)
	assert.Equal(t, OpGreaterThan, q.Operator)
	assert.InDelta(t, 0.8, q.Threshold, 1e-12)
	assert.False(t, q.Indexed())
	assert.Equal(t, "similarity(embedding, [0.9, 0.1]) > 0.8", q.String())

	q, err = Parse(`similarity ( e ,[1] ) <= 1`)
	require.NoError(t, err)
	assert.Equal(t, OpLessEqual, q.Operator)
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		in        string
		remainder string
	}{
		{``, ``},
		{`== 3`, `== 3`},
		{`title`, ``},
		{`title ~ 3`, `~ 3`},
		{`title ==`, ``},
		{`title == hello world`, `world`},
		{`title == "open`, `"open`},
		{`emb == [1, x]`, `x]`},
		{`emb == [1 2]`, `2]`},
		{`similarity(emb [1]) > 0.5`, `[1]) > 0.5`},
		{`similarity(emb, [1]) > high`, `high`},
		{`similarity(emb, [1] > 0.5`, `> 0.5`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := Parse(tt.in)
			var se *SyntaxError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tt.remainder, se.Remainder)
			assert.NotEmpty(t, se.Error())
		})
	}
}

func TestParse_TypeError(t *testing.T) {
	for in, got := range map[string]attr.Kind{
		`similarity(emb, "text") > 0.5`: attr.KindString,
		`similarity(emb, 3) > 0.5`:      attr.KindInt,
		`similarity(emb, word) > 0.5`:   attr.KindString,
	} {
		_, err := Parse(in)
		var te *TypeError
		require.True(t, errors.As(err, &te), "%s: got %v", in, err)
		assert.Equal(t, 2, te.Arg)
		assert.Equal(t, attr.KindVector, te.Want)
		assert.Equal(t, got, te.Got)
		assert.Contains(t, te.Error(), "similarity")
	}
}

func TestString_RoundTrips(t *testing.T) {
	for _, in := range []string{
		`title == "notes"`,
		`year > 2020`,
		`similarity(e, [0.5, 1]) >= 0.25`,
	} {
		q, err := Parse(in)
		require.NoError(t, err)
		again, err := Parse(q.String())
		require.NoError(t, err)
		assert.Equal(t, q, again)
	}
}
