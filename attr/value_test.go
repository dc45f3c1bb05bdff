package attr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"int int", Int(3), Int(3), true},
		{"int float", Int(3), Float(3.0), true},
		{"float int", Float(2.5), Int(2), false},
		{"string", String("a"), String("a"), true},
		{"string mismatch", String("a"), String("b"), false},
		{"string vs int", String("3"), Int(3), false},
		{"bytes", Bytes([]byte{1, 2}), Bytes([]byte{1, 2}), true},
		{"bytes vs string", Bytes([]byte("a")), String("a"), false},
		{"vector", Vector([]float32{1, 2}), Vector([]float32{1, 2}), true},
		{"vector dim", Vector([]float32{1, 2}), Vector([]float32{1}), false},
		{"invalid", Value{}, Value{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestCompare(t *testing.T) {
	c, ok := Compare(Int(1), Int(2))
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = Compare(Float(2.5), Int(2))
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	c, ok = Compare(String("b"), String("a"))
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	c, ok = Compare(Int(7), Float(7))
	assert.True(t, ok)
	assert.Zero(t, c)

	_, ok = Compare(String("1"), Int(1))
	assert.False(t, ok)
	_, ok = Compare(Vector([]float32{1}), Vector([]float32{1}))
	assert.False(t, ok)
	_, ok = Compare(Float(math.NaN()), Int(1))
	assert.False(t, ok)
}

func TestHash_EqualValuesHashEqually(t *testing.T) {
	assert.Equal(t, Int(3).Hash(), Float(3.0).Hash())
	assert.Equal(t, Int(-12).Hash(), Float(-12).Hash())
	assert.Equal(t, Int(0).Hash(), Float(math.Copysign(0, -1)).Hash())
	assert.NotEqual(t, Int(3).Hash(), Float(3.5).Hash())

	// Same payload, different kinds.
	assert.NotEqual(t, String("ab").Hash(), Bytes([]byte("ab")).Hash())
	assert.NotEqual(t, String("3").Hash(), Int(3).Hash())

	assert.Equal(t, Vector([]float32{1, 2}).Hash(), Vector([]float32{1, 2}).Hash())
	assert.NotEqual(t, Vector([]float32{1, 2}).Hash(), Vector([]float32{2, 1}).Hash())

	negZero := float32(math.Copysign(0, -1))
	pairs := [][2]Value{
		{Vector([]float32{negZero, 1}), Vector([]float32{0, 1})},
		{Int(1 << 53), Float(1 << 53)},
		{Int(math.MinInt64), Float(-(1 << 63))},
	}
	for _, p := range pairs {
		require.True(t, Equal(p[0], p[1]), "%v == %v", p[0], p[1])
		assert.Equal(t, p[0].Hash(), p[1].Hash(), "%v and %v", p[0], p[1])
	}
}

func TestEqual_IntFloatIsExact(t *testing.T) {
	big := Int(1<<53 + 1)
	assert.False(t, Equal(big, Float(1<<53)))
	assert.NotEqual(t, big.Hash(), Float(1<<53).Hash())

	c, ok := Compare(big, Float(1<<53))
	assert.True(t, ok)
	assert.Equal(t, 1, c)
	c, ok = Compare(Float(1<<53), big)
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, _ = Compare(Int(math.MaxInt64), Float(1<<63))
	assert.Equal(t, -1, c)
	c, _ = Compare(Int(-3), Float(-2.5))
	assert.Equal(t, -1, c)
	c, _ = Compare(Int(-2), Float(-2.5))
	assert.Equal(t, 1, c)
}

func TestHash_LargeFloatsStayFloats(t *testing.T) {
	_, ok := integral(math.Pow(2, 63))
	assert.False(t, ok)
	_, ok = integral(math.Inf(1))
	assert.False(t, ok)
	i, ok := integral(-math.Pow(2, 63))
	assert.True(t, ok)
	assert.Equal(t, int64(math.MinInt64), i)
}

func TestKeyHash(t *testing.T) {
	assert.Equal(t, KeyHash("title"), KeyHash("title"))
	assert.NotEqual(t, KeyHash("title"), KeyHash("Title"))
}

func TestAccessors(t *testing.T) {
	i, ok := Int(5).AsInt64()
	assert.True(t, ok)
	assert.Equal(t, int64(5), i)
	_, ok = Int(5).AsFloat64()
	assert.False(t, ok)

	s, ok := String("x").AsString()
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	v, ok := Vector([]float32{0.5}).AsVector()
	assert.True(t, ok)
	assert.Equal(t, []float32{0.5}, v)

	b, ok := Bytes([]byte{9}).AsBytes()
	assert.True(t, ok)
	assert.Equal(t, []byte{9}, b)
}

func TestClone_IsDeep(t *testing.T) {
	src := []float32{1, 2, 3}
	v := Vector(src)
	src[0] = 42
	assert.Equal(t, float32(1), v.V[0])

	c := v.Clone()
	c.V[1] = 42
	assert.Equal(t, float32(2), v.V[1])
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "42", Int(42).String())
	assert.Equal(t, "0.5", Float(0.5).String())
	assert.Equal(t, `"hi"`, String("hi").String())
	assert.Equal(t, "0xcafe", Bytes([]byte{0xCA, 0xFE}).String())
	assert.Equal(t, "[0.25, 1]", Vector([]float32{0.25, 1}).String())
	assert.Equal(t, "vector", KindVector.String())
}
