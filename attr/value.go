package attr

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/hupe1980/vecfs/internal/hash"
)

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	// KindInvalid is the zero Value's kind.
	KindInvalid Kind = iota
	// KindInt is a signed 64-bit integer.
	KindInt
	// KindFloat is a 64-bit float.
	KindFloat
	// KindString is UTF-8 text.
	KindString
	// KindBytes is an opaque blob.
	KindBytes
	// KindVector is a vector of 32-bit floats.
	KindVector
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindVector:
		return "vector"
	default:
		return "invalid"
	}
}

// Value is a single attribute value.
//
// NOTE: The binary form is persisted inside inodes; keep it stable.
type Value struct {
	Kind Kind      `json:"k"`
	I64  int64     `json:"i,omitempty"`
	F64  float64   `json:"f,omitempty"`
	S    string    `json:"s,omitempty"`
	B    []byte    `json:"b,omitempty"`
	V    []float32 `json:"v,omitempty"`
}

// Int returns an int64 Value.
func Int(v int64) Value { return Value{Kind: KindInt, I64: v} }

// Float returns a float64 Value.
func Float(v float64) Value { return Value{Kind: KindFloat, F64: v} }

// String returns a string Value.
func String(v string) Value { return Value{Kind: KindString, S: v} }

// Bytes returns a byte blob Value. The slice is copied.
func Bytes(v []byte) Value { return Value{Kind: KindBytes, B: bytes.Clone(v)} }

// Vector returns a vector Value. The slice is copied.
func Vector(v []float32) Value { return Value{Kind: KindVector, V: slices.Clone(v)} }

// AsInt64 returns the int64 value if Kind is KindInt.
func (v Value) AsInt64() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.I64, true
}

// AsFloat64 returns the float64 value if Kind is KindFloat.
func (v Value) AsFloat64() (float64, bool) {
	if v.Kind != KindFloat {
		return 0, false
	}
	return v.F64, true
}

// AsString returns the string value if Kind is KindString.
func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.S, true
}

// AsBytes returns the blob if Kind is KindBytes.
func (v Value) AsBytes() ([]byte, bool) {
	if v.Kind != KindBytes {
		return nil, false
	}
	return v.B, true
}

// AsVector returns the vector if Kind is KindVector.
func (v Value) AsVector() ([]float32, bool) {
	if v.Kind != KindVector {
		return nil, false
	}
	return v.V, true
}

// IsNumber reports whether v is an Int or a Float.
func (v Value) IsNumber() bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindBytes:
		v.B = bytes.Clone(v.B)
	case KindVector:
		v.V = slices.Clone(v.V)
	}
	return v
}

// String renders v for logs and debug output.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.I64, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.S)
	case KindBytes:
		return "0x" + hex.EncodeToString(v.B)
	case KindVector:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, f := range v.V {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
		}
		sb.WriteByte(']')
		return sb.String()
	default:
		return "<invalid>"
	}
}

// Equal reports whether a and b hold the same value.
// Numbers compare exactly across Int and Float: Int(2^53+1) is not equal
// to Float(2^53) even though float64 conversion would make it so.
func Equal(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		c, ok := Compare(a, b)
		return ok && c == 0
	}

	if a.Kind != b.Kind {
		return false
	}

	switch a.Kind {
	case KindString:
		return a.S == b.S
	case KindBytes:
		return bytes.Equal(a.B, b.B)
	case KindVector:
		// == on float32 treats -0 and +0 as equal; Canonical does too.
		return slices.Equal(a.V, b.V)
	default:
		return false
	}
}

// Compare orders a against b. ok is false when the pair has no ordering
// (mixed kinds, blobs, vectors, NaN).
func Compare(a, b Value) (c int, ok bool) {
	if a.IsNumber() && b.IsNumber() {
		switch {
		case a.Kind == KindInt && b.Kind == KindInt:
			return cmpOrdered(a.I64, b.I64), true
		case a.Kind == KindInt:
			return compareIntFloat(a.I64, b.F64)
		case b.Kind == KindInt:
			c, ok := compareIntFloat(b.I64, a.F64)
			return -c, ok
		}
		if math.IsNaN(a.F64) || math.IsNaN(b.F64) {
			return 0, false
		}
		return cmpOrdered(a.F64, b.F64), true
	}
	if a.Kind == KindString && b.Kind == KindString {
		return strings.Compare(a.S, b.S), true
	}
	return 0, false
}

// compareIntFloat orders i against f without rounding i to float64.
func compareIntFloat(i int64, f float64) (int, bool) {
	switch {
	case math.IsNaN(f):
		return 0, false
	case f >= twoPow63:
		return -1, true
	case f < -twoPow63:
		return 1, true
	}
	t := math.Trunc(f)
	if c := cmpOrdered(i, int64(t)); c != 0 {
		return c, true
	}
	// i equals the integer part; the fraction decides.
	return cmpOrdered(t, f), true
}

const twoPow63 = 1 << 63

func cmpOrdered[T int64 | float64](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// Canonical returns the byte form that Hash digests.
//
// A Float holding an integral value inside the int64 range encodes as the
// equivalent Int so that Equal values share one encoding.
func (v Value) Canonical() []byte {
	switch v.Kind {
	case KindInt:
		return binary.AppendVarint([]byte{byte(KindInt)}, v.I64)
	case KindFloat:
		if i, ok := integral(v.F64); ok {
			return binary.AppendVarint([]byte{byte(KindInt)}, i)
		}
		return binary.LittleEndian.AppendUint64([]byte{byte(KindFloat)}, math.Float64bits(v.F64))
	case KindString:
		return append([]byte{byte(KindString)}, v.S...)
	case KindBytes:
		return append([]byte{byte(KindBytes)}, v.B...)
	case KindVector:
		buf := make([]byte, 1, 1+4*len(v.V))
		buf[0] = byte(KindVector)
		for _, f := range v.V {
			if f == 0 {
				f = 0 // -0 hashes as +0
			}
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
		return buf
	default:
		return []byte{byte(KindInvalid)}
	}
}

// Hash returns the canonical identity hash of v.
func (v Value) Hash() uint64 {
	return hash.Sum64(v.Canonical())
}

// KeyHash returns the canonical identity hash of an attribute key.
func KeyHash(key string) uint64 {
	return hash.Sum64String(key)
}

func integral(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is out of range.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
