package attr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
)

// ErrCorrupt is returned when a binary attribute record cannot be parsed.
var ErrCorrupt = errors.New("corrupt attribute encoding")

// Attributes maps attribute keys to values.
type Attributes map[string]Value

// Keys returns the keys in ascending order.
func (a Attributes) Keys() []string {
	return slices.Sorted(maps.Keys(a))
}

// Clone returns a deep copy of a. Nil stays nil.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v.Clone()
	}
	return out
}

// AppendBinary appends the encoding of a to buf. Keys are written in
// ascending order so the encoding is deterministic.
func (a Attributes) AppendBinary(buf []byte) ([]byte, error) {
	buf = binary.AppendUvarint(buf, uint64(len(a)))
	for _, k := range a.Keys() {
		buf = binary.AppendUvarint(buf, uint64(len(k)))
		buf = append(buf, k...)

		var err error
		if buf, err = AppendValue(buf, a[k]); err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
	}
	return buf, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (a Attributes) MarshalBinary() ([]byte, error) {
	return a.AppendBinary(make([]byte, 0, 1+len(a)*16))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (a *Attributes) UnmarshalBinary(data []byte) error {
	parsed, rest, err := ParseAttributes(data)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(rest))
	}
	*a = parsed
	return nil
}

// ParseAttributes decodes one attribute map from the front of data and
// returns the remaining bytes.
func ParseAttributes(data []byte) (Attributes, []byte, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, nil, fmt.Errorf("%w: invalid attribute count", ErrCorrupt)
	}
	data = data[n:]
	if count > uint64(len(data)) {
		return nil, nil, fmt.Errorf("%w: attribute count %d exceeds buffer", ErrCorrupt, count)
	}

	attrs := make(Attributes, count)
	for range count {
		kLen, n := binary.Uvarint(data)
		if n <= 0 {
			return nil, nil, fmt.Errorf("%w: invalid key length", ErrCorrupt)
		}
		data = data[n:]
		if uint64(len(data)) < kLen {
			return nil, nil, fmt.Errorf("%w: short buffer for key", ErrCorrupt)
		}
		key := string(data[:kLen])
		data = data[kLen:]

		val, rest, err := ParseValue(data)
		if err != nil {
			return nil, nil, fmt.Errorf("attribute %q: %w", key, err)
		}
		attrs[key] = val
		data = rest
	}
	return attrs, data, nil
}

// AppendValue appends the binary encoding of v to buf.
func AppendValue(buf []byte, v Value) ([]byte, error) {
	buf = append(buf, byte(v.Kind))

	switch v.Kind {
	case KindInt:
		buf = binary.AppendVarint(buf, v.I64)
	case KindFloat:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.F64))
	case KindString:
		buf = binary.AppendUvarint(buf, uint64(len(v.S)))
		buf = append(buf, v.S...)
	case KindBytes:
		buf = binary.AppendUvarint(buf, uint64(len(v.B)))
		buf = append(buf, v.B...)
	case KindVector:
		buf = binary.AppendUvarint(buf, uint64(len(v.V)))
		for _, f := range v.V {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	default:
		return nil, fmt.Errorf("unknown attribute kind %d", v.Kind)
	}
	return buf, nil
}

// ParseValue decodes one value from the front of data and returns the
// remaining bytes.
func ParseValue(data []byte) (Value, []byte, error) {
	if len(data) == 0 {
		return Value{}, nil, fmt.Errorf("%w: short buffer for value kind", ErrCorrupt)
	}
	v := Value{Kind: Kind(data[0])}
	data = data[1:]

	switch v.Kind {
	case KindInt:
		i, n := binary.Varint(data)
		if n <= 0 {
			return v, nil, fmt.Errorf("%w: invalid int", ErrCorrupt)
		}
		v.I64 = i
		data = data[n:]
	case KindFloat:
		if len(data) < 8 {
			return v, nil, fmt.Errorf("%w: short buffer for float", ErrCorrupt)
		}
		v.F64 = math.Float64frombits(binary.LittleEndian.Uint64(data))
		data = data[8:]
	case KindString, KindBytes:
		l, n := binary.Uvarint(data)
		if n <= 0 {
			return v, nil, fmt.Errorf("%w: invalid %s length", ErrCorrupt, v.Kind)
		}
		data = data[n:]
		if uint64(len(data)) < l {
			return v, nil, fmt.Errorf("%w: short buffer for %s", ErrCorrupt, v.Kind)
		}
		if v.Kind == KindString {
			v.S = string(data[:l])
		} else {
			v.B = append([]byte(nil), data[:l]...)
		}
		data = data[l:]
	case KindVector:
		dim, n := binary.Uvarint(data)
		if n <= 0 {
			return v, nil, fmt.Errorf("%w: invalid vector length", ErrCorrupt)
		}
		data = data[n:]
		if uint64(len(data))/4 < dim {
			return v, nil, fmt.Errorf("%w: short buffer for vector", ErrCorrupt)
		}
		v.V = make([]float32, dim)
		for i := range v.V {
			v.V[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
		data = data[dim*4:]
	default:
		return v, nil, fmt.Errorf("%w: unknown kind %d", ErrCorrupt, v.Kind)
	}
	return v, data, nil
}
