// Package attr provides the typed attribute values stored on every vecfs
// object.
//
// # Value kinds
//
// The set of kinds is closed:
//
//   - Int: attr.Int(2024)
//   - Float: attr.Float(3.14)
//   - String: attr.String("report")
//   - Bytes: attr.Bytes([]byte{0xCA, 0xFE})
//   - Vector: attr.Vector([]float32{0.1, 0.9})
//
// Example:
//
//	attrs := attr.Attributes{
//	    "title":     attr.String("Q3 report"),
//	    "year":      attr.Int(2024),
//	    "embedding": attr.Vector(vec),
//	}
//
// # Comparison
//
// Int and Float compare numerically across kinds, so Int(3) equals
// Float(3.0). Strings order lexicographically by bytes. Bytes and Vector
// support equality only.
//
// # Identity hash
//
// Hash returns the value's canonical 64-bit hash. Equal values hash equally,
// including the Int/Float case above; the catalog relies on this.
package attr
