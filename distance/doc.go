// Package distance provides the vector math behind similarity queries.
//
//	sim, ok := distance.Cosine(a, b)
//
// Sums are accumulated in float64 so long float32 vectors keep their
// precision.
package distance
