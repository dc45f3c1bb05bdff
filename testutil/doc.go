// Package testutil provides testing utilities for vecfs.
//
// This package is intended for use in tests only. It provides seeded
// generators for vectors, payloads and names, and an exact cosine scan used
// as ground truth for similarity queries.
//
// # Random data
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UnitVectors(100, 64)
//	payload := rng.Bytes(5000)
//
// # Ground truth
//
//	hits := testutil.BruteForceCosine(vecs, query, 0.8)
package testutil
