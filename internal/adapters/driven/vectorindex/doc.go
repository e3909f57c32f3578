// Package vectorindex holds what every VectorIndex backend shares:
// cosine scoring, the bounded top-k selection with its deterministic
// tie-break, striped per-key locks and the vector codec.
//
// Backends live in subpackages:
//   - memory: sharded in-process map
//   - sqlite: persistent brute-force scan (default)
//   - chromem: embedded chromem-go database
//   - qdrant: remote Qdrant collection over gRPC
package vectorindex
