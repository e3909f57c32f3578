package domain

import (
	"context"
	"errors"
)

// Domain errors represent business logic failures.
// Adapters translate provider and storage errors into these sentinels
// at the port boundary; callers inspect them with errors.Is.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates caller misuse: bad top_k, empty query,
	// overlap not smaller than chunk size.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmbeddingUnavailable indicates the embedding provider cannot be reached.
	// Transient: ingestion retries it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrEmbeddingTimeout indicates the embedding call exceeded its deadline.
	ErrEmbeddingTimeout = errors.New("embedding timed out")

	// ErrEmbeddingRejected indicates the provider refused the input
	// (empty text, text over the length limit). Permanent.
	ErrEmbeddingRejected = errors.New("embedding rejected")

	// ErrDimensionMismatch indicates a vector whose dimension or model
	// differs from the one the index is bound to. Never auto-corrected.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrIndexIO indicates a storage failure in the vector index or catalogue.
	ErrIndexIO = errors.New("index I/O error")

	// ErrPartialIngest indicates that some chunks of a document failed.
	// It is returned together with an IngestReport listing them.
	ErrPartialIngest = errors.New("partial ingestion")

	// ErrUnsupportedType indicates an unknown provider, backend or file type.
	ErrUnsupportedType = errors.New("unsupported type")
)

// Kind is the machine-readable classification of an error.
type Kind string

// Error kinds exposed at the transport boundary.
const (
	KindInvalidArgument      Kind = "invalid_argument"
	KindEmbeddingUnavailable Kind = "embedding_unavailable"
	KindEmbeddingTimeout     Kind = "embedding_timeout"
	KindEmbeddingRejected    Kind = "embedding_rejected"
	KindDimensionMismatch    Kind = "dimension_mismatch"
	KindIndexIO              Kind = "index_io"
	KindNotFound             Kind = "not_found"
	KindCancelled            Kind = "cancelled"
	KindInternal             Kind = "internal"
)

// KindOf classifies err. Nil yields "".
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrDimensionMismatch):
		return KindDimensionMismatch
	case errors.Is(err, ErrEmbeddingRejected):
		return KindEmbeddingRejected
	case errors.Is(err, ErrEmbeddingTimeout):
		return KindEmbeddingTimeout
	case errors.Is(err, ErrEmbeddingUnavailable):
		return KindEmbeddingUnavailable
	case errors.Is(err, ErrIndexIO):
		return KindIndexIO
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindInternal
	}
}

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable) || errors.Is(err, ErrEmbeddingTimeout)
}
