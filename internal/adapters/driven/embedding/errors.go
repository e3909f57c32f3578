// Package embedding holds the helpers shared by the embedding adapters.
// Providers live in subpackages; each translates its failures into the
// domain embedding errors with the functions below.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// maxErrorBody caps provider error text quoted in error messages.
const maxErrorBody = 300

// TransportError classifies a failed HTTP round trip. Deadline and
// network timeouts map to domain.ErrEmbeddingTimeout, cancellation is
// returned as is and everything else is unavailability.
func TransportError(ctx context.Context, provider string, err error) error {
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", domain.ErrEmbeddingTimeout, provider, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %v", domain.ErrEmbeddingTimeout, provider, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrEmbeddingUnavailable, provider, err)
}

// StatusError classifies a non-2xx provider response.
func StatusError(provider string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}

	var sentinel error
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		sentinel = domain.ErrEmbeddingTimeout
	case status == http.StatusTooManyRequests, status >= 500:
		sentinel = domain.ErrEmbeddingUnavailable
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		sentinel = domain.ErrEmbeddingUnavailable
	default:
		sentinel = domain.ErrEmbeddingRejected
	}
	return fmt.Errorf("%w: %s returned status %d: %s", sentinel, provider, status, msg)
}

// CheckInputs rejects a batch holding empty or whitespace-only text.
func CheckInputs(texts []string) error {
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: input %d is empty", domain.ErrEmbeddingRejected, i)
		}
	}
	return nil
}

// CheckVectors verifies a provider returned one vector of the expected
// dimension per input. A zero dimension accepts any length.
func CheckVectors(provider string, vectors [][]float32, inputs, dimension int) error {
	if len(vectors) != inputs {
		return fmt.Errorf("%w: %s returned %d vectors for %d inputs", domain.ErrEmbeddingUnavailable, provider, len(vectors), inputs)
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: %s returned no vector for input %d", domain.ErrEmbeddingUnavailable, provider, i)
		}
		if dimension > 0 && len(v) != dimension {
			return fmt.Errorf("%w: %s returned %d dimensions, expected %d", domain.ErrDimensionMismatch, provider, len(v), dimension)
		}
	}
	return nil
}
