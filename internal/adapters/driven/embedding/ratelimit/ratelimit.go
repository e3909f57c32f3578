// Package ratelimit throttles calls to an embedding provider with a
// token bucket.
package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
)

// Ensure Service implements the interface.
var _ driven.EmbeddingService = (*Service)(nil)

// Service wraps an EmbeddingService so each Embed or EmbedBatch call
// takes one token first.
type Service struct {
	driven.EmbeddingService
	limiter *rate.Limiter
}

// Wrap returns inner throttled to perSecond requests per second with a
// burst of one. A non-positive rate returns inner unchanged.
func Wrap(inner driven.EmbeddingService, perSecond float64) driven.EmbeddingService {
	if perSecond <= 0 {
		return inner
	}
	return &Service{
		EmbeddingService: inner,
		limiter:          rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Embed waits for a token and embeds text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.EmbeddingService.Embed(ctx, text)
}

// EmbedBatch waits for a token and embeds texts.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.EmbeddingService.EmbedBatch(ctx, texts)
}

// Limit returns the configured rate.
func (s *Service) Limit() rate.Limit {
	return s.limiter.Limit()
}

func (s *Service) wait(ctx context.Context) error {
	err := s.limiter.Wait(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	// Wait fails early when the next token lies past the deadline.
	return fmt.Errorf("%w: rate limit wait: %v", domain.ErrEmbeddingTimeout, err)
}
