package ai

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
)

var _ driven.EmbeddingValidator = (*ConfigValidator)(nil)

// probeText is embedded once to check the vector size a provider returns.
const probeText = "El tribunal desestima el recurso de casación."

// ConfigValidator checks an embedding configuration before it is saved.
type ConfigValidator struct {
	timeout func() (context.Context, context.CancelFunc)
}

// NewConfigValidator creates a validator bounded by the ping timeout.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		timeout: func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), pingTimeout)
		},
	}
}

// ValidateEmbedding builds the service, pings it and embeds a probe
// sentence. A provider whose vectors do not have the configured size is
// rejected with ErrDimensionMismatch, since every vector in an index must
// share one dimension.
func (v *ConfigValidator) ValidateEmbedding(settings *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := v.timeout()
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		return err
	}

	vec, err := svc.Embed(ctx, probeText)
	if err != nil {
		return fmt.Errorf("probing %s: %w", settings.Provider, err)
	}
	if len(vec) != svc.Dimensions() {
		return fmt.Errorf("%w: %s returned %d dimensions, configured %d",
			domain.ErrDimensionMismatch, svc.ModelName(), len(vec), svc.Dimensions())
	}
	return nil
}
