package memory

import (
	"context"

	"github.com/baechuer/pension-service/internal/application/signup"
	"github.com/baechuer/pension-service/internal/logger"
)

// NoopPublisher logs events instead of sending them. Used when RABBIT_URL is
// not configured.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (p *NoopPublisher) PublishAccountRegistered(ctx context.Context, evt signup.AccountRegisteredEvent) error {
	logger.WithCtx(ctx).Info().
		Str("account_id", evt.AccountID).
		Str("category", evt.Category).
		Msg("[noop-pub] account registered")
	return nil
}
