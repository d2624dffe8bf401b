package auth

import (
	"context"

	"github.com/baechuer/pension-service/internal/domain"
)

func (s *Service) Me(ctx context.Context, accountID string) (domain.Account, error) {
	if accountID == "" {
		return domain.Account{}, domain.ErrTokenInvalid()
	}
	return s.accounts.GetByID(ctx, accountID)
}
