package token_repo

import (
	"context"

	"marketplace/internal/domain"
)

type DeviceTokenRepository interface {
	// TokensForUser returns every registered device token for a user; an
	// empty slice means there is nothing to push to.
	TokensForUser(ctx context.Context, userID string) ([]*domain.DeviceToken, error)
}
