package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"marketplace/internal/domain"
	"marketplace/internal/repository/token_repo"
)

type pgDeviceTokenRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewDeviceTokenRepository(db *sql.DB, l *zap.Logger) token_repo.DeviceTokenRepository {
	return &pgDeviceTokenRepository{db: db, logger: l}
}

func (r *pgDeviceTokenRepository) TokensForUser(ctx context.Context, userID string) ([]*domain.DeviceToken, error) {
	query := `SELECT user_id, token, platform, created_at FROM device_tokens WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to query device tokens", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get device tokens for user %s: %w", userID, err)
	}
	defer rows.Close()

	var tokens []*domain.DeviceToken
	for rows.Next() {
		token := &domain.DeviceToken{}
		if err := rows.Scan(&token.UserID, &token.Token, &token.Platform, &token.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device token row: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return tokens, nil
}
