package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"marketplace/internal/domain"
	"marketplace/internal/repository/order_repo"
)

type pgOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrderRepository(db *sql.DB, l *zap.Logger) order_repo.OrderRepository {
	return &pgOrderRepository{db: db, logger: l}
}

func (r *pgOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `INSERT INTO orders (id, buyer_id, seller_id, title, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		order.ID, order.BuyerID, order.SellerID, order.Title, order.Amount,
		order.Status, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create order", zap.String("order_id", order.ID), zap.Error(err))
		return fmt.Errorf("failed to create order: %w", err)
	}
	r.logger.Debug("Order created", zap.String("order_id", order.ID))
	return nil
}

func (r *pgOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}
	var commission sql.NullFloat64
	query := `SELECT id, buyer_id, seller_id, title, amount, commission, status, created_at, updated_at
		FROM orders WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID, &order.BuyerID, &order.SellerID, &order.Title, &order.Amount,
		&commission, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		r.logger.Error("Failed to get order by ID", zap.String("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	if commission.Valid {
		order.Commission = &commission.Float64
	}
	return order, nil
}

func (r *pgOrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	query := `UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		r.logger.Error("Failed to update order status",
			zap.String("order_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(err))
		return false, fmt.Errorf("failed to update order %s status: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check update result for order %s: %w", id, err)
	}
	if rowsAffected == 0 {
		r.logger.Debug("Conditional order status update matched no row",
			zap.String("order_id", id),
			zap.String("expected_status", string(from)),
			zap.String("target_status", string(to)))
		return false, nil
	}
	r.logger.Info("Order status updated",
		zap.String("order_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return true, nil
}

func (r *pgOrderRepository) SetCommission(ctx context.Context, id string, commission float64) (bool, error) {
	query := `UPDATE orders SET commission = $2, status = $3, updated_at = now()
		WHERE id = $1 AND status = $4 AND commission IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, commission,
		domain.OrderStatusCompleted, domain.OrderStatusDelivered)
	if err != nil {
		r.logger.Error("Failed to set order commission", zap.String("order_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to set commission for order %s: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check commission update result for order %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return false, nil
	}
	r.logger.Info("Order commission persisted",
		zap.String("order_id", id),
		zap.Float64("commission", commission))
	return true, nil
}
