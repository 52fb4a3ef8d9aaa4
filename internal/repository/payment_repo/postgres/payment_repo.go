package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"marketplace/internal/domain"
	"marketplace/internal/repository/payment_repo"
)

type pgPaymentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPaymentRepository(db *sql.DB, l *zap.Logger) payment_repo.PaymentRepository {
	return &pgPaymentRepository{db: db, logger: l}
}

func (r *pgPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `INSERT INTO payments (id, order_id, provider_payment_id, conversation_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		payment.ID, payment.OrderID, payment.ProviderPaymentID, payment.ConversationID,
		payment.Amount, payment.Status, payment.CreatedAt, payment.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create payment",
			zap.String("payment_id", payment.ID),
			zap.String("order_id", payment.OrderID),
			zap.Error(err))
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *pgPaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	query := `SELECT id, order_id, provider_payment_id, conversation_id, amount, status, created_at, updated_at
		FROM payments WHERE order_id = $1`
	return r.scanOne(ctx, query, orderID)
}

func (r *pgPaymentRepository) GetByProviderRef(ctx context.Context, providerPaymentID, conversationID string) (*domain.Payment, error) {
	if providerPaymentID == "" && conversationID == "" {
		return nil, domain.ErrPaymentNotFound
	}
	query := `SELECT id, order_id, provider_payment_id, conversation_id, amount, status, created_at, updated_at
		FROM payments
		WHERE ($1 <> '' AND provider_payment_id = $1)
		   OR ($2 <> '' AND conversation_id = $2)`
	return r.scanOne(ctx, query, providerPaymentID, conversationID)
}

func (r *pgPaymentRepository) scanOne(ctx context.Context, query string, args ...interface{}) (*domain.Payment, error) {
	payment := &domain.Payment{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&payment.ID, &payment.OrderID, &payment.ProviderPaymentID, &payment.ConversationID,
		&payment.Amount, &payment.Status, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		r.logger.Error("Failed to query payment", zap.Error(err))
		return nil, fmt.Errorf("failed to query payment: %w", err)
	}
	return payment, nil
}

func (r *pgPaymentRepository) CompleteAndMarkOrderPaid(ctx context.Context, paymentID, orderID string) (completed bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction for payment completion",
			zap.String("payment_id", paymentID), zap.Error(err))
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Panic during payment completion transaction, rolling back",
				zap.String("payment_id", paymentID))
			_ = tx.Rollback()
			panic(p)
		} else if err != nil || !completed {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
			if err != nil {
				r.logger.Error("Failed to commit payment completion transaction",
					zap.String("payment_id", paymentID), zap.Error(err))
				completed = false
			}
		}
	}()

	paymentQuery := `UPDATE payments SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`
	res, err := tx.ExecContext(ctx, paymentQuery, paymentID,
		domain.PaymentStatusCompleted, domain.PaymentStatusPending)
	if err != nil {
		return false, fmt.Errorf("tx failed to complete payment %s: %w", paymentID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("tx failed to check payment update result: %w", err)
	}
	if rowsAffected == 0 {
		// Already completed: duplicate delivery, nothing to do.
		return false, nil
	}

	orderQuery := `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`
	_, err = tx.ExecContext(ctx, orderQuery, orderID,
		domain.OrderStatusPaid, domain.OrderStatusCreated)
	if err != nil {
		return false, fmt.Errorf("tx failed to mark order %s paid: %w", orderID, err)
	}

	completed = true
	r.logger.Info("Payment completed and order marked paid",
		zap.String("payment_id", paymentID),
		zap.String("order_id", orderID))
	return completed, err
}

func (r *pgPaymentRepository) UpdateStatus(ctx context.Context, id string, from, to domain.PaymentStatus) (bool, error) {
	query := `UPDATE payments SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		r.logger.Error("Failed to update payment status",
			zap.String("payment_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(err))
		return false, fmt.Errorf("failed to update payment %s status: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check update result for payment %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return false, nil
	}
	r.logger.Info("Payment status updated",
		zap.String("payment_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return true, nil
}
