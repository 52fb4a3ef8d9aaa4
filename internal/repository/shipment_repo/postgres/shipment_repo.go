package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"marketplace/internal/domain"
	"marketplace/internal/repository/shipment_repo"
)

type pgShipmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewShipmentRepository(db *sql.DB, l *zap.Logger) shipment_repo.ShipmentRepository {
	return &pgShipmentRepository{db: db, logger: l}
}

func (r *pgShipmentRepository) Create(ctx context.Context, shipment *domain.Shipment) (bool, error) {
	query := `INSERT INTO shipments (id, order_id, carrier, tracking_number, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		shipment.ID, shipment.OrderID, shipment.Carrier, shipment.TrackingNumber,
		shipment.Status, shipment.CreatedAt, shipment.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create shipment",
			zap.String("shipment_id", shipment.ID),
			zap.String("order_id", shipment.OrderID),
			zap.Error(err))
		return false, fmt.Errorf("failed to create shipment: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check shipment insert result: %w", err)
	}
	if rowsAffected == 0 {
		r.logger.Info("Shipment already exists for order, insert skipped",
			zap.String("order_id", shipment.OrderID))
		return false, nil
	}
	r.logger.Info("Shipment created",
		zap.String("shipment_id", shipment.ID),
		zap.String("order_id", shipment.OrderID),
		zap.String("tracking_number", shipment.TrackingNumber))
	return true, nil
}

func (r *pgShipmentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Shipment, error) {
	query := `SELECT id, order_id, carrier, tracking_number, COALESCE(label_url, ''), status, created_at, updated_at
		FROM shipments WHERE order_id = $1`
	return r.scanOne(ctx, query, orderID)
}

func (r *pgShipmentRepository) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Shipment, error) {
	query := `SELECT id, order_id, carrier, tracking_number, COALESCE(label_url, ''), status, created_at, updated_at
		FROM shipments WHERE tracking_number = $1`
	return r.scanOne(ctx, query, trackingNumber)
}

func (r *pgShipmentRepository) scanOne(ctx context.Context, query string, args ...interface{}) (*domain.Shipment, error) {
	shipment := &domain.Shipment{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&shipment.ID, &shipment.OrderID, &shipment.Carrier, &shipment.TrackingNumber,
		&shipment.LabelURL, &shipment.Status, &shipment.CreatedAt, &shipment.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrShipmentNotFound
		}
		r.logger.Error("Failed to query shipment", zap.Error(err))
		return nil, fmt.Errorf("failed to query shipment: %w", err)
	}
	return shipment, nil
}

func (r *pgShipmentRepository) SetLabelURL(ctx context.Context, id, labelURL string) error {
	query := `UPDATE shipments SET label_url = $2, updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, labelURL)
	if err != nil {
		r.logger.Error("Failed to set shipment label URL", zap.String("shipment_id", id), zap.Error(err))
		return fmt.Errorf("failed to set label URL for shipment %s: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check label update result: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrShipmentNotFound
	}
	return nil
}

func (r *pgShipmentRepository) RecordTrackingEvent(ctx context.Context, shipmentID string, event *domain.ShipmentEvent) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction for tracking event",
			zap.String("shipment_id", shipmentID), zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Panic during tracking event transaction, rolling back",
				zap.String("shipment_id", shipmentID))
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
			if err != nil {
				r.logger.Error("Failed to commit tracking event transaction",
					zap.String("shipment_id", shipmentID), zap.Error(err))
			}
		}
	}()

	eventQuery := `INSERT INTO shipment_events (shipment_id, status, carrier_status, location, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err = tx.ExecContext(ctx, eventQuery,
		shipmentID, event.Status, event.CarrierStatus, event.Location, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("tx failed to append shipment event: %w", err)
	}

	statusQuery := `UPDATE shipments SET status = $2, updated_at = now() WHERE id = $1`
	_, err = tx.ExecContext(ctx, statusQuery, shipmentID, event.Status)
	if err != nil {
		return fmt.Errorf("tx failed to update shipment status: %w", err)
	}

	r.logger.Debug("Tracking event recorded",
		zap.String("shipment_id", shipmentID),
		zap.String("status", string(event.Status)),
		zap.String("carrier_status", event.CarrierStatus))
	return err
}

func (r *pgShipmentRepository) History(ctx context.Context, shipmentID string) ([]*domain.ShipmentEvent, error) {
	query := `SELECT id, shipment_id, status, carrier_status, COALESCE(location, ''), created_at
		FROM shipment_events WHERE shipment_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, shipmentID)
	if err != nil {
		r.logger.Error("Failed to query shipment history", zap.String("shipment_id", shipmentID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history for shipment %s: %w", shipmentID, err)
	}
	defer rows.Close()

	var events []*domain.ShipmentEvent
	for rows.Next() {
		event := &domain.ShipmentEvent{}
		if err := rows.Scan(&event.ID, &event.ShipmentID, &event.Status,
			&event.CarrierStatus, &event.Location, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan shipment event row: %w", err)
		}
		events = append(events, event)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}
