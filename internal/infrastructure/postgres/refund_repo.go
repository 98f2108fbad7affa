package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/domain/refund"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RefundRepository struct {
	pool *pgxpool.Pool
}

func NewRefundRepository(pool *pgxpool.Pool) *RefundRepository {
	return &RefundRepository{pool: pool}
}

func (r *RefundRepository) Create(ctx context.Context, rf *refund.Refund) error {
	const sql = `
		INSERT INTO refunds (id, order_id, refund_no, amount, used_days, remaining_days, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := conn(ctx, r.pool).Exec(ctx, sql,
		rf.ID, rf.OrderID, rf.RefundNo, rf.Amount, rf.UsedDays, rf.RemainingDays, rf.Status, rf.CreatedAt, rf.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}

// GetByOrderID returns nil without error when no refund exists for the order.
func (r *RefundRepository) GetByOrderID(ctx context.Context, orderID string) (*refund.Refund, error) {
	const sql = `
		SELECT id, order_id, refund_no, amount, used_days, remaining_days, status, created_at, updated_at
		FROM refunds
		WHERE order_id = $1
	`

	var rf refund.Refund
	err := conn(ctx, r.pool).QueryRow(ctx, sql, orderID).Scan(
		&rf.ID, &rf.OrderID, &rf.RefundNo, &rf.Amount, &rf.UsedDays, &rf.RemainingDays, &rf.Status, &rf.CreatedAt, &rf.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get refund by order_id: %w", err)
	}
	return &rf, nil
}

func (r *RefundRepository) MarkSucceeded(ctx context.Context, id string) error {
	const sql = `
		UPDATE refunds
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := conn(ctx, r.pool).Exec(ctx, sql, id, refund.StatusSucceeded)
	if err != nil {
		return fmt.Errorf("mark refund succeeded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.KindNotFound, "refund %s not found", id)
	}
	return nil
}
