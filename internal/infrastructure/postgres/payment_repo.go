package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/domain/payment"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

const paymentColumns = `id, order_id, payment_no, amount, status, payment_method, COALESCE(transaction_id, ''), created_at, updated_at`

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	const sql = `
		INSERT INTO payments (id, order_id, payment_no, amount, status, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := conn(ctx, r.pool).Exec(ctx, sql, p.ID, p.OrderID, p.PaymentNo, p.Amount, p.Status, p.Method, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

// GetByOrderID returns nil without error when the order has no payment.
func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*payment.Payment, error) {
	sql := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`

	p, err := scanPayment(conn(ctx, r.pool).QueryRow(ctx, sql, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by order_id: %w", err)
	}
	return p, nil
}

// GetByPaymentNoForUpdate locks the payment row for the rest of the transaction.
func (r *PaymentRepository) GetByPaymentNoForUpdate(ctx context.Context, paymentNo string) (*payment.Payment, error) {
	sql := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_no = $1 FOR UPDATE`

	p, err := scanPayment(conn(ctx, r.pool).QueryRow(ctx, sql, paymentNo))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Newf(apperr.KindNotFound, "payment %s not found", paymentNo)
		}
		return nil, fmt.Errorf("get payment by payment_no: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) MarkSucceeded(ctx context.Context, id string, transactionID string) error {
	const sql = `
		UPDATE payments
		SET status = $2, transaction_id = $3, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := conn(ctx, r.pool).Exec(ctx, sql, id, payment.StatusSucceeded, transactionID)
	if err != nil {
		return fmt.Errorf("mark payment succeeded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.KindNotFound, "payment %s not found", id)
	}
	return nil
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status payment.Status) error {
	const sql = `
		UPDATE payments
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := conn(ctx, r.pool).Exec(ctx, sql, id, status)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.KindNotFound, "payment %s not found", id)
	}
	return nil
}

func scanPayment(row pgx.Row) (*payment.Payment, error) {
	var p payment.Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.PaymentNo, &p.Amount, &p.Status, &p.Method, &p.TransactionID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
