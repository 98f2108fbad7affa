package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/domain/verification"

	"github.com/jackc/pgx/v5/pgxpool"
)

// VerificationRepository stores ticket scans. Rows are only ever inserted and counted.
type VerificationRepository struct {
	pool *pgxpool.Pool
}

func NewVerificationRepository(pool *pgxpool.Pool) *VerificationRepository {
	return &VerificationRepository{pool: pool}
}

func (r *VerificationRepository) Create(ctx context.Context, e *verification.Event) error {
	const sql = `
		INSERT INTO ticket_verification_records (id, user_id, created_at)
		VALUES ($1, $2, $3)
	`

	if _, err := conn(ctx, r.pool).Exec(ctx, sql, e.ID, e.RiderID, e.CreatedAt); err != nil {
		return fmt.Errorf("insert verification record: %w", err)
	}
	return nil
}

// CountBetween counts the rider's scans in [from, to).
func (r *VerificationRepository) CountBetween(ctx context.Context, riderID string, from, to time.Time) (int, error) {
	const sql = `
		SELECT COUNT(*)
		FROM ticket_verification_records
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
	`

	var n int
	if err := conn(ctx, r.pool).QueryRow(ctx, sql, riderID, from, to).Scan(&n); err != nil {
		return 0, fmt.Errorf("count verification records: %w", err)
	}
	return n, nil
}
