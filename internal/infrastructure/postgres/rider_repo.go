package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/domain/rider"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RiderRepository reads user accounts. Accounts are created by the login flow.
type RiderRepository struct {
	pool *pgxpool.Pool
}

func NewRiderRepository(pool *pgxpool.Pool) *RiderRepository {
	return &RiderRepository{pool: pool}
}

const riderColumns = `id, COALESCE(nickname, ''), COALESCE(avatar_url, ''), COALESCE(openid, ''), COALESCE(unionid, ''), COALESCE(qrcode, ''), user_type`

func (r *RiderRepository) GetByID(ctx context.Context, id string) (*rider.Rider, error) {
	sql := `SELECT ` + riderColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, sql, id, "rider "+id)
}

// GetByQRCodeForUpdate resolves a scan code and locks the rider row, which
// serialises concurrent scans of the same rider.
func (r *RiderRepository) GetByQRCodeForUpdate(ctx context.Context, code string) (*rider.Rider, error) {
	sql := `SELECT ` + riderColumns + ` FROM users WHERE qrcode = $1 FOR UPDATE`
	return r.getOne(ctx, sql, code, "ticket code")
}

func (r *RiderRepository) ListAdmins(ctx context.Context) ([]*rider.Rider, error) {
	sql := `SELECT ` + riderColumns + ` FROM users WHERE user_type = $1 ORDER BY id`

	rows, err := conn(ctx, r.pool).Query(ctx, sql, rider.TypeAdmin)
	if err != nil {
		return nil, fmt.Errorf("query admins: %w", err)
	}
	defer rows.Close()

	var out []*rider.Rider
	for rows.Next() {
		rd, err := scanRider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		out = append(out, rd)
	}
	return out, rows.Err()
}

func (r *RiderRepository) getOne(ctx context.Context, sql, arg, what string) (*rider.Rider, error) {
	rd, err := scanRider(conn(ctx, r.pool).QueryRow(ctx, sql, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Newf(apperr.KindNotFound, "%s not found", what)
		}
		return nil, fmt.Errorf("get rider: %w", err)
	}
	return rd, nil
}

func scanRider(row pgx.Row) (*rider.Rider, error) {
	var rd rider.Rider
	if err := row.Scan(&rd.ID, &rd.Nickname, &rd.AvatarURL, &rd.OpenID, &rd.UnionID, &rd.QRCode, &rd.Type); err != nil {
		return nil, err
	}
	return &rd, nil
}
