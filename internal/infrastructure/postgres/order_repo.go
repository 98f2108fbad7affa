package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/domain/order"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `
	o.id, o.order_no, o.user_id, COALESCE(o.order_user_name, ''), o.route_id,
	COALESCE(b.route_name, ''), o.selected_dates, o.trip_type, o.total_amount, o.status,
	o.refund_amount, o.used_days, o.remaining_days, COALESCE(o.remark, ''),
	o.created_at, o.updated_at
`

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	const sql = `
		INSERT INTO orders (
			id, order_no, user_id, order_user_name, route_id,
			selected_dates, trip_type, total_amount, status,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10, $11)
	`

	dates, err := json.Marshal(o.SelectedDates)
	if err != nil {
		return fmt.Errorf("marshal selected dates: %w", err)
	}

	_, err = conn(ctx, r.pool).Exec(ctx, sql,
		o.ID, o.OrderNo, o.RiderID, nullIfEmptyText(o.RiderName), o.RouteID,
		string(dates), o.TripType, o.TotalAmount, o.Status,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	sql := `SELECT ` + orderColumns + `
		FROM orders o
		LEFT JOIN bus_schedules b ON b.id = o.route_id
		WHERE o.id = $1`

	return r.getOne(ctx, sql, id)
}

// GetByIDForUpdate locks the order row until the surrounding transaction ends.
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, id string) (*order.Order, error) {
	sql := `SELECT ` + orderColumns + `
		FROM orders o
		LEFT JOIN bus_schedules b ON b.id = o.route_id
		WHERE o.id = $1
		FOR UPDATE OF o`

	return r.getOne(ctx, sql, id)
}

func (r *OrderRepository) getOne(ctx context.Context, sql string, id string) (*order.Order, error) {
	o, err := scanOrder(conn(ctx, r.pool).QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Newf(apperr.KindNotFound, "order %s not found", id)
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	const sql = `
		UPDATE orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	cmdTag, err := conn(ctx, r.pool).Exec(ctx, sql, id, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return apperr.Newf(apperr.KindNotFound, "order %s not found", id)
	}

	return nil
}

// MarkRefunded stores the final refund figures and moves the order to refunded.
func (r *OrderRepository) MarkRefunded(ctx context.Context, id string, amount int64, usedDays, remainingDays int) error {
	const sql = `
		UPDATE orders
		SET status = $2, refund_amount = $3, used_days = $4, remaining_days = $5,
			remark = $6, updated_at = NOW()
		WHERE id = $1
	`

	remark := fmt.Sprintf("refunded %d of %d days", remainingDays, usedDays+remainingDays)
	cmdTag, err := conn(ctx, r.pool).Exec(ctx, sql, id, order.StatusRefunded, amount, usedDays, remainingDays, remark)
	if err != nil {
		return fmt.Errorf("mark order refunded: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperr.Newf(apperr.KindNotFound, "order %s not found", id)
	}
	return nil
}

// ListPaidByRiderOn returns the rider's paid orders that include date.
func (r *OrderRepository) ListPaidByRiderOn(ctx context.Context, riderID string, date string) ([]*order.Order, error) {
	sql := `SELECT ` + orderColumns + `
		FROM orders o
		LEFT JOIN bus_schedules b ON b.id = o.route_id
		WHERE o.user_id = $1
		  AND o.status = $2
		  AND o.selected_dates @> jsonb_build_array($3::text)
		ORDER BY o.created_at ASC`

	rows, err := conn(ctx, r.pool).Query(ctx, sql, riderID, order.StatusPaid, date)
	if err != nil {
		return nil, fmt.Errorf("query paid orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// List returns one page of orders matching f together with the total match count.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]*order.Order, int, error) {
	where, args := orderWhere(f)

	countSQL := `
		SELECT COUNT(*)
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		LEFT JOIN bus_schedules b ON b.id = o.route_id` + where

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	listSQL := `SELECT ` + orderColumns + `
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		LEFT JOIN bus_schedules b ON b.id = o.route_id` + where + `
		ORDER BY o.created_at DESC`

	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		listSQL += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := conn(ctx, r.pool).Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func orderWhere(f order.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.RiderID != "" {
		add("o.user_id = $%d", f.RiderID)
	}
	if f.OrderNo != "" {
		add("o.order_no LIKE $%d", "%"+f.OrderNo+"%")
	}
	if f.RouteName != "" {
		add("b.route_name LIKE $%d", "%"+f.RouteName+"%")
	}
	if f.RiderName != "" {
		add("u.nickname LIKE $%d", "%"+f.RiderName+"%")
	}
	if f.Status != "" {
		add("o.status = $%d", f.Status)
	}
	if f.TripType != "" {
		add("o.trip_type = $%d", f.TripType)
	}
	if f.CreatedFrom != nil {
		add("o.created_at >= $%d", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("o.created_at <= $%d", *f.CreatedTo)
	}
	if f.BillingMonth != "" {
		add("EXISTS (SELECT 1 FROM jsonb_array_elements_text(o.selected_dates) d WHERE d LIKE $%d)", f.BillingMonth+"-%")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "\n\t\tWHERE " + strings.Join(conds, " AND "), args
}

func collectOrders(rows pgx.Rows) ([]*order.Order, error) {
	var orders []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o             order.Order
		dates         []byte
		refundAmount  *int64
		usedDays      *int32
		remainingDays *int32
		createdAt     time.Time
		updatedAt     time.Time
	)

	err := row.Scan(
		&o.ID, &o.OrderNo, &o.RiderID, &o.RiderName, &o.RouteID,
		&o.RouteName, &dates, &o.TripType, &o.TotalAmount, &o.Status,
		&refundAmount, &usedDays, &remainingDays, &o.Remark,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(dates, &o.SelectedDates); err != nil {
		return nil, fmt.Errorf("decode selected dates of order %s: %w", o.ID, err)
	}

	o.RefundAmount = refundAmount
	o.UsedDays = intPtr(usedDays)
	o.RemainingDays = intPtr(remainingDays)
	o.CreatedAt = createdAt
	o.UpdatedAt = updatedAt
	return &o, nil
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}

func nullIfEmptyText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
