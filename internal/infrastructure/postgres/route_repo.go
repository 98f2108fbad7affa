package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/domain/route"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RouteRepository reads bus schedules. Schedules are maintained by the admin UI.
type RouteRepository struct {
	pool *pgxpool.Pool
}

func NewRouteRepository(pool *pgxpool.Pool) *RouteRepository {
	return &RouteRepository{pool: pool}
}

func (r *RouteRepository) GetByID(ctx context.Context, id string) (*route.Route, error) {
	const sql = `
		SELECT id, route_name, daily_price, status, COALESCE(service_dates, '[]'::jsonb), created_at
		FROM bus_schedules
		WHERE id = $1
	`

	var (
		rt    route.Route
		dates []byte
	)
	err := conn(ctx, r.pool).QueryRow(ctx, sql, id).Scan(&rt.ID, &rt.Name, &rt.DailyPrice, &rt.Status, &dates, &rt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Newf(apperr.KindNotFound, "route %s not found", id)
		}
		return nil, fmt.Errorf("get route by id: %w", err)
	}

	if err := json.Unmarshal(dates, &rt.ServiceDates); err != nil {
		return nil, fmt.Errorf("decode service dates of route %s: %w", id, err)
	}
	return &rt, nil
}
