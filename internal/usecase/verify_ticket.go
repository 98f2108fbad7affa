package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/clock"
	"github.com/attractive-boy/schoolbus-back/internal/domain/event"
	"github.com/attractive-boy/schoolbus-back/internal/domain/order"
	"github.com/attractive-boy/schoolbus-back/internal/domain/outbox"
	"github.com/attractive-boy/schoolbus-back/internal/domain/verification"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/postgres"

	"github.com/google/uuid"
)

type VerifyTicket struct {
	txManager        postgres.Transactor
	riderRepo        RiderStore
	orderRepo        OrderStore
	verificationRepo VerificationStore
	outboxRepo       OutboxStore
	calendar         clock.Calendar
}

func NewVerifyTicket(
	txManager postgres.Transactor,
	riderRepo RiderStore,
	orderRepo OrderStore,
	verificationRepo VerificationStore,
	outboxRepo OutboxStore,
	calendar clock.Calendar,
) *VerifyTicket {
	return &VerifyTicket{
		txManager:        txManager,
		riderRepo:        riderRepo,
		orderRepo:        orderRepo,
		verificationRepo: verificationRepo,
		outboxRepo:       outboxRepo,
		calendar:         calendar,
	}
}

type VerifyTicketParams struct {
	TicketCode string `json:"ticketCode"`
}

type VerifyTicketResult struct {
	Valid      bool      `json:"valid"`
	RiderID    string    `json:"riderId"`
	Nickname   string    `json:"nickname"`
	AvatarURL  string    `json:"avatarUrl,omitempty"`
	RouteNames []string  `json:"routeNames"`
	TripType   string    `json:"tripType"`
	VerifiedAt time.Time `json:"verifiedAt"`
}

// Execute checks a scanned ticket code against today's paid orders and the
// scan limits, then records the scan. Nothing is written when a check fails.
//
// A rider with any round trip today may board once before noon and once
// after; otherwise once per day.
func (uc *VerifyTicket) Execute(ctx context.Context, params VerifyTicketParams) (*VerifyTicketResult, error) {
	code := strings.TrimSpace(params.TicketCode)
	if code == "" {
		return nil, apperr.InvalidArgument("ticket code is required")
	}

	var result *VerifyTicketResult

	err := uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		// The rider row lock serialises concurrent scans of the same code.
		r, err := uc.riderRepo.GetByQRCodeForUpdate(txCtx, code)
		if err != nil {
			return err
		}

		today := uc.calendar.CurrentDate()
		orders, err := uc.orderRepo.ListPaidByRiderOn(txCtx, r.ID, today)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			return apperr.FailedPrecondition("no ride scheduled today")
		}

		tripType := order.TripSingle
		routeNames := make([]string, 0, len(orders))
		for _, o := range orders {
			if o.TripType == order.TripRoundTrip {
				tripType = order.TripRoundTrip
			}
			routeNames = append(routeNames, o.RouteName)
		}

		if err := uc.checkLimits(txCtx, r.ID, tripType); err != nil {
			return err
		}

		now := uc.calendar.Now()
		if err := uc.verificationRepo.Create(txCtx, &verification.Event{
			ID:        uuid.New().String(),
			RiderID:   r.ID,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		e, err := outbox.New(event.TypeTicketVerified, r.ID, event.ProducerTickets, event.TicketVerified{
			RiderID:    r.ID,
			RouteName:  routeNames[0],
			VerifiedAt: now,
		}, now)
		if err != nil {
			return err
		}
		if err := uc.outboxRepo.Create(txCtx, e); err != nil {
			return err
		}

		result = &VerifyTicketResult{
			Valid:      true,
			RiderID:    r.ID,
			Nickname:   r.Nickname,
			AvatarURL:  r.AvatarURL,
			RouteNames: routeNames,
			TripType:   string(tripType),
			VerifiedAt: now,
		}
		return nil
	})
	if err != nil {
		verifications.WithLabelValues(apperr.KindOf(err).String()).Inc()
		return nil, fmt.Errorf("verify ticket: %w", err)
	}

	verifications.WithLabelValues("ok").Inc()
	slog.InfoContext(ctx, "ticket verified", "rider_id", result.RiderID, "trip_type", result.TripType)
	return result, nil
}

func (uc *VerifyTicket) checkLimits(ctx context.Context, riderID string, tripType order.TripType) error {
	if tripType == order.TripSingle {
		from, to := uc.calendar.DayWindow()
		n, err := uc.verificationRepo.CountBetween(ctx, riderID, from, to)
		if err != nil {
			return err
		}
		if n >= 1 {
			return apperr.ResourceExhausted("already verified today")
		}
		return nil
	}

	from, to := uc.calendar.HalfDayWindow()
	n, err := uc.verificationRepo.CountBetween(ctx, riderID, from, to)
	if err != nil {
		return err
	}
	if n >= 1 {
		if uc.calendar.IsBeforeNoon() {
			return apperr.ResourceExhausted("already verified this morning")
		}
		return apperr.ResourceExhausted("already verified this afternoon")
	}
	return nil
}
