package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/domain/event"
	"github.com/attractive-boy/schoolbus-back/internal/domain/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTripTwicePerDay(t *testing.T) {
	e := newEnv(t, at("2024-09-03", "09:00"))
	e.seedOrder(t, "o1", "r1", order.StatusPaid, order.TripRoundTrip, "2024-09-03", "2024-09-04")
	uc := e.verifyTicket()
	ctx := context.Background()

	steps := []struct {
		at      string
		wantErr string
	}{
		{"09:00", ""},
		{"10:00", "already verified this morning"},
		{"14:00", ""},
		{"20:00", "already verified this afternoon"},
	}

	for _, s := range steps {
		e.clk.Set(at("2024-09-03", s.at))
		res, err := uc.Execute(ctx, VerifyTicketParams{TicketCode: "QR-R1"})
		if s.wantErr == "" {
			require.NoError(t, err, s.at)
			assert.True(t, res.Valid)
			assert.Equal(t, "r1", res.RiderID)
			assert.Equal(t, "Lin", res.Nickname)
			assert.Equal(t, []string{"North Gate"}, res.RouteNames)
			assert.Equal(t, string(order.TripRoundTrip), res.TripType)
			continue
		}
		require.Error(t, err, s.at)
		assert.Equal(t, apperr.KindResourceExhausted, apperr.KindOf(err), s.at)
		assert.Equal(t, s.wantErr, apperr.MessageOf(err), s.at)
	}

	assert.Len(t, e.l.verifications, 2)
	assert.Len(t, e.l.eventsOfType(event.TypeTicketVerified), 2)

	// A new day resets the window.
	e.clk.Set(at("2024-09-04", "07:30"))
	_, err := uc.Execute(ctx, VerifyTicketParams{TicketCode: "QR-R1"})
	require.NoError(t, err)
}

func TestVerifySingleTripOncePerDay(t *testing.T) {
	e := newEnv(t, at("2024-09-03", "07:00"))
	e.seedOrder(t, "o1", "r1", order.StatusPaid, order.TripSingle, "2024-09-03")
	uc := e.verifyTicket()
	ctx := context.Background()

	_, err := uc.Execute(ctx, VerifyTicketParams{TicketCode: "QR-R1"})
	require.NoError(t, err)

	e.clk.Set(at("2024-09-03", "17:00"))
	_, err = uc.Execute(ctx, VerifyTicketParams{TicketCode: "QR-R1"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindResourceExhausted, apperr.KindOf(err))
	assert.Equal(t, "already verified today", apperr.MessageOf(err))
	assert.Len(t, e.l.verifications, 1)
}

func TestVerifyMixedTripsUseHalfDayLimit(t *testing.T) {
	e := newEnv(t, at("2024-09-03", "08:00"))
	e.seedOrder(t, "o1", "r1", order.StatusPaid, order.TripSingle, "2024-09-03")
	e.seedOrder(t, "o2", "r1", order.StatusPaid, order.TripRoundTrip, "2024-09-03")
	uc := e.verifyTicket()
	ctx := context.Background()

	res, err := uc.Execute(ctx, VerifyTicketParams{TicketCode: "QR-R1"})
	require.NoError(t, err)
	assert.Equal(t, string(order.TripRoundTrip), res.TripType)
	assert.Len(t, res.RouteNames, 2)

	e.clk.Set(at("2024-09-03", "13:00"))
	_, err = uc.Execute(ctx, VerifyTicketParams{TicketCode: "QR-R1"})
	require.NoError(t, err)
}

func TestVerifyRejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		status order.Status
		date   string
		code   string
		kind   apperr.Kind
	}{
		{"empty code", order.StatusPaid, "2024-09-03", "  ", apperr.KindInvalidArgument},
		{"unknown code", order.StatusPaid, "2024-09-03", "QR-NOBODY", apperr.KindNotFound},
		{"no ride today", order.StatusPaid, "2024-09-04", "QR-R1", apperr.KindFailedPrecondition},
		{"order not paid", order.StatusPendingPayment, "2024-09-03", "QR-R1", apperr.KindFailedPrecondition},
		{"order refunded", order.StatusRefunded, "2024-09-03", "QR-R1", apperr.KindFailedPrecondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, at("2024-09-03", "08:00"))
			e.seedOrder(t, "o1", "r1", tt.status, order.TripSingle, tt.date)

			_, err := e.verifyTicket().Execute(ctx, VerifyTicketParams{TicketCode: tt.code})
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Empty(t, e.l.verifications)
			assert.Empty(t, e.l.outbox)
		})
	}
}

func TestConcurrentScansAcceptOncePerHalfDay(t *testing.T) {
	e := newEnv(t, at("2024-09-03", "07:40"))
	e.seedOrder(t, "o1", "r1", order.StatusPaid, order.TripRoundTrip, "2024-09-03")
	uc := e.verifyTicket()

	scan := func() (accepted, exhausted int) {
		const scanners = 10
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			errs []error
		)
		for i := 0; i < scanners; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := uc.Execute(context.Background(), VerifyTicketParams{TicketCode: "QR-R1"})
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}()
		}
		wg.Wait()

		for _, err := range errs {
			switch {
			case err == nil:
				accepted++
			case apperr.KindOf(err) == apperr.KindResourceExhausted:
				exhausted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		return accepted, exhausted
	}

	accepted, exhausted := scan()
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 9, exhausted)

	e.clk.Set(at("2024-09-03", "16:30"))
	accepted, exhausted = scan()
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 9, exhausted)

	assert.Len(t, e.l.verifications, 2)
	assert.Len(t, e.l.eventsOfType(event.TypeTicketVerified), 2)
}
