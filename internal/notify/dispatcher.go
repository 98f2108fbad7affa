// Package notify turns lifecycle events into messages for riders and
// administrators. Delivery is best effort.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/domain/event"
	"github.com/attractive-boy/schoolbus-back/internal/domain/rider"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/wechatmsg"
	"github.com/attractive-boy/schoolbus-back/internal/report"
)

type RiderDirectory interface {
	GetByID(ctx context.Context, id string) (*rider.Rider, error)
	ListAdmins(ctx context.Context) ([]*rider.Rider, error)
}

type TemplateSender interface {
	Send(ctx context.Context, m wechatmsg.Message) error
}

type AdminChat interface {
	Post(ctx context.Context, text string) error
}

// Templates are the template ids used per message.
type Templates struct {
	RefundRequested string
	TicketVerified  string
}

const timeLayout = "2006-01-02 15:04:05"

// Dispatcher fans one event out to its recipients. Either channel may be nil.
type Dispatcher struct {
	riders    RiderDirectory
	wechat    TemplateSender
	chat      AdminChat
	templates Templates
	loc       *time.Location
}

func NewDispatcher(riders RiderDirectory, wechat TemplateSender, chat AdminChat, templates Templates, loc *time.Location) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{
		riders:    riders,
		wechat:    wechat,
		chat:      chat,
		templates: templates,
		loc:       loc,
	}
}

// Handles reports whether the dispatcher has anything to say about t.
func (d *Dispatcher) Handles(t string) bool {
	switch t {
	case event.TypeRefundRequested, event.TypeTicketVerified, event.TypeOrderRefunded, event.TypeOrderPaid,
		event.TypePaymentReconciliationRequired:
		return true
	}
	return false
}

// Dispatch delivers ev to every recipient it concerns. A failure for one
// recipient does not stop the others; all failures are returned joined.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Message) error {
	switch ev.Type {
	case event.TypeRefundRequested:
		var p event.RefundRequested
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}
		return d.refundRequested(ctx, p)
	case event.TypeTicketVerified:
		var p event.TicketVerified
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}
		return d.ticketVerified(ctx, p)
	case event.TypeOrderRefunded:
		var p event.OrderRefunded
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}
		return d.post(ctx, fmt.Sprintf("Refund %s completed for order %s: %s CNY (%d used, %d refunded days)",
			p.RefundNo, p.OrderNo, report.Yuan(p.Amount), p.UsedDays, p.RemainingDays))
	case event.TypeOrderPaid:
		var p event.OrderPaid
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}
		return d.post(ctx, fmt.Sprintf("Order %s paid: %s CNY (transaction %s)",
			p.OrderNo, report.Yuan(p.Amount), p.TransactionID))
	case event.TypePaymentReconciliationRequired:
		var p event.PaymentReconciliationRequired
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}
		return d.post(ctx, fmt.Sprintf("Payment %s (transaction %s) of %s CNY arrived for %s order %s; refund it at the gateway",
			p.PaymentNo, p.TransactionID, report.Yuan(p.Amount), p.OrderStatus, p.OrderNo))
	}
	return nil
}

func (d *Dispatcher) refundRequested(ctx context.Context, p event.RefundRequested) error {
	var errs []error

	if d.wechat != nil && d.templates.RefundRequested != "" {
		admins, err := d.riders.ListAdmins(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("list admins: %w", err))
		}
		for _, a := range admins {
			if a.UnionID == "" {
				continue
			}
			err := d.wechat.Send(ctx, wechatmsg.Message{
				ToUser:     a.UnionID,
				TemplateID: d.templates.RefundRequested,
				Data: map[string]string{
					"thing2": p.RouteName,
					"thing7": p.RiderName,
					"time6":  p.RequestedAt.In(d.loc).Format(timeLayout),
				},
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("notify admin %s: %w", a.ID, err))
			}
		}
	}

	if err := d.post(ctx, fmt.Sprintf("Refund requested for order %s by %s on %s: %s CNY",
		p.OrderNo, p.RiderName, p.RouteName, report.Yuan(p.Amount))); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) ticketVerified(ctx context.Context, p event.TicketVerified) error {
	if d.wechat == nil || d.templates.TicketVerified == "" {
		return nil
	}

	r, err := d.riders.GetByID(ctx, p.RiderID)
	if err != nil {
		return fmt.Errorf("load rider %s: %w", p.RiderID, err)
	}
	if r.UnionID == "" {
		slog.InfoContext(ctx, "rider has no message identity, skipping", "rider_id", r.ID)
		return nil
	}

	return d.wechat.Send(ctx, wechatmsg.Message{
		ToUser:     r.UnionID,
		TemplateID: d.templates.TicketVerified,
		Data: map[string]string{
			"thing2": p.RouteName,
			"time3":  p.VerifiedAt.In(d.loc).Format(timeLayout),
		},
	})
}

func (d *Dispatcher) post(ctx context.Context, text string) error {
	if d.chat == nil {
		return nil
	}
	return d.chat.Post(ctx, text)
}
