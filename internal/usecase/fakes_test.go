package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/clock"
	"github.com/attractive-boy/schoolbus-back/internal/domain/order"
	"github.com/attractive-boy/schoolbus-back/internal/domain/outbox"
	"github.com/attractive-boy/schoolbus-back/internal/domain/payment"
	"github.com/attractive-boy/schoolbus-back/internal/domain/refund"
	"github.com/attractive-boy/schoolbus-back/internal/domain/rider"
	"github.com/attractive-boy/schoolbus-back/internal/domain/route"
	"github.com/attractive-boy/schoolbus-back/internal/domain/verification"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/wechatpay"
)

// ledger is an in-memory stand-in for the database. Transactions take one
// mutex, which is stricter than row locks but gives the same guarantees to
// the code under test, and roll back by restoring a snapshot.
type ledger struct {
	mu sync.Mutex

	riders        map[string]*rider.Rider
	routes        map[string]*route.Route
	orders        map[string]*order.Order
	payments      map[string]*payment.Payment
	refunds       map[string]*refund.Refund
	verifications []*verification.Event
	outbox        []*outbox.Event

	txCount int
}

func newLedger() *ledger {
	return &ledger{
		riders:   map[string]*rider.Rider{},
		routes:   map[string]*route.Route{},
		orders:   map[string]*order.Order{},
		payments: map[string]*payment.Payment{},
		refunds:  map[string]*refund.Refund{},
	}
}

type snapshot struct {
	orders        map[string]order.Order
	payments      map[string]payment.Payment
	refunds       map[string]refund.Refund
	verifications []*verification.Event
	outbox        []*outbox.Event
}

func (l *ledger) snapshot() snapshot {
	s := snapshot{
		orders:        map[string]order.Order{},
		payments:      map[string]payment.Payment{},
		refunds:       map[string]refund.Refund{},
		verifications: append([]*verification.Event(nil), l.verifications...),
		outbox:        append([]*outbox.Event(nil), l.outbox...),
	}
	for k, v := range l.orders {
		s.orders[k] = *v
	}
	for k, v := range l.payments {
		s.payments[k] = *v
	}
	for k, v := range l.refunds {
		s.refunds[k] = *v
	}
	return s
}

func (l *ledger) restore(s snapshot) {
	l.orders = map[string]*order.Order{}
	for k, v := range s.orders {
		v := v
		l.orders[k] = &v
	}
	l.payments = map[string]*payment.Payment{}
	for k, v := range s.payments {
		v := v
		l.payments[k] = &v
	}
	l.refunds = map[string]*refund.Refund{}
	for k, v := range s.refunds {
		v := v
		l.refunds[k] = &v
	}
	l.verifications = s.verifications
	l.outbox = s.outbox
}

func (l *ledger) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.txCount++
	snap := l.snapshot()
	if err := fn(ctx); err != nil {
		l.restore(snap)
		return err
	}
	return nil
}

func (l *ledger) eventsOfType(t string) []*outbox.Event {
	var out []*outbox.Event
	for _, e := range l.outbox {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

func (l *ledger) paymentOf(orderID string) *payment.Payment {
	for _, p := range l.payments {
		if p.OrderID == orderID {
			return p
		}
	}
	return nil
}

func (l *ledger) refundOf(orderID string) *refund.Refund {
	for _, rf := range l.refunds {
		if rf.OrderID == orderID {
			return rf
		}
	}
	return nil
}

// Stores. Every read returns a copy so callers cannot mutate state outside a
// repository call.

type orderStore struct{ l *ledger }

func (s orderStore) Create(_ context.Context, o *order.Order) error {
	c := *o
	s.l.orders[o.ID] = &c
	return nil
}

func (s orderStore) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := s.l.orders[id]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "order %s not found", id)
	}
	c := *o
	if rt, ok := s.l.routes[o.RouteID]; ok {
		c.RouteName = rt.Name
	}
	return &c, nil
}

func (s orderStore) GetByIDForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return s.GetByID(ctx, id)
}

func (s orderStore) UpdateStatus(_ context.Context, id string, status order.Status) error {
	o, ok := s.l.orders[id]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "order %s not found", id)
	}
	o.Status = status
	return nil
}

func (s orderStore) MarkRefunded(_ context.Context, id string, amount int64, usedDays, remainingDays int) error {
	o, ok := s.l.orders[id]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "order %s not found", id)
	}
	o.Status = order.StatusRefunded
	o.RefundAmount = &amount
	o.UsedDays = &usedDays
	o.RemainingDays = &remainingDays
	return nil
}

func (s orderStore) ListPaidByRiderOn(ctx context.Context, riderID string, date string) ([]*order.Order, error) {
	var out []*order.Order
	for _, o := range s.l.orders {
		if o.RiderID == riderID && o.Status == order.StatusPaid && o.RidesOn(date) {
			c, _ := s.GetByID(ctx, o.ID)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNo < out[j].OrderNo })
	return out, nil
}

func (s orderStore) List(ctx context.Context, f order.Filter) ([]*order.Order, int, error) {
	var all []*order.Order
	for _, o := range s.l.orders {
		if f.RiderID != "" && o.RiderID != f.RiderID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.CreatedFrom != nil && o.CreatedAt.Before(*f.CreatedFrom) {
			continue
		}
		if f.CreatedTo != nil && o.CreatedAt.After(*f.CreatedTo) {
			continue
		}
		c, _ := s.GetByID(ctx, o.ID)
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if f.Limit > 0 {
		if f.Offset >= len(all) {
			return nil, total, nil
		}
		end := f.Offset + f.Limit
		if end > len(all) {
			end = len(all)
		}
		all = all[f.Offset:end]
	}
	return all, total, nil
}

type paymentStore struct{ l *ledger }

func (s paymentStore) Create(_ context.Context, p *payment.Payment) error {
	c := *p
	s.l.payments[p.ID] = &c
	return nil
}

func (s paymentStore) GetByOrderID(_ context.Context, orderID string) (*payment.Payment, error) {
	p := s.l.paymentOf(orderID)
	if p == nil {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (s paymentStore) GetByPaymentNoForUpdate(_ context.Context, paymentNo string) (*payment.Payment, error) {
	for _, p := range s.l.payments {
		if p.PaymentNo == paymentNo {
			c := *p
			return &c, nil
		}
	}
	return nil, apperr.Newf(apperr.KindNotFound, "payment %s not found", paymentNo)
}

func (s paymentStore) MarkSucceeded(_ context.Context, id string, transactionID string) error {
	p, ok := s.l.payments[id]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "payment %s not found", id)
	}
	p.Status = payment.StatusSucceeded
	p.TransactionID = transactionID
	return nil
}

func (s paymentStore) UpdateStatus(_ context.Context, id string, status payment.Status) error {
	p, ok := s.l.payments[id]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "payment %s not found", id)
	}
	p.Status = status
	return nil
}

type refundStore struct{ l *ledger }

func (s refundStore) Create(_ context.Context, rf *refund.Refund) error {
	if s.l.refundOf(rf.OrderID) != nil {
		return apperr.Newf(apperr.KindInternal, "duplicate refund for order %s", rf.OrderID)
	}
	c := *rf
	s.l.refunds[rf.ID] = &c
	return nil
}

func (s refundStore) GetByOrderID(_ context.Context, orderID string) (*refund.Refund, error) {
	rf := s.l.refundOf(orderID)
	if rf == nil {
		return nil, nil
	}
	c := *rf
	return &c, nil
}

func (s refundStore) MarkSucceeded(_ context.Context, id string) error {
	rf, ok := s.l.refunds[id]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "refund %s not found", id)
	}
	rf.Status = refund.StatusSucceeded
	return nil
}

type verificationStore struct{ l *ledger }

func (s verificationStore) Create(_ context.Context, e *verification.Event) error {
	s.l.verifications = append(s.l.verifications, e)
	return nil
}

func (s verificationStore) CountBetween(_ context.Context, riderID string, from, to time.Time) (int, error) {
	n := 0
	for _, e := range s.l.verifications {
		if e.RiderID == riderID && !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

type routeStore struct{ l *ledger }

func (s routeStore) GetByID(_ context.Context, id string) (*route.Route, error) {
	rt, ok := s.l.routes[id]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "route %s not found", id)
	}
	c := *rt
	return &c, nil
}

type riderStore struct{ l *ledger }

func (s riderStore) GetByID(_ context.Context, id string) (*rider.Rider, error) {
	r, ok := s.l.riders[id]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "rider %s not found", id)
	}
	c := *r
	return &c, nil
}

func (s riderStore) GetByQRCodeForUpdate(_ context.Context, code string) (*rider.Rider, error) {
	for _, r := range s.l.riders {
		if r.QRCode == code {
			c := *r
			return &c, nil
		}
	}
	return nil, apperr.NotFound("ticket code not found")
}

type outboxStore struct{ l *ledger }

func (s outboxStore) Create(_ context.Context, e *outbox.Event) error {
	s.l.outbox = append(s.l.outbox, e)
	return nil
}

type fakeGateway struct {
	mu sync.Mutex

	prepayErr error
	refundErr error
	parseErr  error
	tx        *wechatpay.Transaction

	prepays []wechatpay.PrepayRequest
	refunds []wechatpay.RefundRequest
}

func (g *fakeGateway) Prepay(_ context.Context, r wechatpay.PrepayRequest) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prepays = append(g.prepays, r)
	if g.prepayErr != nil {
		return nil, g.prepayErr
	}
	return &payment.Intent{AppID: "wx-app", Package: "prepay_id=" + r.OutTradeNo, SignType: "RSA", PaySign: "sig"}, nil
}

func (g *fakeGateway) Refund(_ context.Context, r wechatpay.RefundRequest) (*wechatpay.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, r)
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return &wechatpay.RefundResult{RefundID: "wxref-" + r.OutRefundNo, OutRefundNo: r.OutRefundNo, Status: "PROCESSING"}, nil
}

func (g *fakeGateway) ParseNotification(_ context.Context, _ wechatpay.NotifyHeaders, _ []byte) (*wechatpay.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.parseErr != nil {
		return nil, g.parseErr
	}
	c := *g.tx
	return &c, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// movableClock lets a test walk through a day.
type movableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (m *movableClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *movableClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

var shanghai = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}()

func at(date, hm string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+hm, shanghai)
	if err != nil {
		panic(err)
	}
	return t
}

// env wires every usecase against one ledger.
type env struct {
	l       *ledger
	gw      *fakeGateway
	cache   *memCache
	clk     *movableClock
	cal     clock.Calendar
	orders  orderStore
	pays    paymentStore
	refunds refundStore
}

func newEnv(t *testing.T, now time.Time) *env {
	t.Helper()
	l := newLedger()
	clk := &movableClock{now: now}
	e := &env{
		l:       l,
		gw:      &fakeGateway{},
		cache:   newMemCache(),
		clk:     clk,
		cal:     clock.NewFixedCalendar(shanghai, clk.Now),
		orders:  orderStore{l},
		pays:    paymentStore{l},
		refunds: refundStore{l},
	}

	l.riders["r1"] = &rider.Rider{ID: "r1", Nickname: "Lin", OpenID: "openid-r1", UnionID: "union-r1", QRCode: "QR-R1", Type: rider.TypeRider}
	l.riders["r2"] = &rider.Rider{ID: "r2", Nickname: "Chen", OpenID: "openid-r2", QRCode: "QR-R2", Type: rider.TypeRider}
	l.routes["north"] = &route.Route{ID: "north", Name: "North Gate", DailyPrice: 2500, Status: route.StatusActive}
	l.routes["closed"] = &route.Route{ID: "closed", Name: "Old Town", DailyPrice: 2500, Status: route.StatusInactive}
	l.routes["weekdays"] = &route.Route{ID: "weekdays", Name: "Weekdays", DailyPrice: 2000, Status: route.StatusActive,
		ServiceDates: []string{"2024-09-02", "2024-09-03"}}
	return e
}

func (e *env) issuer() *IssuePayment {
	return NewIssuePayment(e.orders, e.pays, riderStore{e.l}, e.gw)
}

func (e *env) createOrder() *CreateOrder {
	return NewCreateOrder(e.l, e.orders, e.pays, routeStore{e.l}, riderStore{e.l}, outboxStore{e.l}, e.issuer(), e.cal)
}

func (e *env) notify() *HandlePaymentNotification {
	return NewHandlePaymentNotification(e.l, e.pays, e.orders, outboxStore{e.l}, e.gw, e.cache, e.cal)
}

func (e *env) requestRefund() *RequestRefund {
	return NewRequestRefund(e.l, e.orders, e.refunds, outboxStore{e.l}, e.cache, e.cal)
}

func (e *env) approveRefund() *ApproveRefund {
	return NewApproveRefund(e.l, e.orders, e.pays, e.refunds, outboxStore{e.l}, e.gw, e.cache, e.cal)
}

func (e *env) verifyTicket() *VerifyTicket {
	return NewVerifyTicket(e.l, riderStore{e.l}, e.orders, verificationStore{e.l}, outboxStore{e.l}, e.cal)
}

func (e *env) cancelOrder() *CancelOrder {
	return NewCancelOrder(e.l, e.orders, outboxStore{e.l}, e.cache, e.cal)
}

// seedOrder stores an order with its payment directly, bypassing CreateOrder.
func (e *env) seedOrder(t *testing.T, id, riderID string, status order.Status, trip order.TripType, dates ...string) *order.Order {
	t.Helper()
	now := e.clk.Now()
	o := &order.Order{
		ID:            id,
		OrderNo:       "ORDER-" + id,
		RiderID:       riderID,
		RiderName:     e.l.riders[riderID].Nickname,
		RouteID:       "north",
		SelectedDates: dates,
		TripType:      trip,
		TotalAmount:   int64(len(dates)) * 2500,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	e.l.orders[id] = o

	ps := payment.StatusPending
	if status != order.StatusPendingPayment && status != order.StatusCancelled {
		ps = payment.StatusSucceeded
	}
	e.l.payments["pay-"+id] = &payment.Payment{
		ID:        "pay-" + id,
		OrderID:   id,
		PaymentNo: "PAY-" + id,
		Amount:    o.TotalAmount,
		Status:    ps,
		Method:    payment.MethodWxPay,
	}
	return o
}
