// Package order implements the order lifecycle: submission from the cart,
// payment, cancellation, fulfilment and the repeat-order shortcut.
package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/sky-takeout/internal/address"
	"github.com/MikeMC777/sky-takeout/internal/cart"
	"github.com/MikeMC777/sky-takeout/internal/notify"
	"github.com/MikeMC777/sky-takeout/internal/payment"
)

type Deps struct {
	Orders    Repository
	Carts     cart.Repository
	Addresses address.Repository
	Tx        Tx
	Payments  payment.Gateway
	Events    notify.Publisher // optional
	Now       func() time.Time // optional
}

type Service struct {
	orders    Repository
	carts     cart.Repository
	addresses address.Repository
	tx        Tx
	pay       payment.Gateway
	events    notify.Publisher
	now       func() time.Time
	node      uint32
	seq       atomic.Uint32
}

// submitAttempts bounds how often Submit redraws a number that collided.
const submitAttempts = 3

func NewService(d Deps) *Service {
	s := &Service{
		orders:    d.Orders,
		carts:     d.Carts,
		addresses: d.Addresses,
		tx:        d.Tx,
		pay:       d.Payments,
		events:    d.Events,
		now:       d.Now,
		node:      uuid.New().ID() % 1000,
	}
	if s.events == nil {
		s.events = notify.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// nextNumber is the order time in milliseconds, a 3 digit instance tag drawn
// at startup and a 4 digit sequence. The orders.number UNIQUE constraint
// catches the rare collision between instances.
func (s *Service) nextNumber(now time.Time) string {
	return fmt.Sprintf("%d%03d%04d", now.UnixMilli(), s.node, s.seq.Add(1)%10000)
}

// Submit turns the user's whole cart into a pending order. The order row, its
// lines and the cart drain commit together or not at all.
func (s *Service) Submit(ctx context.Context, userID int64, req SubmitRequest) (*SubmitResult, error) {
	if req.PayMethod != WeChatPay && req.PayMethod != Alipay {
		return nil, fmt.Errorf("%w: pay method %d", ErrValidation, req.PayMethod)
	}
	addr, err := s.addresses.GetByIDAndOwner(ctx, req.AddressBookID, userID)
	if errors.Is(err, address.ErrNotFound) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, collaborator("load address", err)
	}

	now := s.now()
	o := &Order{
		UserID:        userID,
		AddressBookID: addr.ID,
		Status:        PendingPayment,
		PayStatus:     Unpaid,
		PayMethod:     req.PayMethod,
		Remark:        strings.TrimSpace(req.Remark),
		Consignee:     addr.Consignee,
		Phone:         addr.Phone,
		Address:       addr.Full(),
		OrderTime:     now,
	}

	for attempt := 1; ; attempt++ {
		o.Number = s.nextNumber(now)
		err = s.submit(ctx, o)
		if !errors.Is(err, ErrDuplicateNumber) || attempt == submitAttempts {
			break
		}
		log.Printf("[order] number %s taken, retrying", o.Number)
	}
	if err != nil {
		return nil, collaborator("submit", err)
	}

	log.Printf("[order] user=%d submitted %s amount=%s", userID, o.Number, o.Amount)
	s.publish(ctx, notify.OrderSubmitted, o, "")
	return &SubmitResult{ID: o.ID, Number: o.Number, Amount: o.Amount, OrderTime: o.OrderTime}, nil
}

// submit writes o and its lines and drains the owner's cart in one
// transaction.
func (s *Service) submit(ctx context.Context, o *Order) error {
	userID := o.UserID
	return s.tx.InTx(ctx, func(orders Repository, carts cart.Repository) error {
		items, err := carts.ListByOwner(ctx, userID)
		if err != nil {
			return collaborator("load cart", err)
		}
		lines, total, err := Snapshot(items)
		if err != nil {
			return err
		}
		o.Amount = total
		if err := orders.Insert(ctx, o); err != nil {
			return collaborator("insert order", err)
		}
		for i := range lines {
			lines[i].OrderID = o.ID
		}
		if err := orders.InsertLines(ctx, lines); err != nil {
			return collaborator("insert order lines", err)
		}
		if _, err := carts.DeleteByOwner(ctx, userID); err != nil {
			return collaborator("drain cart", err)
		}
		return nil
	})
}

// RequestPayment obtains a prepay handle for the user's pending order and
// marks it paid.
func (s *Service) RequestPayment(ctx context.Context, userID int64, number string) (*payment.Prepay, error) {
	o, err := s.orders.GetByNumberAndOwner(ctx, number, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotOwned
	}
	if err != nil {
		return nil, collaborator("load order", err)
	}
	if o.Status != PendingPayment {
		return nil, fmt.Errorf("%w: %s is %s", ErrOrderStatus, o.Number, o.Status)
	}

	handle, err := s.pay.Prepay(ctx, o.Number, o.Amount, userID)
	if err != nil {
		return nil, collaborator("prepay", err)
	}

	now := s.now()
	paid := Paid
	ok, err := s.orders.Update(ctx, Patch{
		ID:           o.ID,
		WhenStatus:   PendingPayment,
		Status:       ToBeConfirmed,
		PayStatus:    &paid,
		CheckoutTime: &now,
	})
	if err != nil {
		return nil, collaborator("mark paid", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s left pending payment", ErrOrderStatus, o.Number)
	}

	o.Status, o.PayStatus, o.CheckoutTime = ToBeConfirmed, Paid, &now
	log.Printf("[order] user=%d paid %s", userID, o.Number)
	s.publish(ctx, notify.OrderPaid, o, "")
	return handle, nil
}

// owned loads an order and hides it from anyone but its owner.
func (s *Service) owned(ctx context.Context, userID, id int64) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, collaborator("load order", err)
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

// Cancel withdraws an order the kitchen has not accepted yet. The order is
// claimed with a conditional update before any money moves, so losing a race
// never issues a refund. A failed refund reverts the claim.
func (s *Service) Cancel(ctx context.Context, userID, id int64) error {
	o, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if !o.Status.UserCancellable() {
		return fmt.Errorf("%w: %s is %s", ErrOrderStatus, o.Number, o.Status)
	}

	now := s.now()
	paid := o.Status == ToBeConfirmed
	p := Patch{
		ID:           o.ID,
		WhenStatus:   o.Status,
		Status:       Cancelled,
		CancelReason: ReasonUserCancelled,
		CancelTime:   &now,
	}
	if paid {
		refunded := Refunded
		p.PayStatus = &refunded
	}

	ok, err := s.orders.Update(ctx, p)
	if err != nil {
		return collaborator("cancel order", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s changed status", ErrOrderStatus, o.Number)
	}

	if paid {
		if err := s.pay.Refund(ctx, payment.RefundRequest{
			OrderNumber:  o.Number,
			RefundNumber: uuid.NewString(),
			Amount:       o.Amount,
			Total:        o.Amount,
		}); err != nil {
			s.revertCancel(ctx, o)
			return collaborator("refund", err)
		}
	}

	o.Status, o.CancelReason, o.CancelTime = Cancelled, ReasonUserCancelled, &now
	if p.PayStatus != nil {
		o.PayStatus = *p.PayStatus
	}
	log.Printf("[order] user=%d cancelled %s", userID, o.Number)
	s.publish(ctx, notify.OrderCancelled, o, ReasonUserCancelled)
	return nil
}

// revertCancel puts a claimed order back to awaiting confirmation after its
// refund failed. Cancelled is terminal, so nothing else can have moved it.
func (s *Service) revertCancel(ctx context.Context, o *Order) {
	paid := Paid
	ok, err := s.orders.Update(context.WithoutCancel(ctx), Patch{
		ID:          o.ID,
		WhenStatus:  Cancelled,
		Status:      ToBeConfirmed,
		PayStatus:   &paid,
		ClearCancel: true,
	})
	if err != nil || !ok {
		log.Printf("[order] ALERT %s cancelled without refund, revert failed: ok=%v err=%v", o.Number, ok, err)
	}
}

// Repeat copies a past order's lines into the user's cart as new lines. Each
// call adds a fresh set.
func (s *Service) Repeat(ctx context.Context, userID, id int64) error {
	o, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	lines, err := s.orders.Lines(ctx, o.ID)
	if err != nil {
		return collaborator("load order lines", err)
	}
	if err := s.carts.InsertBatch(ctx, toCart(lines, userID, s.now)); err != nil {
		return collaborator("refill cart", err)
	}
	log.Printf("[order] user=%d repeated %s (%d lines)", userID, o.Number, len(lines))
	return nil
}

func (s *Service) Confirm(ctx context.Context, id int64) error {
	_, err := s.advance(ctx, id, ToBeConfirmed, Confirmed)
	return err
}

func (s *Service) Deliver(ctx context.Context, id int64) error {
	_, err := s.advance(ctx, id, Confirmed, DeliveryInProgress)
	return err
}

func (s *Service) Complete(ctx context.Context, id int64) error {
	o, err := s.advance(ctx, id, DeliveryInProgress, Completed)
	if err != nil {
		return err
	}
	s.publish(ctx, notify.OrderCompleted, o, "")
	return nil
}

// advance moves an order from one status to the next, failing if it is
// not currently in from.
func (s *Service) advance(ctx context.Context, id int64, from, to Status) (*Order, error) {
	ok, err := s.orders.Update(ctx, Patch{ID: id, WhenStatus: from, Status: to})
	if err != nil {
		return nil, collaborator("update status", err)
	}
	o, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, collaborator("load order", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, want %s", ErrOrderStatus, o.Number, o.Status, from)
	}
	log.Printf("[order] %s %s -> %s", o.Number, from, to)
	return o, nil
}

func (s *Service) Detail(ctx context.Context, userID, id int64) (*Detail, error) {
	o, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.orders.Lines(ctx, o.ID)
	if err != nil {
		return nil, collaborator("load order lines", err)
	}
	return &Detail{Order: *o, Lines: lines}, nil
}

// History pages through the user's orders, newest first.
func (s *Service) History(ctx context.Context, userID int64, q PageQuery) (*Page, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 10
	}
	orders, total, err := s.orders.ListByOwner(ctx, userID, q.Status, q.PageSize, (q.Page-1)*q.PageSize)
	if err != nil {
		return nil, collaborator("list orders", err)
	}
	page := &Page{Total: total, Records: make([]Detail, 0, len(orders))}
	for _, o := range orders {
		lines, err := s.orders.Lines(ctx, o.ID)
		if err != nil {
			return nil, collaborator("load order lines", err)
		}
		page.Records = append(page.Records, Detail{Order: o, Lines: lines})
	}
	return page, nil
}

// Statistics counts the orders the kitchen still has to act on.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	var st Statistics
	for _, c := range []struct {
		status Status
		dst    *int
	}{
		{ToBeConfirmed, &st.ToBeConfirmed},
		{Confirmed, &st.Confirmed},
		{DeliveryInProgress, &st.DeliveryInProgress},
	} {
		n, err := s.orders.Count(ctx, Filter{Status: c.status})
		if err != nil {
			return nil, collaborator("count orders", err)
		}
		*c.dst = n
	}
	return &st, nil
}

// Turnover sums completed orders placed in [begin, end).
func (s *Service) Turnover(ctx context.Context, begin, end time.Time) (decimal.Decimal, error) {
	if !end.After(begin) {
		return decimal.Zero, fmt.Errorf("%w: empty time range", ErrValidation)
	}
	sum, err := s.orders.SumAmount(ctx, Filter{Status: Completed, Begin: begin, End: end})
	if err != nil {
		return decimal.Zero, collaborator("sum turnover", err)
	}
	return sum, nil
}

func (s *Service) publish(ctx context.Context, typ string, o *Order, reason string) {
	Publish(ctx, s.events, typ, o, reason, s.now())
}

// Publish sends an order event. Failures are logged and never returned;
// the order change has already committed.
func Publish(ctx context.Context, p notify.Publisher, typ string, o *Order, reason string, at time.Time) {
	e := notify.Event{
		Type:        typ,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		UserID:      o.UserID,
		Status:      int(o.Status),
		Amount:      o.Amount,
		Reason:      reason,
		At:          at,
	}
	if err := p.Publish(ctx, e); err != nil {
		log.Printf("[order] warning: publish %s for %s failed: %v", e.RoutingKey(), o.Number, err)
	}
}
