// Package task runs the periodic sweeps that force stale orders into a
// terminal state.
package task

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MikeMC777/sky-takeout/internal/notify"
	"github.com/MikeMC777/sky-takeout/internal/order"
)

type Config struct {
	PaymentTimeout     time.Duration
	DeliveryTimeout    time.Duration
	PaymentSweepEvery  time.Duration
	DeliverySweepEvery time.Duration
}

type Reconciler struct {
	orders order.Repository
	events notify.Publisher
	cfg    Config
	now    func() time.Time
}

func NewReconciler(orders order.Repository, events notify.Publisher, cfg Config) *Reconciler {
	if events == nil {
		events = notify.Nop{}
	}
	return &Reconciler{orders: orders, events: events, cfg: cfg, now: time.Now}
}

// WithClock replaces the time source.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// PaymentTimeout cancels orders still unpaid PaymentTimeout after they were
// placed and returns how many it cancelled.
func (r *Reconciler) PaymentTimeout(ctx context.Context) (int, error) {
	now := r.now()
	return r.sweep(ctx, "payment", order.PendingPayment, now.Add(-r.cfg.PaymentTimeout), func(o *order.Order) order.Patch {
		return order.Patch{
			ID:           o.ID,
			WhenStatus:   order.PendingPayment,
			Status:       order.Cancelled,
			CancelReason: order.ReasonPaymentTimeout,
			CancelTime:   &now,
		}
	}, notify.OrderTimedOut, order.ReasonPaymentTimeout)
}

// DeliveryTimeout completes orders still out for delivery DeliveryTimeout
// after they were placed and returns how many it completed.
func (r *Reconciler) DeliveryTimeout(ctx context.Context) (int, error) {
	now := r.now()
	return r.sweep(ctx, "delivery", order.DeliveryInProgress, now.Add(-r.cfg.DeliveryTimeout), func(o *order.Order) order.Patch {
		return order.Patch{
			ID:           o.ID,
			WhenStatus:   order.DeliveryInProgress,
			Status:       order.Completed,
			CancelReason: order.ReasonAutoCompleted,
			CancelTime:   &now,
		}
	}, notify.OrderCompleted, order.ReasonAutoCompleted)
}

// sweep applies patch to every order in status placed before cutoff. A failed
// row is logged and skipped; rows that left status in the meantime are
// skipped silently.
func (r *Reconciler) sweep(ctx context.Context, name string, status order.Status, cutoff time.Time,
	patch func(*order.Order) order.Patch, event, reason string) (int, error) {
	stale, err := r.orders.ListByStatusBefore(ctx, status, cutoff)
	if err != nil {
		log.Printf("[task] %s sweep: list failed: %v", name, err)
		return 0, err
	}

	done := 0
	for i := range stale {
		o := &stale[i]
		p := patch(o)
		ok, err := r.orders.Update(ctx, p)
		if err != nil {
			log.Printf("[task] %s sweep: order %s: %v", name, o.Number, err)
			continue
		}
		if !ok {
			continue
		}
		done++
		o.Status = p.Status
		order.Publish(ctx, r.events, event, o, reason, r.now())
	}
	if len(stale) > 0 {
		log.Printf("[task] %s sweep: %d/%d orders moved (%s)", name, done, len(stale), reason)
	}
	return done, nil
}

// Run triggers both sweeps on their own tickers until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.every(ctx, r.cfg.PaymentSweepEvery, r.PaymentTimeout) })
	g.Go(func() error { return r.every(ctx, r.cfg.DeliverySweepEvery, r.DeliveryTimeout) })
	return g.Wait()
}

func (r *Reconciler) every(ctx context.Context, d time.Duration, sweep func(context.Context) (int, error)) error {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			// errors are already logged; the next tick retries
			_, _ = sweep(ctx)
		}
	}
}
