package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/MikeMC777/sky-takeout/internal/notify"
	"github.com/MikeMC777/sky-takeout/internal/order"
)

// flakyOrders fails updates for chosen ids and can run a hook between the
// listing and the updates of a sweep.
type flakyOrders struct {
	*order.Memory
	failIDs   map[int64]bool
	afterList func()
}

func (f *flakyOrders) ListByStatusBefore(ctx context.Context, s order.Status, t time.Time) ([]order.Order, error) {
	out, err := f.Memory.ListByStatusBefore(ctx, s, t)
	if f.afterList != nil {
		f.afterList()
	}
	return out, err
}

func (f *flakyOrders) Update(ctx context.Context, p order.Patch) (bool, error) {
	if f.failIDs[p.ID] {
		return false, errors.New("connection reset")
	}
	return f.Memory.Update(ctx, p)
}

type countingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *countingPublisher) Publish(ctx context.Context, e notify.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *countingPublisher) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type ReconcilerSuite struct {
	suite.Suite
	repo   *flakyOrders
	events *countingPublisher
	placed time.Time
	now    time.Time
	rec    *Reconciler
	seq    int
}

func (s *ReconcilerSuite) SetupTest() {
	s.repo = &flakyOrders{Memory: order.NewMemory(), failIDs: map[int64]bool{}}
	s.events = &countingPublisher{}
	s.placed = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = s.placed
	s.rec = NewReconciler(s.repo, s.events, Config{
		PaymentTimeout:     15 * time.Minute,
		DeliveryTimeout:    time.Hour,
		PaymentSweepEvery:  time.Minute,
		DeliverySweepEvery: 24 * time.Hour,
	}).WithClock(func() time.Time { return s.now })
}

func (s *ReconcilerSuite) place(status order.Status) int64 {
	s.seq++
	o := &order.Order{
		Number:    fmt.Sprintf("%s-%d", status, s.seq),
		UserID:    1,
		Status:    status,
		Amount:    decimal.RequireFromString("25.00"),
		OrderTime: s.placed,
	}
	s.Require().NoError(s.repo.Insert(context.Background(), o))
	return o.ID
}

func (s *ReconcilerSuite) status(id int64) *order.Order {
	o, err := s.repo.GetByID(context.Background(), id)
	s.Require().NoError(err)
	return o
}

func (s *ReconcilerSuite) TestPaymentTimeout_BeforeThresholdLeavesOrder() {
	id := s.place(order.PendingPayment)
	s.now = s.placed.Add(10 * time.Minute)

	n, err := s.rec.PaymentTimeout(context.Background())
	s.NoError(err)
	s.Zero(n)
	s.Equal(order.PendingPayment, s.status(id).Status)
}

func (s *ReconcilerSuite) TestPaymentTimeout_CancelsStaleOrder() {
	id := s.place(order.PendingPayment)
	s.now = s.placed.Add(16 * time.Minute)

	n, err := s.rec.PaymentTimeout(context.Background())
	s.NoError(err)
	s.Equal(1, n)

	o := s.status(id)
	s.Equal(order.Cancelled, o.Status)
	s.Equal(order.ReasonPaymentTimeout, o.CancelReason)
	s.Require().NotNil(o.CancelTime)
	s.Equal(s.now, *o.CancelTime)
	s.Require().Equal(1, s.events.len())
	s.Equal(notify.OrderTimedOut, s.events.events[0].Type)
}

func (s *ReconcilerSuite) TestPaymentTimeout_Idempotent() {
	id := s.place(order.PendingPayment)
	s.now = s.placed.Add(16 * time.Minute)
	ctx := context.Background()

	_, err := s.rec.PaymentTimeout(ctx)
	s.Require().NoError(err)
	first := *s.status(id)

	s.now = s.now.Add(time.Minute)
	n, err := s.rec.PaymentTimeout(ctx)
	s.NoError(err)
	s.Zero(n)
	s.Equal(first, *s.status(id))
	s.Equal(1, s.events.len())
}

func (s *ReconcilerSuite) TestPaymentTimeout_OnlyTouchesPendingOrders() {
	paid := s.place(order.ToBeConfirmed)
	s.now = s.placed.Add(time.Hour)

	_, err := s.rec.PaymentTimeout(context.Background())
	s.NoError(err)
	s.Equal(order.ToBeConfirmed, s.status(paid).Status)
}

func (s *ReconcilerSuite) TestSweep_OneFailureDoesNotStopOthers() {
	a := s.place(order.PendingPayment)
	b := s.place(order.PendingPayment)
	c := s.place(order.PendingPayment)
	s.repo.failIDs[b] = true
	s.now = s.placed.Add(20 * time.Minute)

	n, err := s.rec.PaymentTimeout(context.Background())
	s.NoError(err)
	s.Equal(2, n)
	s.Equal(order.Cancelled, s.status(a).Status)
	s.Equal(order.PendingPayment, s.status(b).Status)
	s.Equal(order.Cancelled, s.status(c).Status)
}

func (s *ReconcilerSuite) TestSweep_LosesRaceToPayment() {
	id := s.place(order.PendingPayment)
	s.now = s.placed.Add(16 * time.Minute)
	paid := order.Paid
	s.repo.afterList = func() {
		_, _ = s.repo.Memory.Update(context.Background(), order.Patch{
			ID: id, WhenStatus: order.PendingPayment, Status: order.ToBeConfirmed, PayStatus: &paid,
		})
	}

	n, err := s.rec.PaymentTimeout(context.Background())
	s.NoError(err)
	s.Zero(n)
	o := s.status(id)
	s.Equal(order.ToBeConfirmed, o.Status)
	s.Empty(o.CancelReason)
}

func (s *ReconcilerSuite) TestDeliveryTimeout_CompletesStaleDeliveries() {
	stale := s.place(order.DeliveryInProgress)
	confirmed := s.place(order.Confirmed)
	ctx := context.Background()

	s.now = s.placed.Add(30 * time.Minute)
	n, err := s.rec.DeliveryTimeout(ctx)
	s.NoError(err)
	s.Zero(n)

	s.now = s.placed.Add(61 * time.Minute)
	n, err = s.rec.DeliveryTimeout(ctx)
	s.NoError(err)
	s.Equal(1, n)
	done := s.status(stale)
	s.Equal(order.Completed, done.Status)
	s.Equal(order.ReasonAutoCompleted, done.CancelReason)
	s.Require().NotNil(done.CancelTime)
	s.Equal(s.now, *done.CancelTime)
	s.Equal(order.Confirmed, s.status(confirmed).Status)
	s.Require().Equal(1, s.events.len())
	s.Equal(order.ReasonAutoCompleted, s.events.events[0].Reason)
}

func (s *ReconcilerSuite) TestRun_SweepsUntilCancelled() {
	id := s.place(order.PendingPayment)
	s.now = s.placed.Add(16 * time.Minute)
	s.rec.cfg.PaymentSweepEvery = time.Millisecond
	s.rec.cfg.DeliverySweepEvery = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.rec.Run(ctx) }()

	s.Eventually(func() bool {
		o, _ := s.repo.GetByID(context.Background(), id)
		return o.Status == order.Cancelled
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("Run did not return after cancel")
	}
}

func TestReconcilerSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerSuite))
}

func init() {
	log.SetOutput(io.Discard)
}
