package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/iliyamo/tour-booking/internal/cache"
	"github.com/iliyamo/tour-booking/internal/gateway"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/queue"
	"github.com/iliyamo/tour-booking/internal/repository/memory"
)

type fakeGateway struct {
	mu   sync.Mutex
	reqs []gateway.InitRequest
	err  error
}

func (g *fakeGateway) Init(_ context.Context, r gateway.InitRequest) (*gateway.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.reqs = append(g.reqs, r)
	return &gateway.Session{Status: "SUCCESS", GatewayPageURL: "https://pay.test/" + r.TransactionID}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *fakePublisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeInvalidator struct {
	mu     sync.Mutex
	bumped []cache.Scope
}

func (f *fakeInvalidator) Bump(_ context.Context, scopes ...cache.Scope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bumped = append(f.bumped, scopes...)
}

func (f *fakeInvalidator) has(s cache.Scope) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bumped {
		if b == s {
			return true
		}
	}
	return false
}

type env struct {
	ctx      context.Context
	store    *memory.Store
	gw       *fakeGateway
	events   *fakePublisher
	inv      *fakeInvalidator
	bookings *BookingService
	payments *PaymentService
	reviews  *ReviewService
	tourist  Actor
	other    Actor
	guide    Actor
	admin    Actor
	tour     *model.Tour
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	e := &env{ctx: ctx, store: store, gw: &fakeGateway{}, events: &fakePublisher{}, inv: &fakeInvalidator{}}

	mk := func(name string, role model.Role, phone, addr string) Actor {
		u := &model.User{Name: name, Email: name + "@example.com", Role: role, Phone: phone, Address: addr}
		if err := store.Users().Create(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
		return Actor{ID: u.ID, Email: u.Email, Role: role}
	}
	e.tourist = mk("ana", model.RoleTourist, "01700000000", "Dhaka")
	e.other = mk("bob", model.RoleTourist, "01800000000", "Sylhet")
	e.guide = mk("gia", model.RoleGuide, "", "")
	e.admin = mk("root", model.RoleAdmin, "", "")

	e.tour = &model.Tour{
		GuideID: e.guide.ID, Slug: "old-dhaka", Title: "Old Dhaka", Category: model.CategoryHistory,
		Location: "Dhaka", FeeCents: 10000, MaxDurationHrs: 3, MaxGroupSize: 5,
	}
	if err := store.Tours().Create(ctx, e.tour); err != nil {
		t.Fatalf("seed tour: %v", err)
	}

	e.bookings = NewBookingService(store, e.gw, e.events, e.inv)
	e.payments = NewPaymentService(store, e.events)
	e.reviews = NewReviewService(store, nil)
	return e
}

func (e *env) book(t *testing.T, guests int) *model.BookingDetail {
	t.Helper()
	d, err := e.bookings.Create(e.ctx, e.tourist, CreateBookingInput{
		TourID: e.tour.ID, BookingDate: "2025-03-01", BookingTime: "09:00", NumberOfGuests: guests,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return d
}

func (e *env) move(t *testing.T, id uint64, to ...model.BookingStatus) {
	t.Helper()
	for _, s := range to {
		if _, err := e.bookings.Transition(e.ctx, e.guide, id, s, ""); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
}

func TestBookingToPaidScenario(t *testing.T) {
	e := newEnv(t)

	d := e.book(t, 2)
	if d.TotalAmountCents != 20000 || d.Status != model.BookingPending {
		t.Fatalf("unexpected new booking %+v", d.Booking)
	}
	if d.Tourist.ID != e.tourist.ID || d.Guide.ID != e.guide.ID || d.Tour.ID != e.tour.ID {
		t.Fatalf("booking not hydrated: %+v", d)
	}
	if d.PaymentID != nil {
		t.Fatal("payment must not exist before completion")
	}

	e.move(t, d.ID, model.BookingConfirmed)
	if e.inv.has(cache.Tour(e.tour.ID)) {
		t.Fatal("confirming must not invalidate the tour")
	}
	done, err := e.bookings.Transition(e.ctx, e.guide, d.ID, model.BookingCompleted, "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !e.inv.has(cache.AllTours()) || !e.inv.has(cache.Tour(e.tour.ID)) {
		t.Fatalf("completion must invalidate the tour listings, bumped %v", e.inv.bumped)
	}
	if done.Payment == nil || done.Payment.AmountCents != 20000 || done.Payment.Status != model.PaymentUnpaid {
		t.Fatalf("completion must create an UNPAID payment for the total: %+v", done.Payment)
	}
	if *done.PaymentID != done.Payment.ID || done.Payment.BookingID != d.ID {
		t.Fatal("booking and payment must point at each other")
	}
	if tour, _ := e.store.Tours().GetByID(e.ctx, e.tour.ID); tour.BookingCount != 1 {
		t.Fatalf("booking count: want 1, got %d", tour.BookingCount)
	}

	sess, err := e.bookings.InitiatePayment(e.ctx, e.tourist, d.ID)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if sess.PaymentURL != "https://pay.test/"+done.Payment.TransactionID || sess.AmountCents != 20000 {
		t.Fatalf("unexpected session %+v", sess)
	}
	if req := e.gw.reqs[0]; req.Phone != "01700000000" || req.Address != "Dhaka" || req.Product != "Old Dhaka" {
		t.Fatalf("unexpected gateway request %+v", req)
	}

	res, err := e.payments.Reconcile(e.ctx, OutcomeSuccess, Callback{
		TransactionID: sess.TransactionID, Amount: "200.00", Params: map[string]string{"val_id": "v1"},
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Payment.Status != model.PaymentPaid || res.Payment.PaidAt == nil {
		t.Fatalf("payment not settled: %+v", res.Payment)
	}

	replay, err := e.payments.Reconcile(e.ctx, OutcomeSuccess, Callback{TransactionID: sess.TransactionID, Amount: "200.00"})
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("replay: want AlreadyProcessed, got %v", err)
	}
	if replay == nil || replay.Outcome != OutcomeSuccess {
		t.Fatalf("replay should report the stored outcome: %+v", replay)
	}
	p, _ := e.store.Payments().GetByBookingID(e.ctx, d.ID)
	if p.Status != model.PaymentPaid || string(p.GatewayData) != `{"val_id":"v1"}` {
		t.Fatalf("replay must not change the payment: %+v", p)
	}
	b, _ := e.store.Bookings().GetByID(e.ctx, d.ID)
	if b.Status != model.BookingCompleted {
		t.Fatalf("booking status must stay COMPLETED, got %s", b.Status)
	}

	if _, err := e.bookings.InitiatePayment(e.ctx, e.tourist, d.ID); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("paying twice: want InvalidOperation, got %v", err)
	}

	want := []string{queue.TypeBookingStatusChanged, queue.TypeBookingStatusChanged, queue.TypePaymentReconciled}
	got := e.events.types()
	if len(got) != len(want) {
		t.Fatalf("events: want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events: want %v, got %v", want, got)
		}
	}
}

func TestTransitionGraph(t *testing.T) {
	cases := []struct {
		name string
		path []model.BookingStatus
		to   model.BookingStatus
		want error
	}{
		{"pending to completed", nil, model.BookingCompleted, ErrInvalidTransition},
		{"pending to pending", nil, model.BookingPending, ErrInvalidTransition},
		{"pending to failed", nil, model.BookingFailed, ErrInvalidTransition},
		{"confirmed to pending", []model.BookingStatus{model.BookingConfirmed}, model.BookingPending, ErrInvalidTransition},
		{"out of cancelled", []model.BookingStatus{model.BookingCancelled}, model.BookingConfirmed, ErrTerminalState},
		{"out of completed", []model.BookingStatus{model.BookingConfirmed, model.BookingCompleted}, model.BookingCancelled, ErrTerminalState},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			d := e.book(t, 1)
			e.move(t, d.ID, tc.path...)
			before, _ := e.store.Bookings().GetByID(e.ctx, d.ID)

			_, err := e.bookings.Transition(e.ctx, e.guide, d.ID, tc.to, "")
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
			after, _ := e.store.Bookings().GetByID(e.ctx, d.ID)
			if after.Status != before.Status {
				t.Fatalf("status changed from %s to %s", before.Status, after.Status)
			}
		})
	}
}

func TestConcurrentConfirmAndCancel(t *testing.T) {
	for i := 0; i < 20; i++ {
		e := newEnv(t)
		d := e.book(t, 1)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, to := range []model.BookingStatus{model.BookingConfirmed, model.BookingCancelled} {
			wg.Add(1)
			go func(j int, to model.BookingStatus) {
				defer wg.Done()
				_, errs[j] = e.bookings.Transition(e.ctx, e.guide, d.ID, to, model.BookingPending)
			}(j, to)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			case !errors.Is(err, ErrInvalidTransition):
				t.Fatalf("loser: want InvalidTransition, got %v", err)
			}
		}
		if wins != 1 {
			t.Fatalf("want exactly one winner, got %d (%v)", wins, errs)
		}
	}
}

func TestTransitionAuthorization(t *testing.T) {
	e := newEnv(t)
	d := e.book(t, 1)

	if _, err := e.bookings.Transition(e.ctx, e.tourist, d.ID, model.BookingConfirmed, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("tourist: want Forbidden, got %v", err)
	}
	stranger := Actor{ID: 999, Role: model.RoleGuide}
	if _, err := e.bookings.Transition(e.ctx, stranger, d.ID, model.BookingConfirmed, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other guide: want Forbidden, got %v", err)
	}
	if _, err := e.bookings.Transition(e.ctx, e.admin, d.ID, model.BookingConfirmed, ""); err != nil {
		t.Fatalf("admin override: %v", err)
	}
	if _, err := e.bookings.Transition(e.ctx, e.guide, 12345, model.BookingConfirmed, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing booking: want NotFound, got %v", err)
	}
}

func TestCreateBookingRules(t *testing.T) {
	e := newEnv(t)
	in := CreateBookingInput{TourID: e.tour.ID, BookingDate: "2025-03-01", BookingTime: "09:00", NumberOfGuests: 6}
	if _, err := e.bookings.Create(e.ctx, e.tourist, in); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("group size: want InvalidOperation, got %v", err)
	}

	in.NumberOfGuests = 1
	noProfile := Actor{Role: model.RoleTourist}
	u := &model.User{Name: "np", Email: "np@example.com", Role: model.RoleTourist}
	_ = e.store.Users().Create(e.ctx, u)
	noProfile.ID = u.ID
	if _, err := e.bookings.Create(e.ctx, noProfile, in); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("missing profile: want InvalidOperation, got %v", err)
	}

	if _, err := e.bookings.Create(e.ctx, e.guide, in); !errors.Is(err, ErrForbidden) {
		t.Fatalf("guide booking: want Forbidden, got %v", err)
	}

	_ = e.store.Tours().SoftDelete(e.ctx, e.tour.ID)
	if _, err := e.bookings.Create(e.ctx, e.tourist, in); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted tour: want NotFound, got %v", err)
	}
}

func TestInitiatePaymentRules(t *testing.T) {
	e := newEnv(t)
	d := e.book(t, 1)

	if _, err := e.bookings.InitiatePayment(e.ctx, e.tourist, d.ID); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("pending booking: want InvalidOperation, got %v", err)
	}
	e.move(t, d.ID, model.BookingConfirmed, model.BookingCompleted)
	if _, err := e.bookings.InitiatePayment(e.ctx, e.other, d.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other tourist: want Forbidden, got %v", err)
	}

	first, err := e.bookings.InitiatePayment(e.ctx, e.tourist, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.payments.Reconcile(e.ctx, OutcomeFail, Callback{TransactionID: first.TransactionID, Amount: "100"}); err != nil {
		t.Fatalf("fail callback: %v", err)
	}
	p, _ := e.store.Payments().GetByBookingID(e.ctx, d.ID)
	if p.Status != model.PaymentFailed {
		t.Fatalf("want FAILED, got %s", p.Status)
	}

	retry, err := e.bookings.InitiatePayment(e.ctx, e.tourist, d.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retry.TransactionID == first.TransactionID {
		t.Fatal("retry must use a fresh transaction id")
	}
	p, _ = e.store.Payments().GetByBookingID(e.ctx, d.ID)
	if p.Status != model.PaymentUnpaid || p.TransactionID != retry.TransactionID {
		t.Fatalf("payment not reissued: %+v", p)
	}
	if _, err := e.payments.Reconcile(e.ctx, OutcomeSuccess, Callback{TransactionID: first.TransactionID}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale transaction id: want NotFound, got %v", err)
	}
}

func TestReconcileRejectsBadCallbacks(t *testing.T) {
	e := newEnv(t)
	d := e.book(t, 2)
	e.move(t, d.ID, model.BookingConfirmed, model.BookingCompleted)
	p, _ := e.store.Payments().GetByBookingID(e.ctx, d.ID)

	if _, err := e.payments.Reconcile(e.ctx, OutcomeSuccess, Callback{TransactionID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id: want NotFound, got %v", err)
	}
	if _, err := e.payments.Reconcile(e.ctx, OutcomeSuccess, Callback{TransactionID: p.TransactionID, Amount: "1.00"}); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("amount mismatch: want InvalidOperation, got %v", err)
	}
	if _, err := e.payments.Reconcile(e.ctx, OutcomeSuccess, Callback{}); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("missing id: want InvalidOperation, got %v", err)
	}
	after, _ := e.store.Payments().GetByBookingID(e.ctx, d.ID)
	if after.Status != model.PaymentUnpaid {
		t.Fatalf("rejected callbacks must not settle: %s", after.Status)
	}

	res, err := e.payments.Reconcile(e.ctx, OutcomeCancel, Callback{TransactionID: p.TransactionID, Amount: "200"})
	if err != nil || res.Payment.Status != model.PaymentCancelled || res.Payment.PaidAt != nil {
		t.Fatalf("cancel: %v %+v", err, res)
	}
	if _, err := e.payments.Reconcile(e.ctx, OutcomeSuccess, Callback{TransactionID: p.TransactionID}); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("success after cancel: want AlreadyProcessed, got %v", err)
	}
}

func TestPaymentVisibility(t *testing.T) {
	e := newEnv(t)
	d := e.book(t, 1)
	if _, err := e.payments.ForBooking(e.ctx, e.tourist, d.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("no payment yet: want NotFound, got %v", err)
	}
	e.move(t, d.ID, model.BookingConfirmed, model.BookingCompleted)
	for _, a := range []Actor{e.tourist, e.guide, e.admin} {
		if _, err := e.payments.ForBooking(e.ctx, a, d.ID); err != nil {
			t.Fatalf("%s: %v", a.Role, err)
		}
	}
	if _, err := e.payments.ForBooking(e.ctx, e.other, d.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger: want Forbidden, got %v", err)
	}
}

func TestBookingListings(t *testing.T) {
	e := newEnv(t)
	a := e.book(t, 1)
	b := e.book(t, 2)
	e.move(t, b.ID, model.BookingConfirmed)

	mine, _ := e.bookings.Mine(e.ctx, e.tourist)
	if len(mine) != 2 {
		t.Fatalf("tourist: want 2, got %d", len(mine))
	}
	pending, _ := e.bookings.PendingForGuide(e.ctx, e.guide)
	if len(pending) != 1 || pending[0].ID != a.ID {
		t.Fatalf("pending: %+v", pending)
	}
	if _, err := e.bookings.All(e.ctx, e.guide, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("all as guide: want Forbidden, got %v", err)
	}
	all, _ := e.bookings.All(e.ctx, e.admin, model.BookingConfirmed)
	if len(all) != 1 || all[0].ID != b.ID {
		t.Fatalf("admin filter: %+v", all)
	}
	if _, err := e.bookings.Get(e.ctx, e.other, a.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger get: want Forbidden, got %v", err)
	}
}
