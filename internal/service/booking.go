package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/tour-booking/internal/cache"
	"github.com/iliyamo/tour-booking/internal/gateway"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/queue"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// BookingService drives the booking lifecycle.
type BookingService struct {
	store   repository.Store
	gateway PaymentGateway
	events  EventPublisher
	cache   Invalidator
	newTxID func() string
}

// NewBookingService wires the service.  inv may be nil; completing a
// booking then skips invalidating the tour listings.
func NewBookingService(store repository.Store, gw PaymentGateway, events EventPublisher, inv Invalidator) *BookingService {
	return &BookingService{store: store, gateway: gw, events: events, cache: inv, newTxID: NewTransactionID}
}

// CreateBookingInput is what a tourist submits to book a tour.
type CreateBookingInput struct {
	TourID         uint64
	BookingDate    string // YYYY-MM-DD
	BookingTime    string // HH:MM
	NumberOfGuests int
}

// Create books a tour for the calling tourist.  The booking starts
// PENDING and carries fee × guests as its total; no payment exists yet.
func (s *BookingService) Create(ctx context.Context, actor Actor, in CreateBookingInput) (*model.BookingDetail, error) {
	if !actor.Is(model.RoleTourist) {
		return nil, forbidden("only tourists can book tours")
	}
	if _, err := time.Parse("2006-01-02", in.BookingDate); err != nil {
		return nil, invalidOp("bookingDate must be YYYY-MM-DD")
	}
	if _, err := time.Parse("15:04", in.BookingTime); err != nil {
		return nil, invalidOp("bookingTime must be HH:MM")
	}
	if in.NumberOfGuests < 1 {
		return nil, invalidOp("numberOfGuests must be at least 1")
	}

	tourist, err := s.store.Users().GetByID(ctx, actor.ID)
	if err != nil {
		return nil, fromRepo(err, "user")
	}
	if tourist.Phone == "" || tourist.Address == "" {
		return nil, invalidOp("please update your profile with phone and address to book a tour")
	}
	tour, err := s.store.Tours().GetByID(ctx, in.TourID)
	if err != nil {
		return nil, fromRepo(err, "tour")
	}
	if in.NumberOfGuests > tour.MaxGroupSize {
		return nil, invalidOp("numberOfGuests exceeds the tour's group size of %d", tour.MaxGroupSize)
	}
	if !tour.Offers(in.BookingDate, in.BookingTime) {
		return nil, invalidOp("the tour is not offered on %s at %s", in.BookingDate, in.BookingTime)
	}

	b := &model.Booking{
		TouristID:        tourist.ID,
		TourID:           tour.ID,
		GuideID:          tour.GuideID,
		BookingDate:      in.BookingDate,
		BookingTime:      in.BookingTime,
		NumberOfGuests:   in.NumberOfGuests,
		TotalAmountCents: tour.FeeCents * int64(in.NumberOfGuests),
		Status:           model.BookingPending,
	}
	if err := s.store.Bookings().Create(ctx, b); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	return hydrate(ctx, s.store, b)
}

// Transition moves a booking to target.  Only the guide owning the
// booking's tour, or an admin, may do so.
//
// expected is the status the caller based its decision on; when empty
// the status read at the start of the call is used.  The booking is
// re-read under a row lock inside the transaction and the request fails
// with InvalidTransition if the status moved in the meantime, so of two
// racing requests on the same booking exactly one wins.  Completing a
// booking creates its UNPAID payment and bumps the tour's booking count
// in the same transaction.
func (s *BookingService) Transition(ctx context.Context, actor Actor, bookingID uint64, target, expected model.BookingStatus) (*model.BookingDetail, error) {
	if !actor.Is(model.RoleGuide) && !actor.Is(model.RoleAdmin) {
		return nil, forbidden("only the tour's guide or an admin can change booking status")
	}
	if _, err := model.ParseBookingStatus(string(target)); err != nil {
		return nil, invalidOp("unknown booking status %q", target)
	}
	if expected == "" {
		b, err := s.store.Bookings().GetByID(ctx, bookingID)
		if err != nil {
			return nil, fromRepo(err, "booking")
		}
		expected = b.Status
	}

	var updated model.Booking
	err := s.store.InTx(ctx, func(u repository.Unit) error {
		b, err := u.Bookings().GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return fromRepo(err, "booking")
		}
		if actor.Is(model.RoleGuide) && b.GuideID != actor.ID {
			return forbidden("you are not the guide of this booking")
		}
		if b.Status != expected {
			return &Error{
				Kind:    KindInvalidTransition,
				Message: fmt.Sprintf("booking status is %s, not %s", b.Status, expected),
				Err:     model.ErrInvalidTransition,
			}
		}
		if err := fromTransition(b.Status.CheckTransition(target)); err != nil {
			return err
		}
		if err := u.Bookings().UpdateStatus(ctx, b.ID, target); err != nil {
			return err
		}
		b.Status = target

		if target == model.BookingCompleted {
			p, err := ensurePayment(ctx, u, b, s.newTxID)
			if err != nil {
				return err
			}
			b.PaymentID = &p.ID
			if err := u.Tours().IncrementBookingCount(ctx, b.TourID); err != nil {
				return fmt.Errorf("increment booking count: %w", err)
			}
		}
		updated = *b
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Infof("booking %d: %s -> %s by %s %d", updated.ID, expected, updated.Status, actor.Role, actor.ID)
	if updated.Status == model.BookingCompleted {
		// booking_count changed
		bump(ctx, s.cache, cache.AllTours(), cache.Tour(updated.TourID))
	}
	publish(ctx, s.events, queue.StatusChanged(updated, expected))
	return hydrate(ctx, s.store, &updated)
}

// ensurePayment returns the booking's payment, creating an UNPAID one for
// the full amount and linking it when none exists.
func ensurePayment(ctx context.Context, u repository.Unit, b *model.Booking, newTxID func() string) (*model.Payment, error) {
	p, err := u.Payments().GetByBookingID(ctx, b.ID)
	if err == nil {
		if b.PaymentID == nil || *b.PaymentID != p.ID {
			if err := u.Bookings().SetPayment(ctx, b.ID, p.ID); err != nil {
				return nil, fmt.Errorf("link payment: %w", err)
			}
		}
		return p, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	p = &model.Payment{
		BookingID:     b.ID,
		TransactionID: newTxID(),
		Status:        model.PaymentUnpaid,
		AmountCents:   b.TotalAmountCents,
	}
	if err := u.Payments().Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	if err := u.Bookings().SetPayment(ctx, b.ID, p.ID); err != nil {
		return nil, fmt.Errorf("link payment: %w", err)
	}
	return p, nil
}

// PaymentSession is returned when a tourist starts paying.
type PaymentSession struct {
	PaymentURL    string `json:"paymentUrl"`
	TransactionID string `json:"transactionId"`
	AmountCents   int64  `json:"amountCents"`
}

// InitiatePayment opens a gateway session for a COMPLETED booking of the
// calling tourist.  A payment that previously failed or was cancelled is
// reissued under a new transaction id; a paid one is refused.
func (s *BookingService) InitiatePayment(ctx context.Context, actor Actor, bookingID uint64) (*PaymentSession, error) {
	if !actor.Is(model.RoleTourist) {
		return nil, forbidden("only the booking's tourist can pay for it")
	}
	var pay model.Payment
	err := s.store.InTx(ctx, func(u repository.Unit) error {
		b, err := u.Bookings().GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return fromRepo(err, "booking")
		}
		if b.TouristID != actor.ID {
			return forbidden("you can only pay for your own bookings")
		}
		if b.Status != model.BookingCompleted {
			return invalidOp("booking must be COMPLETED before payment, it is %s", b.Status)
		}
		p, err := ensurePayment(ctx, u, b, s.newTxID)
		if err != nil {
			return err
		}
		switch p.Status {
		case model.PaymentPaid:
			return invalidOp("booking is already paid")
		case model.PaymentFailed, model.PaymentCancelled:
			txID := s.newTxID()
			if err := u.Payments().Reissue(ctx, p.ID, txID); err != nil {
				return fmt.Errorf("reissue payment: %w", err)
			}
			p.TransactionID, p.Status = txID, model.PaymentUnpaid
		}
		pay = *p
		return nil
	})
	if err != nil {
		return nil, err
	}

	tourist, err := s.store.Users().GetByID(ctx, actor.ID)
	if err != nil {
		return nil, fromRepo(err, "user")
	}
	product := "Tour booking"
	if b, err := s.store.Bookings().GetByID(ctx, bookingID); err == nil {
		if t, err := s.store.Tours().GetByIDUnscoped(ctx, b.TourID); err == nil {
			product = t.Title
		}
	}
	sess, err := s.gateway.Init(ctx, gateway.InitRequest{
		TransactionID: pay.TransactionID,
		AmountCents:   pay.AmountCents,
		Name:          tourist.Name,
		Email:         tourist.Email,
		Phone:         tourist.Phone,
		Address:       tourist.Address,
		Product:       product,
	})
	if err != nil {
		return nil, err
	}
	return &PaymentSession{PaymentURL: sess.GatewayPageURL, TransactionID: pay.TransactionID, AmountCents: pay.AmountCents}, nil
}

// Get returns one booking if the actor is its tourist, its guide or an
// admin.
func (s *BookingService) Get(ctx context.Context, actor Actor, id uint64) (*model.BookingDetail, error) {
	b, err := s.store.Bookings().GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "booking")
	}
	if !canSee(actor, b) {
		return nil, forbidden("you cannot view this booking")
	}
	return hydrate(ctx, s.store, b)
}

// Mine lists the tourist's own bookings, or the bookings of a guide's
// tours.  Admins see every booking.
func (s *BookingService) Mine(ctx context.Context, actor Actor) ([]model.BookingDetail, error) {
	f := model.BookingFilter{}
	switch actor.Role {
	case model.RoleTourist:
		f.TouristID = actor.ID
	case model.RoleGuide:
		f.GuideID = actor.ID
	case model.RoleAdmin:
	default:
		return nil, forbidden("unknown role")
	}
	return s.list(ctx, f)
}

// PendingForGuide lists the guide's bookings awaiting a decision.
func (s *BookingService) PendingForGuide(ctx context.Context, actor Actor) ([]model.BookingDetail, error) {
	if !actor.Is(model.RoleGuide) {
		return nil, forbidden("only guides have pending bookings")
	}
	return s.list(ctx, model.BookingFilter{GuideID: actor.ID, Status: model.BookingPending})
}

// All lists every booking, optionally filtered by status.  Admin only.
func (s *BookingService) All(ctx context.Context, actor Actor, status model.BookingStatus) ([]model.BookingDetail, error) {
	if !actor.Is(model.RoleAdmin) {
		return nil, forbidden("admin only")
	}
	return s.list(ctx, model.BookingFilter{Status: status})
}

func (s *BookingService) list(ctx context.Context, f model.BookingFilter) ([]model.BookingDetail, error) {
	bs, err := s.store.Bookings().List(ctx, f)
	if err != nil {
		return nil, err
	}
	h := newHydrator(s.store)
	out := make([]model.BookingDetail, 0, len(bs))
	for i := range bs {
		d, err := h.detail(ctx, &bs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

func canSee(actor Actor, b *model.Booking) bool {
	switch actor.Role {
	case model.RoleAdmin:
		return true
	case model.RoleTourist:
		return b.TouristID == actor.ID
	case model.RoleGuide:
		return b.GuideID == actor.ID
	}
	return false
}

func hydrate(ctx context.Context, u repository.Unit, b *model.Booking) (*model.BookingDetail, error) {
	return newHydrator(u).detail(ctx, b)
}

// hydrator assembles BookingDetail values, remembering users and tours it
// already fetched.
type hydrator struct {
	u     repository.Unit
	users map[uint64]model.UserSummary
	tours map[uint64]model.TourSummary
}

func newHydrator(u repository.Unit) *hydrator {
	return &hydrator{u: u, users: map[uint64]model.UserSummary{}, tours: map[uint64]model.TourSummary{}}
}

func (h *hydrator) user(ctx context.Context, id uint64) (model.UserSummary, error) {
	if s, ok := h.users[id]; ok {
		return s, nil
	}
	usr, err := h.u.Users().GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		// Deleted accounts keep their bookings.
		s := model.UserSummary{ID: id}
		h.users[id] = s
		return s, nil
	}
	if err != nil {
		return model.UserSummary{}, err
	}
	s := usr.Summary()
	h.users[id] = s
	return s, nil
}

func (h *hydrator) tour(ctx context.Context, id uint64) (model.TourSummary, error) {
	if s, ok := h.tours[id]; ok {
		return s, nil
	}
	t, err := h.u.Tours().GetByIDUnscoped(ctx, id)
	if err != nil {
		return model.TourSummary{}, fromRepo(err, "tour")
	}
	s := t.Summary()
	h.tours[id] = s
	return s, nil
}

func (h *hydrator) detail(ctx context.Context, b *model.Booking) (*model.BookingDetail, error) {
	d := &model.BookingDetail{Booking: *b}
	var err error
	if d.Tourist, err = h.user(ctx, b.TouristID); err != nil {
		return nil, err
	}
	if d.Guide, err = h.user(ctx, b.GuideID); err != nil {
		return nil, err
	}
	if d.Tour, err = h.tour(ctx, b.TourID); err != nil {
		return nil, err
	}
	if b.PaymentID != nil {
		p, err := h.u.Payments().GetByID(ctx, *b.PaymentID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		d.Payment = p
	}
	return d, nil
}
