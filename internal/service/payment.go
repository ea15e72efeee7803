package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/tour-booking/internal/gateway"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/queue"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// Outcome is the gateway callback kind.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFail    Outcome = "fail"
	OutcomeCancel  Outcome = "cancel"
)

// ParseOutcome accepts the three callback names.
func ParseOutcome(s string) (Outcome, bool) {
	switch o := Outcome(s); o {
	case OutcomeSuccess, OutcomeFail, OutcomeCancel:
		return o, true
	}
	return "", false
}

// PaymentStatus is the terminal payment status the outcome implies.
func (o Outcome) PaymentStatus() model.PaymentStatus {
	switch o {
	case OutcomeSuccess:
		return model.PaymentPaid
	case OutcomeFail:
		return model.PaymentFailed
	}
	return model.PaymentCancelled
}

// OutcomeOf maps a settled payment status back to its outcome.
func OutcomeOf(s model.PaymentStatus) Outcome {
	switch s {
	case model.PaymentPaid:
		return OutcomeSuccess
	case model.PaymentFailed:
		return OutcomeFail
	}
	return OutcomeCancel
}

// Callback is what the gateway sends back.  Params holds every
// query/form value and is stored as gateway metadata.
type Callback struct {
	TransactionID string
	Amount        string
	Params        map[string]string
}

// Reconciliation reports the state of the payment after a callback.
type Reconciliation struct {
	Outcome Outcome
	Payment model.Payment
}

// PaymentService reconciles gateway callbacks.
type PaymentService struct {
	store  repository.Store
	events EventPublisher
}

func NewPaymentService(store repository.Store, events EventPublisher) *PaymentService {
	return &PaymentService{store: store, events: events}
}

// Reconcile applies a gateway callback.  The payment is looked up by
// transaction id and locked; payment and booking are updated in one
// transaction.  The booking keeps its COMPLETED status, the outcome lives
// on the payment.
//
// A callback for a payment that is already settled changes nothing and
// returns AlreadyProcessed together with a Reconciliation describing the
// stored outcome, so the caller can still route the user.
func (s *PaymentService) Reconcile(ctx context.Context, outcome Outcome, cb Callback) (*Reconciliation, error) {
	if cb.TransactionID == "" {
		return nil, invalidOp("transactionId is required")
	}
	var (
		settled model.Payment
		booking model.Booking
		replay  *Reconciliation
	)
	err := s.store.InTx(ctx, func(u repository.Unit) error {
		p, err := u.Payments().GetByTransactionIDForUpdate(ctx, cb.TransactionID)
		if err != nil {
			return fromRepo(err, "payment")
		}
		if p.Status.IsSettled() {
			replay = &Reconciliation{Outcome: OutcomeOf(p.Status), Payment: *p}
			return &Error{Kind: KindAlreadyProcessed, Message: fmt.Sprintf("payment %s is already %s", p.TransactionID, p.Status)}
		}
		if cb.Amount != "" {
			cents, err := gateway.ParseAmount(cb.Amount)
			if err != nil {
				return invalidOp("invalid amount: %v", err)
			}
			if cents != p.AmountCents {
				return invalidOp("amount %s does not match the payment", cb.Amount)
			}
		}

		b, err := u.Bookings().GetByIDForUpdate(ctx, p.BookingID)
		if err != nil {
			return fromRepo(err, "booking")
		}
		if b.Status != model.BookingCompleted {
			return invalidOp("booking %d is %s, payments settle only for COMPLETED bookings", b.ID, b.Status)
		}
		if b.PaymentID != nil && *b.PaymentID != p.ID {
			return invalidOp("payment %s is not linked to booking %d", p.TransactionID, b.ID)
		}

		data, err := json.Marshal(cb.Params)
		if err != nil {
			return fmt.Errorf("encode gateway data: %w", err)
		}
		status := outcome.PaymentStatus()
		var paidAt *time.Time
		if status == model.PaymentPaid {
			now := time.Now().UTC()
			paidAt = &now
		}
		if err := u.Payments().Settle(ctx, p.ID, status, data, paidAt); err != nil {
			return fmt.Errorf("settle payment: %w", err)
		}
		if err := u.Bookings().Touch(ctx, b.ID); err != nil {
			return fmt.Errorf("touch booking: %w", err)
		}

		p.Status, p.GatewayData, p.PaidAt = status, data, paidAt
		settled, booking = *p, *b
		return nil
	})
	if err != nil {
		if replay != nil {
			log.Infoj(log.JSON{"event": "payment.replayed", "transaction_id": cb.TransactionID, "callback": string(outcome), "status": string(replay.Payment.Status)})
			return replay, err
		}
		log.Warnj(log.JSON{"event": "payment.rejected", "transaction_id": cb.TransactionID, "callback": string(outcome), "error": err.Error()})
		return nil, err
	}

	log.Infoj(log.JSON{
		"event":          "payment.reconciled",
		"transaction_id": settled.TransactionID,
		"booking_id":     booking.ID,
		"status":         string(settled.Status),
		"amount_cents":   settled.AmountCents,
	})
	publish(ctx, s.events, queue.Reconciled(booking, settled))
	return &Reconciliation{Outcome: outcome, Payment: settled}, nil
}

// ForBooking returns the payment of a booking to its tourist, its guide
// or an admin.
func (s *PaymentService) ForBooking(ctx context.Context, actor Actor, bookingID uint64) (*model.Payment, error) {
	b, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, fromRepo(err, "booking")
	}
	if !canSee(actor, b) {
		return nil, forbidden("you cannot view this payment")
	}
	p, err := s.store.Payments().GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, fromRepo(err, "payment")
	}
	return p, nil
}
