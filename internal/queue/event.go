// Package queue defines the domain events exchanged over RabbitMQ together
// with the publisher used by the services and the background consumer.
package queue

import (
    "time"

    "github.com/iliyamo/tour-booking/internal/model"
)

// Event types.
const (
    TypeBookingStatusChanged = "booking.status_changed"
    TypePaymentReconciled    = "payment.reconciled"
)

// Event is published after a booking transition or a payment
// reconciliation commits.  It contains enough information for downstream
// consumers to log, notify, or trigger analytics without querying the
// primary database.
type Event struct {
    Type          string              `json:"type"`
    BookingID     uint64              `json:"booking_id"`
    TourID        uint64              `json:"tour_id"`
    TouristID     uint64              `json:"tourist_id"`
    GuideID       uint64              `json:"guide_id"`
    From          model.BookingStatus `json:"from,omitempty"`
    To            model.BookingStatus `json:"to,omitempty"`
    PaymentStatus model.PaymentStatus `json:"payment_status,omitempty"`
    TransactionID string              `json:"transaction_id,omitempty"`
    AmountCents   int64               `json:"amount_cents"`
    OccurredAt    time.Time           `json:"occurred_at"`
}

// StatusChanged builds the event for a committed booking transition.
func StatusChanged(b model.Booking, from model.BookingStatus) Event {
    return Event{
        Type:        TypeBookingStatusChanged,
        BookingID:   b.ID,
        TourID:      b.TourID,
        TouristID:   b.TouristID,
        GuideID:     b.GuideID,
        From:        from,
        To:          b.Status,
        AmountCents: b.TotalAmountCents,
        OccurredAt:  time.Now().UTC(),
    }
}

// Reconciled builds the event for a settled payment.
func Reconciled(b model.Booking, p model.Payment) Event {
    return Event{
        Type:          TypePaymentReconciled,
        BookingID:     b.ID,
        TourID:        b.TourID,
        TouristID:     b.TouristID,
        GuideID:       b.GuideID,
        PaymentStatus: p.Status,
        TransactionID: p.TransactionID,
        AmountCents:   p.AmountCents,
        OccurredAt:    time.Now().UTC(),
    }
}
