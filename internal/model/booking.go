package model

import (
    "errors"
    "fmt"
    "strings"
    "time"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
    BookingPending   BookingStatus = "PENDING"
    BookingConfirmed BookingStatus = "CONFIRMED"
    BookingCompleted BookingStatus = "COMPLETED"
    BookingCancelled BookingStatus = "CANCELLED"
    BookingFailed    BookingStatus = "FAILED"
)

var (
    // ErrInvalidTransition is returned when the target is not reachable from
    // the current non-terminal status.
    ErrInvalidTransition = errors.New("invalid booking status transition")
    // ErrTerminalStatus is returned for any transition out of a terminal
    // status.
    ErrTerminalStatus = errors.New("booking is in a terminal status")
)

// bookingTransitions is the whole state graph.  Terminal states map to an
// empty set.
var bookingTransitions = map[BookingStatus][]BookingStatus{
    BookingPending:   {BookingConfirmed, BookingCancelled},
    BookingConfirmed: {BookingCompleted, BookingCancelled},
    BookingCompleted: {},
    BookingCancelled: {},
    BookingFailed:    {},
}

// ParseBookingStatus accepts the canonical status names only.
func ParseBookingStatus(s string) (BookingStatus, error) {
    st := BookingStatus(strings.ToUpper(strings.TrimSpace(s)))
    if _, ok := bookingTransitions[st]; !ok {
        return "", fmt.Errorf("unknown booking status %q", s)
    }
    return st, nil
}

func (s BookingStatus) String() string { return string(s) }

// IsTerminal reports whether no transition leaves s.
func (s BookingStatus) IsTerminal() bool {
    next, ok := bookingTransitions[s]
    return !ok || len(next) == 0
}

// CanTransitionTo reports whether target is a direct successor of s.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
    for _, t := range bookingTransitions[s] {
        if t == target {
            return true
        }
    }
    return false
}

// CheckTransition returns nil when s → target is a legal edge,
// ErrTerminalStatus when s is terminal and ErrInvalidTransition otherwise.
func (s BookingStatus) CheckTransition(target BookingStatus) error {
    if s.IsTerminal() {
        return fmt.Errorf("%w: %s", ErrTerminalStatus, s)
    }
    if !s.CanTransitionTo(target) {
        return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, target)
    }
    return nil
}

// Booking links a tourist, a tour and the tour's guide.  PaymentID is set
// once the booking is completed and a payment record exists for it.
//
// Fields:
//  TouristID        – user who booked.
//  TourID, GuideID  – the tour and its owning guide at booking time.
//  BookingDate      – YYYY-MM-DD.
//  BookingTime      – HH:MM.
//  TotalAmountCents – tour fee × number of guests.
type Booking struct {
    ID               uint64        `json:"id"`                   // bookings.id
    TouristID        uint64        `json:"tourist_id"`           // bookings.tourist_id
    TourID           uint64        `json:"tour_id"`              // bookings.tour_id
    GuideID          uint64        `json:"guide_id"`             // bookings.guide_id
    PaymentID        *uint64       `json:"payment_id,omitempty"` // bookings.payment_id (nullable)
    BookingDate      string        `json:"booking_date"`         // bookings.booking_date
    BookingTime      string        `json:"booking_time"`         // bookings.booking_time
    NumberOfGuests   int           `json:"number_of_guests"`     // bookings.number_of_guests
    TotalAmountCents int64         `json:"total_amount_cents"`   // bookings.total_amount_cents
    Status           BookingStatus `json:"status"`               // bookings.status
    CreatedAt        time.Time     `json:"created_at"`           // bookings.created_at
    UpdatedAt        time.Time     `json:"updated_at"`           // bookings.updated_at
}

// BookingDetail is a booking assembled with its related records.  The
// service layer builds it with explicit lookups; nothing is lazily loaded.
type BookingDetail struct {
    Booking
    Tourist UserSummary `json:"tourist"`
    Guide   UserSummary `json:"guide"`
    Tour    TourSummary `json:"tour"`
    Payment *Payment    `json:"payment,omitempty"`
}

// BookingFilter narrows booking listings.  Zero values match everything.
type BookingFilter struct {
    TouristID uint64
    GuideID   uint64
    Status    BookingStatus
}
