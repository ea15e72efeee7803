package model

import (
    "encoding/json"
    "time"
)

// PaymentStatus tracks the gateway outcome of a payment.
type PaymentStatus string

const (
    PaymentUnpaid    PaymentStatus = "UNPAID"
    PaymentPaid      PaymentStatus = "PAID"
    PaymentFailed    PaymentStatus = "FAILED"
    PaymentCancelled PaymentStatus = "CANCELLED"
)

// IsSettled reports whether the gateway has already delivered an outcome
// for the current transaction id.
func (s PaymentStatus) IsSettled() bool {
    switch s {
    case PaymentPaid, PaymentFailed, PaymentCancelled:
        return true
    }
    return false
}

func (s PaymentStatus) String() string { return string(s) }

// Payment is one-to-one with a booking.  It is created when the booking is
// completed and mutated only by payment initiation and reconciliation.
type Payment struct {
    ID            uint64          `json:"id"`                     // payments.id
    BookingID     uint64          `json:"booking_id"`             // payments.booking_id (unique)
    TransactionID string          `json:"transaction_id"`         // payments.transaction_id (unique)
    Status        PaymentStatus   `json:"status"`                 // payments.status
    AmountCents   int64           `json:"amount_cents"`           // payments.amount_cents
    GatewayData   json.RawMessage `json:"gateway_data,omitempty"` // payments.gateway_data (JSON, nullable)
    PaidAt        *time.Time      `json:"paid_at,omitempty"`      // payments.paid_at (nullable)
    CreatedAt     time.Time       `json:"created_at"`             // payments.created_at
    UpdatedAt     time.Time       `json:"updated_at"`             // payments.updated_at
}
